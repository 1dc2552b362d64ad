// Package normalize holds the pure field normalizers applied in the validation phase.
package normalize

import (
	"regexp"
	"time"
)

const (
	// OutputLayout is the canonical form produced for converted timestamps.
	OutputLayout = "2006-01-02T15:04:05.000Z"
	// usLayout accepts both padded and unpadded month/day (01/05/2024 or 1/5/2024).
	usLayout = "1/2/2006 15:04:05"
)

// isoPattern restricts pass 1 to UTC "Z" strings; offsets fall through to the null marker.
var isoPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d{1,9})?Z$`)

// usPattern 整秒，不带小数；time.Parse 会默认接受 "09:30:00.123"
var usPattern = regexp.MustCompile(`^\d{1,2}/\d{1,2}/\d{4} \d{1,2}:\d{2}:\d{2}$`)

// Normalized is the result for one timestamp. OK=false is the null marker.
type Normalized struct {
	Value string
	OK    bool
}

// Timestamp normalizes one raw value. ISO-8601 UTC strings are returned
// unchanged, US "MM/DD/YYYY HH:MM:SS" strings are converted with zero
// milliseconds, anything else (including "") yields ok=false.
func Timestamp(raw string) (string, bool) {
	if raw == "" {
		return "", false
	}
	if isISO(raw) {
		return raw, true
	}
	if !usPattern.MatchString(raw) {
		return "", false
	}
	if t, err := time.Parse(usLayout, raw); err == nil {
		return t.Format(OutputLayout), true
	}
	return "", false
}

// Timestamps normalizes a column; output length always equals input length.
func Timestamps(raw []string) []Normalized {
	out := make([]Normalized, len(raw))
	for i, s := range raw {
		v, ok := Timestamp(s)
		out[i] = Normalized{Value: v, OK: ok}
	}
	return out
}

func isISO(s string) bool {
	if !isoPattern.MatchString(s) {
		return false
	}
	// 形如 2024-13-45T25:00:00Z 的字符串能通过正则，但不是合法时间
	_, err := time.Parse(time.RFC3339Nano, s)
	return err == nil
}
