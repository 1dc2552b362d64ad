// Package exception builds the structured report of rows rejected during validation.
package exception

import (
	"errors"
	"fmt"
	"strconv"

	"trade-recon-go/ledger"
)

// Kind is the exception_type written to the report.
type Kind string

const (
	CancelledTrade   Kind = "cancelled_trade"
	InvalidTimestamp Kind = "invalid_timestamp"
	InvalidSymbol    Kind = "invalid_symbol"
	MissingField     Kind = "missing_field"
)

var (
	ErrFieldRequired = errors.New("missing_field exception needs a field name")
	ErrUnknownKind   = errors.New("unknown exception kind")
)

// Record is one entry of the exception report.
type Record struct {
	RecordID      string         `json:"record_id"`
	SourceFile    string         `json:"source_file"`
	ExceptionType Kind           `json:"exception_type"`
	Details       string         `json:"details"`
	RawData       map[string]any `json:"raw_data"`
}

// subject carries the values a template may reference.
type subject struct {
	recordID string
	symbol   string
	field    string
}

var templates = map[Kind]func(subject) string{
	CancelledTrade: func(s subject) string {
		return fmt.Sprintf("Trade %s is cancelled.", s.recordID)
	},
	InvalidTimestamp: func(s subject) string {
		return fmt.Sprintf("Trade %s has invalid or missing timestamp.", s.recordID)
	},
	InvalidSymbol: func(s subject) string {
		return fmt.Sprintf("Symbol '%s' is not in reference.", s.symbol)
	},
	MissingField: func(s subject) string {
		return fmt.Sprintf("This trade is missing required field '%s'.", s.field)
	},
}

// Known reports whether k has a message template.
func Known(k Kind) bool {
	_, ok := templates[k]
	return ok
}

// RecordID is the row's trade_id, or its position when the table has none.
func RecordID(row ledger.Row) string {
	if id, ok := row.TradeKey(); ok {
		return id
	}
	return strconv.Itoa(row.Position())
}

// New builds the report entry for a single rejected row.
func New(row ledger.Row, kind Kind, source, field string) (Record, error) {
	if err := check(kind, field); err != nil {
		return Record{}, err
	}
	id := RecordID(row)
	return Record{
		RecordID:      id,
		SourceFile:    source,
		ExceptionType: kind,
		Details:       templates[kind](subject{recordID: id, symbol: row.SymbolCode(), field: field}),
		RawData:       row.RawData(),
	}, nil
}

func check(kind Kind, field string) error {
	if !Known(kind) {
		return fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if kind == MissingField && field == "" {
		return ErrFieldRequired
	}
	return nil
}
