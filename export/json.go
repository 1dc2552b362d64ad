// Package export writes the run results to disk.
package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"trade-recon-go/exception"
	"trade-recon-go/ledger"
)

const (
	CleanedTradesFile = "cleaned_trades.json"
	ExceptionsFile    = "exceptions.json"
)

// Encode writes v as indented JSON with a trailing newline. Map keys are
// sorted by encoding/json, so equal inputs give identical bytes.
func Encode(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// Write stores both reports in dir, creating it if needed. Nil slices are
// written as empty arrays.
func Write(dir string, cleaned []ledger.CleanedTrade, exceptions []exception.Record) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if cleaned == nil {
		cleaned = []ledger.CleanedTrade{}
	}
	if exceptions == nil {
		exceptions = []exception.Record{}
	}
	if err := writeFile(filepath.Join(dir, CleanedTradesFile), cleaned); err != nil {
		return err
	}
	return writeFile(filepath.Join(dir, ExceptionsFile), exceptions)
}

// writeFile goes through a temp file and rename so readers never see a
// half-written report.
func writeFile(path string, v any) error {
	var buf bytes.Buffer
	if err := Encode(&buf, v); err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	return nil
}
