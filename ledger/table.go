package ledger

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingColumn is returned when a table lacks a column a gate depends on.
// It is a precondition failure for the whole run, not a per-row exception.
var ErrMissingColumn = errors.New("missing required column")

// Table is a loaded source file: its name, header and typed rows.
type Table[R any] struct {
	Source  string
	Columns []string
	Rows    []R
}

// HasColumn reports whether the header contains name.
func (t Table[R]) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Require checks the header against the given column set.
func (t Table[R]) Require(cols ...string) error {
	var missing []string
	for _, c := range cols {
		if !t.HasColumn(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%s: %w: %s", t.Source, ErrMissingColumn, strings.Join(missing, ","))
	}
	return nil
}
