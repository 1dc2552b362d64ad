package pipeline

import (
	"trade-recon-go/exception"
	"trade-recon-go/ledger"
	"trade-recon-go/normalize"
)

// Gate is a single pass/fail rule. Rows that fail are reported as Kind;
// Field names the column for missing_field gates.
type Gate[R ledger.Record] struct {
	Name  string
	Kind  exception.Kind
	Field string
	Pass  func(R) bool
}

// Apply splits rows into survivors and rejects, preserving order in both.
func (g Gate[R]) Apply(rows []R) (kept, rejected []R) {
	kept = make([]R, 0, len(rows))
	for _, r := range rows {
		if g.Pass(r) {
			kept = append(kept, r)
		} else {
			rejected = append(rejected, r)
		}
	}
	return kept, rejected
}

// cancelledGate only applies to the trade ledger and runs before the shared gates.
func cancelledGate() Gate[*ledger.Trade] {
	return Gate[*ledger.Trade]{
		Name: "cancelled",
		Kind: exception.CancelledTrade,
		Pass: func(t *ledger.Trade) bool { return !t.Cancelled() },
	}
}

// SharedGates returns the gates both tables go through, in evaluation order.
func SharedGates[R ledger.Record](active map[string]struct{}) []Gate[R] {
	return []Gate[R]{
		{
			Name: "symbol",
			Kind: exception.InvalidSymbol,
			Pass: func(r R) bool {
				_, ok := active[r.SymbolCode()]
				return ok
			},
		},
		{
			Name:  "price",
			Kind:  exception.MissingField,
			Field: ledger.ColPrice,
			Pass:  func(r R) bool { return r.PriceValue() != nil },
		},
		{
			Name:  "quantity",
			Kind:  exception.MissingField,
			Field: ledger.ColQuantity,
			Pass:  func(r R) bool { return r.QuantityValue() != nil },
		},
		{
			// rewrites the timestamp in place; rejects keep the null marker
			Name: "timestamp",
			Kind: exception.InvalidTimestamp,
			Pass: func(r R) bool {
				ts, ok := normalize.Timestamp(r.RawTimestamp())
				r.SetTimestamp(ts)
				return ok
			},
		},
	}
}
