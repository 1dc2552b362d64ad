package pipeline

import (
	"fmt"

	"trade-recon-go/exception"
	"trade-recon-go/ledger"
	"trade-recon-go/normalize"
)

// Observer is notified after every gate. It must not touch the rows.
type Observer interface {
	GateApplied(source, gate string, kind exception.Kind, kept, rejected int)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(source, gate string, kind exception.Kind, kept, rejected int)

func (f ObserverFunc) GateApplied(source, gate string, kind exception.Kind, kept, rejected int) {
	f(source, gate, kind, kept, rejected)
}

type nopObserver struct{}

func (nopObserver) GateApplied(string, string, exception.Kind, int, int) {}

// Validator runs phase one over the trade ledger and the fill feed.
type Validator struct {
	active   map[string]struct{}
	decimals int32
	observer Observer
}

// NewValidator builds a validator for the given active-symbol set.
func NewValidator(active map[string]struct{}, decimals int32, obs Observer) *Validator {
	if obs == nil {
		obs = nopObserver{}
	}
	return &Validator{active: active, decimals: decimals, observer: obs}
}

// ValidateTrades drops cancelled trades, then applies the shared gates.
// The input table is not modified.
func (v *Validator) ValidateTrades(tbl ledger.Table[*ledger.Trade], rec *exception.Recorder) ([]*ledger.Trade, error) {
	if err := tbl.Require(ledger.TradeColumns...); err != nil {
		return nil, err
	}
	rows := make([]*ledger.Trade, len(tbl.Rows))
	for i, t := range tbl.Rows {
		rows[i] = t.Clone()
	}
	gates := append([]Gate[*ledger.Trade]{cancelledGate()}, SharedGates[*ledger.Trade](v.active)...)
	return runGates(v, tbl.Source, rows, gates, rec)
}

// ValidateFills applies the shared gates to the counterparty feed.
func (v *Validator) ValidateFills(tbl ledger.Table[*ledger.Fill], rec *exception.Recorder) ([]*ledger.Fill, error) {
	if err := tbl.Require(ledger.FillColumns...); err != nil {
		return nil, err
	}
	rows := make([]*ledger.Fill, len(tbl.Rows))
	for i, f := range tbl.Rows {
		rows[i] = f.Clone()
	}
	return runGates(v, tbl.Source, rows, SharedGates[*ledger.Fill](v.active), rec)
}

func runGates[R ledger.Record](v *Validator, source string, rows []R, gates []Gate[R], rec *exception.Recorder) ([]R, error) {
	for _, g := range gates {
		kept, rejected := g.Apply(rows)
		batch := make([]ledger.Row, len(rejected))
		for i, r := range rejected {
			batch[i] = r
		}
		if err := rec.Record(batch, g.Kind, source, g.Field); err != nil {
			return nil, fmt.Errorf("%s gate %s: %w", source, g.Name, err)
		}
		v.observer.GateApplied(source, g.Name, g.Kind, len(kept), len(rejected))
		rows = kept
	}
	for _, r := range rows {
		// price gate guarantees non-nil here
		r.SetPrice(normalize.RoundPrice(*r.PriceValue(), v.decimals))
	}
	return rows, nil
}
