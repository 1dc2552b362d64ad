// Package pipeline validates the trade ledger and counterparty fills and
// reconciles the survivors into the cleaned trade set.
package pipeline

import (
	"trade-recon-go/exception"
	"trade-recon-go/ledger"
	"trade-recon-go/normalize"
	"trade-recon-go/reconcile"
)

// Config 运行参数
type Config struct {
	PriceTolerance float64 // 对账价格容差
	PriceDecimals  int32   // 价格保留小数位
}

// DefaultConfig returns the reference behaviour: 0.01 tolerance, 2 decimals.
func DefaultConfig() Config {
	return Config{
		PriceTolerance: reconcile.DefaultPriceTolerance,
		PriceDecimals:  normalize.DefaultPriceDecimals,
	}
}

// Input is the three source tables for one run.
type Input struct {
	Trades  ledger.Table[*ledger.Trade]
	Fills   ledger.Table[*ledger.Fill]
	Symbols ledger.Table[*ledger.Symbol]
}

// Output is everything one run produces.
type Output struct {
	CleanedTrades []ledger.CleanedTrade
	Exceptions    []exception.Record
	ValidTrades   []*ledger.Trade
	ValidFills    []*ledger.Fill
}

// Pipeline runs validation then reconciliation. Runs share nothing but the
// engine statistics, so one Pipeline may be reused across runs.
type Pipeline struct {
	cfg      Config
	engine   *reconcile.Engine
	observer Observer
}

// New 创建处理流水线；obs 可以为 nil，PriceDecimals 为 0 时取默认值
func New(cfg Config, obs Observer) *Pipeline {
	if cfg.PriceDecimals <= 0 {
		cfg.PriceDecimals = normalize.DefaultPriceDecimals
	}
	return &Pipeline{
		cfg:      cfg,
		engine:   reconcile.NewEngine(reconcile.Config{PriceTolerance: cfg.PriceTolerance}),
		observer: obs,
	}
}

// Engine exposes the reconciliation engine for statistics.
func (p *Pipeline) Engine() *reconcile.Engine { return p.engine }

// Run executes both phases. A schema error aborts before any row is
// examined; row-level problems only ever land in Output.Exceptions.
func (p *Pipeline) Run(in Input) (Output, error) {
	if err := in.Symbols.Require(ledger.SymbolColumns...); err != nil {
		return Output{}, err
	}
	if err := in.Trades.Require(ledger.TradeColumns...); err != nil {
		return Output{}, err
	}
	if err := in.Fills.Require(ledger.FillColumns...); err != nil {
		return Output{}, err
	}

	v := NewValidator(ledger.ActiveSymbols(in.Symbols.Rows), p.cfg.PriceDecimals, p.observer)
	rec := exception.NewRecorder()

	trades, err := v.ValidateTrades(in.Trades, rec)
	if err != nil {
		return Output{}, err
	}
	fills, err := v.ValidateFills(in.Fills, rec)
	if err != nil {
		return Output{}, err
	}

	return Output{
		CleanedTrades: p.engine.Reconcile(trades, fills),
		Exceptions:    rec.Records(),
		ValidTrades:   trades,
		ValidFills:    fills,
	}, nil
}
