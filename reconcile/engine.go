// Package reconcile matches validated ledger trades against counterparty fills.
package reconcile

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"trade-recon-go/ledger"
)

// DefaultPriceTolerance is the inclusive absolute price difference allowed
// between a trade and a confirming fill.
const DefaultPriceTolerance = 0.01

// Config 对账参数
type Config struct {
	PriceTolerance float64 // 价格容差（含边界）
}

// Engine 成交对账引擎
type Engine struct {
	tolerance decimal.Decimal

	mu sync.RWMutex

	// 统计信息
	totalRuns       int64
	tradesSeen      int64
	confirmed       int64
	unconfirmed     int64
	discrepant      int64
	lastReconcileAt time.Time
}

// NewEngine 创建对账引擎
func NewEngine(cfg Config) *Engine {
	if cfg.PriceTolerance <= 0 {
		cfg.PriceTolerance = DefaultPriceTolerance
	}
	return &Engine{tolerance: decimal.NewFromFloat(cfg.PriceTolerance)}
}

// Key identifies the related-fill group of a trade.
type Key struct {
	TradeID string
	Symbol  string
}

// FillIndex groups fills by (our_trade_id, symbol), preserving input order.
type FillIndex map[Key][]*ledger.Fill

// IndexFills builds the join index for a fill table.
func IndexFills(fills []*ledger.Fill) FillIndex {
	idx := make(FillIndex, len(fills))
	for _, f := range fills {
		k := Key{TradeID: f.OurTradeID, Symbol: f.Symbol}
		idx[k] = append(idx[k], f)
	}
	return idx
}

// Related returns the fills that confirm trade, if any.
func (idx FillIndex) Related(trade *ledger.Trade) []*ledger.Fill {
	return idx[Key{TradeID: trade.TradeID, Symbol: trade.Symbol}]
}

// Matches reports whether fill agrees with trade: price within tolerance
// (inclusive) and identical quantity.
func (e *Engine) Matches(trade *ledger.Trade, fill *ledger.Fill) bool {
	if trade.Price == nil || fill.Price == nil || trade.Quantity == nil || fill.Quantity == nil {
		return false
	}
	if *trade.Quantity != *fill.Quantity {
		return false
	}
	diff := decimal.NewFromFloat(*trade.Price).Sub(decimal.NewFromFloat(*fill.Price)).Abs()
	return diff.LessThanOrEqual(e.currentTolerance())
}

func (e *Engine) currentTolerance() decimal.Decimal {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.tolerance
}

// Classify returns the reconciliation flags for one trade given its related
// fills. A trade is clean as soon as any related fill matches.
func (e *Engine) Classify(trade *ledger.Trade, related []*ledger.Fill) (confirmed, discrepancy bool) {
	if len(related) == 0 {
		return false, true
	}
	for _, f := range related {
		if e.Matches(trade, f) {
			return true, false
		}
	}
	return true, true
}

// Reconcile emits one cleaned trade per input trade, in input order.
func (e *Engine) Reconcile(trades []*ledger.Trade, fills []*ledger.Fill) []ledger.CleanedTrade {
	idx := IndexFills(fills)
	out := make([]ledger.CleanedTrade, 0, len(trades))

	var confirmed, discrepant int64
	for _, t := range trades {
		ok, bad := e.Classify(t, idx.Related(t))
		if ok {
			confirmed++
		}
		if bad {
			discrepant++
		}
		out = append(out, cleaned(t, ok, bad))
	}

	e.mu.Lock()
	e.totalRuns++
	e.tradesSeen += int64(len(trades))
	e.confirmed += confirmed
	e.unconfirmed += int64(len(trades)) - confirmed
	e.discrepant += discrepant
	e.lastReconcileAt = time.Now()
	e.mu.Unlock()

	return out
}

func cleaned(t *ledger.Trade, confirmed, discrepancy bool) ledger.CleanedTrade {
	c := ledger.CleanedTrade{
		TradeID:               t.TradeID,
		TimestampUTC:          t.Timestamp,
		Symbol:                t.Symbol,
		BuyerID:               t.BuyerID,
		SellerID:              t.SellerID,
		CounterpartyConfirmed: confirmed,
		DiscrepancyFlag:       discrepancy,
	}
	if t.Quantity != nil {
		c.Quantity = *t.Quantity
	}
	if t.Price != nil {
		c.Price = *t.Price
	}
	return c
}

// Stats 对账统计信息
type Stats struct {
	TotalRuns       int64
	TradesSeen      int64
	Confirmed       int64
	Unconfirmed     int64
	Discrepant      int64
	LastReconcileAt time.Time
	PriceTolerance  float64
}

// Statistics 获取对账统计信息
func (e *Engine) Statistics() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	tol, _ := e.tolerance.Float64()
	return Stats{
		TotalRuns:       e.totalRuns,
		TradesSeen:      e.tradesSeen,
		Confirmed:       e.confirmed,
		Unconfirmed:     e.unconfirmed,
		Discrepant:      e.discrepant,
		LastReconcileAt: e.lastReconcileAt,
		PriceTolerance:  tol,
	}
}

// UpdateTolerance 更新价格容差，非正值被忽略
func (e *Engine) UpdateTolerance(tolerance float64) {
	if tolerance <= 0 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tolerance = decimal.NewFromFloat(tolerance)
}
