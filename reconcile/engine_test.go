package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trade-recon-go/ledger"
)

func f(v float64) *float64 { return &v }

func trade(id, sym string, qty, px float64) *ledger.Trade {
	return &ledger.Trade{TradeID: id, Symbol: sym, Quantity: f(qty), Price: f(px), Timestamp: "2024-01-15T09:30:00.000Z", BuyerID: "B1", SellerID: "S1"}
}

func fill(id, sym string, qty, px float64) *ledger.Fill {
	return &ledger.Fill{OurTradeID: id, Symbol: sym, Quantity: f(qty), Price: f(px)}
}

func TestNewEngineDefaultTolerance(t *testing.T) {
	e := NewEngine(Config{})
	assert.Equal(t, DefaultPriceTolerance, e.Statistics().PriceTolerance)

	e = NewEngine(Config{PriceTolerance: 0.05})
	assert.Equal(t, 0.05, e.Statistics().PriceTolerance)
}

func TestReconcileConfirmedWithinTolerance(t *testing.T) {
	e := NewEngine(Config{})
	out := e.Reconcile(
		[]*ledger.Trade{trade("T1", "AAPL", 100, 50.00)},
		[]*ledger.Fill{fill("T1", "AAPL", 100, 50.005)},
	)
	require.Len(t, out, 1)
	assert.True(t, out[0].CounterpartyConfirmed)
	assert.False(t, out[0].DiscrepancyFlag)
}

func TestReconcilePriceOutsideTolerance(t *testing.T) {
	e := NewEngine(Config{})
	out := e.Reconcile(
		[]*ledger.Trade{trade("T1", "AAPL", 100, 50.00)},
		[]*ledger.Fill{fill("T1", "AAPL", 100, 50.02)},
	)
	require.Len(t, out, 1)
	assert.True(t, out[0].CounterpartyConfirmed)
	assert.True(t, out[0].DiscrepancyFlag)
}

func TestToleranceBoundaryIsInclusive(t *testing.T) {
	e := NewEngine(Config{})
	// 0.31 - 0.30 is 0.010000000000000009 in binary floating point
	assert.True(t, e.Matches(trade("T1", "X", 1, 0.30), fill("T1", "X", 1, 0.31)))
	assert.True(t, e.Matches(trade("T1", "X", 1, 50.00), fill("T1", "X", 1, 49.99)))
	assert.False(t, e.Matches(trade("T1", "X", 1, 50.00), fill("T1", "X", 1, 49.989)))
}

func TestQuantityMustBeExact(t *testing.T) {
	e := NewEngine(Config{})
	assert.False(t, e.Matches(trade("T1", "X", 100, 10), fill("T1", "X", 100.0001, 10)))
}

func TestReconcileUnconfirmed(t *testing.T) {
	e := NewEngine(Config{})
	out := e.Reconcile(
		[]*ledger.Trade{trade("T2", "AAPL", 10, 1)},
		[]*ledger.Fill{fill("T1", "AAPL", 10, 1)},
	)
	require.Len(t, out, 1)
	assert.False(t, out[0].CounterpartyConfirmed)
	assert.True(t, out[0].DiscrepancyFlag)
}

func TestSymbolMustMatchExactly(t *testing.T) {
	e := NewEngine(Config{})
	out := e.Reconcile(
		[]*ledger.Trade{trade("T1", "AAPL", 10, 1)},
		[]*ledger.Fill{fill("T1", "aapl", 10, 1), fill("T1", "MSFT", 10, 1)},
	)
	assert.False(t, out[0].CounterpartyConfirmed)
}

func TestAnyMatchingFillClearsDiscrepancy(t *testing.T) {
	e := NewEngine(Config{})
	tr := trade("T1", "AAPL", 100, 50)
	related := []*ledger.Fill{
		fill("T1", "AAPL", 90, 50),
		fill("T1", "AAPL", 100, 50.5),
		fill("T1", "AAPL", 100, 50.01),
	}
	ok, bad := e.Classify(tr, related)
	assert.True(t, ok)
	assert.False(t, bad)

	ok, bad = e.Classify(tr, related[:2])
	assert.True(t, ok)
	assert.True(t, bad)
}

func TestCardinalityIsPerTrade(t *testing.T) {
	e := NewEngine(Config{})
	trades := []*ledger.Trade{trade("T1", "AAPL", 1, 1), trade("T2", "MSFT", 2, 2)}
	fills := []*ledger.Fill{
		fill("T1", "AAPL", 1, 1),
		fill("T1", "AAPL", 1, 1),
		fill("T1", "AAPL", 1, 1),
	}
	out := e.Reconcile(trades, fills)
	require.Len(t, out, 2)
	assert.Equal(t, "T1", out[0].TradeID)
	assert.Equal(t, "T2", out[1].TradeID)
	assert.Equal(t, "B1", out[0].BuyerID)
	assert.Equal(t, "2024-01-15T09:30:00.000Z", out[0].TimestampUTC)
}

func TestIndexFillsKeepsOrder(t *testing.T) {
	a, b := fill("T1", "AAPL", 1, 1), fill("T1", "AAPL", 2, 2)
	idx := IndexFills([]*ledger.Fill{a, fill("T2", "AAPL", 1, 1), b})
	assert.Equal(t, []*ledger.Fill{a, b}, idx.Related(trade("T1", "AAPL", 0, 0)))
	assert.Nil(t, idx.Related(trade("T3", "AAPL", 0, 0)))
}

func TestStatistics(t *testing.T) {
	e := NewEngine(Config{})
	stats := e.Statistics()
	assert.Zero(t, stats.TotalRuns)
	assert.True(t, stats.LastReconcileAt.IsZero())

	e.Reconcile(
		[]*ledger.Trade{trade("T1", "AAPL", 1, 1), trade("T2", "AAPL", 1, 1), trade("T3", "AAPL", 1, 1)},
		[]*ledger.Fill{fill("T1", "AAPL", 1, 1), fill("T2", "AAPL", 2, 1)},
	)

	stats = e.Statistics()
	assert.Equal(t, int64(1), stats.TotalRuns)
	assert.Equal(t, int64(3), stats.TradesSeen)
	assert.Equal(t, int64(2), stats.Confirmed)
	assert.Equal(t, int64(1), stats.Unconfirmed)
	assert.Equal(t, int64(2), stats.Discrepant)
	assert.False(t, stats.LastReconcileAt.IsZero())
}

func TestUpdateTolerance(t *testing.T) {
	e := NewEngine(Config{})
	tr, fl := trade("T1", "X", 1, 10), fill("T1", "X", 1, 10.5)
	assert.False(t, e.Matches(tr, fl))

	e.UpdateTolerance(1)
	assert.True(t, e.Matches(tr, fl))

	// 非正值应被忽略
	e.UpdateTolerance(0)
	assert.Equal(t, 1.0, e.Statistics().PriceTolerance)
}

func BenchmarkReconcile(b *testing.B) {
	e := NewEngine(Config{})
	trades := make([]*ledger.Trade, 0, 1000)
	fills := make([]*ledger.Fill, 0, 1000)
	for i := 0; i < 1000; i++ {
		id := string(rune('A'+i%26)) + string(rune('a'+i/26%26))
		trades = append(trades, trade(id, "AAPL", 100, 50))
		fills = append(fills, fill(id, "AAPL", 100, 50.004))
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.Reconcile(trades, fills)
	}
}
