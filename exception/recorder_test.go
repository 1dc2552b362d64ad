package exception

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trade-recon-go/ledger"
)

func price(v float64) *float64 { return &v }

func TestNewTemplates(t *testing.T) {
	trade := &ledger.Trade{Index: 4, TradeID: "T7", Symbol: "ZZZ", Price: price(1)}

	cases := []struct {
		kind  Kind
		field string
		want  string
	}{
		{CancelledTrade, "", "Trade T7 is cancelled."},
		{InvalidTimestamp, "", "Trade T7 has invalid or missing timestamp."},
		{InvalidSymbol, "", "Symbol 'ZZZ' is not in reference."},
		{MissingField, "price", "This trade is missing required field 'price'."},
	}
	for _, tc := range cases {
		rec, err := New(trade, tc.kind, "trades.csv", tc.field)
		require.NoError(t, err)
		assert.Equal(t, tc.want, rec.Details)
		assert.Equal(t, tc.kind, rec.ExceptionType)
		assert.Equal(t, "T7", rec.RecordID)
		assert.Equal(t, "trades.csv", rec.SourceFile)
	}
}

func TestRecordIDFallsBackToPosition(t *testing.T) {
	fill := &ledger.Fill{Index: 12, OurTradeID: "T1", Symbol: "AAPL"}
	rec, err := New(fill, InvalidTimestamp, "counterparty_fills.csv", "")
	require.NoError(t, err)
	assert.Equal(t, "12", rec.RecordID)
	assert.Equal(t, "Trade 12 has invalid or missing timestamp.", rec.Details)

	// trade with an empty trade_id cell
	rec, err = New(&ledger.Trade{Index: 0}, CancelledTrade, "trades.csv", "")
	require.NoError(t, err)
	assert.Equal(t, "0", rec.RecordID)
}

func TestRecordMissingFieldNeedsName(t *testing.T) {
	r := NewRecorder()
	rows := []ledger.Row{&ledger.Trade{TradeID: "T1"}}

	err := r.Record(rows, MissingField, "trades.csv", "")
	assert.True(t, errors.Is(err, ErrFieldRequired))
	assert.Zero(t, r.Len())

	// empty batches are still checked
	err = r.Record(nil, MissingField, "trades.csv", "")
	assert.True(t, errors.Is(err, ErrFieldRequired))
}

func TestRecordUnknownKind(t *testing.T) {
	r := NewRecorder()
	err := r.Record([]ledger.Row{&ledger.Trade{}}, Kind("late_fill"), "trades.csv", "")
	assert.True(t, errors.Is(err, ErrUnknownKind))
	assert.Zero(t, r.Len())
}

func TestRecordIsAppendOnly(t *testing.T) {
	r := NewRecorder()
	require.NoError(t, r.Record([]ledger.Row{
		&ledger.Trade{TradeID: "T1", TradeStatus: "CANCELLED"},
		&ledger.Trade{TradeID: "T2", TradeStatus: "CANCELLED"},
	}, CancelledTrade, "trades.csv", ""))
	require.NoError(t, r.Record([]ledger.Row{
		&ledger.Fill{Index: 3, Symbol: "XXX"},
	}, InvalidSymbol, "counterparty_fills.csv", ""))

	got := r.Records()
	require.Len(t, got, 3)
	assert.Equal(t, []string{"T1", "T2", "3"}, []string{got[0].RecordID, got[1].RecordID, got[2].RecordID})
	assert.Equal(t, 2, r.Count(CancelledTrade))
	assert.Equal(t, 1, r.Count(InvalidSymbol))

	// mutating the returned copy does not touch the recorder
	got[0].Details = "changed"
	assert.Equal(t, "Trade T1 is cancelled.", r.Records()[0].Details)
}

func TestRawDataUsesExplicitNulls(t *testing.T) {
	rec, err := New(&ledger.Fill{Index: 1, OurTradeID: "T5", Symbol: "AAPL"}, MissingField, "counterparty_fills.csv", "price")
	require.NoError(t, err)

	for _, col := range ledger.FillColumns {
		assert.Contains(t, rec.RawData, col)
	}
	assert.Nil(t, rec.RawData[ledger.ColPrice])
	assert.Nil(t, rec.RawData[ledger.ColQuantity])
}
