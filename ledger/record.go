package ledger

// Column names as they appear in the source files.
const (
	ColTradeID     = "trade_id"
	ColTimestamp   = "timestamp"
	ColSymbol      = "symbol"
	ColQuantity    = "quantity"
	ColPrice       = "price"
	ColBuyerID     = "buyer_id"
	ColSellerID    = "seller_id"
	ColTradeStatus = "trade_status"
	ColOurTradeID  = "our_trade_id"
	ColIsActive    = "is_active"
)

// StatusCancelled marks a ledger trade that must never reach reconciliation.
const StatusCancelled = "CANCELLED"

var (
	TradeColumns  = []string{ColTradeID, ColTimestamp, ColSymbol, ColQuantity, ColPrice, ColBuyerID, ColSellerID, ColTradeStatus}
	FillColumns   = []string{ColOurTradeID, ColSymbol, ColQuantity, ColPrice, ColTimestamp}
	SymbolColumns = []string{ColSymbol, ColIsActive}
)

// Row is what the exception report needs from any rejected row.
type Row interface {
	// Position is the zero-based index of the row in its source table.
	Position() int
	// TradeKey returns the trade_id when the row's table carries one.
	TradeKey() (string, bool)
	SymbolCode() string
	// RawData snapshots every source column; empty values map to nil.
	RawData() map[string]any
}

// Record is a row that goes through the validation gates.
type Record interface {
	Row
	PriceValue() *float64
	QuantityValue() *float64
	RawTimestamp() string
	SetTimestamp(ts string)
	SetPrice(p float64)
}

// Trade is one row of the internal trade ledger.
type Trade struct {
	Index       int
	TradeID     string
	Timestamp   string
	Symbol      string
	Quantity    *float64
	Price       *float64
	BuyerID     string
	SellerID    string
	TradeStatus string
	// Extra holds columns the loader does not model, keyed by header name.
	Extra map[string]string
}

func (t *Trade) Position() int { return t.Index }

func (t *Trade) TradeKey() (string, bool) { return t.TradeID, t.TradeID != "" }

func (t *Trade) SymbolCode() string { return t.Symbol }

func (t *Trade) PriceValue() *float64 { return t.Price }

func (t *Trade) QuantityValue() *float64 { return t.Quantity }

func (t *Trade) RawTimestamp() string { return t.Timestamp }

func (t *Trade) SetTimestamp(ts string) { t.Timestamp = ts }

func (t *Trade) SetPrice(p float64) { t.Price = &p }

func (t *Trade) Cancelled() bool { return t.TradeStatus == StatusCancelled }

func (t *Trade) RawData() map[string]any {
	raw := map[string]any{
		ColTradeID:     text(t.TradeID),
		ColTimestamp:   text(t.Timestamp),
		ColSymbol:      text(t.Symbol),
		ColQuantity:    number(t.Quantity),
		ColPrice:       number(t.Price),
		ColBuyerID:     text(t.BuyerID),
		ColSellerID:    text(t.SellerID),
		ColTradeStatus: text(t.TradeStatus),
	}
	for k, v := range t.Extra {
		raw[k] = text(v)
	}
	return raw
}

// Clone returns a deep copy so the pipeline never mutates the caller's rows.
func (t *Trade) Clone() *Trade {
	c := *t
	c.Quantity = cloneFloat(t.Quantity)
	c.Price = cloneFloat(t.Price)
	c.Extra = cloneExtra(t.Extra)
	return &c
}

// Fill is one counterparty confirmation row.
type Fill struct {
	Index      int
	OurTradeID string
	Symbol     string
	Quantity   *float64
	Price      *float64
	Timestamp  string
	Extra      map[string]string
}

func (f *Fill) Position() int { return f.Index }

// TradeKey is always absent: fills reference trades through our_trade_id
// but carry no trade_id column of their own.
func (f *Fill) TradeKey() (string, bool) { return "", false }

func (f *Fill) SymbolCode() string { return f.Symbol }

func (f *Fill) PriceValue() *float64 { return f.Price }

func (f *Fill) QuantityValue() *float64 { return f.Quantity }

func (f *Fill) RawTimestamp() string { return f.Timestamp }

func (f *Fill) SetTimestamp(ts string) { f.Timestamp = ts }

func (f *Fill) SetPrice(p float64) { f.Price = &p }

func (f *Fill) RawData() map[string]any {
	raw := map[string]any{
		ColOurTradeID: text(f.OurTradeID),
		ColSymbol:     text(f.Symbol),
		ColQuantity:   number(f.Quantity),
		ColPrice:      number(f.Price),
		ColTimestamp:  text(f.Timestamp),
	}
	for k, v := range f.Extra {
		raw[k] = text(v)
	}
	return raw
}

func (f *Fill) Clone() *Fill {
	c := *f
	c.Quantity = cloneFloat(f.Quantity)
	c.Price = cloneFloat(f.Price)
	c.Extra = cloneExtra(f.Extra)
	return &c
}

// Symbol is one row of the symbol reference table.
type Symbol struct {
	Index    int
	Symbol   string
	IsActive bool
}

// ActiveSymbols reduces the reference table to the set of tradable symbols.
func ActiveSymbols(rows []*Symbol) map[string]struct{} {
	active := make(map[string]struct{}, len(rows))
	for _, s := range rows {
		if s.IsActive {
			active[s.Symbol] = struct{}{}
		}
	}
	return active
}

// CleanedTrade is the enriched output row produced by reconciliation.
type CleanedTrade struct {
	TradeID               string  `json:"trade_id"`
	TimestampUTC          string  `json:"timestamp_utc"`
	Symbol                string  `json:"symbol"`
	Quantity              float64 `json:"quantity"`
	Price                 float64 `json:"price"`
	BuyerID               string  `json:"buyer_id"`
	SellerID              string  `json:"seller_id"`
	CounterpartyConfirmed bool    `json:"counterparty_confirmed"`
	DiscrepancyFlag       bool    `json:"discrepancy_flag"`
}

func text(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func number(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func cloneFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneExtra(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
