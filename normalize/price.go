package normalize

import "github.com/shopspring/decimal"

// DefaultPriceDecimals is the precision surviving prices are rounded to.
const DefaultPriceDecimals int32 = 2

// RoundPrice rounds half-to-even on the shortest decimal representation of p,
// so 10.005 becomes 10.00 and 10.015 becomes 10.02 on every run.
func RoundPrice(p float64, places int32) float64 {
	v, _ := decimal.NewFromFloat(p).RoundBank(places).Float64()
	return v
}
