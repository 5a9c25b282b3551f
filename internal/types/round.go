package types

import (
	"github.com/shopspring/decimal"
)

// RoundDown floors a value to the given number of decimal places. Outbound
// quantities must never be rounded up: overstating the available balance gets
// the order rejected.
func RoundDown(v float64, places int32) float64 {
	f, _ := decimal.NewFromFloat(v).RoundFloor(places).Float64()
	return f
}

// FormatQty floors a quantity to the given precision and renders it with a
// fixed number of decimal places, the way the exchange expects it.
func FormatQty(v float64, places int32) string {
	return decimal.NewFromFloat(v).RoundFloor(places).StringFixed(places)
}

// FormatPrice rounds a price to the given precision and renders it with a
// fixed number of decimal places.
func FormatPrice(v float64, places int32) string {
	return decimal.NewFromFloat(v).Round(places).StringFixed(places)
}

// RoundPrice rounds a price to the given number of decimal places.
func RoundPrice(v float64, places int32) float64 {
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}
