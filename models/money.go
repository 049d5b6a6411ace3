package models

import "github.com/shopspring/decimal"

// SellingPriceFromDiscount applies a percentage discount to a base price in
// minor units, rounding half away from zero.
func SellingPriceFromDiscount(basePrice int64, discountPercent float64) int64 {
	base := decimal.NewFromInt(basePrice)
	factor := decimal.NewFromInt(100).Sub(decimal.NewFromFloat(discountPercent)).Div(decimal.NewFromInt(100))
	return base.Mul(factor).Round(0).IntPart()
}
