package combo

import (
	"github.com/shopspring/decimal"

	"combopos/backend/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// PriceBundle applies discount to originalPrice. The result is rounded half
// away from zero to a whole minor unit and never drops below zero.
func PriceBundle(originalPrice int64, discount domain.Discount) int64 {
	original := decimal.NewFromInt(originalPrice)
	value := decimal.NewFromFloat(discount.Value)

	final := original
	switch discount.Type {
	case domain.DiscountPercentage:
		final = original.Mul(hundred.Sub(value)).Div(hundred)
	case domain.DiscountFixed:
		final = original.Sub(value)
	}

	final = final.Round(0)
	if final.IsNegative() {
		return 0
	}
	return final.IntPart()
}
