package utils

import (
	"github.com/shopspring/decimal"
)

// Safe float64 to decimal conversion
func FloatToDecimal(val float64) decimal.Decimal {
	return decimal.NewFromFloat(val)
}

// Safe decimal to float64 conversion (may lose precision!)
func DecimalToFloat(val decimal.Decimal) float64 {
	f, _ := val.Float64()
	return f
}

// MulFloat multiplies two float inputs in decimal space so that
// price * size does not pick up binary rounding noise.
func MulFloat(a, b float64) float64 {
	return DecimalToFloat(FloatToDecimal(a).Mul(FloatToDecimal(b)))
}
