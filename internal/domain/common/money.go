// Package common holds shared domain errors and money helpers.
package common

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Centavos is a money amount in ARS cents. Stored amounts are always
// centavos; decimal math is only used transiently for interest calculation.
type Centavos = int64

// CentavosToDecimal converts cents to a decimal pesos amount
func CentavosToDecimal(c Centavos) decimal.Decimal {
	return decimal.New(c, -2)
}

// DecimalToCentavos converts a decimal pesos amount to cents, rounding half up
func DecimalToCentavos(d decimal.Decimal) Centavos {
	return d.Mul(decimal.New(100, 0)).Round(0).IntPart()
}

// FormatCentavos renders cents as a fixed two-decimal string (e.g. 123456 -> "1234.56").
// Locale-independent: always period decimal separator, no thousands grouping.
func FormatCentavos(c Centavos) string {
	neg := ""
	if c < 0 {
		neg = "-"
		c = -c
	}
	return fmt.Sprintf("%s%d.%02d", neg, c/100, c%100)
}
