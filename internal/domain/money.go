package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Amounts are carried as int64 minor units (øre) end to end; decimal is
// only used at the edges where banking formats talk in whole kroner.

// OreToKroner converts minor units to a decimal major-unit amount.
func OreToKroner(ore int64) decimal.Decimal {
	return decimal.NewFromInt(ore).Div(decimal.NewFromInt(100))
}

// KronerToOre converts a decimal major-unit amount to minor units,
// truncating any sub-øre fraction.
func KronerToOre(kroner decimal.Decimal) int64 {
	return kroner.Mul(decimal.NewFromInt(100)).IntPart()
}

// FormatNOK renders an øre amount as a display string.
func FormatNOK(ore int64) string {
	return fmt.Sprintf("%s kr", OreToKroner(ore).StringFixed(2))
}
