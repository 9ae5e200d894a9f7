package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestOreToKroner(t *testing.T) {
	assert.Equal(t, "500", OreToKroner(50000).String())
	assert.Equal(t, "250.5", OreToKroner(25050).String())
	assert.Equal(t, "0.01", OreToKroner(1).String())
	assert.Equal(t, "0", OreToKroner(0).String())
}

func TestKronerToOre(t *testing.T) {
	assert.Equal(t, int64(50000), KronerToOre(decimal.NewFromInt(500)))
	assert.Equal(t, int64(25050), KronerToOre(decimal.RequireFromString("250.50")))
	// Sub-øre fractions truncate.
	assert.Equal(t, int64(100), KronerToOre(decimal.RequireFromString("1.009")))
}

func TestRoundTrip(t *testing.T) {
	for _, ore := range []int64{0, 1, 99, 100, 25050, 1_000_000_00} {
		assert.Equal(t, ore, KronerToOre(OreToKroner(ore)))
	}
}

func TestFormatNOK(t *testing.T) {
	assert.Equal(t, "500.00 kr", FormatNOK(50000))
	assert.Equal(t, "250.50 kr", FormatNOK(25050))
	assert.Equal(t, "0.01 kr", FormatNOK(1))
}
