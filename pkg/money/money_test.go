package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestRound_HalfUp(t *testing.T) {
	cases := map[string]string{
		"0.505":    "0.51",
		"0.504":    "0.50",
		"958.3331": "958.33",
		"958.335":  "958.34",
		"0":        "0.00",
	}
	for in, want := range cases {
		got := Round(decimal.RequireFromString(in))
		assert.Equal(t, want, got.StringFixed(2), "round %s", in)
	}
}

func TestProrate(t *testing.T) {
	monthly := decimal.RequireFromString("30000.00")

	assert.Equal(t, "15000.00", Prorate(monthly, 15, 30).StringFixed(2))
	assert.Equal(t, "30000.00", Prorate(monthly, 30, 30).StringFixed(2))
	assert.Equal(t, "1000.00", Prorate(monthly, 1, 30).StringFixed(2))
	assert.True(t, Prorate(monthly, 15, 0).IsZero(), "zero base days yields zero, not a panic")
}

func TestPercent(t *testing.T) {
	base := decimal.RequireFromString("15333.33")
	assert.Equal(t, "958.33", Percent(base, decimal.RequireFromString("6.25")).StringFixed(2))
	assert.Equal(t, "1073.33", Percent(base, decimal.RequireFromString("7")).StringFixed(2))
}

func TestIsZero_AtMinorUnitPrecision(t *testing.T) {
	assert.True(t, IsZero(decimal.RequireFromString("0.001")))
	assert.False(t, IsZero(decimal.RequireFromString("0.01")))
}
