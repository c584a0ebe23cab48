package money_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/warp/proposal-engine/money"
)

func TestFormatBRL(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"0", "R$ 0,00"},
		{"5", "R$ 5,00"},
		{"999.999", "R$ 1.000,00"},
		{"1234.5", "R$ 1.234,50"},
		{"500000", "R$ 500.000,00"},
		{"1234567.891", "R$ 1.234.567,89"},
		{"-140000", "-R$ 140.000,00"},
		{"-0.001", "R$ 0,00"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.expected, money.FormatBRL(decimal.RequireFromString(tt.in)))
		})
	}
}

func TestFormatPercent(t *testing.T) {
	assert.Equal(t, "5.00%", money.FormatPercent(decimal.NewFromInt(5)))
	assert.Equal(t, "28.13%", money.FormatPercent(decimal.RequireFromString("28.125")))
}

func TestFormatArea(t *testing.T) {
	assert.Equal(t, "68,5 m²", money.FormatArea(decimal.RequireFromString("68.5")))
	assert.Equal(t, "1.250 m²", money.FormatArea(decimal.NewFromInt(1250)))
}
