// Package money formats decimal amounts the way Brazilian sales teams read
// them: "R$ 1.234.567,89" and "12.50%".
package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

const (
	currencySymbol = "R$"
	thousandsSep   = "."
	decimalSep     = ","
)

// FormatBRL renders an amount with two decimal places in pt-BR style.
// Negative amounts get a leading minus: "-R$ 1.000,00".
func FormatBRL(v decimal.Decimal) string {
	rounded := v.Round(2)
	sign := ""
	if rounded.IsNegative() {
		sign = "-"
		rounded = rounded.Neg()
	}

	fixed := rounded.StringFixed(2)
	intPart, fracPart, _ := strings.Cut(fixed, ".")

	return sign + currencySymbol + " " + groupThousands(intPart) + decimalSep + fracPart
}

// FormatPercent renders a percentage with two decimals, e.g. "5.25%".
func FormatPercent(v decimal.Decimal) string {
	return v.StringFixed(2) + "%"
}

// FormatArea renders an area in square meters with pt-BR separators.
func FormatArea(v decimal.Decimal) string {
	s := v.String()
	intPart, fracPart, hasFrac := strings.Cut(strings.TrimPrefix(s, "-"), ".")
	out := groupThousands(intPart)
	if hasFrac {
		out += decimalSep + fracPart
	}
	if v.IsNegative() {
		out = "-" + out
	}
	return out + " m²"
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	head := len(digits) % 3
	if head > 0 {
		b.WriteString(digits[:head])
	}
	for i := head; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteString(thousandsSep)
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
