package plan

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Summary compares a negotiated plan with its table plan.
type Summary struct {
	Area decimal.Decimal

	TablePricePerArea    decimal.Decimal
	ProposalPricePerArea decimal.Decimal

	// Discount is positive when the proposal is cheaper than the table.
	Discount        decimal.Decimal
	DiscountPercent decimal.Decimal

	TableFinancedPercent    decimal.Decimal
	ProposalFinancedPercent decimal.Decimal

	// FinancingImproved is true when the proposal finances a smaller share.
	FinancingImproved bool
}

// Summarize computes negotiation statistics. Ratios whose denominator is zero
// are reported as zero.
func Summarize(table, resolved PaymentPlan, area decimal.Decimal) Summary {
	discount := table.Total.Sub(resolved.Total)
	tableFinanced := percentOf(table.Financed, table.Total)
	proposalFinanced := percentOf(resolved.Financed, resolved.Total)

	return Summary{
		Area:                    area,
		TablePricePerArea:       ratio(table.Total, area),
		ProposalPricePerArea:    ratio(resolved.Total, area),
		Discount:                discount,
		DiscountPercent:         percentOf(discount, table.Total),
		TableFinancedPercent:    tableFinanced,
		ProposalFinancedPercent: proposalFinanced,
		FinancingImproved:       proposalFinanced.LessThan(tableFinanced),
	}
}

func ratio(n, d decimal.Decimal) decimal.Decimal {
	if !d.IsPositive() {
		return decimal.Zero
	}
	return n.Div(d)
}

func percentOf(part, whole decimal.Decimal) decimal.Decimal {
	return ratio(part, whole).Mul(hundred)
}
