package plan

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// RESOLUTION - Result of applying an override to a table plan
// =============================================================================

// Resolution is a resolved plan together with how the down payment shortfall
// was placed.
type Resolution struct {
	Plan       PaymentPlan
	Shortfall  decimal.Decimal // table down payment minus proposed, floored at zero
	AbsorbedBy Bucket          // BucketNone when there was nothing to absorb or no eligible bucket
	Unabsorbed decimal.Decimal // shortfall left after every bucket was visited
}

// Warning is a non-fatal condition of a resolved plan.
type Warning string

const (
	// WarningNegativeFinanced means the buckets pay more than the total.
	WarningNegativeFinanced Warning = "negative_financed"

	// WarningUnabsorbedShortfall means every bucket was pinned or ineligible,
	// so the shortfall only shows up through the smaller down payment.
	WarningUnabsorbedShortfall Warning = "unabsorbed_shortfall"
)

// Warnings lists the non-fatal conditions of the resolution.
func (r Resolution) Warnings() []Warning {
	var ws []Warning
	if r.Plan.Financed.IsNegative() {
		ws = append(ws, WarningNegativeFinanced)
	}
	if r.Unabsorbed.IsPositive() {
		ws = append(ws, WarningUnabsorbedShortfall)
	}
	return ws
}

// =============================================================================
// RESOLVE
// =============================================================================

// Resolve applies a client override to a table plan.
func Resolve(table PaymentPlan, o Override) PaymentPlan {
	return ResolveDetailed(table, o).Plan
}

// ResolveDetailed applies a client override to a table plan and reports where
// the down payment shortfall went.
//
// Pinned fields are used verbatim. When the proposed down payment is below the
// table's, the whole shortfall goes into the first bucket, in the order
// installments, annual, balloon, that is neither pinned nor ineligible. A
// recurring bucket with a zero count is ineligible. The shortfall is never
// split across buckets and a surplus down payment never moves money.
func ResolveDetailed(table PaymentPlan, o Override) Resolution {
	downPayment := o.DownPayment.Or(table.DownPayment)
	shortfall := decimal.Max(decimal.Zero, table.DownPayment.Sub(downPayment))

	resolved := PaymentPlan{
		Total:        o.Total.Or(table.Total),
		DownPayment:  downPayment,
		Installments: PaymentDetail{Value: table.Installments.Value, Count: table.Installments.Count},
		Annual:       PaymentDetail{Value: table.Annual.Value, Count: table.Annual.Count},
		Balloon:      table.Balloon,
	}

	remaining := shortfall
	absorbedBy := BucketNone

	for _, b := range absorptionOrder {
		if pinned, ok := o.bucket(b).Get(); ok {
			setBucketValue(&resolved, b, pinned)
			continue
		}
		if !remaining.IsPositive() || !eligible(table, b) {
			continue
		}
		setBucketValue(&resolved, b, absorb(table, b, remaining))
		absorbedBy = b
		remaining = decimal.Zero
	}

	resolved.Financed = resolved.ComputeFinanced()

	return Resolution{
		Plan:       resolved,
		Shortfall:  shortfall,
		AbsorbedBy: absorbedBy,
		Unabsorbed: remaining,
	}
}

func eligible(table PaymentPlan, b Bucket) bool {
	switch b {
	case BucketInstallments:
		return table.Installments.Count > 0
	case BucketAnnual:
		return table.Annual.Count > 0
	case BucketBalloon:
		return true
	}
	return false
}

// absorb returns the bucket's new per-occurrence value once amount is added to
// its table total.
func absorb(table PaymentPlan, b Bucket, amount decimal.Decimal) decimal.Decimal {
	switch b {
	case BucketInstallments:
		return spread(table.Installments.Total().Add(amount), table.Installments.Count)
	case BucketAnnual:
		return spread(table.Annual.Total().Add(amount), table.Annual.Count)
	default:
		return table.Balloon.Add(amount)
	}
}

// spread divides a bucket total over count occurrences. count must be positive.
func spread(total decimal.Decimal, count int) decimal.Decimal {
	return total.Div(decimal.NewFromInt(int64(count)))
}

func setBucketValue(p *PaymentPlan, b Bucket, v decimal.Decimal) {
	switch b {
	case BucketInstallments:
		p.Installments.Value = v
	case BucketAnnual:
		p.Annual.Value = v
	case BucketBalloon:
		p.Balloon = v
	}
}
