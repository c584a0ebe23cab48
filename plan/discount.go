package plan

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Target is the bucket a negotiated discount is taken from.
type Target string

const (
	TargetFinanced     Target = "financed"
	TargetInstallments Target = "installments"
	TargetAnnual       Target = "annual"
	TargetBalloon      Target = "balloon"
)

// Targets lists every valid target in display order.
var Targets = []Target{TargetFinanced, TargetInstallments, TargetAnnual, TargetBalloon}

// ParseTarget parses a target name, ignoring case and surrounding space.
func ParseTarget(s string) (Target, error) {
	t := Target(strings.ToLower(strings.TrimSpace(s)))
	for _, valid := range Targets {
		if t == valid {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTarget, s)
}

// ApplyDiscount turns a new negotiated total into an override.
//
// The returned override is current with Total pinned to newTotal. For the
// financed target nothing else changes; the smaller total flows into Financed
// on the next Resolve. For a bucket target the difference between the
// resolved total and newTotal is taken from that bucket, floored at zero. A
// discount larger than the bucket is not carried to another bucket. A
// recurring bucket with a zero table count is left untouched.
//
// The caller must run Resolve on the result to get the updated plan.
func ApplyDiscount(current Override, resolved, table PaymentPlan, target Target, newTotal decimal.Decimal) (Override, error) {
	totalDiscount := resolved.Total.Sub(newTotal)

	next := current
	next.Total = Set(newTotal)

	switch target {
	case TargetFinanced:
		return next, nil

	case TargetInstallments:
		if v, ok := discountRecurring(resolved.Installments.Value, table.Installments.Count, totalDiscount); ok {
			next.Installments = Set(v)
		}
		return next, nil

	case TargetAnnual:
		if v, ok := discountRecurring(resolved.Annual.Value, table.Annual.Count, totalDiscount); ok {
			next.Annual = Set(v)
		}
		return next, nil

	case TargetBalloon:
		next.Balloon = Set(decimal.Max(decimal.Zero, resolved.Balloon.Sub(totalDiscount)))
		return next, nil
	}

	return current, fmt.Errorf("%w: %q", ErrUnknownTarget, string(target))
}

// discountRecurring returns the new per-occurrence value, or false when the
// bucket has no occurrences to carry the discount.
func discountRecurring(value decimal.Decimal, quantity int, discount decimal.Decimal) (decimal.Decimal, bool) {
	if quantity <= 0 {
		return decimal.Zero, false
	}
	q := decimal.NewFromInt(int64(quantity))
	bucketTotal := decimal.Max(decimal.Zero, value.Mul(q).Sub(discount))
	return bucketTotal.Div(q), true
}
