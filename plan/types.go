/*
Package plan provides the payment plan model and the negotiation engine.

PURPOSE:
  A unit is sold against a standard "table" plan: a down payment, a run of
  monthly installments, a run of annual payments, a single balloon payment,
  and whatever remains financed. Clients negotiate by pinning some of those
  values. This package resolves a partial client override against the table
  plan and converts a negotiated total back into a bucket-level override.

KEY CONCEPTS IN THIS FILE (types.go):
  - PaymentDetail: a repeating bucket (value per occurrence x count)
  - PaymentPlan:   a fully specified plan
  - Optional:      an explicitly set-or-unset override field
  - Override:      a partial plan proposed by the client
  - Bucket:        the three buckets that can absorb a shortfall

DESIGN PRINCIPLES:
  1. Purity: Resolve and ApplyDiscount take all state as arguments
  2. Precision: money is decimal.Decimal, never float64
  3. Explicit absence: an unset field is not the same as a zero field
  4. Counts are structural: only values are negotiated

USAGE:
  resolved := plan.Resolve(unit.TablePlan, plan.Override{
      DownPayment: plan.Set(decimal.NewFromInt(80000)),
  })

SEE ALSO:
  - resolve.go:  shortfall absorption
  - discount.go: discount reallocation
  - summary.go:  negotiation statistics
  - json.go:     wire forms and the validation boundary
*/
package plan

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// PAYMENT DETAIL - A repeating payment bucket
// =============================================================================

// PaymentDetail is a per-occurrence value repeated Count times.
type PaymentDetail struct {
	Value decimal.Decimal
	Count int
}

// NewPaymentDetail builds a bucket from a float value, mostly for fixtures.
func NewPaymentDetail(value float64, count int) PaymentDetail {
	return PaymentDetail{Value: decimal.NewFromFloat(value), Count: count}
}

// Total is Value x Count.
func (d PaymentDetail) Total() decimal.Decimal {
	return d.Value.Mul(decimal.NewFromInt(int64(d.Count)))
}

// Equal compares value and count.
func (d PaymentDetail) Equal(o PaymentDetail) bool {
	return d.Count == o.Count && d.Value.Equal(o.Value)
}

// =============================================================================
// PAYMENT PLAN - A fully specified plan
// =============================================================================

// PaymentPlan is a complete payment plan. For a resolved plan Financed always
// equals Total minus everything paid before financing.
type PaymentPlan struct {
	Total        decimal.Decimal
	DownPayment  decimal.Decimal
	Installments PaymentDetail
	Annual       PaymentDetail
	Balloon      decimal.Decimal
	Financed     decimal.Decimal
}

// PaidBeforeFinancing sums down payment, both recurring buckets and balloon.
func (p PaymentPlan) PaidBeforeFinancing() decimal.Decimal {
	return p.DownPayment.
		Add(p.Installments.Total()).
		Add(p.Annual.Total()).
		Add(p.Balloon)
}

// ComputeFinanced returns the financed balance implied by the other fields.
func (p PaymentPlan) ComputeFinanced() decimal.Decimal {
	return p.Total.Sub(p.PaidBeforeFinancing())
}

// WithFinanced returns a copy of p with Financed recomputed.
func (p PaymentPlan) WithFinanced() PaymentPlan {
	p.Financed = p.ComputeFinanced()
	return p
}

// IsConsistent reports whether Financed matches the other fields within tolerance.
func (p PaymentPlan) IsConsistent(tolerance decimal.Decimal) bool {
	return p.Financed.Sub(p.ComputeFinanced()).Abs().LessThanOrEqual(tolerance)
}

// Equal compares every field by value.
func (p PaymentPlan) Equal(o PaymentPlan) bool {
	return p.Total.Equal(o.Total) &&
		p.DownPayment.Equal(o.DownPayment) &&
		p.Installments.Equal(o.Installments) &&
		p.Annual.Equal(o.Annual) &&
		p.Balloon.Equal(o.Balloon) &&
		p.Financed.Equal(o.Financed)
}

// =============================================================================
// BUCKETS
// =============================================================================

// Bucket identifies a payment bucket that can absorb a down payment shortfall.
type Bucket string

const (
	BucketNone         Bucket = ""
	BucketInstallments Bucket = "installments"
	BucketAnnual       Bucket = "annual"
	BucketBalloon      Bucket = "balloon"
)

// absorptionOrder is fixed and not configurable.
var absorptionOrder = [...]Bucket{BucketInstallments, BucketAnnual, BucketBalloon}

// =============================================================================
// OPTIONAL - unset | set(value)
// =============================================================================

// Optional is an override field. The zero value is unset.
type Optional struct {
	value decimal.Decimal
	set   bool
}

// Set pins a value.
func Set(v decimal.Decimal) Optional {
	return Optional{value: v, set: true}
}

// SetFloat pins a float value. The caller must have checked it is finite.
func SetFloat(v float64) Optional {
	return Set(decimal.NewFromFloat(v))
}

// Unset is the "use the table or derived value" state.
func Unset() Optional { return Optional{} }

func (o Optional) IsSet() bool { return o.set }

// Get returns the pinned value and whether one was set.
func (o Optional) Get() (decimal.Decimal, bool) { return o.value, o.set }

// Or returns the pinned value, or fallback when unset.
func (o Optional) Or(fallback decimal.Decimal) decimal.Decimal {
	if o.set {
		return o.value
	}
	return fallback
}

// Equal treats two unset fields as equal regardless of stored value.
func (o Optional) Equal(other Optional) bool {
	if o.set != other.set {
		return false
	}
	return !o.set || o.value.Equal(other.value)
}

// =============================================================================
// OVERRIDE - The client's partial plan
// =============================================================================

// Override is a client proposal. Installments and Annual pin the per-occurrence
// value only; counts are never negotiable. Override holds no references, so a
// plain assignment is a full clone.
type Override struct {
	Total        Optional
	DownPayment  Optional
	Installments Optional
	Annual       Optional
	Balloon      Optional
}

// IsEmpty reports whether no field is pinned.
func (o Override) IsEmpty() bool {
	return !o.Total.IsSet() &&
		!o.DownPayment.IsSet() &&
		!o.Installments.IsSet() &&
		!o.Annual.IsSet() &&
		!o.Balloon.IsSet()
}

// Equal compares every field.
func (o Override) Equal(other Override) bool {
	return o.Total.Equal(other.Total) &&
		o.DownPayment.Equal(other.DownPayment) &&
		o.Installments.Equal(other.Installments) &&
		o.Annual.Equal(other.Annual) &&
		o.Balloon.Equal(other.Balloon)
}

func (o Override) bucket(b Bucket) Optional {
	switch b {
	case BucketInstallments:
		return o.Installments
	case BucketAnnual:
		return o.Annual
	case BucketBalloon:
		return o.Balloon
	}
	return Optional{}
}
