package plan

import (
	"math"

	"github.com/shopspring/decimal"
)

// =============================================================================
// WIRE FORMS
// =============================================================================
//
// Plans travel as plain JSON/YAML numbers. Converting a wire form into the
// decimal model is the validation boundary: NaN and infinities are rejected
// here so they never reach Resolve or ApplyDiscount.

// PaymentDetailJSON is the wire form of PaymentDetail.
type PaymentDetailJSON struct {
	Value float64 `json:"value" yaml:"value"`
	Count int     `json:"count" yaml:"count"`
}

// PaymentPlanJSON is the wire form of PaymentPlan. Financed may be omitted in
// catalog files, in which case it is derived from the other fields.
type PaymentPlanJSON struct {
	Total        float64           `json:"total" yaml:"total"`
	DownPayment  float64           `json:"downPayment" yaml:"downPayment"`
	Installments PaymentDetailJSON `json:"installments" yaml:"installments"`
	Annual       PaymentDetailJSON `json:"annual" yaml:"annual"`
	Balloon      float64           `json:"balloon" yaml:"balloon"`
	Financed     *float64          `json:"financed,omitempty" yaml:"financed,omitempty"`
}

// BucketOverrideJSON pins a recurring bucket's per-occurrence value.
type BucketOverrideJSON struct {
	Value *float64 `json:"value,omitempty" yaml:"value,omitempty"`
}

// OverrideJSON is the wire form of Override. Absent fields are unset.
type OverrideJSON struct {
	Total        *float64            `json:"total,omitempty" yaml:"total,omitempty"`
	DownPayment  *float64            `json:"downPayment,omitempty" yaml:"downPayment,omitempty"`
	Installments *BucketOverrideJSON `json:"installments,omitempty" yaml:"installments,omitempty"`
	Annual       *BucketOverrideJSON `json:"annual,omitempty" yaml:"annual,omitempty"`
	Balloon      *float64            `json:"balloon,omitempty" yaml:"balloon,omitempty"`
}

// CheckFinite rejects NaN and infinities.
func CheckFinite(field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return invalid(field, "must be a finite number")
	}
	return nil
}

// ToPlan converts the wire form. It checks finiteness only; use ValidateTable
// for the stricter rules that apply to catalog plans.
func (j PaymentPlanJSON) ToPlan() (PaymentPlan, error) {
	fields := []struct {
		name  string
		value float64
	}{
		{"total", j.Total},
		{"downPayment", j.DownPayment},
		{"installments.value", j.Installments.Value},
		{"annual.value", j.Annual.Value},
		{"balloon", j.Balloon},
	}
	if j.Financed != nil {
		fields = append(fields, struct {
			name  string
			value float64
		}{"financed", *j.Financed})
	}
	for _, f := range fields {
		if err := CheckFinite(f.name, f.value); err != nil {
			return PaymentPlan{}, err
		}
	}

	p := PaymentPlan{
		Total:        decimal.NewFromFloat(j.Total),
		DownPayment:  decimal.NewFromFloat(j.DownPayment),
		Installments: PaymentDetail{Value: decimal.NewFromFloat(j.Installments.Value), Count: j.Installments.Count},
		Annual:       PaymentDetail{Value: decimal.NewFromFloat(j.Annual.Value), Count: j.Annual.Count},
		Balloon:      decimal.NewFromFloat(j.Balloon),
	}
	if j.Financed != nil {
		p.Financed = decimal.NewFromFloat(*j.Financed)
	} else {
		p.Financed = p.ComputeFinanced()
	}
	return p, nil
}

// PlanToJSON converts a plan to its wire form.
func PlanToJSON(p PaymentPlan) PaymentPlanJSON {
	financed := p.Financed.InexactFloat64()
	return PaymentPlanJSON{
		Total:        p.Total.InexactFloat64(),
		DownPayment:  p.DownPayment.InexactFloat64(),
		Installments: PaymentDetailJSON{Value: p.Installments.Value.InexactFloat64(), Count: p.Installments.Count},
		Annual:       PaymentDetailJSON{Value: p.Annual.Value.InexactFloat64(), Count: p.Annual.Count},
		Balloon:      p.Balloon.InexactFloat64(),
		Financed:     &financed,
	}
}

// ToOverride converts the wire form, rejecting non-finite pinned values.
func (j OverrideJSON) ToOverride() (Override, error) {
	var o Override
	var err error
	if o.Total, err = optionalFrom("total", j.Total); err != nil {
		return Override{}, err
	}
	if o.DownPayment, err = optionalFrom("downPayment", j.DownPayment); err != nil {
		return Override{}, err
	}
	if j.Installments != nil {
		if o.Installments, err = optionalFrom("installments.value", j.Installments.Value); err != nil {
			return Override{}, err
		}
	}
	if j.Annual != nil {
		if o.Annual, err = optionalFrom("annual.value", j.Annual.Value); err != nil {
			return Override{}, err
		}
	}
	if o.Balloon, err = optionalFrom("balloon", j.Balloon); err != nil {
		return Override{}, err
	}
	return o, nil
}

// OverrideToJSON converts an override to its wire form.
func OverrideToJSON(o Override) OverrideJSON {
	var j OverrideJSON
	j.Total = floatPtr(o.Total)
	j.DownPayment = floatPtr(o.DownPayment)
	if v := floatPtr(o.Installments); v != nil {
		j.Installments = &BucketOverrideJSON{Value: v}
	}
	if v := floatPtr(o.Annual); v != nil {
		j.Annual = &BucketOverrideJSON{Value: v}
	}
	j.Balloon = floatPtr(o.Balloon)
	return j
}

func optionalFrom(field string, v *float64) (Optional, error) {
	if v == nil {
		return Unset(), nil
	}
	if err := CheckFinite(field, *v); err != nil {
		return Unset(), err
	}
	return SetFloat(*v), nil
}

func floatPtr(o Optional) *float64 {
	v, ok := o.Get()
	if !ok {
		return nil
	}
	f := v.InexactFloat64()
	return &f
}

// =============================================================================
// TABLE VALIDATION
// =============================================================================

// ValidateTable checks the rules a catalog table plan must meet: every amount
// except Financed is non-negative and both counts are non-negative.
func ValidateTable(p PaymentPlan) error {
	amounts := []struct {
		name  string
		value decimal.Decimal
	}{
		{"total", p.Total},
		{"downPayment", p.DownPayment},
		{"installments.value", p.Installments.Value},
		{"annual.value", p.Annual.Value},
		{"balloon", p.Balloon},
	}
	for _, a := range amounts {
		if a.value.IsNegative() {
			return invalid(a.name, "must not be negative")
		}
	}
	if p.Installments.Count < 0 {
		return invalid("installments.count", "must not be negative")
	}
	if p.Annual.Count < 0 {
		return invalid("annual.count", "must not be negative")
	}
	return nil
}
