package plan_test

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/proposal-engine/plan"
)

func TestSummarize(t *testing.T) {
	// GIVEN: The consistent table and a 5% cheaper proposal
	table := consistentTable()
	resolved := plan.Resolve(table, plan.Override{Total: pin("475000")})

	s := plan.Summarize(table, resolved, d("100"))

	assertDecimal(t, "5000", s.TablePricePerArea)
	assertDecimal(t, "4750", s.ProposalPricePerArea)
	assertDecimal(t, "25000", s.Discount)
	assertDecimal(t, "5", s.DiscountPercent)
	assertDecimal(t, "28", s.TableFinancedPercent)
	// 115000 / 475000
	assert.True(t, s.ProposalFinancedPercent.LessThan(s.TableFinancedPercent))
	assert.True(t, s.FinancingImproved)
}

func TestSummarize_ZeroDenominators(t *testing.T) {
	zero := plan.PaymentPlan{}

	s := plan.Summarize(zero, zero, d("0"))

	assert.True(t, s.TablePricePerArea.IsZero())
	assert.True(t, s.DiscountPercent.IsZero())
	assert.True(t, s.TableFinancedPercent.IsZero())
	assert.False(t, s.FinancingImproved)
}

// =============================================================================
// WIRE BOUNDARY
// =============================================================================

func TestOverrideJSON_AbsentFieldsStayUnset(t *testing.T) {
	var j plan.OverrideJSON
	require.NoError(t, json.Unmarshal([]byte(`{"downPayment": 80000, "installments": {"value": 0}}`), &j))

	o, err := j.ToOverride()
	require.NoError(t, err)

	assert.False(t, o.Total.IsSet())
	assert.False(t, o.Annual.IsSet())
	assert.False(t, o.Balloon.IsSet())
	v, ok := o.Installments.Get()
	assert.True(t, ok, "an explicit zero is a pin")
	assert.True(t, v.IsZero())
	assertDecimal(t, "80000", o.DownPayment.Or(d("0")))
}

func TestOverrideJSON_EmptyBucketObjectIsUnset(t *testing.T) {
	var j plan.OverrideJSON
	require.NoError(t, json.Unmarshal([]byte(`{"annual": {}}`), &j))

	o, err := j.ToOverride()
	require.NoError(t, err)
	assert.True(t, o.IsEmpty())
}

func TestOverrideJSON_RejectsNonFinite(t *testing.T) {
	nan := math.NaN()
	inf := math.Inf(1)

	_, err := plan.OverrideJSON{Total: &nan}.ToOverride()
	assert.ErrorIs(t, err, plan.ErrInvalidInput)

	_, err = plan.OverrideJSON{Annual: &plan.BucketOverrideJSON{Value: &inf}}.ToOverride()
	var invalid *plan.InvalidInputError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "annual.value", invalid.Field)
}

func TestOverrideJSON_RoundTrip(t *testing.T) {
	o := plan.Override{DownPayment: pin("80000"), Balloon: pin("12.5")}

	back, err := plan.OverrideToJSON(o).ToOverride()
	require.NoError(t, err)
	assert.True(t, back.Equal(o))
}

func TestPaymentPlanJSON_DerivesMissingFinanced(t *testing.T) {
	j := plan.PaymentPlanJSON{
		Total:        500000,
		DownPayment:  100000,
		Installments: plan.PaymentDetailJSON{Value: 5000, Count: 40},
		Annual:       plan.PaymentDetailJSON{Value: 10000, Count: 4},
		Balloon:      20000,
	}

	p, err := j.ToPlan()
	require.NoError(t, err)
	assertDecimal(t, "140000", p.Financed)

	out := plan.PlanToJSON(p)
	require.NotNil(t, out.Financed)
	assert.Equal(t, 140000.0, *out.Financed)
}

func TestPaymentPlanJSON_RejectsNaN(t *testing.T) {
	j := plan.PaymentPlanJSON{Total: 1, Balloon: math.NaN()}

	_, err := j.ToPlan()
	assert.ErrorIs(t, err, plan.ErrInvalidInput)
}

func TestValidateTable(t *testing.T) {
	assert.NoError(t, plan.ValidateTable(tablePlan()))

	negative := tablePlan()
	negative.Financed = d("-5")
	assert.NoError(t, plan.ValidateTable(negative), "financed may be negative")

	badBalloon := tablePlan()
	badBalloon.Balloon = d("-1")
	assert.ErrorIs(t, plan.ValidateTable(badBalloon), plan.ErrInvalidInput)

	badCount := tablePlan()
	badCount.Annual.Count = -1
	assert.ErrorIs(t, plan.ValidateTable(badCount), plan.ErrInvalidInput)
}
