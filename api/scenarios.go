/*
scenarios.go - Worked negotiation scenarios

PURPOSE:
  Pre-built negotiations that show how the engine places a down payment
  shortfall and how discounts land in each bucket. Sales trainers use them
  to explain the rules; tests use them as end-to-end checks.

AVAILABLE SCENARIOS:
  installments-absorb:  smaller down payment spread over the installments
  pinned-installments:  installments pinned, shortfall flows to annual
  surplus-down-payment: larger down payment only lowers the financed amount
  all-pinned:           nothing can absorb, shortfall stays unabsorbed
  financed-discount:    discount taken from the financed amount
  annual-discount:      discount larger than the annual bucket, clamped at zero

HOW SCENARIOS WORK:
  Every scenario starts from the same demo table plan:
    total 500000, down payment 100000, 40 x 5000, 4 x 10000, balloon 20000
  Each step either replaces the override or applies a discount to the
  previous step's override, then resolves.

USAGE VIA API:
  GET  /api/scenarios
  POST /api/scenarios/{id}/run

SEE ALSO:
  - plan/resolve.go, plan/discount.go
*/
package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/warp/proposal-engine/catalog"
	"github.com/warp/proposal-engine/plan"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

type scenarioDiscount struct {
	target   plan.Target
	newTotal float64
}

type scenarioStep struct {
	description string
	override    plan.Override
	discount    *scenarioDiscount
}

type scenario struct {
	ScenarioDTO
	steps []scenarioStep
}

var scenarios = []scenario{
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "installments-absorb",
			Name:        "Installments Absorb",
			Description: "Down payment of 80000 instead of 100000; the 20000 shortfall is spread over 40 installments",
			Category:    "resolution",
		},
		steps: []scenarioStep{
			{description: "Client offers 80000 down", override: plan.Override{DownPayment: plan.SetFloat(80000)}},
		},
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "pinned-installments",
			Name:        "Pinned Installments",
			Description: "Installments fixed at 6000; the shortfall moves to the annual payments",
			Category:    "resolution",
		},
		steps: []scenarioStep{
			{
				description: "Client offers 80000 down and 6000 per installment",
				override:    plan.Override{DownPayment: plan.SetFloat(80000), Installments: plan.SetFloat(6000)},
			},
		},
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "surplus-down-payment",
			Name:        "Surplus Down Payment",
			Description: "Down payment of 150000; no bucket changes, the financed amount drops",
			Category:    "resolution",
		},
		steps: []scenarioStep{
			{description: "Client offers 150000 down", override: plan.Override{DownPayment: plan.SetFloat(150000)}},
		},
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "all-pinned",
			Name:        "All Buckets Pinned",
			Description: "Every bucket is fixed, so the shortfall cannot be placed and is reported",
			Category:    "resolution",
		},
		steps: []scenarioStep{
			{
				description: "Client offers 80000 down and keeps every bucket at table value",
				override: plan.Override{
					DownPayment:  plan.SetFloat(80000),
					Installments: plan.SetFloat(5000),
					Annual:       plan.SetFloat(10000),
					Balloon:      plan.SetFloat(20000),
				},
			},
		},
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "financed-discount",
			Name:        "Discount on Financing",
			Description: "A negotiated total of 480000 taken entirely from the financed amount",
			Category:    "discount",
		},
		steps: []scenarioStep{
			{description: "Start from the table plan"},
			{description: "Negotiate the total down to 480000", discount: &scenarioDiscount{target: plan.TargetFinanced, newTotal: 480000}},
		},
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "annual-discount",
			Name:        "Discount on Annual Payments",
			Description: "A 50000 discount against a 40000 annual bucket; the bucket is cleared and the excess is not moved",
			Category:    "discount",
		},
		steps: []scenarioStep{
			{description: "Start from the table plan"},
			{description: "Negotiate the total down to 450000", discount: &scenarioDiscount{target: plan.TargetAnnual, newTotal: 450000}},
		},
	},
}

// scenarioUnit is the demo unit every scenario negotiates.
func scenarioUnit() catalog.Unit {
	return catalog.Unit{
		ID:   "demo",
		Area: decimal.NewFromInt(100),
		TablePlan: plan.PaymentPlan{
			Total:        decimal.NewFromInt(500000),
			DownPayment:  decimal.NewFromInt(100000),
			Installments: plan.NewPaymentDetail(5000, 40),
			Annual:       plan.NewPaymentDetail(10000, 4),
			Balloon:      decimal.NewFromInt(20000),
		}.WithFinanced(),
	}
}

func findScenario(id string) (scenario, bool) {
	for _, s := range scenarios {
		if s.ID == id {
			return s, true
		}
	}
	return scenario{}, false
}

// =============================================================================
// HANDLERS
// =============================================================================

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	dtos := make([]ScenarioDTO, len(scenarios))
	for i, s := range scenarios {
		dtos[i] = s.ScenarioDTO
	}
	writeJSON(w, http.StatusOK, dtos)
}

// RunScenario runs a scenario step by step.
func (h *Handler) RunScenario(w http.ResponseWriter, r *http.Request) {
	s, ok := findScenario(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "Unknown scenario", nil)
		return
	}

	run, err := h.runScenario(s)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to run scenario %s", s.ID), err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// =============================================================================
// SCENARIO RUNNER
// =============================================================================

func (h *Handler) runScenario(s scenario) (ScenarioRunDTO, error) {
	unit := scenarioUnit()
	table := unit.TablePlan
	current := plan.Override{}

	run := ScenarioRunDTO{Scenario: s.ScenarioDTO, Steps: make([]ScenarioStepDTO, 0, len(s.steps))}
	for _, step := range s.steps {
		if step.discount != nil {
			resolved := plan.Resolve(table, current)
			next, err := plan.ApplyDiscount(current, resolved, table, step.discount.target, decimal.NewFromFloat(step.discount.newTotal))
			if err != nil {
				return ScenarioRunDTO{}, err
			}
			current = next
		} else {
			current = step.override
		}

		run.Steps = append(run.Steps, ScenarioStepDTO{
			Description: step.description,
			Override:    plan.OverrideToJSON(current),
			Resolution:  h.resolve(table, current, &unit),
		})
	}
	return run, nil
}
