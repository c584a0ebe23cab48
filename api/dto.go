/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Plans and overrides
  travel in their plan package wire form (camelCase, shared with the
  suggestion provider contract); the envelopes around them are snake_case.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

VALIDATION:
  Validation is done in handlers, not in DTOs. Converting a wire plan or
  override into the decimal model rejects non-finite numbers.

SEE ALSO:
  - handlers.go: Uses these types
  - plan/json.go: PaymentPlanJSON, OverrideJSON
*/
package api

import (
	"time"

	"github.com/warp/proposal-engine/advisor"
	"github.com/warp/proposal-engine/catalog"
	"github.com/warp/proposal-engine/plan"
	"github.com/warp/proposal-engine/session"
)

// =============================================================================
// CATALOG
// =============================================================================

// UnitDTO represents a unit with its table plan.
type UnitDTO struct {
	ID        string               `json:"id"`
	Area      float64              `json:"area"`
	TablePlan plan.PaymentPlanJSON `json:"table_plan"`
}

// PropertyDTO represents a property in API responses.
type PropertyDTO struct {
	ID    string    `json:"id"`
	Name  string    `json:"name"`
	Units []UnitDTO `json:"units"`
}

// =============================================================================
// RESOLUTION
// =============================================================================

// ResolveRequest resolves an override against a catalog unit, or against an
// explicit table plan when TablePlan is given.
type ResolveRequest struct {
	PropertyID string                `json:"property_id,omitempty"`
	UnitID     string                `json:"unit_id,omitempty"`
	TablePlan  *plan.PaymentPlanJSON `json:"table_plan,omitempty"`
	Override   plan.OverrideJSON     `json:"override"`
}

// DiscountRequest applies a negotiated total to a target bucket.
type DiscountRequest struct {
	ResolveRequest
	Target   string   `json:"target"`
	NewTotal *float64 `json:"new_total"`
}

// SummaryDTO holds negotiation statistics.
type SummaryDTO struct {
	Area                    float64 `json:"area"`
	TablePricePerArea       float64 `json:"table_price_per_area"`
	ProposalPricePerArea    float64 `json:"proposal_price_per_area"`
	Discount                float64 `json:"discount"`
	DiscountPercent         float64 `json:"discount_percent"`
	TableFinancedPercent    float64 `json:"table_financed_percent"`
	ProposalFinancedPercent float64 `json:"proposal_financed_percent"`
	FinancingImproved       bool    `json:"financing_improved"`
}

// ResolutionDTO is a resolved plan plus how the shortfall was placed.
type ResolutionDTO struct {
	TablePlan  plan.PaymentPlanJSON `json:"table_plan"`
	Plan       plan.PaymentPlanJSON `json:"plan"`
	Shortfall  float64              `json:"shortfall"`
	AbsorbedBy string               `json:"absorbed_by,omitempty"`
	Unabsorbed float64              `json:"unabsorbed"`
	Warnings   []string             `json:"warnings"`
	Summary    *SummaryDTO          `json:"summary,omitempty"`
}

// DiscountResponse returns the new override and its resolution.
type DiscountResponse struct {
	Override   plan.OverrideJSON `json:"override"`
	Resolution ResolutionDTO     `json:"resolution"`
}

// =============================================================================
// SESSIONS
// =============================================================================

// CreateSessionRequest starts a negotiation. Missing ids fall back to the
// first property and its first unit.
type CreateSessionRequest struct {
	PropertyID string `json:"property_id"`
	UnitID     string `json:"unit_id"`
}

// SelectUnitRequest changes the unit under negotiation.
type SelectUnitRequest struct {
	PropertyID string `json:"property_id"`
	UnitID     string `json:"unit_id"`
}

// ApplyDiscountRequest applies the current suggestion to a target bucket.
type ApplyDiscountRequest struct {
	Target string `json:"target"`
}

// AnalysisDTO is the state of the suggestion request.
type AnalysisDTO struct {
	Pending bool   `json:"pending"`
	Error   string `json:"error,omitempty"`
}

// SessionDTO represents a negotiation session.
type SessionDTO struct {
	ID         string              `json:"id"`
	PropertyID string              `json:"property_id"`
	UnitID     string              `json:"unit_id"`
	Override   plan.OverrideJSON   `json:"override"`
	Resolution ResolutionDTO       `json:"resolution"`
	Suggestion *advisor.Suggestion `json:"suggestion"`
	Analysis   AnalysisDTO         `json:"analysis"`
	CreatedAt  time.Time           `json:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDTO represents a worked negotiation scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// ScenarioStepDTO is one step of a scenario run.
type ScenarioStepDTO struct {
	Description string            `json:"description"`
	Override    plan.OverrideJSON `json:"override"`
	Resolution  ResolutionDTO     `json:"resolution"`
}

// ScenarioRunDTO is the result of running a scenario.
type ScenarioRunDTO struct {
	Scenario ScenarioDTO       `json:"scenario"`
	Steps    []ScenarioStepDTO `json:"steps"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toUnitDTO(u catalog.Unit) UnitDTO {
	return UnitDTO{
		ID:        u.ID,
		Area:      u.Area.InexactFloat64(),
		TablePlan: plan.PlanToJSON(u.TablePlan),
	}
}

func toPropertyDTO(p catalog.Property) PropertyDTO {
	units := make([]UnitDTO, len(p.Units))
	for i, u := range p.Units {
		units[i] = toUnitDTO(u)
	}
	return PropertyDTO{ID: p.ID, Name: p.Name, Units: units}
}

func toSummaryDTO(s plan.Summary) *SummaryDTO {
	return &SummaryDTO{
		Area:                    s.Area.InexactFloat64(),
		TablePricePerArea:       s.TablePricePerArea.Round(2).InexactFloat64(),
		ProposalPricePerArea:    s.ProposalPricePerArea.Round(2).InexactFloat64(),
		Discount:                s.Discount.InexactFloat64(),
		DiscountPercent:         s.DiscountPercent.Round(4).InexactFloat64(),
		TableFinancedPercent:    s.TableFinancedPercent.Round(4).InexactFloat64(),
		ProposalFinancedPercent: s.ProposalFinancedPercent.Round(4).InexactFloat64(),
		FinancingImproved:       s.FinancingImproved,
	}
}

func toResolutionDTO(table plan.PaymentPlan, res plan.Resolution) ResolutionDTO {
	warnings := make([]string, 0)
	for _, w := range res.Warnings() {
		warnings = append(warnings, string(w))
	}
	return ResolutionDTO{
		TablePlan:  plan.PlanToJSON(table),
		Plan:       plan.PlanToJSON(res.Plan),
		Shortfall:  res.Shortfall.InexactFloat64(),
		AbsorbedBy: string(res.AbsorbedBy),
		Unabsorbed: res.Unabsorbed.InexactFloat64(),
		Warnings:   warnings,
	}
}

func toSessionDTO(s session.Session, res ResolutionDTO) SessionDTO {
	return SessionDTO{
		ID:         s.ID,
		PropertyID: s.PropertyID,
		UnitID:     s.UnitID,
		Override:   plan.OverrideToJSON(s.Override),
		Resolution: res,
		Suggestion: s.Suggestion,
		Analysis:   AnalysisDTO{Pending: s.Analysis.Pending, Error: s.Analysis.Error},
		CreatedAt:  s.CreatedAt,
		UpdatedAt:  s.UpdatedAt,
	}
}
