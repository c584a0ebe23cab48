/*
Package advisor asks an external model for a discount suggestion on a
client proposal.

PURPOSE:
  The sales desk compares the client's resolved plan with the unit's table
  plan. A provider returns how much discount that cash flow justifies, a
  rationale, and the new negotiated total.

PROVIDERS:
  - GeminiProvider: calls the Gemini generateContent REST endpoint directly
  - Client: calls a remote suggestion endpoint (our own /api/suggest or any
    service speaking the same contract)
  - CachedProvider: wraps either with a response cache

ERRORS:
  Every failure maps onto one of four outcomes (see Classify):
  success, provider error, transport error, invalid response.
  A missing API key is a configuration error and is reported separately.
*/
package advisor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/warp/proposal-engine/catalog"
	"github.com/warp/proposal-engine/plan"
)

var (
	// ErrTransport wraps network failures reaching a provider.
	ErrTransport = errors.New("suggestion provider unreachable")

	// ErrInvalidResponse means the provider answered but the body is not a
	// well-formed suggestion.
	ErrInvalidResponse = errors.New("invalid suggestion response")

	// ErrMissingCredentials means the provider has no API key configured.
	ErrMissingCredentials = errors.New("suggestion provider credentials not configured")

	// ErrIncompleteRequest means one of property, unit or clientProposal is missing.
	ErrIncompleteRequest = errors.New("missing required body parameters")
)

// ProviderError is a non-success answer from a provider.
type ProviderError struct {
	Status  int
	Message string
	Details string
}

func (e *ProviderError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("provider returned %d: %s (%s)", e.Status, e.Message, e.Details)
	}
	return fmt.Sprintf("provider returned %d: %s", e.Status, e.Message)
}

// Suggestion is the provider's answer.
type Suggestion struct {
	SuggestedDiscountPercentage float64 `json:"suggestedDiscountPercentage"`
	Rationale                   string  `json:"rationale"`
	NewNegotiatedValue          float64 `json:"newNegotiatedValue"`
}

// Request is what a provider receives. ClientProposal is the resolved plan,
// not the raw override.
type Request struct {
	Property       catalog.PropertyJSON `json:"property"`
	Unit           catalog.UnitJSON     `json:"unit"`
	ClientProposal plan.PaymentPlanJSON `json:"clientProposal"`
}

// NewRequest builds a request from domain values.
func NewRequest(p catalog.Property, u catalog.Unit, proposal plan.PaymentPlan) Request {
	return Request{
		Property:       catalog.PropertyToJSON(p),
		Unit:           catalog.UnitToJSON(u),
		ClientProposal: plan.PlanToJSON(proposal),
	}
}

// Validate checks the parts a provider needs to build its analysis.
func (r Request) Validate() error {
	if r.Property.ID == "" || r.Unit.ID == "" {
		return ErrIncompleteRequest
	}
	if _, err := r.Unit.ToUnit(); err != nil {
		return err
	}
	if _, err := r.ClientProposal.ToPlan(); err != nil {
		return err
	}
	return nil
}

// Provider produces a discount suggestion.
type Provider interface {
	Suggest(ctx context.Context, req Request) (Suggestion, error)
}

// ParseSuggestion decodes a provider body. All three fields must be present
// with the right JSON type; anything else is ErrInvalidResponse.
func ParseSuggestion(data []byte) (Suggestion, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(bytes.TrimSpace(data), &raw); err != nil {
		return Suggestion{}, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	var s Suggestion
	var err error
	if s.SuggestedDiscountPercentage, err = numberField(raw, "suggestedDiscountPercentage"); err != nil {
		return Suggestion{}, err
	}
	if s.NewNegotiatedValue, err = numberField(raw, "newNegotiatedValue"); err != nil {
		return Suggestion{}, err
	}
	if s.Rationale, err = stringField(raw, "rationale"); err != nil {
		return Suggestion{}, err
	}
	return s, nil
}

func numberField(raw map[string]json.RawMessage, name string) (float64, error) {
	v, ok := raw[name]
	if !ok || isNull(v) {
		return 0, fmt.Errorf("%w: %s is missing", ErrInvalidResponse, name)
	}
	var f float64
	if err := json.Unmarshal(v, &f); err != nil {
		return 0, fmt.Errorf("%w: %s must be a number", ErrInvalidResponse, name)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %s must be finite", ErrInvalidResponse, name)
	}
	return f, nil
}

func stringField(raw map[string]json.RawMessage, name string) (string, error) {
	v, ok := raw[name]
	if !ok || isNull(v) {
		return "", fmt.Errorf("%w: %s is missing", ErrInvalidResponse, name)
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return "", fmt.Errorf("%w: %s must be a string", ErrInvalidResponse, name)
	}
	return s, nil
}

func isNull(v json.RawMessage) bool {
	return string(bytes.TrimSpace(v)) == "null"
}
