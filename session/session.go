/*
Package session holds the per-client negotiation state.

PURPOSE:
  A session tracks which unit is being negotiated, the client's partial
  override and the last discount suggestion. The engine itself is stateless;
  this package owns the lifecycle rules around it.

LIFECYCLE:
  unit-selected -> override-edited* -> [analysis-requested ->
  suggestion-received | failed]* -> discount-applied?

  - Changing unit resets the override and the suggestion.
  - Starting an analysis clears the previous suggestion and error.
  - At most one analysis is in flight per session.
  - A result is only accepted if its token is still current. Changing unit
    or resetting the session invalidates the token, so a late response is
    discarded rather than cancelled.

SEE ALSO:
  - memory.go: concurrency-safe store
  - plan/discount.go: ApplyDiscount
*/
package session

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/proposal-engine/advisor"
	"github.com/warp/proposal-engine/plan"
)

var (
	// ErrSessionNotFound is returned when a session id is unknown or expired.
	ErrSessionNotFound = errors.New("session not found")

	// ErrAnalysisInFlight is returned when an analysis is already pending.
	ErrAnalysisInFlight = errors.New("analysis already in progress")

	// ErrNoSuggestion is returned when applying a discount without a suggestion.
	ErrNoSuggestion = errors.New("no suggestion to apply")
)

// Analysis is the state of the suggestion request for a session.
type Analysis struct {
	Pending bool
	Token   uint64
	Error   string
}

// Session is one client's negotiation.
type Session struct {
	ID         string
	PropertyID string
	UnitID     string
	Override   plan.Override
	Suggestion *advisor.Suggestion
	Analysis   Analysis
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// SelectUnit makes a unit active. Selecting a different unit drops the
// override and the suggestion and discards any analysis still running.
func (s *Session) SelectUnit(propertyID, unitID string) {
	if s.PropertyID == propertyID && s.UnitID == unitID {
		return
	}
	s.PropertyID = propertyID
	s.UnitID = unitID
	s.Override = plan.Override{}
	s.Suggestion = nil
	s.invalidateAnalysis()
}

// SetOverride replaces the client's override.
func (s *Session) SetOverride(o plan.Override) {
	s.Override = o
}

// ClearOverride goes back to the table plan.
func (s *Session) ClearOverride() {
	s.Override = plan.Override{}
}

// BeginAnalysis marks an analysis as pending and returns its token.
func (s *Session) BeginAnalysis() (uint64, error) {
	if s.Analysis.Pending {
		return 0, ErrAnalysisInFlight
	}
	s.Suggestion = nil
	s.Analysis.Token++
	s.Analysis.Pending = true
	s.Analysis.Error = ""
	return s.Analysis.Token, nil
}

// CompleteAnalysis stores a suggestion if token is still current.
func (s *Session) CompleteAnalysis(token uint64, sg advisor.Suggestion) bool {
	if !s.acceptsResult(token) {
		return false
	}
	s.Analysis.Pending = false
	s.Suggestion = &sg
	return true
}

// FailAnalysis records an error message if token is still current. The
// suggestion stays cleared.
func (s *Session) FailAnalysis(token uint64, message string) bool {
	if !s.acceptsResult(token) {
		return false
	}
	s.Analysis.Pending = false
	s.Analysis.Error = message
	return true
}

func (s *Session) acceptsResult(token uint64) bool {
	return s.Analysis.Pending && s.Analysis.Token == token
}

func (s *Session) invalidateAnalysis() {
	s.Analysis.Token++
	s.Analysis.Pending = false
	s.Analysis.Error = ""
}

// ApplySuggestion takes the current suggestion's negotiated total from target
// and stores the resulting override. table and resolved must belong to the
// session's active unit and current override.
func (s *Session) ApplySuggestion(table, resolved plan.PaymentPlan, target plan.Target) error {
	if s.Suggestion == nil {
		return ErrNoSuggestion
	}
	if err := plan.CheckFinite("newNegotiatedValue", s.Suggestion.NewNegotiatedValue); err != nil {
		return err
	}

	next, err := plan.ApplyDiscount(s.Override, resolved, table, target,
		decimal.NewFromFloat(s.Suggestion.NewNegotiatedValue))
	if err != nil {
		return err
	}
	s.Override = next
	return nil
}
