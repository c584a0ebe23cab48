package session_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/proposal-engine/advisor"
	"github.com/warp/proposal-engine/catalog"
	"github.com/warp/proposal-engine/plan"
	"github.com/warp/proposal-engine/session"
)

func jardins101(t *testing.T) plan.PaymentPlan {
	t.Helper()
	c, err := catalog.New(catalog.Default())
	require.NoError(t, err)
	_, u, err := c.Lookup("jardins", "101")
	require.NoError(t, err)
	return u.TablePlan
}

func TestSession_SelectUnit_ResetsNegotiation(t *testing.T) {
	// GIVEN: A session with an override and a suggestion
	s := &session.Session{PropertyID: "jardins", UnitID: "101"}
	s.SetOverride(plan.Override{DownPayment: plan.SetFloat(80000)})
	token, err := s.BeginAnalysis()
	require.NoError(t, err)
	require.True(t, s.CompleteAnalysis(token, advisor.Suggestion{NewNegotiatedValue: 480000}))

	// WHEN: Switching to another unit
	s.SelectUnit("jardins", "102")

	// THEN: Override and suggestion are gone
	assert.True(t, s.Override.IsEmpty())
	assert.Nil(t, s.Suggestion)
	assert.Equal(t, "102", s.UnitID)
}

func TestSession_SelectSameUnit_KeepsState(t *testing.T) {
	s := &session.Session{PropertyID: "jardins", UnitID: "101"}
	s.SetOverride(plan.Override{DownPayment: plan.SetFloat(80000)})

	s.SelectUnit("jardins", "101")

	assert.False(t, s.Override.IsEmpty())
}

func TestSession_BeginAnalysis_OnlyOneInFlight(t *testing.T) {
	s := &session.Session{}
	_, err := s.BeginAnalysis()
	require.NoError(t, err)

	_, err = s.BeginAnalysis()
	assert.ErrorIs(t, err, session.ErrAnalysisInFlight)
}

func TestSession_BeginAnalysis_ClearsPreviousResult(t *testing.T) {
	s := &session.Session{}
	token, _ := s.BeginAnalysis()
	s.FailAnalysis(token, "provider down")
	require.Equal(t, "provider down", s.Analysis.Error)

	_, err := s.BeginAnalysis()
	require.NoError(t, err)

	assert.Empty(t, s.Analysis.Error)
	assert.Nil(t, s.Suggestion)
	assert.True(t, s.Analysis.Pending)
}

func TestSession_LateResultAfterUnitChange_IsDiscarded(t *testing.T) {
	// GIVEN: An analysis started on unit 101
	s := &session.Session{PropertyID: "jardins", UnitID: "101"}
	token, err := s.BeginAnalysis()
	require.NoError(t, err)

	// WHEN: The unit changes before the answer arrives
	s.SelectUnit("jardins", "102")
	accepted := s.CompleteAnalysis(token, advisor.Suggestion{NewNegotiatedValue: 1})

	// THEN: The stale answer is dropped
	assert.False(t, accepted)
	assert.Nil(t, s.Suggestion)
	assert.False(t, s.Analysis.Pending)
}

func TestSession_FailAnalysis_LeavesSuggestionNull(t *testing.T) {
	s := &session.Session{}
	token, _ := s.BeginAnalysis()

	assert.True(t, s.FailAnalysis(token, "timeout"))
	assert.Nil(t, s.Suggestion)
	assert.False(t, s.Analysis.Pending)
	assert.False(t, s.FailAnalysis(token, "again"), "a settled token is not accepted twice")
}

func TestSession_ApplySuggestion(t *testing.T) {
	table := jardins101(t)
	s := &session.Session{PropertyID: "jardins", UnitID: "101"}
	token, _ := s.BeginAnalysis()
	s.CompleteAnalysis(token, advisor.Suggestion{SuggestedDiscountPercentage: 5, NewNegotiatedValue: 475000})

	resolved := plan.Resolve(table, s.Override)
	require.NoError(t, s.ApplySuggestion(table, resolved, plan.TargetInstallments))

	// 25000 discount over 40 installments of 5000 -> 4375
	total, _ := s.Override.Total.Get()
	inst, _ := s.Override.Installments.Get()
	assert.True(t, total.Equal(decimal.NewFromInt(475000)))
	assert.True(t, inst.Equal(decimal.NewFromInt(4375)), inst.String())
}

func TestSession_ApplySuggestion_Errors(t *testing.T) {
	table := jardins101(t)

	s := &session.Session{}
	err := s.ApplySuggestion(table, table, plan.TargetFinanced)
	assert.ErrorIs(t, err, session.ErrNoSuggestion)

	token, _ := s.BeginAnalysis()
	s.CompleteAnalysis(token, advisor.Suggestion{NewNegotiatedValue: 475000})
	err = s.ApplySuggestion(table, table, plan.Target("parking"))
	assert.ErrorIs(t, err, plan.ErrUnknownTarget)
	assert.True(t, s.Override.IsEmpty())
}

// =============================================================================
// Memory store
// =============================================================================

func TestMemory_CreateGetDelete(t *testing.T) {
	m := session.NewMemory()

	s := m.Create("jardins", "101")
	assert.NotEmpty(t, s.ID)

	got, err := m.Get(s.ID)
	require.NoError(t, err)
	assert.Equal(t, "101", got.UnitID)

	m.Delete(s.ID)
	_, err = m.Get(s.ID)
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestMemory_Update_RollsBackOnError(t *testing.T) {
	m := session.NewMemory()
	s := m.Create("jardins", "101")

	_, err := m.Update(s.ID, func(s *session.Session) error {
		s.SetOverride(plan.Override{Total: plan.SetFloat(1)})
		return errors.New("rejected")
	})
	require.Error(t, err)

	got, err := m.Get(s.ID)
	require.NoError(t, err)
	assert.True(t, got.Override.IsEmpty())
}

func TestMemory_Update_Unknown(t *testing.T) {
	m := session.NewMemory()
	_, err := m.Update("nope", func(*session.Session) error { return nil })
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestMemory_GetReturnsCopy(t *testing.T) {
	m := session.NewMemory()
	s := m.Create("jardins", "101")
	_, err := m.Update(s.ID, func(s *session.Session) error {
		token, err := s.BeginAnalysis()
		if err != nil {
			return err
		}
		s.CompleteAnalysis(token, advisor.Suggestion{Rationale: "original"})
		return nil
	})
	require.NoError(t, err)

	got, _ := m.Get(s.ID)
	got.Suggestion.Rationale = "mutated"

	again, _ := m.Get(s.ID)
	assert.Equal(t, "original", again.Suggestion.Rationale)
}

func TestMemory_Sweep(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	m := session.NewMemory().WithClock(func() time.Time { return now })

	idle := m.Create("jardins", "101")
	busy := m.Create("jardins", "102")
	_, err := m.Update(busy.ID, func(s *session.Session) error {
		_, err := s.BeginAnalysis()
		return err
	})
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)
	fresh := m.Create("mirante", "A-11")

	removed := m.Sweep(time.Hour)

	assert.Equal(t, 1, removed)
	_, err = m.Get(idle.ID)
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
	_, err = m.Get(busy.ID)
	assert.NoError(t, err, "pending analysis keeps the session alive")
	_, err = m.Get(fresh.ID)
	assert.NoError(t, err)
	assert.Equal(t, 2, m.Len())
}
