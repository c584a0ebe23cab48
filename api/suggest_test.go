package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/proposal-engine/advisor"
)

const suggestPayload = `{
	"property": {"id":"jardins","name":"Residencial Jardins do Lago","units":[]},
	"unit": {"id":"101","area":68.5,"tablePlan":{"total":500000,"downPayment":100000,
		"installments":{"value":5000,"count":40},"annual":{"value":10000,"count":4},"balloon":20000,"financed":140000}},
	"clientProposal": {"total":500000,"downPayment":80000,
		"installments":{"value":5500,"count":40},"annual":{"value":10000,"count":4},"balloon":20000,"financed":140000}
}`

func TestSuggest_MethodNotAllowed(t *testing.T) {
	h := setupTestHandler(t, &fakeProvider{})

	rec := do(t, h, http.MethodGet, "/api/suggest", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "POST", rec.Header().Get("Allow"))
}

func TestSuggest_MissingParts(t *testing.T) {
	h := setupTestHandler(t, &fakeProvider{})

	tests := []struct {
		name string
		body string
	}{
		{"empty object", `{}`},
		{"no client proposal", `{"property":{"id":"p"},"unit":{"id":"u"}}`},
		{"null unit", `{"property":{"id":"p"},"unit":null,"clientProposal":{}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/api/suggest", tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "Missing required body parameters.", decode[ErrorResponse](t, rec).Error)
		})
	}
}

func TestSuggest_InvalidParts(t *testing.T) {
	h := setupTestHandler(t, &fakeProvider{})

	rec := do(t, h, http.MethodPost, "/api/suggest",
		`{"property":{"id":""},"unit":{"id":"101"},"clientProposal":{"total":1}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/suggest",
		`{"property":{"id":"p"},"unit":"101","clientProposal":{"total":1}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSuggest_Success(t *testing.T) {
	// GIVEN: A provider with a 5% suggestion
	provider := &fakeProvider{suggestion: advisor.Suggestion{
		SuggestedDiscountPercentage: 5,
		Rationale:                   "Entrada reduzida compensada",
		NewNegotiatedValue:          475000,
	}}
	h := setupTestHandler(t, provider)

	// WHEN: Posting a complete request
	rec := do(t, h, http.MethodPost, "/api/suggest", suggestPayload)

	// THEN: The suggestion is returned as is
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[advisor.Suggestion](t, rec)
	assert.Equal(t, provider.suggestion, got)

	require.Len(t, provider.requests, 1)
	assert.Equal(t, "jardins", provider.requests[0].Property.ID)
	assert.Equal(t, 80000.0, provider.requests[0].ClientProposal.DownPayment)
}

func TestSuggest_ProviderErrors(t *testing.T) {
	tests := []struct {
		name     string
		provider advisor.Provider
		expected int
	}{
		{"not configured", nil, http.StatusInternalServerError},
		{"missing key", &fakeProvider{err: advisor.ErrMissingCredentials}, http.StatusInternalServerError},
		{"upstream failure", &fakeProvider{err: &advisor.ProviderError{Status: 429, Message: "quota"}}, http.StatusBadGateway},
		{"bad answer", &fakeProvider{err: advisor.ErrInvalidResponse}, http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := setupTestHandler(t, tt.provider)
			rec := do(t, h, http.MethodPost, "/api/suggest", suggestPayload)
			assert.Equal(t, tt.expected, rec.Code, rec.Body.String())
		})
	}
}
