package advisor_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/proposal-engine/advisor"
	"github.com/warp/proposal-engine/catalog"
	"github.com/warp/proposal-engine/plan"
)

func testRequest(t *testing.T) advisor.Request {
	t.Helper()
	c, err := catalog.New(catalog.Default())
	require.NoError(t, err)
	p, u, err := c.Lookup("jardins", "101")
	require.NoError(t, err)

	resolved := plan.Resolve(u.TablePlan, plan.Override{DownPayment: plan.SetFloat(80000)})
	return advisor.NewRequest(p, u, resolved)
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	io.WriteString(w, body)
}

// =============================================================================
// ParseSuggestion
// =============================================================================

func TestParseSuggestion(t *testing.T) {
	s, err := advisor.ParseSuggestion([]byte(`{"suggestedDiscountPercentage": 5.5, "rationale": "Entrada maior", "newNegotiatedValue": 472500}`))
	require.NoError(t, err)
	assert.Equal(t, 5.5, s.SuggestedDiscountPercentage)
	assert.Equal(t, "Entrada maior", s.Rationale)
	assert.Equal(t, 472500.0, s.NewNegotiatedValue)
}

func TestParseSuggestion_WrongTypes(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"percentage as string", `{"suggestedDiscountPercentage": "5", "rationale": "x", "newNegotiatedValue": 1}`},
		{"rationale as number", `{"suggestedDiscountPercentage": 5, "rationale": 3, "newNegotiatedValue": 1}`},
		{"missing value", `{"suggestedDiscountPercentage": 5, "rationale": "x"}`},
		{"null value", `{"suggestedDiscountPercentage": 5, "rationale": "x", "newNegotiatedValue": null}`},
		{"not an object", `[1, 2, 3]`},
		{"not json", `desconto de 5%`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := advisor.ParseSuggestion([]byte(tt.body))
			assert.ErrorIs(t, err, advisor.ErrInvalidResponse)
		})
	}
}

func TestRequest_Validate(t *testing.T) {
	req := testRequest(t)
	assert.NoError(t, req.Validate())

	missing := req
	missing.Unit = catalog.UnitJSON{}
	assert.ErrorIs(t, missing.Validate(), advisor.ErrIncompleteRequest)
}

// =============================================================================
// Client
// =============================================================================

func TestClient_Suggest_Success(t *testing.T) {
	var received advisor.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		writeJSON(w, http.StatusOK, `{"suggestedDiscountPercentage": 3, "rationale": "ok", "newNegotiatedValue": 485000}`)
	}))
	defer srv.Close()

	req := testRequest(t)
	result := advisor.ResultOf(advisor.NewClient(srv.URL, time.Second).Suggest(context.Background(), req))

	assert.Equal(t, advisor.OutcomeSuccess, result.Outcome)
	assert.True(t, result.OK())
	assert.Equal(t, 485000.0, result.Suggestion.NewNegotiatedValue)
	assert.Equal(t, "jardins", received.Property.ID)
	assert.Equal(t, "101", received.Unit.ID)
	assert.Equal(t, 80000.0, received.ClientProposal.DownPayment)
}

func TestClient_Suggest_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadGateway, `{"error": "Não foi possível obter a sugestão da IA.", "details": "quota"}`)
	}))
	defer srv.Close()

	result := advisor.ResultOf(advisor.NewClient(srv.URL, time.Second).Suggest(context.Background(), testRequest(t)))

	assert.Equal(t, advisor.OutcomeProviderError, result.Outcome)
	var pe *advisor.ProviderError
	require.ErrorAs(t, result.Err, &pe)
	assert.Equal(t, http.StatusBadGateway, pe.Status)
	assert.Equal(t, "quota", pe.Details)
}

func TestClient_Suggest_NonJSONErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		io.WriteString(w, "upstream down")
	}))
	defer srv.Close()

	result := advisor.ResultOf(advisor.NewClient(srv.URL, time.Second).Suggest(context.Background(), testRequest(t)))

	var pe *advisor.ProviderError
	require.ErrorAs(t, result.Err, &pe)
	assert.Equal(t, "Service Unavailable", pe.Message)
}

func TestClient_Suggest_InvalidResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"suggestedDiscountPercentage": "cinco", "rationale": "x", "newNegotiatedValue": 1}`)
	}))
	defer srv.Close()

	result := advisor.ResultOf(advisor.NewClient(srv.URL, time.Second).Suggest(context.Background(), testRequest(t)))
	assert.Equal(t, advisor.OutcomeInvalidResponse, result.Outcome)
}

func TestClient_Suggest_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	result := advisor.ResultOf(advisor.NewClient(url, time.Second).Suggest(context.Background(), testRequest(t)))

	assert.Equal(t, advisor.OutcomeTransportError, result.Outcome)
	assert.ErrorIs(t, result.Err, advisor.ErrTransport)
}

func TestClassify(t *testing.T) {
	assert.Equal(t, advisor.OutcomeSuccess, advisor.Classify(nil))
	assert.Equal(t, advisor.OutcomeConfigError, advisor.Classify(advisor.ErrMissingCredentials))
	assert.Equal(t, advisor.OutcomeProviderError, advisor.Classify(&advisor.ProviderError{Status: 500}))
	assert.Equal(t, advisor.OutcomeInvalidResponse, advisor.Classify(advisor.ErrInvalidResponse))
	assert.Equal(t, advisor.OutcomeTransportError, advisor.Classify(errors.New("boom")))
}

// =============================================================================
// GeminiProvider
// =============================================================================

func TestGeminiProvider_Suggest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/gemini-2.5-flash:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		raw, _ := json.Marshal(body)
		assert.Contains(t, string(raw), "responseSchema")
		assert.Contains(t, string(raw), "R$ 80.000,00")

		writeJSON(w, http.StatusOK, `{"candidates":[{"content":{"parts":[{"text":"{\"suggestedDiscountPercentage\": 2.5, \"rationale\": \"Fluxo melhor\", \"newNegotiatedValue\": 487500}"}]}}]}`)
	}))
	defer srv.Close()

	g := advisor.NewGeminiProvider(advisor.GeminiConfig{APIKey: "test-key", BaseURL: srv.URL})
	s, err := g.Suggest(context.Background(), testRequest(t))

	require.NoError(t, err)
	assert.Equal(t, 2.5, s.SuggestedDiscountPercentage)
	assert.Equal(t, "Fluxo melhor", s.Rationale)
}

func TestGeminiProvider_MissingKey(t *testing.T) {
	g := advisor.NewGeminiProvider(advisor.GeminiConfig{})
	_, err := g.Suggest(context.Background(), testRequest(t))
	assert.ErrorIs(t, err, advisor.ErrMissingCredentials)
}

func TestGeminiProvider_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusTooManyRequests, `{"error":{"code":429,"message":"Resource exhausted","status":"RESOURCE_EXHAUSTED"}}`)
	}))
	defer srv.Close()

	g := advisor.NewGeminiProvider(advisor.GeminiConfig{APIKey: "k", BaseURL: srv.URL})
	_, err := g.Suggest(context.Background(), testRequest(t))

	var pe *advisor.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, http.StatusTooManyRequests, pe.Status)
	assert.Equal(t, "Resource exhausted", pe.Details)
}

func TestGeminiProvider_NoCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"candidates":[]}`)
	}))
	defer srv.Close()

	g := advisor.NewGeminiProvider(advisor.GeminiConfig{APIKey: "k", BaseURL: srv.URL})
	_, err := g.Suggest(context.Background(), testRequest(t))
	assert.ErrorIs(t, err, advisor.ErrInvalidResponse)
}

func TestBuildPrompt(t *testing.T) {
	prompt, err := advisor.BuildPrompt(testRequest(t))
	require.NoError(t, err)

	assert.Contains(t, prompt, "Empreendimento: Residencial Jardins")
	assert.Contains(t, prompt, "Área: 68,5 m²")
	assert.Contains(t, prompt, "Parcelas: 40x de R$ 5.500,00")
	assert.Contains(t, prompt, "Valor Financiado: R$ 140.000,00 (28.00%)")
	assert.True(t, strings.HasSuffix(prompt, "formato JSON."))
}

// =============================================================================
// CachedProvider
// =============================================================================

type countingProvider struct {
	calls atomic.Int32
	err   error
}

func (p *countingProvider) Suggest(context.Context, advisor.Request) (advisor.Suggestion, error) {
	p.calls.Add(1)
	if p.err != nil {
		return advisor.Suggestion{}, p.err
	}
	return advisor.Suggestion{SuggestedDiscountPercentage: 4, Rationale: "cached", NewNegotiatedValue: 480000}, nil
}

func TestCachedProvider_SecondCallHitsCache(t *testing.T) {
	next := &countingProvider{}
	cp := advisor.NewCachedProvider(next, advisor.NewMemoryCache(), time.Minute, nil)
	req := testRequest(t)

	first, err := cp.Suggest(context.Background(), req)
	require.NoError(t, err)
	second, err := cp.Suggest(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), next.calls.Load())
}

func TestCachedProvider_DifferentProposalMisses(t *testing.T) {
	next := &countingProvider{}
	cp := advisor.NewCachedProvider(next, advisor.NewMemoryCache(), time.Minute, nil)

	req := testRequest(t)
	_, err := cp.Suggest(context.Background(), req)
	require.NoError(t, err)

	req.ClientProposal.DownPayment = 90000
	_, err = cp.Suggest(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, int32(2), next.calls.Load())
}

func TestCachedProvider_FailuresAreNotCached(t *testing.T) {
	next := &countingProvider{err: &advisor.ProviderError{Status: 500, Message: "boom"}}
	cp := advisor.NewCachedProvider(next, advisor.NewMemoryCache(), time.Minute, nil)
	req := testRequest(t)

	_, err := cp.Suggest(context.Background(), req)
	require.Error(t, err)
	_, err = cp.Suggest(context.Background(), req)
	require.Error(t, err)

	assert.Equal(t, int32(2), next.calls.Load())
}

func TestCachedProvider_UnreachableRedisFallsThrough(t *testing.T) {
	// GIVEN: A redis cache pointing at a closed port
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	next := &countingProvider{}
	cp := advisor.NewCachedProvider(next, advisor.NewRedisCache(client), time.Minute, nil)

	// WHEN: Asking for a suggestion
	s, err := cp.Suggest(context.Background(), testRequest(t))

	// THEN: The provider still answers
	require.NoError(t, err)
	assert.Equal(t, "cached", s.Rationale)
	assert.Equal(t, int32(1), next.calls.Load())
}

func TestCacheKey_Stable(t *testing.T) {
	a, err := advisor.CacheKey(testRequest(t))
	require.NoError(t, err)
	b, err := advisor.CacheKey(testRequest(t))
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.True(t, strings.HasPrefix(a, "proposal:suggestion:"))
}
