package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestLimiter(capacity int, window time.Duration) (*RateLimiter, *time.Time) {
	now := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(capacity, window)
	rl.now = func() time.Time { return now }
	return rl, &now
}

func TestRateLimiter_AllowAndRefill(t *testing.T) {
	rl, now := newTestLimiter(2, time.Minute)

	assert.True(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"), "third call within the window")
	assert.True(t, rl.Allow("10.0.0.2"), "buckets are per client")

	*now = now.Add(time.Minute)
	assert.True(t, rl.Allow("10.0.0.1"), "bucket refills after the window")
}

func TestRateLimiter_ZeroCapacity(t *testing.T) {
	rl, _ := newTestLimiter(0, time.Minute)
	assert.False(t, rl.Allow("10.0.0.1"))
}

func TestRateLimiter_Cleanup(t *testing.T) {
	rl, now := newTestLimiter(5, time.Minute)
	rl.Allow("old")
	*now = now.Add(2 * time.Hour)
	rl.Allow("fresh")

	assert.Equal(t, 1, rl.Cleanup(time.Hour))
	assert.Len(t, rl.clients, 1)
	assert.Contains(t, rl.clients, "fresh")
}

func TestRateLimiter_Middleware(t *testing.T) {
	rl, _ := newTestLimiter(1, 30*time.Second)
	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	call := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/suggest", nil)
		req.RemoteAddr = "192.168.1.7:51234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusNoContent, call().Code)

	rec := call()
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "30", rec.Header().Get("Retry-After"))
}

func TestRouter_LimitsAnalyze(t *testing.T) {
	// GIVEN: A limiter allowing a single provider call
	h := setupTestHandler(t, &fakeProvider{})
	h.Limiter, _ = newTestLimiter(1, time.Minute)

	// WHEN: Calling the suggest endpoint twice
	first := do(t, h, http.MethodPost, "/api/suggest", suggestPayload)
	second := do(t, h, http.MethodPost, "/api/suggest", suggestPayload)

	// THEN: The second call is rejected; unlimited routes still work
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/properties", "").Code)
}

func TestRetryAfter(t *testing.T) {
	assert.Equal(t, "1", retryAfter(100*time.Millisecond))
	assert.Equal(t, "60", retryAfter(time.Minute))
}
