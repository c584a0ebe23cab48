/*
handlers.go - HTTP API handlers for the proposal engine

PURPOSE:
  Exposes the payment plan engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Catalog:
    GET    /api/properties                       List properties and units
    GET    /api/properties/{id}                  Get one property
    GET    /api/properties/{id}/units/{unitID}   Get one unit

  Engine (stateless):
    POST   /api/resolve                          Resolve an override
    POST   /api/discount                         Apply a discount, then resolve

  Sessions:
    POST   /api/sessions                         Start a negotiation
    GET    /api/sessions/{id}                    Session with resolved plan
    DELETE /api/sessions/{id}                    Drop a session
    PUT    /api/sessions/{id}/unit               Change unit
    PUT    /api/sessions/{id}/override           Replace the override
    DELETE /api/sessions/{id}/override           Back to the table plan
    POST   /api/sessions/{id}/analyze            Ask the advisor
    POST   /api/sessions/{id}/apply-discount     Apply the suggestion
    GET    /api/sessions/{id}/export             XLSX export

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Catalog: read-only properties and units
  - Sessions: in-memory negotiation state
  - Advisor: suggestion provider (may be nil when not configured)
  - Metrics, Logger

ERROR HANDLING:
  Errors are returned as JSON {error, details} with HTTP status:
  - 400: Invalid input, unknown discount target
  - 404: Property, unit or session not found
  - 409: Analysis already in flight, no suggestion to apply
  - 500: Configuration and internal errors
  - 502: Suggestion provider failed

SEE ALSO:
  - dto.go: Request/response data structures
  - suggest.go: Provider endpoint
  - scenarios.go: Worked negotiation scenarios
  - server.go: Router setup and middleware
*/
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/warp/proposal-engine/advisor"
	"github.com/warp/proposal-engine/catalog"
	"github.com/warp/proposal-engine/observability"
	"github.com/warp/proposal-engine/plan"
	"github.com/warp/proposal-engine/report"
	"github.com/warp/proposal-engine/session"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Catalog  *catalog.Catalog
	Sessions *session.Memory
	Advisor  advisor.Provider
	Metrics  *observability.Metrics
	Logger   *slog.Logger

	// Applied to the analyze and suggest routes when set.
	Limiter *RateLimiter

	CORSOrigins []string

	now func() time.Time
}

// NewHandler creates a handler over a catalog. Advisor may be nil; the
// analyze and suggest endpoints then report a configuration error.
func NewHandler(cat *catalog.Catalog, sessions *session.Memory, provider advisor.Provider) *Handler {
	return &Handler{
		Catalog:  cat,
		Sessions: sessions,
		Advisor:  provider,
		Metrics:  observability.NewMetrics(),
		Logger:   slog.Default(),
		now:      time.Now,
	}
}

// =============================================================================
// CATALOG HANDLERS
// =============================================================================

// ListProperties returns every property with its units.
func (h *Handler) ListProperties(w http.ResponseWriter, r *http.Request) {
	props := h.Catalog.Properties()
	dtos := make([]PropertyDTO, len(props))
	for i, p := range props {
		dtos[i] = toPropertyDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetProperty returns one property.
func (h *Handler) GetProperty(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p, ok := h.Catalog.Property(id)
	if !ok {
		writeError(w, http.StatusNotFound, "Property not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toPropertyDTO(p))
}

// GetUnit returns one unit with its table plan.
func (h *Handler) GetUnit(w http.ResponseWriter, r *http.Request) {
	_, u, err := h.Catalog.Lookup(chi.URLParam(r, "id"), chi.URLParam(r, "unitID"))
	if err != nil {
		h.writeDomainError(w, "Unit not found", err)
		return
	}
	writeJSON(w, http.StatusOK, toUnitDTO(u))
}

// =============================================================================
// ENGINE HANDLERS
// =============================================================================

// Resolve applies an override to a table plan.
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	var req ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	table, unit, err := h.tableFor(req)
	if err != nil {
		h.writeDomainError(w, "Failed to resolve proposal", err)
		return
	}
	o, err := req.Override.ToOverride()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid override", err)
		return
	}

	writeJSON(w, http.StatusOK, h.resolve(table, o, unit))
}

// Discount applies a negotiated total to a target bucket and resolves the
// result. The returned override replaces the caller's.
func (h *Handler) Discount(w http.ResponseWriter, r *http.Request) {
	var req DiscountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.NewTotal == nil {
		writeError(w, http.StatusBadRequest, "new_total is required", nil)
		return
	}
	if err := plan.CheckFinite("new_total", *req.NewTotal); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid new_total", err)
		return
	}
	target, err := plan.ParseTarget(req.Target)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid discount target", err)
		return
	}

	table, unit, err := h.tableFor(req.ResolveRequest)
	if err != nil {
		h.writeDomainError(w, "Failed to apply discount", err)
		return
	}
	current, err := req.Override.ToOverride()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid override", err)
		return
	}

	resolved := plan.Resolve(table, current)
	next, err := plan.ApplyDiscount(current, resolved, table, target, decimal.NewFromFloat(*req.NewTotal))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to apply discount", err)
		return
	}
	h.Metrics.Discounts.WithLabelValues(string(target)).Inc()

	writeJSON(w, http.StatusOK, DiscountResponse{
		Override:   plan.OverrideToJSON(next),
		Resolution: h.resolve(table, next, unit),
	})
}

// tableFor picks the explicit table plan or looks up the catalog unit. An
// explicit table must pass the same checks as a catalog table.
func (h *Handler) tableFor(req ResolveRequest) (plan.PaymentPlan, *catalog.Unit, error) {
	if req.TablePlan != nil {
		table, err := req.TablePlan.ToPlan()
		if err != nil {
			return plan.PaymentPlan{}, nil, err
		}
		if err := plan.ValidateTable(table); err != nil {
			return plan.PaymentPlan{}, nil, err
		}
		return table, nil, nil
	}
	if req.PropertyID == "" || req.UnitID == "" {
		return plan.PaymentPlan{}, nil, fmt.Errorf("%w: property_id and unit_id or table_plan are required", plan.ErrInvalidInput)
	}
	_, u, err := h.Catalog.Lookup(req.PropertyID, req.UnitID)
	if err != nil {
		return plan.PaymentPlan{}, nil, err
	}
	return u.TablePlan, &u, nil
}

// resolve runs the engine and records metrics. The summary needs the unit
// area, so it is only filled for catalog units.
func (h *Handler) resolve(table plan.PaymentPlan, o plan.Override, unit *catalog.Unit) ResolutionDTO {
	res := plan.ResolveDetailed(table, o)
	h.Metrics.Resolutions.Inc()
	if res.Unabsorbed.IsPositive() {
		h.Metrics.UnabsorbedShortfalls.Inc()
	}

	dto := toResolutionDTO(table, res)
	if unit != nil {
		dto.Summary = toSummaryDTO(plan.Summarize(table, res.Plan, unit.Area))
	}
	return dto
}

// =============================================================================
// SESSION HANDLERS
// =============================================================================

// CreateSession starts a negotiation on a unit.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	// An empty body, with or without a Content-Length, means "first unit".
	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	p := h.Catalog.First()
	if req.PropertyID != "" {
		var ok bool
		if p, ok = h.Catalog.Property(req.PropertyID); !ok {
			writeError(w, http.StatusNotFound, "Property not found", nil)
			return
		}
	}
	u := p.UnitOrFirst(req.UnitID)
	if req.UnitID != "" && u.ID != req.UnitID {
		writeError(w, http.StatusNotFound, "Unit not found", nil)
		return
	}

	s := h.Sessions.Create(p.ID, u.ID)
	h.Metrics.ActiveSessions.Set(float64(h.Sessions.Len()))
	h.Logger.Info("session created", "session", s.ID, "property", p.ID, "unit", u.ID)

	writeJSON(w, http.StatusCreated, h.sessionView(s))
}

// GetSession returns a session with its resolved plan.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.Sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, "Session not found", err)
		return
	}
	writeJSON(w, http.StatusOK, h.sessionView(s))
}

// DeleteSession drops a session. A pending analysis result is discarded.
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.Sessions.Get(id); err != nil {
		h.writeDomainError(w, "Session not found", err)
		return
	}
	h.Sessions.Delete(id)
	h.Metrics.ActiveSessions.Set(float64(h.Sessions.Len()))
	w.WriteHeader(http.StatusNoContent)
}

// SelectUnit changes the unit under negotiation.
func (h *Handler) SelectUnit(w http.ResponseWriter, r *http.Request) {
	var req SelectUnitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	s, err := h.Sessions.Update(chi.URLParam(r, "id"), func(s *session.Session) error {
		propertyID := req.PropertyID
		if propertyID == "" {
			propertyID = s.PropertyID
		}
		if _, _, err := h.Catalog.Lookup(propertyID, req.UnitID); err != nil {
			return err
		}
		s.SelectUnit(propertyID, req.UnitID)
		return nil
	})
	if err != nil {
		h.writeDomainError(w, "Failed to select unit", err)
		return
	}
	writeJSON(w, http.StatusOK, h.sessionView(s))
}

// SetOverride replaces the session's override. An invalid override is
// rejected and the previous one kept.
func (h *Handler) SetOverride(w http.ResponseWriter, r *http.Request) {
	var req plan.OverrideJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	o, err := req.ToOverride()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid override", err)
		return
	}

	s, err := h.Sessions.Update(chi.URLParam(r, "id"), func(s *session.Session) error {
		s.SetOverride(o)
		return nil
	})
	if err != nil {
		h.writeDomainError(w, "Failed to update override", err)
		return
	}
	writeJSON(w, http.StatusOK, h.sessionView(s))
}

// ClearOverride resets the session to the table plan.
func (h *Handler) ClearOverride(w http.ResponseWriter, r *http.Request) {
	s, err := h.Sessions.Update(chi.URLParam(r, "id"), func(s *session.Session) error {
		s.ClearOverride()
		return nil
	})
	if err != nil {
		h.writeDomainError(w, "Failed to clear override", err)
		return
	}
	writeJSON(w, http.StatusOK, h.sessionView(s))
}

// Analyze asks the advisor for a discount suggestion on the session's current
// proposal. The call runs inside the request; a second analyze while one is
// pending gets 409. However the call ends, including a panic in the provider,
// the pending analysis is settled so the user can retry.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var token uint64
	snapshot, err := h.Sessions.Update(id, func(s *session.Session) error {
		var err error
		token, err = s.BeginAnalysis()
		return err
	})
	if err != nil {
		h.writeDomainError(w, "Failed to start analysis", err)
		return
	}

	settled := false
	defer func() {
		if settled {
			return
		}
		rec := recover()
		h.settleAnalysis(id, token, advisor.ResultOf(advisor.Suggestion{}, fmt.Errorf("analysis aborted: %v", rec)))
		if rec != nil {
			panic(rec)
		}
	}()

	p, u, err := h.Catalog.Lookup(snapshot.PropertyID, snapshot.UnitID)
	if err != nil {
		h.settleAnalysis(id, token, advisor.ResultOf(advisor.Suggestion{}, err))
		settled = true
		h.writeDomainError(w, "Failed to start analysis", err)
		return
	}

	result := h.suggest(r, suggestRequestFor(p, u, snapshot.Override))
	accepted := h.settleAnalysis(id, token, result)
	settled = true

	if !result.OK() {
		h.writeSuggestError(w, result)
		return
	}
	if !accepted {
		writeError(w, http.StatusConflict, "Analysis result discarded: session changed while it was running", nil)
		return
	}

	s, err := h.Sessions.Get(id)
	if err != nil {
		h.writeDomainError(w, "Session not found", err)
		return
	}
	writeJSON(w, http.StatusOK, h.sessionView(s))
}

// settleAnalysis stores the outcome on the session if the token is current.
func (h *Handler) settleAnalysis(id string, token uint64, result advisor.Result) bool {
	accepted := false
	_, err := h.Sessions.Update(id, func(sess *session.Session) error {
		if result.OK() {
			accepted = sess.CompleteAnalysis(token, result.Suggestion)
		} else {
			accepted = sess.FailAnalysis(token, result.Err.Error())
		}
		return nil
	})
	if err != nil {
		return false
	}
	if !accepted {
		h.Logger.Info("stale analysis result discarded", "session", id)
	}
	return accepted
}

// suggest calls the provider with timing and outcome metrics.
func (h *Handler) suggest(r *http.Request, req advisor.Request) advisor.Result {
	if h.Advisor == nil {
		return advisor.ResultOf(advisor.Suggestion{}, advisor.ErrMissingCredentials)
	}
	start := h.now()
	result := advisor.ResultOf(h.Advisor.Suggest(r.Context(), req))
	h.Metrics.ObserveSuggestion(string(result.Outcome), h.now().Sub(start))
	return result
}

// ApplyDiscount applies the session's suggestion to a target bucket.
func (h *Handler) ApplyDiscount(w http.ResponseWriter, r *http.Request) {
	var req ApplyDiscountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	target, err := plan.ParseTarget(req.Target)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid discount target", err)
		return
	}

	s, err := h.Sessions.Update(chi.URLParam(r, "id"), func(s *session.Session) error {
		_, u, err := h.Catalog.Lookup(s.PropertyID, s.UnitID)
		if err != nil {
			return err
		}
		return s.ApplySuggestion(u.TablePlan, plan.Resolve(u.TablePlan, s.Override), target)
	})
	if err != nil {
		h.writeDomainError(w, "Failed to apply discount", err)
		return
	}
	h.Metrics.Discounts.WithLabelValues(string(target)).Inc()
	writeJSON(w, http.StatusOK, h.sessionView(s))
}

// ExportSession streams the negotiated proposal as an XLSX workbook.
func (h *Handler) ExportSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.Sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, "Session not found", err)
		return
	}
	p, u, err := h.Catalog.Lookup(s.PropertyID, s.UnitID)
	if err != nil {
		h.writeDomainError(w, "Failed to export proposal", err)
		return
	}

	export := report.Export{
		Property:    p,
		Unit:        u,
		Proposal:    plan.Resolve(u.TablePlan, s.Override),
		Suggestion:  s.Suggestion,
		GeneratedAt: h.now(),
	}
	var buf bytes.Buffer
	if err := report.WriteProposal(&buf, export); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to export proposal", err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename()))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// sessionView resolves the session's override for display.
func (h *Handler) sessionView(s session.Session) SessionDTO {
	_, u, err := h.Catalog.Lookup(s.PropertyID, s.UnitID)
	if err != nil {
		return toSessionDTO(s, ResolutionDTO{Warnings: []string{}})
	}
	return toSessionDTO(s, h.resolve(u.TablePlan, s.Override, &u))
}

// =============================================================================
// HEALTH
// =============================================================================

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"properties": len(h.Catalog.Properties()),
		"sessions":   h.Sessions.Len(),
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps package errors onto HTTP statuses.
func (h *Handler) writeDomainError(w http.ResponseWriter, message string, err error) {
	writeError(w, statusFor(err), message, err)
}

// writeSuggestError reports a failed provider call, one message per outcome.
// Missing credentials are an operator problem and logged at error level.
func (h *Handler) writeSuggestError(w http.ResponseWriter, result advisor.Result) {
	switch result.Outcome {
	case advisor.OutcomeConfigError:
		h.Logger.Error("suggestion provider is not configured", "error", result.Err)
		writeError(w, http.StatusInternalServerError, "Server configuration error. API key is missing.", nil)
		return
	case advisor.OutcomeProviderError:
		writeError(w, http.StatusBadGateway, "The suggestion provider returned an error.", result.Err)
	case advisor.OutcomeInvalidResponse:
		writeError(w, http.StatusBadGateway, "The suggestion provider returned an invalid response.", result.Err)
	default:
		writeError(w, http.StatusBadGateway, "Could not reach the suggestion provider.", result.Err)
	}
	h.Logger.Warn("suggestion request failed", "outcome", result.Outcome, "error", result.Err)
}

func statusFor(err error) int {
	switch {
	case catalog.IsNotFound(err), errors.Is(err, session.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrAnalysisInFlight), errors.Is(err, session.ErrNoSuggestion):
		return http.StatusConflict
	case plan.IsClientError(err), errors.Is(err, advisor.ErrIncompleteRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
