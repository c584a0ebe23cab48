package api

import (
	"encoding/json"
	"net/http"

	"github.com/warp/proposal-engine/advisor"
	"github.com/warp/proposal-engine/catalog"
	"github.com/warp/proposal-engine/plan"
)

// =============================================================================
// SUGGESTION PROVIDER ENDPOINT
// =============================================================================
//
//   POST /api/suggest
//   {"property": {...}, "unit": {...}, "clientProposal": {...}}
//
//   200 {"suggestedDiscountPercentage", "rationale", "newNegotiatedValue"}
//   400 missing or malformed body parts
//   405 any other method (Allow: POST)
//   500 provider credentials not configured
//   502 provider failed

type suggestBody struct {
	Property       json.RawMessage `json:"property"`
	Unit           json.RawMessage `json:"unit"`
	ClientProposal json.RawMessage `json:"clientProposal"`
}

// Suggest serves the suggestion provider contract for external callers.
func (h *Handler) Suggest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed", nil)
		return
	}

	var body suggestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if missing(body.Property) || missing(body.Unit) || missing(body.ClientProposal) {
		writeError(w, http.StatusBadRequest, "Missing required body parameters.", nil)
		return
	}

	var req advisor.Request
	var err error
	if err = json.Unmarshal(body.Property, &req.Property); err == nil {
		if err = json.Unmarshal(body.Unit, &req.Unit); err == nil {
			err = json.Unmarshal(body.ClientProposal, &req.ClientProposal)
		}
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	result := h.suggest(r, req)
	if !result.OK() {
		h.writeSuggestError(w, result)
		return
	}
	writeJSON(w, http.StatusOK, result.Suggestion)
}

func missing(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

// suggestRequestFor builds the provider request for a unit and override. The
// proposal sent is the resolved plan.
func suggestRequestFor(p catalog.Property, u catalog.Unit, o plan.Override) advisor.Request {
	return advisor.NewRequest(p, u, plan.Resolve(u.TablePlan, o))
}
