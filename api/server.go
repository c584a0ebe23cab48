/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the negotiation frontend
  5. RateLimit:  Per-IP limit on routes that call the suggestion provider

ROUTE GROUPS:
  /api/properties/*     Catalog (read-only)
  /api/resolve          Stateless resolution
  /api/discount         Stateless discount application
  /api/sessions/*       Negotiation sessions
  /api/scenarios/*      Worked negotiation scenarios
  /api/suggest          Suggestion provider endpoint
  /healthz, /metrics    Operations
  /*                    Static files (frontend), when built

SECURITY NOTE:
  No authentication middleware. All endpoints are public; put the server
  behind the sales intranet gateway.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

var defaultOrigins = []string{"http://localhost:5173", "http://localhost:3000"}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	origins := h.CORSOrigins
	if len(origins) == 0 {
		origins = defaultOrigins
	}

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
	}))

	limited := func(next http.Handler) http.Handler { return next }
	if h.Limiter != nil {
		limited = h.Limiter.Middleware
	}

	r.Get("/healthz", h.Health)
	r.Handle("/metrics", h.Metrics.Handler())

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Catalog routes
		r.Route("/properties", func(r chi.Router) {
			r.Get("/", h.ListProperties)
			r.Get("/{id}", h.GetProperty)
			r.Get("/{id}/units/{unitID}", h.GetUnit)
		})

		// Engine routes
		r.Post("/resolve", h.Resolve)
		r.Post("/discount", h.Discount)

		// Session routes
		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", h.CreateSession)
			r.Get("/{id}", h.GetSession)
			r.Delete("/{id}", h.DeleteSession)
			r.Put("/{id}/unit", h.SelectUnit)
			r.Put("/{id}/override", h.SetOverride)
			r.Delete("/{id}/override", h.ClearOverride)
			r.With(limited).Post("/{id}/analyze", h.Analyze)
			r.Post("/{id}/apply-discount", h.ApplyDiscount)
			r.Get("/{id}/export", h.ExportSession)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Post("/{id}/run", h.RunScenario)
		})

		// Provider endpoint: every method reaches the handler so it can
		// answer 405 with an Allow header.
		r.With(limited).HandleFunc("/suggest", h.Suggest)
	})

	// Serve static files (frontend)
	staticDir := "./web/dist"
	if _, err := os.Stat(staticDir); os.IsNotExist(err) {
		exe, _ := os.Executable()
		staticDir = filepath.Join(filepath.Dir(exe), "web", "dist")
	}

	if _, err := os.Stat(staticDir); err == nil {
		fileServer := http.FileServer(http.Dir(staticDir))
		r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
			fullPath := filepath.Join(staticDir, r.URL.Path)
			if _, err := os.Stat(fullPath); os.IsNotExist(err) {
				// SPA routing: serve index.html
				http.ServeFile(w, r, filepath.Join(staticDir, "index.html"))
				return
			}
			fileServer.ServeHTTP(w, r)
		})
	} else {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>Proposal Engine</title></head>
<body style="font-family: system-ui; max-width: 800px; margin: 50px auto; padding: 20px;">
<h1>Proposal Engine API</h1>
<p>The frontend is not built. The API is available:</p>
<ul>
<li><a href="/api/properties">/api/properties</a> - Properties and table plans</li>
<li><a href="/api/scenarios">/api/scenarios</a> - Worked negotiation scenarios</li>
<li><a href="/metrics">/metrics</a> - Prometheus metrics</li>
</ul>
</body>
</html>`))
		})
	}

	return r
}
