// Package api provides the HTTP server for genforge.
// It exposes migration control, generation, and health endpoints.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/genforge/genforge/internal/domain"
	"github.com/genforge/genforge/internal/gen"
	"github.com/genforge/genforge/internal/health"
	"github.com/genforge/genforge/internal/infra/sqlite"
	"github.com/genforge/genforge/internal/migrate"
)

// Server is the genforge HTTP API server.
type Server struct {
	ctrl           *migrate.Controller
	runner         *gen.Runner
	source         domain.SchemaSource // nil when no database is configured
	store          *sqlite.DB          // nil when auditing is disabled
	checker        *health.Checker     // nil outside the daemon
	version        string
	genPackage     string
	genOutDir      string
	genDialect     string
	metricsEnabled bool
}

// NewServer creates a new API server around a migration controller and a
// generation runner.
func NewServer(ctrl *migrate.Controller, runner *gen.Runner) *Server {
	return &Server{ctrl: ctrl, runner: runner, version: "dev", genPackage: "models", genOutDir: "."}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// SetVersion sets the version string reported by /api/version.
func (s *Server) SetVersion(v string) { s.version = v }

// SetSchemaSource sets the database the generate endpoints introspect.
func (s *Server) SetSchemaSource(src domain.SchemaSource) { s.source = src }

// SetStore sets the audit store backing the run history endpoints.
func (s *Server) SetStore(db *sqlite.DB) { s.store = db }

// SetHealthChecker sets the daemon health checker reported by /api/health.
func (s *Server) SetHealthChecker(c *health.Checker) { s.checker = c }

// SetGenerateDefaults sets the package name, output directory, and placeholder
// dialect used when a generate request does not name its own.
func (s *Server) SetGenerateDefaults(pkg, outDir, dialect string) {
	if pkg != "" {
		s.genPackage = pkg
	}
	if outDir != "" {
		s.genOutDir = outDir
	}
	if dialect != "" {
		s.genDialect = dialect
	}
}

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))
	r.Use(corsMiddleware)

	// Banner
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "genforge is running",
		})
	})

	// Liveness probe for load balancers
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "ok",
		})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/version", s.handleVersion)
		r.Get("/health", s.handleHealth)
		r.Get("/statistics", s.handleStatistics)
		r.Get("/runs", s.handleRuns)
		r.Post("/generate", s.handleGenerate)

		r.Route("/migration", func(r chi.Router) {
			r.Get("/status", s.handleMigrationStatus)
			r.Get("/history", s.handleRollbackHistory)
			r.Post("/config", s.handleConfigure)
			r.Post("/rollback", s.handleRollback)
			r.Post("/breaker/trip", s.handleBreakerTrip)
			r.Post("/breaker/reset", s.handleBreakerReset)
		})
	})

	// Prometheus metrics endpoint
	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": msg,
			"type":    "error",
		},
	})
}

// corsMiddleware adds CORS headers for local development.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
