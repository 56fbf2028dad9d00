package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/genforge/genforge/internal/domain"
	"github.com/genforge/genforge/internal/migrate"
)

// ─── Migration control API (/api/migration/*) ───────────────────────────────
// These endpoints expose the migration controller to operators: inspect the
// rollout, reconfigure it, force a rollback, and work the circuit breaker.

// --- /api/version ---

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"version":           s.version,
		"migration_version": migrate.Version,
	})
}

// --- /api/health (readiness + migration health) ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	h, err := s.ctrl.HealthCheck()
	if err != nil {
		// The live config failed validation. The deployment is broken,
		// not merely degraded.
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	payload := map[string]interface{}{
		"status":            h.SystemHealth,
		"migration_version": h.MigrationVersion,
		"config":            h.Config,
		"circuit_breaker":   h.Breaker,
		"rollback":          h.Rollback,
	}
	if s.checker != nil {
		payload["checks"] = s.checker.Statuses()
	}
	writeJSON(w, http.StatusOK, payload)
}

// --- /api/statistics ---

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Statistics())
}

// --- /api/migration/status ---

func (s *Server) handleMigrationStatus(w http.ResponseWriter, r *http.Request) {
	h, err := s.ctrl.HealthCheck()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h)
}

// --- /api/migration/history ---

func (s *Server) handleRollbackHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rollbacks": s.ctrl.RollbackHistory(),
	})
}

// --- /api/migration/config ---

func (s *Server) handleConfigure(w http.ResponseWriter, r *http.Request) {
	var raw map[string]any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cfg, err := migrate.ParseSettings(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.ctrl.Configure(cfg); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"applied": cfg,
	})
}

// --- /api/migration/rollback ---

type rollbackRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleRollback(w http.ResponseWriter, r *http.Request) {
	// The body is optional; an empty POST is a manual rollback.
	var req rollbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	restored, ok := s.ctrl.RollbackNow(req.Reason)
	if !ok {
		writeError(w, http.StatusConflict, domain.ErrNothingToRollBack.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"restored": restored,
	})
}

// --- /api/migration/breaker/trip and /api/migration/breaker/reset ---

func (s *Server) handleBreakerTrip(w http.ResponseWriter, r *http.Request) {
	s.ctrl.TripBreaker()
	s.writeBreakerState(w)
}

func (s *Server) handleBreakerReset(w http.ResponseWriter, r *http.Request) {
	s.ctrl.ResetBreaker()
	s.writeBreakerState(w)
}

func (s *Server) writeBreakerState(w http.ResponseWriter) {
	h, err := s.ctrl.HealthCheck()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"circuit_breaker": h.Breaker,
	})
}

// --- /api/runs (audit store) ---

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "audit store not configured")
		return
	}

	limit := 0
	if q := r.URL.Query().Get("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = n
	}

	var runs []domain.GenerationRun
	var err error
	if entity := r.URL.Query().Get("entity"); entity != "" {
		runs, err = s.store.RunsForEntity(entity, limit)
	} else {
		runs, err = s.store.ListRuns(limit)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if q := r.URL.Query().Get("pipeline"); q != "" {
		p, perr := domain.ParsePipeline(q)
		if perr != nil {
			writeError(w, http.StatusBadRequest, perr.Error())
			return
		}
		filtered := runs[:0]
		for _, run := range runs {
			if run.Pipeline == p.String() {
				filtered = append(filtered, run)
			}
		}
		runs = filtered
	}

	stats, err := s.store.RunStats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"stats": stats,
	})
}
