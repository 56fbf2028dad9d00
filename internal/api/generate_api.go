package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/genforge/genforge/internal/gen"
)

// ─── Generation API (/api/generate) ─────────────────────────────────────────

type generateRequest struct {
	Tables  []string `json:"tables,omitempty"` // empty means every table
	Package string   `json:"package,omitempty"`
	OutDir  string   `json:"out_dir,omitempty"`
	Dialect string   `json:"dialect,omitempty"`
}

type generateResult struct {
	Entity   string   `json:"entity"`
	Pipeline string   `json:"pipeline"`
	Files    []string `json:"files"`
}

type generateError struct {
	Entity string `json:"entity"`
	Error  string `json:"error"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if s.source == nil {
		writeError(w, http.StatusServiceUnavailable, "no schema source configured")
		return
	}

	// The body is optional; an empty POST generates every table.
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Package == "" {
		req.Package = s.genPackage
	}
	if req.OutDir == "" {
		req.OutDir = s.genOutDir
	}
	if req.Dialect == "" {
		req.Dialect = s.genDialect
	}

	var (
		report gen.Report
		err    error
	)
	if len(req.Tables) == 0 {
		report, err = s.runner.GenerateAll(r.Context(), s.source, req.Package, req.OutDir, req.Dialect)
	} else {
		report, err = s.runner.GenerateTables(r.Context(), s.source, req.Tables, req.Package, req.OutDir, req.Dialect)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	results := make([]generateResult, len(report.Results))
	for i, res := range report.Results {
		results[i] = generateResult{
			Entity:   res.Entity,
			Pipeline: res.Pipeline.String(),
			Files:    res.Files,
		}
	}
	failures := make([]generateError, len(report.Errors))
	for i, e := range report.Errors {
		failures[i] = generateError{Entity: e.Entity, Error: e.Err.Error()}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"results":   results,
		"errors":    failures,
		"generated": len(results),
		"failed":    len(failures),
	})
}
