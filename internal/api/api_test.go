package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/genforge/genforge/internal/domain"
	"github.com/genforge/genforge/internal/gen"
	"github.com/genforge/genforge/internal/health"
	"github.com/genforge/genforge/internal/infra/sqlite"
	"github.com/genforge/genforge/internal/migrate"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	ctrl, err := migrate.New(migrate.DefaultConfig())
	if err != nil {
		t.Fatalf("migrate.New() error: %v", err)
	}
	runner := gen.NewRunner(ctrl,
		gen.NewMockExecutor(domain.PipelineLegacy),
		gen.NewMockExecutor(domain.PipelineNew))
	return NewServer(ctrl, runner)
}

// fakeSource serves a fixed table list without a real database.
type fakeSource struct {
	tables []string
}

func (f *fakeSource) Tables(ctx context.Context) ([]string, error) { return f.tables, nil }

func (f *fakeSource) Describe(ctx context.Context, table string) (domain.Schema, error) {
	for _, name := range f.tables {
		if name == table {
			return domain.Schema{
				Table: table,
				Columns: []domain.Column{
					{Name: "id", Kind: domain.KindInt, PrimaryKey: true},
					{Name: "name", Kind: domain.KindText},
				},
			}, nil
		}
	}
	return domain.Schema{}, domain.ErrTableNotFound
}

func (f *fakeSource) Close() error { return nil }

// ─── Banner & Version ───────────────────────────────────────────────────────

func TestAPI_Banner(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()

	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var body map[string]string
	json.NewDecoder(w.Body).Decode(&body)
	if body["status"] != "genforge is running" {
		t.Errorf("status = %q, unexpected", body["status"])
	}
}

func TestAPI_Liveness(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	srv.Handler().ServeHTTP(w, req)

	var body map[string]string
	json.NewDecoder(w.Body).Decode(&body)
	if body["status"] != "ok" {
		t.Errorf("status = %q, want ok", body["status"])
	}
}

func TestAPI_Version(t *testing.T) {
	srv := newTestServer(t)
	srv.SetVersion("1.2.3")

	req := httptest.NewRequest("GET", "/api/version", nil)
	w := httptest.NewRecorder()

	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var body map[string]string
	json.NewDecoder(w.Body).Decode(&body)
	if body["version"] != "1.2.3" {
		t.Errorf("version = %q, want 1.2.3", body["version"])
	}
	if body["migration_version"] != migrate.Version {
		t.Errorf("migration_version = %q, want %q", body["migration_version"], migrate.Version)
	}
}

// ─── Health ─────────────────────────────────────────────────────────────────

func TestAPI_Health(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest("GET", "/api/health", nil)
	w := httptest.NewRecorder()

	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var body map[string]interface{}
	json.NewDecoder(w.Body).Decode(&body)
	if body["status"] != migrate.HealthHealthy {
		t.Errorf("status = %v, want healthy", body["status"])
	}
	if _, ok := body["config"]; !ok {
		t.Error("response should contain 'config' key")
	}
	if _, ok := body["checks"]; ok {
		t.Error("response should not contain 'checks' without a checker")
	}
}

func TestAPI_Health_WithChecker(t *testing.T) {
	srv := newTestServer(t)

	db, err := sqlite.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open db: %v", err)
	}
	defer db.Close()
	srv.SetHealthChecker(health.NewChecker(db, srv.ctrl, t.TempDir()))

	req := httptest.NewRequest("GET", "/api/health", nil)
	w := httptest.NewRecorder()

	srv.Handler().ServeHTTP(w, req)

	var body map[string]interface{}
	json.NewDecoder(w.Body).Decode(&body)
	if _, ok := body["checks"]; !ok {
		t.Error("response should contain 'checks' with a checker attached")
	}
}

// ─── Statistics ─────────────────────────────────────────────────────────────

func TestAPI_Statistics(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest("GET", "/api/statistics", nil)
	w := httptest.NewRecorder()

	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var body map[string]interface{}
	json.NewDecoder(w.Body).Decode(&body)
	if body["total_routed"] != float64(0) {
		t.Errorf("total_routed = %v, want 0", body["total_routed"])
	}
}

// ─── Migration status & config ──────────────────────────────────────────────

func TestAPI_MigrationStatus(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest("GET", "/api/migration/status", nil)
	w := httptest.NewRecorder()

	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var body map[string]interface{}
	json.NewDecoder(w.Body).Decode(&body)

	breaker, ok := body["circuit_breaker"].(map[string]interface{})
	if !ok {
		t.Fatal("circuit_breaker should be an object")
	}
	if breaker["state"] != "CLOSED" {
		t.Errorf("breaker state = %v, want CLOSED", breaker["state"])
	}
}

func TestAPI_Configure(t *testing.T) {
	srv := newTestServer(t)

	body := `{"new_pipeline_percentage": 50, "enable_canary_testing": true, "canary_sample_rate": 5}`
	req := httptest.NewRequest("POST", "/api/migration/config", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d, body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	if got := srv.ctrl.Config().NewPipelinePercentage; got != 50 {
		t.Errorf("live percentage = %d, want 50", got)
	}
}

func TestAPI_Configure_Invalid(t *testing.T) {
	srv := newTestServer(t)

	body := `{"new_pipeline_percentage": 150}`
	req := httptest.NewRequest("POST", "/api/migration/config", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if got := srv.ctrl.Config().NewPipelinePercentage; got != 0 {
		t.Errorf("live percentage = %d, want 0 (rejected config must not apply)", got)
	}
}

func TestAPI_Configure_BadJSON(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest("POST", "/api/migration/config", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

// ─── Rollback ───────────────────────────────────────────────────────────────

func TestAPI_Rollback(t *testing.T) {
	srv := newTestServer(t)

	// Reconfigure so a second checkpoint exists on the stack.
	cfg := migrate.DefaultConfig()
	cfg.NewPipelinePercentage = 30
	if err := srv.ctrl.Configure(cfg); err != nil {
		t.Fatalf("Configure() error: %v", err)
	}

	req := httptest.NewRequest("POST", "/api/migration/rollback", strings.NewReader(`{"reason": "drill"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var body map[string]interface{}
	json.NewDecoder(w.Body).Decode(&body)
	restored, ok := body["restored"].(map[string]interface{})
	if !ok {
		t.Fatal("restored should be an object")
	}
	restoredCfg, ok := restored["config"].(map[string]interface{})
	if !ok {
		t.Fatal("restored.config should be an object")
	}
	if restoredCfg["new_pipeline_percentage"] != float64(30) {
		t.Errorf("restored percentage = %v, want 30", restoredCfg["new_pipeline_percentage"])
	}
}

func TestAPI_Rollback_EmptyBody(t *testing.T) {
	srv := newTestServer(t)

	// The initial checkpoint from construction is still on the stack.
	req := httptest.NewRequest("POST", "/api/migration/rollback", nil)
	w := httptest.NewRecorder()

	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d, body: %s", w.Code, http.StatusOK, w.Body.String())
	}
}

func TestAPI_Rollback_Exhausted(t *testing.T) {
	srv := newTestServer(t)

	// Consume the initial checkpoint, then roll back once more.
	req := httptest.NewRequest("POST", "/api/migration/rollback", nil)
	srv.Handler().ServeHTTP(httptest.NewRecorder(), req)

	req = httptest.NewRequest("POST", "/api/migration/rollback", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d", w.Code, http.StatusConflict)
	}
}

func TestAPI_RollbackHistory(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest("POST", "/api/migration/rollback", nil)
	srv.Handler().ServeHTTP(httptest.NewRecorder(), req)

	req = httptest.NewRequest("GET", "/api/migration/history", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	var body map[string]interface{}
	json.NewDecoder(w.Body).Decode(&body)
	rollbacks, ok := body["rollbacks"].([]interface{})
	if !ok {
		t.Fatal("rollbacks should be an array")
	}
	if len(rollbacks) != 1 {
		t.Errorf("len(rollbacks) = %d, want 1", len(rollbacks))
	}
}

// ─── Circuit breaker ────────────────────────────────────────────────────────

func TestAPI_BreakerTripAndReset(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest("POST", "/api/migration/breaker/trip", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	var body map[string]interface{}
	json.NewDecoder(w.Body).Decode(&body)
	breaker, _ := body["circuit_breaker"].(map[string]interface{})
	if breaker["state"] != "OPEN" {
		t.Errorf("state after trip = %v, want OPEN", breaker["state"])
	}

	req = httptest.NewRequest("POST", "/api/migration/breaker/reset", nil)
	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	json.NewDecoder(w.Body).Decode(&body)
	breaker, _ = body["circuit_breaker"].(map[string]interface{})
	if breaker["state"] != "CLOSED" {
		t.Errorf("state after reset = %v, want CLOSED", breaker["state"])
	}
}

// ─── Generate ───────────────────────────────────────────────────────────────

func TestAPI_Generate_NoSource(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest("POST", "/api/generate", nil)
	w := httptest.NewRecorder()

	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}

func TestAPI_Generate_SingleTable(t *testing.T) {
	srv := newTestServer(t)
	srv.SetSchemaSource(&fakeSource{tables: []string{"users", "orders"}})
	srv.SetGenerateDefaults("models", t.TempDir(), "")

	body := `{"tables": ["users"]}`
	req := httptest.NewRequest("POST", "/api/generate", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp map[string]interface{}
	json.NewDecoder(w.Body).Decode(&resp)
	if resp["generated"] != float64(1) {
		t.Errorf("generated = %v, want 1", resp["generated"])
	}
	results, _ := resp["results"].([]interface{})
	if len(results) != 1 {
		t.Fatalf("len(results) = %d, want 1", len(results))
	}
	first, _ := results[0].(map[string]interface{})
	if first["entity"] != "users" {
		t.Errorf("entity = %v, want users", first["entity"])
	}
	if first["pipeline"] != "legacy" {
		t.Errorf("pipeline = %v, want legacy (default rollout is 0%%)", first["pipeline"])
	}
}

func TestAPI_Generate_AllTables(t *testing.T) {
	srv := newTestServer(t)
	srv.SetSchemaSource(&fakeSource{tables: []string{"users", "orders"}})
	srv.SetGenerateDefaults("models", t.TempDir(), "")

	req := httptest.NewRequest("POST", "/api/generate", nil)
	w := httptest.NewRecorder()

	srv.Handler().ServeHTTP(w, req)

	var resp map[string]interface{}
	json.NewDecoder(w.Body).Decode(&resp)
	if resp["generated"] != float64(2) {
		t.Errorf("generated = %v, want 2, body: %s", resp["generated"], w.Body.String())
	}
}

func TestAPI_Generate_UnknownTable(t *testing.T) {
	srv := newTestServer(t)
	srv.SetSchemaSource(&fakeSource{tables: []string{"users"}})

	body := `{"tables": ["ghost"]}`
	req := httptest.NewRequest("POST", "/api/generate", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp map[string]interface{}
	json.NewDecoder(w.Body).Decode(&resp)
	if resp["failed"] != float64(1) {
		t.Errorf("failed = %v, want 1", resp["failed"])
	}
	errs, _ := resp["errors"].([]interface{})
	if len(errs) != 1 {
		t.Fatalf("len(errors) = %d, want 1", len(errs))
	}
	first, _ := errs[0].(map[string]interface{})
	if first["entity"] != "ghost" {
		t.Errorf("entity = %v, want ghost", first["entity"])
	}
}

// ─── Runs (audit store) ─────────────────────────────────────────────────────

func TestAPI_Runs_NoStore(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest("GET", "/api/runs", nil)
	w := httptest.NewRecorder()

	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}

func TestAPI_Runs(t *testing.T) {
	srv := newTestServer(t)

	db, err := sqlite.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open db: %v", err)
	}
	defer db.Close()
	srv.SetStore(db)

	at := time.Now()
	for i, entity := range []string{"users", "orders"} {
		run := domain.GenerationRun{
			ID:       entity + "-run",
			Entity:   entity,
			Pipeline: "legacy",
			Success:  true,
			Duration: 10 * time.Millisecond,
			At:       at.Add(time.Duration(i) * time.Second),
		}
		if err := db.RecordRun(run); err != nil {
			t.Fatalf("RecordRun() error: %v", err)
		}
	}

	req := httptest.NewRequest("GET", "/api/runs", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp map[string]interface{}
	json.NewDecoder(w.Body).Decode(&resp)
	runs, _ := resp["runs"].([]interface{})
	if len(runs) != 2 {
		t.Errorf("len(runs) = %d, want 2", len(runs))
	}
	if _, ok := resp["stats"]; !ok {
		t.Error("response should contain 'stats' key")
	}
}

func TestAPI_Runs_BadLimit(t *testing.T) {
	srv := newTestServer(t)

	db, err := sqlite.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open db: %v", err)
	}
	defer db.Close()
	srv.SetStore(db)

	req := httptest.NewRequest("GET", "/api/runs?limit=lots", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestAPI_Runs_Filtered(t *testing.T) {
	srv := newTestServer(t)

	db, err := sqlite.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open db: %v", err)
	}
	defer db.Close()
	srv.SetStore(db)

	at := time.Now()
	for i, run := range []domain.GenerationRun{
		{ID: "r1", Entity: "users", Pipeline: "legacy", Success: true},
		{ID: "r2", Entity: "users", Pipeline: "new", Success: true},
		{ID: "r3", Entity: "orders", Pipeline: "new", Success: false},
	} {
		run.At = at.Add(time.Duration(i) * time.Second)
		if err := db.RecordRun(run); err != nil {
			t.Fatalf("RecordRun() error: %v", err)
		}
	}

	cases := []struct {
		query string
		want  int
	}{
		{"?entity=users", 2},
		{"?entity=ghost", 0},
		{"?pipeline=new", 2},
		{"?entity=users&pipeline=new", 1},
	}
	for _, tc := range cases {
		req := httptest.NewRequest("GET", "/api/runs"+tc.query, nil)
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("%s: status = %d, want %d", tc.query, w.Code, http.StatusOK)
		}
		var resp map[string]interface{}
		json.NewDecoder(w.Body).Decode(&resp)
		runs, _ := resp["runs"].([]interface{})
		if len(runs) != tc.want {
			t.Errorf("%s: len(runs) = %d, want %d", tc.query, len(runs), tc.want)
		}
	}
}

func TestAPI_Runs_BadPipeline(t *testing.T) {
	srv := newTestServer(t)

	db, err := sqlite.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open db: %v", err)
	}
	defer db.Close()
	srv.SetStore(db)

	req := httptest.NewRequest("GET", "/api/runs?pipeline=turbo", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

// ─── Metrics ────────────────────────────────────────────────────────────────

func TestAPI_Metrics_DisabledByDefault(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()

	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestAPI_Metrics_Enabled(t *testing.T) {
	srv := newTestServer(t)
	srv.EnableMetrics()

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()

	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), "genforge_") {
		t.Error("metrics body should contain genforge_ series")
	}
}

// ─── CORS ───────────────────────────────────────────────────────────────────

func TestAPI_CORS(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest("OPTIONS", "/api/version", nil)
	w := httptest.NewRecorder()

	srv.Handler().ServeHTTP(w, req)

	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("CORS: Access-Control-Allow-Origin should be *")
	}
}
