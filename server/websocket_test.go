package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/ErwanAndreo/HospitalAi/config"
	"github.com/ErwanAndreo/HospitalAi/prediction"
	"github.com/ErwanAndreo/HospitalAi/simulation"
	"github.com/ErwanAndreo/HospitalAi/store"
)

func newTestHandler() (*HTTPHandler, *simulation.Engine) {
	cfg := config.DefaultConfig()
	st := store.NewMemoryStore()
	seeds := make([]store.DepartmentSeed, 0, len(cfg.Departments))
	for _, d := range cfg.Departments {
		seeds = append(seeds, store.DepartmentSeed{Name: d.Name, TotalBeds: d.TotalBeds})
	}
	st.SeedDepartments(seeds)

	engine := simulation.NewEngine(cfg, st, zap.NewNop())
	engine.Tick()
	predictor := prediction.NewEngine(engine, cfg, st, zap.NewNop())
	ds := NewDashboardServer(engine, predictor, st, zap.NewNop())
	return NewHTTPHandler(ds), engine
}

func TestGetState(t *testing.T) {
	h, _ := newTestHandler()

	req := httptest.NewRequest("GET", "/api/state", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var state map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&state); err != nil {
		t.Fatalf("Failed to decode state: %v", err)
	}
	if state["type"] != "STATE_UPDATE" {
		t.Errorf("Expected STATE_UPDATE, got %v", state["type"])
	}
	metricsMap, ok := state["metrics"].(map[string]interface{})
	if !ok || len(metricsMap) == 0 {
		t.Errorf("Expected metrics in state update")
	}
	if _, ok := metricsMap["ed_load"]; !ok {
		t.Errorf("Expected ed_load metric in state update")
	}
	if _, ok := state["capacity"]; !ok {
		t.Errorf("Expected capacity overview in state update")
	}
}

func TestGetMetricsHistory(t *testing.T) {
	h, engine := newTestHandler()
	for i := 0; i < 5; i++ {
		engine.Tick()
	}

	req := httptest.NewRequest("GET", "/api/metrics?window=1h", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var history []map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&history); err != nil {
		t.Fatalf("Failed to decode history: %v", err)
	}
	if len(history) == 0 {
		t.Errorf("Expected history samples after ticking")
	}
}

func TestGetPredictions(t *testing.T) {
	h, _ := newTestHandler()

	req := httptest.NewRequest("GET", "/api/predictions", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var batch []map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&batch); err != nil {
		t.Fatalf("Failed to decode predictions: %v", err)
	}
	if len(batch) != prediction.BatchSize {
		t.Errorf("Expected %d predictions, got %d", prediction.BatchSize, len(batch))
	}
}

func TestControlSetsDemoMode(t *testing.T) {
	h, engine := newTestHandler()

	body := strings.NewReader(`{"type":"SET_DEMO_MODE","enabled":true}`)
	req := httptest.NewRequest("POST", "/api/control", body)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if !engine.DemoMode() {
		t.Errorf("Expected demo mode to be enabled via control endpoint")
	}
}

func TestControlRejectsGet(t *testing.T) {
	h, _ := newTestHandler()

	req := httptest.NewRequest("GET", "/api/control", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405 for GET control, got %d", rec.Code)
	}
}

func TestExportCSV(t *testing.T) {
	h, engine := newTestHandler()
	engine.Tick()

	req := httptest.NewRequest("GET", "/api/export?format=csv", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("Expected text/csv, got %s", ct)
	}
	if !strings.HasPrefix(rec.Body.String(), "Type,Time,Value") {
		t.Errorf("Expected CSV header row")
	}
}

func TestUnknownPathReturns404(t *testing.T) {
	h, _ := newTestHandler()

	req := httptest.NewRequest("GET", "/api/unknown", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", rec.Code)
	}
}
