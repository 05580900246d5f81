package simulation

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/ErwanAndreo/HospitalAi/config"
	"github.com/ErwanAndreo/HospitalAi/metrics"
	"github.com/ErwanAndreo/HospitalAi/store"
)

// failingStore rejects every call so tests can prove persistence
// failures never stop the simulation.
type failingStore struct{}

func (failingStore) SaveMetricsBatch([]store.MetricSample) error { return errStoreDown }
func (failingStore) RecentMetrics(string, time.Time) ([]store.MetricSample, error) {
	return nil, errStoreDown
}
func (failingStore) CreateEvent(store.EventRecord) error       { return errStoreDown }
func (failingStore) EndEvent(string, time.Time) error          { return errStoreDown }
func (failingStore) SavePatientEvent(store.PatientEvent) error { return errStoreDown }
func (failingStore) CapacityOverview() ([]store.CapacityOverview, error) {
	return nil, errStoreDown
}
func (failingStore) CreateTransport(store.TransportRequest) error { return errStoreDown }
func (failingStore) UpdateTransport(string, store.TransportUpdate) error {
	return errStoreDown
}
func (failingStore) ListTransports(string) ([]store.TransportRequest, error) {
	return nil, errStoreDown
}
func (failingStore) CreateOperation(store.OperationRecord) error { return errStoreDown }
func (failingStore) RecentOperations(string, time.Time) ([]store.OperationRecord, error) {
	return nil, errStoreDown
}
func (failingStore) ListInventory() ([]store.InventoryItem, error) { return nil, errStoreDown }
func (failingStore) ConsumeInventory(string, int) error            { return errStoreDown }
func (failingStore) CreateAlert(store.AlertRecord) error           { return errStoreDown }
func (failingStore) SavePredictions([]store.Prediction) error      { return errStoreDown }

var errStoreDown = errors.New("store unavailable")

// panickingStore blows up on inventory reads so tests can prove a
// broken dependency cannot take the tick loop down.
type panickingStore struct{ failingStore }

func (panickingStore) ListInventory() ([]store.InventoryItem, error) {
	panic("inventory backend gone")
}

// fixedClock returns a clock pinned to a Monday morning that advances
// one tick interval per call.
func fixedClock(start time.Time, step time.Duration) func() time.Time {
	current := start
	return func() time.Time {
		t := current
		current = current.Add(step)
		return t
	}
}

func newTestEngine(seed int64) (*Engine, *store.MemoryStore) {
	cfg := config.DefaultConfig()
	st := store.NewMemoryStore()
	seeds := make([]store.DepartmentSeed, 0, len(cfg.Departments))
	for _, d := range cfg.Departments {
		seeds = append(seeds, store.DepartmentSeed{Name: d.Name, TotalBeds: d.TotalBeds})
	}
	st.SeedDepartments(seeds)

	start := time.Date(2026, 3, 16, 10, 0, 0, 0, time.UTC)
	e := NewEngineWithSource(cfg, st, zap.NewNop(),
		rand.New(rand.NewSource(seed)), fixedClock(start, 5*time.Second))
	return e, st
}

func TestInitialState(t *testing.T) {
	e, _ := newTestEngine(1)
	state := e.CurrentMetrics()

	if state[metrics.EDLoad] != 65 {
		t.Errorf("Expected initial ED load 65, got %f", state[metrics.EDLoad])
	}
	if state[metrics.WaitingCount] != 5 {
		t.Errorf("Expected initial waiting count 5, got %f", state[metrics.WaitingCount])
	}
	if state[metrics.BedsFree] != 45 {
		t.Errorf("Expected initial beds free 45, got %f", state[metrics.BedsFree])
	}
}

func TestTickKeepsMetricsInRange(t *testing.T) {
	e, _ := newTestEngine(2)

	for i := 0; i < 500; i++ {
		e.Tick()
		state := e.CurrentMetrics()

		for _, name := range metrics.AllNames() {
			v := state[name]
			if name.IsPercentage() && (v < 0 || v > 100) {
				t.Fatalf("Tick %d: %s out of [0,100]: %f", i, name, v)
			}
			if !name.IsPercentage() {
				if v < 0 {
					t.Fatalf("Tick %d: %s negative: %f", i, name, v)
				}
				if v != float64(int(v)) {
					t.Fatalf("Tick %d: count %s not integral: %f", i, name, v)
				}
			}
		}
	}
}

func TestTickStaysNearMorningBaseline(t *testing.T) {
	e, _ := newTestEngine(3)

	for i := 0; i < 10; i++ {
		e.Tick()
	}
	state := e.CurrentMetrics()
	ed := state[metrics.EDLoad]
	if ed < 55 || ed > 98 {
		t.Errorf("Expected morning ED load in [55,98], got %f", ed)
	}
}

func TestTickSurvivesPanicKeepingPriorState(t *testing.T) {
	cfg := config.DefaultConfig()
	start := time.Date(2026, 3, 16, 10, 0, 0, 0, time.UTC)
	e := NewEngineWithSource(cfg, panickingStore{}, zap.NewNop(),
		rand.New(rand.NewSource(10)), fixedClock(start, 5*time.Second))

	before := e.CurrentMetrics()
	e.Tick()
	after := e.CurrentMetrics()

	for _, name := range metrics.AllNames() {
		if after[name] != before[name] {
			t.Fatalf("Expected %s unchanged after a failed tick, got %f -> %f",
				name, before[name], after[name])
		}
	}

	// subsequent ticks keep running
	e.Tick()
	e.Tick()
}

// A ten-cycle weekday morning run with disruptions disabled: the load
// driver stays in its busy band and the waiting count builds up, unlike
// a quiet-hours control run.
func TestWeekdayMorningRunCouplesWaitingToLoad(t *testing.T) {
	quietConfig := func() *config.SimulationConfig {
		cfg := config.DefaultConfig()
		for name, rule := range cfg.EventRules {
			rule.Probability = 0
			rule.DemoProbability = 0
			cfg.EventRules[name] = rule
		}
		return cfg
	}

	run := func(seed int64, hour int) (waiting float64, loads []float64) {
		st := store.NewMemoryStore()
		start := time.Date(2026, 3, 16, hour, 0, 0, 0, time.UTC)
		e := NewEngineWithSource(quietConfig(), st, zap.NewNop(),
			rand.New(rand.NewSource(seed)), fixedClock(start, 5*time.Second))
		for i := 0; i < 10; i++ {
			e.Tick()
			loads = append(loads, e.CurrentMetrics()[metrics.EDLoad])
		}
		return e.CurrentMetrics()[metrics.WaitingCount], loads
	}

	const trials = 10
	var morningSum, nightSum float64
	for seed := int64(0); seed < trials; seed++ {
		morningWaiting, loads := run(seed, 10)
		for i, ed := range loads {
			if ed < 55 || ed > 85 {
				t.Fatalf("Seed %d tick %d: morning ED load out of [55,85]: %f", seed, i, ed)
			}
		}
		nightWaiting, _ := run(seed, 3)
		morningSum += morningWaiting
		nightSum += nightWaiting
	}

	if mean := morningSum / trials; mean <= 5 {
		t.Errorf("Expected morning waiting to build above its starting 5, got mean %f", mean)
	}
	if morningSum <= nightSum {
		t.Errorf("Expected morning waiting to outgrow the quiet-hours control, got means %f <= %f",
			morningSum/trials, nightSum/trials)
	}
}

func TestTickPersistsMetricsBatch(t *testing.T) {
	e, st := newTestEngine(4)
	e.Tick()

	since := time.Date(2026, 3, 16, 9, 0, 0, 0, time.UTC)
	samples, err := st.RecentMetrics(string(metrics.EDLoad), since)
	if err != nil {
		t.Fatalf("RecentMetrics failed: %v", err)
	}
	if len(samples) != 1 {
		t.Fatalf("Expected 1 persisted ED load sample, got %d", len(samples))
	}
	if samples[0].Unit != "%" {
		t.Errorf("Expected %% unit on ED load sample, got %s", samples[0].Unit)
	}

	all, err := st.RecentMetrics("", since)
	if err != nil {
		t.Fatalf("RecentMetrics failed: %v", err)
	}
	if len(all) != len(metrics.AllNames()) {
		t.Errorf("Expected one sample per metric, got %d", len(all))
	}
}

func TestCurrentMetricsIsACopy(t *testing.T) {
	e, _ := newTestEngine(5)
	e.Tick()

	snapshot := e.CurrentMetrics()
	snapshot[metrics.EDLoad] = -999

	if e.CurrentMetrics()[metrics.EDLoad] == -999 {
		t.Errorf("Expected snapshot mutation not to leak into engine state")
	}
}

func TestStoreFailureDoesNotStopSimulation(t *testing.T) {
	cfg := config.DefaultConfig()
	st := failingStore{}
	start := time.Date(2026, 3, 16, 10, 0, 0, 0, time.UTC)
	e := NewEngineWithSource(cfg, st, zap.NewNop(),
		rand.New(rand.NewSource(6)), fixedClock(start, 5*time.Second))

	for i := 0; i < 20; i++ {
		e.Tick()
	}
	state := e.CurrentMetrics()
	if state[metrics.EDLoad] <= 0 {
		t.Errorf("Expected simulation to keep running with a failing store")
	}
}

func TestSetDemoModeOffClearsEvents(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DemoMode = true
	for name, rule := range cfg.EventRules {
		rule.DemoProbability = 1.0
		cfg.EventRules[name] = rule
	}
	st := store.NewMemoryStore()
	start := time.Date(2026, 3, 16, 10, 0, 0, 0, time.UTC)
	e := NewEngineWithSource(cfg, st, zap.NewNop(),
		rand.New(rand.NewSource(7)), fixedClock(start, 5*time.Second))

	e.Tick()
	if len(e.ActiveEvents()) == 0 {
		t.Fatalf("Expected active events with certain demo triggers")
	}

	e.SetDemoMode(false)
	if len(e.ActiveEvents()) != 0 {
		t.Errorf("Expected demo-off to clear all events, got %d", len(e.ActiveEvents()))
	}
	if e.DemoMode() {
		t.Errorf("Expected demo mode off")
	}
}

func TestMetricHistoryWindow(t *testing.T) {
	e, _ := newTestEngine(8)

	for i := 0; i < 20; i++ {
		e.Tick()
	}

	samples := e.MetricHistory(metrics.EDLoad, time.Hour)
	if len(samples) != 20 {
		t.Errorf("Expected 20 history samples, got %d", len(samples))
	}
	for i := 1; i < len(samples); i++ {
		if samples[i].Timestamp.Before(samples[i-1].Timestamp) {
			t.Errorf("Expected history in chronological order")
		}
	}

	narrow := e.MetricHistory(metrics.EDLoad, 30*time.Second)
	if len(narrow) >= len(samples) {
		t.Errorf("Expected narrow window to return fewer samples, got %d", len(narrow))
	}
}

func TestApplyRecommendationEffect(t *testing.T) {
	e, _ := newTestEngine(9)
	e.Tick()

	before := e.CurrentMetrics()
	if !e.ApplyRecommendationEffect("staffing_reassignment") {
		t.Fatalf("Expected staffing_reassignment to be a known action")
	}
	after := e.CurrentMetrics()

	if after[metrics.EDLoad] >= before[metrics.EDLoad] && before[metrics.EDLoad] > 8 {
		t.Errorf("Expected ED load to drop, got %f -> %f", before[metrics.EDLoad], after[metrics.EDLoad])
	}

	if e.ApplyRecommendationEffect("unknown_action") {
		t.Errorf("Expected unknown action to be rejected")
	}
}

func TestDefaultSingleton(t *testing.T) {
	ResetDefault()
	defer ResetDefault()

	cfg := config.DefaultConfig()
	st := store.NewMemoryStore()
	a := Default(cfg, st, zap.NewNop())
	b := Default(cfg, st, zap.NewNop())
	if a != b {
		t.Errorf("Expected Default to return the same engine")
	}
}
