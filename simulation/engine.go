package simulation

import (
	"math/rand"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/ErwanAndreo/HospitalAi/config"
	"github.com/ErwanAndreo/HospitalAi/metrics"
	"github.com/ErwanAndreo/HospitalAi/store"
)

var (
	tickCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hospitalai_simulation_ticks_total",
		Help: "Total number of completed simulation ticks",
	})
	activeEventsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hospitalai_active_events",
		Help: "Number of currently active disruption events",
	})
)

// Engine is the correlated hospital simulation. Every tick it advances
// the trend vector, recomputes the coupled metric state, applies and
// expires disruption events, generates patient activity, checks alert
// thresholds, and persists a metrics batch. All mutation happens on a
// working copy of the state; only a fully sanitized and clamped copy is
// committed, so a bad tick can never leave the published vector with
// NaN or out-of-range values.
type Engine struct {
	cfg    *config.SimulationConfig
	st     store.Store
	logger *zap.Logger

	mu          sync.Mutex
	state       metrics.State
	trends      metrics.TrendVector
	history     *metrics.HistorySet
	events      *EventEngine
	correlation *CorrelationEngine
	activity    *ActivityGenerator
	alerts      *AlertChecker
	demoMode    bool

	rng *rand.Rand
	now func() time.Time

	stop chan struct{}
	done chan struct{}
}

// NewEngine creates a simulation engine with the given collaborators.
// A nil logger is replaced with a no-op one.
func NewEngine(cfg *config.SimulationConfig, st store.Store, logger *zap.Logger) *Engine {
	return NewEngineWithSource(cfg, st, logger,
		rand.New(rand.NewSource(time.Now().UnixNano())), time.Now)
}

// NewEngineWithSource creates an engine with an explicit random source
// and clock, which tests use to pin time-of-day behavior.
func NewEngineWithSource(cfg *config.SimulationConfig, st store.Store,
	logger *zap.Logger, rng *rand.Rand, now func() time.Time) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		cfg:         cfg,
		st:          st,
		logger:      logger,
		state:       metrics.NewState(),
		trends:      metrics.NewTrendVector(),
		history:     metrics.NewHistorySet(cfg.HistoryCapacity),
		events:      NewEventEngine(cfg.EventRules, cfg.DepartmentNames(), st, rng, logger),
		correlation: NewCorrelationEngine(rng),
		activity:    NewActivityGenerator(cfg, st, rng, logger),
		alerts:      NewAlertChecker(st, logger),
		demoMode:    cfg.DemoMode,
		rng:         rng,
		now:         now,
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// Start launches the tick loop in its own goroutine
func (e *Engine) Start() {
	e.logger.Info("simulation engine starting",
		zap.Duration("tick_interval", e.cfg.TickInterval.Std()),
		zap.Bool("demo_mode", e.demoMode))
	go e.run()
}

// Stop signals the loop to exit and waits for the current tick to
// finish, giving up after five seconds.
func (e *Engine) Stop() {
	close(e.stop)
	select {
	case <-e.done:
	case <-time.After(5 * time.Second):
		e.logger.Warn("simulation loop did not stop in time")
	}
}

func (e *Engine) run() {
	defer close(e.done)

	ticker := time.NewTicker(e.cfg.TickInterval.Std())
	defer ticker.Stop()

	// first tick immediately so the dashboard has data at startup
	e.Tick()

	for {
		select {
		case <-e.stop:
			e.logger.Info("simulation engine stopped")
			return
		case <-ticker.C:
			e.Tick()
		}
	}
}

// Tick advances the simulation one cycle. Safe to call concurrently with
// the loop; cycles are serialized.
func (e *Engine) Tick() {
	e.mu.Lock()
	defer e.mu.Unlock()

	// A panicking cycle must not take the loop down: the working copy
	// is discarded and the previous state stays committed.
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("tick panicked, keeping previous state", zap.Any("panic", r))
		}
	}()

	now := e.now()

	// Work on copies; commit only the sanitized result
	next := e.state.Clone()
	trends := e.trends.Clone()

	trends.Step(e.rng)
	e.correlation.Step(now, next, trends)

	e.events.Expire(now)
	e.events.CheckTriggers(now, e.demoMode)
	e.events.Apply(now, next)

	e.activity.Generate(now, next)

	e.refreshInventoryRisk(next)

	next.Sanitize(e.state)
	next.Clamp()

	e.state = next
	e.trends = trends
	e.history.Record(now, next)

	e.alerts.Check(now, next)
	e.persistMetrics(now, next)

	tickCounter.Inc()
	activeEventsGauge.Set(float64(len(e.events.Active())))
}

// refreshInventoryRisk recounts the items at or below their minimum
// threshold.
func (e *Engine) refreshInventoryRisk(state metrics.State) {
	items, err := e.st.ListInventory()
	if err != nil {
		e.logger.Warn("failed to list inventory for risk count", zap.Error(err))
		return
	}
	risk := 0
	for _, item := range items {
		if item.Stock <= item.MinThreshold {
			risk++
		}
	}
	state[metrics.InventoryRiskCount] = float64(risk)
}

// persistMetrics writes the full vector as one batch, best effort
func (e *Engine) persistMetrics(now time.Time, state metrics.State) {
	batch := make([]store.MetricSample, 0, len(state))
	for _, name := range metrics.AllNames() {
		batch = append(batch, store.MetricSample{
			Type:      string(name),
			Value:     state.Get(name),
			Unit:      name.Unit(),
			Timestamp: now,
		})
	}

	store.RecordWrite("metrics_batch")
	if err := e.st.SaveMetricsBatch(batch); err != nil {
		store.RecordDroppedWrite("metrics_batch")
		e.logger.Warn("failed to persist metrics batch", zap.Error(err))
	}
}

// CurrentMetrics returns an independent copy of the published vector
func (e *Engine) CurrentMetrics() metrics.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Clone()
}

// ActiveEvents returns a snapshot of the live disruption events
func (e *Engine) ActiveEvents() []ActiveEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.events.Active()
}

// DemoMode reports whether demo mode is on
func (e *Engine) DemoMode() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.demoMode
}

// SetDemoMode toggles demo mode. Turning it off clears all active
// events immediately.
func (e *Engine) SetDemoMode(on bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.demoMode == on {
		return
	}
	e.demoMode = on
	e.logger.Info("demo mode changed", zap.Bool("enabled", on))
	if !on {
		e.events.Clear(e.now())
		activeEventsGauge.Set(0)
	}
}

// MetricHistory returns the samples for one metric inside the window.
// The in-memory ring is the fast path; when it cannot cover the window
// the store is consulted and the older samples are prepended.
func (e *Engine) MetricHistory(name metrics.Name, window time.Duration) []metrics.Sample {
	e.mu.Lock()
	cutoff := e.now().Add(-window)
	buf := e.history.Buffer(name)
	samples := buf.Since(cutoff)
	all := buf.All()
	covered := len(all) > 0 && !all[0].Timestamp.After(cutoff)
	e.mu.Unlock()

	if covered || window <= 0 {
		return samples
	}

	stored, err := e.st.RecentMetrics(string(name), cutoff)
	if err != nil {
		e.logger.Warn("failed to read metric history from store",
			zap.String("metric", string(name)), zap.Error(err))
		return samples
	}

	var oldest time.Time
	if len(samples) > 0 {
		oldest = samples[0].Timestamp
	}
	merged := make([]metrics.Sample, 0, len(stored)+len(samples))
	for _, s := range stored {
		if len(samples) > 0 && !s.Timestamp.Before(oldest) {
			continue
		}
		merged = append(merged, metrics.Sample{Timestamp: s.Timestamp, Value: s.Value})
	}
	return append(merged, samples...)
}

// ApplyRecommendationEffect nudges the metric vector the way acting on
// a dashboard recommendation would. Unknown actions are ignored.
func (e *Engine) ApplyRecommendationEffect(action string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	next := e.state.Clone()
	switch action {
	case "staffing_reassignment":
		next[metrics.EDLoad] -= 8
		next[metrics.WaitingCount] -= 2
		next[metrics.StaffLoad] += 5
	case "open_overflow_beds":
		next[metrics.BedsFree] += 3
		next[metrics.EDLoad] -= 5
	case "room_allocation":
		next[metrics.RoomsFree] += 2
	default:
		return false
	}

	next.Sanitize(e.state)
	next.Clamp()
	e.state = next
	e.logger.Info("recommendation effect applied", zap.String("action", action))
	return true
}
