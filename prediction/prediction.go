// Package prediction derives short-horizon forecasts from the recent
// metric history: expected patient arrivals and expected bed demand per
// department. The model is a moving average with a linear trend
// correction, scaled by time-of-day and weekday factors; confidence
// grows with the amount of history and shrinks with the horizon.
package prediction

import (
	"time"

	"go.uber.org/zap"

	"github.com/ErwanAndreo/HospitalAi/config"
	"github.com/ErwanAndreo/HospitalAi/metrics"
	"github.com/ErwanAndreo/HospitalAi/store"
)

const modelVersion = "trend_v1"

// Forecast horizons in minutes; each batch covers every horizon for two
// arrival departments and two bed-demand departments, 12 records total.
var horizons = []int{5, 10, 15}

// BatchSize is the fixed number of predictions per generated batch
const BatchSize = 12

// MetricSource supplies recent samples for one metric. The simulation
// engine satisfies this.
type MetricSource interface {
	MetricHistory(name metrics.Name, window time.Duration) []metrics.Sample
}

// Engine generates and persists prediction batches
type Engine struct {
	src    MetricSource
	cfg    *config.SimulationConfig
	st     store.Store
	logger *zap.Logger
	now    func() time.Time

	stop chan struct{}
	done chan struct{}
}

// NewEngine creates a prediction engine
func NewEngine(src MetricSource, cfg *config.SimulationConfig, st store.Store,
	logger *zap.Logger) *Engine {
	return NewEngineWithClock(src, cfg, st, logger, time.Now)
}

// NewEngineWithClock creates a prediction engine with an explicit clock
func NewEngineWithClock(src MetricSource, cfg *config.SimulationConfig, st store.Store,
	logger *zap.Logger, now func() time.Time) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		src:    src,
		cfg:    cfg,
		st:     st,
		logger: logger,
		now:    now,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// arrivalTimeFactor scales arrival forecasts by time of day
func arrivalTimeFactor(hour int) float64 {
	switch {
	case hour >= 8 && hour < 12:
		return 1.3
	case hour >= 14 && hour < 18:
		return 1.2
	case hour >= 22 || hour < 6:
		return 0.6
	default:
		return 0.9
	}
}

func weekendFactor(t time.Time) float64 {
	if t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		return 0.85
	}
	return 1.0
}

// trendPerSample is the mean sample-to-sample change
func trendPerSample(samples []metrics.Sample) float64 {
	if len(samples) < 2 {
		return 0
	}
	return (samples[len(samples)-1].Value - samples[0].Value) / float64(len(samples)-1)
}

func movingAverage(samples []metrics.Sample) float64 {
	sum := 0.0
	for _, s := range samples {
		sum += s.Value
	}
	return sum / float64(len(samples))
}

func clampConfidence(c float64) float64 {
	if c < 0.3 {
		return 0.3
	}
	if c > 0.95 {
		return 0.95
	}
	return c
}

// PredictPatientArrival forecasts the expected number of arriving
// patients for one department over the horizon. With fewer than three
// history samples it falls back to a low-confidence default.
func (e *Engine) PredictPatientArrival(department string, horizonMinutes int) store.Prediction {
	now := e.now()
	p := store.Prediction{
		PredictionType:     "patient_arrival",
		TimeHorizonMinutes: horizonMinutes,
		Department:         department,
		ModelVersion:       modelVersion,
		CreatedAt:          now,
	}

	samples := e.src.MetricHistory(metrics.WaitingCount, time.Hour)
	n := float64(len(samples))
	if len(samples) > 12 {
		samples = samples[len(samples)-12:]
	}
	if len(samples) < 3 {
		p.PredictedValue = 5
		p.Confidence = 0.5
		return p
	}

	base := movingAverage(samples) + trendPerSample(samples)*float64(horizonMinutes)/5
	value := base * arrivalTimeFactor(now.Hour()) * weekendFactor(now)
	if value < 0 {
		value = 0
	}
	p.PredictedValue = value

	// Confidence counts the full window, not the truncated tail
	h := float64(horizonMinutes)
	conf := minFloat(0.95, 0.6+(n/20)*0.35) * (1 - (h/60)*0.2)
	p.Confidence = clampConfidence(conf)
	return p
}

// PredictBedDemand forecasts bed utilization percent for one department
// over the horizon. The hospital-wide free-bed trend is projected
// forward, its delta is apportioned by the department's share of beds,
// and the result is anchored on the department's own occupancy.
func (e *Engine) PredictBedDemand(department string, horizonMinutes int) store.Prediction {
	now := e.now()
	p := store.Prediction{
		PredictionType:     "bed_demand",
		TimeHorizonMinutes: horizonMinutes,
		Department:         department,
		ModelVersion:       modelVersion,
		CreatedAt:          now,
	}

	samples := e.src.MetricHistory(metrics.BedsFree, 2*time.Hour)
	n := float64(len(samples))
	if len(samples) > 24 {
		samples = samples[len(samples)-24:]
	}
	if len(samples) < 3 {
		p.PredictedValue = 75
		p.Confidence = 0.5
		return p
	}

	total := float64(e.cfg.TotalBeds())
	if total <= 0 {
		total = 1
	}
	deptBeds := total
	if d, ok := e.cfg.Department(department); ok && d.TotalBeds > 0 {
		deptBeds = float64(d.TotalBeds)
	}
	occupied := 0.75 * deptBeds
	if overview, err := e.st.CapacityOverview(); err == nil {
		for _, c := range overview {
			if c.Department == department && c.TotalBeds > 0 {
				deptBeds = float64(c.TotalBeds)
				occupied = float64(c.OccupiedBeds)
				break
			}
		}
	}

	freeNow := samples[len(samples)-1].Value
	projectedFree := freeNow + trendPerSample(samples)*float64(horizonMinutes)/5
	deltaOccupied := freeNow - projectedFree

	utilization := (occupied + deltaOccupied*deptBeds/total) / deptBeds * 100
	if utilization < 10 {
		utilization = 10
	}
	if utilization > 98 {
		utilization = 98
	}
	p.PredictedValue = utilization

	h := float64(horizonMinutes)
	conf := minFloat(0.9, 0.5+(n/30)*0.4) * (1 - (h/120)*0.15)
	p.Confidence = clampConfidence(conf)
	return p
}

// arrivalDepartments picks the two departments to forecast arrivals
// for: the emergency department first, then the busiest of the acute
// departments that exist in the configuration.
func (e *Engine) arrivalDepartments() []string {
	return pickTwo(e.cfg.DepartmentNames(), []string{"ER", "ICU", "Surgery", "Cardiology"})
}

// bedDepartments picks the two departments to forecast bed demand for
func (e *Engine) bedDepartments() []string {
	return pickTwo(e.cfg.DepartmentNames(), []string{"ICU", "ER", "Surgery", "Geriatrics"})
}

// pickTwo returns two names: preferred ones that exist in available,
// padded from available itself when fewer than two match. A single
// available department is doubled so batches keep their fixed size.
func pickTwo(available, preferred []string) []string {
	have := make(map[string]bool, len(available))
	for _, d := range available {
		have[d] = true
	}

	picked := make([]string, 0, 2)
	for _, d := range preferred {
		if have[d] {
			picked = append(picked, d)
		}
		if len(picked) == 2 {
			return picked
		}
	}
	for _, d := range available {
		if len(picked) == 2 {
			break
		}
		already := false
		for _, p := range picked {
			if p == d {
				already = true
			}
		}
		if !already {
			picked = append(picked, d)
		}
	}
	for len(picked) < 2 && len(picked) > 0 {
		picked = append(picked, picked[0])
	}
	if len(picked) == 0 {
		picked = []string{"ER", "ICU"}
	}
	return picked
}

// GeneratePredictions builds one full batch: every horizon for two
// arrival departments and two bed-demand departments. The result is
// always exactly BatchSize records.
func (e *Engine) GeneratePredictions() []store.Prediction {
	batch := make([]store.Prediction, 0, BatchSize)

	for _, dept := range e.arrivalDepartments() {
		for _, h := range horizons {
			batch = append(batch, e.PredictPatientArrival(dept, h))
		}
	}
	for _, dept := range e.bedDepartments() {
		for _, h := range horizons {
			batch = append(batch, e.PredictBedDemand(dept, h))
		}
	}
	return batch
}

// Start launches the periodic generation loop
func (e *Engine) Start() {
	e.logger.Info("prediction engine starting",
		zap.Duration("interval", e.cfg.PredictionInterval.Std()))
	go e.run()
}

// Stop signals the loop to exit and waits for it
func (e *Engine) Stop() {
	close(e.stop)
	<-e.done
}

func (e *Engine) run() {
	defer close(e.done)

	ticker := time.NewTicker(e.cfg.PredictionInterval.Std())
	defer ticker.Stop()

	e.generateAndSave()

	for {
		select {
		case <-e.stop:
			e.logger.Info("prediction engine stopped")
			return
		case <-ticker.C:
			e.generateAndSave()
		}
	}
}

func (e *Engine) generateAndSave() {
	batch := e.GeneratePredictions()

	store.RecordWrite("predictions")
	if err := e.st.SavePredictions(batch); err != nil {
		store.RecordDroppedWrite("predictions")
		e.logger.Warn("failed to persist prediction batch", zap.Error(err))
	}
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
