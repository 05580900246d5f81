package simulation

import (
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ErwanAndreo/HospitalAi/config"
	"github.com/ErwanAndreo/HospitalAi/metrics"
	"github.com/ErwanAndreo/HospitalAi/store"
)

// ActivityGenerator produces the discrete happenings of a cycle:
// patient admissions and discharges, transport requests, operations
// with material consumption, and planned-transport activation. Every
// store write is best effort; a failed write is logged and counted but
// never stops the simulation.
type ActivityGenerator struct {
	cfg    *config.SimulationConfig
	st     store.Store
	rng    *rand.Rand
	logger *zap.Logger
}

// NewActivityGenerator creates an activity generator
func NewActivityGenerator(cfg *config.SimulationConfig, st store.Store,
	rng *rand.Rand, logger *zap.Logger) *ActivityGenerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActivityGenerator{cfg: cfg, st: st, rng: rng, logger: logger}
}

func (ag *ActivityGenerator) uniform(lo, hi float64) float64 {
	return lo + ag.rng.Float64()*(hi-lo)
}

func (ag *ActivityGenerator) intBetween(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + ag.rng.Intn(hi-lo+1)
}

// Generate runs one activity cycle against the metric vector
func (ag *ActivityGenerator) Generate(now time.Time, state metrics.State) {
	ag.generateAdmissions(now, state)
	ag.generateDischarges(now, state)
	ag.generateOperations(now, state)
	ag.activatePlannedTransports(now)
}

// pickDepartment samples a department by arrival weight
func (ag *ActivityGenerator) pickDepartment() string {
	total := 0.0
	for _, d := range ag.cfg.Departments {
		total += d.ArrivalWeight
	}
	if total <= 0 {
		return ag.cfg.Departments[0].Name
	}
	r := ag.rng.Float64() * total
	for _, d := range ag.cfg.Departments {
		r -= d.ArrivalWeight
		if r <= 0 {
			return d.Name
		}
	}
	return ag.cfg.Departments[len(ag.cfg.Departments)-1].Name
}

// generateAdmissions admits at most one patient per cycle, with
// probability scaled by the time-of-day and weekday factors. 70% of
// admissions consume a bed.
func (ag *ActivityGenerator) generateAdmissions(now time.Time, state metrics.State) {
	p := 0.15 * TimeFactor(now.Hour()) * WeekdayFactor(now)
	if ag.rng.Float64() >= p {
		return
	}

	dept := ag.pickDepartment()
	category := "planned"
	if dept == "ER" {
		category = "emergency"
		state[metrics.EDLoad] = state[metrics.EDLoad] + ag.uniform(0.5, 1.5)
		state[metrics.WaitingCount] = state[metrics.WaitingCount] + 1
	}
	if ag.rng.Float64() < 0.7 {
		state[metrics.BedsFree] = state[metrics.BedsFree] - 1
	}

	store.RecordWrite("patient_event")
	if err := ag.st.SavePatientEvent(store.PatientEvent{
		EventType:  "admission",
		Department: dept,
		Category:   category,
		Timestamp:  now,
	}); err != nil {
		store.RecordDroppedWrite("patient_event")
		ag.logger.Warn("failed to persist admission", zap.Error(err))
	}
}

// generateDischarges releases up to three patients per cycle. The
// per-slot probability depends on the hour: discharges cluster in the
// morning and thin out at night.
func (ag *ActivityGenerator) generateDischarges(now time.Time, state metrics.State) {
	for i := 0; i < 3; i++ {
		dept := ag.pickDepartment()
		p := dischargeProbability(now.Hour(), dept == "ER")
		if ag.rng.Float64() >= p {
			continue
		}

		state[metrics.BedsFree] = state[metrics.BedsFree] + 1
		if dept == "ER" {
			state[metrics.EDLoad] = state[metrics.EDLoad] - ag.uniform(0.5, 1.5)
			state[metrics.WaitingCount] = state[metrics.WaitingCount] - 1
		}

		store.RecordWrite("patient_event")
		if err := ag.st.SavePatientEvent(store.PatientEvent{
			EventType:  "discharge",
			Department: dept,
			Category:   "routine",
			Timestamp:  now,
		}); err != nil {
			store.RecordDroppedWrite("patient_event")
			ag.logger.Warn("failed to persist discharge", zap.Error(err))
		}

		// 15-25% of discharges need a transport
		if ag.rng.Float64() < ag.uniform(0.15, 0.25) {
			ag.createTransport(now, dept, state)
		}
	}
}

// createTransport queues a discharge transport request
func (ag *ActivityGenerator) createTransport(now time.Time, fromDept string, state metrics.State) {
	target := ag.cfg.TransportTargets[ag.rng.Intn(len(ag.cfg.TransportTargets))]
	priority := "medium"
	if ag.rng.Float64() < 0.5 {
		priority = "low"
	}

	state[metrics.TransportQueue] = state[metrics.TransportQueue] + 1
	plannedStart := ag.plannedStart(now, state)

	store.RecordWrite("transport")
	if err := ag.st.CreateTransport(store.TransportRequest{
		ID:               uuid.New().String(),
		FromLocation:     fromDept,
		ToLocation:       target,
		Priority:         priority,
		EstimatedMinutes: ag.intBetween(15, 60),
		Status:           store.TransportPlanned,
		PlannedStartTime: &plannedStart,
		CreatedAt:        now,
	}); err != nil {
		store.RecordDroppedWrite("transport")
		ag.logger.Warn("failed to persist transport request", zap.Error(err))
	}
}

// plannedStart estimates when a fresh transport would begin: a short
// prep window plus a per-queued-request backlog penalty, never less
// than five minutes out.
func (ag *ActivityGenerator) plannedStart(now time.Time, state metrics.State) time.Time {
	queued := int(state[metrics.TransportQueue])
	if queued < 0 {
		queued = 0
	}
	minutes := ag.intBetween(5, 10) + queued*ag.intBetween(10, 15)
	if minutes < 5 {
		minutes = 5
	}
	return now.Add(time.Duration(minutes) * time.Minute)
}

// generateOperations starts at most one operation per cycle when the OR
// is busy enough, consuming sterile material from inventory.
func (ag *ActivityGenerator) generateOperations(now time.Time, state metrics.State) {
	orLoad := state[metrics.ORLoad]
	if orLoad <= 40 {
		return
	}
	if ag.rng.Float64() >= (orLoad/100)*0.3 {
		return
	}

	dept, procedure := ag.pickProcedure()
	duration := ag.procedureDuration(procedure)

	store.RecordWrite("operation")
	if err := ag.st.CreateOperation(store.OperationRecord{
		ID:              uuid.New().String(),
		Type:            procedure,
		Department:      dept,
		Status:          "in_progress",
		DurationMinutes: duration,
		StartTime:       now,
		EndTime:         now.Add(time.Duration(duration) * time.Minute),
	}); err != nil {
		store.RecordDroppedWrite("operation")
		ag.logger.Warn("failed to persist operation", zap.Error(err))
	}

	ag.consumeMaterial(dept)
}

// pickProcedure samples a department that performs procedures and one
// of its procedures. Map keys are sorted first so the choice is fully
// determined by the seeded source.
func (ag *ActivityGenerator) pickProcedure() (string, string) {
	depts := make([]string, 0, len(ag.cfg.Procedures))
	for d := range ag.cfg.Procedures {
		depts = append(depts, d)
	}
	if len(depts) == 0 {
		return "Surgery", "General procedure"
	}
	sort.Strings(depts)
	dept := depts[ag.rng.Intn(len(depts))]
	procedures := ag.cfg.Procedures[dept]
	return dept, procedures[ag.rng.Intn(len(procedures))]
}

// procedureDuration buckets an operation's length by what it is
func (ag *ActivityGenerator) procedureDuration(procedure string) int {
	p := strings.ToLower(procedure)
	switch {
	case strings.Contains(p, "catheter") || strings.Contains(p, "endoscopy"):
		return ag.intBetween(20, 60)
	case strings.Contains(p, "pacemaker") || strings.Contains(p, "angioplasty"):
		return ag.intBetween(45, 90)
	case strings.Contains(p, "cardiac") || strings.Contains(p, "joint") || strings.Contains(p, "spine"):
		return ag.intBetween(90, 180)
	default:
		return ag.intBetween(30, 120)
	}
}

// consumeMaterial draws one to three of the department's inventory
// items down by one to five units each.
func (ag *ActivityGenerator) consumeMaterial(dept string) {
	all, err := ag.st.ListInventory()
	if err != nil {
		ag.logger.Warn("failed to list inventory", zap.Error(err))
		return
	}
	items := make([]store.InventoryItem, 0, len(all))
	for _, item := range all {
		if item.Department == dept {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return
	}

	count := ag.intBetween(1, 3)
	if count > len(items) {
		count = len(items)
	}
	perm := ag.rng.Perm(len(items))
	for i := 0; i < count; i++ {
		item := items[perm[i]]
		amount := ag.intBetween(1, 5)
		store.RecordWrite("inventory")
		if err := ag.st.ConsumeInventory(item.ID, amount); err != nil {
			store.RecordDroppedWrite("inventory")
			ag.logger.Warn("failed to consume inventory",
				zap.String("item", item.Name), zap.Error(err))
		}
	}
}

// activatePlannedTransports moves due planned transports to in_progress.
// 15% of activations pick up a delay of 20-50% of the estimate.
func (ag *ActivityGenerator) activatePlannedTransports(now time.Time) {
	planned, err := ag.st.ListTransports(store.TransportPlanned)
	if err != nil {
		ag.logger.Warn("failed to list planned transports", zap.Error(err))
		return
	}

	for _, t := range planned {
		if t.PlannedStartTime != nil && t.PlannedStartTime.After(now) {
			continue
		}

		minutes := t.EstimatedMinutes
		upd := store.TransportUpdate{
			Status:    store.TransportInProgress,
			StartTime: &now,
		}
		if ag.rng.Float64() < 0.15 {
			delay := int(float64(t.EstimatedMinutes) * ag.uniform(0.2, 0.5))
			if delay > 0 {
				upd.DelayMinutes = delay
				minutes += delay
				ag.logger.Info("transport delayed",
					zap.String("id", t.ID),
					zap.Int("delay_minutes", delay))
			}
		}
		completion := now.Add(time.Duration(minutes) * time.Minute)
		upd.ExpectedCompletion = &completion

		store.RecordWrite("transport")
		if err := ag.st.UpdateTransport(t.ID, upd); err != nil {
			store.RecordDroppedWrite("transport")
			ag.logger.Warn("failed to activate transport",
				zap.String("id", t.ID), zap.Error(err))
		}
	}
}
