package simulation

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ErwanAndreo/HospitalAi/config"
	"github.com/ErwanAndreo/HospitalAi/metrics"
	"github.com/ErwanAndreo/HospitalAi/store"
)

// Disruption event types
const (
	EventSurge            = "surge"
	EventEquipmentFailure = "equipment_failure"
	EventStaffingShortage = "staffing_shortage"
	EventMassCasualty     = "manv"
)

// eventTypes in trigger-check order
var eventTypes = []string{EventSurge, EventEquipmentFailure, EventStaffingShortage, EventMassCasualty}

// ActiveEvent is a live disruption whose effect decays linearly to zero
// over its duration.
type ActiveEvent struct {
	ID          string
	Type        string
	StartTime   time.Time
	Duration    time.Duration
	Intensity   float64
	Departments []string
	Description string
}

// Decay returns the current effect weight in [0,1]: 1 at start, linearly
// down to exactly 0 at expiry.
func (e *ActiveEvent) Decay(now time.Time) float64 {
	if e.Duration <= 0 {
		return 0
	}
	elapsed := now.Sub(e.StartTime)
	d := 1 - elapsed.Seconds()/e.Duration.Seconds()
	if d < 0 {
		return 0
	}
	if d > 1 {
		return 1
	}
	return d
}

// Expired reports whether the event has run its full duration
func (e *ActiveEvent) Expired(now time.Time) bool {
	return now.Sub(e.StartTime) >= e.Duration
}

// EventEngine manages the set of active disruption events: probabilistic
// triggering, per-tick effect application with decay, and exactly-once
// removal. Not safe for concurrent use on its own; the simulation engine
// serializes access under its tick lock.
type EventEngine struct {
	rules       map[string]config.EventRuleConfig
	departments []string
	active      []*ActiveEvent
	rng         *rand.Rand
	st          store.Store
	logger      *zap.Logger
}

// NewEventEngine creates an event engine with the given trigger rules
func NewEventEngine(rules map[string]config.EventRuleConfig, departments []string,
	st store.Store, rng *rand.Rand, logger *zap.Logger) *EventEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventEngine{
		rules:       rules,
		departments: departments,
		rng:         rng,
		st:          st,
		logger:      logger,
	}
}

// hasActive reports whether an event of the given type is currently live
func (ee *EventEngine) hasActive(eventType string) bool {
	for _, e := range ee.active {
		if e.Type == eventType {
			return true
		}
	}
	return false
}

// CheckTriggers runs one Bernoulli trial per event type that has no live
// instance, activating new events as the trials succeed.
func (ee *EventEngine) CheckTriggers(now time.Time, demoMode bool) {
	for _, eventType := range eventTypes {
		rule, ok := ee.rules[eventType]
		if !ok || ee.hasActive(eventType) {
			continue
		}

		p := rule.Probability
		if demoMode {
			p = rule.DemoProbability
		}
		if p <= 0 || ee.rng.Float64() >= p {
			continue
		}

		ee.trigger(eventType, rule, now)
	}
}

// trigger activates a new event of the given type
func (ee *EventEngine) trigger(eventType string, rule config.EventRuleConfig, now time.Time) {
	durationMin := rule.MinDuration + ee.rng.Intn(rule.MaxDuration-rule.MinDuration+1)

	intensity := rule.MinIntensity
	if rule.MaxIntensity > rule.MinIntensity {
		intensity = rule.MinIntensity + ee.rng.Float64()*(rule.MaxIntensity-rule.MinIntensity)
	}

	event := &ActiveEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		StartTime: now,
		Duration:  time.Duration(durationMin) * time.Minute,
		Intensity: intensity,
	}

	switch eventType {
	case EventSurge:
		event.Departments = []string{"ER", "ICU", "Surgery", "Cardiology"}
		event.Description = fmt.Sprintf("Load surge (intensity: %.1fx)", intensity)
	case EventEquipmentFailure:
		dept := ee.departments[ee.rng.Intn(len(ee.departments))]
		event.Departments = []string{dept}
		event.Description = fmt.Sprintf("Equipment failure in %s", dept)
	case EventStaffingShortage:
		dept := ee.departments[ee.rng.Intn(len(ee.departments))]
		event.Departments = []string{dept}
		event.Description = fmt.Sprintf("Staffing shortage in %s", dept)
	case EventMassCasualty:
		event.Departments = []string{"ER", "ICU", "Surgery"}
		event.Description = fmt.Sprintf("Mass casualty incident (intensity: %.1fx)", intensity)
	}

	ee.active = append(ee.active, event)
	ee.logger.Info("disruption event triggered",
		zap.String("type", eventType),
		zap.Int("duration_minutes", durationMin),
		zap.Float64("intensity", intensity))

	store.RecordWrite("event")
	if err := ee.st.CreateEvent(store.EventRecord{
		ID:              event.ID,
		Type:            event.Type,
		StartTime:       event.StartTime,
		DurationMinutes: durationMin,
		Departments:     event.Departments,
		Description:     event.Description,
		Intensity:       intensity,
	}); err != nil {
		store.RecordDroppedWrite("event")
		ee.logger.Warn("failed to persist disruption event", zap.Error(err))
	}
}

// Apply mutates the metric vector with the effect of every live event,
// weighted by the event's remaining decay.
func (ee *EventEngine) Apply(now time.Time, state metrics.State) {
	for _, event := range ee.active {
		if event.Expired(now) {
			continue
		}
		decay := event.Decay(now)

		switch event.Type {
		case EventSurge:
			factor := 1 + (event.Intensity-1)*decay
			state[metrics.EDLoad] = capAt(state[metrics.EDLoad]*factor, 98)
			state[metrics.WaitingCount] = state[metrics.WaitingCount] * factor
			state[metrics.StaffLoad] = capAt(state[metrics.StaffLoad]*(1+0.2*decay), 95)

		case EventEquipmentFailure:
			if len(event.Departments) == 0 {
				continue
			}
			switch event.Departments[0] {
			case "ER":
				state[metrics.EDLoad] = capAt(state[metrics.EDLoad]*(1+0.15*decay), 95)
			case "ICU":
				state[metrics.BedsFree] = state[metrics.BedsFree] * (1 - 0.1*decay)
			}

		case EventStaffingShortage:
			state[metrics.StaffLoad] = capAt(state[metrics.StaffLoad]*(1+0.25*decay), 95)
			state[metrics.EDLoad] = capAt(state[metrics.EDLoad]*(1+0.1*decay), 95)

		case EventMassCasualty:
			factor := 1 + (event.Intensity-1)*decay
			state[metrics.EDLoad] = capAt(state[metrics.EDLoad]*factor, 98)
			state[metrics.WaitingCount] = state[metrics.WaitingCount] * factor
			state[metrics.StaffLoad] = capAt(state[metrics.StaffLoad]*(1+0.4*decay), 95)
			state[metrics.BedsFree] = state[metrics.BedsFree] * (1 - 0.3*decay)
		}
	}
}

// Expire removes events that have run their duration, persisting the end
// notice exactly once per instance.
func (ee *EventEngine) Expire(now time.Time) {
	remaining := ee.active[:0]
	for _, event := range ee.active {
		if !event.Expired(now) {
			remaining = append(remaining, event)
			continue
		}

		ee.logger.Info("disruption event ended",
			zap.String("type", event.Type),
			zap.String("id", event.ID))

		store.RecordWrite("event_end")
		if err := ee.st.EndEvent(event.ID, now); err != nil {
			store.RecordDroppedWrite("event_end")
			ee.logger.Warn("failed to persist event end", zap.Error(err))
		}
	}
	ee.active = remaining
}

// Clear drops all active events immediately (hard reset, not a decay),
// ending each one in the store.
func (ee *EventEngine) Clear(now time.Time) {
	for _, event := range ee.active {
		store.RecordWrite("event_end")
		if err := ee.st.EndEvent(event.ID, now); err != nil {
			store.RecordDroppedWrite("event_end")
			ee.logger.Warn("failed to persist event end on clear", zap.Error(err))
		}
	}
	ee.active = nil
}

// Active returns a snapshot of the currently live events
func (ee *EventEngine) Active() []ActiveEvent {
	result := make([]ActiveEvent, 0, len(ee.active))
	for _, e := range ee.active {
		result = append(result, *e)
	}
	return result
}

func capAt(v, max float64) float64 {
	if v > max {
		return max
	}
	return v
}
