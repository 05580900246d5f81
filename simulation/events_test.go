package simulation

import (
	"math/rand"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/ErwanAndreo/HospitalAi/config"
	"github.com/ErwanAndreo/HospitalAi/metrics"
	"github.com/ErwanAndreo/HospitalAi/store"
)

func newTestEventEngine(st store.Store, rules map[string]config.EventRuleConfig) *EventEngine {
	return NewEventEngine(rules, []string{"ER", "ICU", "Surgery"}, st,
		rand.New(rand.NewSource(42)), zap.NewNop())
}

func alwaysSurge() map[string]config.EventRuleConfig {
	return map[string]config.EventRuleConfig{
		EventSurge: {
			Probability:     1.0,
			DemoProbability: 1.0,
			MinDuration:     30,
			MaxDuration:     30,
			MinIntensity:    1.5,
			MaxIntensity:    1.5,
		},
	}
}

func TestEventDecay(t *testing.T) {
	start := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	event := &ActiveEvent{
		StartTime: start,
		Duration:  30 * time.Minute,
		Intensity: 1.5,
	}

	if d := event.Decay(start); d != 1.0 {
		t.Errorf("Expected decay 1.0 at start, got %f", d)
	}
	if d := event.Decay(start.Add(15 * time.Minute)); d < 0.49 || d > 0.51 {
		t.Errorf("Expected decay ~0.5 at half duration, got %f", d)
	}
	if d := event.Decay(start.Add(30 * time.Minute)); d != 0.0 {
		t.Errorf("Expected decay exactly 0 at expiry, got %f", d)
	}
	if d := event.Decay(start.Add(45 * time.Minute)); d != 0.0 {
		t.Errorf("Expected decay 0 past expiry, got %f", d)
	}
}

func TestTriggerOnePerType(t *testing.T) {
	st := store.NewMemoryStore()
	ee := newTestEventEngine(st, alwaysSurge())
	now := time.Now()

	ee.CheckTriggers(now, false)
	ee.CheckTriggers(now, false)
	ee.CheckTriggers(now, false)

	active := ee.Active()
	if len(active) != 1 {
		t.Fatalf("Expected 1 active surge event, got %d", len(active))
	}
	if active[0].Type != EventSurge {
		t.Errorf("Expected surge event, got %s", active[0].Type)
	}
	if active[0].Intensity != 1.5 {
		t.Errorf("Expected intensity 1.5, got %f", active[0].Intensity)
	}
	if len(st.Events()) != 1 {
		t.Errorf("Expected 1 persisted event, got %d", len(st.Events()))
	}
}

func TestExpireRemovesAndEndsOnce(t *testing.T) {
	st := store.NewMemoryStore()
	ee := newTestEventEngine(st, alwaysSurge())
	start := time.Now()

	ee.CheckTriggers(start, false)
	if len(ee.Active()) != 1 {
		t.Fatalf("Expected 1 active event")
	}

	past := start.Add(31 * time.Minute)
	ee.Expire(past)
	if len(ee.Active()) != 0 {
		t.Errorf("Expected no active events after expiry, got %d", len(ee.Active()))
	}

	// second pass must not end the event again; the memory store errors
	// on double end, which would be counted as a dropped write
	ee.Expire(past.Add(time.Minute))

	events := st.Events()
	if len(events) != 1 {
		t.Fatalf("Expected 1 persisted event, got %d", len(events))
	}
	if events[0].EndTime == nil {
		t.Errorf("Expected event end to be persisted")
	}
}

func TestSurgeEffectRaisesLoad(t *testing.T) {
	st := store.NewMemoryStore()
	ee := newTestEventEngine(st, alwaysSurge())
	now := time.Now()
	ee.CheckTriggers(now, false)

	state := metrics.NewState()
	state[metrics.EDLoad] = 60
	state[metrics.WaitingCount] = 6
	before := state[metrics.EDLoad]

	ee.Apply(now, state)

	if state[metrics.EDLoad] <= before {
		t.Errorf("Expected surge to raise ED load above %f, got %f", before, state[metrics.EDLoad])
	}
	// intensity 1.5 at full decay: 60 * 1.5 = 90
	if state[metrics.EDLoad] < 89 || state[metrics.EDLoad] > 91 {
		t.Errorf("Expected ED load ~90 under fresh 1.5x surge, got %f", state[metrics.EDLoad])
	}
	if state[metrics.WaitingCount] < 8.9 || state[metrics.WaitingCount] > 9.1 {
		t.Errorf("Expected waiting count ~9, got %f", state[metrics.WaitingCount])
	}
}

func TestEffectZeroAtExpiry(t *testing.T) {
	st := store.NewMemoryStore()
	ee := newTestEventEngine(st, alwaysSurge())
	start := time.Now()
	ee.CheckTriggers(start, false)

	state := metrics.NewState()
	state[metrics.EDLoad] = 60
	expiry := start.Add(30 * time.Minute)
	ee.Apply(expiry, state)

	if state[metrics.EDLoad] != 60 {
		t.Errorf("Expected no effect at expiry, got ED load %f", state[metrics.EDLoad])
	}
}

func TestClearEndsAllEvents(t *testing.T) {
	st := store.NewMemoryStore()
	rules := alwaysSurge()
	rules[EventStaffingShortage] = config.EventRuleConfig{
		Probability: 1.0, DemoProbability: 1.0,
		MinDuration: 60, MaxDuration: 60,
	}
	ee := newTestEventEngine(st, rules)
	now := time.Now()
	ee.CheckTriggers(now, false)

	if len(ee.Active()) != 2 {
		t.Fatalf("Expected 2 active events, got %d", len(ee.Active()))
	}

	ee.Clear(now.Add(time.Minute))
	if len(ee.Active()) != 0 {
		t.Errorf("Expected no active events after clear")
	}
	for _, e := range st.Events() {
		if e.EndTime == nil {
			t.Errorf("Expected event %s to be ended on clear", e.ID)
		}
	}
}

func TestZeroProbabilityNeverTriggers(t *testing.T) {
	st := store.NewMemoryStore()
	rules := map[string]config.EventRuleConfig{
		EventMassCasualty: {
			Probability:     0.0,
			DemoProbability: 0.05,
			MinDuration:     30,
			MaxDuration:     90,
			MinIntensity:    2.0,
			MaxIntensity:    3.0,
		},
	}
	ee := newTestEventEngine(st, rules)
	now := time.Now()

	for i := 0; i < 500; i++ {
		ee.CheckTriggers(now, false)
	}
	if len(ee.Active()) != 0 {
		t.Errorf("Expected mass casualty to never trigger outside demo mode, got %d", len(ee.Active()))
	}
}
