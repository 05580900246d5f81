package simulation

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/ErwanAndreo/HospitalAi/metrics"
	"github.com/ErwanAndreo/HospitalAi/store"
)

func TestAlertSeverities(t *testing.T) {
	st := store.NewMemoryStore()
	ac := NewAlertChecker(st, zap.NewNop())
	now := time.Now()

	state := metrics.NewState()
	state[metrics.EDLoad] = 90   // high
	state[metrics.WaitingCount] = 12 // medium
	state[metrics.BedsFree] = 3  // high (below 5)
	state[metrics.TransportQueue] = 6 // medium

	ac.Check(now, state)

	alerts := st.Alerts()
	if len(alerts) != 4 {
		t.Fatalf("Expected 4 alerts, got %d", len(alerts))
	}

	bySeverity := map[string]int{}
	for _, a := range alerts {
		bySeverity[a.Severity]++
		if a.Message == "" || a.MetricType == "" {
			t.Errorf("Expected message and metric type on alert")
		}
	}
	if bySeverity["high"] != 2 || bySeverity["medium"] != 2 {
		t.Errorf("Expected 2 high and 2 medium alerts, got %v", bySeverity)
	}
}

func TestSustainedBreachAlertsOnce(t *testing.T) {
	st := store.NewMemoryStore()
	ac := NewAlertChecker(st, zap.NewNop())
	now := time.Now()

	state := metrics.NewState()
	state[metrics.EDLoad] = 90

	for i := 0; i < 10; i++ {
		ac.Check(now.Add(time.Duration(i)*5*time.Second), state)
	}

	count := 0
	for _, a := range st.Alerts() {
		if a.MetricType == string(metrics.EDLoad) {
			count++
		}
	}
	if count != 1 {
		t.Errorf("Expected a sustained breach to alert once, got %d", count)
	}
}

func TestAlertReRaisesAfterRecovery(t *testing.T) {
	st := store.NewMemoryStore()
	ac := NewAlertChecker(st, zap.NewNop())
	now := time.Now()

	state := metrics.NewState()
	state[metrics.EDLoad] = 90
	ac.Check(now, state)

	state[metrics.EDLoad] = 50
	ac.Check(now.Add(5*time.Second), state)

	state[metrics.EDLoad] = 88
	ac.Check(now.Add(10*time.Second), state)

	count := 0
	for _, a := range st.Alerts() {
		if a.MetricType == string(metrics.EDLoad) {
			count++
		}
	}
	if count != 2 {
		t.Errorf("Expected alert to re-raise after recovery, got %d", count)
	}
}

func TestNoAlertsInNormalRange(t *testing.T) {
	st := store.NewMemoryStore()
	ac := NewAlertChecker(st, zap.NewNop())

	state := metrics.NewState() // defaults are all inside thresholds
	ac.Check(time.Now(), state)

	if len(st.Alerts()) != 0 {
		t.Errorf("Expected no alerts for nominal state, got %d", len(st.Alerts()))
	}
}
