package metrics

import (
	"math"
	"testing"
)

func TestNewStateHasAllMetrics(t *testing.T) {
	s := NewState()

	for _, name := range AllNames() {
		if _, ok := s[name]; !ok {
			t.Errorf("Expected metric %s in initial state", name)
		}
	}
}

func TestClampPercentages(t *testing.T) {
	s := State{
		EDLoad:    120.0,
		StaffLoad: -5.0,
		ORLoad:    55.5,
	}
	s.Clamp()

	if s[EDLoad] != 100 {
		t.Errorf("Expected ed_load clamped to 100, got %f", s[EDLoad])
	}
	if s[StaffLoad] != 0 {
		t.Errorf("Expected staff_load clamped to 0, got %f", s[StaffLoad])
	}
	if s[ORLoad] != 55.5 {
		t.Errorf("Expected or_load unchanged at 55.5, got %f", s[ORLoad])
	}
}

func TestClampCountsIntegral(t *testing.T) {
	s := State{
		WaitingCount:   4.7,
		BedsFree:       -3.0,
		TransportQueue: 2.2,
	}
	s.Clamp()

	if s[WaitingCount] != 4 {
		t.Errorf("Expected waiting_count truncated to 4, got %f", s[WaitingCount])
	}
	if s[BedsFree] != 0 {
		t.Errorf("Expected beds_free clamped to 0, got %f", s[BedsFree])
	}
	if s[TransportQueue] != 2 {
		t.Errorf("Expected transport_queue truncated to 2, got %f", s[TransportQueue])
	}
}

func TestSanitizeRestoresFallback(t *testing.T) {
	prev := State{EDLoad: 65, WaitingCount: 5}
	s := State{EDLoad: math.NaN(), WaitingCount: math.Inf(1)}

	s.Sanitize(prev)

	if s[EDLoad] != 65 {
		t.Errorf("Expected NaN replaced with 65, got %f", s[EDLoad])
	}
	if s[WaitingCount] != 5 {
		t.Errorf("Expected Inf replaced with 5, got %f", s[WaitingCount])
	}
}

func TestCloneIsIndependent(t *testing.T) {
	s := NewState()
	c := s.Clone()

	c[EDLoad] = 99
	if s[EDLoad] == 99 {
		t.Error("Clone should not share storage with original")
	}
}

func TestUnits(t *testing.T) {
	if !EDLoad.IsPercentage() {
		t.Error("ed_load should be a percentage metric")
	}
	if WaitingCount.IsPercentage() {
		t.Error("waiting_count should not be a percentage metric")
	}
	if EDLoad.Unit() != "%" {
		t.Errorf("Expected unit %%, got %q", EDLoad.Unit())
	}
	if BedsFree.Unit() != "" {
		t.Errorf("Expected empty unit, got %q", BedsFree.Unit())
	}
}
