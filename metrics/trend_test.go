package metrics

import (
	"math/rand"
	"testing"
)

func TestTrendStaysBounded(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	tv := NewTrendVector()

	for i := 0; i < 10000; i++ {
		tv.Step(rng)
		for name, v := range tv {
			if v < -1 || v > 1 {
				t.Fatalf("Trend %s out of [-1,1]: %f", name, v)
			}
		}
	}
}

func TestTrendDecaysTowardZero(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	tv := NewTrendVector()
	tv[EDLoad] = 1.0

	// momentum factor 0.9 with +-0.1 noise pulls an extreme trend back
	sum := 0.0
	n := 200
	for i := 0; i < n; i++ {
		tv.Step(rng)
		sum += tv[EDLoad]
	}
	mean := sum / float64(n)
	if mean > 0.5 || mean < -0.5 {
		t.Errorf("Expected long-run trend mean near zero, got %f", mean)
	}
}

func TestTrendCloneIsIndependent(t *testing.T) {
	tv := NewTrendVector()
	tv[EDLoad] = 0.5

	clone := tv.Clone()
	clone[EDLoad] = -0.5

	if tv[EDLoad] != 0.5 {
		t.Errorf("Expected clone mutation not to affect original, got %f", tv[EDLoad])
	}
}
