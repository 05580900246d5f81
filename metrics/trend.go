package metrics

import "math/rand"

// TrendVector holds a signed drift accumulator per metric, bounded to [-1,1].
// Each step reverts toward zero and adds a bounded random perturbation, which
// gives metrics slow natural swings instead of pure white noise.
type TrendVector map[Name]float64

// NewTrendVector returns a zeroed trend vector for the drifting metrics
func NewTrendVector() TrendVector {
	tv := make(TrendVector)
	for _, name := range AllNames() {
		if name == InventoryRiskCount {
			continue // derived from inventory, not drifting
		}
		tv[name] = 0
	}
	return tv
}

// Step advances every trend accumulator one tick
func (tv TrendVector) Step(rng *rand.Rand) {
	for name, v := range tv {
		v = 0.9*v + (rng.Float64()*0.2 - 0.1)
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		tv[name] = v
	}
}

// Clone returns an independent copy
func (tv TrendVector) Clone() TrendVector {
	out := make(TrendVector, len(tv))
	for k, v := range tv {
		out[k] = v
	}
	return out
}
