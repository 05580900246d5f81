package simulation

import (
	"math/rand"
	"time"

	"github.com/ErwanAndreo/HospitalAi/metrics"
)

// CorrelationEngine advances the coupled metric vector one step. The
// emergency department load is the driver: waiting counts, staff load,
// transport queues and bed availability all respond to it, so surges
// ripple through the whole dashboard instead of each metric wandering
// independently.
type CorrelationEngine struct {
	rng *rand.Rand
}

// NewCorrelationEngine creates a correlation engine using the given
// random source.
func NewCorrelationEngine(rng *rand.Rand) *CorrelationEngine {
	return &CorrelationEngine{rng: rng}
}

// uniform returns a sample from [lo, hi)
func (ce *CorrelationEngine) uniform(lo, hi float64) float64 {
	return lo + ce.rng.Float64()*(hi-lo)
}

// Step mutates state in place: first the ED load baseline from the
// time-of-day and weekday factors plus its trend, then every coupled
// metric from the new ED load.
func (ce *CorrelationEngine) Step(now time.Time, state metrics.State, trends metrics.TrendVector) {
	factor := TimeFactor(now.Hour()) * WeekdayFactor(now)

	// Driver: ED load tracks the time-band baseline with trend momentum
	ed := 60*factor + trends[metrics.EDLoad]*8 + ce.uniform(-3, 3)
	state[metrics.EDLoad] = ed

	// Waiting count follows ED load with a lag: beyond 75% the queue
	// builds, below 60% it drains, in between it relaxes toward a
	// load-proportional target.
	waiting := state[metrics.WaitingCount]
	switch {
	case ed > 75:
		waiting += (ed-75)*0.15 + ce.uniform(-0.5, 0.5)
	case ed < 60:
		waiting -= ce.uniform(0.5, 1.5)
	default:
		target := 3 + ed/100*15
		waiting += (target - waiting) * 0.2
	}
	state[metrics.WaitingCount] = waiting

	// Staff load is a smoothed shadow of ED load
	staff := state[metrics.StaffLoad]
	state[metrics.StaffLoad] = 0.8*staff + 0.2*(ed*0.95) + ce.uniform(-2, 2)

	// Transport demand rises with overall activity
	queue := state[metrics.TransportQueue]
	switch {
	case ed > 70:
		queue += ce.uniform(0, 1.2)
	case ed < 65:
		queue -= ce.uniform(0, 1.0)
	}
	state[metrics.TransportQueue] = queue

	// High load eats into free beds, quiet periods release them
	beds := state[metrics.BedsFree]
	switch {
	case ed > 75:
		beds -= ce.uniform(0, 2)
	case ed < 60:
		beds += ce.uniform(0, 2)
	}
	state[metrics.BedsFree] = beds

	// Free treatment rooms track bed pressure
	rooms := state[metrics.RoomsFree]
	if beds < 10 {
		rooms -= ce.uniform(0, 1)
	} else {
		rooms += (12 - rooms) * 0.1
	}
	state[metrics.RoomsFree] = rooms

	// OR utilization follows its own time-band baseline
	state[metrics.ORLoad] = 55*factor + ce.uniform(-5, 5)
}
