package metrics

import "math"

// Name identifies an operational metric
type Name string

const (
	EDLoad             Name = "ed_load"
	WaitingCount       Name = "waiting_count"
	BedsFree           Name = "beds_free"
	StaffLoad          Name = "staff_load"
	RoomsFree          Name = "rooms_free"
	ORLoad             Name = "or_load"
	TransportQueue     Name = "transport_queue"
	InventoryRiskCount Name = "inventory_risk_count"
)

// AllNames lists every recognized metric in a stable order
func AllNames() []Name {
	return []Name{
		EDLoad, WaitingCount, BedsFree, StaffLoad,
		RoomsFree, ORLoad, TransportQueue, InventoryRiskCount,
	}
}

// IsPercentage reports whether a metric is expressed in percent
func (n Name) IsPercentage() bool {
	switch n {
	case EDLoad, StaffLoad, ORLoad:
		return true
	}
	return false
}

// Unit returns the display unit for a metric
func (n Name) Unit() string {
	if n.IsPercentage() {
		return "%"
	}
	return ""
}

// State is the mutable vector of current operational metrics
type State map[Name]float64

// NewState returns the initial metric vector
func NewState() State {
	return State{
		EDLoad:             65.0,
		WaitingCount:       5,
		BedsFree:           45,
		StaffLoad:          70.0,
		RoomsFree:          12,
		ORLoad:             60.0,
		TransportQueue:     3,
		InventoryRiskCount: 1,
	}
}

// Clone returns an independent copy of the state vector
func (s State) Clone() State {
	out := make(State, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Sanitize replaces non-finite values with the corresponding fallback value,
// so a bad computation never propagates downstream.
func (s State) Sanitize(fallback State) {
	for name, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			s[name] = fallback[name]
		}
	}
}

// Clamp enforces the valid range of every metric: percentages to [0,100],
// counts to non-negative whole numbers.
func (s State) Clamp() {
	for name, value := range s {
		if math.IsNaN(value) || math.IsInf(value, 0) {
			value = 0
		}
		if name.IsPercentage() {
			s[name] = clampFloat(value, 0, 100)
		} else {
			s[name] = math.Max(0, math.Trunc(value))
		}
	}
}

// Get returns a metric value, defaulting to zero for unknown names
func (s State) Get(name Name) float64 {
	return s[name]
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
