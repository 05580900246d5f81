package simulation

import "time"

// TimeFactor returns the demand multiplier for an hour of day: elevated
// during the morning and afternoon peaks, depressed at night.
func TimeFactor(hour int) float64 {
	switch {
	case hour >= 8 && hour <= 12:
		return 1.2
	case hour >= 14 && hour <= 18:
		return 1.15
	case hour >= 22 || hour < 6:
		return 0.7
	default:
		return 0.9
	}
}

// WeekdayFactor returns the demand multiplier for the day of week
func WeekdayFactor(t time.Time) float64 {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return 0.85
	default:
		return 1.0
	}
}

// dischargeProbability returns the per-cycle discharge probability for the
// given hour; the ED keeps a slightly higher rate at night than the wards.
func dischargeProbability(hour int, emergency bool) float64 {
	switch {
	case hour >= 20 || hour < 6:
		if emergency {
			return 0.15
		}
		return 0.10
	case hour >= 6 && hour < 12:
		return 0.35
	default:
		return 0.25
	}
}
