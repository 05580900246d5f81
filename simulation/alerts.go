package simulation

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ErwanAndreo/HospitalAi/metrics"
	"github.com/ErwanAndreo/HospitalAi/store"
)

// alertRule is a single threshold check against one metric
type alertRule struct {
	metric     metrics.Name
	department string
	// above: alert when the value exceeds the threshold; otherwise
	// alert when it drops below
	above     bool
	high      float64
	medium    float64
	highMsg   string
	mediumMsg string
}

var alertRules = []alertRule{
	{
		metric: metrics.EDLoad, department: "ER", above: true,
		high: 85, medium: 75,
		highMsg:   "ED load critical",
		mediumMsg: "ED load elevated",
	},
	{
		metric: metrics.WaitingCount, department: "ER", above: true,
		high: 15, medium: 10,
		highMsg:   "Waiting room overcrowded",
		mediumMsg: "Waiting room filling up",
	},
	{
		metric: metrics.BedsFree, department: "ICU", above: false,
		high: 5, medium: 10,
		highMsg:   "Free beds critically low",
		mediumMsg: "Free beds running low",
	},
	{
		metric: metrics.TransportQueue, department: "Logistics", above: true,
		high: 8, medium: 5,
		highMsg:   "Transport queue backed up",
		mediumMsg: "Transport queue growing",
	},
}

// AlertChecker raises threshold alerts against the metric vector. It
// remembers the last severity per metric so a sustained breach raises
// one alert, not one per tick.
type AlertChecker struct {
	st     store.Store
	logger *zap.Logger
	last   map[metrics.Name]string
}

// NewAlertChecker creates an alert checker
func NewAlertChecker(st store.Store, logger *zap.Logger) *AlertChecker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AlertChecker{
		st:     st,
		logger: logger,
		last:   make(map[metrics.Name]string),
	}
}

// Check evaluates every rule against the current state, persisting an
// alert whenever a metric's severity level changes upward or appears.
func (ac *AlertChecker) Check(now time.Time, state metrics.State) {
	for _, rule := range alertRules {
		value, ok := state[rule.metric]
		if !ok {
			continue
		}

		severity := ""
		message := ""
		if rule.above {
			switch {
			case value > rule.high:
				severity, message = "high", rule.highMsg
			case value > rule.medium:
				severity, message = "medium", rule.mediumMsg
			}
		} else {
			switch {
			case value < rule.high:
				severity, message = "high", rule.highMsg
			case value < rule.medium:
				severity, message = "medium", rule.mediumMsg
			}
		}

		prev := ac.last[rule.metric]
		if severity == prev {
			continue
		}
		ac.last[rule.metric] = severity
		if severity == "" {
			continue
		}

		ac.logger.Warn("threshold alert",
			zap.String("metric", string(rule.metric)),
			zap.String("severity", severity),
			zap.Float64("value", value))

		store.RecordWrite("alert")
		if err := ac.st.CreateAlert(store.AlertRecord{
			Timestamp:  now,
			Severity:   severity,
			Message:    fmt.Sprintf("%s (%.1f)", message, value),
			Department: rule.department,
			MetricType: string(rule.metric),
			Value:      value,
		}); err != nil {
			store.RecordDroppedWrite("alert")
			ac.logger.Warn("failed to persist alert", zap.Error(err))
		}
	}
}
