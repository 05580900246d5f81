package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values like "5s" decode directly
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string like \"5s\": %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// DepartmentConfig defines a hospital department
type DepartmentConfig struct {
	Name          string  `yaml:"name"`
	TotalBeds     int     `yaml:"total_beds"`
	ArrivalWeight float64 `yaml:"arrival_weight"` // relative admission probability
}

// EventRuleConfig defines trigger and sampling parameters for one disruption type
type EventRuleConfig struct {
	Probability     float64 `yaml:"probability"`      // per-tick trigger probability
	DemoProbability float64 `yaml:"demo_probability"` // per-tick probability in demo mode
	MinDuration     int     `yaml:"min_duration"`     // minutes
	MaxDuration     int     `yaml:"max_duration"`     // minutes
	MinIntensity    float64 `yaml:"min_intensity"`
	MaxIntensity    float64 `yaml:"max_intensity"`
}

// SimulationConfig is the root configuration struct
type SimulationConfig struct {
	TickInterval       Duration                   `yaml:"tick_interval"`
	HistoryCapacity    int                        `yaml:"history_capacity"`
	DemoMode           bool                       `yaml:"demo_mode"`
	Departments        []DepartmentConfig         `yaml:"departments"`
	EventRules         map[string]EventRuleConfig `yaml:"event_rules"`
	TransportTargets   []string                   `yaml:"transport_targets"`
	Procedures         map[string][]string        `yaml:"procedures"` // department -> procedure names
	PredictionInterval Duration                   `yaml:"prediction_interval"`
}

// DefaultConfig returns the canonical parameter set
func DefaultConfig() *SimulationConfig {
	return &SimulationConfig{
		TickInterval:       Duration(5 * time.Second),
		HistoryCapacity:    1000,
		DemoMode:           false,
		PredictionInterval: Duration(60 * time.Second),
		Departments: []DepartmentConfig{
			{Name: "ER", TotalBeds: 20, ArrivalWeight: 0.35},
			{Name: "ICU", TotalBeds: 16, ArrivalWeight: 0.15},
			{Name: "Cardiology", TotalBeds: 24, ArrivalWeight: 0.10},
			{Name: "Surgery", TotalBeds: 28, ArrivalWeight: 0.10},
			{Name: "Orthopedics", TotalBeds: 22, ArrivalWeight: 0.08},
			{Name: "Urology", TotalBeds: 14, ArrivalWeight: 0.05},
			{Name: "Gastroenterology", TotalBeds: 16, ArrivalWeight: 0.05},
			{Name: "Geriatrics", TotalBeds: 26, ArrivalWeight: 0.04},
			{Name: "SpineCenter", TotalBeds: 10, ArrivalWeight: 0.03},
			{Name: "ENT", TotalBeds: 12, ArrivalWeight: 0.05},
		},
		EventRules: map[string]EventRuleConfig{
			"surge": {
				Probability:     0.02,
				DemoProbability: 0.15,
				MinDuration:     20,
				MaxDuration:     60,
				MinIntensity:    1.3,
				MaxIntensity:    1.8,
			},
			"equipment_failure": {
				Probability:     0.01,
				DemoProbability: 0.08,
				MinDuration:     30,
				MaxDuration:     120,
			},
			"staffing_shortage": {
				Probability:     0.015,
				DemoProbability: 0.10,
				MinDuration:     60,
				MaxDuration:     180,
			},
			"manv": {
				Probability:     0.0, // mass-casualty events only fire in demo mode
				DemoProbability: 0.05,
				MinDuration:     30,
				MaxDuration:     90,
				MinIntensity:    2.0,
				MaxIntensity:    3.0,
			},
		},
		TransportTargets: []string{
			"Berlin", "Munich", "Hamburg", "Cologne", "Frankfurt", "Stuttgart",
			"Dusseldorf", "Dortmund", "Essen", "Leipzig", "Bremen", "Dresden",
			"Pharmacy", "Physiotherapy", "Rehab Center", "Outpatient Care",
		},
		Procedures: map[string][]string{
			"Surgery":          {"Cardiac Surgery", "Abdominal Surgery", "Vascular Surgery", "Thoracic Surgery"},
			"Cardiology":       {"Cardiac Catheter", "Angioplasty", "Pacemaker Implant"},
			"Orthopedics":      {"Knee Replacement", "Hip Replacement", "Shoulder Surgery"},
			"Urology":          {"Prostate Surgery", "Kidney Surgery", "Bladder Surgery"},
			"Gastroenterology": {"Endoscopy", "Colonoscopy", "Laparoscopy"},
			"SpineCenter":      {"Spinal Surgery", "Disc Surgery"},
		},
	}
}

// LoadConfig loads and validates a simulation configuration from a YAML file
func LoadConfig(filename string) (*SimulationConfig, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration for inconsistencies
func (c *SimulationConfig) Validate() error {
	if c.TickInterval <= 0 {
		return fmt.Errorf("tick_interval must be positive, got %v", c.TickInterval.Std())
	}
	if c.HistoryCapacity <= 0 {
		return fmt.Errorf("history_capacity must be positive, got %d", c.HistoryCapacity)
	}
	if len(c.Departments) == 0 {
		return fmt.Errorf("at least one department is required")
	}
	if len(c.TransportTargets) == 0 {
		return fmt.Errorf("at least one transport target is required")
	}

	seen := make(map[string]bool)
	for _, dept := range c.Departments {
		if dept.Name == "" {
			return fmt.Errorf("department with empty name")
		}
		if seen[dept.Name] {
			return fmt.Errorf("duplicate department: %s", dept.Name)
		}
		seen[dept.Name] = true
		if dept.TotalBeds < 0 {
			return fmt.Errorf("department %s has negative bed count", dept.Name)
		}
	}

	for name, rule := range c.EventRules {
		if rule.Probability < 0 || rule.Probability > 1 {
			return fmt.Errorf("event %s: probability out of range: %f", name, rule.Probability)
		}
		if rule.DemoProbability < 0 || rule.DemoProbability > 1 {
			return fmt.Errorf("event %s: demo_probability out of range: %f", name, rule.DemoProbability)
		}
		if rule.MinDuration <= 0 || rule.MaxDuration < rule.MinDuration {
			return fmt.Errorf("event %s: invalid duration range %d-%d", name, rule.MinDuration, rule.MaxDuration)
		}
	}

	return nil
}

// TotalBeds returns the summed bed capacity across all departments
func (c *SimulationConfig) TotalBeds() int {
	total := 0
	for _, dept := range c.Departments {
		total += dept.TotalBeds
	}
	return total
}

// DepartmentNames returns the configured department names in order
func (c *SimulationConfig) DepartmentNames() []string {
	names := make([]string, 0, len(c.Departments))
	for _, dept := range c.Departments {
		names = append(names, dept.Name)
	}
	return names
}

// Department returns the config for a named department
func (c *SimulationConfig) Department(name string) (*DepartmentConfig, bool) {
	for i := range c.Departments {
		if c.Departments[i].Name == name {
			return &c.Departments[i], true
		}
	}
	return nil, false
}
