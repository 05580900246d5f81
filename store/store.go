package store

import "time"

// MetricSample is one persisted measurement of an operational metric
type MetricSample struct {
	Type       string
	Value      float64
	Unit       string
	Department string
	Timestamp  time.Time
}

// EventRecord is a persisted disruption event (surge, equipment failure, ...)
type EventRecord struct {
	ID              string
	Type            string
	StartTime       time.Time
	EndTime         *time.Time
	DurationMinutes int
	Departments     []string
	Description     string
	Intensity       float64
}

// PatientEvent is an anonymized admission or discharge record
type PatientEvent struct {
	EventType  string // "admission" or "discharge"
	Department string
	Category   string
	Timestamp  time.Time
}

// Transport request status values
const (
	TransportPlanned    = "planned"
	TransportInProgress = "in_progress"
	TransportCompleted  = "completed"
)

// TransportRequest is a persisted patient transport
type TransportRequest struct {
	ID                 string
	FromLocation       string
	ToLocation         string
	Priority           string
	EstimatedMinutes   int
	Status             string
	PlannedStartTime   *time.Time
	StartTime          *time.Time
	ExpectedCompletion *time.Time
	DelayMinutes       int
	CreatedAt          time.Time
}

// TransportUpdate carries the mutable fields of a transport status change
type TransportUpdate struct {
	Status             string
	StartTime          *time.Time
	ExpectedCompletion *time.Time
	DelayMinutes       int
}

// OperationRecord is a persisted surgical operation
type OperationRecord struct {
	ID              string
	Type            string
	Department      string
	Status          string
	DurationMinutes int
	StartTime       time.Time
	EndTime         time.Time
}

// InventoryItem is a consumable stock item tracked per department
type InventoryItem struct {
	ID           string
	Name         string
	Department   string
	Stock        int
	MinThreshold int
	MaxCapacity  int
}

// CapacityOverview summarizes bed capacity for one department
type CapacityOverview struct {
	Department         string
	TotalBeds          int
	OccupiedBeds       int
	UtilizationPercent float64
}

// AlertRecord is a threshold alert raised by the simulation
type AlertRecord struct {
	Timestamp  time.Time
	Severity   string // "high" or "medium"
	Message    string
	Department string
	MetricType string
	Value      float64
}

// Prediction is one forecast record; batches are always 12 records long
type Prediction struct {
	PredictionType     string // "patient_arrival" or "bed_demand"
	PredictedValue     float64
	Confidence         float64
	TimeHorizonMinutes int
	Department         string
	ModelVersion       string
	CreatedAt          time.Time
}

// Store is the persistence collaborator consumed by the simulation core.
// Implementations must be safe for concurrent use; writes are expected to be
// fast and local, and callers treat failures as best-effort.
type Store interface {
	// Metric samples
	SaveMetricsBatch(samples []MetricSample) error
	RecentMetrics(metricType string, since time.Time) ([]MetricSample, error)

	// Disruption events
	CreateEvent(e EventRecord) error
	EndEvent(id string, endTime time.Time) error

	// Patient flow
	SavePatientEvent(e PatientEvent) error
	CapacityOverview() ([]CapacityOverview, error)

	// Transports
	CreateTransport(t TransportRequest) error
	UpdateTransport(id string, upd TransportUpdate) error
	ListTransports(status string) ([]TransportRequest, error)

	// Operations and inventory
	CreateOperation(o OperationRecord) error
	RecentOperations(status string, since time.Time) ([]OperationRecord, error)
	ListInventory() ([]InventoryItem, error)
	ConsumeInventory(itemID string, amount int) error

	// Alerts and predictions
	CreateAlert(a AlertRecord) error
	SavePredictions(batch []Prediction) error
}
