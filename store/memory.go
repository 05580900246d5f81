package store

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DepartmentSeed describes one department used to seed demo data
type DepartmentSeed struct {
	Name      string
	TotalBeds int
}

// MemoryStore is an in-memory Store implementation. It backs tests and
// standalone runs that have no database configured.
type MemoryStore struct {
	mu sync.RWMutex

	metrics     []MetricSample
	events      map[string]*EventRecord
	eventOrder  []string
	patients    []PatientEvent
	transports  map[string]*TransportRequest
	operations  []OperationRecord
	inventory   map[string]*InventoryItem
	invOrder    []string
	alerts      []AlertRecord
	predictions []Prediction

	occupied map[string]int
	capacity map[string]int
	deptList []string

	maxMetrics int
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		events:     make(map[string]*EventRecord),
		transports: make(map[string]*TransportRequest),
		inventory:  make(map[string]*InventoryItem),
		occupied:   make(map[string]int),
		capacity:   make(map[string]int),
		maxMetrics: 50000,
	}
}

// SeedDepartments registers departments with bed capacity (starting at 75%
// occupancy) and a small default inventory per department.
func (m *MemoryStore) SeedDepartments(departments []DepartmentSeed) {
	m.mu.Lock()
	defer m.mu.Unlock()

	defaults := []struct {
		name         string
		stock        int
		minThreshold int
		maxCapacity  int
	}{
		{"Surgical Masks", 120, 30, 200},
		{"Surgical Gloves", 200, 50, 400},
		{"Sterile Compresses", 80, 20, 150},
		{"Sutures", 40, 10, 80},
		{"Disinfectant", 60, 15, 100},
	}

	for _, dept := range departments {
		if _, exists := m.capacity[dept.Name]; !exists {
			m.deptList = append(m.deptList, dept.Name)
		}
		m.capacity[dept.Name] = dept.TotalBeds
		m.occupied[dept.Name] = dept.TotalBeds * 3 / 4

		for _, d := range defaults {
			id := uuid.New().String()
			m.inventory[id] = &InventoryItem{
				ID:           id,
				Name:         d.name,
				Department:   dept.Name,
				Stock:        d.stock,
				MinThreshold: d.minThreshold,
				MaxCapacity:  d.maxCapacity,
			}
			m.invOrder = append(m.invOrder, id)
		}
	}
}

// SaveMetricsBatch appends a batch of metric samples
func (m *MemoryStore) SaveMetricsBatch(samples []MetricSample) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.metrics = append(m.metrics, samples...)
	if len(m.metrics) > m.maxMetrics {
		m.metrics = m.metrics[len(m.metrics)-m.maxMetrics:]
	}
	return nil
}

// RecentMetrics returns samples of one type at or after the cutoff;
// an empty type matches all metrics.
func (m *MemoryStore) RecentMetrics(metricType string, since time.Time) ([]MetricSample, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]MetricSample, 0)
	for _, s := range m.metrics {
		if (metricType == "" || s.Type == metricType) && !s.Timestamp.Before(since) {
			result = append(result, s)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp.Before(result[j].Timestamp)
	})
	return result, nil
}

// CreateEvent records a new disruption event
func (m *MemoryStore) CreateEvent(e EventRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e.ID == "" {
		return fmt.Errorf("event ID is required")
	}
	if _, exists := m.events[e.ID]; exists {
		return fmt.Errorf("event %s already exists", e.ID)
	}
	copied := e
	m.events[e.ID] = &copied
	m.eventOrder = append(m.eventOrder, e.ID)
	return nil
}

// EndEvent marks a disruption event as ended; ending twice is an error so
// callers can detect double removal.
func (m *MemoryStore) EndEvent(id string, endTime time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	event, exists := m.events[id]
	if !exists {
		return fmt.Errorf("event %s not found", id)
	}
	if event.EndTime != nil {
		return fmt.Errorf("event %s already ended", id)
	}
	t := endTime
	event.EndTime = &t
	return nil
}

// Events returns all recorded disruption events in creation order
func (m *MemoryStore) Events() []EventRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]EventRecord, 0, len(m.eventOrder))
	for _, id := range m.eventOrder {
		result = append(result, *m.events[id])
	}
	return result
}

// SavePatientEvent records an admission or discharge and adjusts occupancy
func (m *MemoryStore) SavePatientEvent(e PatientEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.patients = append(m.patients, e)

	if total, ok := m.capacity[e.Department]; ok {
		switch e.EventType {
		case "admission":
			if m.occupied[e.Department] < total {
				m.occupied[e.Department]++
			}
		case "discharge":
			if m.occupied[e.Department] > 0 {
				m.occupied[e.Department]--
			}
		}
	}
	return nil
}

// PatientEvents returns all recorded patient events
func (m *MemoryStore) PatientEvents() []PatientEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]PatientEvent(nil), m.patients...)
}

// CapacityOverview returns per-department bed utilization
func (m *MemoryStore) CapacityOverview() ([]CapacityOverview, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]CapacityOverview, 0, len(m.deptList))
	for _, name := range m.deptList {
		total := m.capacity[name]
		occ := m.occupied[name]
		util := 0.0
		if total > 0 {
			util = float64(occ) / float64(total) * 100
		}
		result = append(result, CapacityOverview{
			Department:         name,
			TotalBeds:          total,
			OccupiedBeds:       occ,
			UtilizationPercent: util,
		})
	}
	return result, nil
}

// CreateTransport records a new transport request
func (m *MemoryStore) CreateTransport(t TransportRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if t.ID == "" {
		return fmt.Errorf("transport ID is required")
	}
	if t.Status == "" {
		t.Status = TransportPlanned
	}
	copied := t
	m.transports[t.ID] = &copied
	return nil
}

// UpdateTransport applies a status change to an existing transport
func (m *MemoryStore) UpdateTransport(id string, upd TransportUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, exists := m.transports[id]
	if !exists {
		return fmt.Errorf("transport %s not found", id)
	}
	if upd.Status != "" {
		t.Status = upd.Status
	}
	if upd.StartTime != nil {
		t.StartTime = upd.StartTime
	}
	if upd.ExpectedCompletion != nil {
		t.ExpectedCompletion = upd.ExpectedCompletion
	}
	if upd.DelayMinutes > 0 {
		t.DelayMinutes = upd.DelayMinutes
	}
	return nil
}

// ListTransports returns transports filtered by status; empty status matches all
func (m *MemoryStore) ListTransports(status string) ([]TransportRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]TransportRequest, 0)
	for _, t := range m.transports {
		if status == "" || t.Status == status {
			result = append(result, *t)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// CreateOperation records a surgical operation
func (m *MemoryStore) CreateOperation(o OperationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.operations = append(m.operations, o)
	return nil
}

// RecentOperations returns operations filtered by status and start time
func (m *MemoryStore) RecentOperations(status string, since time.Time) ([]OperationRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]OperationRecord, 0)
	for _, o := range m.operations {
		if status != "" && o.Status != status {
			continue
		}
		if o.StartTime.Before(since) {
			continue
		}
		result = append(result, o)
	}
	return result, nil
}

// ListInventory returns all inventory items in seed order
func (m *MemoryStore) ListInventory() ([]InventoryItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]InventoryItem, 0, len(m.invOrder))
	for _, id := range m.invOrder {
		result = append(result, *m.inventory[id])
	}
	return result, nil
}

// ConsumeInventory reduces an item's stock, flooring at zero
func (m *MemoryStore) ConsumeInventory(itemID string, amount int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, exists := m.inventory[itemID]
	if !exists {
		return fmt.Errorf("inventory item %s not found", itemID)
	}
	if amount < 0 {
		return fmt.Errorf("negative consumption amount %d", amount)
	}
	item.Stock -= amount
	if item.Stock < 0 {
		item.Stock = 0
	}
	return nil
}

// CreateAlert records a threshold alert
func (m *MemoryStore) CreateAlert(a AlertRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = append(m.alerts, a)
	return nil
}

// Alerts returns all recorded alerts
func (m *MemoryStore) Alerts() []AlertRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]AlertRecord(nil), m.alerts...)
}

// SavePredictions appends a forecast batch
func (m *MemoryStore) SavePredictions(batch []Prediction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predictions = append(m.predictions, batch...)
	return nil
}

// Predictions returns all persisted predictions
func (m *MemoryStore) Predictions() []Prediction {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Prediction(nil), m.predictions...)
}
