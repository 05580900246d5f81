package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// PostgresConfig holds database connection settings
type PostgresConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string
}

// PostgresStore is a PostgreSQL-backed Store implementation
type PostgresStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgresStore opens a PostgreSQL connection and prepares the schema
func NewPostgresStore(cfg PostgresConfig, logger *zap.Logger) (*PostgresStore, error) {
	if cfg.SSLMode == "" {
		cfg.SSLMode = "disable"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	s := &PostgresStore{db: db, logger: logger}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS metric_samples (
			id SERIAL PRIMARY KEY,
			metric_type VARCHAR(64) NOT NULL,
			value DOUBLE PRECISION NOT NULL,
			unit VARCHAR(16),
			department VARCHAR(64),
			timestamp TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_metric_samples_type_time
			ON metric_samples (metric_type, timestamp)`,
		`CREATE TABLE IF NOT EXISTS simulation_events (
			id VARCHAR(64) PRIMARY KEY,
			event_type VARCHAR(32) NOT NULL,
			start_time TIMESTAMPTZ NOT NULL,
			end_time TIMESTAMPTZ,
			duration_minutes INT NOT NULL,
			departments TEXT[] NOT NULL,
			description TEXT,
			intensity DOUBLE PRECISION
		)`,
		`CREATE TABLE IF NOT EXISTS patient_events (
			id SERIAL PRIMARY KEY,
			event_type VARCHAR(16) NOT NULL,
			department VARCHAR(64) NOT NULL,
			category VARCHAR(32),
			timestamp TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS transports (
			id VARCHAR(64) PRIMARY KEY,
			from_location VARCHAR(64) NOT NULL,
			to_location VARCHAR(64) NOT NULL,
			priority VARCHAR(16) NOT NULL,
			estimated_minutes INT NOT NULL,
			status VARCHAR(16) NOT NULL,
			planned_start_time TIMESTAMPTZ,
			start_time TIMESTAMPTZ,
			expected_completion TIMESTAMPTZ,
			delay_minutes INT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS operations (
			id VARCHAR(64) PRIMARY KEY,
			operation_type VARCHAR(64) NOT NULL,
			department VARCHAR(64) NOT NULL,
			status VARCHAR(16) NOT NULL,
			duration_minutes INT NOT NULL,
			start_time TIMESTAMPTZ NOT NULL,
			end_time TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS inventory (
			id VARCHAR(64) PRIMARY KEY,
			name VARCHAR(128) NOT NULL,
			department VARCHAR(64) NOT NULL,
			stock INT NOT NULL,
			min_threshold INT NOT NULL,
			max_capacity INT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS departments (
			name VARCHAR(64) PRIMARY KEY,
			total_beds INT NOT NULL,
			occupied_beds INT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS alerts (
			id SERIAL PRIMARY KEY,
			timestamp TIMESTAMPTZ NOT NULL,
			severity VARCHAR(16) NOT NULL,
			message TEXT NOT NULL,
			department VARCHAR(64),
			metric_type VARCHAR(64),
			value DOUBLE PRECISION
		)`,
		`CREATE TABLE IF NOT EXISTS predictions (
			id SERIAL PRIMARY KEY,
			prediction_type VARCHAR(32) NOT NULL,
			predicted_value DOUBLE PRECISION NOT NULL,
			confidence DOUBLE PRECISION NOT NULL,
			time_horizon_minutes INT NOT NULL,
			department VARCHAR(64) NOT NULL,
			model_version VARCHAR(32) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	return nil
}

// SeedDepartments registers departments and default inventory, skipping rows
// that already exist.
func (s *PostgresStore) SeedDepartments(departments []DepartmentSeed) error {
	for _, dept := range departments {
		_, err := s.db.Exec(
			`INSERT INTO departments (name, total_beds, occupied_beds)
			 VALUES ($1, $2, $3) ON CONFLICT (name) DO NOTHING`,
			dept.Name, dept.TotalBeds, dept.TotalBeds*3/4)
		if err != nil {
			return fmt.Errorf("seed department %s: %w", dept.Name, err)
		}
	}
	return nil
}

// SaveMetricsBatch inserts a batch of samples in one transaction
func (s *PostgresStore) SaveMetricsBatch(samples []MetricSample) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin metrics batch: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO metric_samples (metric_type, value, unit, department, timestamp)
		 VALUES ($1, $2, $3, $4, $5)`)
	if err != nil {
		return fmt.Errorf("prepare metrics insert: %w", err)
	}
	defer stmt.Close()

	for _, sample := range samples {
		if _, err := stmt.Exec(sample.Type, sample.Value, sample.Unit,
			sample.Department, sample.Timestamp); err != nil {
			return fmt.Errorf("insert metric sample: %w", err)
		}
	}
	return tx.Commit()
}

// RecentMetrics returns samples of one type at or after the cutoff; an
// empty type matches all metrics. Timestamps are scanned as text and
// parsed leniently to survive rows written with older formats.
func (s *PostgresStore) RecentMetrics(metricType string, since time.Time) ([]MetricSample, error) {
	rows, err := s.db.Query(
		`SELECT metric_type, value, unit, department, timestamp::text
		 FROM metric_samples
		 WHERE ($1 = '' OR metric_type = $1) AND timestamp >= $2
		 ORDER BY timestamp`,
		metricType, since)
	if err != nil {
		return nil, fmt.Errorf("query recent metrics: %w", err)
	}
	defer rows.Close()

	result := make([]MetricSample, 0)
	for rows.Next() {
		var sample MetricSample
		var unit, dept sql.NullString
		var ts string
		if err := rows.Scan(&sample.Type, &sample.Value, &unit, &dept, &ts); err != nil {
			return nil, fmt.Errorf("scan metric sample: %w", err)
		}
		sample.Unit = unit.String
		sample.Department = dept.String
		parsed, ok := ParseTimestamp(ts)
		if !ok {
			s.logger.Warn("skipping metric row with unparseable timestamp",
				zap.String("timestamp", ts))
			continue
		}
		sample.Timestamp = parsed
		result = append(result, sample)
	}
	return result, rows.Err()
}

// CreateEvent inserts a new disruption event
func (s *PostgresStore) CreateEvent(e EventRecord) error {
	_, err := s.db.Exec(
		`INSERT INTO simulation_events
		 (id, event_type, start_time, duration_minutes, departments, description, intensity)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.Type, e.StartTime, e.DurationMinutes,
		pq.Array(e.Departments), e.Description, e.Intensity)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// EndEvent sets an event's end time exactly once
func (s *PostgresStore) EndEvent(id string, endTime time.Time) error {
	res, err := s.db.Exec(
		`UPDATE simulation_events SET end_time = $1
		 WHERE id = $2 AND end_time IS NULL`,
		endTime, id)
	if err != nil {
		return fmt.Errorf("end event: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("end event rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("event %s not found or already ended", id)
	}
	return nil
}

// SavePatientEvent records an admission or discharge and adjusts occupancy
func (s *PostgresStore) SavePatientEvent(e PatientEvent) error {
	_, err := s.db.Exec(
		`INSERT INTO patient_events (event_type, department, category, timestamp)
		 VALUES ($1, $2, $3, $4)`,
		e.EventType, e.Department, e.Category, e.Timestamp)
	if err != nil {
		return fmt.Errorf("insert patient event: %w", err)
	}

	switch e.EventType {
	case "admission":
		_, err = s.db.Exec(
			`UPDATE departments SET occupied_beds = LEAST(total_beds, occupied_beds + 1)
			 WHERE name = $1`, e.Department)
	case "discharge":
		_, err = s.db.Exec(
			`UPDATE departments SET occupied_beds = GREATEST(0, occupied_beds - 1)
			 WHERE name = $1`, e.Department)
	}
	if err != nil {
		return fmt.Errorf("update occupancy: %w", err)
	}
	return nil
}

// CapacityOverview returns per-department bed utilization
func (s *PostgresStore) CapacityOverview() ([]CapacityOverview, error) {
	rows, err := s.db.Query(
		`SELECT name, total_beds, occupied_beds FROM departments ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query capacity: %w", err)
	}
	defer rows.Close()

	result := make([]CapacityOverview, 0)
	for rows.Next() {
		var c CapacityOverview
		if err := rows.Scan(&c.Department, &c.TotalBeds, &c.OccupiedBeds); err != nil {
			return nil, fmt.Errorf("scan capacity: %w", err)
		}
		if c.TotalBeds > 0 {
			c.UtilizationPercent = float64(c.OccupiedBeds) / float64(c.TotalBeds) * 100
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

// CreateTransport inserts a new transport request
func (s *PostgresStore) CreateTransport(t TransportRequest) error {
	status := t.Status
	if status == "" {
		status = TransportPlanned
	}
	_, err := s.db.Exec(
		`INSERT INTO transports
		 (id, from_location, to_location, priority, estimated_minutes, status,
		  planned_start_time, start_time, expected_completion, delay_minutes, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		t.ID, t.FromLocation, t.ToLocation, t.Priority, t.EstimatedMinutes, status,
		t.PlannedStartTime, t.StartTime, t.ExpectedCompletion, t.DelayMinutes, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert transport: %w", err)
	}
	return nil
}

// UpdateTransport applies a status change to an existing transport
func (s *PostgresStore) UpdateTransport(id string, upd TransportUpdate) error {
	res, err := s.db.Exec(
		`UPDATE transports SET
		   status = COALESCE(NULLIF($1, ''), status),
		   start_time = COALESCE($2, start_time),
		   expected_completion = COALESCE($3, expected_completion),
		   delay_minutes = GREATEST(delay_minutes, $4)
		 WHERE id = $5`,
		upd.Status, upd.StartTime, upd.ExpectedCompletion, upd.DelayMinutes, id)
	if err != nil {
		return fmt.Errorf("update transport: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update transport rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("transport %s not found", id)
	}
	return nil
}

// ListTransports returns transports filtered by status; empty status matches all
func (s *PostgresStore) ListTransports(status string) ([]TransportRequest, error) {
	rows, err := s.db.Query(
		`SELECT id, from_location, to_location, priority, estimated_minutes, status,
		        planned_start_time, start_time, expected_completion, delay_minutes, created_at
		 FROM transports
		 WHERE $1 = '' OR status = $1
		 ORDER BY created_at`,
		status)
	if err != nil {
		return nil, fmt.Errorf("query transports: %w", err)
	}
	defer rows.Close()

	result := make([]TransportRequest, 0)
	for rows.Next() {
		var t TransportRequest
		var planned, start, expected sql.NullTime
		if err := rows.Scan(&t.ID, &t.FromLocation, &t.ToLocation, &t.Priority,
			&t.EstimatedMinutes, &t.Status, &planned, &start, &expected,
			&t.DelayMinutes, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transport: %w", err)
		}
		if planned.Valid {
			t.PlannedStartTime = &planned.Time
		}
		if start.Valid {
			t.StartTime = &start.Time
		}
		if expected.Valid {
			t.ExpectedCompletion = &expected.Time
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

// CreateOperation inserts a surgical operation record
func (s *PostgresStore) CreateOperation(o OperationRecord) error {
	_, err := s.db.Exec(
		`INSERT INTO operations
		 (id, operation_type, department, status, duration_minutes, start_time, end_time)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		o.ID, o.Type, o.Department, o.Status, o.DurationMinutes, o.StartTime, o.EndTime)
	if err != nil {
		return fmt.Errorf("insert operation: %w", err)
	}
	return nil
}

// RecentOperations returns operations filtered by status and start time
func (s *PostgresStore) RecentOperations(status string, since time.Time) ([]OperationRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, operation_type, department, status, duration_minutes, start_time, end_time
		 FROM operations
		 WHERE ($1 = '' OR status = $1) AND start_time >= $2
		 ORDER BY start_time`,
		status, since)
	if err != nil {
		return nil, fmt.Errorf("query operations: %w", err)
	}
	defer rows.Close()

	result := make([]OperationRecord, 0)
	for rows.Next() {
		var o OperationRecord
		if err := rows.Scan(&o.ID, &o.Type, &o.Department, &o.Status,
			&o.DurationMinutes, &o.StartTime, &o.EndTime); err != nil {
			return nil, fmt.Errorf("scan operation: %w", err)
		}
		result = append(result, o)
	}
	return result, rows.Err()
}

// ListInventory returns all inventory items
func (s *PostgresStore) ListInventory() ([]InventoryItem, error) {
	rows, err := s.db.Query(
		`SELECT id, name, department, stock, min_threshold, max_capacity
		 FROM inventory ORDER BY department, name`)
	if err != nil {
		return nil, fmt.Errorf("query inventory: %w", err)
	}
	defer rows.Close()

	result := make([]InventoryItem, 0)
	for rows.Next() {
		var item InventoryItem
		if err := rows.Scan(&item.ID, &item.Name, &item.Department,
			&item.Stock, &item.MinThreshold, &item.MaxCapacity); err != nil {
			return nil, fmt.Errorf("scan inventory item: %w", err)
		}
		result = append(result, item)
	}
	return result, rows.Err()
}

// ConsumeInventory reduces an item's stock, flooring at zero
func (s *PostgresStore) ConsumeInventory(itemID string, amount int) error {
	res, err := s.db.Exec(
		`UPDATE inventory SET stock = GREATEST(0, stock - $1) WHERE id = $2`,
		amount, itemID)
	if err != nil {
		return fmt.Errorf("consume inventory: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("consume inventory rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("inventory item %s not found", itemID)
	}
	return nil
}

// CreateAlert inserts a threshold alert
func (s *PostgresStore) CreateAlert(a AlertRecord) error {
	_, err := s.db.Exec(
		`INSERT INTO alerts (timestamp, severity, message, department, metric_type, value)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		a.Timestamp, a.Severity, a.Message, a.Department, a.MetricType, a.Value)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

// SavePredictions inserts a forecast batch in one transaction
func (s *PostgresStore) SavePredictions(batch []Prediction) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin prediction batch: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO predictions
		 (prediction_type, predicted_value, confidence, time_horizon_minutes,
		  department, model_version, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`)
	if err != nil {
		return fmt.Errorf("prepare prediction insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range batch {
		if _, err := stmt.Exec(p.PredictionType, p.PredictedValue, p.Confidence,
			p.TimeHorizonMinutes, p.Department, p.ModelVersion, p.CreatedAt); err != nil {
			return fmt.Errorf("insert prediction: %w", err)
		}
	}
	return tx.Commit()
}
