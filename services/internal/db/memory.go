package db

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/02loveslollipop/smart-sensor-dashboard/services/internal/errs"
	"github.com/02loveslollipop/smart-sensor-dashboard/services/internal/models"
)

// MemoryURL selects the in-process store instead of PostgreSQL.
const MemoryURL = "memory://"

// MemoryStore keeps tables in process memory. It backs the demo mode and the
// package tests, and mirrors Store's ordering and replace semantics.
type MemoryStore struct {
	mu      sync.RWMutex
	tables  map[string][]models.AnnotatedReading
	indexes map[string][]string
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tables:  make(map[string][]models.AnnotatedReading),
		indexes: make(map[string][]string),
	}
}

// Ping always succeeds.
func (m *MemoryStore) Ping(context.Context) error { return nil }

// Close is a no-op.
func (m *MemoryStore) Close() {}

// ReplaceTable swaps the table contents under the write lock.
func (m *MemoryStore) ReplaceTable(_ context.Context, table string, rows []models.AnnotatedReading) error {
	snapshot := slices.Clone(rows)
	if snapshot == nil {
		snapshot = []models.AnnotatedReading{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables[table] = snapshot
	return nil
}

// EnsureIndex records the index once per column.
func (m *MemoryStore) EnsureIndex(_ context.Context, table, column string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tables[table]; !ok {
		return &errs.StorageError{Op: "index " + column, Table: table, Err: fmt.Errorf("relation %q does not exist", table)}
	}
	if !slices.Contains(m.indexes[table], column) {
		m.indexes[table] = append(m.indexes[table], column)
	}
	return nil
}

// Indexes lists the indexed columns of a table in creation order.
func (m *MemoryStore) Indexes(table string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.indexes[table])
}

// EnablePartitioning is not available in memory.
func (m *MemoryStore) EnablePartitioning(context.Context, string, string) error {
	return ErrPartitioningUnsupported
}

// TableExists reports whether the table was ever replaced.
func (m *MemoryStore) TableExists(_ context.Context, table string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.tables[table]
	return ok, nil
}

// Query filters, orders and paginates a copy of the table.
func (m *MemoryStore) Query(_ context.Context, table string, q models.ReadingQuery) ([]models.AnnotatedReading, error) {
	m.mu.RLock()
	stored, ok := m.tables[table]
	m.mu.RUnlock()
	if !ok {
		return nil, &errs.StorageError{Op: "query", Table: table, Err: fmt.Errorf("relation %q does not exist", table)}
	}

	out := make([]models.AnnotatedReading, 0, len(stored))
	for _, r := range stored {
		if q.Day != nil {
			end := q.Day.AddDate(0, 0, 1)
			if r.Timestamp.Before(*q.Day) || !r.Timestamp.Before(end) {
				continue
			}
		}
		if q.TemperatureAlert != "" && r.TemperatureAlert != q.TemperatureAlert {
			continue
		}
		if q.PressureAlert != "" && r.PressureAlert != q.PressureAlert {
			continue
		}
		out = append(out, r)
	}

	slices.SortStableFunc(out, func(a, b models.AnnotatedReading) int {
		return a.Timestamp.Compare(b.Timestamp)
	})

	if q.Offset > 0 {
		if q.Offset >= len(out) {
			return []models.AnnotatedReading{}, nil
		}
		out = out[q.Offset:]
	}
	if q.Limit > 0 && q.Limit < len(out) {
		out = out[:q.Limit]
	}
	return out, nil
}

// CountRows returns the number of stored readings.
func (m *MemoryStore) CountRows(_ context.Context, table string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rows, ok := m.tables[table]
	if !ok {
		return 0, &errs.StorageError{Op: "count", Table: table, Err: fmt.Errorf("relation %q does not exist", table)}
	}
	return int64(len(rows)), nil
}

// Summary aggregates the stored table.
func (m *MemoryStore) Summary(_ context.Context, table string) (models.DataSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var sum models.DataSummary
	rows, ok := m.tables[table]
	if !ok {
		return sum, &errs.StorageError{Op: "summary", Table: table, Err: fmt.Errorf("relation %q does not exist", table)}
	}
	if len(rows) == 0 {
		return sum, nil
	}

	sum.TotalRecords = int64(len(rows))
	sum.Earliest, sum.Latest = rows[0].Timestamp, rows[0].Timestamp
	sum.MaxUptime = rows[0].Uptime
	for _, r := range rows {
		if r.Timestamp.Before(sum.Earliest) {
			sum.Earliest = r.Timestamp
		}
		if r.Timestamp.After(sum.Latest) {
			sum.Latest = r.Timestamp
		}
		sum.AvgTemperature += r.Temperature
		sum.AvgPressure += r.Pressure
		if r.Uptime > sum.MaxUptime {
			sum.MaxUptime = r.Uptime
		}
		if r.TemperatureAlert == models.AlertRed {
			sum.TemperatureAlert++
		}
		if r.PressureAlert == models.AlertRed {
			sum.PressureAlert++
		}
	}
	sum.AvgTemperature /= float64(len(rows))
	sum.AvgPressure /= float64(len(rows))
	return sum, nil
}
