package db

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/02loveslollipop/smart-sensor-dashboard/services/internal/errs"
	"github.com/02loveslollipop/smart-sensor-dashboard/services/internal/models"
)

// ErrPartitioningUnsupported is returned when the backend cannot partition by time.
var ErrPartitioningUnsupported = errors.New("time partitioning not supported by backend")

// Store wraps database access helpers.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store backed by a pgx pool.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the pool resources.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

var readingColumns = []string{
	"seq", "timestamp", "temperature", "pressure", "uptime",
	"temperature_zscore", "pressure_zscore", "temperature_alert", "pressure_alert",
}

const createTableSQL = `
    CREATE TABLE IF NOT EXISTS %s (
        seq                BIGINT           NOT NULL,
        "timestamp"        TIMESTAMPTZ      NOT NULL,
        temperature        DOUBLE PRECISION NOT NULL,
        pressure           DOUBLE PRECISION NOT NULL,
        uptime             DOUBLE PRECISION NOT NULL,
        temperature_zscore DOUBLE PRECISION NOT NULL,
        pressure_zscore    DOUBLE PRECISION NOT NULL,
        temperature_alert  TEXT             NOT NULL,
        pressure_alert     TEXT             NOT NULL
    )
`

// ReplaceTable overwrites the table with rows inside one transaction, so
// concurrent readers see either the previous run or this one.
func (s *Store) ReplaceTable(ctx context.Context, table string, rows []models.AnnotatedReading) error {
	ident := pgx.Identifier{table}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return &errs.StorageError{Op: "replace", Table: table, Err: err}
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, fmt.Sprintf(createTableSQL, ident.Sanitize())); err != nil {
		return &errs.StorageError{Op: "create", Table: table, Err: err}
	}
	if _, err := tx.Exec(ctx, "TRUNCATE TABLE "+ident.Sanitize()); err != nil {
		return &errs.StorageError{Op: "truncate", Table: table, Err: err}
	}

	_, err = tx.CopyFrom(ctx, ident, readingColumns, pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
		r := rows[i]
		return []any{
			int64(i + 1),
			r.Timestamp,
			r.Temperature,
			r.Pressure,
			r.Uptime,
			r.TemperatureZScore,
			r.PressureZScore,
			string(r.TemperatureAlert),
			string(r.PressureAlert),
		}, nil
	}))
	if err != nil {
		return &errs.StorageError{Op: "copy", Table: table, Err: err}
	}

	if err := tx.Commit(ctx); err != nil {
		return &errs.StorageError{Op: "commit", Table: table, Err: err}
	}
	return nil
}

// EnsureIndex creates a single-column index if it does not exist yet.
func (s *Store) EnsureIndex(ctx context.Context, table, column string) error {
	name := pgx.Identifier{"idx_" + table + "_" + column}.Sanitize()
	sql := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)",
		name, pgx.Identifier{table}.Sanitize(), pgx.Identifier{column}.Sanitize())
	if _, err := s.pool.Exec(ctx, sql); err != nil {
		return &errs.StorageError{Op: "index " + column, Table: table, Err: err}
	}
	return nil
}

const timescaleInstalledSQL = `SELECT EXISTS (SELECT 1 FROM pg_extension WHERE extname = 'timescaledb')`

// EnablePartitioning converts the table into a TimescaleDB hypertable keyed
// on column. Plain PostgreSQL returns ErrPartitioningUnsupported.
func (s *Store) EnablePartitioning(ctx context.Context, table, column string) error {
	var installed bool
	if err := s.pool.QueryRow(ctx, timescaleInstalledSQL).Scan(&installed); err != nil {
		return &errs.StorageError{Op: "partition", Table: table, Err: err}
	}
	if !installed {
		return ErrPartitioningUnsupported
	}

	_, err := s.pool.Exec(ctx,
		`SELECT create_hypertable($1::regclass, $2::name, if_not_exists => TRUE, migrate_data => TRUE)`,
		pgx.Identifier{table}.Sanitize(), column)
	if err != nil {
		return &errs.StorageError{Op: "partition", Table: table, Err: err}
	}
	return nil
}

// TableExists reports whether the table has been created.
func (s *Store) TableExists(ctx context.Context, table string) (bool, error) {
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT to_regclass($1::text) IS NOT NULL`, table).Scan(&exists); err != nil {
		return false, &errs.StorageError{Op: "exists", Table: table, Err: err}
	}
	return exists, nil
}

// Query returns annotated readings in timestamp order, ties in insertion order.
func (s *Store) Query(ctx context.Context, table string, q models.ReadingQuery) ([]models.AnnotatedReading, error) {
	conditions := []string{}
	args := []any{}

	if q.Day != nil {
		conditions = append(conditions, `"timestamp" >= $`+strconv.Itoa(len(args)+1))
		args = append(args, *q.Day)
		conditions = append(conditions, `"timestamp" < $`+strconv.Itoa(len(args)+1))
		args = append(args, q.Day.AddDate(0, 0, 1))
	}
	if q.TemperatureAlert != "" {
		conditions = append(conditions, "temperature_alert = $"+strconv.Itoa(len(args)+1))
		args = append(args, string(q.TemperatureAlert))
	}
	if q.PressureAlert != "" {
		conditions = append(conditions, "pressure_alert = $"+strconv.Itoa(len(args)+1))
		args = append(args, string(q.PressureAlert))
	}

	query := strings.Builder{}
	query.WriteString(`SELECT "timestamp", temperature, pressure, uptime, `)
	query.WriteString("temperature_zscore, pressure_zscore, temperature_alert, pressure_alert ")
	query.WriteString("FROM " + pgx.Identifier{table}.Sanitize() + " ")
	if len(conditions) > 0 {
		query.WriteString("WHERE " + strings.Join(conditions, " AND ") + " ")
	}
	query.WriteString(`ORDER BY "timestamp", seq`)
	if q.Limit > 0 {
		query.WriteString(" LIMIT $" + strconv.Itoa(len(args)+1))
		args = append(args, q.Limit)
	}
	if q.Offset > 0 {
		query.WriteString(" OFFSET $" + strconv.Itoa(len(args)+1))
		args = append(args, q.Offset)
	}

	rows, err := s.pool.Query(ctx, query.String(), args...)
	if err != nil {
		return nil, &errs.StorageError{Op: "query", Table: table, Err: err}
	}
	defer rows.Close()

	readings := make([]models.AnnotatedReading, 0)
	for rows.Next() {
		var r models.AnnotatedReading
		var tempAlert, pressureAlert string
		if err := rows.Scan(
			&r.Timestamp,
			&r.Temperature,
			&r.Pressure,
			&r.Uptime,
			&r.TemperatureZScore,
			&r.PressureZScore,
			&tempAlert,
			&pressureAlert,
		); err != nil {
			return nil, &errs.StorageError{Op: "scan", Table: table, Err: err}
		}
		r.Timestamp = r.Timestamp.UTC()
		r.TemperatureAlert = models.AlertLevel(tempAlert)
		r.PressureAlert = models.AlertLevel(pressureAlert)
		readings = append(readings, r)
	}
	if err := rows.Err(); err != nil {
		return nil, &errs.StorageError{Op: "query", Table: table, Err: err}
	}
	return readings, nil
}

// CountRows returns the number of stored readings.
func (s *Store) CountRows(ctx context.Context, table string) (int64, error) {
	var count int64
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+pgx.Identifier{table}.Sanitize()).Scan(&count); err != nil {
		return 0, &errs.StorageError{Op: "count", Table: table, Err: err}
	}
	return count, nil
}

const summarySQL = `
    SELECT
        COUNT(*),
        MIN("timestamp"),
        MAX("timestamp"),
        COALESCE(AVG(temperature), 0),
        COALESCE(AVG(pressure), 0),
        COALESCE(MAX(uptime), 0),
        COUNT(*) FILTER (WHERE temperature_alert = 'red'),
        COUNT(*) FILTER (WHERE pressure_alert = 'red')
    FROM %s
`

// Summary aggregates the stored table in a single round trip.
func (s *Store) Summary(ctx context.Context, table string) (models.DataSummary, error) {
	var sum models.DataSummary
	var earliest, latest *time.Time
	row := s.pool.QueryRow(ctx, fmt.Sprintf(summarySQL, pgx.Identifier{table}.Sanitize()))
	if err := row.Scan(
		&sum.TotalRecords,
		&earliest,
		&latest,
		&sum.AvgTemperature,
		&sum.AvgPressure,
		&sum.MaxUptime,
		&sum.TemperatureAlert,
		&sum.PressureAlert,
	); err != nil {
		return sum, &errs.StorageError{Op: "summary", Table: table, Err: err}
	}
	if earliest != nil {
		sum.Earliest = earliest.UTC()
	}
	if latest != nil {
		sum.Latest = latest.UTC()
	}
	return sum, nil
}
