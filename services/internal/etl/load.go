package etl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/02loveslollipop/smart-sensor-dashboard/services/internal/db"
	"github.com/02loveslollipop/smart-sensor-dashboard/services/internal/models"
)

// ErrEmptyDataset is returned when Load is asked to persist nothing.
var ErrEmptyDataset = errors.New("cannot load an empty dataset")

// IndexedColumns are indexed after every load.
var IndexedColumns = []string{"timestamp", "uptime", "temperature", "pressure", "temperature_alert", "pressure_alert"}

// TableWriter is the storage write side used by Loader.
type TableWriter interface {
	ReplaceTable(ctx context.Context, table string, rows []models.AnnotatedReading) error
	EnsureIndex(ctx context.Context, table, column string) error
	EnablePartitioning(ctx context.Context, table, column string) error
}

// Loader overwrites the sensor table with an annotated dataset.
type Loader struct {
	Store TableWriter
	Table string
	Log   *slog.Logger
}

// Load replaces the table contents, then creates indexes and time
// partitioning. Index or partitioning failures are logged but do not fail
// the load once the rows are committed.
func (l *Loader) Load(ctx context.Context, rows []models.AnnotatedReading) error {
	log := l.Log
	if log == nil {
		log = slog.Default()
	}
	if len(rows) == 0 {
		log.Error("refusing to load empty dataset", "table", l.Table)
		return ErrEmptyDataset
	}

	log.Info("loading records", "table", l.Table, "rows", len(rows))
	if err := l.Store.ReplaceTable(ctx, l.Table, rows); err != nil {
		return fmt.Errorf("load %s: %w", l.Table, err)
	}

	if err := l.Store.EnablePartitioning(ctx, l.Table, "timestamp"); err != nil {
		if errors.Is(err, db.ErrPartitioningUnsupported) {
			log.Debug("time partitioning unavailable", "table", l.Table)
		} else {
			log.Warn("enable time partitioning", "table", l.Table, "err", err)
		}
	}

	for _, column := range IndexedColumns {
		if err := l.Store.EnsureIndex(ctx, l.Table, column); err != nil {
			log.Warn("create index", "table", l.Table, "column", column, "err", err)
		}
	}

	log.Info("loaded records", "table", l.Table, "rows", len(rows))
	return nil
}
