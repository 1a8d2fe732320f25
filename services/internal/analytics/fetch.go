package analytics

import (
	"context"
	"errors"
	"time"

	"github.com/02loveslollipop/smart-sensor-dashboard/services/internal/errs"
	"github.com/02loveslollipop/smart-sensor-dashboard/services/internal/models"
)

// DateLayout is the only accepted day filter format.
const DateLayout = "2006-01-02"

// Reader is the storage read side consumed by Fetch.
type Reader interface {
	TableExists(ctx context.Context, table string) (bool, error)
	Query(ctx context.Context, table string, q models.ReadingQuery) ([]models.AnnotatedReading, error)
}

// ParseDate validates a YYYY-MM-DD filter. Empty input means no filter.
func ParseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	if len(s) != len(DateLayout) {
		return nil, &errs.ValidationError{Field: "date", Value: s, Reason: "use YYYY-MM-DD format"}
	}
	day, err := time.Parse(DateLayout, s)
	if err != nil {
		return nil, &errs.ValidationError{Field: "date", Value: s, Reason: "use YYYY-MM-DD format"}
	}
	return &day, nil
}

// ParseAlert validates an alert level filter. Empty input means no filter.
func ParseAlert(field, s string) (models.AlertLevel, error) {
	if s == "" {
		return "", nil
	}
	level := models.AlertLevel(s)
	if !level.Valid() {
		return "", &errs.ValidationError{Field: field, Value: s, Reason: "expected normal, yellow or red"}
	}
	return level, nil
}

// FetchByDate validates date and returns the matching rows in timestamp order.
func FetchByDate(ctx context.Context, r Reader, table, date string) ([]models.AnnotatedReading, error) {
	day, err := ParseDate(date)
	if err != nil {
		return nil, err
	}
	return Fetch(ctx, r, table, models.ReadingQuery{Day: day})
}

// Fetch reads annotated rows and tells the two empty outcomes apart: a table
// that was never populated gives NotFoundNeverRan, a day with no rows gives
// NotFoundForDate. An empty alert-filtered page is a normal empty result,
// also when the day it was filtered from has rows.
func Fetch(ctx context.Context, r Reader, table string, q models.ReadingQuery) ([]models.AnnotatedReading, error) {
	exists, err := r.TableExists(ctx, table)
	if err != nil {
		return nil, wrapStorage("exists", table, err)
	}
	if !exists {
		return nil, &errs.NotFoundError{Kind: errs.NotFoundNeverRan}
	}

	rows, err := r.Query(ctx, table, q)
	if err != nil {
		return nil, wrapStorage("query", table, err)
	}

	if len(rows) == 0 && q.Offset == 0 {
		switch {
		case q.Day != nil:
			empty, err := dayEmpty(ctx, r, table, q)
			if err != nil {
				return nil, err
			}
			if empty {
				return nil, &errs.NotFoundError{Kind: errs.NotFoundForDate, Date: q.Day.Format(DateLayout)}
			}
		case !q.Filtered():
			return nil, &errs.NotFoundError{Kind: errs.NotFoundNeverRan}
		}
	}
	return rows, nil
}

// dayEmpty reports whether the day in q has no rows at all, ignoring the
// alert filters that may have emptied the page.
func dayEmpty(ctx context.Context, r Reader, table string, q models.ReadingQuery) (bool, error) {
	if q.TemperatureAlert == "" && q.PressureAlert == "" {
		return true, nil
	}
	rows, err := r.Query(ctx, table, models.ReadingQuery{Day: q.Day, Limit: 1})
	if err != nil {
		return false, wrapStorage("query", table, err)
	}
	return len(rows) == 0, nil
}

func wrapStorage(op, table string, err error) error {
	var storageErr *errs.StorageError
	if errors.As(err, &storageErr) {
		return err
	}
	return &errs.StorageError{Op: op, Table: table, Err: err}
}
