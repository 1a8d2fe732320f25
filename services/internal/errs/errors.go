// Package errs defines the error kinds shared by the ETL core and the
// serving layer. Each kind names the stage it came from so operators can
// tell a bad request from an empty table from an unreachable database.
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// ExtractionError reports that no dataset could be produced at all.
type ExtractionError struct {
	Reason string
	Err    error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extract: %s: %v", e.Reason, e.Err)
	}
	return "extract: " + e.Reason
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// ValidationError reports client input that was rejected before any query ran.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// NotFoundKind separates "no rows for this filter" from "nothing was ever loaded".
type NotFoundKind int

const (
	NotFoundNeverRan NotFoundKind = iota
	NotFoundForDate
)

// NotFoundError reports an empty result.
type NotFoundError struct {
	Kind NotFoundKind
	Date string
}

func (e *NotFoundError) Error() string {
	if e.Kind == NotFoundForDate {
		return "no data found for date: " + e.Date
	}
	return "no data found in database; run the ETL pipeline first"
}

// StorageError wraps a read or write failure against the backing store.
type StorageError struct {
	Op    string
	Table string
	Err   error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Table, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Stage names the pipeline stage an error belongs to.
func Stage(err error) string {
	var (
		extractErr  *ExtractionError
		validErr    *ValidationError
		notFoundErr *NotFoundError
		storageErr  *StorageError
	)
	switch {
	case errors.As(err, &validErr):
		return "validation"
	case errors.As(err, &notFoundErr):
		return "query"
	case errors.As(err, &storageErr):
		return "storage"
	case errors.As(err, &extractErr):
		return "extract"
	default:
		return "internal"
	}
}

// HTTPStatus maps an error to the status code the REST layer should return.
func HTTPStatus(err error) int {
	var (
		validErr    *ValidationError
		notFoundErr *NotFoundError
	)
	switch {
	case errors.As(err, &validErr):
		return http.StatusBadRequest
	case errors.As(err, &notFoundErr):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
