// Package csvio reads and writes sensor datasets as CSV.
package csvio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/02loveslollipop/smart-sensor-dashboard/services/internal/errs"
	"github.com/02loveslollipop/smart-sensor-dashboard/services/internal/models"
)

// TimestampLayout is the layout used for every timestamp this package writes.
const TimestampLayout = "2006-01-02 15:04:05"

// RequiredColumns lists the header names a raw source must contain.
var RequiredColumns = []string{"timestamp", "temperature", "pressure", "uptime"}

var annotatedHeader = []string{
	"timestamp", "temperature", "pressure", "uptime",
	"temperature_zscore", "pressure_zscore", "temperature_alert", "pressure_alert",
}

// ErrEmptySource is returned when a source holds no data rows.
var ErrEmptySource = errors.New("source has no data rows")

var timestampLayouts = []string{
	time.RFC3339Nano,
	TimestampLayout,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTimestamp accepts the formats produced by common CSV exporters and
// returns the instant in UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// ReadReadings decodes a raw dataset. Lines starting with '#' are skipped,
// extra columns are ignored and unparseable cells become missing values.
func ReadReadings(r io.Reader) ([]models.Reading, error) {
	reader := csv.NewReader(r)
	reader.Comment = '#'
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptySource
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}

	var missing []string
	for _, col := range RequiredColumns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &errs.ValidationError{
			Field:  "columns",
			Value:  strings.Join(missing, ","),
			Reason: "source is missing required columns",
		}
	}

	readings := make([]models.Reading, 0)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", len(readings)+1, err)
		}

		var rd models.Reading
		if ts, err := ParseTimestamp(cell(record, index["timestamp"])); err == nil {
			rd.Timestamp = ts
		}
		rd.Temperature = parseNullable(cell(record, index["temperature"]))
		rd.Pressure = parseNullable(cell(record, index["pressure"]))
		rd.Uptime = parseNullable(cell(record, index["uptime"]))
		readings = append(readings, rd)
	}

	if len(readings) == 0 {
		return nil, ErrEmptySource
	}
	return readings, nil
}

// WriteReadings encodes a raw dataset with the required header.
func WriteReadings(w io.Writer, readings []models.Reading) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(RequiredColumns); err != nil {
		return err
	}
	for _, rd := range readings {
		ts := ""
		if !rd.Timestamp.IsZero() {
			ts = rd.Timestamp.UTC().Format(TimestampLayout)
		}
		if err := writer.Write([]string{
			ts,
			formatNullable(rd.Temperature),
			formatNullable(rd.Pressure),
			formatNullable(rd.Uptime),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteAnnotated encodes an annotated dataset, z-scores and alerts included.
func WriteAnnotated(w io.Writer, rows []models.AnnotatedReading) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(annotatedHeader); err != nil {
		return err
	}
	for _, row := range rows {
		if err := writer.Write([]string{
			row.Timestamp.UTC().Format(TimestampLayout),
			formatFloat(row.Temperature),
			formatFloat(row.Pressure),
			formatFloat(row.Uptime),
			formatFloat(row.TemperatureZScore),
			formatFloat(row.PressureZScore),
			string(row.TemperatureAlert),
			string(row.PressureAlert),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func cell(record []string, i int) string {
	if i < 0 || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

// parseNullable treats empty cells, NaN and garbage as missing.
func parseNullable(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func formatNullable(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
