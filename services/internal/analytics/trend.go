package analytics

import (
	"github.com/02loveslollipop/smart-sensor-dashboard/services/internal/csvio"
	"github.com/02loveslollipop/smart-sensor-dashboard/services/internal/models"
)

// UnknownTimestamp is rendered in place of a missing timestamp.
const UnknownTimestamp = "Unknown"

// PrepareTrend lays a dataset out as parallel chart series. All four series
// have len(rows) entries; empty input gives empty (non-nil) series.
func PrepareTrend(rows []models.AnnotatedReading) models.TrendSeries {
	trend := models.TrendSeries{
		Timestamps:   make([]string, 0, len(rows)),
		Temperatures: make([]float64, 0, len(rows)),
		Pressures:    make([]float64, 0, len(rows)),
		UptimeHours:  make([]float64, 0, len(rows)),
		RecordCount:  len(rows),
	}

	for _, row := range rows {
		ts := UnknownTimestamp
		if !row.Timestamp.IsZero() {
			ts = row.Timestamp.UTC().Format(csvio.TimestampLayout)
		}
		trend.Timestamps = append(trend.Timestamps, ts)
		trend.Temperatures = append(trend.Temperatures, Round2(row.Temperature))
		trend.Pressures = append(trend.Pressures, Round2(row.Pressure))
		trend.UptimeHours = append(trend.UptimeHours, row.Uptime)
	}
	return trend
}
