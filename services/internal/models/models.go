package models

import "time"

// AlertLevel classifies how far a reading sits from its batch average.
type AlertLevel string

const (
	AlertNormal AlertLevel = "normal"
	AlertYellow AlertLevel = "yellow"
	AlertRed    AlertLevel = "red"
)

// Valid reports whether the level is one of the known tiers.
func (l AlertLevel) Valid() bool {
	switch l {
	case AlertNormal, AlertYellow, AlertRed:
		return true
	}
	return false
}

// Reading is one raw sensor observation as extracted from a source.
// A nil value or a zero timestamp marks a missing field.
type Reading struct {
	Timestamp   time.Time
	Temperature *float64
	Pressure    *float64
	Uptime      *float64
}

// NewReading builds a reading with every field present.
func NewReading(ts time.Time, temperature, pressure, uptime float64) Reading {
	return Reading{
		Timestamp:   ts,
		Temperature: &temperature,
		Pressure:    &pressure,
		Uptime:      &uptime,
	}
}

// Complete reports whether all four required fields are present.
func (r Reading) Complete() bool {
	return !r.Timestamp.IsZero() && r.Temperature != nil && r.Pressure != nil && r.Uptime != nil
}

// AnnotatedReading is a cleaned reading plus the z-scores and alert tiers
// computed for the batch it was transformed in.
type AnnotatedReading struct {
	Timestamp         time.Time  `json:"timestamp"`
	Temperature       float64    `json:"temperature"`
	Pressure          float64    `json:"pressure"`
	Uptime            float64    `json:"uptime"`
	TemperatureZScore float64    `json:"temperature_zscore"`
	PressureZScore    float64    `json:"pressure_zscore"`
	TemperatureAlert  AlertLevel `json:"temperature_alert"`
	PressureAlert     AlertLevel `json:"pressure_alert"`
}

// Range holds the observed min and max of a metric.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// RunKPIs summarizes a dataset. It is recomputed on demand and never stored.
type RunKPIs struct {
	AvgTemp          float64 `json:"avg_temp"`
	AvgPressure      float64 `json:"avg_pressure"`
	AlertCount       int     `json:"alert_count"`
	UptimeHours      float64 `json:"uptime_hours"`
	TotalRecords     int     `json:"total_records"`
	DataQualityScore float64 `json:"data_quality_score"`
	TemperatureRange Range   `json:"temperature_range"`
	PressureRange    Range   `json:"pressure_range"`
}

// TrendSeries holds parallel chart series of equal length.
type TrendSeries struct {
	Timestamps   []string  `json:"timestamps"`
	Temperatures []float64 `json:"temperatures"`
	Pressures    []float64 `json:"pressures"`
	UptimeHours  []float64 `json:"uptime_hours"`
	RecordCount  int       `json:"record_count"`
}

// ReadingQuery filters stored annotated readings. Zero values mean "no filter".
type ReadingQuery struct {
	Day              *time.Time
	TemperatureAlert AlertLevel
	PressureAlert    AlertLevel
	Limit            int
	Offset           int
}

// Filtered reports whether the query restricts rows beyond pagination.
func (q ReadingQuery) Filtered() bool {
	return q.Day != nil || q.TemperatureAlert != "" || q.PressureAlert != ""
}

// DataSummary is the storage-side rollup logged after each load.
type DataSummary struct {
	TotalRecords     int64     `json:"total_records"`
	Earliest         time.Time `json:"earliest"`
	Latest           time.Time `json:"latest"`
	AvgTemperature   float64   `json:"avg_temperature"`
	AvgPressure      float64   `json:"avg_pressure"`
	MaxUptime        float64   `json:"max_uptime"`
	TemperatureAlert int64     `json:"temperature_alerts"`
	PressureAlert    int64     `json:"pressure_alerts"`
}
