// Package analytics computes KPI summaries and chart series from annotated
// sensor datasets. Every function here is pure; callers hand in an
// immutable snapshot and get a fresh value back.
package analytics

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/02loveslollipop/smart-sensor-dashboard/services/internal/models"
)

// UptimeMode selects how per-row uptime values roll up into uptime_hours.
type UptimeMode string

const (
	// UptimeMax treats uptime as a monotonic gauge and reports the largest value.
	UptimeMax UptimeMode = "max"
	// UptimeSum treats each row's uptime as a duration and reports the total.
	UptimeSum UptimeMode = "sum"
)

// ParseUptimeMode accepts "max" or "sum"; empty selects max.
func ParseUptimeMode(s string) (UptimeMode, error) {
	switch UptimeMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", UptimeMax:
		return UptimeMax, nil
	case UptimeSum:
		return UptimeSum, nil
	default:
		return "", fmt.Errorf("unknown uptime mode %q", s)
	}
}

// Summarizer computes KPIs with an explicit uptime roll-up.
type Summarizer struct {
	Uptime UptimeMode
}

// ComputeKPIs summarizes rows with the default max-uptime roll-up.
func ComputeKPIs(rows []models.AnnotatedReading) models.RunKPIs {
	return Summarizer{Uptime: UptimeMax}.ComputeKPIs(rows)
}

// ComputeKPIs summarizes any annotated dataset, such as a date-filtered slice
// read back from storage. Averages and ranges are rounded to two decimals and
// uptime_hours is truncated to a whole number.
func (s Summarizer) ComputeKPIs(rows []models.AnnotatedReading) models.RunKPIs {
	kpis := s.Accumulate(rows)
	if kpis.TotalRecords == 0 {
		return kpis
	}

	kpis.AvgTemp = Round2(kpis.AvgTemp)
	kpis.AvgPressure = Round2(kpis.AvgPressure)
	kpis.UptimeHours = math.Trunc(kpis.UptimeHours)
	kpis.TemperatureRange = models.Range{Min: Round2(kpis.TemperatureRange.Min), Max: Round2(kpis.TemperatureRange.Max)}
	kpis.PressureRange = models.Range{Min: Round2(kpis.PressureRange.Min), Max: Round2(kpis.PressureRange.Max)}
	// Rows read back from storage already survived cleaning.
	kpis.DataQualityScore = 100
	return kpis
}

// Accumulate returns unrounded means, red-alert count, uptime roll-up, ranges
// and record count. DataQualityScore is left at zero for the caller to set.
func (s Summarizer) Accumulate(rows []models.AnnotatedReading) models.RunKPIs {
	var kpis models.RunKPIs
	if len(rows) == 0 {
		return kpis
	}

	var sumTemp, sumPressure, uptime float64
	tempRange := models.Range{Min: rows[0].Temperature, Max: rows[0].Temperature}
	pressureRange := models.Range{Min: rows[0].Pressure, Max: rows[0].Pressure}
	if s.Uptime != UptimeSum {
		uptime = rows[0].Uptime
	}

	for _, row := range rows {
		sumTemp += row.Temperature
		sumPressure += row.Pressure

		if row.TemperatureAlert == models.AlertRed {
			kpis.AlertCount++
		}
		if row.PressureAlert == models.AlertRed {
			kpis.AlertCount++
		}

		if s.Uptime == UptimeSum {
			uptime += row.Uptime
		} else if row.Uptime > uptime {
			uptime = row.Uptime
		}

		tempRange.Min = math.Min(tempRange.Min, row.Temperature)
		tempRange.Max = math.Max(tempRange.Max, row.Temperature)
		pressureRange.Min = math.Min(pressureRange.Min, row.Pressure)
		pressureRange.Max = math.Max(pressureRange.Max, row.Pressure)
	}

	n := float64(len(rows))
	kpis.AvgTemp = sumTemp / n
	kpis.AvgPressure = sumPressure / n
	kpis.UptimeHours = uptime
	kpis.TotalRecords = len(rows)
	kpis.TemperatureRange = tempRange
	kpis.PressureRange = pressureRange
	return kpis
}

// Round2 rounds the exact binary value of v to two decimal places, ties to
// even, so 2.675 (stored as 2.67499...) becomes 2.67.
func Round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	exact, err := decimal.NewFromString(strconv.FormatFloat(v, 'f', exactDigits, 64))
	if err != nil {
		return decimal.NewFromFloat(v).Round(2).InexactFloat64()
	}
	return exact.RoundBank(2).InexactFloat64()
}

// exactDigits spells out exactly every float64 of magnitude 2^-26 or more,
// which covers every value that can sit next to a 0.005 tie.
const exactDigits = 80
