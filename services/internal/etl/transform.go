package etl

import (
	"math"

	"github.com/02loveslollipop/smart-sensor-dashboard/services/internal/analytics"
	"github.com/02loveslollipop/smart-sensor-dashboard/services/internal/models"
)

// Transformer cleans a raw batch and classifies every survivor against the
// batch's own statistics.
type Transformer struct {
	Thresholds Thresholds
	Uptime     analytics.UptimeMode
}

// NewTransformer returns a transformer with the default thresholds.
func NewTransformer() Transformer {
	return Transformer{Thresholds: DefaultThresholds(), Uptime: analytics.UptimeMax}
}

// Transform drops incomplete and out-of-range rows, computes z-scores and
// alert tiers, and returns the annotated rows with their run KPIs. The input
// is not modified. Empty input or no survivors yields an empty dataset.
func (t Transformer) Transform(rows []models.Reading) ([]models.AnnotatedReading, models.RunKPIs) {
	th := t.Thresholds

	out := make([]models.AnnotatedReading, 0, len(rows))
	for _, r := range rows {
		if !r.Complete() {
			continue
		}
		temp, pressure := *r.Temperature, *r.Pressure
		if temp < th.TempMin || temp > th.TempMax {
			continue
		}
		if pressure < th.PressureMin || pressure > th.PressureMax {
			continue
		}
		out = append(out, models.AnnotatedReading{
			Timestamp:   r.Timestamp,
			Temperature: temp,
			Pressure:    pressure,
			Uptime:      *r.Uptime,
		})
	}

	tempMean, tempStd := meanStd(out, func(r models.AnnotatedReading) float64 { return r.Temperature })
	pressureMean, pressureStd := meanStd(out, func(r models.AnnotatedReading) float64 { return r.Pressure })

	for i := range out {
		out[i].TemperatureZScore = zscore(out[i].Temperature, tempMean, tempStd)
		out[i].PressureZScore = zscore(out[i].Pressure, pressureMean, pressureStd)
		out[i].TemperatureAlert = th.temperatureAlert(out[i].TemperatureZScore)
		out[i].PressureAlert = th.pressureAlert(out[i].PressureZScore)
	}

	kpis := analytics.Summarizer{Uptime: t.Uptime}.Accumulate(out)
	if len(rows) > 0 {
		kpis.DataQualityScore = float64(len(out)) / float64(len(rows)) * 100
	}
	return out, kpis
}

func (th Thresholds) temperatureAlert(z float64) models.AlertLevel {
	if math.Abs(z) > th.TempRed {
		return models.AlertRed
	}
	return models.AlertNormal
}

// pressureAlert checks red before yellow so each row gets a single tier.
func (th Thresholds) pressureAlert(z float64) models.AlertLevel {
	switch abs := math.Abs(z); {
	case abs > th.PressureRed:
		return models.AlertRed
	case abs > th.PressureYellow:
		return models.AlertYellow
	default:
		return models.AlertNormal
	}
}

// meanStd returns the mean and the sample standard deviation (n-1).
// The deviation is zero for fewer than two values.
func meanStd(rows []models.AnnotatedReading, field func(models.AnnotatedReading) float64) (float64, float64) {
	n := len(rows)
	if n == 0 {
		return 0, 0
	}
	var sum float64
	for _, r := range rows {
		sum += field(r)
	}
	mean := sum / float64(n)
	if n < 2 {
		return mean, 0
	}

	var sq float64
	for _, r := range rows {
		d := field(r) - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(n-1))
}

func zscore(v, mean, std float64) float64 {
	if std <= 0 || math.IsNaN(std) {
		return 0
	}
	return (v - mean) / std
}
