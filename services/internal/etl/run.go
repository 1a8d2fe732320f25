package etl

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/02loveslollipop/smart-sensor-dashboard/services/internal/errs"
	"github.com/02loveslollipop/smart-sensor-dashboard/services/internal/models"
)

// Sink receives the result of every successfully loaded run.
type Sink interface {
	Name() string
	Publish(ctx context.Context, res Result) error
}

// Summarizer reads back a storage-side rollup after a load.
type Summarizer interface {
	Summary(ctx context.Context, table string) (models.DataSummary, error)
}

// Result describes one pipeline run.
type Result struct {
	RunID     string
	StartedAt time.Time
	Extracted int
	Rows      []models.AnnotatedReading
	KPIs      models.RunKPIs
	Loaded    bool
}

// Runner wires extract, transform, load and sinks into a single batch.
type Runner struct {
	Extractor   *Extractor
	Transformer Transformer
	Loader      *Loader
	// Summary is optional; when set, the stored rollup is logged after the load.
	Summary Summarizer
	Sinks   []Sink
	Log     *slog.Logger
}

// Run executes one batch. It fails when nothing is extracted, when nothing
// survives cleaning, or when the load fails; in the last case the returned
// Result still carries the annotated rows and KPIs. Sink failures are logged
// and never fail the run.
func (r *Runner) Run(ctx context.Context, rowHint int) (Result, error) {
	log := r.Log
	if log == nil {
		log = slog.Default()
	}
	res := Result{RunID: uuid.NewString(), StartedAt: time.Now().UTC()}
	log = log.With("run_id", res.RunID)

	t0 := time.Now()
	raw, err := r.Extractor.Extract(ctx, rowHint)
	if err != nil {
		return res, err
	}
	res.Extracted = len(raw)
	log.Info("extracted", "rows", len(raw), "elapsed", time.Since(t0))
	if len(raw) == 0 {
		return res, &errs.ExtractionError{Reason: "no rows extracted"}
	}

	t0 = time.Now()
	res.Rows, res.KPIs = r.Transformer.Transform(raw)
	log.Info("transformed",
		"rows", len(res.Rows),
		"avg_temp", res.KPIs.AvgTemp,
		"avg_pressure", res.KPIs.AvgPressure,
		"alert_count", res.KPIs.AlertCount,
		"uptime_hours", res.KPIs.UptimeHours,
		"quality", res.KPIs.DataQualityScore,
		"elapsed", time.Since(t0),
	)
	if len(res.Rows) == 0 {
		return res, errors.New("no rows survived transformation")
	}

	t0 = time.Now()
	if err := r.Loader.Load(ctx, res.Rows); err != nil {
		return res, err
	}
	res.Loaded = true
	log.Info("load finished", "elapsed", time.Since(t0))

	for _, sink := range r.Sinks {
		if err := sink.Publish(ctx, res); err != nil {
			log.Warn("sink failed", "sink", sink.Name(), "err", err)
			continue
		}
		log.Debug("sink published", "sink", sink.Name())
	}

	if r.Summary != nil {
		sum, err := r.Summary.Summary(ctx, r.Loader.Table)
		if err != nil {
			log.Warn("could not retrieve data summary", "err", err)
		} else {
			log.Info("pipeline completed",
				"total_records", sum.TotalRecords,
				"earliest", sum.Earliest,
				"latest", sum.Latest,
				"avg_temperature", sum.AvgTemperature,
				"avg_pressure", sum.AvgPressure,
				"max_uptime", sum.MaxUptime,
				"temperature_alerts", sum.TemperatureAlert,
				"pressure_alerts", sum.PressureAlert,
			)
		}
	}
	return res, nil
}
