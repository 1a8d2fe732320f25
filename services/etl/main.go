package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/02loveslollipop/smart-sensor-dashboard/services/etl/internal/config"
	"github.com/02loveslollipop/smart-sensor-dashboard/services/internal/db"
	"github.com/02loveslollipop/smart-sensor-dashboard/services/internal/etl"
	"github.com/02loveslollipop/smart-sensor-dashboard/services/internal/logging"
	"github.com/02loveslollipop/smart-sensor-dashboard/services/internal/models"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		slog.Error("ETL pipeline failed", "err", err)
		os.Exit(1)
	}
}

// store is what the runner needs from either backend.
type store interface {
	etl.TableWriter
	etl.Summarizer
	Close()
}

func run(args []string, stdout io.Writer) error {
	cfg, err := config.Load(args)
	if err != nil {
		return err
	}
	log := logging.New(os.Stderr, cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	var st store
	if cfg.DatabaseURL == db.MemoryURL {
		st = db.NewMemoryStore()
	} else {
		pg, err := db.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		st = pg
	}
	defer st.Close()

	sinks, closeSinks := buildSinks(ctx, cfg, log)
	defer closeSinks()

	runner := &etl.Runner{
		Extractor: &etl.Extractor{
			SourcePath: cfg.DataPath,
			Strict:     cfg.Strict,
			Log:        log,
		},
		Transformer: etl.Transformer{Thresholds: cfg.Thresholds, Uptime: cfg.UptimeMode},
		Loader:      &etl.Loader{Store: st, Table: cfg.Table, Log: log},
		Summary:     st,
		Sinks:       sinks,
		Log:         log,
	}

	log.Info("running ETL", "rows", cfg.NumRows, "table", cfg.Table, "sinks", len(sinks))
	res, err := runner.Run(ctx, cfg.NumRows)
	if err != nil {
		return err
	}

	log.Info("ETL pipeline completed successfully", "run_id", res.RunID)
	printKPIs(stdout, res.KPIs)
	return nil
}

func printKPIs(w io.Writer, kpis models.RunKPIs) {
	fmt.Fprintln(w, "Key Performance Indicators:")
	fmt.Fprintf(w, "  Average Temperature: %.2f°C\n", kpis.AvgTemp)
	fmt.Fprintf(w, "  Average Pressure: %.2fhPa\n", kpis.AvgPressure)
	fmt.Fprintf(w, "  Total Alerts: %d\n", kpis.AlertCount)
	fmt.Fprintf(w, "  Uptime Hours: %g\n", kpis.UptimeHours)
	fmt.Fprintf(w, "  Data Quality Score: %.1f%%\n", kpis.DataQualityScore)
	fmt.Fprintf(w, "  Total Records: %d\n", kpis.TotalRecords)
}
