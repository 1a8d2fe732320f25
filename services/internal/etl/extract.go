// Package etl turns raw sensor readings into an annotated, persisted dataset:
// extract from CSV (or synthesize), clean and classify, then overwrite the
// sensor table and hand the result to downstream sinks.
package etl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"github.com/02loveslollipop/smart-sensor-dashboard/services/internal/analytics"
	"github.com/02loveslollipop/smart-sensor-dashboard/services/internal/csvio"
	"github.com/02loveslollipop/smart-sensor-dashboard/services/internal/errs"
	"github.com/02loveslollipop/smart-sensor-dashboard/services/internal/models"
)

const anomalyProbability = 0.05

// Extractor produces the raw dataset for one run.
type Extractor struct {
	// SourcePath is the CSV read first and rewritten with synthetic data on fallback.
	SourcePath string
	// Strict returns a source missing required columns as an error instead of
	// falling back to synthetic data.
	Strict bool
	Rand   *rand.Rand
	Now    func() time.Time
	Log    *slog.Logger
}

// ReadSource loads a CSV dataset from path.
func ReadSource(path string) ([]models.Reading, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	readings, err := csvio.ReadReadings(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return readings, nil
}

// GenerateSynthetic returns n hourly readings ending at end. Temperature
// follows a daily cycle, pressure a 12-hour cycle, uptime counts hours, and
// roughly one row in twenty carries a spike on one metric.
func GenerateSynthetic(n int, end time.Time, rng *rand.Rand) ([]models.Reading, error) {
	if n <= 0 {
		return nil, &errs.ExtractionError{Reason: fmt.Sprintf("row count must be positive, got %d", n)}
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	end = end.UTC().Truncate(time.Second)
	start := end.Add(-time.Duration(n-1) * time.Hour)

	readings := make([]models.Reading, 0, n)
	for i := 0; i < n; i++ {
		phase := float64(i)
		temperature := 60 + 20*math.Sin(2*math.Pi*phase/24) + uniform(rng, -10, 10)
		temperature = clamp(temperature, 20, 100)

		pressure := 1000 + 50*math.Sin(2*math.Pi*phase/12) + uniform(rng, -20, 20)
		pressure = clamp(pressure, 900, 1100)

		if rng.Float64() < anomalyProbability {
			if rng.IntN(2) == 0 {
				temperature += sign(rng) * 30
			} else {
				pressure += sign(rng) * 100
			}
		}

		readings = append(readings, models.NewReading(
			start.Add(time.Duration(i)*time.Hour),
			analytics.Round2(temperature),
			analytics.Round2(pressure),
			phase,
		))
	}
	return readings, nil
}

// WriteSource stores a raw dataset at path, creating parent directories.
func WriteSource(path string, readings []models.Reading) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := csvio.WriteReadings(f, readings); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Extract reads the source when it is usable and otherwise generates rowHint
// synthetic readings, saving them back to the source path.
func (e *Extractor) Extract(ctx context.Context, rowHint int) ([]models.Reading, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log := e.logger()

	if e.SourcePath != "" {
		readings, err := ReadSource(e.SourcePath)
		if err == nil {
			log.Info("read source", "path", e.SourcePath, "rows", len(readings))
			return readings, nil
		}

		var validErr *errs.ValidationError
		if e.Strict && errors.As(err, &validErr) {
			return nil, err
		}
		if errors.Is(err, os.ErrNotExist) {
			log.Info("source not found, generating synthetic data", "path", e.SourcePath)
		} else {
			log.Warn("source unusable, generating synthetic data", "path", e.SourcePath, "err", err)
		}
	}

	now := time.Now
	if e.Now != nil {
		now = e.Now
	}
	readings, err := GenerateSynthetic(rowHint, now(), e.Rand)
	if err != nil {
		return nil, err
	}
	log.Info("generated synthetic data", "rows", len(readings))

	if e.SourcePath != "" {
		if err := WriteSource(e.SourcePath, readings); err != nil {
			log.Error("save synthetic data", "path", e.SourcePath, "err", err)
		} else {
			log.Info("saved synthetic data", "path", e.SourcePath)
		}
	}
	return readings, nil
}

func (e *Extractor) logger() *slog.Logger {
	if e.Log != nil {
		return e.Log
	}
	return slog.Default()
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func sign(rng *rand.Rand) float64 {
	if rng.IntN(2) == 0 {
		return -1
	}
	return 1
}
