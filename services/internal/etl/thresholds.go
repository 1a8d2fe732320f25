package etl

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Thresholds holds the physical ranges used for cleaning and the z-score
// cut-offs used for alert classification.
type Thresholds struct {
	TempMin        float64 `yaml:"temperature_min"`
	TempMax        float64 `yaml:"temperature_max"`
	PressureMin    float64 `yaml:"pressure_min"`
	PressureMax    float64 `yaml:"pressure_max"`
	TempRed        float64 `yaml:"temperature_red_z"`
	PressureRed    float64 `yaml:"pressure_red_z"`
	PressureYellow float64 `yaml:"pressure_yellow_z"`
}

// DefaultThresholds returns the standard plant limits.
func DefaultThresholds() Thresholds {
	return Thresholds{
		TempMin:        0,
		TempMax:        150,
		PressureMin:    800,
		PressureMax:    1200,
		TempRed:        2.0,
		PressureRed:    2.5,
		PressureYellow: 1.5,
	}
}

// Validate rejects inverted ranges and cut-offs.
func (t Thresholds) Validate() error {
	if t.TempMin > t.TempMax {
		return fmt.Errorf("temperature range [%g, %g] is inverted", t.TempMin, t.TempMax)
	}
	if t.PressureMin > t.PressureMax {
		return fmt.Errorf("pressure range [%g, %g] is inverted", t.PressureMin, t.PressureMax)
	}
	if t.TempRed <= 0 || t.PressureRed <= 0 || t.PressureYellow <= 0 {
		return fmt.Errorf("z-score cut-offs must be positive")
	}
	if t.PressureYellow > t.PressureRed {
		return fmt.Errorf("pressure yellow cut-off %g exceeds red cut-off %g", t.PressureYellow, t.PressureRed)
	}
	return nil
}

// LoadThresholds reads a YAML file on top of the defaults. Keys absent from
// the file keep their default value. An empty path returns the defaults.
func LoadThresholds(path string) (Thresholds, error) {
	t := DefaultThresholds()
	if path == "" {
		return t, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return t, fmt.Errorf("read thresholds: %w", err)
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("parse thresholds %s: %w", path, err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("invalid thresholds %s: %w", path, err)
	}
	return t, nil
}
