// Package influx mirrors processed readings into InfluxDB v2 for
// time-series dashboards.
package influx

import (
	"context"
	"fmt"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/02loveslollipop/smart-sensor-dashboard/services/internal/etl"
)

// Measurement is the InfluxDB measurement name for one reading.
const Measurement = "sensor_reading"

// Config holds the InfluxDB connection settings.
type Config struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// Sink writes one point per annotated reading.
type Sink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
}

// New initializes the client and verifies the server is healthy.
func New(ctx context.Context, cfg Config) (*Sink, error) {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	if _, err := client.Health(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to InfluxDB: %w", err)
	}
	return &Sink{client: client, writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket)}, nil
}

// Close releases the client.
func (s *Sink) Close() {
	s.client.Close()
}

func (s *Sink) Name() string { return "influxdb" }

func (s *Sink) Publish(ctx context.Context, res etl.Result) error {
	if len(res.Rows) == 0 {
		return nil
	}
	if err := s.writeAPI.WritePoint(ctx, Points(res)...); err != nil {
		return fmt.Errorf("influx write: %w", err)
	}
	return nil
}

// Points converts a run into InfluxDB points, tagged by alert tier and run.
func Points(res etl.Result) []*write.Point {
	points := make([]*write.Point, 0, len(res.Rows))
	for _, r := range res.Rows {
		points = append(points, write.NewPoint(
			Measurement,
			map[string]string{
				"run_id":            res.RunID,
				"temperature_alert": string(r.TemperatureAlert),
				"pressure_alert":    string(r.PressureAlert),
			},
			map[string]interface{}{
				"temperature":        r.Temperature,
				"pressure":           r.Pressure,
				"uptime":             r.Uptime,
				"temperature_zscore": r.TemperatureZScore,
				"pressure_zscore":    r.PressureZScore,
			},
			r.Timestamp,
		))
	}
	return points
}
