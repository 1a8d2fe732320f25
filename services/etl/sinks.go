package main

import (
	"context"
	"log/slog"

	"github.com/02loveslollipop/smart-sensor-dashboard/services/etl/internal/config"
	"github.com/02loveslollipop/smart-sensor-dashboard/services/internal/cache"
	"github.com/02loveslollipop/smart-sensor-dashboard/services/internal/etl"
	"github.com/02loveslollipop/smart-sensor-dashboard/services/internal/sinks/archive"
	"github.com/02loveslollipop/smart-sensor-dashboard/services/internal/sinks/influx"
	"github.com/02loveslollipop/smart-sensor-dashboard/services/internal/sinks/kafka"
	"github.com/02loveslollipop/smart-sensor-dashboard/services/internal/sinks/rabbitmq"
)

// buildSinks connects every configured sink. A sink that cannot connect is
// skipped with a warning; the load itself does not depend on any of them.
func buildSinks(ctx context.Context, cfg config.Config, log *slog.Logger) ([]etl.Sink, func()) {
	var (
		sinks   []etl.Sink
		closers []func()
	)
	add := func(name string, sink etl.Sink, closer func(), err error) {
		if err != nil {
			log.Warn("sink disabled", "sink", name, "err", err)
			return
		}
		sinks = append(sinks, sink)
		if closer != nil {
			closers = append(closers, closer)
		}
	}

	if cfg.ProcessedPath != "" {
		add("processed-csv", archive.FileSink{Path: cfg.ProcessedPath}, nil, nil)
	}

	if cfg.S3.Endpoint != "" {
		sink, err := archive.NewObjectSink(ctx, cfg.S3)
		add("s3", sink, nil, err)
	}

	if cfg.Influx.URL != "" {
		sink, err := influx.New(ctx, cfg.Influx)
		var closer func()
		if err == nil {
			closer = sink.Close
		}
		add("influxdb", sink, closer, err)
	}

	if len(cfg.Kafka.Brokers) > 0 {
		sink, err := kafka.New(cfg.Kafka)
		var closer func()
		if err == nil {
			closer = func() {
				if err := sink.Close(); err != nil {
					log.Warn("close kafka producer", "err", err)
				}
			}
		}
		add("kafka", sink, closer, err)
	}

	if cfg.RabbitMQ.URL != "" {
		sink, err := rabbitmq.New(cfg.RabbitMQ)
		var closer func()
		if err == nil {
			closer = func() { _ = sink.Close() }
		}
		add("rabbitmq", sink, closer, err)
	}

	if cfg.RedisAddr != "" {
		c, err := cache.New(ctx, cache.Config{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		var closer func()
		if err == nil {
			closer = func() { _ = c.Close() }
		}
		add("cache", cache.InvalidationSink{Cache: c}, closer, err)
	}

	return sinks, func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
}
