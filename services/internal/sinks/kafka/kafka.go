// Package kafka publishes red-alert readings as events for downstream
// alerting consumers.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Shopify/sarama"

	"github.com/02loveslollipop/smart-sensor-dashboard/services/internal/csvio"
	"github.com/02loveslollipop/smart-sensor-dashboard/services/internal/etl"
	"github.com/02loveslollipop/smart-sensor-dashboard/services/internal/models"
)

// Config holds the producer settings.
type Config struct {
	Brokers []string
	Topic   string
}

// AlertEvent is the message body for one alerting reading.
type AlertEvent struct {
	RunID             string            `json:"run_id"`
	Timestamp         string            `json:"timestamp"`
	Temperature       float64           `json:"temperature"`
	Pressure          float64           `json:"pressure"`
	Uptime            float64           `json:"uptime"`
	TemperatureZScore float64           `json:"temperature_zscore"`
	PressureZScore    float64           `json:"pressure_zscore"`
	TemperatureAlert  models.AlertLevel `json:"temperature_alert"`
	PressureAlert     models.AlertLevel `json:"pressure_alert"`
}

// AlertSink sends one message per reading with a red alert on either metric,
// keyed by run ID so a run's events stay on one partition in order.
type AlertSink struct {
	producer sarama.SyncProducer
	topic    string
}

// New connects a synchronous producer to the brokers.
func New(cfg Config) (*AlertSink, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Retry.Max = 3
	saramaConfig.Producer.Timeout = 10 * time.Second

	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return NewWithProducer(producer, cfg.Topic), nil
}

// NewWithProducer wraps an existing producer.
func NewWithProducer(producer sarama.SyncProducer, topic string) *AlertSink {
	return &AlertSink{producer: producer, topic: topic}
}

// Close flushes and closes the producer.
func (s *AlertSink) Close() error {
	return s.producer.Close()
}

func (s *AlertSink) Name() string { return "kafka" }

func (s *AlertSink) Publish(ctx context.Context, res etl.Result) error {
	msgs, err := Messages(s.topic, res)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.producer.SendMessages(msgs); err != nil {
		return fmt.Errorf("kafka send %d alerts: %w", len(msgs), err)
	}
	return nil
}

// Messages builds the producer messages for every red-alert reading.
func Messages(topic string, res etl.Result) ([]*sarama.ProducerMessage, error) {
	var msgs []*sarama.ProducerMessage
	for _, r := range res.Rows {
		if r.TemperatureAlert != models.AlertRed && r.PressureAlert != models.AlertRed {
			continue
		}
		body, err := json.Marshal(AlertEvent{
			RunID:             res.RunID,
			Timestamp:         r.Timestamp.UTC().Format(csvio.TimestampLayout),
			Temperature:       r.Temperature,
			Pressure:          r.Pressure,
			Uptime:            r.Uptime,
			TemperatureZScore: r.TemperatureZScore,
			PressureZScore:    r.PressureZScore,
			TemperatureAlert:  r.TemperatureAlert,
			PressureAlert:     r.PressureAlert,
		})
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, &sarama.ProducerMessage{
			Topic:     topic,
			Key:       sarama.StringEncoder(res.RunID),
			Value:     sarama.ByteEncoder(body),
			Timestamp: r.Timestamp,
		})
	}
	return msgs, nil
}
