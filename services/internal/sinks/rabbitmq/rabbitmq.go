// Package rabbitmq announces completed ETL runs on a topic exchange.
package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/02loveslollipop/smart-sensor-dashboard/services/internal/etl"
	"github.com/02loveslollipop/smart-sensor-dashboard/services/internal/models"
)

// Config holds the broker settings.
type Config struct {
	URL        string
	Exchange   string
	RoutingKey string
}

// RunCompleted is the message body published after each load.
type RunCompleted struct {
	RunID     string         `json:"run_id"`
	StartedAt time.Time      `json:"started_at"`
	Extracted int            `json:"extracted"`
	Loaded    int            `json:"loaded"`
	KPIs      models.RunKPIs `json:"kpis"`
}

// Channel is the subset of *amqp.Channel the sink publishes through.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RunSink publishes one RunCompleted message per run.
type RunSink struct {
	conn       *amqp.Connection
	channel    Channel
	exchange   string
	routingKey string
}

// New dials the broker and declares a durable topic exchange.
func New(cfg Config) (*RunSink, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	err = ch.ExchangeDeclare(
		cfg.Exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", cfg.Exchange, err)
	}

	sink := NewWithChannel(ch, cfg.Exchange, cfg.RoutingKey)
	sink.conn = conn
	return sink, nil
}

// NewWithChannel wraps an already declared channel.
func NewWithChannel(ch Channel, exchange, routingKey string) *RunSink {
	return &RunSink{channel: ch, exchange: exchange, routingKey: routingKey}
}

// Close closes the channel and its connection.
func (s *RunSink) Close() error {
	err := s.channel.Close()
	if s.conn != nil {
		if cerr := s.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func (s *RunSink) Name() string { return "rabbitmq" }

func (s *RunSink) Publish(ctx context.Context, res etl.Result) error {
	body, err := json.Marshal(RunCompleted{
		RunID:     res.RunID,
		StartedAt: res.StartedAt,
		Extracted: res.Extracted,
		Loaded:    len(res.Rows),
		KPIs:      res.KPIs,
	})
	if err != nil {
		return err
	}

	return s.channel.PublishWithContext(ctx,
		s.exchange,
		s.routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    res.RunID,
			Timestamp:    res.StartedAt,
			Body:         body,
		},
	)
}
