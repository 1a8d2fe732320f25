package kafka_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/Shopify/sarama"
	"github.com/Shopify/sarama/mocks"
	"github.com/stretchr/testify/require"

	"github.com/02loveslollipop/smart-sensor-dashboard/services/internal/etl"
	"github.com/02loveslollipop/smart-sensor-dashboard/services/internal/models"
	"github.com/02loveslollipop/smart-sensor-dashboard/services/internal/sinks/kafka"
)

const topic = "sensor-alerts"

func result() etl.Result {
	ts := time.Date(2025, 7, 13, 4, 0, 0, 0, time.UTC)
	return etl.Result{
		RunID: "run-9",
		Rows: []models.AnnotatedReading{
			{Timestamp: ts, Temperature: 95, Pressure: 1000, TemperatureAlert: models.AlertRed, PressureAlert: models.AlertNormal},
			{Timestamp: ts.Add(time.Hour), Temperature: 60, Pressure: 1005, TemperatureAlert: models.AlertNormal, PressureAlert: models.AlertYellow},
			{Timestamp: ts.Add(2 * time.Hour), Temperature: 61, Pressure: 1150, TemperatureAlert: models.AlertNormal, PressureAlert: models.AlertRed},
		},
	}
}

func TestMessagesSelectRedAlerts(t *testing.T) {
	msgs, err := kafka.Messages(topic, result())
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	key, err := msgs[0].Key.Encode()
	require.NoError(t, err)
	require.Equal(t, "run-9", string(key))

	raw, err := msgs[1].Value.Encode()
	require.NoError(t, err)
	var event kafka.AlertEvent
	require.NoError(t, json.Unmarshal(raw, &event))
	require.Equal(t, "2025-07-13 06:00:00", event.Timestamp)
	require.Equal(t, models.AlertRed, event.PressureAlert)
	require.Equal(t, 1150.0, event.Pressure)
}

func TestAlertSinkPublish(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndSucceed()
	producer.ExpectSendMessageAndSucceed()

	sink := kafka.NewWithProducer(producer, topic)
	require.Equal(t, "kafka", sink.Name())
	require.NoError(t, sink.Publish(context.Background(), result()))
	require.NoError(t, sink.Close())
}

func TestAlertSinkPublishFailure(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	sink := kafka.NewWithProducer(producer, topic)
	res := result()
	res.Rows = res.Rows[:1]

	err := sink.Publish(context.Background(), res)
	require.Error(t, err)
	require.NoError(t, sink.Close())
}

func TestAlertSinkSkipsQuietRuns(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	sink := kafka.NewWithProducer(producer, topic)

	res := result()
	res.Rows = res.Rows[1:2]
	require.NoError(t, sink.Publish(context.Background(), res))
	require.NoError(t, sink.Close())
}
