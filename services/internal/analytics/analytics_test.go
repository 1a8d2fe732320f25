package analytics_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/02loveslollipop/smart-sensor-dashboard/services/internal/analytics"
	"github.com/02loveslollipop/smart-sensor-dashboard/services/internal/db"
	"github.com/02loveslollipop/smart-sensor-dashboard/services/internal/errs"
	"github.com/02loveslollipop/smart-sensor-dashboard/services/internal/models"
)

const table = "sensor_data"

var base = time.Date(2025, 7, 13, 0, 0, 0, 0, time.UTC)

func sample() []models.AnnotatedReading {
	return []models.AnnotatedReading{
		{Timestamp: base, Temperature: 20.004, Pressure: 1000.126, Uptime: 1.5, TemperatureAlert: models.AlertRed, PressureAlert: models.AlertRed},
		{Timestamp: base.Add(time.Hour), Temperature: 30, Pressure: 1010, Uptime: 7.9, TemperatureAlert: models.AlertNormal, PressureAlert: models.AlertYellow},
		{Timestamp: base.Add(2 * time.Hour), Temperature: 40, Pressure: 990, Uptime: 3, TemperatureAlert: models.AlertNormal, PressureAlert: models.AlertRed},
	}
}

func TestComputeKPIs(t *testing.T) {
	kpis := analytics.ComputeKPIs(sample())

	assert.InDelta(t, 30.0, kpis.AvgTemp, 1e-9)
	assert.InDelta(t, 1000.04, kpis.AvgPressure, 1e-9)
	// Row 0 alerts on both metrics and counts twice.
	assert.Equal(t, 3, kpis.AlertCount)
	assert.Equal(t, 7.0, kpis.UptimeHours)
	assert.Equal(t, 3, kpis.TotalRecords)
	assert.Equal(t, 100.0, kpis.DataQualityScore)
	assert.Equal(t, models.Range{Min: 20, Max: 40}, kpis.TemperatureRange)
	assert.Equal(t, models.Range{Min: 990, Max: 1010}, kpis.PressureRange)
}

func TestComputeKPIsUptimeSum(t *testing.T) {
	kpis := analytics.Summarizer{Uptime: analytics.UptimeSum}.ComputeKPIs(sample())
	assert.Equal(t, 12.0, kpis.UptimeHours)
}

func TestComputeKPIsIsIdempotent(t *testing.T) {
	rows := sample()
	first := analytics.ComputeKPIs(rows)
	second := analytics.ComputeKPIs(rows)
	require.Equal(t, first, second)
	require.Equal(t, sample(), rows)
}

func TestComputeKPIsEmpty(t *testing.T) {
	require.Equal(t, models.RunKPIs{}, analytics.ComputeKPIs(nil))
}

func TestParseUptimeMode(t *testing.T) {
	mode, err := analytics.ParseUptimeMode("")
	require.NoError(t, err)
	require.Equal(t, analytics.UptimeMax, mode)

	mode, err = analytics.ParseUptimeMode("SUM")
	require.NoError(t, err)
	require.Equal(t, analytics.UptimeSum, mode)

	_, err = analytics.ParseUptimeMode("avg")
	require.Error(t, err)
}

func TestPrepareTrend(t *testing.T) {
	rows := sample()
	rows = append(rows, models.AnnotatedReading{Temperature: 1.005, Pressure: 2, Uptime: 0.333})

	trend := analytics.PrepareTrend(rows)

	require.Equal(t, 4, trend.RecordCount)
	require.Equal(t, []string{
		"2025-07-13 00:00:00",
		"2025-07-13 01:00:00",
		"2025-07-13 02:00:00",
		analytics.UnknownTimestamp,
	}, trend.Timestamps)
	require.Equal(t, []float64{20, 30, 40, 1}, trend.Temperatures)
	require.Equal(t, []float64{1000.13, 1010, 990, 2}, trend.Pressures)
	require.Equal(t, []float64{1.5, 7.9, 3, 0.333}, trend.UptimeHours)
}

func TestRound2(t *testing.T) {
	cases := map[float64]float64{
		2.675:   2.67, // stored as 2.67499...
		1.005:   1,    // stored as 1.00499...
		0.125:   0.12, // exact tie goes to even
		0.375:   0.38,
		-2.675:  -2.67,
		1000.13: 1000.13,
		61.2345: 61.23,
		99.999:  100,
	}
	for in, want := range cases {
		assert.Equal(t, want, analytics.Round2(in), "Round2(%v)", in)
		assert.Equal(t, want, analytics.Round2(analytics.Round2(in)), "Round2 twice (%v)", in)
	}
}

func TestPrepareTrendEmpty(t *testing.T) {
	trend := analytics.PrepareTrend(nil)
	require.Equal(t, 0, trend.RecordCount)
	require.NotNil(t, trend.Timestamps)
	require.Empty(t, trend.Timestamps)
	require.Empty(t, trend.Temperatures)
	require.Empty(t, trend.Pressures)
	require.Empty(t, trend.UptimeHours)
}

func TestParseDate(t *testing.T) {
	day, err := analytics.ParseDate("2025-07-13")
	require.NoError(t, err)
	require.Equal(t, base, *day)

	day, err = analytics.ParseDate("")
	require.NoError(t, err)
	require.Nil(t, day)

	for _, bad := range []string{"2025-7-13", "13-07-2025", "2025-02-30", "yesterday", "2025-07-13T00:00:00Z"} {
		_, err := analytics.ParseDate(bad)
		var validErr *errs.ValidationError
		require.True(t, errors.As(err, &validErr), bad)
	}
}

func TestParseAlert(t *testing.T) {
	level, err := analytics.ParseAlert("pressure_alert", "yellow")
	require.NoError(t, err)
	require.Equal(t, models.AlertYellow, level)

	_, err = analytics.ParseAlert("pressure_alert", "orange")
	require.Error(t, err)
}

// countingReader records every storage call.
type countingReader struct{ calls int }

func (c *countingReader) TableExists(context.Context, string) (bool, error) {
	c.calls++
	return true, nil
}

func (c *countingReader) Query(context.Context, string, models.ReadingQuery) ([]models.AnnotatedReading, error) {
	c.calls++
	return nil, nil
}

func TestFetchRejectsBadDateBeforeQuerying(t *testing.T) {
	reader := &countingReader{}
	_, err := analytics.FetchByDate(context.Background(), reader, table, "2025/07/13")
	require.Equal(t, 400, errs.HTTPStatus(err))
	require.Zero(t, reader.calls)
}

func TestFetchDistinguishesEmptyOutcomes(t *testing.T) {
	ctx := context.Background()
	store := db.NewMemoryStore()

	_, err := analytics.FetchByDate(ctx, store, table, "")
	var notFound *errs.NotFoundError
	require.True(t, errors.As(err, &notFound))
	require.Equal(t, errs.NotFoundNeverRan, notFound.Kind)

	_, err = analytics.FetchByDate(ctx, store, table, "2025-07-13")
	require.True(t, errors.As(err, &notFound))
	require.Equal(t, errs.NotFoundNeverRan, notFound.Kind)

	require.NoError(t, store.ReplaceTable(ctx, table, sample()))

	rows, err := analytics.FetchByDate(ctx, store, table, "2025-07-13")
	require.NoError(t, err)
	require.Len(t, rows, 3)

	_, err = analytics.FetchByDate(ctx, store, table, "2025-07-14")
	require.True(t, errors.As(err, &notFound))
	require.Equal(t, errs.NotFoundForDate, notFound.Kind)
	require.Equal(t, "2025-07-14", notFound.Date)
}

func TestFetchEmptyTableIsNeverRan(t *testing.T) {
	ctx := context.Background()
	store := db.NewMemoryStore()
	require.NoError(t, store.ReplaceTable(ctx, table, nil))

	_, err := analytics.Fetch(ctx, store, table, models.ReadingQuery{})
	var notFound *errs.NotFoundError
	require.True(t, errors.As(err, &notFound))
	require.Equal(t, errs.NotFoundNeverRan, notFound.Kind)
}

func TestFetchAlertFilterMayBeEmpty(t *testing.T) {
	ctx := context.Background()
	store := db.NewMemoryStore()
	rows := sample()
	rows[0].TemperatureAlert = models.AlertNormal
	require.NoError(t, store.ReplaceTable(ctx, table, rows))

	got, err := analytics.Fetch(ctx, store, table, models.ReadingQuery{TemperatureAlert: models.AlertRed})
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestFetchDayWithAlertFilter(t *testing.T) {
	ctx := context.Background()
	store := db.NewMemoryStore()
	require.NoError(t, store.ReplaceTable(ctx, table, []models.AnnotatedReading{
		{Timestamp: base.Add(time.Hour), Temperature: 30, Pressure: 1000, Uptime: 1, TemperatureAlert: models.AlertNormal, PressureAlert: models.AlertNormal},
	}))

	day := base
	got, err := analytics.Fetch(ctx, store, table, models.ReadingQuery{Day: &day, TemperatureAlert: models.AlertRed})
	require.NoError(t, err)
	require.Empty(t, got)

	got, err = analytics.Fetch(ctx, store, table, models.ReadingQuery{Day: &day, PressureAlert: models.AlertYellow})
	require.NoError(t, err)
	require.Empty(t, got)

	other := base.AddDate(0, 0, 1)
	_, err = analytics.Fetch(ctx, store, table, models.ReadingQuery{Day: &other, TemperatureAlert: models.AlertRed})
	var notFound *errs.NotFoundError
	require.ErrorAs(t, err, &notFound)
	require.Equal(t, errs.NotFoundForDate, notFound.Kind)
	require.Equal(t, "2025-07-14", notFound.Date)
}
