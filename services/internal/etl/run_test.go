package etl_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/02loveslollipop/smart-sensor-dashboard/services/internal/analytics"
	"github.com/02loveslollipop/smart-sensor-dashboard/services/internal/db"
	"github.com/02loveslollipop/smart-sensor-dashboard/services/internal/etl"
	"github.com/02loveslollipop/smart-sensor-dashboard/services/internal/models"
)

const table = "sensor_data"

type MockWriter struct {
	mock.Mock
}

func (m *MockWriter) ReplaceTable(_ context.Context, table string, rows []models.AnnotatedReading) error {
	return m.Called(table, len(rows)).Error(0)
}

func (m *MockWriter) EnsureIndex(_ context.Context, table, column string) error {
	return m.Called(table, column).Error(0)
}

func (m *MockWriter) EnablePartitioning(_ context.Context, table, column string) error {
	return m.Called(table, column).Error(0)
}

type MockSink struct {
	mock.Mock
}

func (m *MockSink) Name() string { return "mock" }

func (m *MockSink) Publish(_ context.Context, res etl.Result) error {
	return m.Called(len(res.Rows)).Error(0)
}

func annotated(t *testing.T, n int) []models.AnnotatedReading {
	t.Helper()
	raw, err := etl.GenerateSynthetic(n, start, seeded(11))
	require.NoError(t, err)
	rows, _ := etl.NewTransformer().Transform(raw)
	require.NotEmpty(t, rows)
	return rows
}

func TestLoadEmptyDataset(t *testing.T) {
	w := new(MockWriter)
	err := (&etl.Loader{Store: w, Table: table}).Load(context.Background(), nil)
	require.ErrorIs(t, err, etl.ErrEmptyDataset)
	w.AssertNotCalled(t, "ReplaceTable", mock.Anything, mock.Anything)
}

func TestLoadCreatesIndexes(t *testing.T) {
	store := db.NewMemoryStore()
	require.NoError(t, (&etl.Loader{Store: store, Table: table}).Load(context.Background(), annotated(t, 20)))
	require.Equal(t, etl.IndexedColumns, store.Indexes(table))
}

func TestLoadReplaceFailure(t *testing.T) {
	w := new(MockWriter)
	boom := errors.New("connection reset")
	w.On("ReplaceTable", table, 20).Return(boom)

	err := (&etl.Loader{Store: w, Table: table}).Load(context.Background(), annotated(t, 20))
	require.ErrorIs(t, err, boom)
	w.AssertNotCalled(t, "EnsureIndex", mock.Anything, mock.Anything)
}

func TestLoadIndexAndPartitionFailuresAreNotFatal(t *testing.T) {
	w := new(MockWriter)
	w.On("ReplaceTable", table, mock.Anything).Return(nil)
	w.On("EnablePartitioning", table, "timestamp").Return(errors.New("permission denied"))
	w.On("EnsureIndex", table, mock.Anything).Return(errors.New("disk full"))

	err := (&etl.Loader{Store: w, Table: table}).Load(context.Background(), annotated(t, 20))
	require.NoError(t, err)
	w.AssertNumberOfCalls(t, "EnsureIndex", len(etl.IndexedColumns))
}

func newRunner(t *testing.T, store *db.MemoryStore, sinks ...etl.Sink) *etl.Runner {
	return &etl.Runner{
		Extractor: &etl.Extractor{
			SourcePath: filepath.Join(t.TempDir(), "sensor_data.csv"),
			Rand:       seeded(5),
		},
		Transformer: etl.NewTransformer(),
		Loader:      &etl.Loader{Store: store, Table: table},
		Summary:     store,
		Sinks:       sinks,
	}
}

func TestRunEndToEnd(t *testing.T) {
	ctx := context.Background()
	store := db.NewMemoryStore()

	res, err := newRunner(t, store).Run(ctx, 100)
	require.NoError(t, err)
	require.True(t, res.Loaded)
	require.NotEmpty(t, res.RunID)
	require.Equal(t, 100, res.Extracted)
	require.Equal(t, len(res.Rows), res.KPIs.TotalRecords)

	stored, err := analytics.Fetch(ctx, store, table, models.ReadingQuery{})
	require.NoError(t, err)
	require.Len(t, stored, res.KPIs.TotalRecords)

	// Rereading the stored rows reproduces the run's alert count.
	require.Equal(t, res.KPIs.AlertCount, analytics.ComputeKPIs(stored).AlertCount)
}

func TestRunSinkFailureIsNotFatal(t *testing.T) {
	failing := new(MockSink)
	failing.On("Publish", mock.Anything).Return(errors.New("broker down"))
	ok := new(MockSink)
	ok.On("Publish", mock.Anything).Return(nil)

	res, err := newRunner(t, db.NewMemoryStore(), failing, ok).Run(context.Background(), 30)
	require.NoError(t, err)
	require.True(t, res.Loaded)
	failing.AssertNumberOfCalls(t, "Publish", 1)
	ok.AssertNumberOfCalls(t, "Publish", 1)
}

func TestRunLoadFailureSkipsSinks(t *testing.T) {
	w := new(MockWriter)
	w.On("ReplaceTable", table, mock.Anything).Return(errors.New("read-only transaction"))
	sink := new(MockSink)

	r := newRunner(t, db.NewMemoryStore(), sink)
	r.Loader.Store = w
	r.Summary = nil

	res, err := r.Run(context.Background(), 30)
	require.Error(t, err)
	require.False(t, res.Loaded)
	require.NotEmpty(t, res.Rows)
	sink.AssertNotCalled(t, "Publish", mock.Anything)
}

func TestRunExtractionFailure(t *testing.T) {
	_, err := newRunner(t, db.NewMemoryStore()).Run(context.Background(), 0)
	require.Error(t, err)
}
