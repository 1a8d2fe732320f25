package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/02loveslollipop/smart-sensor-dashboard/services/api/config"
	httpserver "github.com/02loveslollipop/smart-sensor-dashboard/services/api/http"
	"github.com/02loveslollipop/smart-sensor-dashboard/services/internal/analytics"
	"github.com/02loveslollipop/smart-sensor-dashboard/services/internal/db"
	"github.com/02loveslollipop/smart-sensor-dashboard/services/internal/models"
)

const table = "sensor_data"

var day = time.Date(2025, 7, 13, 0, 0, 0, 0, time.UTC)

func testConfig() config.Config {
	return config.Config{
		DatabaseURL: db.MemoryURL,
		Table:       table,
		Port:        0,
		WSInterval:  20 * time.Millisecond,
		UptimeMode:  analytics.UptimeMax,
	}
}

func seededStore(t *testing.T) *db.MemoryStore {
	t.Helper()
	store := db.NewMemoryStore()
	rows := []models.AnnotatedReading{
		{Timestamp: day.Add(1 * time.Hour), Temperature: 60, Pressure: 1000, Uptime: 1, TemperatureAlert: models.AlertNormal, PressureAlert: models.AlertNormal},
		{Timestamp: day.Add(2 * time.Hour), Temperature: 95.555, Pressure: 1001, Uptime: 2, TemperatureAlert: models.AlertRed, PressureAlert: models.AlertYellow},
		{Timestamp: day.Add(3 * time.Hour), Temperature: 62, Pressure: 1150, Uptime: 3, TemperatureAlert: models.AlertNormal, PressureAlert: models.AlertRed},
		{Timestamp: day.Add(25 * time.Hour), Temperature: 58, Pressure: 990, Uptime: 25, TemperatureAlert: models.AlertNormal, PressureAlert: models.AlertNormal},
	}
	require.NoError(t, store.ReplaceTable(context.Background(), table, rows))
	return store
}

func get(t *testing.T, srv *httpserver.Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.Engine().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func TestKPIs(t *testing.T) {
	srv := httpserver.New(testConfig(), seededStore(t))

	rec := get(t, srv, "/api/kpis")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, httpserver.Version, rec.Header().Get("X-API-Version"))
	body := decode(t, rec)
	assert.EqualValues(t, 4, body["total_records"])
	assert.EqualValues(t, 2, body["alert_count"])
	assert.EqualValues(t, 25, body["uptime_hours"])
	assert.EqualValues(t, 100, body["data_quality_score"])
	assert.Nil(t, body["date_filter"])
	assert.NotEmpty(t, body["timestamp"])

	rec = get(t, srv, "/api/kpis?date=2025-07-13")
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode(t, rec)
	assert.EqualValues(t, 3, body["total_records"])
	assert.EqualValues(t, 3, body["uptime_hours"])
	assert.Equal(t, "2025-07-13", body["date_filter"])
	assert.InDelta(t, 72.52, body["avg_temp"], 1e-9)
}

func TestDateFilterErrors(t *testing.T) {
	srv := httpserver.New(testConfig(), seededStore(t))

	rec := get(t, srv, "/api/kpis?date=13-07-2025")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation", decode(t, rec)["stage"])

	rec = get(t, srv, "/api/trends?date=2024-01-01")
	require.Equal(t, http.StatusNotFound, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "no data found for date: 2024-01-01", body["error"])
	assert.Equal(t, "query", body["stage"])

	empty := httpserver.New(testConfig(), db.NewMemoryStore())
	rec = get(t, empty, "/api/kpis")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "run the ETL pipeline first")
}

func TestTrends(t *testing.T) {
	srv := httpserver.New(testConfig(), seededStore(t))

	rec := get(t, srv, "/api/trends?date=2025-07-13")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Timestamps   []string  `json:"timestamps"`
		Temperatures []float64 `json:"temperatures"`
		UptimeHours  []float64 `json:"uptime_hours"`
		RecordCount  int       `json:"record_count"`
		DateFilter   string    `json:"date_filter"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 3, body.RecordCount)
	require.Equal(t, []string{"2025-07-13 01:00:00", "2025-07-13 02:00:00", "2025-07-13 03:00:00"}, body.Timestamps)
	require.Equal(t, []float64{60, 95.56, 62}, body.Temperatures)
	require.Len(t, body.UptimeHours, 3)
	require.Equal(t, "2025-07-13", body.DateFilter)
}

func TestSummary(t *testing.T) {
	srv := httpserver.New(testConfig(), seededStore(t))

	rec := get(t, srv, "/api/summary")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	dateRange := body["date_range"].(map[string]any)
	assert.Equal(t, "2025-07-13 01:00:00", dateRange["start"])
	assert.Equal(t, "2025-07-14 01:00:00", dateRange["end"])
	alerts := body["alerts"].(map[string]any)
	assert.EqualValues(t, 1, alerts["temperature_alerts"])
	assert.EqualValues(t, 1, alerts["pressure_alerts"])
}

func TestReadings(t *testing.T) {
	srv := httpserver.New(testConfig(), seededStore(t))

	rec := get(t, srv, "/api/readings?limit=3")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	pagination := body["pagination"].(map[string]any)
	assert.EqualValues(t, 3, pagination["count"])
	assert.Equal(t, true, pagination["has_more"])

	rec = get(t, srv, "/api/readings?limit=3&page=2")
	require.Equal(t, http.StatusOK, rec.Code)
	pagination = decode(t, rec)["pagination"].(map[string]any)
	assert.EqualValues(t, 1, pagination["count"])
	assert.Equal(t, false, pagination["has_more"])

	rec = get(t, srv, "/api/readings?pressure_alert=yellow")
	require.Equal(t, http.StatusOK, rec.Code)
	data := decode(t, rec)["data"].([]any)
	require.Len(t, data, 1)
	assert.Equal(t, "red", data[0].(map[string]any)["temperature_alert"])

	rec = get(t, srv, "/api/readings?temperature_alert=yellow&pressure_alert=red")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode(t, rec)["data"])

	rec = get(t, srv, "/api/readings?date=2025-07-14&temperature_alert=red")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode(t, rec)["data"])

	rec = get(t, srv, "/api/readings?date=2025-07-20&temperature_alert=red")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = get(t, srv, "/api/readings?temperature_alert=orange")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDownload(t *testing.T) {
	srv := httpserver.New(testConfig(), seededStore(t))

	rec := get(t, srv, "/api/download?date=2025-07-14")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "sensor_data_2025-07-14.csv")
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[1], "2025-07-14 01:00:00,58,990,25,"))
}

type brokenStore struct{ *db.MemoryStore }

func (brokenStore) Ping(context.Context) error { return errors.New("connection refused") }

func TestHealth(t *testing.T) {
	rec := get(t, httpserver.New(testConfig(), seededStore(t)), "/api/health")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "healthy", body["status"])
	assert.EqualValues(t, 4, body["record_count"])
	assert.Equal(t, httpserver.Version, body["version"])

	rec = get(t, httpserver.New(testConfig(), db.NewMemoryStore()), "/api/health")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, decode(t, rec)["record_count"])

	rec = get(t, httpserver.New(testConfig(), brokenStore{db.NewMemoryStore()}), "/api/health")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "unhealthy", decode(t, rec)["status"])

	rec = get(t, httpserver.New(testConfig(), db.NewMemoryStore()), "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestDashboard(t *testing.T) {
	srv := httpserver.New(testConfig(), seededStore(t))

	rec := get(t, srv, "/")
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "/dashboard", rec.Header().Get("Location"))

	rec = get(t, srv, "/dashboard?date=2025-07-13")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "72.52 &deg;C")
	assert.Contains(t, rec.Body.String(), `value="2025-07-13"`)

	rec = get(t, srv, "/dashboard?date=bogus")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "use YYYY-MM-DD format")
}

func TestCORSPreflight(t *testing.T) {
	srv := httpserver.New(testConfig(), db.NewMemoryStore())
	rec := httptest.NewRecorder()
	srv.Engine().ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/kpis", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestLiveData(t *testing.T) {
	srv := httpserver.New(testConfig(), seededStore(t))
	ts := httptest.NewServer(srv.Engine())
	t.Cleanup(ts.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws/data", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg struct {
		Type      string         `json:"type"`
		KPIs      models.RunKPIs `json:"kpis"`
		Timestamp string         `json:"timestamp"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, "update", msg.Type)
	require.Equal(t, 4, msg.KPIs.TotalRecords)
	require.NotEmpty(t, msg.Timestamp)
}
