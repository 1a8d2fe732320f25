package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/02loveslollipop/smart-sensor-dashboard/services/internal/analytics"
	"github.com/02loveslollipop/smart-sensor-dashboard/services/internal/csvio"
	"github.com/02loveslollipop/smart-sensor-dashboard/services/internal/models"
)

const (
	defaultReadingsLimit = 100
	maxReadingsLimit     = 1000
)

// datasetView is everything the dashboard derives from one filtered dataset.
type datasetView struct {
	KPIs  models.RunKPIs     `json:"kpis"`
	Trend models.TrendSeries `json:"trends"`
	Start string             `json:"start"`
	End   string             `json:"end"`
}

type kpiResponse struct {
	models.RunKPIs
	DateFilter *string `json:"date_filter"`
	Timestamp  string  `json:"timestamp"`
}

type trendResponse struct {
	models.TrendSeries
	DateFilter *string `json:"date_filter"`
}

func dateFilter(c *gin.Context) *string {
	if date := c.Query("date"); date != "" {
		return &date
	}
	return nil
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// loadView reads the dataset for date and derives KPIs and trends, using the
// cache when one is configured. Cache failures only cost a recomputation.
func (s *Server) loadView(ctx context.Context, date string) (datasetView, error) {
	var view datasetView
	day, err := analytics.ParseDate(date)
	if err != nil {
		return view, err
	}

	key := "view:all"
	if day != nil {
		key = "view:" + date
	}
	hit, err := s.cache.GetJSON(ctx, key, &view)
	if err != nil {
		s.log.Warn("cache read", "key", key, "err", err)
	} else if hit {
		return view, nil
	}

	rows, err := analytics.Fetch(ctx, s.store, s.cfg.Table, models.ReadingQuery{Day: day})
	if err != nil {
		return view, err
	}

	view = datasetView{
		KPIs:  s.summary.ComputeKPIs(rows),
		Trend: analytics.PrepareTrend(rows),
	}
	if len(rows) > 0 {
		view.Start = rows[0].Timestamp.Format(csvio.TimestampLayout)
		view.End = rows[len(rows)-1].Timestamp.Format(csvio.TimestampLayout)
	}

	if err := s.cache.SetJSON(ctx, key, view); err != nil {
		s.log.Warn("cache write", "key", key, "err", err)
	}
	return view, nil
}

// handleKPIs returns indicators for the whole table or one day
// GET /api/kpis?date=2025-07-13
func (s *Server) handleKPIs(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	view, err := s.loadView(ctx, c.Query("date"))
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, kpiResponse{RunKPIs: view.KPIs, DateFilter: dateFilter(c), Timestamp: now()})
}

// handleTrends returns chart series
// GET /api/trends?date=2025-07-13
func (s *Server) handleTrends(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	view, err := s.loadView(ctx, c.Query("date"))
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, trendResponse{TrendSeries: view.Trend, DateFilter: dateFilter(c)})
}

// handleSummary returns KPIs, trends and the covered time range for the whole table
// GET /api/summary
func (s *Server) handleSummary(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()

	view, err := s.loadView(ctx, "")
	if err != nil {
		s.respondError(c, err)
		return
	}

	totals, err := s.store.Summary(ctx, s.cfg.Table)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"kpis":   view.KPIs,
		"trends": view.Trend,
		"date_range": gin.H{
			"start": view.Start,
			"end":   view.End,
		},
		"alerts": gin.H{
			"temperature_alerts": totals.TemperatureAlert,
			"pressure_alerts":    totals.PressureAlert,
		},
		"timestamp": now(),
	})
}

// handleReadings returns annotated rows page by page
// GET /api/readings?date=2025-07-13&temperature_alert=red&pressure_alert=yellow&page=1&limit=100
func (s *Server) handleReadings(c *gin.Context) {
	page := 1
	if p := c.Query("page"); p != "" {
		if val, err := strconv.Atoi(p); err == nil && val > 0 {
			page = val
		}
	}

	limit := defaultReadingsLimit
	if l := c.Query("limit"); l != "" {
		if val, err := strconv.Atoi(l); err == nil && val > 0 && val <= maxReadingsLimit {
			limit = val
		}
	}

	day, err := analytics.ParseDate(c.Query("date"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	tempAlert, err := analytics.ParseAlert("temperature_alert", c.Query("temperature_alert"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	pressureAlert, err := analytics.ParseAlert("pressure_alert", c.Query("pressure_alert"))
	if err != nil {
		s.respondError(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()

	// One extra row tells whether another page follows.
	rows, err := analytics.Fetch(ctx, s.store, s.cfg.Table, models.ReadingQuery{
		Day:              day,
		TemperatureAlert: tempAlert,
		PressureAlert:    pressureAlert,
		Limit:            limit + 1,
		Offset:           (page - 1) * limit,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}

	hasMore := len(rows) > limit
	if hasMore {
		rows = rows[:limit]
	}

	c.JSON(http.StatusOK, gin.H{
		"data": rows,
		"pagination": gin.H{
			"page":     page,
			"limit":    limit,
			"count":    len(rows),
			"has_more": hasMore,
		},
	})
}

// handleDownload streams the annotated dataset as CSV
// GET /api/download?date=2025-07-13
func (s *Server) handleDownload(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	date := c.Query("date")
	rows, err := analytics.FetchByDate(ctx, s.store, s.cfg.Table, date)
	if err != nil {
		s.respondError(c, err)
		return
	}

	name := "sensor_data_all.csv"
	if date != "" {
		name = "sensor_data_" + date + ".csv"
	}
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Status(http.StatusOK)
	if err := csvio.WriteAnnotated(c.Writer, rows); err != nil {
		s.log.Error("write csv download", "err", err)
	}
}

// handleHealth reports database connectivity and the stored row count
// GET /api/health
func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	unhealthy := func(err error) {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":    "unhealthy",
			"database":  "disconnected",
			"error":     err.Error(),
			"timestamp": now(),
			"version":   Version,
		})
	}

	if err := s.store.Ping(ctx); err != nil {
		unhealthy(err)
		return
	}

	var count int64
	exists, err := s.store.TableExists(ctx, s.cfg.Table)
	if err == nil && exists {
		count, err = s.store.CountRows(ctx, s.cfg.Table)
	}
	if err != nil {
		unhealthy(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":       "healthy",
		"database":     "connected",
		"record_count": count,
		"timestamp":    now(),
		"version":      Version,
	})
}
