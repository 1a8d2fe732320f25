package http

import (
	"context"
	"embed"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/02loveslollipop/smart-sensor-dashboard/services/internal/csvio"
	"github.com/02loveslollipop/smart-sensor-dashboard/services/internal/errs"
)

//go:embed templates/*.html
var templateFS embed.FS

var templateFuncs = template.FuncMap{
	"fixed2": func(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) },
}

// handleDashboard renders the HTML dashboard. Errors still render the page,
// with the message in place of the charts and the matching status code.
// GET /dashboard?date=2025-07-13
func (s *Server) handleDashboard(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()

	date := c.Query("date")
	data := gin.H{
		"DateFilter":  date,
		"CurrentTime": time.Now().UTC().Format(csvio.TimestampLayout),
		"Version":     Version,
	}

	view, err := s.loadView(ctx, date)
	if err != nil {
		data["Error"] = err.Error()
		data["Stage"] = errs.Stage(err)
		if errs.HTTPStatus(err) >= http.StatusInternalServerError {
			s.log.Error("render dashboard", "err", err)
		}
		c.HTML(errs.HTTPStatus(err), "dashboard.html", data)
		return
	}

	data["KPIs"] = view.KPIs
	data["Trend"] = view.Trend
	c.HTML(http.StatusOK, "dashboard.html", data)
}
