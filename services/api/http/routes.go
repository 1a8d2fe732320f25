package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// registerRoutes sets up the dashboard, the JSON API and the live feed.
func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	s.engine.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusFound, "/dashboard")
	})
	s.engine.GET("/dashboard", s.handleDashboard)

	api := s.engine.Group("/api")
	api.Use(apiVersionMiddleware())
	{
		api.GET("/health", s.handleHealth)
		api.GET("/kpis", s.handleKPIs)
		api.GET("/trends", s.handleTrends)
		api.GET("/summary", s.handleSummary)
		api.GET("/readings", s.handleReadings)
		api.GET("/download", s.handleDownload)
	}

	s.engine.GET("/ws/data", s.handleLiveData)
}
