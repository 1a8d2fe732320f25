package http

import (
	"context"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/02loveslollipop/smart-sensor-dashboard/services/api/config"
	"github.com/02loveslollipop/smart-sensor-dashboard/services/internal/analytics"
	"github.com/02loveslollipop/smart-sensor-dashboard/services/internal/cache"
	"github.com/02loveslollipop/smart-sensor-dashboard/services/internal/errs"
	"github.com/02loveslollipop/smart-sensor-dashboard/services/internal/models"
)

// Version is reported by the health endpoint and the X-API-Version header.
const Version = "2.0.0"

// Store is the storage surface the API reads from.
type Store interface {
	analytics.Reader
	CountRows(ctx context.Context, table string) (int64, error)
	Summary(ctx context.Context, table string) (models.DataSummary, error)
	Ping(ctx context.Context) error
}

// Server bundles router and dependencies for the dashboard API.
type Server struct {
	cfg     config.Config
	store   Store
	cache   *cache.Cache
	summary analytics.Summarizer
	log     *slog.Logger
	engine  *gin.Engine
}

// Option customizes a Server.
type Option func(*Server)

// WithCache serves KPI and trend views from redis when possible.
func WithCache(c *cache.Cache) Option {
	return func(s *Server) { s.cache = c }
}

// WithLogger sets the logger used for handler errors.
func WithLogger(log *slog.Logger) Option {
	return func(s *Server) { s.log = log }
}

// New constructs a server with routes and middleware.
func New(cfg config.Config, store Store, opts ...Option) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(gin.Logger())
	engine.Use(corsMiddleware())
	engine.SetHTMLTemplate(template.Must(template.New("").Funcs(templateFuncs).ParseFS(templateFS, "templates/*.html")))

	server := &Server{
		cfg:     cfg,
		store:   store,
		summary: analytics.Summarizer{Uptime: cfg.UptimeMode},
		log:     slog.Default(),
		engine:  engine,
	}
	for _, opt := range opts {
		opt(server)
	}
	server.registerRoutes()
	return server
}

// Engine exposes the underlying gin engine (for tests).
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Run starts the HTTP server and blocks until shutdown.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.ListenAddr(),
		Handler: s.engine,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func apiVersionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-API-Version", Version)
		c.Next()
	}
}

// respondError writes {"error", "stage"} with the status matching the error kind.
func (s *Server) respondError(c *gin.Context, err error) {
	status := errs.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", "path", c.FullPath(), "stage", errs.Stage(err), "err", err)
	}
	c.JSON(status, gin.H{"error": err.Error(), "stage": errs.Stage(err)})
}
