package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/02loveslollipop/smart-sensor-dashboard/services/internal/analytics"
)

// Config holds environment-driven settings for the dashboard API.
type Config struct {
	DatabaseURL string
	Table       string
	Port        int
	WSInterval  time.Duration
	RedisAddr   string
	RedisDB     int
	CacheTTL    time.Duration
	UptimeMode  analytics.UptimeMode
	LogLevel    string
	// SeedRows is the synthetic batch size loaded at startup in memory mode.
	SeedRows int
}

// Load reads configuration from environment variables (optionally .env).
func Load() (Config, error) {
	_ = godotenv.Load() // ignore missing file

	cfg := Config{
		Table:      "sensor_data",
		Port:       8080,
		WSInterval: 30 * time.Second,
		CacheTTL:   30 * time.Second,
		UptimeMode: analytics.UptimeMax,
		LogLevel:   "info",
		SeedRows:   100,
	}

	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if cfg.DatabaseURL == "" {
		return cfg, errors.New("DATABASE_URL is required")
	}

	if table := strings.TrimSpace(os.Getenv("SENSOR_TABLE")); table != "" {
		cfg.Table = table
	}

	if portStr := os.Getenv("PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil && port > 0 {
			cfg.Port = port
		} else {
			return cfg, fmt.Errorf("invalid PORT: %s", portStr)
		}
	} else if portStr := os.Getenv("API_PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil && port > 0 {
			cfg.Port = port
		} else {
			return cfg, fmt.Errorf("invalid API_PORT: %s", portStr)
		}
	}

	if v := strings.TrimSpace(os.Getenv("WS_INTERVAL")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return cfg, fmt.Errorf("invalid WS_INTERVAL: %s", v)
		}
		cfg.WSInterval = d
	}

	cfg.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if v := strings.TrimSpace(os.Getenv("REDIS_DB")); v != "" {
		db, err := strconv.Atoi(v)
		if err != nil || db < 0 {
			return cfg, fmt.Errorf("invalid REDIS_DB: %s", v)
		}
		cfg.RedisDB = db
	}

	if v := strings.TrimSpace(os.Getenv("CACHE_TTL")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return cfg, fmt.Errorf("invalid CACHE_TTL: %s", v)
		}
		cfg.CacheTTL = d
	}

	mode, err := analytics.ParseUptimeMode(os.Getenv("UPTIME_MODE"))
	if err != nil {
		return cfg, fmt.Errorf("invalid UPTIME_MODE: %w", err)
	}
	cfg.UptimeMode = mode

	if v := strings.TrimSpace(os.Getenv("LOG_LEVEL")); v != "" {
		cfg.LogLevel = v
	}

	if v := strings.TrimSpace(os.Getenv("ETL_NUM_ROWS")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return cfg, fmt.Errorf("invalid ETL_NUM_ROWS: %s", v)
		}
		cfg.SeedRows = n
	}

	return cfg, nil
}

// ListenAddr returns the host:port string for the HTTP server.
func (c Config) ListenAddr() string {
	return fmt.Sprintf(":%d", c.Port)
}
