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
	"github.com/02loveslollipop/smart-sensor-dashboard/services/internal/etl"
	"github.com/02loveslollipop/smart-sensor-dashboard/services/internal/sinks/archive"
	"github.com/02loveslollipop/smart-sensor-dashboard/services/internal/sinks/influx"
	"github.com/02loveslollipop/smart-sensor-dashboard/services/internal/sinks/kafka"
	"github.com/02loveslollipop/smart-sensor-dashboard/services/internal/sinks/rabbitmq"
)

const (
	defaultTable         = "sensor_data"
	defaultDataPath      = "data/simulated_raw.csv"
	defaultProcessedPath = "data/simulated_processed.csv"
	defaultNumRows       = 100
	defaultTimeout       = 5 * time.Minute
	defaultAlertTopic    = "sensor-alerts"
	defaultRoutingKey    = "etl.run.completed"
)

// Config holds runtime configuration for the ETL service.
type Config struct {
	DatabaseURL   string
	Table         string
	DataPath      string
	ProcessedPath string
	NumRows       int
	Strict        bool
	Thresholds    etl.Thresholds
	UptimeMode    analytics.UptimeMode
	Timeout       time.Duration
	LogLevel      string

	// Optional sinks; a zero value disables the sink.
	S3        archive.ObjectConfig
	Influx    influx.Config
	Kafka     kafka.Config
	RabbitMQ  rabbitmq.Config
	RedisAddr string
	RedisDB   int
}

// Load reads configuration from environment variables (optionally .env).
// args are the positional command-line arguments; the first one, when
// present, overrides ETL_NUM_ROWS.
func Load(args []string) (Config, error) {
	_ = godotenv.Load(".env")

	cfg := Config{
		Table:         defaultTable,
		DataPath:      defaultDataPath,
		ProcessedPath: defaultProcessedPath,
		NumRows:       defaultNumRows,
		Timeout:       defaultTimeout,
		LogLevel:      "info",
	}

	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if cfg.DatabaseURL == "" {
		return cfg, errors.New("DATABASE_URL is required")
	}

	if v := strings.TrimSpace(os.Getenv("SENSOR_TABLE")); v != "" {
		cfg.Table = v
	}
	if v := strings.TrimSpace(os.Getenv("DATA_PATH")); v != "" {
		cfg.DataPath = v
	}
	if v := strings.TrimSpace(os.Getenv("PROCESSED_DATA_PATH")); v != "" {
		cfg.ProcessedPath = v
	}

	if v := strings.TrimSpace(os.Getenv("ETL_NUM_ROWS")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return cfg, fmt.Errorf("invalid ETL_NUM_ROWS: %s", v)
		}
		cfg.NumRows = n
	}
	if len(args) > 0 {
		n, err := strconv.Atoi(strings.TrimSpace(args[0]))
		if err != nil || n <= 0 {
			return cfg, fmt.Errorf("invalid row count argument: %s", args[0])
		}
		cfg.NumRows = n
	}

	strict := strings.TrimSpace(os.Getenv("ETL_STRICT_SOURCE"))
	cfg.Strict = strict == "1" || strings.EqualFold(strict, "true")

	thresholds, err := etl.LoadThresholds(strings.TrimSpace(os.Getenv("THRESHOLDS_FILE")))
	if err != nil {
		return cfg, fmt.Errorf("invalid THRESHOLDS_FILE: %w", err)
	}
	cfg.Thresholds = thresholds

	mode, err := analytics.ParseUptimeMode(os.Getenv("UPTIME_MODE"))
	if err != nil {
		return cfg, fmt.Errorf("invalid UPTIME_MODE: %w", err)
	}
	cfg.UptimeMode = mode

	if v := strings.TrimSpace(os.Getenv("ETL_TIMEOUT")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return cfg, fmt.Errorf("invalid ETL_TIMEOUT: %s", v)
		}
		cfg.Timeout = d
	}

	if v := strings.TrimSpace(os.Getenv("LOG_LEVEL")); v != "" {
		cfg.LogLevel = v
	}

	cfg.S3 = archive.ObjectConfig{
		Endpoint:  strings.TrimSpace(os.Getenv("S3_ENDPOINT")),
		Bucket:    strings.TrimSpace(os.Getenv("S3_BUCKET")),
		AccessKey: os.Getenv("S3_ACCESS_KEY"),
		SecretKey: os.Getenv("S3_SECRET_KEY"),
	}
	secure := strings.TrimSpace(os.Getenv("S3_SECURE"))
	cfg.S3.Secure = secure == "1" || strings.EqualFold(secure, "true")
	if cfg.S3.Endpoint != "" && cfg.S3.Bucket == "" {
		return cfg, errors.New("S3_BUCKET is required when S3_ENDPOINT is set")
	}

	cfg.Influx = influx.Config{
		URL:    strings.TrimSpace(os.Getenv("INFLUXDB_URL")),
		Token:  os.Getenv("INFLUXDB_TOKEN"),
		Org:    strings.TrimSpace(os.Getenv("INFLUXDB_ORG")),
		Bucket: strings.TrimSpace(os.Getenv("INFLUXDB_BUCKET")),
	}
	if cfg.Influx.URL != "" && (cfg.Influx.Org == "" || cfg.Influx.Bucket == "") {
		return cfg, errors.New("INFLUXDB_ORG and INFLUXDB_BUCKET are required when INFLUXDB_URL is set")
	}

	if v := strings.TrimSpace(os.Getenv("KAFKA_BROKERS")); v != "" {
		for _, broker := range strings.Split(v, ",") {
			if broker = strings.TrimSpace(broker); broker != "" {
				cfg.Kafka.Brokers = append(cfg.Kafka.Brokers, broker)
			}
		}
		cfg.Kafka.Topic = defaultAlertTopic
		if topic := strings.TrimSpace(os.Getenv("KAFKA_ALERT_TOPIC")); topic != "" {
			cfg.Kafka.Topic = topic
		}
	}

	if v := strings.TrimSpace(os.Getenv("RABBITMQ_URL")); v != "" {
		cfg.RabbitMQ = rabbitmq.Config{URL: v, Exchange: "sensor.etl", RoutingKey: defaultRoutingKey}
		if ex := strings.TrimSpace(os.Getenv("RABBITMQ_EXCHANGE")); ex != "" {
			cfg.RabbitMQ.Exchange = ex
		}
		if key := strings.TrimSpace(os.Getenv("RABBITMQ_ROUTING_KEY")); key != "" {
			cfg.RabbitMQ.RoutingKey = key
		}
	}

	cfg.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if v := strings.TrimSpace(os.Getenv("REDIS_DB")); v != "" {
		db, err := strconv.Atoi(v)
		if err != nil || db < 0 {
			return cfg, fmt.Errorf("invalid REDIS_DB: %s", v)
		}
		cfg.RedisDB = db
	}

	return cfg, nil
}
