package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	StorageDriverFile = "file"
	StorageDriverNone = "none"

	DBDriverSQLite   = "sqlite"
	DBDriverPostgres = "postgres"
	DBDriverNone     = "none"
)

type Config struct {
	Port   int    `env:"PORT" envDefault:"7860"`
	APIKey string `env:"API_KEY"`

	ModelPath          string  `env:"MODEL_PATH" envDefault:"models/best.onnx"`
	ModelWorkers       int     `env:"MODEL_WORKERS" envDefault:"2"`  // Liczba instancji sieci (jedna na żądanie)
	InferenceSize      int     `env:"MODEL_IMGSZ" envDefault:"640"`
	InferenceConf      float32 `env:"MODEL_CONFIDENCE" envDefault:"0.1"`
	InferenceNMS       float32 `env:"MODEL_NMS" envDefault:"0.45"`
	PotholeThreshold   float64 `env:"POTHOLE_THRESHOLD" envDefault:"0"` // ratio in [0,1), strict >
	MaxGpsCacheSize    int     `env:"MAX_GPS_CACHE_SIZE" envDefault:"100"`
	GpsMatchTolerance  int64   `env:"GPS_MATCH_TOLERANCE" envDefault:"2"`

	SessionIdleTTL     time.Duration `env:"SESSION_IDLE_TTL" envDefault:"0s"` // 0 = sesje trzymane do końca procesu
	SessionSweepPeriod time.Duration `env:"SESSION_SWEEP_INTERVAL" envDefault:"1m"`

	StorageDriver  string `env:"STORAGE_DRIVER" envDefault:"file"`
	ImageDirectory string `env:"IMAGE_DIR" envDefault:"./images"`
	PublicBaseURL  string `env:"PUBLIC_BASE_URL"`

	DBDriver    string `env:"DB_DRIVER" envDefault:"sqlite"`
	DBPath      string `env:"DB_PATH" envDefault:"data/potholes.db"`
	PostgresURL string `env:"POSTGRES_URL"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisChannel  string `env:"REDIS_EVENTS_CHANNEL" envDefault:"potholes:detections"`

	PersistWorkers int           `env:"PERSIST_WORKERS" envDefault:"2"`
	PersistQueue   int           `env:"PERSIST_QUEUE" envDefault:"100"`
	PersistTimeout time.Duration `env:"PERSIST_TIMEOUT" envDefault:"10s"`

	MaxUploadMB  int64  `env:"MAX_UPLOAD_MB" envDefault:"10"`
	LogDirectory string `env:"LOG_DIR" envDefault:"./logs"`
	LogLevel     string `env:"LOG_LEVEL" envDefault:"INFO"`
}

// Load reads an optional .env file, then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges and driver names.
func (c *Config) Validate() error {
	if c.MaxGpsCacheSize <= 0 {
		return fmt.Errorf("MAX_GPS_CACHE_SIZE must be positive, got %d", c.MaxGpsCacheSize)
	}
	if c.GpsMatchTolerance < 0 {
		return fmt.Errorf("GPS_MATCH_TOLERANCE must not be negative, got %d", c.GpsMatchTolerance)
	}
	if c.PotholeThreshold < 0 || c.PotholeThreshold >= 1 {
		return fmt.Errorf("POTHOLE_THRESHOLD must be in [0,1), got %v", c.PotholeThreshold)
	}
	if c.InferenceSize <= 0 {
		return fmt.Errorf("MODEL_IMGSZ must be positive, got %d", c.InferenceSize)
	}
	if c.SessionIdleTTL < 0 {
		return fmt.Errorf("SESSION_IDLE_TTL must not be negative")
	}

	switch c.StorageDriver {
	case StorageDriverFile, StorageDriverNone:
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}

	switch c.DBDriver {
	case DBDriverSQLite, DBDriverNone:
	case DBDriverPostgres:
		if c.PostgresURL == "" {
			return fmt.Errorf("POSTGRES_URL is required when DB_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("unknown DB_DRIVER %q", c.DBDriver)
	}
	return nil
}

// MaxUploadBytes returns the request body limit for uploads.
func (c *Config) MaxUploadBytes() int64 {
	if c.MaxUploadMB <= 0 {
		return 10 << 20
	}
	return c.MaxUploadMB << 20
}
