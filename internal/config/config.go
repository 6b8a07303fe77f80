package config // package config loads application configuration from a YAML file or the environment

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all runtime configuration values.  Every field can be set
// from the environment; a YAML file with the same structure may be used
// instead.
type Config struct {
	Env       string    `yaml:"env" env:"APP_ENV" env-default:"dev"`   // application environment (dev/test/prod)
	Port      string    `yaml:"port" env:"APP_PORT" env-default:"8080"` // HTTP port to listen on
	LogLevel  string    `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	JWTSecret string    `yaml:"jwt_secret" env:"JWT_SECRET" env-required:"true"`
	Database  Database  `yaml:"database"`
	Redis     Redis     `yaml:"redis"`
	RabbitMQ  RabbitMQ  `yaml:"rabbitmq"`
	Booking   Booking   `yaml:"booking"`
	Reaper    Reaper    `yaml:"reaper"`
	RateLimit RateLimit `yaml:"rate_limit"`
	Telemetry Telemetry `yaml:"telemetry"`
}

// Database configures the MySQL connection pool.
type Database struct {
	User            string        `yaml:"user" env:"DB_USER" env-required:"true"`
	Password        string        `yaml:"password" env:"DB_PASS"` // empty allowed
	Host            string        `yaml:"host" env:"DB_HOST" env-default:"localhost"`
	Port            string        `yaml:"port" env:"DB_PORT" env-default:"3306"`
	Name            string        `yaml:"name" env:"DB_NAME" env-required:"true"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"DB_MAX_IDLE_CONNS" env-default:"25"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"DB_CONN_MAX_LIFETIME" env-default:"30m"`
	ApplySchema     bool          `yaml:"apply_schema" env:"DB_APPLY_SCHEMA" env-default:"false"`
}

// Booking holds the hold rules.  HoldTTL is one system-wide duration.
type Booking struct {
	HoldTTL         time.Duration `yaml:"hold_ttl" env:"HOLD_TTL" env-default:"10m"`
	MaxSeatsPerHold int           `yaml:"max_seats_per_hold" env:"MAX_SEATS_PER_HOLD" env-default:"20"`
	HoldIndexPrefix string        `yaml:"hold_index_prefix" env:"HOLD_INDEX_PREFIX" env-default:"hold"`
}

// Reaper configures the background expiry sweep.
type Reaper struct {
	Enabled   bool          `yaml:"enabled" env:"REAPER_ENABLED" env-default:"true"`
	Interval  time.Duration `yaml:"interval" env:"REAPER_INTERVAL" env-default:"30s"`
	BatchSize int           `yaml:"batch_size" env:"REAPER_BATCH_SIZE" env-default:"100"`
}

// RabbitMQ configures lifecycle event delivery.  An empty URL disables it.
type RabbitMQ struct {
	URL        string `yaml:"url" env:"RABBITMQ_URL"`
	Exchange   string `yaml:"exchange" env:"RABBITMQ_EXCHANGE" env-default:"reservations"`
	AuditQueue string `yaml:"audit_queue" env:"RABBITMQ_AUDIT_QUEUE" env-default:"reservations.audit"`
}

// Telemetry configures the OTLP trace exporter.
type Telemetry struct {
	Enabled       bool   `yaml:"enabled" env:"OTEL_ENABLED" env-default:"false"`
	ServiceName   string `yaml:"service_name" env:"OTEL_SERVICE_NAME" env-default:"showtime-booking"`
	CollectorAddr string `yaml:"collector_addr" env:"OTEL_COLLECTOR_ADDR" env-default:"localhost:4317"`
}

// Load reads configuration from the YAML file at path when it exists and
// from the environment otherwise.  Environment variables override file
// values in both cases.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := cleanenv.ReadConfig(path, cfg); err != nil {
				return nil, fmt.Errorf("read config file %s: %w", path, err)
			}
			cfg.RateLimit.normalize()
			return cfg, nil
		}
	}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	cfg.RateLimit.normalize()
	return cfg, nil
}

// Consumer is the configuration of cmd/consumer, which needs neither the
// database nor the JWT secret.
type Consumer struct {
	Env      string   `yaml:"env" env:"APP_ENV" env-default:"dev"`
	LogLevel string   `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	RabbitMQ RabbitMQ `yaml:"rabbitmq"`
}

// LoadConsumer reads the consumer configuration from the environment.
func LoadConsumer() (*Consumer, error) {
	cfg := &Consumer{}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	if cfg.RabbitMQ.URL == "" {
		return nil, fmt.Errorf("RABBITMQ_URL is required")
	}
	return cfg, nil
}
