// Package config reads the service configuration from the environment.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendDynamoDB = "dynamodb"
)

// Config is the full service configuration.
type Config struct {
	HTTPPort      string        `env:"HTTP_PORT" envDefault:"8080"`
	HoldDuration  time.Duration `env:"HOLD_DURATION" envDefault:"15m"`
	MaxQuantity   int           `env:"MAX_QUANTITY" envDefault:"5"`
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"30s"`
	LogLevel      string        `env:"LOG_LEVEL" envDefault:"info"`

	AvailabilityMaxAge time.Duration `env:"AVAILABILITY_MAX_AGE" envDefault:"5s"`
	WriterLeaseTTL     time.Duration `env:"WRITER_LEASE_TTL" envDefault:"30s"`

	StoreBackend string   `env:"STORE_BACKEND" envDefault:"memory"`
	SupplySeed   []string `env:"SUPPLY_SEED" envSeparator:";"`
	Tables       Tables   `envPrefix:"DYNAMODB_"`

	SQSQueueURL string `env:"SQS_QUEUE_URL"`

	KafkaBrokers      []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTicketsTopic string   `env:"KAFKA_TICKETS_TOPIC" envDefault:"tickets.issued"`

	IssuanceEndpoint     string        `env:"ISSUANCE_ENDPOINT"`
	IssuanceTimeout      time.Duration `env:"ISSUANCE_TIMEOUT" envDefault:"5s"`
	WebsocketAPIEndpoint string        `env:"WEBSOCKET_API_ENDPOINT"`

	OTelEndpoint string `env:"OTEL_ENDPOINT"`
	ServiceName  string `env:"SERVICE_NAME" envDefault:"ticket-reservations"`
}

// Tables names the DynamoDB tables.
type Tables struct {
	Reservations         string `env:"RESERVATIONS_TABLE_NAME" envDefault:"reservations"`
	Supply               string `env:"SUPPLY_TABLE_NAME" envDefault:"supply"`
	Sales                string `env:"SALES_TABLE_NAME" envDefault:"sales"`
	Tickets              string `env:"TICKETS_TABLE_NAME" envDefault:"tickets"`
	CheckIns             string `env:"CHECKINS_TABLE_NAME" envDefault:"checkins"`
	WebsocketConnections string `env:"WEBSOCKET_CONNECTIONS_TABLE_NAME" envDefault:"websocket-connections"`
	Leases               string `env:"LEASES_TABLE_NAME" envDefault:"leases"`
}

// Load reads a .env file when present, then parses the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, using environment variables")
	}
	return Parse(env.Options{})
}

// Parse parses the configuration with opts and validates it.
func Parse(opts env.Options) (*Config, error) {
	cfg, err := env.ParseAsWithOptions[Config](opts)
	if err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendMemory, BackendDynamoDB:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	if c.HoldDuration <= 0 {
		return fmt.Errorf("HOLD_DURATION must be positive, got %s", c.HoldDuration)
	}
	if c.MaxQuantity < 1 {
		return fmt.Errorf("MAX_QUANTITY must be at least 1, got %d", c.MaxQuantity)
	}
	if c.AvailabilityMaxAge <= 0 {
		return fmt.Errorf("AVAILABILITY_MAX_AGE must be positive, got %s", c.AvailabilityMaxAge)
	}
	if c.WriterLeaseTTL <= 0 {
		return fmt.Errorf("WRITER_LEASE_TTL must be positive, got %s", c.WriterLeaseTTL)
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be positive, got %s", c.SweepInterval)
	}
	return nil
}

// SlogLevel converts LogLevel, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
