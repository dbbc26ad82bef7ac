package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	libconfig "meterpay/backend/libs/config"
)

// Storage drivers.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config defines billing service configuration.
type Config struct {
	HTTP struct {
		Port string `yaml:"port" env:"BILLING_HTTP_PORT"`
	} `yaml:"http"`
	Storage struct {
		Driver       string        `yaml:"driver" env:"BILLING_STORAGE_DRIVER"`
		WriteTimeout time.Duration `yaml:"writeTimeout" env:"BILLING_WRITE_TIMEOUT"`
	} `yaml:"storage"`
	Database struct {
		DSN          string        `yaml:"dsn" env:"BILLING_POSTGRES_DSN"`
		MaxOpenConns int           `yaml:"maxOpenConns" env:"BILLING_POSTGRES_MAX_OPEN_CONNS"`
		MaxIdleConns int           `yaml:"maxIdleConns" env:"BILLING_POSTGRES_MAX_IDLE_CONNS"`
		ConnLifetime time.Duration `yaml:"connLifetime" env:"BILLING_POSTGRES_CONN_LIFETIME"`
	} `yaml:"database"`
	Catalog struct {
		Path string `yaml:"path" env:"PLAN_CATALOG_PATH"`
	} `yaml:"catalog"`
	Events struct {
		AMQPURL  string `yaml:"amqpUrl" env:"BILLING_AMQP_URL"`
		Exchange string `yaml:"exchange" env:"BILLING_EVENTS_EXCHANGE"`
	} `yaml:"events"`
}

// Load configuration from file/env.
func Load() (*Config, error) {
	cfg := &Config{}
	cfg.HTTP.Port = "8083"
	cfg.Storage.Driver = StoragePostgres
	cfg.Storage.WriteTimeout = 5 * time.Second
	cfg.Catalog.Path = "config/plans.yaml"
	cfg.Events.Exchange = "billing.events"

	if err := libconfig.LoadConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the loaded values.
func (c *Config) Validate() error {
	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	switch c.Storage.Driver {
	case StoragePostgres:
		if strings.TrimSpace(c.Database.DSN) == "" {
			return errors.New("database dsn required for postgres storage")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Storage.WriteTimeout <= 0 {
		return errors.New("storage write timeout must be positive")
	}
	if strings.TrimSpace(c.Catalog.Path) == "" {
		return errors.New("catalog path required")
	}
	return nil
}

// HTTPAddress returns :port style string.
func (c *Config) HTTPAddress() string {
	port := strings.TrimSpace(c.HTTP.Port)
	if port == "" {
		port = "8083"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return fmt.Sprintf(":%s", port)
}
