package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	libconfig "meterpay/backend/libs/config"
)

// Session store drivers.
const (
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

// Config defines checkout service configuration.
type Config struct {
	HTTP struct {
		Port string `yaml:"port" env:"CHECKOUT_HTTP_PORT"`
	} `yaml:"http"`
	Sessions struct {
		Driver string        `yaml:"driver" env:"CHECKOUT_SESSION_STORE"`
		TTL    time.Duration `yaml:"ttl" env:"CHECKOUT_SESSION_TTL"`
	} `yaml:"sessions"`
	Redis struct {
		Addr     string `yaml:"addr" env:"CHECKOUT_REDIS_ADDR"`
		Password string `yaml:"password" env:"CHECKOUT_REDIS_PASSWORD"`
		DB       int    `yaml:"db" env:"CHECKOUT_REDIS_DB"`
	} `yaml:"redis"`
	JWT struct {
		Secret string `yaml:"secret" env:"CHECKOUT_JWT_SECRET"`
	} `yaml:"jwt"`
	Ledger struct {
		URL           string        `yaml:"url" env:"BILLING_SERVICE_URL"`
		Timeout       time.Duration `yaml:"timeout" env:"BILLING_SERVICE_TIMEOUT"`
		SettleTimeout time.Duration `yaml:"settleTimeout" env:"CHECKOUT_SETTLE_TIMEOUT"`
	} `yaml:"ledger"`
	Catalog struct {
		Path string `yaml:"path" env:"PLAN_CATALOG_PATH"`
	} `yaml:"catalog"`
	Feed struct {
		Enabled      bool          `yaml:"enabled" env:"CHECKOUT_FEED_ENABLED"`
		WriteTimeout time.Duration `yaml:"writeTimeout" env:"CHECKOUT_FEED_WRITE_TIMEOUT"`
		PingInterval time.Duration `yaml:"pingInterval" env:"CHECKOUT_FEED_PING_INTERVAL"`
	} `yaml:"feed"`
}

// Load configuration from file/env.
func Load() (*Config, error) {
	cfg := &Config{}
	cfg.HTTP.Port = "8084"
	cfg.Sessions.Driver = StoreRedis
	cfg.Sessions.TTL = 30 * time.Minute
	cfg.Redis.Addr = "localhost:6379"
	cfg.Ledger.URL = "http://localhost:8083"
	cfg.Ledger.Timeout = 10 * time.Second
	cfg.Ledger.SettleTimeout = 15 * time.Second
	cfg.Catalog.Path = "config/plans.yaml"
	cfg.Feed.Enabled = true
	cfg.Feed.WriteTimeout = 10 * time.Second
	cfg.Feed.PingInterval = 30 * time.Second

	if err := libconfig.LoadConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the loaded values.
func (c *Config) Validate() error {
	c.Sessions.Driver = strings.ToLower(strings.TrimSpace(c.Sessions.Driver))
	switch c.Sessions.Driver {
	case StoreRedis:
		if strings.TrimSpace(c.Redis.Addr) == "" {
			return errors.New("redis addr required for redis session store")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("unknown session store %q", c.Sessions.Driver)
	}
	if strings.TrimSpace(c.JWT.Secret) == "" {
		return errors.New("jwt secret required")
	}
	if strings.TrimSpace(c.Ledger.URL) == "" {
		return errors.New("billing service url required")
	}
	if c.Sessions.TTL <= 0 {
		return errors.New("session ttl must be positive")
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
		port = "8084"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return fmt.Sprintf(":%s", port)
}
