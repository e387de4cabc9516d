package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config carries everything the pipeline needs at startup. All knobs come
// from the environment with sane defaults for local runs.
type Config struct {
	ServiceName string `envconfig:"SERVICE_NAME" default:"orderflow"`
	Env         string `envconfig:"ENV" default:"dev"`

	WorkerCount     int `envconfig:"WORKER_COUNT" default:"4"`
	PaymentPoolSize int `envconfig:"PAYMENT_POOL_SIZE" default:"8"`
	QueueCapacity   int `envconfig:"QUEUE_CAPACITY" default:"64"`

	PaymentTimeout time.Duration `envconfig:"PAYMENT_TIMEOUT" default:"5s"`
	JoinTimeout    time.Duration `envconfig:"JOIN_TIMEOUT" default:"10s"`

	InitialStock int `envconfig:"INITIAL_STOCK" default:"100"`
}

func Load() (Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := c.validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) validate() error {
	if c.WorkerCount <= 0 {
		return fmt.Errorf("config: WORKER_COUNT must be positive, got %d", c.WorkerCount)
	}
	if c.PaymentPoolSize <= 0 {
		return fmt.Errorf("config: PAYMENT_POOL_SIZE must be positive, got %d", c.PaymentPoolSize)
	}
	if c.QueueCapacity <= 0 {
		return fmt.Errorf("config: QUEUE_CAPACITY must be positive, got %d", c.QueueCapacity)
	}
	if c.PaymentTimeout <= 0 {
		return fmt.Errorf("config: PAYMENT_TIMEOUT must be positive, got %s", c.PaymentTimeout)
	}
	if c.JoinTimeout <= 0 {
		return fmt.Errorf("config: JOIN_TIMEOUT must be positive, got %s", c.JoinTimeout)
	}
	return nil
}
