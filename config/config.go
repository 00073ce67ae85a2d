// Package config reads worker settings from the environment with
// caarlos0/env. Command line flags are applied on top by the CLI.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"

	"github.com/miladsoleymani/queueworker/core"
	"github.com/miladsoleymani/queueworker/queue"
)

// Config holds everything the queueworker command needs to start.
type Config struct {
	LogLevel  string `env:"LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console"`

	QueueDriver  string            `env:"QUEUE_DRIVER"  envDefault:"pubsub"`
	QueueURLs    []string          `env:"QUEUE_URLS"    envSeparator:","`
	QueueName    string            `env:"QUEUE_NAME"`
	QueueGroup   string            `env:"QUEUE_GROUP"`
	QueueRegion  string            `env:"QUEUE_REGION"`
	QueueOptions map[string]string `env:"QUEUE_OPTIONS" envSeparator:"," envKeyValSeparator:"="`

	// MaxMessages bounds a receive batch.
	MaxMessages int `env:"MAX_MESSAGES" envDefault:"1"`
	// ReceiveParams and SendParams use the query form, e.g. "wait_time=5s&batch_size=10".
	ReceiveParams string `env:"RECEIVE_PARAMS"`
	SendParams    string `env:"SEND_PARAMS"`

	HandleStopSignals bool `env:"HANDLE_STOP_SIGNALS" envDefault:"true"`
}

// FromEnv parses Config from the process environment.
func FromEnv() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return cfg, fmt.Errorf("queueworker/config: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate checks values env cannot check by itself.
func (c Config) Validate() error {
	if c.MaxMessages < 1 {
		return fmt.Errorf("%w: MAX_MESSAGES must be at least 1, got %d", core.ErrInvalidParameter, c.MaxMessages)
	}
	if _, err := core.ParseReceiveParams(c.ReceiveParams); err != nil {
		return fmt.Errorf("RECEIVE_PARAMS: %w", err)
	}
	if _, err := core.ParseSendParams(c.SendParams); err != nil {
		return fmt.Errorf("SEND_PARAMS: %w", err)
	}
	return nil
}

// Queue returns the base queue configuration.
func (c Config) Queue() queue.Config {
	return queue.Config{
		Driver:  c.QueueDriver,
		URLs:    c.QueueURLs,
		Name:    c.QueueName,
		Group:   c.QueueGroup,
		Region:  c.QueueRegion,
		Options: c.QueueOptions,
	}
}
