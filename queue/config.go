package queue

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/miladsoleymani/queueworker/core"
)

// Config holds driver-agnostic queue configuration.
// Drivers extract the fields they need.
type Config struct {
	// Driver is the registered driver name (e.g., "sqs", "redis").
	Driver string

	// URLs lists server addresses or connection strings
	// (e.g., "nats://localhost:4222", "postgres://...").
	URLs []string

	// Name is the queue, subject, topic or table name.
	Name string

	// Group is the consumer group or durable consumer name.
	Group string

	// Region is used by cloud drivers.
	Region string

	// Options holds driver-specific configuration.
	Options map[string]string
}

// URL returns the first configured address, or "".
func (c Config) URL() string {
	if len(c.URLs) == 0 {
		return ""
	}
	return strings.TrimSpace(c.URLs[0])
}

// Option returns a driver-specific option or def.
func (c Config) Option(key, def string) string {
	if v, ok := c.Options[key]; ok && v != "" {
		return v
	}
	return def
}

// IntOption parses an integer option, returning def when it is unset.
func (c Config) IntOption(key string, def int) (int, error) {
	v := c.Option(key, "")
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: option %q: %q is not an integer", core.ErrInvalidParameter, key, v)
	}
	return n, nil
}

// BoolOption parses a boolean option, returning def when it is unset.
func (c Config) BoolOption(key string, def bool) (bool, error) {
	v := c.Option(key, "")
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%w: option %q: %q is not a boolean", core.ErrInvalidParameter, key, v)
	}
	return b, nil
}

// DurationOption parses a duration option given as a Go duration or whole
// seconds, returning def when it is unset.
func (c Config) DurationOption(key string, def time.Duration) (time.Duration, error) {
	v := c.Option(key, "")
	if v == "" {
		return def, nil
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%w: option %q: %q is not a duration", core.ErrInvalidParameter, key, v)
	}
	return d, nil
}
