package sqs

import (
	"time"

	"github.com/miladsoleymani/queueworker/queue"
)

// Option configures the SQS queue.
type Option func(*options)

type options struct {
	waitTime          time.Duration
	visibilityTimeout time.Duration
	endpoint          string
}

func defaults() options {
	return options{
		waitTime: 20 * time.Second, // long polling
	}
}

// WithWaitTime sets the default long-poll duration of Receive. SQS caps it at 20s.
func WithWaitTime(d time.Duration) Option {
	return func(o *options) { o.waitTime = d }
}

// WithVisibilityTimeout overrides the queue's visibility timeout for received messages.
func WithVisibilityTimeout(d time.Duration) Option {
	return func(o *options) { o.visibilityTimeout = d }
}

// WithEndpoint points the client at a custom endpoint, such as LocalStack.
func WithEndpoint(url string) Option {
	return func(o *options) { o.endpoint = url }
}

func optsFromConfig(cfg queue.Config) ([]Option, error) {
	var opts []Option
	if d, err := cfg.DurationOption("wait_time", -1); err != nil {
		return nil, err
	} else if d >= 0 {
		opts = append(opts, WithWaitTime(d))
	}
	if d, err := cfg.DurationOption("visibility_timeout", 0); err != nil {
		return nil, err
	} else if d > 0 {
		opts = append(opts, WithVisibilityTimeout(d))
	}
	if ep := cfg.Option("endpoint", cfg.URL()); ep != "" {
		opts = append(opts, WithEndpoint(ep))
	}
	return opts, nil
}
