package kafka

import (
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/miladsoleymani/queueworker/queue"
)

// Option configures the Kafka queue.
type Option func(*options)

type options struct {
	// Writer
	balancer  kafka.Balancer
	batchSize int
	async     bool

	// Reader
	minBytes    int
	maxBytes    int
	maxWait     time.Duration
	startOffset int64
	fetchWait   time.Duration

	// General
	dialer *kafka.Dialer
}

func defaults() options {
	return options{
		balancer:    &kafka.Hash{},
		batchSize:   100,
		minBytes:    1,
		maxBytes:    10e6, // 10 MB
		maxWait:     500 * time.Millisecond,
		startOffset: kafka.FirstOffset,
		fetchWait:   5 * time.Second,
	}
}

// WithBalancer sets the partition balancer for the writer. The default
// hashes the send key so equal keys land on one partition.
func WithBalancer(b kafka.Balancer) Option {
	return func(o *options) { o.balancer = b }
}

// WithBatchSize sets the maximum batch size for writes.
func WithBatchSize(n int) Option {
	return func(o *options) { o.batchSize = n }
}

// WithAsync enables asynchronous writes.
func WithAsync(async bool) Option {
	return func(o *options) { o.async = async }
}

// WithMaxBytes sets the maximum bytes per fetch.
func WithMaxBytes(n int) Option {
	return func(o *options) { o.maxBytes = n }
}

// WithMaxWait sets the maximum wait time for broker fetches.
func WithMaxWait(d time.Duration) Option {
	return func(o *options) { o.maxWait = d }
}

// WithStartOffset sets the consumer start offset (kafka.FirstOffset or kafka.LastOffset).
func WithStartOffset(offset int64) Option {
	return func(o *options) { o.startOffset = offset }
}

// WithFetchWait sets the default time Receive waits to fill a batch.
func WithFetchWait(d time.Duration) Option {
	return func(o *options) { o.fetchWait = d }
}

// WithDialer sets a custom dialer for TLS/SASL connections.
func WithDialer(d *kafka.Dialer) Option {
	return func(o *options) { o.dialer = d }
}

// optsFromConfig extracts options from queue.Config.Options.
func optsFromConfig(cfg queue.Config) ([]Option, error) {
	var opts []Option
	if v, err := cfg.BoolOption("async", false); err != nil {
		return nil, err
	} else if v {
		opts = append(opts, WithAsync(true))
	}
	if v, err := cfg.IntOption("batch_size", 0); err != nil {
		return nil, err
	} else if v > 0 {
		opts = append(opts, WithBatchSize(v))
	}
	if v, err := cfg.IntOption("max_bytes", 0); err != nil {
		return nil, err
	} else if v > 0 {
		opts = append(opts, WithMaxBytes(v))
	}
	if v, err := cfg.DurationOption("fetch_wait", 0); err != nil {
		return nil, err
	} else if v > 0 {
		opts = append(opts, WithFetchWait(v))
	}
	switch cfg.Option("start_offset", "") {
	case "first":
		opts = append(opts, WithStartOffset(kafka.FirstOffset))
	case "last":
		opts = append(opts, WithStartOffset(kafka.LastOffset))
	}
	return opts, nil
}
