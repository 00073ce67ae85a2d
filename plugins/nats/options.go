package nats

import (
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/miladsoleymani/queueworker/queue"
)

// Option configures the NATS queue.
type Option func(*options)

type options struct {
	// Stream
	maxMsgs   int64
	maxBytes  int64
	maxAge    time.Duration
	replicas  int
	retention jetstream.RetentionPolicy
	storage   jetstream.StorageType

	// Consumer
	ackPolicy  jetstream.AckPolicy
	ackWait    time.Duration
	maxDeliver int
	fetchWait  time.Duration
}

func defaults() options {
	return options{
		maxMsgs:    -1, // unlimited
		maxBytes:   -1,
		replicas:   1,
		retention:  jetstream.WorkQueuePolicy,
		storage:    jetstream.FileStorage,
		ackPolicy:  jetstream.AckExplicitPolicy,
		ackWait:    30 * time.Second,
		maxDeliver: 5,
		fetchWait:  5 * time.Second,
	}
}

// WithMaxMessages sets the maximum number of messages per stream.
func WithMaxMessages(n int64) Option {
	return func(o *options) { o.maxMsgs = n }
}

// WithMaxBytes sets the maximum total size of a stream.
func WithMaxBytes(n int64) Option {
	return func(o *options) { o.maxBytes = n }
}

// WithMaxAge sets the maximum age of messages in the stream.
func WithMaxAge(d time.Duration) Option {
	return func(o *options) { o.maxAge = d }
}

// WithReplicas sets the stream replication factor.
func WithReplicas(n int) Option {
	return func(o *options) { o.replicas = n }
}

// WithRetention sets the stream retention policy.
func WithRetention(r jetstream.RetentionPolicy) Option {
	return func(o *options) { o.retention = r }
}

// WithStorage sets the stream storage type (file or memory).
func WithStorage(s jetstream.StorageType) Option {
	return func(o *options) { o.storage = s }
}

// WithAckNone makes the consumer acknowledge on delivery. The worker then
// never deletes messages.
func WithAckNone() Option {
	return func(o *options) { o.ackPolicy = jetstream.AckNonePolicy }
}

// WithAckWait sets how long the server waits for an ack before redelivering.
func WithAckWait(d time.Duration) Option {
	return func(o *options) { o.ackWait = d }
}

// WithMaxDeliver sets the maximum number of delivery attempts.
func WithMaxDeliver(n int) Option {
	return func(o *options) { o.maxDeliver = n }
}

// WithFetchWait sets the default long-poll duration of Receive.
func WithFetchWait(d time.Duration) Option {
	return func(o *options) { o.fetchWait = d }
}

// optsFromConfig extracts options from queue.Config.Options.
func optsFromConfig(cfg queue.Config) ([]Option, error) {
	var opts []Option

	if ackNone, err := cfg.BoolOption("ack_none", false); err != nil {
		return nil, err
	} else if ackNone {
		opts = append(opts, WithAckNone())
	}
	if n, err := cfg.IntOption("max_deliver", 0); err != nil {
		return nil, err
	} else if n > 0 {
		opts = append(opts, WithMaxDeliver(n))
	}
	if n, err := cfg.IntOption("replicas", 0); err != nil {
		return nil, err
	} else if n > 0 {
		opts = append(opts, WithReplicas(n))
	}
	if d, err := cfg.DurationOption("ack_wait", 0); err != nil {
		return nil, err
	} else if d > 0 {
		opts = append(opts, WithAckWait(d))
	}
	if d, err := cfg.DurationOption("fetch_wait", 0); err != nil {
		return nil, err
	} else if d > 0 {
		opts = append(opts, WithFetchWait(d))
	}
	if cfg.Option("storage", "") == "memory" {
		opts = append(opts, WithStorage(jetstream.MemoryStorage))
	}
	return opts, nil
}
