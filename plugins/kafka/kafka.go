// Package kafka implements core.Queue on Apache Kafka using segmentio/kafka-go.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/segmentio/kafka-go"

	"github.com/miladsoleymani/queueworker/core"
	"github.com/miladsoleymani/queueworker/queue"
)

func init() {
	queue.Register("kafka", func(_ context.Context, cfg queue.Config) (core.Queue, error) {
		opts, err := optsFromConfig(cfg)
		if err != nil {
			return nil, err
		}
		return New(cfg.URLs, cfg.Name, cfg.Group, opts...)
	})
}

// Queue implements core.Queue for a Kafka topic.
//
// Design decisions:
//   - One kafka.Writer shared across all Send calls (thread-safe by library).
//   - One kafka.Reader for the topic, joined to the consumer group if any.
//   - Delete commits the message offset. Without a group offsets cannot be
//     committed, so the worker does not delete.
//   - The send key becomes the Kafka message key.
type Queue struct {
	core.Emitter

	topic string
	group string
	opts  options

	writer *kafka.Writer
	reader *kafka.Reader
	mu     sync.Mutex
	closed bool
}

// New creates a Kafka Queue for topic.
func New(brokers []string, topic, group string, fns ...Option) (*Queue, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("%w: kafka: at least one broker address is required", core.ErrInvalidParameter)
	}
	if topic == "" {
		return nil, fmt.Errorf("%w: kafka: a topic is required", core.ErrInvalidParameter)
	}

	opts := defaults()
	for _, fn := range fns {
		fn(&opts)
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     opts.balancer,
		BatchSize:    opts.batchSize,
		Async:        opts.async,
		RequiredAcks: kafka.RequireAll,
	}
	if opts.dialer != nil {
		w.Transport = &kafka.Transport{
			TLS:  opts.dialer.TLS,
			SASL: opts.dialer.SASLMechanism,
		}
	}

	cfg := kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  group,
		MinBytes: opts.minBytes,
		MaxBytes: opts.maxBytes,
		MaxWait:  opts.maxWait,
	}
	if opts.dialer != nil {
		cfg.Dialer = opts.dialer
	}
	if group == "" {
		cfg.StartOffset = opts.startOffset
	}

	return &Queue{
		topic:  topic,
		group:  group,
		opts:   opts,
		writer: w,
		reader: kafka.NewReader(cfg),
	}, nil
}

func (q *Queue) isClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Send writes msg to the topic.
func (q *Queue) Send(ctx context.Context, msg core.Message, params *core.SendParams) error {
	if q.isClosed() {
		return core.ErrQueueClosed
	}

	km := kafka.Message{
		Value:   msg.Content(),
		Headers: toHeaders(msg.ID(), msg.Metadata()),
	}
	if params != nil && params.Key != "" {
		km.Key = []byte(params.Key)
	}
	if err := q.writer.WriteMessages(ctx, km); err != nil {
		return fmt.Errorf("queueworker/kafka: publish to %q: %w", q.topic, err)
	}
	return nil
}

// Receive fetches up to max messages, returning early with what it has when
// the receive wait time elapses.
func (q *Queue) Receive(ctx context.Context, max int, params *core.ReceiveParams) ([]core.Message, error) {
	if q.isClosed() {
		return nil, core.ErrQueueClosed
	}

	wait := q.opts.fetchWait
	if params != nil && params.WaitTime > 0 {
		wait = params.WaitTime
	}
	fetchCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	var out []core.Message
	for len(out) < max {
		raw, err := q.reader.FetchMessage(fetchCtx)
		if err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			if errors.Is(err, context.DeadlineExceeded) {
				break
			}
			return out, fmt.Errorf("queueworker/kafka: fetch: %w", err)
		}
		out = append(out, &message{raw: raw, reader: q.reader})
	}
	return out, nil
}

// Delete commits the offset of a message fetched by this queue.
func (q *Queue) Delete(ctx context.Context, msg core.Message) error {
	m, ok := msg.(*message)
	if !ok || m.reader != q.reader {
		return core.ErrForeignMessage
	}
	if err := q.reader.CommitMessages(ctx, m.raw); err != nil {
		return fmt.Errorf("queueworker/kafka: commit offset: %w", err)
	}
	return nil
}

// CanDeleteMessage is true only for consumer group readers.
func (q *Queue) CanDeleteMessage() bool {
	return q.group != ""
}

// Await fetches batches until stopped.
func (q *Queue) Await(ctx context.Context, params *core.ReceiveParams) error {
	return core.PollAwait(ctx, q, &q.Emitter, params)
}

// Close flushes the writer and closes the reader.
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true

	var errs []error
	if err := q.writer.Close(); err != nil {
		errs = append(errs, fmt.Errorf("queueworker/kafka: close writer: %w", err))
	}
	if err := q.reader.Close(); err != nil {
		errs = append(errs, fmt.Errorf("queueworker/kafka: close reader: %w", err))
	}
	return errors.Join(errs...)
}
