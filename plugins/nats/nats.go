// Package nats implements core.Queue on NATS JetStream.
package nats

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/miladsoleymani/queueworker/core"
	"github.com/miladsoleymani/queueworker/queue"
)

func init() {
	queue.Register("nats", func(ctx context.Context, cfg queue.Config) (core.Queue, error) {
		if cfg.URL() == "" {
			return nil, fmt.Errorf("%w: nats: a server URL is required", core.ErrInvalidParameter)
		}
		opts, err := optsFromConfig(cfg)
		if err != nil {
			return nil, err
		}
		return New(ctx, cfg.URL(), cfg.Name, cfg.Group, opts...)
	})
}

// Queue implements core.Queue for NATS JetStream.
//
// Design decisions:
//   - One NATS connection per Queue instance.
//   - The queue name is a subject; the stream captures the subject and
//     its children, so a send key addresses "<subject>.<key>".
//   - A durable pull consumer serves Receive; Delete acks the message.
//   - Await polls the consumer with Fetch.
type Queue struct {
	core.Emitter

	conn    *nats.Conn
	js      jetstream.JetStream
	cons    jetstream.Consumer
	subject string
	opts    options

	mu     sync.Mutex
	closed bool
}

// New connects to url and creates (or updates) the stream and durable
// consumer for subject.
func New(ctx context.Context, url, subject, group string, fns ...Option) (*Queue, error) {
	if subject == "" {
		return nil, fmt.Errorf("%w: nats: a subject is required", core.ErrInvalidParameter)
	}
	opts := defaults()
	for _, fn := range fns {
		fn(&opts)
	}

	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("queueworker/nats: connect to %q: %w", url, err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("queueworker/nats: init jetstream: %w", err)
	}

	streamName := sanitizeStreamName(subject)
	stream, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      streamName,
		Subjects:  []string{subject, subject + ".>"},
		MaxMsgs:   opts.maxMsgs,
		MaxBytes:  opts.maxBytes,
		MaxAge:    opts.maxAge,
		Replicas:  opts.replicas,
		Retention: opts.retention,
		Storage:   opts.storage,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("queueworker/nats: create stream %q: %w", streamName, err)
	}

	consumerName := group
	if consumerName == "" {
		consumerName = "queueworker-" + streamName
	}

	cc := jetstream.ConsumerConfig{
		Durable:    consumerName,
		AckPolicy:  opts.ackPolicy,
		MaxDeliver: opts.maxDeliver,
	}
	if opts.ackPolicy != jetstream.AckNonePolicy {
		cc.AckWait = opts.ackWait
	}
	cons, err := stream.CreateOrUpdateConsumer(ctx, cc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("queueworker/nats: create consumer %q: %w", consumerName, err)
	}

	return &Queue{
		conn:    nc,
		js:      js,
		cons:    cons,
		subject: subject,
		opts:    opts,
	}, nil
}

func (q *Queue) isClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Send publishes msg via JetStream. The message ID is used for server-side
// deduplication.
func (q *Queue) Send(ctx context.Context, msg core.Message, params *core.SendParams) error {
	if q.isClosed() {
		return core.ErrQueueClosed
	}

	nm := &nats.Msg{
		Subject: sendSubject(q.subject, params),
		Data:    msg.Content(),
		Header:  nats.Header{},
	}
	for k, v := range msg.Metadata() {
		nm.Header.Set(k, v)
	}

	var popts []jetstream.PublishOpt
	if id := msg.ID(); id != "" {
		popts = append(popts, jetstream.WithMsgID(id))
	}
	if _, err := q.js.PublishMsg(ctx, nm, popts...); err != nil {
		return fmt.Errorf("queueworker/nats: publish to %q: %w", nm.Subject, err)
	}
	return nil
}

// Receive fetches up to n messages, waiting at most the receive wait time.
func (q *Queue) Receive(ctx context.Context, n int, params *core.ReceiveParams) ([]core.Message, error) {
	if q.isClosed() {
		return nil, core.ErrQueueClosed
	}

	wait := q.opts.fetchWait
	if params != nil && params.WaitTime > 0 {
		wait = params.WaitTime
	}
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl); left < wait {
			wait = left
		}
	}
	if wait <= 0 {
		return nil, ctx.Err()
	}

	batch, err := q.cons.Fetch(n, jetstream.FetchMaxWait(wait))
	if err != nil {
		return nil, fmt.Errorf("queueworker/nats: fetch: %w", err)
	}

	var out []core.Message
	for m := range batch.Messages() {
		out = append(out, newMessage(m))
	}
	if err := batch.Error(); err != nil && !isFetchTimeout(err) {
		return out, fmt.Errorf("queueworker/nats: fetch: %w", err)
	}
	return out, nil
}

// Delete acknowledges a message received from this queue.
func (q *Queue) Delete(_ context.Context, msg core.Message) error {
	m, ok := msg.(*message)
	if !ok {
		return core.ErrForeignMessage
	}
	if err := m.msg.Ack(); err != nil {
		return fmt.Errorf("queueworker/nats: ack: %w", err)
	}
	return nil
}

// CanDeleteMessage is false when the consumer does not expect acks.
func (q *Queue) CanDeleteMessage() bool {
	return q.opts.ackPolicy != jetstream.AckNonePolicy
}

// Await polls the consumer and emits every fetched batch.
func (q *Queue) Await(ctx context.Context, params *core.ReceiveParams) error {
	return core.PollAwait(ctx, q, &q.Emitter, params)
}

// Close drops the NATS connection. Unacknowledged messages are redelivered
// after the ack wait.
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	q.conn.Close()
	return nil
}

func sendSubject(subject string, params *core.SendParams) string {
	if params == nil || params.Key == "" {
		return subject
	}
	return subject + "." + params.Key
}

func isFetchTimeout(err error) bool {
	return errors.Is(err, nats.ErrTimeout) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, jetstream.ErrNoMessages)
}

// sanitizeStreamName converts a subject pattern to a valid stream name
// by replacing special characters.
func sanitizeStreamName(subject string) string {
	buf := make([]byte, len(subject))
	for i := range len(subject) {
		c := subject[i]
		if c == '.' || c == '*' || c == '>' {
			buf[i] = '-'
		} else {
			buf[i] = c
		}
	}
	return string(buf)
}
