// Package pubsub implements core.Queue on the Go CDK portable pub/sub API.
// Any driver registered with gocloud.dev/pubsub can back it; the in-memory
// driver is linked in so "mem://" URLs work without external services.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"gocloud.dev/pubsub"
	_ "gocloud.dev/pubsub/mempubsub"

	"github.com/miladsoleymani/queueworker/core"
	"github.com/miladsoleymani/queueworker/queue"
)

// idKey carries the sender's message ID in the pub/sub metadata.
const idKey = "message-id"

func init() {
	queue.Register("pubsub", func(ctx context.Context, cfg queue.Config) (core.Queue, error) {
		wait, err := cfg.DurationOption("wait_time", 0)
		if err != nil {
			return nil, err
		}
		topicURL := resolveURL(cfg.Name)
		subURL := cfg.Option("subscription", topicURL)
		return New(ctx, topicURL, resolveURL(subURL), WithWaitTime(wait))
	})
}

// resolveURL turns a bare name into an in-memory topic URL.
func resolveURL(name string) string {
	if name == "" || strings.Contains(name, "://") {
		return name
	}
	return "mem://" + name
}

// Option configures the pub/sub queue.
type Option func(*Queue)

// WithWaitTime sets the default time Receive waits to fill a batch.
func WithWaitTime(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.waitTime = d
		}
	}
}

// Queue implements core.Queue over a Go CDK topic and subscription pair.
type Queue struct {
	core.Emitter

	topic    *pubsub.Topic
	sub      *pubsub.Subscription
	waitTime time.Duration

	mu     sync.Mutex
	closed bool
}

// New opens the topic at topicURL and the subscription at subURL. For the
// mem:// driver the subscription URL names the topic it reads from.
func New(ctx context.Context, topicURL, subURL string, opts ...Option) (*Queue, error) {
	if topicURL == "" || subURL == "" {
		return nil, fmt.Errorf("%w: pubsub: topic and subscription URLs are required", core.ErrInvalidParameter)
	}

	topic, err := pubsub.OpenTopic(ctx, topicURL)
	if err != nil {
		return nil, fmt.Errorf("queueworker/pubsub: open topic %q: %w", topicURL, err)
	}
	sub, err := pubsub.OpenSubscription(ctx, subURL)
	if err != nil {
		_ = topic.Shutdown(ctx)
		return nil, fmt.Errorf("queueworker/pubsub: open subscription %q: %w", subURL, err)
	}

	q := &Queue{topic: topic, sub: sub, waitTime: time.Second}
	for _, opt := range opts {
		opt(q)
	}
	return q, nil
}

func (q *Queue) isClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Send publishes msg on the topic. Send parameters are not supported by the
// portable API and are ignored.
func (q *Queue) Send(ctx context.Context, msg core.Message, _ *core.SendParams) error {
	if q.isClosed() {
		return core.ErrQueueClosed
	}

	meta := make(map[string]string, len(msg.Metadata())+1)
	for k, v := range msg.Metadata() {
		meta[k] = v
	}
	if id := msg.ID(); id != "" {
		meta[idKey] = id
	}

	if err := q.topic.Send(ctx, &pubsub.Message{Body: msg.Content(), Metadata: meta}); err != nil {
		return fmt.Errorf("queueworker/pubsub: send: %w", err)
	}
	return nil
}

// Receive collects up to n messages, returning what it has once the wait
// time elapses.
func (q *Queue) Receive(ctx context.Context, n int, params *core.ReceiveParams) ([]core.Message, error) {
	if q.isClosed() {
		return nil, core.ErrQueueClosed
	}

	wait := q.waitTime
	if params != nil && params.WaitTime > 0 {
		wait = params.WaitTime
	}
	recvCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	var out []core.Message
	for len(out) < n {
		m, err := q.sub.Receive(recvCtx)
		if err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			if errors.Is(err, context.DeadlineExceeded) {
				break
			}
			return out, fmt.Errorf("queueworker/pubsub: receive: %w", err)
		}
		out = append(out, &message{msg: m, queue: q})
	}
	return out, nil
}

// Delete acks a message received from this queue.
func (q *Queue) Delete(_ context.Context, msg core.Message) error {
	m, ok := msg.(*message)
	if !ok || m.queue != q {
		return core.ErrForeignMessage
	}
	m.msg.Ack()
	return nil
}

func (q *Queue) CanDeleteMessage() bool { return true }

// Await receives batches until stopped.
func (q *Queue) Await(ctx context.Context, params *core.ReceiveParams) error {
	return core.PollAwait(ctx, q, &q.Emitter, params)
}

// Close shuts down the subscription and the topic, flushing pending sends
// and acks.
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var errs []error
	if err := q.sub.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("queueworker/pubsub: shutdown subscription: %w", err))
	}
	if err := q.topic.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("queueworker/pubsub: shutdown topic: %w", err))
	}
	return errors.Join(errs...)
}

// message adapts a Go CDK message to core.Message.
type message struct {
	msg   *pubsub.Message
	queue *Queue
}

func (m *message) ID() string {
	if id := m.msg.Metadata[idKey]; id != "" {
		return id
	}
	return m.msg.LoggableID
}

func (m *message) Content() []byte { return m.msg.Body }

func (m *message) Metadata() map[string]string {
	out := make(map[string]string, len(m.msg.Metadata))
	for k, v := range m.msg.Metadata {
		if k != idKey {
			out[k] = v
		}
	}
	return out
}
