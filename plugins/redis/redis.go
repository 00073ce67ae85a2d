// Package redis implements core.Queue as a reliable list queue on Redis
// (or Valkey) using go-redis.
//
// A queue named "jobs" uses three keys:
//
//	jobs             pending messages, pushed left and popped right
//	jobs:processing  messages received but not yet deleted
//	jobs:delayed     sorted set of delayed messages scored by due time
//
// Receive atomically moves a message from the pending list to the processing
// list; Delete removes it from there. Messages of a crashed worker stay in
// the processing list until Recover moves them back.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/miladsoleymani/queueworker/core"
	"github.com/miladsoleymani/queueworker/queue"
)

const connectionTimeout = 5 * time.Second

// promoteScript moves due delayed messages to the pending list.
var promoteScript = redis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, tonumber(ARGV[2]))
for _, v in ipairs(due) do
	redis.call('ZREM', KEYS[1], v)
	redis.call('LPUSH', KEYS[2], v)
end
return #due
`)

func init() {
	queue.Register("redis", func(ctx context.Context, cfg queue.Config) (core.Queue, error) {
		if cfg.URL() == "" {
			return nil, fmt.Errorf("%w: redis: a server URL is required", core.ErrInvalidParameter)
		}
		wait, err := cfg.DurationOption("wait_time", 0)
		if err != nil {
			return nil, err
		}
		return New(ctx, cfg.URL(), cfg.Name, WithWaitTime(wait), WithKeyPrefix(cfg.Option("key_prefix", "")))
	})
}

// Option configures the Redis queue.
type Option func(*Queue)

// WithWaitTime sets the default blocking time of Receive.
func WithWaitTime(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.waitTime = d
		}
	}
}

// WithKeyPrefix namespaces every key of the queue.
func WithKeyPrefix(prefix string) Option {
	return func(q *Queue) { q.prefix = prefix }
}

// Queue implements core.Queue on Redis lists.
type Queue struct {
	core.Emitter

	client   redis.UniversalClient
	owned    bool
	name     string
	prefix   string
	waitTime time.Duration

	mu     sync.Mutex
	closed bool
}

// New connects to the redis:// URL and returns the queue named name.
func New(ctx context.Context, url, name string, opts ...Option) (*Queue, error) {
	ropts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("%w: redis: %v", core.ErrInvalidParameter, err)
	}
	client := redis.NewClient(ropts)

	pingCtx, cancel := context.WithTimeout(ctx, connectionTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("queueworker/redis: ping: %w", err)
	}

	q, err := NewWithClient(client, name, opts...)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	q.owned = true
	return q, nil
}

// NewWithClient returns the queue named name on an existing client. Close
// leaves the client open.
func NewWithClient(client redis.UniversalClient, name string, opts ...Option) (*Queue, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: redis: a queue name is required", core.ErrInvalidParameter)
	}
	q := &Queue{client: client, name: name, waitTime: time.Second}
	for _, opt := range opts {
		opt(q)
	}
	return q, nil
}

func (q *Queue) pendingKey() string    { return q.prefix + q.name }
func (q *Queue) processingKey() string { return q.prefix + q.name + ":processing" }
func (q *Queue) delayedKey() string    { return q.prefix + q.name + ":delayed" }

func (q *Queue) isClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Send stores msg as a JSON envelope, on the pending list or, with a delay,
// in the delayed set.
func (q *Queue) Send(ctx context.Context, msg core.Message, params *core.SendParams) error {
	if q.isClosed() {
		return core.ErrQueueClosed
	}

	payload, err := json.Marshal(core.EnvelopeOf(msg))
	if err != nil {
		return fmt.Errorf("queueworker/redis: encode message: %w", err)
	}

	if params != nil && params.Delay > 0 {
		due := time.Now().Add(params.Delay).UnixMilli()
		err = q.client.ZAdd(ctx, q.delayedKey(), redis.Z{Score: float64(due), Member: payload}).Err()
	} else {
		err = q.client.LPush(ctx, q.pendingKey(), payload).Err()
	}
	if err != nil {
		return fmt.Errorf("queueworker/redis: send to %q: %w", q.name, err)
	}
	return nil
}

// Receive moves up to n messages to the processing list. It blocks for the
// wait time only while the batch is empty.
func (q *Queue) Receive(ctx context.Context, n int, params *core.ReceiveParams) ([]core.Message, error) {
	if q.isClosed() {
		return nil, core.ErrQueueClosed
	}

	if err := q.promote(ctx, n); err != nil {
		return nil, err
	}

	wait := q.waitTime
	if params != nil && params.WaitTime > 0 {
		wait = params.WaitTime
	}

	var out []core.Message
	for len(out) < n {
		var cmd *redis.StringCmd
		if len(out) == 0 {
			cmd = q.client.BLMove(ctx, q.pendingKey(), q.processingKey(), "RIGHT", "LEFT", wait)
		} else {
			cmd = q.client.LMove(ctx, q.pendingKey(), q.processingKey(), "RIGHT", "LEFT")
		}
		raw, err := cmd.Result()
		if errors.Is(err, redis.Nil) {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			return out, fmt.Errorf("queueworker/redis: receive from %q: %w", q.name, err)
		}
		out = append(out, decode(raw, q))
	}
	return out, nil
}

func (q *Queue) promote(ctx context.Context, limit int) error {
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)
	err := promoteScript.Run(ctx, q.client, []string{q.delayedKey(), q.pendingKey()}, now, limit).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("queueworker/redis: promote delayed messages: %w", err)
	}
	return nil
}

// Delete removes a received message from the processing list.
func (q *Queue) Delete(ctx context.Context, msg core.Message) error {
	m, ok := msg.(*message)
	if !ok || m.queue != q {
		return core.ErrForeignMessage
	}
	if err := q.client.LRem(ctx, q.processingKey(), 1, m.raw).Err(); err != nil {
		return fmt.Errorf("queueworker/redis: delete message %q: %w", m.ID(), err)
	}
	return nil
}

func (q *Queue) CanDeleteMessage() bool { return true }

// Recover moves every message left in the processing list back to the
// pending list and reports how many were moved. Run it only while no other
// worker consumes the queue.
func (q *Queue) Recover(ctx context.Context) (int, error) {
	moved := 0
	for {
		err := q.client.LMove(ctx, q.processingKey(), q.pendingKey(), "RIGHT", "RIGHT").Err()
		if errors.Is(err, redis.Nil) {
			return moved, nil
		}
		if err != nil {
			return moved, fmt.Errorf("queueworker/redis: recover %q: %w", q.name, err)
		}
		moved++
	}
}

// Await blocks on the pending list until stopped.
func (q *Queue) Await(ctx context.Context, params *core.ReceiveParams) error {
	return core.PollAwait(ctx, q, &q.Emitter, params)
}

// Close closes the client if the queue created it.
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	if q.owned {
		return q.client.Close()
	}
	return nil
}

// message is a payload popped from the pending list. raw is kept verbatim
// so Delete can remove exactly this entry.
type message struct {
	raw   string
	env   *core.Envelope
	queue *Queue
}

// decode reads a JSON envelope. Payloads pushed by other producers that are
// not envelopes become the message content as-is.
func decode(raw string, q *Queue) *message {
	var env core.Envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil || (env.MessageID == "" && len(env.Body) == 0) {
		env = core.Envelope{Body: []byte(raw)}
	}
	return &message{raw: raw, env: &env, queue: q}
}

func (m *message) ID() string                  { return m.env.ID() }
func (m *message) Content() []byte             { return m.env.Content() }
func (m *message) Metadata() map[string]string { return m.env.Metadata() }
