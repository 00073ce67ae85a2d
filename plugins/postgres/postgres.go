// Package postgres implements core.Queue on a PostgreSQL table.
//
// Messages are rows. Receive claims ready rows with FOR UPDATE SKIP LOCKED
// and leases them for the visibility timeout; a lease that expires makes the
// row available again. Every claim writes a fresh lease token, and Delete
// removes the row only while the token it received still holds the lease. Send notifies waiting
// receivers through LISTEN/NOTIFY so they do not have to wait for the next
// poll.
package postgres

import (
	"cmp"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/lib/pq"
	"github.com/rs/xid"
	"github.com/rs/zerolog/log"

	"github.com/miladsoleymani/queueworker/core"
	"github.com/miladsoleymani/queueworker/queue"
)

const (
	// DefaultTable is the table used when none is configured.
	DefaultTable = "queueworker_messages"

	defaultVisibility = 5 * time.Minute
	pollStep          = time.Second
)

func init() {
	queue.Register("postgres", func(ctx context.Context, cfg queue.Config) (core.Queue, error) {
		if cfg.URL() == "" {
			return nil, fmt.Errorf("%w: postgres: a database URL is required", core.ErrInvalidParameter)
		}
		listen, err := cfg.BoolOption("listen", true)
		if err != nil {
			return nil, err
		}
		wait, err := cfg.DurationOption("wait_time", 0)
		if err != nil {
			return nil, err
		}
		visibility, err := cfg.DurationOption("visibility_timeout", 0)
		if err != nil {
			return nil, err
		}
		return New(ctx, cfg.URL(), cfg.Name,
			WithTable(cfg.Option("table", DefaultTable)),
			WithListen(listen),
			WithWaitTime(wait),
			WithVisibilityTimeout(visibility),
		)
	})
}

// Option configures the Postgres queue.
type Option func(*options)

type options struct {
	table      string
	listen     bool
	waitTime   time.Duration
	visibility time.Duration
}

// WithTable sets the message table. It is created if missing.
func WithTable(name string) Option {
	return func(o *options) {
		if name != "" {
			o.table = name
		}
	}
}

// WithListen enables LISTEN/NOTIFY wake-ups for blocking receives.
func WithListen(on bool) Option {
	return func(o *options) { o.listen = on }
}

// WithWaitTime sets the default time Receive waits for a message.
func WithWaitTime(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.waitTime = d
		}
	}
}

// WithVisibilityTimeout sets the default lease on received messages.
func WithVisibilityTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.visibility = d
		}
	}
}

// Queue implements core.Queue for one named queue in a message table.
type Queue struct {
	core.Emitter

	db       *sql.DB
	listener *pq.Listener
	name     string
	opts     options
	q        queries

	mu     sync.Mutex
	closed bool
}

type queries struct {
	insert string
	claim  string
	delete string
	notify string
}

// New opens the database at url, creates the message table if needed, and
// returns the queue named name.
func New(ctx context.Context, url, name string, fns ...Option) (*Queue, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: postgres: a queue name is required", core.ErrInvalidParameter)
	}
	opts := options{table: DefaultTable, listen: true, waitTime: time.Second, visibility: defaultVisibility}
	for _, fn := range fns {
		fn(&opts)
	}

	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("queueworker/postgres: open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("queueworker/postgres: ping database: %w", err)
	}

	q := &Queue{db: db, name: name, opts: opts, q: buildQueries(opts.table)}
	if err := q.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if opts.listen {
		q.listener = pq.NewListener(url, 100*time.Millisecond, 10*time.Second, func(ev pq.ListenerEventType, err error) {
			if err != nil {
				log.Warn().Err(err).Str("queue", name).Msg("postgres listener event")
			}
		})
		if err := q.listener.Listen(opts.table); err != nil {
			q.listener.Close()
			db.Close()
			return nil, fmt.Errorf("queueworker/postgres: listen: %w", err)
		}
	}
	return q, nil
}

func buildQueries(table string) queries {
	t := pq.QuoteIdentifier(table)
	return queries{
		insert: `INSERT INTO ` + t + ` (queue, message_id, content, metadata, run_after)
			VALUES ($1, $2, $3, $4, now() + $5 * interval '1 millisecond')`,
		claim: `UPDATE ` + t + ` SET locked_until = now() + $3 * interval '1 millisecond', lease = $4, attempts = attempts + 1
			WHERE id IN (
				SELECT id FROM ` + t + `
				WHERE queue = $1 AND run_after <= now() AND (locked_until IS NULL OR locked_until < now())
				ORDER BY run_after, id
				LIMIT $2
				FOR UPDATE SKIP LOCKED
			)
			RETURNING id, message_id, content, metadata, attempts`,
		delete: `DELETE FROM ` + t + ` WHERE id = $1 AND lease = $2 AND locked_until >= now()`,
		notify: `SELECT pg_notify($1, $2)`,
	}
}

func (q *Queue) migrate(ctx context.Context) error {
	t := pq.QuoteIdentifier(q.opts.table)
	idx := pq.QuoteIdentifier(q.opts.table + "_ready_idx")
	stmt := `CREATE TABLE IF NOT EXISTS ` + t + ` (
		id           BIGSERIAL PRIMARY KEY,
		queue        TEXT NOT NULL,
		message_id   TEXT NOT NULL,
		content      BYTEA NOT NULL,
		metadata     JSONB NOT NULL DEFAULT '{}',
		run_after    TIMESTAMPTZ NOT NULL DEFAULT now(),
		locked_until TIMESTAMPTZ,
		lease        TEXT,
		attempts     INT NOT NULL DEFAULT 0,
		enqueued_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	ALTER TABLE ` + t + ` ADD COLUMN IF NOT EXISTS lease TEXT;
	CREATE INDEX IF NOT EXISTS ` + idx + ` ON ` + t + ` (queue, run_after, id);`
	if _, err := q.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("queueworker/postgres: create table %s: %w", t, err)
	}
	return nil
}

func (q *Queue) isClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Send inserts msg, due after the send delay, and wakes listening receivers.
func (q *Queue) Send(ctx context.Context, msg core.Message, params *core.SendParams) error {
	if q.isClosed() {
		return core.ErrQueueClosed
	}

	meta := msg.Metadata()
	if meta == nil {
		meta = map[string]string{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("queueworker/postgres: encode metadata: %w", err)
	}

	var delay time.Duration
	if params != nil {
		delay = params.Delay
	}

	if _, err := q.db.ExecContext(ctx, q.q.insert, q.name, core.EnvelopeOf(msg).ID(), msg.Content(), metaJSON, delay.Milliseconds()); err != nil {
		return fmt.Errorf("queueworker/postgres: insert into %q: %w", q.name, err)
	}
	if delay == 0 {
		if _, err := q.db.ExecContext(ctx, q.q.notify, q.opts.table, q.name); err != nil {
			log.Warn().Err(err).Str("queue", q.name).Msg("postgres notify failed")
		}
	}
	return nil
}

// Receive claims up to n ready messages. While nothing is ready it waits up
// to the wait time, woken by notifications or a periodic poll.
func (q *Queue) Receive(ctx context.Context, n int, params *core.ReceiveParams) ([]core.Message, error) {
	if q.isClosed() {
		return nil, core.ErrQueueClosed
	}

	wait, visibility := q.opts.waitTime, q.opts.visibility
	if params != nil {
		if params.WaitTime > 0 {
			wait = params.WaitTime
		}
		if params.VisibilityTimeout > 0 {
			visibility = params.VisibilityTimeout
		}
	}

	var notify <-chan *pq.Notification
	if q.listener != nil {
		notify = q.listener.Notify
	}

	deadline := time.Now().Add(wait)
	for {
		msgs, err := q.claim(ctx, n, visibility)
		if err != nil || len(msgs) > 0 {
			return msgs, err
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, nil
		}
		timer := time.NewTimer(min(remaining, pollStep))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-notify:
		case <-timer.C:
		}
		timer.Stop()
	}
}

func (q *Queue) claim(ctx context.Context, n int, visibility time.Duration) ([]core.Message, error) {
	lease := xid.New().String()
	rows, err := q.db.QueryContext(ctx, q.q.claim, q.name, n, visibility.Milliseconds(), lease)
	if err != nil {
		return nil, fmt.Errorf("queueworker/postgres: claim from %q: %w", q.name, err)
	}
	defer rows.Close()

	var out []*message
	for rows.Next() {
		m := &message{queue: q, lease: lease}
		var metaJSON []byte
		if err := rows.Scan(&m.rowID, &m.id, &m.content, &metaJSON, &m.attempts); err != nil {
			return nil, fmt.Errorf("queueworker/postgres: scan message: %w", err)
		}
		if err := json.Unmarshal(metaJSON, &m.meta); err != nil {
			return nil, fmt.Errorf("queueworker/postgres: decode metadata of %q: %w", m.id, err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("queueworker/postgres: claim from %q: %w", q.name, err)
	}

	// RETURNING does not keep the subquery order
	slices.SortFunc(out, func(a, b *message) int { return cmp.Compare(a.rowID, b.rowID) })

	msgs := make([]core.Message, len(out))
	for i, m := range out {
		msgs[i] = m
	}
	return msgs, nil
}

// Delete removes a claimed message. If its lease expired the row is left in
// place, since it is due for redelivery or already claimed by another
// receiver.
func (q *Queue) Delete(ctx context.Context, msg core.Message) error {
	m, ok := msg.(*message)
	if !ok || m.queue != q {
		return core.ErrForeignMessage
	}
	res, err := q.db.ExecContext(ctx, q.q.delete, m.rowID, m.lease)
	if err != nil {
		return fmt.Errorf("queueworker/postgres: delete message %q: %w", m.id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		log.Warn().Str("message_id", m.id).Str("queue", q.name).Msg("lease expired before delete, message will be redelivered")
	}
	return nil
}

func (q *Queue) CanDeleteMessage() bool { return true }

// Await claims batches until stopped.
func (q *Queue) Await(ctx context.Context, params *core.ReceiveParams) error {
	return core.PollAwait(ctx, q, &q.Emitter, params)
}

// Close stops the listener and closes the database handle.
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true

	var errs []error
	if q.listener != nil {
		if err := q.listener.Close(); err != nil {
			errs = append(errs, fmt.Errorf("queueworker/postgres: close listener: %w", err))
		}
	}
	if err := q.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("queueworker/postgres: close database: %w", err))
	}
	return errors.Join(errs...)
}

// message is a claimed row.
type message struct {
	rowID    int64
	lease    string
	id       string
	content  []byte
	meta     map[string]string
	attempts int
	queue    *Queue
}

func (m *message) ID() string                  { return m.id }
func (m *message) Content() []byte             { return m.content }
func (m *message) Metadata() map[string]string { return m.meta }

// Attempts reports how many times the message has been claimed.
func (m *message) Attempts() int { return m.attempts }
