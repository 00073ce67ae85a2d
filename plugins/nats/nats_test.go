package nats

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miladsoleymani/queueworker/core"
	"github.com/miladsoleymani/queueworker/internal/mock"
	"github.com/miladsoleymani/queueworker/queue"
)

func TestSanitizeStreamName(t *testing.T) {
	assert.Equal(t, "jobs-eu-high", sanitizeStreamName("jobs.eu.high"))
	assert.Equal(t, "jobs--", sanitizeStreamName("jobs.>"))
}

func TestSendSubject(t *testing.T) {
	assert.Equal(t, "jobs", sendSubject("jobs", nil))
	assert.Equal(t, "jobs", sendSubject("jobs", &core.SendParams{}))
	assert.Equal(t, "jobs.high", sendSubject("jobs", &core.SendParams{Key: "high"}))
}

func TestHeaderMap(t *testing.T) {
	h := nats.Header{}
	h.Set("day", "monday")
	h.Set(nats.MsgIdHdr, "abc")
	h["empty"] = nil

	assert.Equal(t, map[string]string{"day": "monday"}, headerMap(h))
}

func TestOptsFromConfig(t *testing.T) {
	opts, err := optsFromConfig(queue.Config{Options: map[string]string{
		"ack_none":    "true",
		"max_deliver": "3",
		"ack_wait":    "10s",
		"fetch_wait":  "2",
		"storage":     "memory",
	}})
	require.NoError(t, err)

	o := defaults()
	for _, fn := range opts {
		fn(&o)
	}
	assert.Equal(t, jetstream.AckNonePolicy, o.ackPolicy)
	assert.Equal(t, 3, o.maxDeliver)
	assert.Equal(t, 10*time.Second, o.ackWait)
	assert.Equal(t, 2*time.Second, o.fetchWait)
	assert.Equal(t, jetstream.MemoryStorage, o.storage)

	_, err = optsFromConfig(queue.Config{Options: map[string]string{"max_deliver": "many"}})
	assert.ErrorIs(t, err, core.ErrInvalidParameter)
}

func TestQueue_DeleteRejectsForeignMessages(t *testing.T) {
	q := &Queue{opts: defaults()}
	err := q.Delete(context.Background(), &mock.Message{Id: "1"})
	assert.ErrorIs(t, err, core.ErrForeignMessage)
	assert.True(t, q.CanDeleteMessage())

	WithAckNone()(&q.opts)
	assert.False(t, q.CanDeleteMessage())
}

func TestFactory_RequiresURL(t *testing.T) {
	_, err := queue.Open(context.Background(), queue.Config{Driver: "nats", Name: "jobs"})
	assert.ErrorIs(t, err, core.ErrInvalidParameter)
}
