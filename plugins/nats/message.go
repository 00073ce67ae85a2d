package nats

import (
	"strconv"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// message adapts a JetStream message to core.Message.
type message struct {
	msg jetstream.Msg
	id  string
}

func newMessage(msg jetstream.Msg) *message {
	m := &message{msg: msg, id: msg.Headers().Get(nats.MsgIdHdr)}
	if m.id == "" {
		if meta, err := msg.Metadata(); err == nil {
			m.id = strconv.FormatUint(meta.Sequence.Stream, 10)
		}
	}
	return m
}

func (m *message) ID() string      { return m.id }
func (m *message) Content() []byte { return m.msg.Data() }

func (m *message) Metadata() map[string]string {
	return headerMap(m.msg.Headers())
}

// headerMap flattens NATS headers to their first value. JetStream's own
// headers are dropped.
func headerMap(h nats.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		if len(v) == 0 || k == nats.MsgIdHdr {
			continue
		}
		out[k] = v[0]
	}
	return out
}
