package core

import (
	"bytes"
	"maps"
	"reflect"

	"github.com/rs/xid"
)

// Message is the queue-agnostic unit of work: an opaque content payload plus
// string metadata. Queue adapters provide their own implementations; the
// worker only reads from it.
type Message interface {
	ID() string
	Content() []byte
	Metadata() map[string]string
}

// Envelope is the concrete Message used for sending and for messages decoded
// by a Serializer.
type Envelope struct {
	MessageID string            `json:"id"`
	Body      []byte            `json:"content"`
	Meta      map[string]string `json:"metadata,omitempty"`
}

// NewMessage creates an Envelope with a fresh ID.
//
//	msg := core.NewMessage([]byte("reports.daily"), map[string]string{"day": "monday"})
func NewMessage(content []byte, metadata map[string]string) *Envelope {
	return &Envelope{
		MessageID: xid.New().String(),
		Body:      bytes.Clone(content),
		Meta:      maps.Clone(metadata),
	}
}

// EnvelopeOf copies any Message into an Envelope. Adapters use it to encode
// messages for transports that carry a single body.
func EnvelopeOf(m Message) *Envelope {
	if e, ok := m.(*Envelope); ok {
		return e
	}
	id := m.ID()
	if id == "" {
		id = xid.New().String()
	}
	return &Envelope{MessageID: id, Body: bytes.Clone(m.Content()), Meta: maps.Clone(m.Metadata())}
}

func (e *Envelope) ID() string                  { return e.MessageID }
func (e *Envelope) Content() []byte             { return e.Body }
func (e *Envelope) Metadata() map[string]string { return e.Meta }

// isNilMessage reports whether m is empty, including typed nil pointers
// hidden behind the interface.
func isNilMessage(m Message) bool {
	if m == nil {
		return true
	}
	v := reflect.ValueOf(m)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Interface, reflect.Chan:
		return v.IsNil()
	}
	return false
}
