package core

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// Serializer converts messages to and from a single printable string, the
// form in which a message reaches the "process" action of a Request.
type Serializer interface {
	Serialize(m Message) (string, error)
	Unserialize(s string) (Message, error)
}

// Base64JSON encodes messages as base64 (URL-safe, unpadded) JSON envelopes.
type Base64JSON struct{}

func (Base64JSON) Serialize(m Message) (string, error) {
	if isNilMessage(m) {
		return "", fmt.Errorf("%w: nil message", ErrInvalidParameter)
	}
	data, err := json.Marshal(EnvelopeOf(m))
	if err != nil {
		return "", fmt.Errorf("queueworker: serialize: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

func (Base64JSON) Unserialize(s string) (Message, error) {
	s = strings.TrimRight(strings.TrimSpace(s), "=")
	if s == "" {
		return nil, fmt.Errorf("%w: missing message", ErrInvalidParameter)
	}

	data, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		// accept the standard alphabet too
		data, err = base64.RawStdEncoding.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("%w: message is not base64: %v", ErrInvalidParameter, err)
		}
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: message is not a JSON envelope: %v", ErrInvalidParameter, err)
	}
	return &env, nil
}
