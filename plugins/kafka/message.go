package kafka

import (
	"fmt"

	"github.com/segmentio/kafka-go"
)

// idHeader carries the sender's message ID.
const idHeader = "message-id"

// message adapts a kafka.Message to core.Message.
// It holds a reference to the reader for offset management.
type message struct {
	raw    kafka.Message
	reader *kafka.Reader
}

func (m *message) ID() string {
	for _, h := range m.raw.Headers {
		if h.Key == idHeader {
			return string(h.Value)
		}
	}
	return fmt.Sprintf("%s/%d/%d", m.raw.Topic, m.raw.Partition, m.raw.Offset)
}

func (m *message) Content() []byte { return m.raw.Value }

func (m *message) Metadata() map[string]string {
	h := make(map[string]string, len(m.raw.Headers))
	for _, kh := range m.raw.Headers {
		if kh.Key == idHeader {
			continue
		}
		h[kh.Key] = string(kh.Value)
	}
	return h
}

// toHeaders converts message metadata and ID to Kafka headers.
func toHeaders(id string, meta map[string]string) []kafka.Header {
	headers := make([]kafka.Header, 0, len(meta)+1)
	if id != "" {
		headers = append(headers, kafka.Header{Key: idHeader, Value: []byte(id)})
	}
	for k, v := range meta {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	return headers
}
