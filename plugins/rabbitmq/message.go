package rabbitmq

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// message adapts an amqp.Delivery to core.Message.
type message struct {
	delivery amqp.Delivery
}

func (m *message) ID() string {
	if m.delivery.MessageId != "" {
		return m.delivery.MessageId
	}
	return fmt.Sprintf("%d", m.delivery.DeliveryTag)
}

func (m *message) Content() []byte { return m.delivery.Body }

func (m *message) Metadata() map[string]string {
	return tableMap(m.delivery.Headers)
}

func tableMap(t amqp.Table) map[string]string {
	h := make(map[string]string, len(t))
	for k, v := range t {
		if s, ok := v.(string); ok {
			h[k] = s
		} else {
			h[k] = fmt.Sprintf("%v", v)
		}
	}
	return h
}
