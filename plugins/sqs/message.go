package sqs

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// idAttribute carries the sender's message ID.
const idAttribute = "message-id"

// message adapts an SQS message to core.Message.
type message struct {
	raw   types.Message
	queue *Queue
}

func (m *message) ID() string {
	if v, ok := m.raw.MessageAttributes[idAttribute]; ok && v.StringValue != nil {
		return *v.StringValue
	}
	return aws.ToString(m.raw.MessageId)
}

func (m *message) Content() []byte { return []byte(aws.ToString(m.raw.Body)) }

func (m *message) Metadata() map[string]string {
	out := make(map[string]string, len(m.raw.MessageAttributes))
	for k, v := range m.raw.MessageAttributes {
		if k == idAttribute || v.StringValue == nil {
			continue
		}
		out[k] = *v.StringValue
	}
	return out
}

func toAttributes(id string, meta map[string]string) map[string]types.MessageAttributeValue {
	attrs := make(map[string]types.MessageAttributeValue, len(meta)+1)
	for k, v := range meta {
		attrs[k] = types.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(v)}
	}
	if id != "" {
		attrs[idAttribute] = types.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(id)}
	}
	return attrs
}
