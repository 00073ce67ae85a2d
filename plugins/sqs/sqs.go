// Package sqs implements core.Queue on Amazon SQS using aws-sdk-go-v2.
package sqs

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/miladsoleymani/queueworker/core"
	"github.com/miladsoleymani/queueworker/queue"
)

// SQS limits.
const (
	maxBatch    = 10
	maxWaitTime = 20 * time.Second
	maxDelay    = 15 * time.Minute
)

func init() {
	queue.Register("sqs", func(ctx context.Context, cfg queue.Config) (core.Queue, error) {
		opts, err := optsFromConfig(cfg)
		if err != nil {
			return nil, err
		}
		return New(ctx, cfg.Region, cfg.Name, opts...)
	})
}

// SQSClientInterface is the subset of the SQS client used by Queue.
type SQSClientInterface interface {
	GetQueueUrl(ctx context.Context, params *sqs.GetQueueUrlInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error)
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// Queue implements core.Queue for one SQS queue.
//
// Design decisions:
//   - Receive long-polls; batches are capped at SQS's limit of 10.
//   - Delete removes the message by receipt handle.
//   - FIFO queues (".fifo" suffix) use the send key as message group and the
//     message ID for deduplication.
type Queue struct {
	core.Emitter

	client   SQSClientInterface
	queueURL string
	fifo     bool
	opts     options

	mu     sync.Mutex
	closed bool
}

// New loads the default AWS configuration for region and resolves name,
// which may be a queue name or a full queue URL.
func New(ctx context.Context, region, name string, fns ...Option) (*Queue, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: sqs: a queue name or URL is required", core.ErrInvalidParameter)
	}
	opts := defaults()
	for _, fn := range fns {
		fn(&opts)
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("queueworker/sqs: load aws config: %w", err)
	}

	client := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
		if opts.endpoint != "" {
			o.BaseEndpoint = aws.String(opts.endpoint)
		}
	})

	queueURL := name
	if !strings.HasPrefix(name, "https://") && !strings.HasPrefix(name, "http://") {
		out, err := client.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{QueueName: aws.String(name)})
		if err != nil {
			return nil, fmt.Errorf("queueworker/sqs: resolve queue %q: %w", name, err)
		}
		queueURL = aws.ToString(out.QueueUrl)
	}

	return NewWithClient(client, queueURL, fns...), nil
}

// NewWithClient creates a Queue for queueURL using an existing client.
func NewWithClient(client SQSClientInterface, queueURL string, fns ...Option) *Queue {
	opts := defaults()
	for _, fn := range fns {
		fn(&opts)
	}
	return &Queue{
		client:   client,
		queueURL: queueURL,
		fifo:     strings.HasSuffix(queueURL, ".fifo"),
		opts:     opts,
	}
}

func (q *Queue) isClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Send enqueues msg. Metadata travels as string message attributes.
func (q *Queue) Send(ctx context.Context, msg core.Message, params *core.SendParams) error {
	if q.isClosed() {
		return core.ErrQueueClosed
	}

	in := &sqs.SendMessageInput{
		QueueUrl:          aws.String(q.queueURL),
		MessageBody:       aws.String(string(msg.Content())),
		MessageAttributes: toAttributes(msg.ID(), msg.Metadata()),
	}

	if params != nil && params.Delay > 0 {
		if params.Delay > maxDelay {
			return fmt.Errorf("%w: sqs: delay %s exceeds %s", core.ErrInvalidParameter, params.Delay, maxDelay)
		}
		in.DelaySeconds = int32(params.Delay / time.Second)
	}

	if q.fifo {
		group := "default"
		if params != nil && params.Key != "" {
			group = params.Key
		}
		in.MessageGroupId = aws.String(group)
		in.MessageDeduplicationId = aws.String(msg.ID())
		// per-message delays are rejected on FIFO queues
		in.DelaySeconds = 0
	}

	if _, err := q.client.SendMessage(ctx, in); err != nil {
		return fmt.Errorf("queueworker/sqs: send: %w", err)
	}
	return nil
}

// Receive long-polls for up to n messages (at most 10).
func (q *Queue) Receive(ctx context.Context, n int, params *core.ReceiveParams) ([]core.Message, error) {
	if q.isClosed() {
		return nil, core.ErrQueueClosed
	}

	wait, visibility := q.opts.waitTime, q.opts.visibilityTimeout
	if params != nil {
		if params.WaitTime > 0 {
			wait = params.WaitTime
		}
		if params.VisibilityTimeout > 0 {
			visibility = params.VisibilityTimeout
		}
	}

	in := &sqs.ReceiveMessageInput{
		QueueUrl:              aws.String(q.queueURL),
		MaxNumberOfMessages:   int32(min(max(n, 1), maxBatch)),
		WaitTimeSeconds:       int32(min(wait, maxWaitTime) / time.Second),
		MessageAttributeNames: []string{"All"},
	}
	if visibility > 0 {
		in.VisibilityTimeout = int32(visibility / time.Second)
	}

	out, err := q.client.ReceiveMessage(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("queueworker/sqs: receive: %w", err)
	}

	msgs := make([]core.Message, 0, len(out.Messages))
	for _, raw := range out.Messages {
		msgs = append(msgs, &message{raw: raw, queue: q})
	}
	return msgs, nil
}

// Delete removes a message received from this queue.
func (q *Queue) Delete(ctx context.Context, msg core.Message) error {
	m, ok := msg.(*message)
	if !ok || m.queue != q {
		return core.ErrForeignMessage
	}
	if _, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.queueURL),
		ReceiptHandle: m.raw.ReceiptHandle,
	}); err != nil {
		return fmt.Errorf("queueworker/sqs: delete message %q: %w", m.ID(), err)
	}
	return nil
}

func (q *Queue) CanDeleteMessage() bool { return true }

// Await long-polls until stopped.
func (q *Queue) Await(ctx context.Context, params *core.ReceiveParams) error {
	return core.PollAwait(ctx, q, &q.Emitter, params)
}

// Close marks the queue closed. The SQS client holds no connection of its own.
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	return nil
}
