package rabbitmq

import "github.com/miladsoleymani/queueworker/queue"

// Option configures the RabbitMQ queue.
type Option func(*options)

type options struct {
	// Exchange settings
	exchange     string
	exchangeType string
	routingKey   string

	// Queue settings
	durable    bool
	autoDelete bool
	exclusive  bool

	// Consumer settings
	autoAck bool
}

func defaults() options {
	return options{
		exchange:     "",       // default exchange
		exchangeType: "direct", // direct, fanout, topic, headers
		durable:      true,
	}
}

// WithExchange sets the exchange name and type.
func WithExchange(name, kind string) Option {
	return func(o *options) {
		o.exchange = name
		o.exchangeType = kind
	}
}

// WithRoutingKey sets the routing key for queue binding and publishing.
func WithRoutingKey(key string) Option {
	return func(o *options) { o.routingKey = key }
}

// WithDurable controls whether queues survive broker restart.
func WithDurable(d bool) Option {
	return func(o *options) { o.durable = d }
}

// WithAutoDelete causes the queue to be deleted when the last consumer disconnects.
func WithAutoDelete(d bool) Option {
	return func(o *options) { o.autoDelete = d }
}

// WithAutoAck makes the broker consider messages acknowledged once they are
// received. The worker then never deletes messages.
func WithAutoAck(a bool) Option {
	return func(o *options) { o.autoAck = a }
}

// optsFromConfig extracts options from queue.Config.Options.
func optsFromConfig(cfg queue.Config) ([]Option, error) {
	var opts []Option
	if ex := cfg.Option("exchange", ""); ex != "" {
		opts = append(opts, WithExchange(ex, cfg.Option("exchange_type", "direct")))
	}
	if rk := cfg.Option("routing_key", ""); rk != "" {
		opts = append(opts, WithRoutingKey(rk))
	}
	durable, err := cfg.BoolOption("durable", true)
	if err != nil {
		return nil, err
	}
	autoAck, err := cfg.BoolOption("auto_ack", false)
	if err != nil {
		return nil, err
	}
	autoDelete, err := cfg.BoolOption("auto_delete", false)
	if err != nil {
		return nil, err
	}
	return append(opts, WithDurable(durable), WithAutoAck(autoAck), WithAutoDelete(autoDelete)), nil
}
