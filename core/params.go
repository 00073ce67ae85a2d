package core

import (
	"encoding/json"
	"fmt"
	"maps"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ReceiveParams tunes how a queue receives messages. The worker only passes
// them through; adapters read the fields they support and may look up
// driver-specific keys in Options.
type ReceiveParams struct {
	// BatchSize is the number of messages requested per poll during Await.
	BatchSize int
	// WaitTime is the long-poll duration for a single receive.
	WaitTime time.Duration
	// VisibilityTimeout hides received messages from other consumers.
	VisibilityTimeout time.Duration
	// IdleTimeout ends Await after this long without messages. Zero waits forever.
	IdleTimeout time.Duration
	// PollInterval is slept after an empty poll during Await.
	PollInterval time.Duration

	Options map[string]string
}

// SendParams tunes how a queue sends a message.
type SendParams struct {
	// Delay postpones delivery, where the queue supports it.
	Delay time.Duration
	// Key is the routing, partition or group key, depending on the queue.
	Key string

	Options map[string]string
}

// Option returns an adapter-specific option or def.
func (p *ReceiveParams) Option(key, def string) string {
	if p == nil {
		return def
	}
	if v, ok := p.Options[key]; ok {
		return v
	}
	return def
}

// Option returns an adapter-specific option or def.
func (p *SendParams) Option(key, def string) string {
	if p == nil {
		return def
	}
	if v, ok := p.Options[key]; ok {
		return v
	}
	return def
}

// ParseReceiveParams normalizes v into ReceiveParams. Accepted inputs are
// nil, ReceiveParams, *ReceiveParams, a string in URL query form
// ("wait_time=20s&batch_size=5") or JSON object form, and
// map[string]string / map[string]any. A nil result means "queue defaults".
func ParseReceiveParams(v any) (*ReceiveParams, error) {
	switch p := v.(type) {
	case nil:
		return nil, nil
	case *ReceiveParams:
		return p, nil
	case ReceiveParams:
		return &p, nil
	}

	values, err := paramValues(v, "receive")
	if err != nil {
		return nil, err
	}

	p := &ReceiveParams{Options: map[string]string{}}
	for k, raw := range values {
		switch normalizeKey(k) {
		case "batch_size", "max_messages":
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				return nil, fmt.Errorf("%w: receive parameter %q: %q is not a non-negative integer", ErrInvalidParameter, k, raw)
			}
			p.BatchSize = n
		case "wait_time", "wait":
			if p.WaitTime, err = parseDuration(k, raw); err != nil {
				return nil, err
			}
		case "visibility_timeout", "visibility":
			if p.VisibilityTimeout, err = parseDuration(k, raw); err != nil {
				return nil, err
			}
		case "idle_timeout":
			if p.IdleTimeout, err = parseDuration(k, raw); err != nil {
				return nil, err
			}
		case "poll_interval":
			if p.PollInterval, err = parseDuration(k, raw); err != nil {
				return nil, err
			}
		default:
			p.Options[k] = raw
		}
	}
	return p, nil
}

// ParseSendParams normalizes v into SendParams, accepting the same input
// shapes as ParseReceiveParams.
func ParseSendParams(v any) (*SendParams, error) {
	switch p := v.(type) {
	case nil:
		return nil, nil
	case *SendParams:
		return p, nil
	case SendParams:
		return &p, nil
	}

	values, err := paramValues(v, "send")
	if err != nil {
		return nil, err
	}

	p := &SendParams{Options: map[string]string{}}
	for k, raw := range values {
		switch normalizeKey(k) {
		case "delay":
			if p.Delay, err = parseDuration(k, raw); err != nil {
				return nil, err
			}
		case "key", "routing_key", "partition_key":
			p.Key = raw
		default:
			p.Options[k] = raw
		}
	}
	return p, nil
}

// paramValues flattens the accepted string and map shapes into string values.
func paramValues(v any, kind string) (map[string]string, error) {
	switch p := v.(type) {
	case string:
		return parseParamString(p, kind)
	case map[string]string:
		return maps.Clone(p), nil
	case map[string]any:
		out := make(map[string]string, len(p))
		for k, val := range p {
			s, err := scalarString(val)
			if err != nil {
				return nil, fmt.Errorf("%w: %s parameter %q: %v", ErrInvalidParameter, kind, k, err)
			}
			out[k] = s
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %s parameters must be nil, a string, a map or a %sParams value; got %T",
			ErrInvalidParameter, kind, titleCase(kind), v)
	}
}

func parseParamString(s, kind string) (map[string]string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return map[string]string{}, nil
	}

	if strings.HasPrefix(s, "{") {
		var raw map[string]any
		if err := json.Unmarshal([]byte(s), &raw); err != nil {
			return nil, fmt.Errorf("%w: %s parameters: %v", ErrInvalidParameter, kind, err)
		}
		return paramValues(raw, kind)
	}

	q, err := url.ParseQuery(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %s parameters: %v", ErrInvalidParameter, kind, err)
	}
	out := make(map[string]string, len(q))
	for k, vals := range q {
		if len(vals) > 0 {
			out[k] = vals[len(vals)-1]
		}
	}
	return out, nil
}

func scalarString(v any) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case bool:
		return strconv.FormatBool(t), nil
	case int:
		return strconv.Itoa(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case time.Duration:
		return t.String(), nil
	case fmt.Stringer:
		return t.String(), nil
	default:
		return "", fmt.Errorf("unsupported value type %T", v)
	}
}

// parseDuration accepts Go duration strings and plain integer seconds.
func parseDuration(key, raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if n, err := strconv.ParseFloat(raw, 64); err == nil {
		if n < 0 {
			return 0, fmt.Errorf("%w: %q must not be negative", ErrInvalidParameter, key)
		}
		return time.Duration(n * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%w: %q: %q is not a valid duration", ErrInvalidParameter, key, raw)
	}
	return d, nil
}

func normalizeKey(k string) string {
	k = strings.ToLower(strings.TrimSpace(k))
	k = strings.ReplaceAll(k, "-", "_")
	switch k {
	case "batchsize":
		return "batch_size"
	case "maxmessages":
		return "max_messages"
	case "waittime":
		return "wait_time"
	case "visibilitytimeout":
		return "visibility_timeout"
	case "idletimeout":
		return "idle_timeout"
	case "pollinterval":
		return "poll_interval"
	case "routingkey":
		return "routing_key"
	case "partitionkey":
		return "partition_key"
	}
	return k
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
