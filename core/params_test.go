package core_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miladsoleymani/queueworker/core"
)

func TestParseReceiveParams(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want *core.ReceiveParams
	}{
		{"nil", nil, nil},
		{
			name: "query string",
			in:   "wait_time=20&batch_size=5&visibility=1m&group=g1",
			want: &core.ReceiveParams{
				BatchSize:         5,
				WaitTime:          20 * time.Second,
				VisibilityTimeout: time.Minute,
				Options:           map[string]string{"group": "g1"},
			},
		},
		{
			name: "json object",
			in:   `{"idle_timeout":"2s","poll_interval":0.5,"max_messages":3}`,
			want: &core.ReceiveParams{
				BatchSize:    3,
				IdleTimeout:  2 * time.Second,
				PollInterval: 500 * time.Millisecond,
				Options:      map[string]string{},
			},
		},
		{
			name: "string map with mixed case keys",
			in:   map[string]string{"WaitTime": "5s", "Batch-Size": "2"},
			want: &core.ReceiveParams{
				BatchSize: 2,
				WaitTime:  5 * time.Second,
				Options:   map[string]string{},
			},
		},
		{
			name: "any map",
			in:   map[string]any{"wait": 1, "ack_none": true},
			want: &core.ReceiveParams{
				WaitTime: time.Second,
				Options:  map[string]string{"ack_none": "true"},
			},
		},
		{
			name: "empty string",
			in:   "",
			want: &core.ReceiveParams{Options: map[string]string{}},
		},
		{
			name: "value",
			in:   core.ReceiveParams{BatchSize: 7},
			want: &core.ReceiveParams{BatchSize: 7},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := core.ParseReceiveParams(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseReceiveParams_PointerPassesThrough(t *testing.T) {
	p := &core.ReceiveParams{BatchSize: 4}
	got, err := core.ParseReceiveParams(p)
	require.NoError(t, err)
	assert.Same(t, p, got)
}

func TestParseReceiveParams_Invalid(t *testing.T) {
	for _, in := range []any{
		42,
		[]string{"wait_time=1"},
		"batch_size=abc",
		"wait_time=-1",
		"wait_time=soon",
		`{"wait_time":`,
		map[string]any{"nested": map[string]any{}},
	} {
		_, err := core.ParseReceiveParams(in)
		assert.ErrorIs(t, err, core.ErrInvalidParameter, "input %#v", in)
	}
}

func TestParseSendParams(t *testing.T) {
	got, err := core.ParseSendParams("delay=30&routing_key=jobs.high&priority=9")
	require.NoError(t, err)
	assert.Equal(t, &core.SendParams{
		Delay:   30 * time.Second,
		Key:     "jobs.high",
		Options: map[string]string{"priority": "9"},
	}, got)

	got, err = core.ParseSendParams(nil)
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = core.ParseSendParams(3.5)
	assert.ErrorIs(t, err, core.ErrInvalidParameter)
}

func TestParams_Option(t *testing.T) {
	var rp *core.ReceiveParams
	assert.Equal(t, "d", rp.Option("x", "d"))

	rp = &core.ReceiveParams{Options: map[string]string{"x": "1"}}
	assert.Equal(t, "1", rp.Option("x", "d"))

	var sp *core.SendParams
	assert.Equal(t, "d", sp.Option("x", "d"))
}
