package processor_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miladsoleymani/queueworker/core"
	"github.com/miladsoleymani/queueworker/internal/mock"
	"github.com/miladsoleymani/queueworker/processor"
)

func newWorker() *core.Worker {
	return core.New(core.WithLogger(zerolog.Nop()))
}

func TestForward_Unbound(t *testing.T) {
	_, err := processor.NewForward().Process(context.Background(), &mock.Message{Id: "1", Body: []byte("x")})
	require.ErrorIs(t, err, core.ErrProcessing)
}

func TestForward_DispatchesNamedHandler(t *testing.T) {
	w := newWorker()
	w.Dispatcher().Handle("reports.daily", func(c core.Context) (any, error) {
		return map[string]string{"day": c.Param("day")}, nil
	})

	f := processor.NewForward()
	f.BindWorker(w)

	res, err := f.Process(context.Background(), &mock.Message{
		Id:   "1",
		Body: []byte(" reports.daily\n"),
		Meta: map[string]string{"day": "monday"},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"day": "monday"}, res)
}

func TestForward_Errors(t *testing.T) {
	w := newWorker()
	boom := errors.New("boom")
	w.Dispatcher().Handle("fails", func(core.Context) (any, error) { return nil, boom })

	f := processor.NewForward()
	f.BindWorker(w)

	tests := []struct {
		name string
		body string
		is   error
	}{
		{"empty content", "  ", core.ErrProcessing},
		{"unknown handler", "missing", core.ErrNoHandler},
		{"handler failure", "fails", boom},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.Process(context.Background(), &mock.Message{Id: "1", Body: []byte(tt.body)})
			require.ErrorIs(t, err, core.ErrProcessing)
			require.ErrorIs(t, err, tt.is)
		})
	}
}

func TestForwardStrategy_ProcessRendersAndWrites(t *testing.T) {
	var out bytes.Buffer
	w := newWorker()
	s := processor.NewForwardStrategy(nil, processor.WithOutput(&out))
	w.Attach(s, processor.DefaultPriority)
	w.Dispatcher().Handle("stats", func(core.Context) (any, error) {
		return map[string]int{"count": 2}, nil
	})

	res, err := w.Process(context.Background(), &mock.Message{Id: "1", Body: []byte("stats")})
	require.NoError(t, err)
	assert.Equal(t, `{"count":2}`, res)
	assert.Equal(t, "{\"count\":2}\n", out.String())
	assert.Same(t, s.Processor(), w.ProcessEvent().Processor())
}

func TestForwardStrategy_WithoutRendererKeepsRawResult(t *testing.T) {
	w := newWorker()
	w.Attach(processor.NewForwardStrategy(nil, processor.WithRenderer(nil)), processor.DefaultPriority)
	w.Dispatcher().Handle("stats", func(core.Context) (any, error) {
		return map[string]int{"count": 2}, nil
	})

	res, err := w.Process(context.Background(), &mock.Message{Id: "1", Body: []byte("stats")})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"count": 2}, res)
}

func TestForwardStrategy_Detach(t *testing.T) {
	w := newWorker()
	s := processor.NewForwardStrategy(nil)
	w.Attach(s, processor.DefaultPriority)
	s.Detach(w)

	_, err := w.Process(context.Background(), &mock.Message{Id: "1", Body: []byte("x")})
	require.ErrorIs(t, err, core.ErrNoProcessorSelected)
}

func TestForwardStrategy_HigherSelectorWins(t *testing.T) {
	w := newWorker()
	w.Attach(processor.NewForwardStrategy(nil), processor.DefaultPriority)
	w.AttachSelector(func(*core.ProcessEvent) core.Processor {
		return core.ProcessorFunc(func(context.Context, core.Message) (any, error) { return "custom", nil })
	}, 10)

	res, err := w.Process(context.Background(), &mock.Message{Id: "1", Body: []byte("unregistered")})
	require.NoError(t, err)
	assert.Equal(t, "custom", res)
}
