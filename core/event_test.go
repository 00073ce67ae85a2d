package core_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miladsoleymani/queueworker/core"
)

func TestProcessEvent_Accessors(t *testing.T) {
	ev := core.NewProcessEvent()
	assert.NotNil(t, ev.Context())
	assert.Nil(t, ev.Message())
	assert.Nil(t, ev.Processor())
	assert.Nil(t, ev.Result())

	m := msg("1", "a")
	w := newWorker()
	ev.SetMessage(m).SetProcessor(echo).SetResult(42).SetWorker(w)

	assert.Equal(t, core.Message(m), ev.Message())
	assert.NotNil(t, ev.Processor())
	assert.Equal(t, 42, ev.Result())
	assert.Same(t, w, ev.Worker())
}

func TestProcessEvent_Params(t *testing.T) {
	ev := core.NewProcessEvent()
	m := msg("1", "a")

	require.NoError(t, ev.SetParams(map[string]any{
		core.ParamMessage: m,
		core.ParamResult:  "done",
		"attempt":         3,
	}))

	assert.Equal(t, core.Message(m), ev.Message())
	assert.Equal(t, "done", ev.Param(core.ParamResult, nil))
	assert.Equal(t, 3, ev.Param("attempt", 0))
	assert.Equal(t, "fallback", ev.Param("missing", "fallback"))

	params := ev.Params()
	assert.Equal(t, core.Message(m), params[core.ParamMessage])
	assert.Equal(t, "done", params[core.ParamResult])
	assert.Equal(t, 3, params["attempt"])
	assert.Contains(t, params, core.ParamProcessor)
}

func TestProcessEvent_SetParamRejectsWrongTypes(t *testing.T) {
	ev := core.NewProcessEvent()

	err := ev.SetParam(core.ParamMessage, "not a message")
	require.ErrorIs(t, err, core.ErrInvalidParameter)

	err = ev.SetParam(core.ParamProcessor, 12)
	require.ErrorIs(t, err, core.ErrInvalidParameter)

	require.NoError(t, ev.SetParam(core.ParamProcessor, nil))
	assert.Nil(t, ev.Processor())
}

func TestProcessEvent_ContextFollowsDispatch(t *testing.T) {
	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "v")

	w := newWorker()
	var seen any
	w.AttachSelector(func(e *core.ProcessEvent) core.Processor {
		seen = e.Context().Value(key{})
		return echo
	}, 1)

	_, err := w.Process(ctx, msg("1", "x"))
	require.NoError(t, err)
	assert.Equal(t, "v", seen)
}
