// Package processor holds the default processor and the strategy that
// installs it on a worker.
package processor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/miladsoleymani/queueworker/core"
)

// Forward dispatches the handler named by a message's content, passing the
// message metadata as handler parameters.
type Forward struct {
	worker *core.Worker
}

// NewForward creates an unbound Forward processor.
func NewForward() *Forward {
	return &Forward{}
}

// BindWorker sets the worker whose dispatcher runs the handlers.
func (f *Forward) BindWorker(w *core.Worker) {
	f.worker = w
}

// Process runs the named handler and returns its result.
func (f *Forward) Process(ctx context.Context, msg core.Message) (any, error) {
	if f.worker == nil {
		return nil, fmt.Errorf("%w: forward processor is not bound to a worker", core.ErrProcessing)
	}

	name := strings.TrimSpace(string(msg.Content()))
	if name == "" {
		return nil, fmt.Errorf("%w: message %q does not name a handler", core.ErrProcessing, msg.ID())
	}

	res, err := f.worker.Forward(ctx, name, msg.Metadata())
	if err != nil {
		if errors.Is(err, core.ErrProcessing) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: forward to %q: %w", core.ErrProcessing, name, err)
	}
	return res, nil
}
