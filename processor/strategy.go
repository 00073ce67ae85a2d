package processor

import (
	"fmt"
	"io"
	"strings"

	"github.com/miladsoleymani/queueworker/core"
)

// DefaultPriority is the low priority at which the forward strategy is
// attached, so any other selector gets a chance first.
const DefaultPriority = 1

// ForwardStrategy selects the Forward processor for every message and
// renders its result.
type ForwardStrategy struct {
	processor *Forward
	renderer  Renderer
	out       io.Writer
	handles   []core.ListenerHandle
}

// StrategyOption configures a ForwardStrategy.
type StrategyOption func(*ForwardStrategy)

// WithRenderer replaces the result renderer. A nil renderer leaves results
// untouched.
func WithRenderer(r Renderer) StrategyOption {
	return func(s *ForwardStrategy) { s.renderer = r }
}

// WithOutput writes every rendered result to out.
func WithOutput(out io.Writer) StrategyOption {
	return func(s *ForwardStrategy) { s.out = out }
}

// NewForwardStrategy creates a strategy around p, or a new Forward when p is nil.
func NewForwardStrategy(p *Forward, opts ...StrategyOption) *ForwardStrategy {
	if p == nil {
		p = NewForward()
	}
	s := &ForwardStrategy{processor: p, renderer: TextRenderer{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Processor returns the composed Forward processor.
func (s *ForwardStrategy) Processor() *Forward { return s.processor }

// Attach registers the selector and the render hook on w.
func (s *ForwardStrategy) Attach(w *core.Worker, priority int) {
	s.handles = append(s.handles,
		w.AttachSelector(s.SelectProcessor, priority),
		w.AttachPostProcess(s.PostProcess, priority),
	)
}

// Detach removes every listener attached by this strategy from w.
func (s *ForwardStrategy) Detach(w *core.Worker) {
	kept := s.handles[:0]
	for _, h := range s.handles {
		if !w.Detach(h) {
			kept = append(kept, h)
		}
	}
	s.handles = kept
}

// SelectProcessor always selects the Forward processor.
func (s *ForwardStrategy) SelectProcessor(*core.ProcessEvent) core.Processor {
	return s.processor
}

// PostProcess renders the result in place and echoes it to the output.
func (s *ForwardStrategy) PostProcess(e *core.ProcessEvent) error {
	if s.renderer == nil {
		return nil
	}

	rendered, err := s.renderer.Render(e.Result())
	if err != nil {
		return fmt.Errorf("queueworker: render result: %w", err)
	}
	e.SetResult(rendered)

	if s.out != nil && rendered != "" {
		if !strings.HasSuffix(rendered, "\n") {
			rendered += "\n"
		}
		if _, err := io.WriteString(s.out, rendered); err != nil {
			return fmt.Errorf("queueworker: write result: %w", err)
		}
	}
	return nil
}
