package main

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// handlerStats collects per-handler call counts for the metrics middleware
// and logs them when the command ends.
type handlerStats struct {
	mu    sync.Mutex
	calls map[string]*handlerCount
}

type handlerCount struct {
	calls  int
	errors int
	total  time.Duration
}

func newHandlerStats() *handlerStats {
	return &handlerStats{calls: map[string]*handlerCount{}}
}

func (s *handlerStats) HandlerCalled(name string, d time.Duration, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.calls[name]
	if !ok {
		c = &handlerCount{}
		s.calls[name] = c
	}
	c.calls++
	c.total += d
	if err != nil {
		c.errors++
	}
}

func (s *handlerStats) log(logger zerolog.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.calls))
	for name := range s.calls {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		c := s.calls[name]
		logger.Info().
			Str("handler", name).
			Int("calls", c.calls).
			Int("errors", c.errors).
			Dur("avg", c.total/time.Duration(c.calls)).
			Msg("handler stats")
	}
}
