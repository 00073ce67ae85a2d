package core

import (
	"os"
	"os/signal"
)

// signalWatch delivers OS signals to a single worker. Pending signals are
// only observed when the worker polls its stop flag.
type signalWatch struct {
	ch chan os.Signal
}

func newSignalWatch(sigs []os.Signal) *signalWatch {
	s := &signalWatch{ch: make(chan os.Signal, 1)}
	signal.Notify(s.ch, sigs...)
	return s
}

// pending drains every queued notification and reports the last one.
func (s *signalWatch) pending() (os.Signal, bool) {
	var (
		last os.Signal
		got  bool
	)
	for {
		select {
		case sig := <-s.ch:
			last, got = sig, true
		default:
			return last, got
		}
	}
}

func (s *signalWatch) stop() {
	signal.Stop(s.ch)
}
