package middleware

import (
	"time"

	"github.com/miladsoleymani/queueworker/core"
)

// MetricsCollector is the interface that metrics backends must implement.
// This keeps the middleware decoupled from any specific metrics library.
type MetricsCollector interface {
	// HandlerCalled records one handler invocation. name is the handler name
	// taken from the message, duration is processing time, and err is nil on
	// success.
	HandlerCalled(name string, duration time.Duration, err error)
}

// Metrics returns middleware that reports handler metrics to the given collector.
func Metrics(collector MetricsCollector) core.MiddlewareFunc {
	return func(next core.HandlerFunc) core.HandlerFunc {
		return func(c core.Context) (any, error) {
			start := time.Now()
			res, err := next(c)
			collector.HandlerCalled(c.Name(), time.Since(start), err)
			return res, err
		}
	}
}
