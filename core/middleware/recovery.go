package middleware

import (
	"fmt"
	"runtime"

	"github.com/rs/zerolog/log"

	"github.com/miladsoleymani/queueworker/core"
)

// Recovery returns middleware that recovers from panics in handlers,
// logs the stack trace, and returns the panic as a processing error.
func Recovery() core.MiddlewareFunc {
	return func(next core.HandlerFunc) core.HandlerFunc {
		return func(c core.Context) (res any, err error) {
			defer func() {
				if r := recover(); r != nil {
					buf := make([]byte, 4096)
					n := runtime.Stack(buf, false)
					log.Error().
						Str("handler", c.Name()).
						Str("stack", string(buf[:n])).
						Msgf("panic recovered: %v", r)
					res = nil
					err = fmt.Errorf("%w: panic recovered: %v", core.ErrProcessing, r)
				}
			}()
			return next(c)
		}
	}
}
