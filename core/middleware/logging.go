package middleware

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/miladsoleymani/queueworker/core"
)

// Logging returns middleware that logs handler duration and errors using the
// global zerolog logger.
func Logging() core.MiddlewareFunc {
	return func(next core.HandlerFunc) core.HandlerFunc {
		return func(c core.Context) (any, error) {
			start := time.Now()
			res, err := next(c)
			elapsed := time.Since(start)

			if err != nil {
				log.Error().
					Err(err).
					Str("handler", c.Name()).
					Dur("elapsed", elapsed).
					Msg("handler failed")
			} else {
				log.Debug().
					Str("handler", c.Name()).
					Dur("elapsed", elapsed).
					Msg("handler done")
			}
			return res, err
		}
	}
}
