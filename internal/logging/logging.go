// Package logging builds the zerolog logger used by the command line tool.
package logging

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/miladsoleymani/queueworker/core"
)

// New returns a logger writing to out at level. Format "console" gives
// human readable output; "json" (or empty) gives one JSON object per line.
// The result also becomes the zerolog global logger.
func New(level, format string, out io.Writer) (zerolog.Logger, error) {
	lvl := zerolog.InfoLevel
	if level != "" {
		var err error
		lvl, err = zerolog.ParseLevel(strings.ToLower(level))
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("%w: log level %q", core.ErrInvalidParameter, level)
		}
	}

	switch strings.ToLower(format) {
	case "console", "text":
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	case "json", "":
	default:
		return zerolog.Nop(), fmt.Errorf("%w: log format %q", core.ErrInvalidParameter, format)
	}

	logger := zerolog.New(out).Level(lvl).With().Timestamp().Logger()
	log.Logger = logger
	return logger, nil
}
