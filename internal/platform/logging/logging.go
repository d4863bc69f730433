// Package logging builds the process logger.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"go.elastic.co/ecszerolog"
)

// New returns a logger writing to w in the given format: "console" for a
// human-readable developer stream, "ecs" for Elastic Common Schema JSON, and
// plain zerolog JSON otherwise. Unknown levels fall back to info.
func New(w io.Writer, format, level string) zerolog.Logger {
	if w == nil {
		w = os.Stdout
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	var ctx zerolog.Context
	switch format {
	case "console":
		ctx = zerolog.New(zerolog.ConsoleWriter{Out: w}).With().Timestamp()
	case "ecs":
		// ecszerolog stamps @timestamp and ecs.version itself.
		ctx = ecszerolog.New(w).With()
	default:
		ctx = zerolog.New(w).With().Timestamp()
	}

	return ctx.Str("service", "careconnect").Logger().Level(lvl)
}
