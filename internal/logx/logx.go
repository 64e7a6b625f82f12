// Package logx provides the structured logging setup shared by cmd/master
// and cmd/node. Enriched from the example pack's zerolog usage
// (joeycumines-go-utilpkg/logiface-zerolog) — the teacher's own binaries
// log through a minimal embedded UART-backed println wrapper with no host
// build target, so host-side logging is sourced from the rest of the pack
// instead.
package logx

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds a console-writer zerolog.Logger tagged with component
// (e.g. "master" or "node").
func New(component string, verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return newWithWriter(os.Stdout, component, level)
}

func newWithWriter(w io.Writer, component string, level zerolog.Level) zerolog.Logger {
	cw := zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	return zerolog.New(cw).Level(level).With().
		Timestamp().
		Str("component", component).
		Logger()
}
