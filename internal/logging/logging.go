// Package logging builds the zerolog logger shared by the router and the CLI.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Options selects the log destination and format.
type Options struct {
	Writer  io.Writer
	Level   string
	Console bool
}

// New returns a logger writing to opts.Writer (stderr when nil). An empty
// level means "info". Console selects the human-readable console writer.
func New(opts Options) (zerolog.Logger, error) {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	level := zerolog.InfoLevel
	if opts.Level != "" {
		l, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("log level %q: %w", opts.Level, err)
		}
		level = l
	}
	if opts.Console {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger(), nil
}
