package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Options controls logger construction
type Options struct {
	Level string
	Debug bool
	JSON  bool
	// Output defaults to stderr so stdout stays free for command output
	Output io.Writer
}

// NewLogger builds the process logger. Console output is human readable;
// JSON output is one event per line.
func NewLogger(opts Options) zerolog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	if !opts.JSON {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}

	return zerolog.New(out).
		Level(ParseLevel(opts.Level, opts.Debug)).
		With().
		Timestamp().
		Logger()
}

// ParseLevel maps a config log level to zerolog. debug forces DebugLevel;
// unknown values fall back to info.
func ParseLevel(level string, debug bool) zerolog.Level {
	if debug {
		return zerolog.DebugLevel
	}
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
