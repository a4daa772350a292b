// Package logger builds the zerolog loggers handed to the transformer
// components.
package logger

import (
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
)

// Verbosity selects how much is logged.
type Verbosity int

const (
	// Terse logs warnings and errors only.
	Terse Verbosity = iota - 1
	// Normal logs the transform summary.
	Normal
	// Verbose logs every resource and class processed.
	Verbose
)

// Level returns the zerolog level of v.
func (v Verbosity) Level() zerolog.Level {
	switch {
	case v < Normal:
		return zerolog.WarnLevel
	case v > Normal:
		return zerolog.DebugLevel
	default:
		return zerolog.InfoLevel
	}
}

// Output formats.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Options configures New.
type Options struct {
	// Format is FormatConsole or FormatJSON. Empty means console.
	Format    string
	Verbosity Verbosity
	// NoColor disables console colors.
	NoColor bool
}

// New returns a logger writing to w.
func New(w io.Writer, opts Options) (zerolog.Logger, error) {
	var out io.Writer
	switch opts.Format {
	case "", FormatConsole:
		out = zerolog.ConsoleWriter{
			Out:        w,
			NoColor:    opts.NoColor,
			TimeFormat: time.TimeOnly,
		}
	case FormatJSON:
		out = w
	default:
		return zerolog.Nop(), fmt.Errorf("unknown log format %q", opts.Format)
	}
	return zerolog.New(out).
		Level(opts.Verbosity.Level()).
		With().
		Timestamp().
		Logger(), nil
}
