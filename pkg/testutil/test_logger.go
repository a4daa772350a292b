package testutil

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
)

// NewTestLogger creates a debug level logger that forwards log messages to
// t.Log in console format.
func NewTestLogger(t *testing.T) zerolog.Logger {
	return zerolog.New(zerolog.NewConsoleWriter(zerolog.ConsoleTestWriter(t))).
		Level(zerolog.DebugLevel).
		With().Timestamp().Logger()
}

// LogCapture is a logger that records JSON log lines for assertions.
type LogCapture struct {
	buf bytes.Buffer
}

// NewLogCapture creates a LogCapture.
func NewLogCapture() *LogCapture {
	return &LogCapture{}
}

// Logger returns a debug level logger writing to the capture.
func (c *LogCapture) Logger() zerolog.Logger {
	return zerolog.New(&c.buf).Level(zerolog.DebugLevel)
}

// String returns everything logged so far.
func (c *LogCapture) String() string {
	return c.buf.String()
}
