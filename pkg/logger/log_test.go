package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerbosityLevel(t *testing.T) {
	for name, tc := range map[string]struct {
		v    Verbosity
		want zerolog.Level
	}{
		"terse":   {v: Terse, want: zerolog.WarnLevel},
		"normal":  {v: Normal, want: zerolog.InfoLevel},
		"verbose": {v: Verbose, want: zerolog.DebugLevel},
	} {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.v.Level())
		})
	}
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(&buf, Options{Format: FormatJSON})
	require.NoError(t, err)

	log.Debug().Msg("hidden")
	log.Info().Str("input", "app.war").Msg("Input from war file")

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got), buf.String())
	assert.Equal(t, "info", got["level"])
	assert.Equal(t, "app.war", got["input"])
	assert.Equal(t, "Input from war file", got["message"])
	assert.NotContains(t, buf.String(), "hidden")
}

func TestNewConsole(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(&buf, Options{Verbosity: Verbose, NoColor: true})
	require.NoError(t, err)
	log.Debug().Msg("Class name [ a.B ] -> [ c.B ]")
	assert.Contains(t, buf.String(), "DBG")
	assert.Contains(t, buf.String(), "Class name [ a.B ] -> [ c.B ]")
}

func TestNewUnknownFormat(t *testing.T) {
	_, err := New(&bytes.Buffer{}, Options{Format: "xml"})
	assert.Error(t, err)
}
