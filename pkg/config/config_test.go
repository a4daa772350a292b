package config

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/bazelbuild/bazel-gazelle/testtools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	terrors "github.com/stackb/jvm-transformer/pkg/errors"
	"github.com/stackb/jvm-transformer/pkg/testutil"
)

var envVars = []string{
	"TRANSFORMER_RULES",
	"TRANSFORMER_RULES_TIMEOUT",
	"TRANSFORMER_TMPDIR",
	"TRANSFORMER_LOG_FORMAT",
	"NO_COLOR",
}

// clearEnvVars unsets the variables for the duration of the test.
func clearEnvVars(t *testing.T) {
	for _, name := range envVars {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	clearEnvVars(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.Rules)
	assert.Equal(t, 30*time.Second, cfg.RulesTimeout)
	assert.Empty(t, cfg.TempDir)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.False(t, cfg.Logging.NoColor)
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	clearEnvVars(t)
	dir := t.TempDir()
	t.Setenv("TRANSFORMER_RULES", "https://example.com/rules.yaml")
	t.Setenv("TRANSFORMER_RULES_TIMEOUT", "5s")
	t.Setenv("TRANSFORMER_TMPDIR", dir)
	t.Setenv("TRANSFORMER_LOG_FORMAT", "json")
	t.Setenv("NO_COLOR", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/rules.yaml", cfg.Rules)
	assert.Equal(t, 5*time.Second, cfg.RulesTimeout)
	assert.Equal(t, dir, cfg.TempDir)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.True(t, cfg.Logging.NoColor)
}

func TestLoad_EnvFile(t *testing.T) {
	clearEnvVars(t)
	_, files := testutil.MustPrepareTestFiles(t, []testtools.FileSpec{
		{Path: EnvFile, Content: "TRANSFORMER_RULES=custom.properties\n"},
	})

	cfg, err := Load(files[0], "missing.env")
	require.NoError(t, err)
	assert.Equal(t, "custom.properties", cfg.Rules)
}

func TestLoad_InvalidValues(t *testing.T) {
	for name, tc := range map[string]struct {
		name    string
		value   string
		wantErr string
	}{
		"log format": {
			name:    "TRANSFORMER_LOG_FORMAT",
			value:   "xml",
			wantErr: "Format must be one of: console json",
		},
		"temp dir": {
			name:    "TRANSFORMER_TMPDIR",
			value:   "/does/not/exist",
			wantErr: "TempDir must be an existing directory",
		},
		"timeout": {
			name:    "TRANSFORMER_RULES_TIMEOUT",
			value:   "10ms",
			wantErr: "RulesTimeout must be at least 1s",
		},
		"unparseable timeout": {
			name:    "TRANSFORMER_RULES_TIMEOUT",
			value:   "soon",
			wantErr: "parsing environment",
		},
	} {
		t.Run(name, func(t *testing.T) {
			clearEnvVars(t)
			t.Setenv(tc.name, tc.value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
			assert.True(t, errors.Is(err, terrors.ErrArgument))
		})
	}
}
