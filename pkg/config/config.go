// Package config holds the environment defaults of the transformer command.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	terrors "github.com/stackb/jvm-transformer/pkg/errors"
)

// EnvFile is the optional dotenv file read from the working directory.
const EnvFile = ".transformer.env"

// Config holds settings taken from the environment. Command line flags
// override them.
type Config struct {
	// Rules is the default rules reference, used when -x is not given.
	Rules string `env:"TRANSFORMER_RULES"`

	// RulesTimeout bounds the download of rules given as an http(s) URL.
	RulesTimeout time.Duration `env:"TRANSFORMER_RULES_TIMEOUT" envDefault:"30s" validate:"min=1s"`

	// TempDir is where non seekable archives are spooled. Empty means the
	// system temporary directory.
	TempDir string `env:"TRANSFORMER_TMPDIR" validate:"omitempty,dir"`

	Logging struct {
		Format  string `env:"TRANSFORMER_LOG_FORMAT" envDefault:"console" validate:"oneof=console json"`
		NoColor bool   `env:"NO_COLOR"`
	}
}

// Load reads the configuration from the environment, after loading any of
// the given dotenv files that exist. Variables already set take precedence
// over dotenv values.
func Load(envFiles ...string) (*Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: loading %s: %w", terrors.ErrArgument, f, err)
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("%w: parsing environment: %w", terrors.ErrArgument, err)
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", terrors.ErrArgument, err)
	}
	return cfg, nil
}

// Validate checks the configuration against its struct tags.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return formatValidationError(err)
	}
	return nil
}

func formatValidationError(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}
	var messages []string
	for _, e := range validationErrors {
		switch e.Tag() {
		case "oneof":
			messages = append(messages, fmt.Sprintf("%s must be one of: %s", e.Field(), e.Param()))
		case "dir":
			messages = append(messages, fmt.Sprintf("%s must be an existing directory", e.Field()))
		case "min":
			messages = append(messages, fmt.Sprintf("%s must be at least %s", e.Field(), e.Param()))
		default:
			messages = append(messages, fmt.Sprintf("%s failed validation: %s", e.Field(), e.Tag()))
		}
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(messages, "; "))
}
