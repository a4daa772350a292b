package main

import (
	"errors"

	terrors "github.com/stackb/jvm-transformer/pkg/errors"
)

// Exit codes of the transformer command.
const (
	// ExitSuccess indicates the transform completed.
	ExitSuccess = 0

	// ExitArgumentError indicates bad command line arguments or
	// environment settings.
	ExitArgumentError = 1

	// ExitRulesError indicates the rules could not be loaded.
	ExitRulesError = 2

	// ExitTransformError indicates the transform failed.
	ExitTransformError = 3
)

// ExitCodeFromError determines the exit code for an error returned by the
// command.
func ExitCodeFromError(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, terrors.ErrArgument):
		return ExitArgumentError
	case errors.Is(err, terrors.ErrRules):
		return ExitRulesError
	default:
		return ExitTransformError
	}
}

// categorized reports whether err carries one of the sentinel errors.
func categorized(err error) bool {
	for _, sentinel := range []error{
		terrors.ErrArgument,
		terrors.ErrRules,
		terrors.ErrMalformedInput,
		terrors.ErrTransform,
		terrors.ErrIO,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

// exitMessage is the prefix printed before the error of a failed run.
func exitMessage(code int) string {
	switch code {
	case ExitRulesError:
		return "Exception loading rules"
	case ExitTransformError:
		return "Transform failure"
	default:
		return "Exception parsing command line arguments"
	}
}
