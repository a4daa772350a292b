// Package errors provides the error taxonomy of the transformer.
package errors

import (
	"errors"
	"strconv"
	"strings"
)

// Sentinel errors for the failure categories of a transform invocation.
var (
	// ErrArgument indicates bad or missing command line input.
	ErrArgument = errors.New("argument error")

	// ErrRules indicates a rules file that is missing or unparseable.
	ErrRules = errors.New("rules error")

	// ErrMalformedInput indicates a class file that fails structural parsing.
	ErrMalformedInput = errors.New("malformed input")

	// ErrTransform indicates a failure while transforming an input.
	ErrTransform = errors.New("transform error")

	// ErrIO indicates a stream open, close, read or write failure.
	ErrIO = errors.New("i/o error")
)

// ContainerError is returned when the processing of an archive entry fails.
// It records the archive being processed, the entry that failed and the last
// entry that was processed successfully.
type ContainerError struct {
	// Container is the name of the archive.
	Container string

	// Entry is the entry being processed when the failure occurred. Empty
	// when the failure happened between entries.
	Entry string

	// Previous is the last successfully processed entry. Empty when the
	// failure happened on the first entry.
	Previous string

	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *ContainerError) Error() string {
	var b strings.Builder
	switch {
	case e.Entry != "":
		b.WriteString("failure while processing [ " + e.Entry + " ] from [ " + e.Container + " ]")
		if e.Previous != "" {
			b.WriteString(" (after [ " + e.Previous + " ])")
		}
	case e.Previous != "":
		b.WriteString("failure after processing [ " + e.Previous + " ] from [ " + e.Container + " ]")
	default:
		b.WriteString("failed to process first entry of [ " + e.Container + " ]")
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *ContainerError) Unwrap() error {
	return e.Cause
}

// Is reports ContainerError as a transform error.
func (e *ContainerError) Is(target error) bool {
	return target == ErrTransform
}

// Chain returns the names of the nested entries that lead to the innermost
// failure, outermost first. Each element is "container!entry".
func Chain(err error) []string {
	var chain []string
	for err != nil {
		var ce *ContainerError
		if !errors.As(err, &ce) {
			break
		}
		name := ce.Entry
		if name == "" {
			name = ce.Previous
		}
		chain = append(chain, ce.Container+"!"+name)
		err = ce.Cause
	}
	return chain
}

// FormatError describes a structural problem found while parsing binary
// input. It matches ErrMalformedInput.
type FormatError struct {
	// Offset is the byte offset at which the problem was detected.
	Offset int
	// Reason describes the problem.
	Reason string
}

// Error implements the error interface.
func (e *FormatError) Error() string {
	return "malformed input at offset " + strconv.Itoa(e.Offset) + ": " + e.Reason
}

// Unwrap returns ErrMalformedInput.
func (e *FormatError) Unwrap() error {
	return ErrMalformedInput
}
