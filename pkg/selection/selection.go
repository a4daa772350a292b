// Package selection decides which resources of an input are transformed.
package selection

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Rule selects resources by name using include and exclude patterns. A
// resource is selected when it matches an include pattern (or there are no
// includes) and matches no exclude pattern.
//
// Patterns are doublestar globs over slash separated resource names: '*'
// matches within a single path segment and '**' matches across segments. A
// pattern ending in '/' matches the directory and everything beneath it. A
// bare '*' matches every resource.
type Rule struct {
	includes []string
	excludes []string
}

// New compiles a selection rule. Invalid patterns are reported as errors.
func New(includes, excludes []string) (*Rule, error) {
	r := &Rule{}
	var err error
	if r.includes, err = compile(includes); err != nil {
		return nil, fmt.Errorf("include: %w", err)
	}
	if r.excludes, err = compile(excludes); err != nil {
		return nil, fmt.Errorf("exclude: %w", err)
	}
	return r, nil
}

// All returns a rule that selects every resource.
func All() *Rule {
	return &Rule{}
}

func compile(patterns []string) ([]string, error) {
	var compiled []string
	for _, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		if pattern == "*" {
			pattern = "**"
		}
		if strings.HasSuffix(pattern, "/") {
			pattern += "**"
		}
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid pattern %q", pattern)
		}
		compiled = append(compiled, pattern)
	}
	return compiled, nil
}

// Select reports whether the named resource should be transformed.
func (r *Rule) Select(name string) bool {
	if r == nil {
		return true
	}
	if len(r.includes) > 0 && !matchAny(r.includes, name) {
		return false
	}
	return !matchAny(r.excludes, name)
}

// Includes returns the compiled include patterns.
func (r *Rule) Includes() []string {
	return append([]string(nil), r.includes...)
}

// Excludes returns the compiled exclude patterns.
func (r *Rule) Excludes() []string {
	return append([]string(nil), r.excludes...)
}

func matchAny(patterns []string, name string) bool {
	for _, pattern := range patterns {
		// the pattern has been validated so the error is always nil
		if ok, _ := doublestar.Match(pattern, name); ok {
			return true
		}
	}
	return false
}
