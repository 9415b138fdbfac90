// Package exclusion decides whether a crawled path is skipped.
//
// Patterns are RE2 regular expressions matched anywhere in the path: a
// pattern excludes a path when it finds a match in any part of it. The
// empty pattern excludes nothing.
package exclusion

import (
	"fmt"
	"regexp"

	edmerrors "github.com/Aman-CERP/edm/internal/errors"
)

// Matcher is a compiled exclusion pattern. The nil Matcher excludes nothing.
type Matcher struct {
	pattern string
	re      *regexp.Regexp
}

// Compile validates pattern. Invalid syntax returns ERR_102_CONFIG_INVALID.
func Compile(pattern string) (*Matcher, error) {
	if pattern == "" {
		return &Matcher{}, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, edmerrors.ConfigError(fmt.Sprintf("invalid exclusion pattern %q", pattern), err).
			WithDetail("pattern", pattern).
			WithSuggestion("exclusion patterns use Go regular expression syntax")
	}
	return &Matcher{pattern: pattern, re: re}, nil
}

// MustCompile is Compile for patterns known at build time.
func MustCompile(pattern string) *Matcher {
	m, err := Compile(pattern)
	if err != nil {
		panic(err)
	}
	return m
}

// Excludes reports whether path contains a match.
func (m *Matcher) Excludes(path string) bool {
	if m == nil || m.re == nil {
		return false
	}
	return m.re.MatchString(path)
}

// Includes is the negation of Excludes.
func (m *Matcher) Includes(path string) bool {
	return !m.Excludes(path)
}

func (m *Matcher) String() string {
	if m == nil {
		return ""
	}
	return m.pattern
}

// IsExcluded compiles pattern and tests path in one call.
func IsExcluded(path, pattern string) (bool, error) {
	m, err := Compile(pattern)
	if err != nil {
		return false, err
	}
	return m.Excludes(path), nil
}

// IsIncluded is the negation of IsExcluded. Errors are passed through.
func IsIncluded(path, pattern string) (bool, error) {
	excluded, err := IsExcluded(path, pattern)
	if err != nil {
		return false, err
	}
	return !excluded, nil
}
