package interceptors

import (
	"fmt"
	"regexp"
	"strings"
)

// Pattern selects method names. *regexp.Regexp satisfies it.
type Pattern interface {
	MatchString(name string) bool
}

// PatternFunc is a function adapter for Pattern
type PatternFunc func(name string) bool

// MatchString implements Pattern
func (f PatternFunc) MatchString(name string) bool {
	return f(name)
}

// Regexp compiles a regular expression pattern and panics if it is invalid.
// Use CompilePattern for expressions that come from configuration.
func Regexp(expr string) Pattern {
	return regexp.MustCompile(expr)
}

// CompilePattern compiles a regular expression pattern
func CompilePattern(expr string) (Pattern, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid method pattern %q: %w", expr, err)
	}
	return re, nil
}

// Exact matches a single method name
func Exact(name string) Pattern {
	return PatternFunc(func(method string) bool {
		return method == name
	})
}

// Prefix matches method names starting with prefix
func Prefix(prefix string) Pattern {
	return PatternFunc(func(method string) bool {
		return strings.HasPrefix(method, prefix)
	})
}

// AllOf matches when every pattern matches
func AllOf(patterns ...Pattern) Pattern {
	return PatternFunc(func(method string) bool {
		for _, p := range patterns {
			if !p.MatchString(method) {
				return false
			}
		}
		return true
	})
}

// AnyOf matches when at least one pattern matches
func AnyOf(patterns ...Pattern) Pattern {
	return PatternFunc(func(method string) bool {
		for _, p := range patterns {
			if p.MatchString(method) {
				return true
			}
		}
		return false
	})
}

// Not inverts a pattern
func Not(p Pattern) Pattern {
	return PatternFunc(func(method string) bool {
		return !p.MatchString(method)
	})
}
