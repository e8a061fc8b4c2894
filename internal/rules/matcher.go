package rules

import (
	"regexp"
	"sync"
)

// PatternMatcher matches names against an anchored regular expression: the
// whole name has to match, "cookie1" does not match "cookie12".
type PatternMatcher struct {
	re *regexp.Regexp
}

func NewPatternMatcher(pattern string, caseInsensitive bool) (*PatternMatcher, error) {
	expr := "^(?:" + pattern + ")$"
	if caseInsensitive {
		expr = "(?i)" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, err
	}
	return &PatternMatcher{re: re}, nil
}

func (m *PatternMatcher) Match(name string) bool {
	if m == nil {
		return false
	}
	return m.re.MatchString(name)
}

type matcherKey struct {
	pattern         string
	caseInsensitive bool
}

type cachedMatcher struct {
	m   *PatternMatcher
	err error
}

var matcherCache sync.Map

// CompiledMatcher returns a cached matcher for pattern. Compile errors are cached
// too, so an invalid pattern costs one compilation.
func CompiledMatcher(pattern string, caseInsensitive bool) (*PatternMatcher, error) {
	key := matcherKey{pattern: pattern, caseInsensitive: caseInsensitive}
	if v, ok := matcherCache.Load(key); ok {
		c := v.(cachedMatcher)
		return c.m, c.err
	}
	m, err := NewPatternMatcher(pattern, caseInsensitive)
	matcherCache.Store(key, cachedMatcher{m: m, err: err})
	return m, err
}
