package rules

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestPatternMatcherIsAnchored(t *testing.T) {
	m, err := NewPatternMatcher("cookie1", false)
	require.NoError(t, err)

	assert.True(t, m.Match("cookie1"))
	assert.False(t, m.Match("cookie12"))
	assert.False(t, m.Match("xcookie1"))
	assert.False(t, m.Match("Cookie1"))
}

func TestPatternMatcherAlternationIsGrouped(t *testing.T) {
	m, err := NewPatternMatcher("a|b", false)
	require.NoError(t, err)

	assert.True(t, m.Match("a"))
	assert.True(t, m.Match("b"))
	assert.False(t, m.Match("ab"))
	assert.False(t, m.Match("xb"))
}

func TestPatternMatcherCaseInsensitive(t *testing.T) {
	m, err := NewPatternMatcher("special.*", true)
	require.NoError(t, err)
	assert.True(t, m.Match("SpecialCookie5"))
}

func TestCompiledMatcherCachesErrors(t *testing.T) {
	_, err := CompiledMatcher("([", false)
	require.Error(t, err)
	_, err2 := CompiledMatcher("([", false)
	assert.Equal(t, err, err2)
}

func TestPatternMatcherFullMatchProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		name := rapid.StringMatching(`[A-Za-z0-9_]{1,12}`).Draw(t, "name")
		suffix := rapid.StringMatching(`[A-Za-z0-9_]{1,4}`).Draw(t, "suffix")

		m, err := NewPatternMatcher(regexp.QuoteMeta(name), false)
		if err != nil {
			t.Fatalf("compile: %v", err)
		}
		if !m.Match(name) {
			t.Fatalf("expected %q to match itself", name)
		}
		if m.Match(name + suffix) {
			t.Fatalf("expected %q not to match %q", name, name+suffix)
		}
		if m.Match(suffix + name) {
			t.Fatalf("expected %q not to match %q", name, suffix+name)
		}
	})
}
