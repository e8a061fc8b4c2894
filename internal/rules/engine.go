package rules

import (
	"net/http"

	"github.com/formrelay/formrelay/internal/outbound"
)

// Engine evaluates an ordered cookie or header rule set. Cookie passthrough names
// are regular expressions; header passthrough names are canonical header names
// probed through AlternateNames.
type Engine struct {
	Rules []Rule

	// CaseInsensitive applies to cookie passthrough patterns.
	CaseInsensitive bool
}

// ExtractCookies returns the inbound cookies that a passthrough pattern selects.
// Only passthrough rules contribute here.
func (e *Engine) ExtractCookies(inbound map[string]string) map[string]string {
	out := map[string]string{}
	matchers := e.passthroughMatchers()
	if len(matchers) == 0 {
		return out
	}
	for name, value := range inbound {
		for _, m := range matchers {
			if m.Match(name) {
				out[name] = value
				break
			}
		}
	}
	return out
}

// ExtractHeaders returns, per passthrough rule, the first alternate name with a
// non-empty value keyed by that found name.
func (e *Engine) ExtractHeaders(lookup func(string) string) map[string]string {
	out := map[string]string{}
	for _, rule := range e.Rules {
		if rule.Value.Kind() != KindPassthrough {
			continue
		}
		if name, value, ok := FirstVariable(rule.Name, lookup); ok {
			out[name] = value
		}
	}
	return out
}

// ResolveCookies builds the outbound cookie overrides from the submission
// context cookies. Cookie names are case-sensitive.
func (e *Engine) ResolveCookies(cookies map[string]string) outbound.Values {
	return e.resolve(sameName, func(rule Rule, set func(string, outbound.Value)) {
		m, err := CompiledMatcher(rule.Name, e.CaseInsensitive)
		if err != nil {
			return
		}
		for name, value := range cookies {
			if m.Match(name) {
				set(name, outbound.Set(value))
			}
		}
	})
}

// ResolveHeaders builds the outbound header overrides from the submission
// context request variables. Every key is folded with http.CanonicalHeaderKey,
// so user-agent and User-Agent are one header for ordering and removal.
func (e *Engine) ResolveHeaders(variables map[string]string) outbound.Values {
	lookup := func(name string) string { return variables[name] }
	return e.resolve(http.CanonicalHeaderKey, func(rule Rule, set func(string, outbound.Value)) {
		if _, value, ok := FirstVariable(rule.Name, lookup); ok {
			set(rule.Name, outbound.Set(value))
		}
	})
}

// resolve walks the rules in declared order. Later writes win, except that a key
// removed by an Unset rule stays removed.
func (e *Engine) resolve(key func(string) string, passthrough func(Rule, func(string, outbound.Value))) outbound.Values {
	out := outbound.Values{}
	unset := map[string]struct{}{}
	set := func(name string, v outbound.Value) {
		name = key(name)
		if _, removed := unset[name]; removed {
			return
		}
		out[name] = v
	}

	for _, rule := range e.Rules {
		switch rule.Value.Kind() {
		case KindPassthrough:
			passthrough(rule, set)
		case KindUnset:
			name := key(rule.Name)
			out[name] = outbound.Removed()
			unset[name] = struct{}{}
		case KindLiteral:
			v, _ := rule.Value.Literal()
			set(rule.Name, outbound.Set(v))
		}
	}
	return out
}

func sameName(name string) string { return name }

func (e *Engine) passthroughMatchers() []*PatternMatcher {
	var out []*PatternMatcher
	for _, rule := range e.Rules {
		if rule.Value.Kind() != KindPassthrough {
			continue
		}
		m, err := CompiledMatcher(rule.Name, e.CaseInsensitive)
		if err != nil {
			continue
		}
		out = append(out, m)
	}
	return out
}
