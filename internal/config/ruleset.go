package config

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/formrelay/formrelay/internal/content"
	"github.com/formrelay/formrelay/internal/rules"
	"github.com/formrelay/formrelay/internal/submission"
)

// RuleEntry is one cookie or header rule as written in the config file. The
// value is resolved against the submission before keyword comparison.
type RuleEntry struct {
	Name  string
	Value content.Source
}

// RuleSet keeps rules in declared order. It decodes from a mapping of
// name -> value, or from a sequence of names, each meaning passthrough.
type RuleSet []RuleEntry

func (rs *RuleSet) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			*rs = nil
			return nil
		}
		return fmt.Errorf("line %d: rules must be a mapping or a list of names", node.Line)
	case yaml.SequenceNode:
		out := make(RuleSet, 0, len(node.Content))
		for _, item := range node.Content {
			if item.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: rule name must be a string", item.Line)
			}
			out = append(out, RuleEntry{Name: item.Value, Value: content.Constant(rules.KeywordPassthrough)})
		}
		*rs = out
		return nil
	case yaml.MappingNode:
		out := make(RuleSet, 0, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			var entry RuleEntry
			entry.Name = node.Content[i].Value
			if err := node.Content[i+1].Decode(&entry.Value); err != nil {
				return fmt.Errorf("rule %q: %w", entry.Name, err)
			}
			out = append(out, entry)
		}
		*rs = out
		return nil
	default:
		return fmt.Errorf("line %d: rules must be a mapping or a list of names", node.Line)
	}
}

// Resolve evaluates every rule value against data, keeping declared order.
func (rs RuleSet) Resolve(data *submission.Data) []rules.Rule {
	out := make([]rules.Rule, 0, len(rs))
	for _, entry := range rs {
		out = append(out, rules.Rule{
			Name:  entry.Name,
			Value: rules.Resolve(entry.Value.ResolveString(data)),
		})
	}
	return out
}

// Names lists the rule names in declared order.
func (rs RuleSet) Names() []string {
	out := make([]string, 0, len(rs))
	for _, entry := range rs {
		out = append(out, entry.Name)
	}
	return out
}

// mayPassthrough reports whether any constant branch of the entry's value is
// the passthrough keyword.
func (e RuleEntry) mayPassthrough() bool {
	for _, s := range e.Value.Strings() {
		if s == rules.KeywordPassthrough {
			return true
		}
	}
	return false
}
