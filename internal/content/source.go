// Package content resolves configured values against submission data before
// they are interpreted: constants, field references and simple conditionals.
package content

import (
	"fmt"

	"github.com/formrelay/formrelay/internal/submission"
	"gopkg.in/yaml.v3"
)

// Source is a configured value.
//
//	value: constant
//	value: {field: email}
//	value: {if: {country: DE, then: "{value}", else: "{null}"}}
type Source struct {
	kind     sourceKind
	constant string
	field    string
	cond     *Condition
}

type sourceKind int

const (
	kindConstant sourceKind = iota
	kindField
	kindCondition
)

// Condition compares one field with an expected value.
type Condition struct {
	Field  string
	Equals string
	Then   *Source
	Else   *Source
}

func Constant(v string) Source {
	return Source{kind: kindConstant, constant: v}
}

func Field(name string) Source {
	return Source{kind: kindField, field: name}
}

func If(field, equals string, then, otherwise *Source) Source {
	return Source{kind: kindCondition, cond: &Condition{Field: field, Equals: equals, Then: then, Else: otherwise}}
}

// IsConstant reports whether s resolves without looking at submission data.
func (s Source) IsConstant() bool {
	return s.kind == kindConstant
}

// Resolve evaluates s. ok is false when nothing was produced: an empty constant,
// a missing field, or a condition branch that is not configured.
func (s Source) Resolve(data *submission.Data) (submission.Value, bool) {
	switch s.kind {
	case kindField:
		v, ok := data.Get(s.field)
		if !ok {
			return submission.Value{}, false
		}
		return v, true
	case kindCondition:
		if s.cond == nil {
			return submission.Value{}, false
		}
		actual, _ := data.Get(s.cond.Field)
		branch := s.cond.Else
		if actual.String() == s.cond.Equals {
			branch = s.cond.Then
		}
		if branch == nil {
			return submission.Value{}, false
		}
		return branch.Resolve(data)
	default:
		if s.constant == "" {
			return submission.Value{}, false
		}
		return submission.String(s.constant), true
	}
}

// ResolveString is Resolve flattened to a string.
func (s Source) ResolveString(data *submission.Data) (string, bool) {
	v, ok := s.Resolve(data)
	if !ok {
		return "", false
	}
	return v.String(), true
}

// Strings returns every constant reachable from s, including condition branches.
func (s Source) Strings() []string {
	switch s.kind {
	case kindConstant:
		return []string{s.constant}
	case kindCondition:
		if s.cond == nil {
			return nil
		}
		var out []string
		if s.cond.Then != nil {
			out = append(out, s.cond.Then.Strings()...)
		}
		if s.cond.Else != nil {
			out = append(out, s.cond.Else.Strings()...)
		}
		return out
	default:
		return nil
	}
}

func (s *Source) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			*s = Constant("")
			return nil
		}
		*s = Constant(node.Value)
		return nil
	case yaml.MappingNode:
		return s.decodeMapping(node)
	default:
		return fmt.Errorf("line %d: value must be a scalar or a mapping", node.Line)
	}
}

func (s *Source) decodeMapping(node *yaml.Node) error {
	if len(node.Content) != 2 {
		return fmt.Errorf("line %d: value mapping needs exactly one of field|if", node.Line)
	}
	key, val := node.Content[0], node.Content[1]
	switch key.Value {
	case "field":
		if val.Kind != yaml.ScalarNode || val.Value == "" {
			return fmt.Errorf("line %d: field must name a submission field", val.Line)
		}
		*s = Field(val.Value)
		return nil
	case "if":
		cond, err := decodeCondition(val)
		if err != nil {
			return err
		}
		*s = Source{kind: kindCondition, cond: cond}
		return nil
	default:
		return fmt.Errorf("line %d: unknown value type %q (use field|if)", key.Line, key.Value)
	}
}

func decodeCondition(node *yaml.Node) (*Condition, error) {
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: if must be a mapping", node.Line)
	}
	cond := &Condition{}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		switch key.Value {
		case "then", "else":
			var branch Source
			if err := branch.UnmarshalYAML(val); err != nil {
				return nil, err
			}
			if key.Value == "then" {
				cond.Then = &branch
			} else {
				cond.Else = &branch
			}
		default:
			if cond.Field != "" {
				return nil, fmt.Errorf("line %d: if compares a single field, got %q and %q", key.Line, cond.Field, key.Value)
			}
			if val.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("line %d: if %s must compare with a scalar", val.Line, key.Value)
			}
			cond.Field = key.Value
			cond.Equals = val.Value
		}
	}
	if cond.Field == "" {
		return nil, fmt.Errorf("line %d: if needs a field to compare", node.Line)
	}
	return cond, nil
}
