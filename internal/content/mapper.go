package content

import (
	"fmt"

	"github.com/formrelay/formrelay/internal/submission"
	"gopkg.in/yaml.v3"
)

// FieldMapping pairs an outbound payload key with its source.
type FieldMapping struct {
	Key    string
	Source Source
}

// Mapper builds the outbound payload of a route. An empty mapper passes the
// submission data through unchanged.
type Mapper struct {
	Fields []FieldMapping
}

func (m Mapper) Map(data *submission.Data) *submission.Data {
	if len(m.Fields) == 0 {
		out := submission.NewData()
		data.Range(func(k string, v submission.Value) bool {
			out.Set(k, v)
			return true
		})
		return out
	}

	out := submission.NewData()
	for _, f := range m.Fields {
		v, ok := f.Source.Resolve(data)
		if !ok {
			continue
		}
		out.Set(f.Key, v)
	}
	return out
}

// UnmarshalYAML keeps the declared field order.
func (m *Mapper) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		*m = Mapper{}
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: fields must be a mapping", node.Line)
	}
	fields := make([]FieldMapping, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		var src Source
		if err := src.UnmarshalYAML(node.Content[i+1]); err != nil {
			return fmt.Errorf("fields.%s: %w", node.Content[i].Value, err)
		}
		fields = append(fields, FieldMapping{Key: node.Content[i].Value, Source: src})
	}
	*m = Mapper{Fields: fields}
	return nil
}
