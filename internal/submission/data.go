package submission

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Data is the ordered field payload of a submission.
type Data struct {
	keys   []string
	values map[string]Value
}

func NewData() *Data {
	return &Data{values: map[string]Value{}}
}

// Set stores value under key. Re-setting an existing key keeps its position.
func (d *Data) Set(key string, value Value) {
	if d.values == nil {
		d.values = map[string]Value{}
	}
	if _, ok := d.values[key]; !ok {
		d.keys = append(d.keys, key)
	}
	d.values[key] = value
}

func (d *Data) Get(key string) (Value, bool) {
	if d == nil {
		return Value{}, false
	}
	v, ok := d.values[key]
	return v, ok
}

func (d *Data) Keys() []string {
	if d == nil {
		return nil
	}
	return append([]string(nil), d.keys...)
}

func (d *Data) Len() int {
	if d == nil {
		return 0
	}
	return len(d.keys)
}

// Range calls fn for each field in insertion order until fn returns false.
func (d *Data) Range(fn func(key string, value Value) bool) {
	if d == nil {
		return
	}
	for _, k := range d.keys {
		if !fn(k, d.values[k]) {
			return
		}
	}
}

// Strings flattens the payload into key -> String() for logging and tests.
func (d *Data) Strings() map[string]string {
	out := make(map[string]string, d.Len())
	d.Range(func(k string, v Value) bool {
		out[k] = v.String()
		return true
	})
	return out
}

// UnmarshalYAML decodes a mapping while keeping document order. Sequences become
// multi values; scalars of any type are kept as their literal text.
func (d *Data) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.DocumentNode && len(node.Content) == 1 {
		node = node.Content[0]
	}
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		*d = Data{values: map[string]Value{}}
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: submission data must be a mapping", node.Line)
	}
	out := Data{values: map[string]Value{}}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		val := node.Content[i+1]
		switch val.Kind {
		case yaml.ScalarNode:
			if val.Tag == "!!null" {
				out.Set(key, String(""))
				continue
			}
			out.Set(key, String(val.Value))
		case yaml.SequenceNode:
			items := make([]string, 0, len(val.Content))
			for _, item := range val.Content {
				if item.Kind != yaml.ScalarNode {
					return fmt.Errorf("line %d: field %q: nested values are not supported", item.Line, key)
				}
				items = append(items, item.Value)
			}
			out.Set(key, Multi(items...))
		default:
			return fmt.Errorf("line %d: field %q: nested values are not supported", val.Line, key)
		}
	}
	*d = out
	return nil
}
