package submission

import "strings"

// Value is a single submission field. It holds either one scalar or an ordered
// list of values (a multi value such as a checkbox group).
type Value struct {
	values []string
	multi  bool
}

func String(v string) Value {
	return Value{values: []string{v}}
}

func Multi(values ...string) Value {
	return Value{values: append([]string(nil), values...), multi: true}
}

func (v Value) IsMulti() bool {
	return v.multi
}

// Values returns the elements in order. A scalar yields one element.
func (v Value) Values() []string {
	return append([]string(nil), v.values...)
}

func (v Value) String() string {
	if !v.multi {
		if len(v.values) == 0 {
			return ""
		}
		return v.values[0]
	}
	return strings.Join(v.values, ",")
}

// Append turns v into a multi value (if needed) and adds s at the end.
func (v Value) Append(s string) Value {
	out := Multi(v.values...)
	out.values = append(out.values, s)
	return out
}
