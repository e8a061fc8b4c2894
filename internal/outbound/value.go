// Package outbound holds the override value shared by the rule engine and the
// request dispatcher: either a value to send or an explicit removal.
package outbound

// Value is Present(string) or Removed. The zero Value is Removed; use Set to
// build a present value.
type Value struct {
	value   string
	present bool
}

func Set(v string) Value {
	return Value{value: v, present: true}
}

func Removed() Value {
	return Value{}
}

// Get returns the value and whether it is present.
func (v Value) Get() (string, bool) {
	return v.value, v.present
}

func (v Value) IsRemoved() bool {
	return !v.present
}

func (v Value) String() string {
	if !v.present {
		return "<removed>"
	}
	return v.value
}

// Values is a name -> override mapping for headers or cookies.
type Values map[string]Value

// Present returns only the entries that carry a value.
func (vs Values) Present() map[string]string {
	out := make(map[string]string, len(vs))
	for k, v := range vs {
		if s, ok := v.Get(); ok {
			out[k] = s
		}
	}
	return out
}

// Names returns every key, removed ones included.
func (vs Values) Names() []string {
	out := make([]string, 0, len(vs))
	for k := range vs {
		out = append(out, k)
	}
	return out
}
