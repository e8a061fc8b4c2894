package submission

// Context is the mutable per-submission bag of cookies and request variables
// (the header bag). Keys are case-sensitive.
type Context interface {
	Cookies() map[string]string
	Cookie(name string) (string, bool)
	SetCookie(name, value string)

	RequestVariable(name string) string
	RequestVariables() map[string]string
	SetRequestVariable(name, value string)
}

// Bag is the map-backed Context. It is mutated in place so every route working
// on the same submission sees what earlier routes wrote. Not safe for concurrent
// writers.
type Bag struct {
	cookies   map[string]string
	variables map[string]string
}

func NewBag() *Bag {
	return &Bag{cookies: map[string]string{}, variables: map[string]string{}}
}

// NewBagFrom copies the given maps into a fresh bag.
func NewBagFrom(cookies, variables map[string]string) *Bag {
	b := NewBag()
	for k, v := range cookies {
		b.cookies[k] = v
	}
	for k, v := range variables {
		b.variables[k] = v
	}
	return b
}

func (b *Bag) Cookies() map[string]string {
	return copyMap(b.cookies)
}

func (b *Bag) Cookie(name string) (string, bool) {
	v, ok := b.cookies[name]
	return v, ok
}

func (b *Bag) SetCookie(name, value string) {
	if b.cookies == nil {
		b.cookies = map[string]string{}
	}
	b.cookies[name] = value
}

func (b *Bag) RequestVariable(name string) string {
	return b.variables[name]
}

func (b *Bag) RequestVariables() map[string]string {
	return copyMap(b.variables)
}

func (b *Bag) SetRequestVariable(name, value string) {
	if b.variables == nil {
		b.variables = map[string]string{}
	}
	b.variables[name] = value
}

func copyMap(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
