package rules

import "strings"

// AlternateNames lists the names under which a header may appear in a request
// variable bag, in probing order.
//
//	"User-Agent" => ["User-Agent", "HTTP_USER_AGENT", "USER_AGENT"]
func AlternateNames(header string) []string {
	var b strings.Builder
	b.Grow(len(header))
	for i := 0; i < len(header); i++ {
		c := header[i]
		if c == '-' && i+1 < len(header) && header[i+1] >= 'A' && header[i+1] <= 'Z' {
			b.WriteByte('_')
			continue
		}
		b.WriteByte(c)
	}
	snake := strings.ToUpper(b.String())
	return []string{header, "HTTP_" + snake, snake}
}

// FirstVariable probes the alternates of header and returns the first name that
// carries a non-empty value.
func FirstVariable(header string, lookup func(string) string) (string, string, bool) {
	for _, name := range AlternateNames(header) {
		if v := lookup(name); v != "" {
			return name, v, true
		}
	}
	return "", "", false
}
