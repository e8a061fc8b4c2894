// Package normalize canonicalizes ingestion paths before route matching.
package normalize

import (
	"net/url"
	"path"
	"strings"
)

const defaultDecodeDepth = 2

// RequestPath percent-decodes p up to depth times and then cleans it with
// Clean, so /contact/%2e%2e/admin cannot slip past a prefix match.
func RequestPath(p string, depth int) string {
	if depth <= 0 {
		depth = defaultDecodeDepth
	}
	decoded := p
	for i := 0; i < depth; i++ {
		next, ok := decodeOnce(decoded)
		if !ok || next == decoded {
			break
		}
		decoded = next
	}
	return Clean(decoded)
}

// Clean roots p, collapses repeated slashes and resolves dot segments. A
// trailing slash is dropped; ".." never climbs above the root.
func Clean(p string) string {
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}

// HasPathPrefix reports whether p lies under prefix on a segment boundary:
// /newsletter matches /newsletter and /newsletter/de but not /newsletters.
func HasPathPrefix(p, prefix string) bool {
	if prefix == "" || prefix == "/" {
		return true
	}
	prefix = Clean(prefix)
	if prefix == "/" {
		return true
	}
	if !strings.HasPrefix(p, prefix) {
		return false
	}
	return len(p) == len(prefix) || p[len(prefix)] == '/'
}

func decodeOnce(input string) (string, bool) {
	decoded, err := url.PathUnescape(input)
	if err != nil {
		return input, false
	}
	return decoded, true
}
