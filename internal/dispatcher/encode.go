package dispatcher

import (
	"net/url"
	"strings"

	"github.com/formrelay/formrelay/internal/submission"
)

// RawURLEncode percent-encodes everything except ALPHA / DIGIT / "-" / "." /
// "_" / "~". Spaces become %20.
func RawURLEncode(s string) string {
	// QueryEscape already escapes a literal '+' as %2B, so every '+' left is a space.
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// EncodeBody serializes data as application/x-www-form-urlencoded, one pair per
// element for multi values, in field order.
func EncodeBody(data *submission.Data) string {
	var pairs []string
	data.Range(func(key string, value submission.Value) bool {
		k := RawURLEncode(key)
		for _, v := range value.Values() {
			pairs = append(pairs, k+"="+RawURLEncode(v))
		}
		return true
	})
	return strings.Join(pairs, "&")
}
