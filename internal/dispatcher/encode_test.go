package dispatcher

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/formrelay/formrelay/internal/submission"
)

func TestRawURLEncode(t *testing.T) {
	cases := map[string]string{
		"x y":       "x%20y",
		"a+b":       "a%2Bb",
		"-._~":      "-._~",
		"ä":         "%C3%A4",
		"a&b=c":     "a%26b%3Dc",
		"":          "",
		"100%":      "100%25",
		"tab\there": "tab%09here",
	}
	for in, want := range cases {
		assert.Equal(t, want, RawURLEncode(in), in)
	}
}

func TestEncodeBodyEmpty(t *testing.T) {
	assert.Equal(t, "", EncodeBody(submission.NewData()))
}

func TestEncodeBodyRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		keys := rapid.SliceOfNDistinct(rapid.StringMatching(`[a-z]{1,6}`), 1, 5, rapid.ID[string]).Draw(t, "keys")
		data := submission.NewData()
		want := url.Values{}
		for _, k := range keys {
			vals := rapid.SliceOfN(rapid.String(), 1, 3).Draw(t, "vals_"+k)
			if len(vals) == 1 {
				data.Set(k, submission.String(vals[0]))
			} else {
				data.Set(k, submission.Multi(vals...))
			}
			want[k] = vals
		}

		body := EncodeBody(data)
		if strings.Contains(body, "+") {
			t.Fatalf("body contains '+': %q", body)
		}
		got, err := url.ParseQuery(body)
		if err != nil {
			t.Fatalf("parse %q: %v", body, err)
		}
		assert.Equal(t, want, got)
	})
}
