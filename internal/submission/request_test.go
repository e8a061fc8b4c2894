package submission

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormKeepsOrderAndMultiValues(t *testing.T) {
	d, err := ParseForm("name=Jane+Doe&topics%5B%5D=a&email=j%40x.io&topics%5B%5D=b&tag=1&tag=2")
	require.NoError(t, err)

	assert.Equal(t, []string{"name", "topics", "email", "tag"}, d.Keys())
	name, _ := d.Get("name")
	assert.Equal(t, "Jane Doe", name.String())
	topics, _ := d.Get("topics")
	assert.Equal(t, []string{"a", "b"}, topics.Values())
	tag, _ := d.Get("tag")
	assert.True(t, tag.IsMulti())
	assert.Equal(t, []string{"1", "2"}, tag.Values())
}

func TestParseFormSingleBracketKeyIsMulti(t *testing.T) {
	d, err := ParseForm("opt[]=only")
	require.NoError(t, err)
	v, _ := d.Get("opt")
	assert.True(t, v.IsMulti())
}

func TestFromRequestBuildsCGIVariables(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "http://forms.example/newsletter?src=x", strings.NewReader("email=a%40b.c"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", "Mozilla/5.0")
	req.Header.Set("Cookie", "sessionId=abc123; _ga=GA1.2")
	req.RemoteAddr = "203.0.113.9:5555"

	data, inbound, err := FromRequest(req, 1024)
	require.NoError(t, err)

	email, ok := data.Get("email")
	require.True(t, ok)
	assert.Equal(t, "a@b.c", email.String())

	assert.Equal(t, map[string]string{"sessionId": "abc123", "_ga": "GA1.2"}, inbound.Cookies())
	assert.Equal(t, "Mozilla/5.0", inbound.RequestVariable("HTTP_USER_AGENT"))
	assert.Equal(t, "application/x-www-form-urlencoded", inbound.RequestVariable("CONTENT_TYPE"))
	assert.Equal(t, "203.0.113.9", inbound.RequestVariable("REMOTE_ADDR"))
	assert.Equal(t, "POST", inbound.RequestVariable("REQUEST_METHOD"))
	assert.Equal(t, "/newsletter?src=x", inbound.RequestVariable("REQUEST_URI"))
}

func TestFromRequestJSONBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"b":"2","a":["x","y"]}`))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	data, _, err := FromRequest(req, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, data.Keys())
}

func TestFromRequestBodyLimit(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("a=0123456789"))
	_, _, err := FromRequest(req, 4)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBodyTooLarge))
}

func TestBagIsSharedByReference(t *testing.T) {
	sub := New(nil)
	require.NotEmpty(t, sub.ID)

	var ctx Context = sub.Context
	ctx.SetCookie("a", "1")
	ctx.SetRequestVariable("HTTP_X", "y")

	v, ok := sub.Context.Cookie("a")
	assert.True(t, ok)
	assert.Equal(t, "1", v)
	assert.Equal(t, "y", sub.Context.RequestVariable("HTTP_X"))

	snapshot := sub.Context.Cookies()
	snapshot["a"] = "changed"
	v, _ = sub.Context.Cookie("a")
	assert.Equal(t, "1", v)
}
