package submission

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrBodyTooLarge is returned by FromRequest when the body exceeds the limit.
var ErrBodyTooLarge = errors.New("request body too large")

// FromRequest builds submission data and the inbound context from an HTTP
// request. Request variables follow the CGI convention (HTTP_USER_AGENT,
// CONTENT_TYPE, REMOTE_ADDR, ...).
func FromRequest(r *http.Request, maxBodyBytes int64) (*Data, *Bag, error) {
	inbound := NewBag()
	for _, c := range r.Cookies() {
		inbound.SetCookie(c.Name, c.Value)
	}
	for name, values := range r.Header {
		inbound.SetRequestVariable(cgiName(name), strings.Join(values, ", "))
	}
	if ct := r.Header.Get("Content-Type"); ct != "" {
		inbound.SetRequestVariable("CONTENT_TYPE", ct)
	}
	if r.ContentLength > 0 {
		inbound.SetRequestVariable("CONTENT_LENGTH", strconv.FormatInt(r.ContentLength, 10))
	}
	inbound.SetRequestVariable("REQUEST_METHOD", r.Method)
	inbound.SetRequestVariable("REQUEST_URI", r.URL.RequestURI())
	inbound.SetRequestVariable("REMOTE_ADDR", remoteHost(r.RemoteAddr))

	body, err := readBody(r.Body, maxBodyBytes)
	if err != nil {
		return nil, nil, err
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	var data *Data
	switch mediaType {
	case "application/json":
		data = NewData()
		if len(body) > 0 {
			if err := yaml.Unmarshal(body, data); err != nil {
				return nil, nil, fmt.Errorf("parse json body: %w", err)
			}
		}
	default:
		data, err = ParseForm(string(body))
		if err != nil {
			return nil, nil, err
		}
	}
	return data, inbound, nil
}

// ParseForm decodes an urlencoded body keeping field order. Repeated keys and
// keys ending in "[]" become multi values.
func ParseForm(body string) (*Data, error) {
	data := NewData()
	for _, pair := range strings.Split(body, "&") {
		if pair == "" {
			continue
		}
		rawKey, rawValue, _ := strings.Cut(pair, "=")
		key, err := url.QueryUnescape(rawKey)
		if err != nil {
			return nil, fmt.Errorf("parse form key %q: %w", rawKey, err)
		}
		value, err := url.QueryUnescape(rawValue)
		if err != nil {
			return nil, fmt.Errorf("parse form value for %q: %w", key, err)
		}
		multi := strings.HasSuffix(key, "[]")
		key = strings.TrimSuffix(key, "[]")
		existing, ok := data.Get(key)
		switch {
		case ok:
			data.Set(key, existing.Append(value))
		case multi:
			data.Set(key, Multi(value))
		default:
			data.Set(key, String(value))
		}
	}
	return data, nil
}

func readBody(body io.Reader, maxBytes int64) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	if maxBytes <= 0 {
		return io.ReadAll(body)
	}
	buf, err := io.ReadAll(io.LimitReader(body, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(buf)) > maxBytes {
		return nil, ErrBodyTooLarge
	}
	return buf, nil
}

func cgiName(header string) string {
	return "HTTP_" + strings.ToUpper(strings.ReplaceAll(header, "-", "_"))
}

func remoteHost(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err == nil {
		return host
	}
	return addr
}
