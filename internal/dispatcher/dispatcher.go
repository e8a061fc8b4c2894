// Package dispatcher sends mapped submission data to a third-party endpoint.
package dispatcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sort"
	"strings"

	"github.com/formrelay/formrelay/internal/outbound"
	"github.com/formrelay/formrelay/internal/submission"
)

// Interface is the contract the route relies on to configure and fire one send.
type Interface interface {
	SetURL(rawURL string) error
	URL() string
	SetMethod(method string)
	Method() string

	Headers() outbound.Values
	SetHeaders(headers outbound.Values)
	AddHeader(name string, value outbound.Value)
	AddHeaders(headers outbound.Values)
	RemoveHeader(name string)

	Cookies() outbound.Values
	SetCookies(cookies outbound.Values)
	AddCookie(name string, value outbound.Value)
	AddCookies(cookies outbound.Values)
	RemoveCookie(name string)

	Send(ctx context.Context, data *submission.Data) error
}

var defaultHeaders = []struct{ name, value string }{
	{"Content-Type", "application/x-www-form-urlencoded"},
	{"Accept", "*/*"},
}

// Request is the HTTP implementation of Interface. One instance serves a single
// route process and is not safe for concurrent use.
type Request struct {
	client  *http.Client
	url     *url.URL
	rawURL  string
	method  string
	headers outbound.Values
	cookies outbound.Values
	status  int
}

var _ Interface = (*Request)(nil)

// New returns a dispatcher sending through client. A nil client falls back to
// NewClient with default options.
func New(client *http.Client) *Request {
	if client == nil {
		client = NewClient(ClientOptions{})
	}
	return &Request{
		client:  client,
		method:  http.MethodPost,
		headers: outbound.Values{},
		cookies: outbound.Values{},
	}
}

// SetURL accepts any URL with a host; scheme and reachability are checked at send time.
func (d *Request) SetURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return &InvalidURLError{URL: rawURL}
	}
	d.url = u
	d.rawURL = rawURL
	return nil
}

func (d *Request) URL() string {
	return d.rawURL
}

func (d *Request) SetMethod(method string) {
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = http.MethodPost
	}
	d.method = method
}

func (d *Request) Method() string {
	return d.method
}

func (d *Request) Headers() outbound.Values {
	return cloneValues(d.headers)
}

// SetHeaders replaces the header overrides. Names are stored canonicalized.
func (d *Request) SetHeaders(headers outbound.Values) {
	d.headers = outbound.Values{}
	d.AddHeaders(headers)
}

func (d *Request) AddHeader(name string, value outbound.Value) {
	d.headers[http.CanonicalHeaderKey(name)] = value
}

// AddHeaders merges overrides in name order, so of two spellings of the same
// header the one sorting last wins.
func (d *Request) AddHeaders(headers outbound.Values) {
	for _, name := range sortedNames(headers) {
		d.AddHeader(name, headers[name])
	}
}

// RemoveHeader records an explicit removal, which also drops a default header.
func (d *Request) RemoveHeader(name string) {
	d.AddHeader(name, outbound.Removed())
}

func (d *Request) Cookies() outbound.Values {
	return cloneValues(d.cookies)
}

func (d *Request) SetCookies(cookies outbound.Values) {
	d.cookies = cloneValues(cookies)
}

func (d *Request) AddCookie(name string, value outbound.Value) {
	d.cookies[name] = value
}

func (d *Request) AddCookies(cookies outbound.Values) {
	for name, value := range cookies {
		d.cookies[name] = value
	}
}

func (d *Request) RemoveCookie(name string) {
	d.cookies[name] = outbound.Removed()
}

// Send performs one synchronous request. Responses in [200,400) succeed.
func (d *Request) Send(ctx context.Context, data *submission.Data) error {
	if d.url == nil {
		return &InvalidURLError{URL: d.rawURL}
	}
	if data == nil {
		data = submission.NewData()
	}

	req, err := http.NewRequestWithContext(ctx, d.method, d.url.String(), strings.NewReader(EncodeBody(data)))
	if err != nil {
		return &DispatchError{Method: d.method, Host: d.url.Host, Err: err}
	}
	d.applyHeaders(req.Header)

	client, err := d.clientWithCookies()
	if err != nil {
		return &DispatchError{Method: d.method, Host: d.url.Host, Err: err}
	}

	resp, err := client.Do(req)
	if err != nil {
		return &DispatchError{Method: d.method, Host: d.url.Host, Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	d.status = resp.StatusCode

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return &DispatchError{Method: d.method, Host: d.url.Host, StatusCode: resp.StatusCode}
	}
	return nil
}

// StatusCode returns the response status of the last Send, 0 before any response.
func (d *Request) StatusCode() int {
	return d.status
}

const userAgent = "User-Agent"

func (d *Request) applyHeaders(h http.Header) {
	for _, def := range defaultHeaders {
		h.Set(def.name, def.value)
	}
	for _, name := range sortedNames(d.headers) {
		value, ok := d.headers[name].Get()
		if !ok {
			h.Del(name)
			if name == userAgent {
				// An empty entry stops net/http from sending its own User-Agent.
				h[userAgent] = []string{""}
			}
			continue
		}
		h.Set(name, value)
	}
}

// clientWithCookies copies the shared client and attaches a jar holding only
// the present cookie overrides, scoped to the target host.
func (d *Request) clientWithCookies() (*http.Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}
	var cookies []*http.Cookie
	for _, name := range sortedNames(d.cookies) {
		value, ok := d.cookies[name].Get()
		if !ok {
			continue
		}
		cookies = append(cookies, &http.Cookie{
			Name:   name,
			Value:  RawURLEncode(value),
			Domain: d.url.Hostname(),
			Path:   "/",
		})
	}
	jar.SetCookies(d.url, cookies)

	client := *d.client
	client.Jar = jar
	return &client, nil
}

func cloneValues(in outbound.Values) outbound.Values {
	out := make(outbound.Values, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func sortedNames(values outbound.Values) []string {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
