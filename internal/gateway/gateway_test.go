package gateway

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formrelay/formrelay/internal/config"
	"github.com/formrelay/formrelay/internal/dispatcher"
	"github.com/formrelay/formrelay/internal/distributor"
	"github.com/formrelay/formrelay/internal/logging"
)

type received struct {
	mu        sync.Mutex
	bodies    []string
	userAgent []string
}

func endpoint(t *testing.T, status int) (*httptest.Server, *received) {
	t.Helper()
	rec := &received{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		rec.mu.Lock()
		rec.bodies = append(rec.bodies, string(body))
		rec.userAgent = append(rec.userAgent, r.Header.Get("User-Agent"))
		rec.mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, rec
}

func sampleConfig(t *testing.T, doc string) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte(doc))
	require.NoError(t, err)
	return cfg
}

func newGateway(t *testing.T, cfg *config.Config) *Gateway {
	t.Helper()
	registry := dispatcher.NewRegistry()
	dispatcher.RegisterRequest(registry, nil)
	gw, err := New(cfg, Options{Registry: registry, Logger: logging.Discard()})
	require.NoError(t, err)
	return gw
}

func postForm(gw http.Handler, target string, form url.Values, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	gw.ServeHTTP(rec, req)
	return rec
}

func TestGatewayDistributesSubmission(t *testing.T) {
	target, got := endpoint(t, http.StatusCreated)
	gw := newGateway(t, sampleConfig(t, `
configVersion: 2
routes:
  - name: crm
    match: {pathPrefix: /newsletter}
    url: `+target.URL+`
    headers: [User-Agent]
    fields:
      email: {field: email}
      source: web
`))

	rec := postForm(gw, "http://forms.example/newsletter", url.Values{"email": {"a b@example.com"}, "ignored": {"x"}},
		http.Header{"User-Agent": {"Mozilla/5.0"}})

	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	var report distributor.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.NotEmpty(t, report.SubmissionID)
	require.Len(t, report.Routes, 1)
	assert.Equal(t, logging.OutcomeSent, report.Routes[0].Outcome)

	assert.Equal(t, []string{"email=a%20b%40example.com&source=web"}, got.bodies)
	assert.Equal(t, []string{"Mozilla/5.0"}, got.userAgent)
}

func TestGatewayReportsFailedRoute(t *testing.T) {
	ok, _ := endpoint(t, http.StatusOK)
	bad, _ := endpoint(t, http.StatusInternalServerError)
	gw := newGateway(t, sampleConfig(t, `
configVersion: 2
routes:
  - name: ok
    url: `+ok.URL+`
  - name: bad
    url: `+bad.URL+`
`))

	rec := postForm(gw, "http://forms.example/contact", url.Values{"a": {"1"}}, nil)
	require.Equal(t, http.StatusBadGateway, rec.Code)

	var report distributor.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	require.Len(t, report.Routes, 2)
	assert.Equal(t, logging.OutcomeSent, report.Routes[0].Outcome)
	assert.Equal(t, logging.OutcomeRejected, report.Routes[1].Outcome)
	assert.Equal(t, http.StatusInternalServerError, report.Routes[1].StatusCode)
}

func TestGatewayRejections(t *testing.T) {
	target, _ := endpoint(t, http.StatusOK)
	gw := newGateway(t, sampleConfig(t, `
configVersion: 2
server:
  maxBodyBytes: 16
  rateLimit: {enabled: true, rps: 1, burst: 2}
routes:
  - name: crm
    match: {pathPrefix: /newsletter}
    url: `+target.URL+`
`))

	req := httptest.NewRequest(http.MethodGet, "http://forms.example/newsletter", nil)
	rec := httptest.NewRecorder()
	gw.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, http.MethodPost, rec.Header().Get("Allow"))

	rec = postForm(gw, "http://forms.example/other", url.Values{"a": {"1"}}, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = postForm(gw, "http://forms.example/newsletter", url.Values{"a": {strings.Repeat("x", 32)}}, nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	codes := []int{}
	for i := 0; i < 3; i++ {
		codes = append(codes, postForm(gw, "http://forms.example/newsletter", url.Values{"a": {"1"}}, nil).Code)
	}
	assert.Equal(t, []int{http.StatusAccepted, http.StatusAccepted, http.StatusTooManyRequests}, codes)
}

func TestGatewayJSONBody(t *testing.T) {
	target, got := endpoint(t, http.StatusOK)
	gw := newGateway(t, sampleConfig(t, "configVersion: 2\nroutes:\n  - name: a\n    url: "+target.URL+"\n"))

	req := httptest.NewRequest(http.MethodPost, "http://forms.example/", strings.NewReader(`{"b":"2","a":["x","y"]}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	gw.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []string{"b=2&a=x&a=y"}, got.bodies)

	req = httptest.NewRequest(http.MethodPost, "http://forms.example/", strings.NewReader(`{"a":{"nested":1}}`))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	gw.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGatewayReloadSwapsRoutes(t *testing.T) {
	target, _ := endpoint(t, http.StatusOK)
	gw := newGateway(t, sampleConfig(t, "configVersion: 2\nroutes:\n  - name: a\n    match: {pathPrefix: /a}\n    url: "+target.URL+"\n"))

	assert.Equal(t, http.StatusNotFound, postForm(gw, "http://forms.example/b", url.Values{"x": {"1"}}, nil).Code)

	gw.Reload(sampleConfig(t, "configVersion: 2\nroutes:\n  - name: b\n    match: {pathPrefix: /b}\n    url: "+target.URL+"\n"))
	assert.Equal(t, http.StatusAccepted, postForm(gw, "http://forms.example/b", url.Values{"x": {"1"}}, nil).Code)
	assert.Equal(t, "b", gw.Distributor().Routes()[0].Name)
	assert.Zero(t, gw.PruneLimiter(time.Now()))
}
