package distributor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/formrelay/formrelay/internal/config"
	"github.com/formrelay/formrelay/internal/dispatcher"
	"github.com/formrelay/formrelay/internal/logging"
	"github.com/formrelay/formrelay/internal/observability"
	"github.com/formrelay/formrelay/internal/route"
	"github.com/formrelay/formrelay/internal/submission"
)

func statusServer(t *testing.T, status int, hits *[]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			c, _ := r.Cookie("sessionId")
			value := ""
			if c != nil {
				value = c.Value
			}
			*hits = append(*hits, r.URL.Path+"|"+value)
		}
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func routes(t *testing.T, doc string) []config.Route {
	t.Helper()
	var out []config.Route
	require.NoError(t, yaml.Unmarshal([]byte(doc), &out))
	return out
}

func newDistributor(t *testing.T, rs []config.Route, log *bytes.Buffer, reg *prometheus.Registry) *Distributor {
	t.Helper()
	registry := dispatcher.NewRegistry()
	dispatcher.RegisterRequest(registry, nil)
	return New(rs, Options{
		Registry:    registry,
		Logger:      logging.Discard(),
		Metrics:     observability.NewMetrics(reg),
		DispatchLog: logging.NewDispatchLogger(log),
	})
}

func TestDistributeRunsEveryRoute(t *testing.T) {
	var hits []string
	ok := statusServer(t, http.StatusCreated, &hits)
	notFound := statusServer(t, http.StatusNotFound, nil)
	closed := httptest.NewServer(http.NotFoundHandler())
	closedURL := closed.URL
	closed.Close()

	rs := routes(t, `
- name: crm
  url: `+ok.URL+`/crm
  cookies: [sessionId]
- name: missing
  url: `+notFound.URL+`
- name: down
  url: `+closedURL+`
- name: nourl
- name: disabled
  enabled: false
  url: `+ok.URL+`/disabled
- name: audit
  url: `+ok.URL+`/audit
  cookies: [sessionId]
`)

	var log bytes.Buffer
	reg := prometheus.NewRegistry()
	d := newDistributor(t, rs, &log, reg)

	data := submission.NewData()
	data.Set("email", submission.String("a@b.example"))
	sub := submission.New(data)
	report, err := d.Distribute(context.Background(), sub, submission.NewBagFrom(map[string]string{"sessionId": "abc def"}, nil))

	require.Error(t, err)
	assert.ErrorIs(t, err, route.ErrNoURL)
	var de *dispatcher.DispatchError
	assert.True(t, errors.As(err, &de))

	assert.False(t, report.OK())
	assert.Equal(t, sub.ID, report.SubmissionID)
	outcomes := map[string]string{}
	for _, rr := range report.Routes {
		outcomes[rr.Route] = rr.Outcome
	}
	assert.Equal(t, map[string]string{
		"crm":     logging.OutcomeSent,
		"missing": logging.OutcomeRejected,
		"down":    logging.OutcomeFailed,
		"nourl":   logging.OutcomeNoURL,
		"audit":   logging.OutcomeSent,
	}, outcomes)
	assert.Equal(t, []string{"/crm|abc%20def", "/audit|abc%20def"}, hits)

	lines := strings.Split(strings.TrimSpace(log.String()), "\n")
	require.Len(t, lines, 5)
	var first logging.Dispatch
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "crm", first.Route)
	assert.Equal(t, http.StatusCreated, first.StatusCode)
	assert.Equal(t, []string{"sessionId"}, first.Cookies)
	assert.NotContains(t, log.String(), "abc%20def")
	assert.NotContains(t, log.String(), "abc def")
}

func TestDistributeAllOK(t *testing.T) {
	ok := statusServer(t, http.StatusOK, nil)
	var log bytes.Buffer
	d := newDistributor(t, routes(t, "- name: a\n  url: "+ok.URL+"\n"), &log, prometheus.NewRegistry())

	report, err := d.Distribute(context.Background(), submission.New(submission.NewData()), nil)
	require.NoError(t, err)
	assert.True(t, report.OK())
	require.Len(t, report.Routes, 1)
	assert.Equal(t, http.StatusOK, report.Routes[0].StatusCode)
}

func TestDistributeWithoutRoutes(t *testing.T) {
	var log bytes.Buffer
	d := newDistributor(t, nil, &log, prometheus.NewRegistry())

	report, err := d.DistributeRoutes(context.Background(), submission.New(submission.NewData()), submission.NewBag(), nil)
	require.NoError(t, err)
	assert.Empty(t, report.Routes)
	assert.Zero(t, log.Len())
}

func TestRedactSecrets(t *testing.T) {
	in := `Post "https://x.example/hook?token=abc123&x=1": dial tcp: connection refused`
	out := redactSecrets(in)
	assert.NotContains(t, out, "abc123")
	assert.Contains(t, out, "token=<redacted>")
	assert.Equal(t, "bearer <redacted>", redactSecrets("Bearer abc.def"))
	assert.Equal(t, "auth: bearer <redacted> end", redactSecrets("auth: Bearer a-b/c+d_e~f== end"))
}
