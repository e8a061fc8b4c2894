package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatchLoggerWritesJSONL(t *testing.T) {
	var buf bytes.Buffer
	logger := NewDispatchLogger(&buf)

	record := Dispatch{
		Timestamp:    time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC),
		SubmissionID: "sub-1",
		Route:        "crm",
		Method:       "POST",
		Host:         "crm.example",
		StatusCode:   500,
		Outcome:      OutcomeRejected,
		Error:        strings.Repeat("e", 400),
		Cookies:      []string{"sessionId"},
		Headers:      []string{"User-Agent"},
	}
	require.NoError(t, logger.Write(record))
	require.NoError(t, logger.Write(record))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var parsed Dispatch
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &parsed))
	assert.Equal(t, "crm", parsed.Route)
	assert.Equal(t, []string{"sessionId"}, parsed.Cookies)
	assert.Len(t, parsed.Error, maxError)
}

func TestNilDispatchLoggerDiscards(t *testing.T) {
	var logger *DispatchLogger
	assert.NoError(t, logger.Write(Dispatch{}))
}

func TestOpenDispatchLogCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dispatch.jsonl")
	logger, closeFn, err := OpenDispatchLog(path)
	require.NoError(t, err)
	require.NoError(t, logger.Write(Dispatch{Route: "a"}))
	require.NoError(t, closeFn())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"route":"a"`)
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("WARNING")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, lvl)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}

func TestNewFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	logger, closer, err := New("debug", "text", path)
	require.NoError(t, err)
	logger.Debug("hello", "k", "v")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "msg=hello k=v")

	_, _, err = New("info", "xml", "stderr")
	assert.Error(t, err)
}

func TestAccessLog(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	h := AccessLog(logger, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/contact", nil))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "http_request", entry["msg"])
	assert.Equal(t, float64(http.StatusAccepted), entry["status"])
	assert.Equal(t, "/contact", entry["path"])
}

func TestDispatchLoggerKeepsUTF8WhenTruncating(t *testing.T) {
	var buf bytes.Buffer
	logger := NewDispatchLogger(&buf)
	msg := strings.Repeat("a", maxError-1) + "ä" + "tail"
	require.NoError(t, logger.Write(Dispatch{Route: "crm", Error: msg}))

	var got Dispatch
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, strings.Repeat("a", maxError-1), got.Error)
	assert.True(t, utf8.ValidString(got.Error))
}
