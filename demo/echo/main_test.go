package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEchoHandler(t *testing.T) {
	h := newEchoHandler(slog.New(slog.NewTextHandler(io.Discard, nil)))

	req := httptest.NewRequest(http.MethodPost, "/hook?status=201", strings.NewReader("email=ada%40example.org&topic=a&topic=b"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", "formrelay-test")
	req.AddCookie(&http.Cookie{Name: "sessionId", Value: "abc"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var got received
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "/hook", got.Path)
	assert.Equal(t, []string{"ada@example.org"}, got.Form["email"])
	assert.Equal(t, []string{"a", "b"}, got.Form["topic"])
	assert.Equal(t, "abc", got.Cookies["sessionId"])
	assert.Equal(t, "formrelay-test", got.Headers["User-Agent"])
	assert.NotContains(t, got.Headers, "Cookie")
}

func TestEchoHandlerRejectsBadStatus(t *testing.T) {
	h := newEchoHandler(slog.New(slog.NewTextHandler(io.Discard, nil)))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/?status=abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
