package logging

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
	"unicode/utf8"
)

const maxError = 256

// Dispatch is written as a single JSON object per route process. Cookie and
// header values are never logged, only their names.
type Dispatch struct {
	Timestamp    time.Time `json:"ts"`
	SubmissionID string    `json:"submission_id"`
	Route        string    `json:"route"`
	Method       string    `json:"method"`
	Host         string    `json:"host"`
	StatusCode   int       `json:"status_code"`
	Outcome      string    `json:"outcome"`
	Error        string    `json:"error,omitempty"`
	Cookies      []string  `json:"cookies"`
	Headers      []string  `json:"headers"`
	DurationMS   int64     `json:"duration_ms"`
}

const (
	OutcomeSent     = "sent"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
	OutcomeNoURL    = "no_url"
	OutcomeBadURL   = "bad_url"
)

type DispatchLogger struct {
	mu sync.Mutex
	w  io.Writer
}

func NewDispatchLogger(w io.Writer) *DispatchLogger {
	return &DispatchLogger{w: w}
}

func OpenDispatchLog(path string) (*DispatchLogger, func() error, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, err
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, err
	}
	return NewDispatchLogger(file), file.Close, nil
}

// Write appends one record. A nil logger discards.
func (l *DispatchLogger) Write(d Dispatch) error {
	if l == nil {
		return nil
	}
	d.Error = truncate(d.Error, maxError)

	data, err := json.Marshal(d)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	_, err = l.w.Write(append(data, '\n'))
	return err
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
