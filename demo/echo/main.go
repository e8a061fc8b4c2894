package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"strconv"
	"time"
)

// received is what the echo target reports back for each dispatch.
type received struct {
	Method  string              `json:"method"`
	Path    string              `json:"path"`
	Form    map[string][]string `json:"form"`
	Cookies map[string]string   `json:"cookies"`
	Headers map[string]string   `json:"headers"`
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	srv := &http.Server{
		Addr:              ":9090",
		Handler:           newEchoHandler(logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("echo target listening", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("echo target failed", "error", err)
		os.Exit(1)
	}
}

// newEchoHandler answers every request with the form fields, cookies and headers
// it received. A "status" query parameter selects the response code, so
// rejected dispatches can be reproduced locally.
func newEchoHandler(logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		if raw := r.URL.Query().Get("status"); raw != "" {
			code, err := strconv.Atoi(raw)
			if err != nil || code < 100 || code > 599 {
				http.Error(w, "invalid status", http.StatusBadRequest)
				return
			}
			status = code
		}

		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		out := received{
			Method:  r.Method,
			Path:    r.URL.Path,
			Form:    map[string][]string(r.PostForm),
			Cookies: map[string]string{},
			Headers: map[string]string{},
		}
		for _, c := range r.Cookies() {
			out.Cookies[c.Name] = c.Value
		}
		names := make([]string, 0, len(r.Header))
		for name := range r.Header {
			if name == "Cookie" {
				continue
			}
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			out.Headers[name] = r.Header.Get(name)
		}

		logger.Info("received",
			"method", out.Method,
			"path", out.Path,
			"fields", len(out.Form),
			"cookies", len(out.Cookies),
			"status", status,
		)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(out)
	})
}
