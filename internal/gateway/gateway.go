// Package gateway is the ingestion HTTP server: it turns form posts into
// submissions and hands them to the distributor.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/formrelay/formrelay/internal/config"
	"github.com/formrelay/formrelay/internal/dispatcher"
	"github.com/formrelay/formrelay/internal/distributor"
	"github.com/formrelay/formrelay/internal/logging"
	"github.com/formrelay/formrelay/internal/observability"
	"github.com/formrelay/formrelay/internal/ratelimit"
	"github.com/formrelay/formrelay/internal/submission"
)

type Options struct {
	Registry    *dispatcher.Registry
	Logger      *slog.Logger
	Tracer      trace.Tracer
	Metrics     *observability.Metrics
	DispatchLog *logging.DispatchLogger
}

type Gateway struct {
	opts  Options
	state atomic.Pointer[state]
}

// state is swapped as a whole on reload; requests in flight keep the state
// they started with.
type state struct {
	cfg         *config.Config
	router      *Router
	distributor *distributor.Distributor
	limiter     *ratelimit.Limiter
}

func New(cfg *config.Config, opts Options) (*Gateway, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	g := &Gateway{opts: opts}
	g.Reload(cfg)
	return g, nil
}

// Reload swaps routes, limits and the distributor atomically.
func (g *Gateway) Reload(cfg *config.Config) {
	var limiter *ratelimit.Limiter
	if cfg.Server.RateLimit.Enabled {
		limiter = ratelimit.NewLimiter(cfg.Server.RateLimit.RPS, cfg.Server.RateLimit.Burst)
	}
	g.state.Store(&state{
		cfg:    cfg,
		router: NewRouter(cfg.Routes),
		distributor: distributor.New(cfg.Routes, distributor.Options{
			Registry:    g.opts.Registry,
			Logger:      g.opts.Logger,
			Tracer:      g.opts.Tracer,
			Metrics:     g.opts.Metrics,
			DispatchLog: g.opts.DispatchLog,
		}),
		limiter: limiter,
	})
}

// Distributor returns the distributor of the current config.
func (g *Gateway) Distributor() *distributor.Distributor {
	return g.state.Load().distributor
}

// PruneLimiter drops idle rate limit buckets.
func (g *Gateway) PruneLimiter(now time.Time) int {
	return g.state.Load().limiter.Prune(now)
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	st := g.state.Load()

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	routes := st.router.Match(r)
	if len(routes) == 0 {
		g.opts.Metrics.ObserveSubmission(distributor.ResultNoRoute)
		http.NotFound(w, r)
		return
	}

	maxBody := st.cfg.Server.MaxBodyBytes
	if maxBody > 0 && r.ContentLength > maxBody {
		http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
		return
	}

	if st.limiter != nil {
		key := ratelimit.Key(ratelimit.KeyType(st.cfg.Server.RateLimit.Key), clientIP(r), r.URL.Path)
		if !st.limiter.Allow(key, time.Now()) {
			g.opts.Metrics.ObserveRateLimited()
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
	}

	data, inbound, err := submission.FromRequest(r, maxBody)
	if err != nil {
		if errors.Is(err, submission.ErrBodyTooLarge) {
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "invalid submission: "+err.Error(), http.StatusBadRequest)
		return
	}

	sub := submission.New(data)
	// a client hanging up must not abort dispatches already underway
	ctx := context.WithoutCancel(r.Context())
	if timeout := st.cfg.Dispatch.Timeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout*time.Duration(len(routes)))
		defer cancel()
	}

	report, err := st.distributor.DistributeRoutes(ctx, sub, inbound, routes)
	status := http.StatusAccepted
	if err != nil {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, report)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func clientIP(r *http.Request) string {
	if r == nil {
		return ""
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}
