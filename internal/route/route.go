// Package route runs one configured distribution target for a submission:
// extracting cookies and headers into the submission context, then resolving
// them into overrides and handing the mapped payload to a dispatcher.
package route

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/formrelay/formrelay/internal/config"
	"github.com/formrelay/formrelay/internal/dispatcher"
	"github.com/formrelay/formrelay/internal/logging"
	"github.com/formrelay/formrelay/internal/observability"
	"github.com/formrelay/formrelay/internal/outbound"
	"github.com/formrelay/formrelay/internal/rules"
	"github.com/formrelay/formrelay/internal/submission"
)

// ErrNoURL is returned by Process when the url rule resolves to nothing.
var ErrNoURL = errors.New("no URL found for request dispatcher")

type Options struct {
	Registry *dispatcher.Registry
	Logger   *slog.Logger
	Tracer   trace.Tracer
	Metrics  *observability.Metrics
}

type Route struct {
	cfg        config.Route
	submission *submission.Submission
	registry   *dispatcher.Registry
	logger     *slog.Logger
	tracer     trace.Tracer
	metrics    *observability.Metrics
}

// Result describes one Process call.
type Result struct {
	Route      string
	Method     string
	Host       string
	StatusCode int
	Outcome    string
	Cookies    []string
	Headers    []string
	Duration   time.Duration
	Err        error
}

func New(cfg config.Route, sub *submission.Submission, opts Options) *Route {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("")
	}
	return &Route{
		cfg:        cfg,
		submission: sub,
		registry:   opts.Registry,
		logger:     logger.With("route", cfg.Name),
		tracer:     tracer,
		metrics:    opts.Metrics,
	}
}

func (r *Route) Name() string {
	return r.cfg.Name
}

func (r *Route) cookieEngine() *rules.Engine {
	return &rules.Engine{Rules: r.cfg.Cookies.Resolve(r.submission.Data)}
}

func (r *Route) headerEngine() *rules.Engine {
	return &rules.Engine{Rules: r.cfg.Headers.Resolve(r.submission.Data)}
}

// AddContext copies the inbound cookies and request variables selected by
// passthrough rules into the submission context. It only ever adds entries.
func (r *Route) AddContext(inbound submission.Context) {
	sctx := r.submission.Context

	cookies := r.cookieEngine().ExtractCookies(inbound.Cookies())
	for name, value := range cookies {
		sctx.SetCookie(name, value)
	}
	headers := r.headerEngine().ExtractHeaders(inbound.RequestVariable)
	for name, value := range headers {
		sctx.SetRequestVariable(name, value)
	}

	r.metrics.ObserveContext(r.cfg.Name, observability.KindCookie, len(cookies))
	r.metrics.ObserveContext(r.cfg.Name, observability.KindHeader, len(headers))
	if len(cookies)+len(headers) > 0 {
		r.logger.Debug("context added", "cookies", len(cookies), "headers", len(headers))
	}
}

// Process resolves the route against the submission and sends it once.
func (r *Route) Process(ctx context.Context) (Result, error) {
	start := time.Now()
	res := Result{Route: r.cfg.Name, Method: strings.ToUpper(r.cfg.HTTPMethod())}

	ctx, span := r.tracer.Start(ctx, "route.process", trace.WithAttributes(
		attribute.String("formrelay.route", r.cfg.Name),
		attribute.String("http.request.method", res.Method),
	))
	defer span.End()

	err := r.process(ctx, &res)
	res.Duration = time.Since(start)
	res.Err = err
	res.Outcome = outcome(err)

	span.SetAttributes(
		attribute.String("server.address", res.Host),
		attribute.String("formrelay.outcome", res.Outcome),
	)
	if res.StatusCode != 0 {
		span.SetAttributes(attribute.Int("http.response.status_code", res.StatusCode))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, res.Outcome)
	}
	return res, err
}

func (r *Route) process(ctx context.Context, res *Result) error {
	data := r.submission.Data

	rawURL, _ := r.cfg.URL.ResolveString(data)
	if rawURL == "" {
		r.logger.Error("no URL provided for request dispatcher")
		return fmt.Errorf("route %s: %w", r.cfg.Name, ErrNoURL)
	}

	sctx := r.submission.Context
	cookies := r.cookieEngine().ResolveCookies(sctx.Cookies())
	headers := r.headerEngine().ResolveHeaders(sctx.RequestVariables())
	res.Cookies = sortedNames(cookies)
	res.Headers = sortedNames(headers)

	if r.registry == nil {
		return fmt.Errorf("route %s: %w", r.cfg.Name, dispatcher.ErrUnknownDispatcher)
	}
	d, err := r.registry.DataDispatcher(dispatcher.KeywordRequest)
	if err != nil {
		return fmt.Errorf("route %s: %w", r.cfg.Name, err)
	}
	if err := d.SetURL(rawURL); err != nil {
		return fmt.Errorf("route %s: %w", r.cfg.Name, err)
	}
	if u, err := url.Parse(rawURL); err == nil {
		res.Host = u.Host
	}
	d.AddCookies(cookies)
	d.AddHeaders(headers)
	d.SetMethod(res.Method)

	err = d.Send(ctx, r.cfg.Fields.Map(data))
	var de *dispatcher.DispatchError
	if errors.As(err, &de) {
		res.StatusCode = de.StatusCode
	} else if sr, ok := d.(statusReporter); ok {
		res.StatusCode = sr.StatusCode()
	}
	if err != nil {
		return fmt.Errorf("route %s: %w", r.cfg.Name, err)
	}
	return nil
}

type statusReporter interface {
	StatusCode() int
}

func outcome(err error) string {
	if err == nil {
		return logging.OutcomeSent
	}
	var (
		de *dispatcher.DispatchError
		ie *dispatcher.InvalidURLError
	)
	switch {
	case errors.Is(err, ErrNoURL):
		return logging.OutcomeNoURL
	case errors.As(err, &ie):
		return logging.OutcomeBadURL
	case errors.As(err, &de) && de.StatusCode != 0:
		return logging.OutcomeRejected
	default:
		return logging.OutcomeFailed
	}
}

func sortedNames(values outbound.Values) []string {
	names := values.Names()
	sort.Strings(names)
	return names
}
