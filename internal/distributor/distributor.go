// Package distributor runs every selected route for one submission in declared
// order.
package distributor

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/formrelay/formrelay/internal/config"
	"github.com/formrelay/formrelay/internal/dispatcher"
	"github.com/formrelay/formrelay/internal/logging"
	"github.com/formrelay/formrelay/internal/observability"
	"github.com/formrelay/formrelay/internal/route"
	"github.com/formrelay/formrelay/internal/submission"
)

// Submission results recorded in metrics.
const (
	ResultOK      = "ok"
	ResultFailed  = "failed"
	ResultNoRoute = "no_route"
)

type Options struct {
	Registry    *dispatcher.Registry
	Logger      *slog.Logger
	Tracer      trace.Tracer
	Metrics     *observability.Metrics
	DispatchLog *logging.DispatchLogger
}

type Distributor struct {
	routes      []config.Route
	registry    *dispatcher.Registry
	logger      *slog.Logger
	tracer      trace.Tracer
	metrics     *observability.Metrics
	dispatchLog *logging.DispatchLogger
	now         func() time.Time
}

// RouteReport summarizes one route process.
type RouteReport struct {
	Route      string `json:"route"`
	Outcome    string `json:"outcome"`
	StatusCode int    `json:"status_code,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

type Report struct {
	SubmissionID string        `json:"submission_id"`
	Routes       []RouteReport `json:"routes"`
}

// OK reports whether every route was sent successfully.
func (r Report) OK() bool {
	for _, rr := range r.Routes {
		if rr.Outcome != logging.OutcomeSent {
			return false
		}
	}
	return true
}

func New(routes []config.Route, opts Options) *Distributor {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Distributor{
		routes:      routes,
		registry:    opts.Registry,
		logger:      logger,
		tracer:      opts.Tracer,
		metrics:     opts.Metrics,
		dispatchLog: opts.DispatchLog,
		now:         time.Now,
	}
}

// Routes returns the enabled routes in declared order.
func (d *Distributor) Routes() []config.Route {
	out := make([]config.Route, 0, len(d.routes))
	for _, r := range d.routes {
		if r.IsEnabled() {
			out = append(out, r)
		}
	}
	return out
}

// Distribute runs every enabled route.
func (d *Distributor) Distribute(ctx context.Context, sub *submission.Submission, inbound submission.Context) (Report, error) {
	return d.DistributeRoutes(ctx, sub, inbound, d.Routes())
}

// DistributeRoutes first lets every route add context from the inbound request,
// then processes them one after another. A failing route does not stop the
// others; all failures are joined into the returned error.
func (d *Distributor) DistributeRoutes(ctx context.Context, sub *submission.Submission, inbound submission.Context, routes []config.Route) (Report, error) {
	report := Report{SubmissionID: sub.ID, Routes: make([]RouteReport, 0, len(routes))}
	if len(routes) == 0 {
		d.metrics.ObserveSubmission(ResultNoRoute)
		return report, nil
	}

	opts := route.Options{
		Registry: d.registry,
		Logger:   d.logger.With("submission_id", sub.ID),
		Tracer:   d.tracer,
		Metrics:  d.metrics,
	}
	active := make([]*route.Route, 0, len(routes))
	for _, cfg := range routes {
		active = append(active, route.New(cfg, sub, opts))
	}

	if inbound != nil {
		for _, r := range active {
			r.AddContext(inbound)
		}
	}

	var errs []error
	for _, r := range active {
		res, err := r.Process(ctx)
		if err != nil {
			errs = append(errs, err)
		}
		report.Routes = append(report.Routes, d.record(sub.ID, res))
	}

	err := errors.Join(errs...)
	if err != nil {
		d.metrics.ObserveSubmission(ResultFailed)
	} else {
		d.metrics.ObserveSubmission(ResultOK)
	}
	return report, err
}

func (d *Distributor) record(submissionID string, res route.Result) RouteReport {
	rr := RouteReport{
		Route:      res.Route,
		Outcome:    res.Outcome,
		StatusCode: res.StatusCode,
		DurationMS: res.Duration.Milliseconds(),
	}
	if res.Err != nil {
		rr.Error = redactSecrets(res.Err.Error())
	}

	entry := logging.Dispatch{
		Timestamp:    d.now().UTC(),
		SubmissionID: submissionID,
		Route:        res.Route,
		Method:       res.Method,
		Host:         res.Host,
		StatusCode:   res.StatusCode,
		Outcome:      res.Outcome,
		Error:        rr.Error,
		Cookies:      res.Cookies,
		Headers:      res.Headers,
		DurationMS:   rr.DurationMS,
	}
	if err := d.dispatchLog.Write(entry); err != nil {
		d.logger.Warn("dispatch log write failed", "error", err)
	}
	d.metrics.ObserveDispatch(entry)

	attrs := []any{
		"submission_id", submissionID,
		"route", res.Route,
		"method", res.Method,
		"host", res.Host,
		"status", res.StatusCode,
		"outcome", res.Outcome,
		"duration", res.Duration,
	}
	if res.Err != nil {
		d.logger.Warn("route failed", append(attrs, "error", rr.Error)...)
	} else {
		d.logger.Info("route dispatched", attrs...)
	}
	return rr
}

var (
	secretKVPattern     = regexp.MustCompile(`(?i)\b(password|passwd|token|api[_-]?key|secret)\s*=\s*([^\s&"]+)`)
	secretBearerPattern = regexp.MustCompile(`(?i)\bbearer\s+[A-Za-z0-9._~+/\-]+=*`)
)

// redactSecrets masks credentials that transport errors may echo from the target URL.
func redactSecrets(input string) string {
	if input == "" {
		return input
	}
	redacted := secretKVPattern.ReplaceAllString(input, `$1=<redacted>`)
	return secretBearerPattern.ReplaceAllString(redacted, "bearer <redacted>")
}
