package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/formrelay/formrelay/internal/logging"
)

type Metrics struct {
	dispatchesTotal     *prometheus.CounterVec
	dispatchDuration    *prometheus.HistogramVec
	contextEntriesTotal *prometheus.CounterVec
	submissionsTotal    *prometheus.CounterVec
	ratelimitHitsTotal  prometheus.Counter
}

// Context entry kinds.
const (
	KindCookie = "cookie"
	KindHeader = "header"
)

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		dispatchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "formrelay_dispatches_total", Help: "Total route dispatches"},
			[]string{"route", "method", "outcome", "code"},
		),
		dispatchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "formrelay_dispatch_duration_seconds",
				Help:    "Route dispatch duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		contextEntriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "formrelay_context_entries_total", Help: "Cookies and headers copied into submission contexts"},
			[]string{"route", "kind"},
		),
		submissionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "formrelay_submissions_total", Help: "Total distributed submissions"},
			[]string{"result"},
		),
		ratelimitHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{Name: "formrelay_ratelimit_hits_total", Help: "Submissions rejected by the rate limiter"},
		),
	}

	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.dispatchesTotal,
		m.dispatchDuration,
		m.contextEntriesTotal,
		m.submissionsTotal,
		m.ratelimitHitsTotal,
	)

	return m
}

func (m *Metrics) Handler(reg *prometheus.Registry) http.Handler {
	if reg == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// ObserveDispatch records one route process. A nil Metrics is a no-op.
func (m *Metrics) ObserveDispatch(d logging.Dispatch) {
	if m == nil {
		return
	}
	m.dispatchesTotal.WithLabelValues(d.Route, d.Method, d.Outcome, strconv.Itoa(d.StatusCode)).Inc()
	m.dispatchDuration.WithLabelValues(d.Route).Observe((time.Duration(d.DurationMS) * time.Millisecond).Seconds())
}

func (m *Metrics) ObserveContext(route, kind string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.contextEntriesTotal.WithLabelValues(route, kind).Add(float64(n))
}

func (m *Metrics) ObserveSubmission(result string) {
	if m == nil {
		return
	}
	m.submissionsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveRateLimited() {
	if m == nil {
		return
	}
	m.ratelimitHitsTotal.Inc()
}
