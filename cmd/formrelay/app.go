package main

import (
	"context"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/formrelay/formrelay/internal/config"
	"github.com/formrelay/formrelay/internal/dispatcher"
	"github.com/formrelay/formrelay/internal/logging"
	"github.com/formrelay/formrelay/internal/observability"
)

// app holds what serve and send share. When logOutput is set, operational logs
// go there as text instead of the configured sink.
type app struct {
	logger      *slog.Logger
	registry    *dispatcher.Registry
	dispatchLog *logging.DispatchLogger
	metrics     *observability.Metrics
	metricsReg  *prometheus.Registry
	closers     []func() error
	shutdown    func(context.Context) error
}

func newApp(ctx context.Context, cfg *config.Config, logOutput io.Writer) (*app, error) {
	rt := &app{shutdown: func(context.Context) error { return nil }}

	var (
		logger *slog.Logger
		closer io.Closer
		err    error
	)
	if logOutput != nil {
		lvl, lerr := logging.ParseLevel(cfg.Logging.Level)
		if lerr != nil {
			return nil, lerr
		}
		logger = slog.New(slog.NewTextHandler(logOutput, &slog.HandlerOptions{Level: lvl}))
	} else {
		logger, closer, err = logging.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
		if err != nil {
			return nil, err
		}
		if closer != nil {
			rt.closers = append(rt.closers, closer.Close)
		}
	}
	rt.logger = logger

	if cfg.Logging.DispatchLog != "" {
		dl, closeFn, err := logging.OpenDispatchLog(cfg.ResolvePath(cfg.Logging.DispatchLog))
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.dispatchLog = dl
		rt.closers = append(rt.closers, closeFn)
	}

	if cfg.Metrics.Enabled {
		rt.metricsReg = prometheus.NewRegistry()
		rt.metrics = observability.NewMetrics(rt.metricsReg)
	}

	shutdown, err := observability.InitTracing(ctx, cfg.Tracing, version, func(err error) {
		logger.Warn("tracing error", "error", err)
	})
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.shutdown = shutdown

	rt.registry = dispatcher.NewRegistry()
	dispatcher.RegisterRequest(rt.registry, dispatcher.NewClient(dispatcher.ClientOptions{
		Timeout: cfg.Dispatch.Timeout,
		Tracing: cfg.Tracing.Enabled,
	}))
	return rt, nil
}

func (rt *app) Close() {
	if rt.shutdown != nil {
		_ = rt.shutdown(context.Background())
	}
	for i := len(rt.closers) - 1; i >= 0; i-- {
		_ = rt.closers[i]()
	}
}
