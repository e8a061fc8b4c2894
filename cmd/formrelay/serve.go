package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/formrelay/formrelay/internal/config"
	"github.com/formrelay/formrelay/internal/gateway"
	"github.com/formrelay/formrelay/internal/logging"
	"github.com/formrelay/formrelay/internal/observability"
)

const pruneInterval = time.Minute

func newServeCmd() *cobra.Command {
	var configPath string
	var watch bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Accept form submissions and distribute them",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return errors.New("config path is required")
			}
			cfg, err := config.LoadValid(configPath)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), configPath, cfg, watch)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	cmd.Flags().BoolVar(&watch, "watch", true, "Reload routes when the config file changes")

	return cmd
}

func serve(ctx context.Context, configPath string, cfg *config.Config, watch bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	signalCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := newApp(signalCtx, cfg, nil)
	if err != nil {
		return err
	}
	defer rt.Close()
	logger := rt.logger

	gw, err := gateway.New(cfg, gateway.Options{
		Registry:    rt.registry,
		Logger:      logger,
		Tracer:      observability.Tracer(),
		Metrics:     rt.metrics,
		DispatchLog: rt.dispatchLog,
	})
	if err != nil {
		return err
	}

	var handler http.Handler = logging.AccessLog(logger, gw)
	if cfg.Tracing.Enabled {
		handler = otelhttp.NewHandler(handler, "formrelay.ingest")
	}

	metricsSrv := startMetricsServer(cfg, rt)
	defer func() {
		if metricsSrv != nil {
			_ = metricsSrv.Shutdown(context.Background())
		}
	}()

	if watch {
		w, err := config.NewWatcher(configPath, func(next *config.Config) {
			if next.Dispatch.Timeout != cfg.Dispatch.Timeout || next.Tracing != cfg.Tracing {
				logger.Warn("dispatch and tracing settings apply on restart only")
			}
			gw.Reload(next)
		}, logger)
		if err != nil {
			return err
		}
		go func() { _ = w.Run(signalCtx) }()
	}

	go func() {
		ticker := time.NewTicker(pruneInterval)
		defer ticker.Stop()
		for {
			select {
			case <-signalCtx.Done():
				return
			case now := <-ticker.C:
				gw.PruneLimiter(now)
			}
		}
	}()

	srv := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.ListenAndServe()
	}()
	logger.Info("formrelay listening", "addr", cfg.Server.Listen, "routes", len(cfg.Routes))

	select {
	case <-signalCtx.Done():
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func startMetricsServer(cfg *config.Config, rt *app) *http.Server {
	if !cfg.Metrics.Enabled || rt.metrics == nil {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", rt.metrics.Handler(rt.metricsReg))

	srv := &http.Server{Addr: cfg.Metrics.Listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			rt.logger.Error("metrics server failed", "error", err)
		}
	}()
	return srv
}
