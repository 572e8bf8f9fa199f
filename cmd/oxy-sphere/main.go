// Command oxy-sphere tesselates a sphere on the compute device straight into the renderer's
// vertex buffer and draws it as points.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Carmen-Shannon/oxy-sphere/engine/config"
	"github.com/Carmen-Shannon/oxy-sphere/engine/logger"
	"github.com/Carmen-Shannon/oxy-sphere/engine/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML or YAML config file, watched for changes")
	frames := flag.Int("frames", 0, "render this many frames and exit; 0 runs until closed")
	flag.Parse()

	if err := run(*configPath, *frames); err != nil {
		fmt.Fprintln(os.Stderr, "oxy-sphere:", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// newRegistry returns a registry with the Go runtime and process collectors.
func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// serveMetrics runs the /metrics endpoint until ctx is done.
func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry, log *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		log.Info("metrics server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("metrics server shutdown: %w", err)
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func run(configPath string, frames int) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	reg := newRegistry()
	a, err := newApp(cfg, log, metrics.New(reg))
	if err != nil {
		return err
	}
	defer a.close()

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(sigCtx)
	g, gctx := errgroup.WithContext(ctx)

	if cfg.Metrics.Addr != "" {
		g.Go(func() error {
			return serveMetrics(gctx, cfg.Metrics.Addr, reg, log)
		})
	}
	if configPath != "" {
		watcher := config.NewWatcher(configPath, a.submit, config.WithWatcherLogger(log.Named("config")))
		g.Go(func() error {
			return watcher.Run(gctx)
		})
	}
	// a signal or a failed background task stops the engine
	g.Go(func() error {
		<-gctx.Done()
		a.engine.Quit()
		return nil
	})

	// the engine runs on the main thread, where the window was created
	runErr := a.run(frames)
	cancel()
	if err := g.Wait(); err != nil {
		log.Error("background task failed", zap.Error(err))
		if runErr == nil {
			runErr = err
		}
	}
	return runErr
}
