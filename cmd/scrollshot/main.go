// Scrollshot server - captures a scrolling screen region into one tall image
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/GriffinCanCode/scrollshot/internal/config"
	apperrors "github.com/GriffinCanCode/scrollshot/internal/errors"
	"github.com/GriffinCanCode/scrollshot/internal/history"
	"github.com/GriffinCanCode/scrollshot/internal/logging"
	"github.com/GriffinCanCode/scrollshot/internal/resilience"
	"github.com/GriffinCanCode/scrollshot/internal/runner"
	"github.com/GriffinCanCode/scrollshot/internal/screen"
	"github.com/GriffinCanCode/scrollshot/internal/scroll"
	"github.com/GriffinCanCode/scrollshot/internal/server"
	"github.com/GriffinCanCode/scrollshot/internal/session"
	"github.com/GriffinCanCode/scrollshot/internal/trace"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	once := flag.Bool("once", false, "run one capture in the foreground, print the output path and exit")
	region := flag.String("region", "", "selection as x,y,w,h in logical points (with -once)")
	flag.Parse()

	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "scrollshot:", err)
		os.Exit(2)
	}

	// Setup structured logging
	logger, err := logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		fmt.Fprintln(os.Stderr, "scrollshot:", err)
		os.Exit(2)
	}
	slog.SetDefault(logger)

	if err := run(cfg, *once, *region); err != nil {
		slog.Error("scrollshot failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, once bool, region string) error {
	breakerCfg := resilience.CaptureConfig()
	breakerCfg.Threshold = cfg.Capture.BreakerThreshold
	breakerCfg.ResetTimeout = cfg.Capture.BreakerReset
	breaker := resilience.New(breakerCfg)
	capturer := screen.Guarded(screen.New(), breaker)
	defer capturer.Close()

	store, err := history.Open(cfg.Storage.HistoryPath)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	r := runner.New(capturer, scroll.New(), runner.FileEditor{Dir: cfg.Storage.OutputDir}, store, runner.Config{
		MaxSteps:    cfg.Capture.MaxSteps,
		SettleDelay: cfg.Capture.SettleDelay,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if once {
		return captureOnce(ctx, r, cfg, region)
	}
	return serve(ctx, r, store, breaker, cfg)
}

// captureOnce runs a single session; an interrupt ends it early but still saves.
func captureOnce(ctx context.Context, r *runner.Runner, cfg *config.Config, region string) error {
	sel, err := parseRegion(region)
	if err != nil {
		return err
	}
	ctx, _ = trace.EnsureContext(ctx)

	res, err := r.Run(ctx, runner.Request{
		Selection:   sel,
		ScaleFactor: cfg.Capture.ScaleFactor,
		DisplayID:   cfg.Capture.DisplayID,
	})
	if err != nil {
		return err
	}
	slog.Info("capture saved", "reason", res.Reason.String(), "frames", res.Frames, "width", res.Width, "height", res.Height)
	fmt.Println(res.Output)
	return nil
}

func serve(ctx context.Context, r *runner.Runner, store *history.Store, breaker *resilience.Breaker, cfg *config.Config) error {
	srv := server.New(r, store, cfg)
	srv.Watch(breaker)
	defer srv.Close()

	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("scrollshot server starting", "http", cfg.Server.HTTPAddr, "output", cfg.Storage.OutputDir, "history", store.Path())
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for shutdown signal
	select {
	case <-ctx.Done():
	case err := <-errCh:
		return apperrors.Wrap(err, apperrors.CodeUnavailable, "http server")
	}

	slog.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}

	// let an active session stitch and save what it has
	r.Stop()
	if err := waitIdle(shutdownCtx, r); err != nil {
		slog.Warn("session still running at shutdown", "error", err)
	}
	slog.Info("shutdown complete")
	return nil
}

func waitIdle(ctx context.Context, r *runner.Runner) error {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for r.Busy() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// parseRegion reads "x,y,w,h" in logical points.
func parseRegion(s string) (session.Rect, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return session.Rect{}, apperrors.Newf(apperrors.CodeInvalidArgument, "region must be x,y,w,h, got %q", s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return session.Rect{}, apperrors.Wrapf(err, apperrors.CodeInvalidArgument, "region component %q", p)
		}
		v[i] = f
	}
	if v[2] <= 0 || v[3] <= 0 {
		return session.Rect{}, apperrors.Newf(apperrors.CodeInvalidArgument, "region size must be positive, got %gx%g", v[2], v[3])
	}
	return session.Rect{X: v[0], Y: v[1], Width: v[2], Height: v[3]}, nil
}
