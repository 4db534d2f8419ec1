// Platform server - captures stream frames, extracts slot values and serves them over HTTP/WebSocket
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/GriffinCanCode/reelwatch/backend/platform/internal/config"
	"github.com/GriffinCanCode/reelwatch/backend/platform/internal/extract"
	"github.com/GriffinCanCode/reelwatch/backend/platform/internal/grpcclient"
	"github.com/GriffinCanCode/reelwatch/backend/platform/internal/metrics"
	"github.com/GriffinCanCode/reelwatch/backend/platform/internal/ocr"
	"github.com/GriffinCanCode/reelwatch/backend/platform/internal/orchestrator"
	"github.com/GriffinCanCode/reelwatch/backend/platform/internal/publish"
	"github.com/GriffinCanCode/reelwatch/backend/platform/internal/resilience"
	"github.com/GriffinCanCode/reelwatch/backend/platform/internal/server"
)

func main() {
	cfg := config.Load()

	// Setup structured logging
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	m := metrics.New()

	// Connect to recognition gRPC server
	rcfg := grpcclient.DefaultConfig()
	rcfg.Addr = cfg.RecognizerAddr
	rcfg.Timeout = cfg.RecognizerTimeout
	rcfg.UseGPU = cfg.Pipeline.UseGPU
	rcfg.Retry.OnRetry = m.ObserveRetry
	recognizer, err := grpcclient.New(rcfg)
	if err != nil {
		slog.Error("failed to connect to recognizer", "addr", cfg.RecognizerAddr, "error", err)
		os.Exit(1)
	}
	defer func() { _ = recognizer.Close() }()
	recognizer.OnBreakerChange(func(from, to resilience.State) {
		m.ObserveBreaker(from, to)
		slog.Warn("recognizer circuit breaker", "from", from.String(), "to", to.String())
	})
	m.WatchBreaker(recognizer.BreakerCounts)

	// Load game templates
	templates := extract.NewRegistry()
	if cfg.TemplatesFile != "" {
		n, err := templates.LoadTemplates(cfg.TemplatesFile)
		if err != nil {
			slog.Error("failed to load templates", "path", cfg.TemplatesFile, "error", err)
			os.Exit(1)
		}
		slog.Info("templates loaded", "count", n, "path", cfg.TemplatesFile)
	}

	// Optional downstream event stream
	var publisher publish.Publisher
	var batcher *publish.Batcher
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer func() { _ = rdb.Close() }()

		pingCtx, pingCancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			slog.Warn("redis not reachable yet, events will be retried per batch", "addr", cfg.RedisAddr, "error", err)
		}
		pingCancel()

		batcher = publish.NewBatcher(
			publish.NewStreamPublisher(rdb, cfg.RedisStreamPrefix),
			publish.DefaultBatcherMaxSize,
			publish.DefaultBatcherFlushDelay,
		).OnFlush(func(events []publish.Event, err error) {
			for _, ev := range events {
				m.ObservePublish(ev.Type, err)
			}
		})
		publisher = batcher
	}

	// Create orchestrator
	orch := orchestrator.New(cfg, orchestrator.Deps{
		Recognizer: ocr.NewPool(recognizer, cfg.RecognizerWorkers),
		Templates:  templates,
		Publisher:  publisher,
		Metrics:    m,
	})

	// Create HTTP/WebSocket server
	srv := server.New(orch, templates, m, cfg)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := orch.Start(ctx); err != nil {
		slog.Error("orchestrator error", "error", err)
		os.Exit(1)
	}

	// Start HTTP server
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("platform server starting", "http", cfg.HTTPAddr, "recognizer", cfg.RecognizerAddr, "streams", len(cfg.Streams))
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("http server error", "error", err)
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	slog.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}

	cancel()
	orch.Stop()
	if batcher != nil {
		batcher.Stop()
	}
	slog.Info("shutdown complete")
}
