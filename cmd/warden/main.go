package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/crimson-sun/warden/internal/audit"
	"github.com/crimson-sun/warden/internal/audit/async"
	auditfile "github.com/crimson-sun/warden/internal/audit/file"
	"github.com/crimson-sun/warden/internal/audit/stdout"
	"github.com/crimson-sun/warden/internal/audit/webhook"
	"github.com/crimson-sun/warden/internal/config"
	"github.com/crimson-sun/warden/internal/engine"
	"github.com/crimson-sun/warden/internal/logging"
	"github.com/crimson-sun/warden/internal/server"
	"github.com/crimson-sun/warden/internal/server/ratelimit"

	// Register classifier adapters.
	_ "github.com/crimson-sun/warden/internal/classifier/guardian"
	_ "github.com/crimson-sun/warden/internal/classifier/judge"
	_ "github.com/crimson-sun/warden/internal/classifier/llamaguard"
)

func main() {
	// Local development convenience; absence of a .env file is fine.
	godotenv.Load()

	configPath := os.Getenv("WARDEN_CONFIG")
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logging.Init(cfg.Audit.Sink == "stdout", logging.ParseLevel(cfg.Server.LogLevel))

	eng, err := engine.New(cfg)
	if err != nil {
		log.Fatalf("failed to build engine: %v", err)
	}

	sink, err := buildSink(cfg.Audit)
	if err != nil {
		log.Fatalf("failed to build audit sink: %v", err)
	}
	rec := audit.NewRecorder(sink, cfg.Audit.Redact)
	defer rec.Close()

	limiter := ratelimit.New(cfg.Server.RateLimit, time.Duration(cfg.Server.RateWindowSec)*time.Second)

	srv := server.New(cfg.Server.Addr, eng, rec, limiter,
		server.WithReloader(func() (config.Config, error) {
			return config.Load(configPath)
		}))

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(os.Stderr, "\nreceived %v, shutting down...\n", sig)
		cancel()
	}()

	slog.Info("warden starting",
		"addr", cfg.Server.Addr,
		"classifiers", eng.ClassifierCount(),
		"screen_enabled", eng.ScreenEnabled(),
		"strategy", cfg.Resolution.Strategy)

	if err := srv.Run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
}

// buildSink constructs the audit destination named by configuration.
// File and webhook sinks are wrapped in an async queue so audit latency
// stays off the request path.
func buildSink(cfg config.AuditConfig) (audit.Sink, error) {
	switch cfg.Sink {
	case "", "stdout":
		return stdout.New(false), nil
	case "file":
		if cfg.Path == "" {
			return nil, fmt.Errorf("audit sink %q requires a path", cfg.Sink)
		}
		fs, err := auditfile.New(cfg.Path)
		if err != nil {
			return nil, err
		}
		return async.New(fs, 0), nil
	case "webhook":
		if cfg.URL == "" {
			return nil, fmt.Errorf("audit sink %q requires a url", cfg.Sink)
		}
		return async.New(webhook.New(cfg.URL), 0), nil
	case "none":
		return audit.Nop{}, nil
	default:
		return nil, fmt.Errorf("unknown audit sink %q", cfg.Sink)
	}
}
