// Command quizwalker-server exposes quiz walks over HTTP.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/use-agent/quizwalker/api"
	"github.com/use-agent/quizwalker/api/handler"
	"github.com/use-agent/quizwalker/browser"
	"github.com/use-agent/quizwalker/config"
	"github.com/use-agent/quizwalker/logging"
	"github.com/use-agent/quizwalker/runner"
	"github.com/use-agent/quizwalker/runstore"
	"github.com/use-agent/quizwalker/walker"
	"github.com/use-agent/quizwalker/webhook"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	// A server run should not pop browser windows unless asked to.
	if os.Getenv("QUIZWALKER_HEADLESS") == "" {
		cfg.Browser.Headless = true
	}

	// ── 2. Initialise structured logging ────────────────────────────
	closeLog, err := logging.Init(cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer closeLog()

	slog.Info("quizwalker-server starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"maxRuns", cfg.Server.MaxConcurrentRuns,
	)

	// ── 3. Run service ──────────────────────────────────────────────
	lc := browser.NewLauncher(cfg.Browser, slog.Default())
	opener := walker.OpenerFunc(func(ctx context.Context) (walker.Session, error) {
		s, err := lc.Open(ctx)
		if err != nil {
			return nil, err
		}
		return s, nil
	})

	store := runstore.New(cfg.Server.JobTTL)
	defer store.Stop()

	svc := handler.NewRunService(
		runner.New(cfg, opener, slog.Default()),
		store,
		webhook.NewNotifier(slog.Default()),
		cfg,
		slog.Default(),
	)

	// ── 4. Setup router ─────────────────────────────────────────────
	router := api.NewRouter(svc, cfg, time.Now())

	// ── 5. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── 6. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	// In-flight walks get a grace period, then their browsers are closed.
	runCtx, runCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer runCancel()
	if err := svc.Shutdown(runCtx); err != nil {
		slog.Warn("in-flight runs canceled", "error", err)
	}

	slog.Info("quizwalker-server stopped")
}
