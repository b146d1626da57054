// Command voicebridge runs the telephony-to-agent bridge server.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/agentplexus/voicebridge/config"
	"github.com/agentplexus/voicebridge/internal/twilio"
	"github.com/agentplexus/voicebridge/server"
	"github.com/agentplexus/voicebridge/session"
	"github.com/agentplexus/voicebridge/transfer"
)

func main() {
	// A missing .env is fine; the environment may be set directly.
	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	control, err := twilio.New(&twilio.Config{
		AccountSID: cfg.AccountSID,
		AuthToken:  cfg.AuthToken,
		BaseURL:    cfg.APIBaseURL,
	})
	if err != nil {
		return err
	}

	registry := session.NewRegistry()
	orchestrator := transfer.New(control, registry,
		transfer.WithHoldMusicURL(cfg.HoldMusicURL),
		transfer.WithTimeout(cfg.ControlTimeout),
		transfer.WithLogger(logger),
	)
	srv := server.New(cfg, registry, orchestrator, logger)

	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting voicebridge", "addr", cfg.Addr, "agent_id", cfg.AgentID)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
