// Command server starts the AI Interview Coach HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/fairyhunter13/ai-interview-coach/internal/adapter/ai/real"
	httpserver "github.com/fairyhunter13/ai-interview-coach/internal/adapter/httpserver"
	"github.com/fairyhunter13/ai-interview-coach/internal/adapter/observability"
	"github.com/fairyhunter13/ai-interview-coach/internal/adapter/queue/redpanda"
	"github.com/fairyhunter13/ai-interview-coach/internal/adapter/session"
	"github.com/fairyhunter13/ai-interview-coach/internal/app"
	"github.com/fairyhunter13/ai-interview-coach/internal/config"
	"github.com/fairyhunter13/ai-interview-coach/internal/domain"
	"github.com/fairyhunter13/ai-interview-coach/internal/usecase"
)

func main() {
	// .env is a development convenience; absence is not an error.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)

	observability.InitMetrics()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	ctx := context.Background()

	// Session store: Redis when configured, bounded in-process otherwise.
	var (
		store      domain.SessionStore
		readyCheck func(ctx domain.Context) error
	)
	if cfg.SessionRedisURL != "" {
		redisStore, err := session.NewRedisStore(ctx, cfg.SessionRedisURL, cfg.SessionTTL)
		if err != nil {
			slog.Error("redis connect failed", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() { _ = redisStore.Close() }()
		store = redisStore
		readyCheck = func(ctx domain.Context) error {
			_, _ = redisStore.Get(ctx, "readyz-probe")
			return nil
		}
		slog.Info("session store: redis", slog.Duration("ttl", cfg.SessionTTL))
	} else {
		memStore := session.NewMemoryStore(cfg.SessionTTL, cfg.SessionMaxCount)
		defer memStore.Close()
		store = memStore
		slog.Info("session store: in-process",
			slog.Duration("ttl", cfg.SessionTTL),
			slog.Int("max_count", cfg.SessionMaxCount))
	}

	// Event publishing is optional; without brokers the pipeline runs silent.
	var events domain.EventPublisher
	if cfg.EventsEnabled() {
		pub, err := redpanda.NewPublisher(cfg.KafkaBrokers)
		if err != nil {
			slog.Error("event publisher connect failed", slog.Any("error", err))
			os.Exit(1)
		}
		defer pub.Close()
		events = pub
	}

	aiClient := real.New(cfg)
	slog.Info("llm gateway initialized",
		slog.String("provider", cfg.LLMProvider),
		slog.String("model", cfg.LLMModel))

	interviewSvc := usecase.NewInterviewService(aiClient, store, events, config.MustFallbacks(), usecase.InterviewOptions{
		ValidationEnabled:     cfg.ValidationEnabled,
		ValidationMaxAttempts: cfg.ValidationMaxAttempts,
		ValidationThreshold:   cfg.ValidationThreshold,
		PregenEnabled:         cfg.PregenEnabled,
	})
	analysisSvc := usecase.NewAnalysisService(aiClient, events)

	srv := &httpserver.Server{
		Cfg:        cfg,
		Interview:  interviewSvc,
		Analysis:   analysisSvc,
		ReadyCheck: readyCheck,
	}
	handler := app.BuildRouter(cfg, srv)

	srvHTTP := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server starting", slog.Int("port", cfg.Port))
		errCh <- srvHTTP.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", slog.Any("error", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()
	_ = srvHTTP.Shutdown(shutdownCtx)
}
