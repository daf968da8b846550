package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gastro-rechner/internal/config"
	"github.com/noah-isme/gastro-rechner/internal/obs"
	"github.com/noah-isme/gastro-rechner/internal/settings"
	"github.com/noah-isme/gastro-rechner/internal/store"
	"github.com/noah-isme/gastro-rechner/internal/submission"
	"github.com/noah-isme/gastro-rechner/internal/summary"
)

func main() {
	enqueueDay := flag.String("enqueue", "", "enqueue a summary for YYYY-MM-DD (or \"yesterday\") and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("component", "worker").Logger()

	obs.MustRegisterDomainMetrics(envOrDefault("OBS_METRICS_NAMESPACE", "gastro"), nil)

	loc, err := cfg.Location()
	if err != nil {
		logger.Fatal().Err(err).Msg("load timezone")
	}

	redisConn, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}

	if *enqueueDay != "" {
		mustEnqueue(redisConn, *enqueueDay, logger)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	pool, err := store.NewPool(startCtx, store.PoolConfig{
		URL:             cfg.DatabaseURL,
		ApplicationName: "gastro-rechner-worker",
		MaxConns:        int32(max(cfg.WorkerConcurrency, 2)),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	settingsStore := settings.NewStore(store.NewSettingsStore(pool), logger)
	svc := submission.NewService(store.NewSubmissionStore(pool), settingsStore, logger)

	mux := asynq.NewServeMux()
	mux.Handle(summary.TypeDaily, &summary.Handler{
		Source:   svc,
		Settings: settingsStore,
		Location: loc,
		Logger:   logger.With().Str("task", summary.TypeDaily).Logger(),
	})

	srv := asynq.NewServer(redisConn, asynq.Config{
		Concurrency:     max(cfg.WorkerConcurrency, 1),
		Logger:          summary.Logger{L: logger},
		ShutdownTimeout: 10 * time.Second,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			logger.Error().Err(err).Str("task", task.Type()).Msg("task failed")
		}),
	})

	scheduler := summary.NewScheduler(redisConn, loc, logger)
	entryID, err := summary.RegisterSchedule(scheduler, cfg.SummaryCron)
	if err != nil {
		logger.Fatal().Err(err).Msg("register summary schedule")
	}
	logger.Info().Str("entry", entryID).Str("cron", cfg.SummaryCron).Str("timezone", loc.String()).Msg("summary scheduled")

	metricsSrv := &http.Server{Addr: cfg.WorkerMetricsAddr, Handler: promhttp.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics server stopped")
		}
	}()

	if err := srv.Start(mux); err != nil {
		logger.Fatal().Err(err).Msg("start task server")
	}
	if err := scheduler.Start(); err != nil {
		logger.Fatal().Err(err).Msg("start scheduler")
	}
	logger.Info().Msg("worker starting")

	<-ctx.Done()
	logger.Info().Msg("worker shutting down")

	scheduler.Shutdown()
	srv.Shutdown()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown metrics server")
	}
	logger.Info().Msg("worker shutdown complete")
}

func mustEnqueue(conn asynq.RedisConnOpt, day string, logger zerolog.Logger) {
	if strings.EqualFold(day, "yesterday") {
		day = ""
	}
	task, err := summary.NewTask(day)
	if err != nil {
		logger.Fatal().Err(err).Msg("build summary task")
	}
	client := asynq.NewClient(conn)
	defer func() {
		if err := client.Close(); err != nil {
			logger.Error().Err(err).Msg("close asynq client")
		}
	}()
	info, err := client.Enqueue(task)
	if err != nil {
		logger.Fatal().Err(err).Msg("enqueue summary")
	}
	logger.Info().Str("task_id", info.ID).Str("day", day).Msg("summary enqueued")
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}
