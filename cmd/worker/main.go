package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/mercadoforte/backend-caixa/internal/app"
	"github.com/mercadoforte/backend-caixa/internal/cache"
	"github.com/mercadoforte/backend-caixa/internal/checkout"
	"github.com/mercadoforte/backend-caixa/internal/config"
	"github.com/mercadoforte/backend-caixa/internal/obs"
	"github.com/mercadoforte/backend-caixa/internal/receipt"
	"github.com/mercadoforte/backend-caixa/internal/resilience"
	"github.com/mercadoforte/backend-caixa/internal/settings"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("component", "worker").Logger()

	obs.MustRegisterDomainMetrics(envOrDefault("OBS_METRICS_NAMESPACE", "caixa"), prometheus.DefaultRegisterer)
	resilience.MustRegisterMetrics(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := app.Open(ctx, cfg, logger, app.Options{ApplicationName: "caixa-worker"})
	if err != nil {
		logger.Fatal().Err(err).Msg("open dependencies")
	}
	defer deps.Close()

	printer, err := receipt.NewPrinter(cfg.ReceiptPrinterType, cfg.ReceiptPrinterAddr, cfg.ReceiptPrinterDevice, cfg.PrinterTimeout)
	if err != nil {
		logger.Fatal().Err(err).Msg("configure receipt printer")
	}
	breaker := resilience.NewBreaker(cfg.PrinterBreakerMinReq, cfg.PrinterBreakerRatio, cfg.PrinterBreakerOpen).
		WithTarget("receipt-printer").
		WithLogger(logger)

	processor := &receipt.Processor{
		Sales:    checkout.NewStore(deps.DB),
		Settings: &settings.Service{Store: settings.NewStore(deps.DB), Cache: cache.New(deps.Redis, cfg.SettingsCacheTTL)},
		Printer:  receipt.GuardedPrinter{Printer: printer, Breaker: breaker},
		Width:    cfg.ReceiptWidth,
		Location: cfg.Location(),
		Logger:   logger,
	}

	redisOpt, err := app.TaskRedis(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse task redis url")
	}
	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: cfg.WorkerConcurrency,
		Queues:      map[string]int{app.ReceiptQueue: 1},
		Logger:      asynqLogger{logger: logger.With().Str("subsystem", "asynq").Logger()},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)
			logger.Warn().Err(err).Str("task", task.Type()).Int("retry", retried).Int("max_retry", maxRetry).Msg("task failed")
		}),
		ShutdownTimeout: 10 * time.Second,
	})

	mux := asynq.NewServeMux()
	mux.Handle(receipt.TypePrint, processor)

	logger.Info().Str("printer", cfg.ReceiptPrinterType).Msg("worker starting")
	if err := srv.Start(mux); err != nil {
		logger.Fatal().Err(err).Msg("start worker")
	}
	<-ctx.Done()
	srv.Shutdown()
	logger.Info().Msg("worker shutdown complete")
}

// asynqLogger routes asynq's logs through zerolog.
type asynqLogger struct {
	logger zerolog.Logger
}

func (l asynqLogger) Debug(args ...interface{}) { l.logger.Debug().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Info(args ...interface{})  { l.logger.Info().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Warn(args ...interface{})  { l.logger.Warn().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Error(args ...interface{}) { l.logger.Error().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Fatal(args ...interface{}) { l.logger.Fatal().Msg(fmt.Sprint(args...)) }

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}
