package app

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/mercadoforte/backend-caixa/internal/config"
	"github.com/mercadoforte/backend-caixa/internal/db"
	"github.com/mercadoforte/backend-caixa/internal/obs"
)

// Dependencies holds the connections shared by the API and the worker.
type Dependencies struct {
	DB     *pgxpool.Pool
	Redis  *redis.Client
	Tasks  *asynq.Client
	Logger zerolog.Logger
}

// Options tweaks how Open connects.
type Options struct {
	// ApplicationName is reported to Postgres as application_name.
	ApplicationName string
	RedisMetrics    bool
	ConnectTimeout  time.Duration
}

// Open connects to Postgres and Redis, runs migrations when configured and
// builds the asynq client used to enqueue receipts.
func Open(ctx context.Context, cfg *config.Config, logger zerolog.Logger, opts Options) (*Dependencies, error) {
	timeout := opts.ConnectTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if cfg.RunMigrations {
		if err := db.Migrate(cfg.DatabaseURL); err != nil {
			return nil, err
		}
		logger.Info().Msg("migrations applied")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	if opts.ApplicationName != "" {
		poolConfig.ConnConfig.RuntimeParams["application_name"] = opts.ApplicationName
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(rdb); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if opts.RedisMetrics {
		if err := redisotel.InstrumentMetrics(rdb); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	if err := rdb.Ping(ctx).Err(); err != nil {
		pool.Close()
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	connOpt, err := TaskRedis(cfg)
	if err != nil {
		pool.Close()
		_ = rdb.Close()
		return nil, err
	}
	return &Dependencies{DB: pool, Redis: rdb, Tasks: asynq.NewClient(connOpt), Logger: logger}, nil
}

// TaskRedis derives the asynq connection from REDIS_URL.
func TaskRedis(cfg *config.Config) (asynq.RedisConnOpt, error) {
	opt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url for tasks: %w", err)
	}
	return opt, nil
}

// Close releases every connection, logging failures.
func (d *Dependencies) Close() {
	if d == nil {
		return
	}
	if d.Tasks != nil {
		if err := d.Tasks.Close(); err != nil {
			d.Logger.Error().Err(err).Msg("close task client")
		}
	}
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			d.Logger.Error().Err(err).Msg("close redis")
		}
	}
	if d.DB != nil {
		d.DB.Close()
	}
}
