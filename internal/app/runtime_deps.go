package app

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/sitepay/internal/payroll"
	"github.com/odyssey-erp/sitepay/internal/platform/cache"
	"github.com/odyssey-erp/sitepay/internal/platform/db"
	"github.com/odyssey-erp/sitepay/internal/shared"
)

// Deps holds the infrastructure handles and the payroll service shared by
// the server, the worker and the CLI.
type Deps struct {
	Pool        *pgxpool.Pool
	Redis       *redis.Client
	Rates       *payroll.RateRepository
	Audit       *shared.ReviewAudit
	Idempotency *shared.IdempotencyStore
	Payroll     *payroll.Service
}

// OpenDeps connects to Postgres and Redis and assembles the payroll service.
// Redis being unreachable is logged and tolerated; reports are then built
// from the store on every request until it recovers.
func OpenDeps(ctx context.Context, cfg *Config, logger *slog.Logger, recorder payroll.Recorder) (*Deps, error) {
	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		return nil, err
	}
	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}

	rates := payroll.NewRateRepository(pool)
	audit := shared.NewReviewAudit(pool, logger)
	service := payroll.NewService(
		payroll.NewRepository(pool),
		payroll.NewBuilder(rates, cfg.Limits()),
		payroll.ServiceConfig{
			Cache:   payroll.NewReportCache(redisClient, cfg.ReportCacheTTL),
			Audit:   audit,
			Metrics: recorder,
			Logger:  logger,
		},
	)
	return &Deps{
		Pool:        pool,
		Redis:       redisClient,
		Rates:       rates,
		Audit:       audit,
		Idempotency: shared.NewIdempotencyStore(pool),
		Payroll:     service,
	}, nil
}

// Close releases the connections.
func (d *Deps) Close(logger *slog.Logger) {
	if d == nil {
		return
	}
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}
	if d.Pool != nil {
		d.Pool.Close()
	}
}
