// cmd/settler/main.go pops finished games off the Redis settlement queue and settles
// them in Postgres.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jason-s-yu/durak/internal/cache"
	"github.com/jason-s-yu/durak/internal/config"
	"github.com/jason-s-yu/durak/internal/database"
	"github.com/jason-s-yu/durak/internal/settlement"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	logger := cfg.NewLogger()

	if !cfg.RedisEnabled() || !cfg.PostgresEnabled() {
		logger.Fatal("the settler needs both REDIS_ADDR and PG_HOST")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb, err := cache.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		logger.Fatalf("redis: %v", err)
	}
	defer rdb.Close()

	pool, err := database.Connect(ctx, cfg.PostgresURL())
	if err != nil {
		logger.Fatalf("postgres: %v", err)
	}
	defer pool.Close()
	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatalf("postgres: %v", err)
	}

	queue := cache.NewSettlementQueue(rdb, cfg.SettlementQueue)
	worker := settlement.NewWorker(queue, database.NewLedger(pool), logger)
	worker.MaxAttempts = cfg.SettlementMaxAttempts
	worker.PopTimeout = cfg.SettlementPopTimeout
	worker.RetryBase = cfg.SettlementRetryBase

	logger.Infof("settling games from redis list %s", cfg.SettlementQueue)
	if err := worker.Run(ctx); err != nil {
		logger.Errorf("settlement worker: %v", err)
	}
}
