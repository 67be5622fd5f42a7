// cmd/historian is an asynchronous historian service that pops match actions
// from a Redis queue and persists them to PostgreSQL.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jason-s-yu/bombchip/internal/cache"
	"github.com/jason-s-yu/bombchip/internal/config"
	"github.com/jason-s-yu/bombchip/internal/database"
	"github.com/jason-s-yu/bombchip/internal/historian"
	"github.com/jason-s-yu/bombchip/internal/models"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.LoadHistorian()
	if err != nil {
		logrus.Fatalf("invalid configuration: %v", err)
	}
	logger := cfg.Log.NewLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("database: %v", err)
	}
	defer pool.Close()
	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatalf("database: %v", err)
	}

	rdb, err := cache.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Fatalf("redis: %v", err)
	}
	defer rdb.Close()

	sink := func(ctx context.Context, actions []models.GameAction) error {
		return database.InsertActions(ctx, pool, actions)
	}
	historian.NewService(rdb, cfg.QueueName, cfg.BatchSize, cfg.FlushInterval, sink, logger).Run(ctx)
	logger.Info("historian shutdown complete")
}
