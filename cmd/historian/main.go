// cmd/historian/main.go pops friend events from the Redis queue and persists
// them to PostgreSQL as relationship history.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jason-s-yu/huddle/internal/cache"
	"github.com/jason-s-yu/huddle/internal/config"
	"github.com/jason-s-yu/huddle/internal/database"
	"github.com/jason-s-yu/huddle/internal/historian"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("invalid configuration: %v", err)
	}
	logger.SetLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbURL := cfg.DatabaseURL
	if dbURL == "" {
		dbURL = config.PostgresURLFromParts()
	}
	pool, err := database.Connect(ctx, dbURL)
	if err != nil {
		logger.Fatalf("%v", err)
	}
	defer pool.Close()
	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatalf("%v", err)
	}

	redisAddr := cfg.RedisAddr
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	rdb, err := cache.Connect(ctx, redisAddr, cfg.RedisDB)
	if err != nil {
		logger.Fatalf("%v", err)
	}
	defer rdb.Close()

	svc := historian.New(
		cache.NewEventQueue(rdb, cfg.EventsQueue),
		database.NewEventLog(pool),
		cfg.HistorianBatchSize,
		cfg.HistorianFlush,
		logger,
	)
	logger.Infof("Draining %s into friend_events", cfg.EventsQueue)
	if err := svc.Run(ctx); err != nil {
		logger.Errorf("final flush failed: %v", err)
	}
}
