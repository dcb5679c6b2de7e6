// cmd/historian/main.go drains the room action queue from Redis into PostgreSQL.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jason-s-yu/bingo/internal/cache"
	"github.com/jason-s-yu/bingo/internal/config"
	"github.com/jason-s-yu/bingo/internal/database"
	"github.com/jason-s-yu/bingo/internal/historian"
	_ "github.com/joho/godotenv/autoload"
)

func main() {
	configPath := flag.String("config", os.Getenv("BINGO_CONFIG"), "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := cfg.Log.Logger()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dsn := cfg.Postgres.DSN()
	if cfg.Postgres.Migrate {
		if err := database.Migrate(dsn, logger); err != nil {
			logger.Fatalf("migrate: %v", err)
		}
	}
	store, err := database.Connect(ctx, dsn, logger)
	if err != nil {
		logger.Fatalf("database: %v", err)
	}
	defer store.Close()

	rdb, err := cache.Connect(ctx, cfg.Redis.Addr, cfg.Redis.DB)
	if err != nil {
		logger.Fatalf("redis: %v", err)
	}
	defer rdb.Close()

	svc := historian.New(rdb, store.Pool(), logger, historian.Options{
		Queue:         cfg.Redis.QueueName,
		BatchSize:     cfg.Historian.BatchSize,
		FlushInterval: cfg.Historian.FlushInterval,
		Inactivity:    cfg.Historian.Inactivity,
	})
	if err := svc.Run(ctx); err != nil {
		logger.Errorf("historian: %v", err)
		os.Exit(1)
	}
}
