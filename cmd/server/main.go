// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/bingo/internal/auth"
	"github.com/jason-s-yu/bingo/internal/cache"
	"github.com/jason-s-yu/bingo/internal/config"
	"github.com/jason-s-yu/bingo/internal/database"
	"github.com/jason-s-yu/bingo/internal/feed"
	"github.com/jason-s-yu/bingo/internal/handlers"
	"github.com/jason-s-yu/bingo/internal/lobby"
	"github.com/jason-s-yu/bingo/internal/middleware"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
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

	issuer, err := newIssuer(cfg.Auth.TokenTTL)
	if err != nil {
		logger.Fatalf("auth: %v", err)
	}

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

	opts := []lobby.Option{
		lobby.WithRecorder(store),
		lobby.WithSweepInterval(cfg.Server.SweepInterval),
	}
	var sinks []lobby.ActionSink
	if cfg.Redis.Enabled {
		rdb, err := cache.Connect(ctx, cfg.Redis.Addr, cfg.Redis.DB)
		if err != nil {
			logger.Fatalf("redis: %v", err)
		}
		defer rdb.Close()
		sinks = append(sinks, cache.NewPublisher(rdb, cfg.Redis.QueueName))
		logger.Infof("Publishing room actions to Redis list %s", cfg.Redis.QueueName)
	}
	if cfg.NATS.Enabled {
		nc, err := feed.Connect(cfg.NATS.URL, logger)
		if err != nil {
			logger.Fatalf("nats: %v", err)
		}
		pub := feed.NewPublisher(nc, cfg.NATS.SubjectPrefix)
		defer pub.Close()
		sinks = append(sinks, pub)
		logger.Infof("Publishing room actions to NATS under %s", cfg.NATS.SubjectPrefix)
	}
	if len(sinks) > 0 {
		opts = append(opts, lobby.WithSinks(sinks...))
	}

	coord := lobby.NewCoordinator(logger, cfg.Room.Policy(), opts...)
	coordDone := make(chan error, 1)
	go func() { coordDone <- coord.Run(ctx) }()

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           routes(logger, cfg, issuer, store, coord),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Infof("Running on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("server exited: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}
	select {
	case err := <-coordDone:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Warnf("coordinator: %v", err)
		}
	case <-shutdownCtx.Done():
		logger.Warn("coordinator did not stop before the shutdown timeout")
	}
}

// newIssuer loads the signing keys named by AUTH_PRIVATE_KEY and AUTH_PUBLIC_KEY,
// or generates an ephemeral pair when they are unset.
func newIssuer(ttl time.Duration) (*auth.Issuer, error) {
	priv, pub := os.Getenv("AUTH_PRIVATE_KEY"), os.Getenv("AUTH_PUBLIC_KEY")
	if priv != "" && pub != "" {
		return auth.NewIssuerFromFiles(priv, pub, ttl)
	}
	return auth.NewIssuer(ttl)
}

func routes(logger *logrus.Logger, cfg config.Config, issuer *auth.Issuer, store *database.Store, coord *lobby.Coordinator) http.Handler {
	mux := http.NewServeMux()

	// accounts
	mux.HandleFunc("POST /user/create", handlers.CreateUserHandler(logger, store))
	mux.HandleFunc("POST /user/login", handlers.LoginHandler(logger, store, issuer, cfg.Auth.TokenTTL))
	mux.HandleFunc("POST /auth/guest", handlers.GuestHandler(logger, issuer, cfg.Auth.TokenTTL))

	// rooms
	mux.HandleFunc("GET /ws", handlers.RoomWSHandler(logger, issuer, coord, cfg.Conn))
	mux.HandleFunc("GET /rooms/{code}", handlers.RoomHandler(logger, coord))
	mux.HandleFunc("GET /healthz", handlers.HealthHandler(coord))

	// scores
	mux.HandleFunc("GET /leaderboard/{period}", handlers.LeaderboardHandler(logger, store))
	mux.HandleFunc("GET /users/{id}/stats", handlers.UserStatsHandler(logger, store))

	return middleware.LogMiddleware(logger)(mux)
}
