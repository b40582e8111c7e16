// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/huddle/internal/auth"
	"github.com/jason-s-yu/huddle/internal/cache"
	"github.com/jason-s-yu/huddle/internal/config"
	"github.com/jason-s-yu/huddle/internal/database"
	"github.com/jason-s-yu/huddle/internal/friends"
	"github.com/jason-s-yu/huddle/internal/handlers"
	"github.com/jason-s-yu/huddle/internal/notify"
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

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("failed to open store: %v", err)
	}
	defer closeStore()

	hub := notify.NewHub(logger)
	publishers := []friends.Publisher{hub}
	if cfg.RedisAddr != "" {
		rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			logger.Fatalf("%v", err)
		}
		defer rdb.Close()
		publishers = append(publishers, cache.NewEventQueue(rdb, cfg.EventsQueue))
		logger.Infof("Publishing friend events to Redis list %s", cfg.EventsQueue)
	}

	issuer, err := newIssuer(cfg, logger)
	if err != nil {
		logger.Fatalf("%v", err)
	}

	svc := friends.NewService(store, logger, publishers...)
	api := handlers.NewAPIServer(svc, issuer, hub, logger)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warnf("graceful shutdown failed: %v", err)
		}
	}()

	logger.Infof("Running on %s (store=%s)", cfg.Addr, cfg.Store)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("server exited: %v", err)
	}
}

// newIssuer loads the signing keys from disk when configured. Otherwise tokens
// only survive until the process restarts.
func newIssuer(cfg *config.Config, logger *logrus.Logger) (*auth.Issuer, error) {
	if cfg.JWTPrivateKeyPath == "" {
		logger.Warn("JWT key paths not set; generating an ephemeral key pair")
		return auth.NewIssuer(cfg.TokenTTL)
	}
	return auth.NewIssuerFromFiles(cfg.JWTPrivateKeyPath, cfg.JWTPublicKeyPath, cfg.TokenTTL)
}

// openStore returns the configured friends.Store and a func releasing it.
func openStore(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (friends.Store, func(), error) {
	if cfg.Store != config.StorePostgres {
		logger.Warn("Using the in-memory store; data is lost on restart")
		return friends.NewMemoryStore(), func() {}, nil
	}

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := database.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}
	logger.Info("Connected to database")
	return database.NewFriendStore(pool), pool.Close, nil
}
