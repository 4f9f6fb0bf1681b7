package main // Entry point package

import (
	"context"
	"errors"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/user-auth/internal/config"
	"github.com/iliyamo/user-auth/internal/database"
	"github.com/iliyamo/user-auth/internal/handler"
	"github.com/iliyamo/user-auth/internal/logging"
	"github.com/iliyamo/user-auth/internal/middleware"
	"github.com/iliyamo/user-auth/internal/queue"
	"github.com/iliyamo/user-auth/internal/repository"
	"github.com/iliyamo/user-auth/internal/router"
	"github.com/iliyamo/user-auth/internal/service"
	"github.com/iliyamo/user-auth/internal/utils"
)

func main() {
	// A missing .env is fine; the environment may already be set.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("load .env: %v", err)
	}
	cfg := config.Load()
	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat).With("env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error(ctx, "server exited", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger logging.Logger) error {
	users, closeStore, err := openUserStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	var limiterStore redis.Scripter
	if rdb := config.NewRedisClient(ctx); rdb != nil {
		defer rdb.Close()
		limiterStore = rdb
	} else {
		logger.Warn(ctx, "redis unavailable; rate limiting disabled")
	}

	var events service.EventPublisher
	if cfg.QueueEnabled {
		url := queue.BrokerURL()
		events = queue.NewPublisher(url)
		go func() {
			if err := queue.StartRegistrationConsumer(ctx, url, logger); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error(ctx, "registration consumer stopped", "err", err)
			}
		}()
	}

	hasher := utils.NewPasswordHasher(cfg.BcryptCost)
	authSvc := service.NewAuthService(users, hasher, events, logger)
	authHandler := handler.NewAuthHandler(authSvc, logger, cfg.JWTSecret, cfg.TokenTTL, utils.CookieOptions{
		Secure: cfg.CookieSecure,
		Domain: cfg.CookieDomain,
	})

	e := router.New(authHandler, router.Options{
		JWTSecret: cfg.JWTSecret,
		RateLimit: middleware.NewTokenBucket(config.LoadRateLimitConfig(), limiterStore, logger),
		Log:       logger,
	})

	addr := ":" + cfg.Port
	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "listening", "addr", addr, "storage", cfg.Storage, "bcrypt_cost", hasher.Cost())
		errCh <- e.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info(shutdownCtx, "shutting down")
	return e.Shutdown(shutdownCtx)
}

func openUserStore(ctx context.Context, cfg config.Config, logger logging.Logger) (service.UserStore, func(), error) {
	if cfg.Storage == config.StorageMemory {
		logger.Warn(ctx, "using in-memory user store; users are lost on restart")
		return repository.NewMemoryUserRepo(), func() {}, nil
	}
	db, err := database.Open(ctx, cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return nil, nil, err
	}
	if err := database.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return repository.NewUserRepo(db), func() { _ = db.Close() }, nil
}
