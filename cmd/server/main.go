// Package main runs the polls HTTP server with graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pollsite/backend/config"
	"github.com/pollsite/backend/internal/auth"
	"github.com/pollsite/backend/internal/server"
	"github.com/pollsite/backend/internal/sessions"
	"github.com/pollsite/backend/internal/store"
	"github.com/pollsite/backend/pkg/redis"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	db, err := store.Open(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	health := []func(context.Context) error{db.Ping}

	var sessionStore sessions.Store
	switch cfg.Session.Backend {
	case "redis":
		rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
		if err != nil {
			logger.Fatal("redis", zap.Error(err))
		}
		defer rdb.Close()
		sessionStore = sessions.NewRedisStore(rdb.Client)
		health = append(health, func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	default:
		sessionStore = sessions.NewMemoryStore(10 * time.Minute)
	}
	sessionManager := sessions.NewManager(sessionStore, sessions.Options{
		Secret:     cfg.Session.Secret,
		CookieName: cfg.Session.CookieName,
		TTL:        time.Duration(cfg.Session.TTLHours) * time.Hour,
		Secure:     cfg.Session.CookieSecure,
	}, logger)

	router, err := server.NewRouter(server.Deps{
		Config:    cfg,
		Questions: db.Questions,
		Users:     db.Users,
		Sessions:  sessionManager,
		Limiter:   auth.NewLoginLimiter(cfg.Auth.LoginRatePerMin, cfg.Auth.LoginBurst),
		Logger:    logger,
		Health: func(ctx context.Context) error {
			for _, check := range health {
				if err := check(ctx); err != nil {
					return err
				}
			}
			return nil
		},
	})
	if err != nil {
		logger.Fatal("router", zap.Error(err))
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening",
			zap.String("port", cfg.Server.Port),
			zap.String("db_driver", db.Driver),
			zap.String("session_backend", cfg.Session.Backend),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
