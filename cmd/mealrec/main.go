package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/kailas-cloud/mealrec/internal/app"
	"github.com/kailas-cloud/mealrec/internal/config"
	logpkg "github.com/kailas-cloud/mealrec/internal/logger"
	chiTransport "github.com/kailas-cloud/mealrec/internal/transport/chi"
	"github.com/kailas-cloud/mealrec/internal/version"
)

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	// Load configuration based on ENV
	env := config.GetEnv()

	cfg := config.MustLoad(env)

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting mealrec API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("cache_driver", cfg.Cache.Driver),
		zap.String("embedding_provider", cfg.Embedding.Provider),
	)

	ctx := context.Background()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to assemble application", zap.Error(err))
	}
	defer a.Close()

	if cfg.Source.ImportOnStart {
		n, err := a.Recommender.Import(ctx, a.Source, cfg.Source.Terms)
		if err != nil {
			// Serve anyway: recipes can still be posted or re-imported.
			logger.Error("Initial import failed", zap.Error(err))
		} else {
			logger.Info("Initial import done", zap.Int("recipes", n))
		}
	}

	server := chiTransport.NewServer(a.Recommender, a.Source, a.Health, chiTransport.Limits{
		DefaultK:     cfg.Recommend.DefaultK,
		MaxK:         cfg.Recommend.MaxK,
		MaxRecipes:   cfg.Recommend.MaxRecipes,
		MaxBodyBytes: int64(cfg.HTTP.MaxBodyBytes),
	}, logger).WithImportTerms(cfg.Source.Terms)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      chiTransport.NewRouter(server, cfg.Auth.APIKeys, logger),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}
