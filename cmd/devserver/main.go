package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chatsync/internal/config"
	"chatsync/internal/fakeapi"
	"chatsync/internal/http"
	"chatsync/internal/observ"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	backend := fakeapi.New()
	fakeapi.Seed(backend, time.Now())

	server := http.NewDevServer(backend, cfg.DevServerAddr, logger)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("shutting down dev server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("dev server shutdown error", zap.Error(err))
		}
		return nil
	})

	return g.Wait()
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("Application error: %v", err)
	}
}
