// Package main запускает HTTP-сервер администрирования продавцов SOS Cafe.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/soscafe-admin/internal/config"
	"github.com/mmeshcher/soscafe-admin/internal/handler"
	"github.com/mmeshcher/soscafe-admin/internal/middleware"
	"github.com/mmeshcher/soscafe-admin/internal/repository"
	"github.com/mmeshcher/soscafe-admin/internal/service"
	"github.com/mmeshcher/soscafe-admin/internal/tablestore"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		sugar.Fatalw("failed to load .env file", "error", err.Error())
	}

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := tablestore.Open(ctx, cfg.Storage)
	if err != nil {
		sugar.Fatalw("storage initialization error", "error", err.Error())
	}

	repo := repository.NewTableRepository(store, cfg.ScanPageSize)

	if cfg.SeedFile != "" {
		if err := seed(ctx, logger, repo, cfg.SeedFile); err != nil {
			sugar.Fatalw("seed error", "error", err.Error(), "file", cfg.SeedFile)
		}
	}

	svc := service.NewService(repo, logger)
	defer svc.Close()

	if cfg.AuthSecret == "" {
		sugar.Warn("AUTH_SECRET is not set, bearer tokens cannot be verified")
	}
	authMiddleware := middleware.NewAuthMiddleware(cfg.AuthSecret)
	h := handler.NewHandler(svc, logger, authMiddleware)

	r := h.SetupRouter()

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting soscafe admin server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}

func seed(ctx context.Context, logger *zap.Logger, repo *repository.TableRepository, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()

	n, err := repo.Seed(ctx, f)
	if err != nil {
		return err
	}
	logger.Info("seed loaded", zap.String("file", path), zap.Int("rows", n))
	return nil
}
