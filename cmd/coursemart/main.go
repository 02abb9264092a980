// Package main запускает HTTP-сервер маркетплейса курсов.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/coursemart/internal/config"
	"github.com/mmeshcher/coursemart/internal/handler"
	"github.com/mmeshcher/coursemart/internal/idempotency"
	"github.com/mmeshcher/coursemart/internal/metrics"
	"github.com/mmeshcher/coursemart/internal/middleware"
	"github.com/mmeshcher/coursemart/internal/razorpay"
	"github.com/mmeshcher/coursemart/internal/repository"
	"github.com/mmeshcher/coursemart/internal/service"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}

	metrics.Register()

	pingers := []handler.Pinger{repo}
	opts := service.Options{
		Logger:              logger,
		WebhookSecret:       cfg.RazorpayWebhookSecret,
		RepairInterval:      cfg.RepairInterval,
		LectureGlobalUnlock: cfg.LectureGlobalUnlock,
	}

	if cfg.RedisAddr != "" {
		store := idempotency.NewRedisStore(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}), cfg.IdempotencyTTL)
		defer store.Close()

		opts.Idempotency = store
		pingers = append(pingers, store)
	} else {
		sugar.Info("redis address not set, checkout idempotency keys are ignored")
	}

	if cfg.RazorpayKeyID == "" || cfg.RazorpaySecret == "" {
		sugar.Warn("razorpay keys not set, checkout sessions will fail")
	}
	if cfg.RazorpayWebhookSecret == "" {
		sugar.Warn("razorpay webhook secret not set, webhooks will be rejected")
	}
	gateway := razorpay.NewClient(cfg.RazorpayBaseURL, cfg.RazorpayKeyID, cfg.RazorpaySecret)

	svc := service.NewService(repo, gateway, opts)
	defer svc.Close()

	authMiddleware := middleware.NewAuthMiddleware(cfg.AuthSecret).
		WithSecureCookie(strings.HasPrefix(cfg.FrontendURL, "https://"))
	h := handler.NewHandler(svc, logger, authMiddleware, cfg.FrontendURL, pingers...)

	r := h.SetupRouter()

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Фоновое восстановление записей на курс для завершённых покупок
	g.Go(func() error {
		svc.StartEnrollmentRepair(ctx)
		return nil
	})

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting coursemart server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
