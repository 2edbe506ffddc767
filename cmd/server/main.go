package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"outreach/internal/config"
	"outreach/internal/domain/notification"
	"outreach/internal/domain/template"
	"outreach/internal/infra/provider"
	"outreach/internal/infra/queue"
	"outreach/internal/infra/ratelimit"
	"outreach/internal/infra/store"
	"outreach/internal/router"
)

func main() {
	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("configuration loaded", "port", cfg.Server.Port, "mode", cfg.Server.Mode)

	// ==========================================
	// Dependency Injection (Manual Wiring)
	// ==========================================

	// Supabase stores
	logStore, err := store.NewSupabaseLogStore(cfg.Supabase.URL, cfg.Supabase.ServiceKey)
	if err != nil {
		slog.Error("failed to initialize log store", "error", err)
		os.Exit(1)
	}
	templateStore, err := store.NewSupabaseTemplateStore(cfg.Supabase.URL, cfg.Supabase.ServiceKey)
	if err != nil {
		slog.Error("failed to initialize template store", "error", err)
		os.Exit(1)
	}
	directory, err := store.NewSupabaseDirectory(cfg.Supabase.URL, cfg.Supabase.ServiceKey)
	if err != nil {
		slog.Error("failed to initialize directory", "error", err)
		os.Exit(1)
	}
	slog.Info("supabase stores initialized")

	// Asynq Client (for enqueuing queued batches)
	asynqClient := queue.NewClient(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
	defer asynqClient.Close()
	enqueuer := queue.NewEnqueuer(asynqClient, cfg.Queue.MaxRetry)
	slog.Info("asynq client initialized", "redis", cfg.Redis.Address)

	// Per-actor send limiter
	sendLimiter := ratelimit.NewRedisSenderLimiter(
		cfg.Redis.Address,
		cfg.Redis.Password,
		cfg.Redis.DB,
		cfg.SendRateLimit.MaxPerHour,
	)
	defer sendLimiter.Close()
	slog.Info("send rate limiter initialized", "max_per_hour", cfg.SendRateLimit.MaxPerHour)

	// Carrier adapter factory
	providerFactory := provider.NewFactory(cfg)

	// Services
	templateService := template.NewService(templateStore)
	notificationService := notification.NewService(
		logStore,
		providerFactory,
		templateService,
		directory,
		sendLimiter,
		enqueuer,
		notification.OrgInfo{
			Name:               cfg.Org.Name,
			SupportEmail:       cfg.Org.SupportEmail,
			SupportPhone:       cfg.Org.SupportPhone,
			CommunityGroupLink: cfg.Org.CommunityGroupLink,
		},
	)

	// Handlers
	notificationHandler := notification.NewHandler(notificationService)
	templateHandler := template.NewHandler(templateService)

	// Router
	r := router.New(cfg, notificationHandler, templateHandler)

	// ==========================================
	// HTTP Server with Graceful Shutdown
	// ==========================================

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		slog.Info("server starting", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")

	// Give outstanding requests 10 seconds to complete
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server exited gracefully")
}
