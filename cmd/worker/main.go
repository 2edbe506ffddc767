package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"outreach/internal/config"
	"outreach/internal/domain/notification"
	"outreach/internal/domain/template"
	"outreach/internal/infra/provider"
	"outreach/internal/infra/queue"
	"outreach/internal/infra/store"

	"github.com/hibiken/asynq"
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

	slog.Info("worker configuration loaded")

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

	// Carrier adapter factory
	providerFactory := provider.NewFactory(cfg)

	// Worker dispatches directly, so no enqueuer and no send limiter:
	// the limit was already charged when the batch was accepted.
	templateService := template.NewService(templateStore)
	notificationService := notification.NewService(
		logStore,
		providerFactory,
		templateService,
		directory,
		nil,
		nil,
		notification.OrgInfo{
			Name:               cfg.Org.Name,
			SupportEmail:       cfg.Org.SupportEmail,
			SupportPhone:       cfg.Org.SupportPhone,
			CommunityGroupLink: cfg.Org.CommunityGroupLink,
		},
	)

	notifWorker := notification.NewWorker(notificationService)

	// ==========================================
	// Asynq Server (task processing)
	// ==========================================

	asynqServer := queue.NewServer(
		cfg.Redis.Address,
		cfg.Redis.Password,
		cfg.Redis.DB,
		cfg.Queue.Concurrency,
	)

	// Register task handlers
	mux := asynq.NewServeMux()
	mux.HandleFunc(notification.TaskTypeDispatchBatch, func(ctx context.Context, task *asynq.Task) error {
		payload, err := notification.ParseDispatchPayload(task.Payload())
		if err != nil {
			return err
		}
		return notifWorker.ProcessTask(ctx, payload)
	})

	// Start the asynq worker in a goroutine
	go func() {
		slog.Info("worker starting",
			"concurrency", cfg.Queue.Concurrency,
			"redis", cfg.Redis.Address,
		)
		if err := asynqServer.Run(mux); err != nil {
			slog.Error("worker failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// ==========================================
	// Audit Log Retention Pruner
	// ==========================================

	prunerCtx, prunerCancel := context.WithCancel(context.Background())
	defer prunerCancel()

	pruner := notification.NewPruner(logStore, notification.PrunerConfig{
		Interval: time.Duration(cfg.Retention.SweepIntervalSec) * time.Second,
		MaxAge:   time.Duration(cfg.Retention.MaxAgeDays) * 24 * time.Hour,
	})

	go pruner.Run(prunerCtx)

	// ==========================================
	// Graceful Shutdown
	// ==========================================

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down worker...")
	prunerCancel() // Stop the pruner first
	asynqServer.Shutdown()
	slog.Info("worker exited gracefully")
}
