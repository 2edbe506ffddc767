package notification

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Worker executes queued batch dispatches. It runs the same dispatch path as
// synchronous sends, so queued batches get identical chunking, aggregation,
// and audit semantics — the only difference is when the single log row
// appears.
type Worker struct {
	service *Service
}

// NewWorker creates a new dispatch worker.
func NewWorker(service *Service) *Worker {
	return &Worker{service: service}
}

// ProcessTask handles one queued batch. Returning an error lets asynq retry;
// that only happens when no batch result could be constructed at all
// (configuration or persistence failure) — delivery failures are already
// absorbed into the recorded batch outcome.
func (w *Worker) ProcessTask(ctx context.Context, payload *DispatchPayload) error {
	start := time.Now()

	var result *BatchResult
	var err error
	switch payload.Kind {
	case KindSMS:
		result, err = w.service.DispatchSMS(ctx, payload.Actor, payload.BatchID, payload.SMS)
	case KindWhatsApp:
		result, err = w.service.DispatchWhatsApp(ctx, payload.Actor, payload.BatchID, payload.WhatsApp)
	case KindEmail:
		result, err = w.service.DispatchEmail(ctx, payload.Actor, payload.BatchID, payload.Email)
	case KindTemplate:
		result, err = w.service.DispatchTemplate(ctx, payload.Actor, payload.BatchID, payload.Template)
	default:
		return fmt.Errorf("unknown dispatch kind: %s", payload.Kind)
	}

	if err != nil {
		slog.Error("queued batch dispatch failed",
			"batch_id", payload.BatchID,
			"kind", payload.Kind,
			"error", err,
			"duration", time.Since(start),
		)
		return fmt.Errorf("dispatching queued batch %s: %w", payload.BatchID, err)
	}

	slog.Info("queued batch dispatched",
		"batch_id", payload.BatchID,
		"kind", payload.Kind,
		"status", result.Status,
		"successful", result.SuccessfulCount,
		"failed", result.FailedCount,
		"duration", time.Since(start),
	)
	return nil
}
