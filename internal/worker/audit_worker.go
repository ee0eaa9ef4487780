// Package worker records published ledger events into the durable audit
// trail. Auditing is observability plumbing: the ledger stays correct
// without it, so handler failures only requeue the message.
package worker

import (
	"context"
	"fmt"

	"risparmio/internal/amqp"
	applog "risparmio/internal/log"
	"risparmio/internal/storage"
)

// EventRecorder persists consumed events. *storage.SQLiteRepository
// implements it.
type EventRecorder interface {
	SaveAuditEvent(ctx context.Context, event storage.AuditEvent) error
	CountAuditEvents(ctx context.Context) (map[string]int64, error)
}

type AuditWorker struct {
	recorder EventRecorder
	logger   *applog.Logger
}

func NewAuditWorker(recorder EventRecorder, logger *applog.Logger) *AuditWorker {
	if logger == nil {
		logger = applog.New(applog.Config{Component: applog.ComponentWorker})
	}
	return &AuditWorker{recorder: recorder, logger: logger}
}

// HandleEvent records a single consumed ledger event. Redelivered
// messages are deduplicated by event ID in the recorder.
func (w *AuditWorker) HandleEvent(ctx context.Context, msg *amqp.EventMessage) error {
	if msg.ID == "" || msg.Kind == "" || msg.User == "" {
		// Malformed events cannot be retried into shape; log and drop.
		w.logger.WarnContext(ctx, "Dropping malformed ledger event",
			applog.FieldEventKind, msg.Kind, applog.FieldUser, msg.User)
		return nil
	}

	event := storage.AuditEvent{
		ID:         msg.ID,
		Kind:       msg.Kind,
		User:       msg.User,
		Amount:     msg.Amount,
		OccurredAt: msg.OccurredAt,
	}
	if err := w.recorder.SaveAuditEvent(ctx, event); err != nil {
		return fmt.Errorf("record audit event: %w", err)
	}

	w.logger.DebugContext(ctx, "Recorded ledger event",
		applog.FieldEventKind, msg.Kind,
		applog.FieldUser, msg.User,
		applog.FieldAmount, msg.Amount)
	return nil
}

// LogSummary reports the audit trail totals per event kind. Called
// periodically by the worker binary.
func (w *AuditWorker) LogSummary(ctx context.Context) error {
	counts, err := w.recorder.CountAuditEvents(ctx)
	if err != nil {
		return fmt.Errorf("summarize audit events: %w", err)
	}

	attrs := make([]any, 0, len(counts)*2)
	for kind, count := range counts {
		attrs = append(attrs, kind, count)
	}
	w.logger.InfoContext(ctx, "Audit trail summary", attrs...)
	return nil
}
