package notify

import (
	"context"
	"log/slog"

	"securevms/internal/audit"
	"securevms/internal/platform/metrics"
	"securevms/pkg/domain"
)

// AuditPublisher records delivery as audit entries.
type AuditPublisher interface {
	Emit(ctx context.Context, entry audit.Entry) error
}

// Worker consumes intents from the outbox and delivers them. Failures are
// logged and the intent is not retried; the originating record's sent flags
// stay false so the caller may re-enqueue.
type Worker struct {
	outbox     *Outbox
	dispatcher Dispatcher
	logger     *slog.Logger
	auditor    AuditPublisher
	metrics    *metrics.Metrics
}

type WorkerOption func(*Worker)

func WithLogger(logger *slog.Logger) WorkerOption {
	return func(w *Worker) { w.logger = logger }
}

func WithAuditPublisher(p AuditPublisher) WorkerOption {
	return func(w *Worker) { w.auditor = p }
}

func WithMetrics(m *metrics.Metrics) WorkerOption {
	return func(w *Worker) { w.metrics = m }
}

func NewWorker(outbox *Outbox, dispatcher Dispatcher, opts ...WorkerOption) *Worker {
	w := &Worker{outbox: outbox, dispatcher: dispatcher}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run delivers intents until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case intent := <-w.outbox.Drain():
			w.deliver(ctx, intent)
		}
	}
}

func (w *Worker) deliver(ctx context.Context, intent Intent) {
	if err := w.dispatcher.Send(ctx, intent.Channel, intent.Recipient, intent.Message); err != nil {
		if w.logger != nil {
			w.logger.WarnContext(ctx, "notification delivery failed",
				"channel", string(intent.Channel),
				"recipient", intent.Recipient,
				"error", err,
			)
		}
		if w.metrics != nil {
			w.metrics.NotificationsFailed.WithLabelValues(string(intent.Channel)).Inc()
		}
		return
	}
	if w.metrics != nil {
		w.metrics.NotificationsSent.WithLabelValues(string(intent.Channel)).Inc()
	}
	if intent.OnDelivered != nil {
		intent.OnDelivered(ctx)
	}
	w.auditDelivery(ctx, intent)
}

func (w *Worker) auditDelivery(ctx context.Context, intent Intent) {
	if w.auditor == nil {
		return
	}
	action := audit.ActionNotificationSentEmail
	if intent.Channel == ChannelSMS {
		action = audit.ActionNotificationSentSMS
	}
	entry := audit.Entry{
		Action:    action,
		ActorID:   domain.SystemActor.ID,
		ActorName: "Notification System",
		ActorRole: domain.RoleSystem,
		Details:   string(intent.Channel) + " notification sent to " + intent.Recipient,
		Severity:  audit.SeverityLow,
		Category:  audit.CategorySystem,
	}
	if err := w.auditor.Emit(ctx, entry); err != nil && w.logger != nil {
		w.logger.WarnContext(ctx, "audit emit failed for delivery", "error", err)
	}
}
