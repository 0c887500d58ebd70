package alerts

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/sudo-init-do/timebank/internal/timebank"
)

// Enqueuer is the part of *asynq.Client the dispatcher uses.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Dispatcher queues committed handshake events for the worker. Delivery is
// best effort: a failed enqueue is logged and never reaches the caller.
type Dispatcher struct {
	client   Enqueuer
	logger   *slog.Logger
	maxRetry int
}

// NewDispatcher wraps an asynq client.
func NewDispatcher(client Enqueuer, logger *slog.Logger, maxRetry int) *Dispatcher {
	return &Dispatcher{
		client:   client,
		logger:   logger.With(slog.String("component", "alerts")),
		maxRetry: maxRetry,
	}
}

func (d *Dispatcher) Notify(ctx context.Context, ev timebank.Event) {
	task, err := NewHandshakeTask(ev, time.Now().UTC())
	if err != nil {
		d.logger.ErrorContext(ctx, "build task failed", slog.String("type", string(ev.Type)), slog.Any("error", err))
		return
	}
	_, err = d.client.EnqueueContext(context.WithoutCancel(ctx), task,
		asynq.Queue(QueueNotifications),
		asynq.MaxRetry(d.maxRetry),
	)
	if err != nil {
		d.logger.WarnContext(ctx, "enqueue failed",
			slog.String("type", string(ev.Type)),
			slog.String("handshake_id", ev.Handshake.ID),
			slog.Any("error", err),
		)
	}
}

var _ timebank.Notifier = (*Dispatcher)(nil)
