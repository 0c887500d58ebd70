package alerts

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
)

// Inbox stores in-app notifications.
type Inbox interface {
	Create(ctx context.Context, userID, ntype, title, body string, reference *string) error
}

// Worker consumes handshake tasks and writes them to recipients' inboxes.
type Worker struct {
	server *asynq.Server
	inbox  Inbox
	logger *slog.Logger
}

// NewWorker builds the asynq server. Run starts it.
func NewWorker(opt asynq.RedisClientOpt, concurrency int, inbox Inbox, logger *slog.Logger) *Worker {
	logger = logger.With(slog.String("component", "alerts-worker"))
	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			QueueNotifications: 10,
		},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, t *asynq.Task, err error) {
			logger.ErrorContext(ctx, "task failed", slog.String("type", t.Type()), slog.Any("error", err))
		}),
	})
	return &Worker{server: server, inbox: inbox, logger: logger}
}

// Mux routes every handshake task type to the inbox writer.
func (w *Worker) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	for _, typ := range []string{
		TaskHandshakeProposed,
		TaskHandshakeAccepted,
		TaskHandshakeDeclined,
		TaskHandshakeWithdrawn,
		TaskHandshakeConfirmed,
		TaskHandshakeCompleted,
	} {
		mux.HandleFunc(typ, w.handleHandshakeEvent)
	}
	return mux
}

// Run processes tasks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.server.Start(w.Mux()); err != nil {
		return fmt.Errorf("alerts: start worker: %w", err)
	}
	w.logger.Info("worker started")
	<-ctx.Done()
	w.server.Shutdown()
	return nil
}

func (w *Worker) handleHandshakeEvent(ctx context.Context, t *asynq.Task) error {
	var p HandshakePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("decode %s: %v: %w", t.Type(), err, asynq.SkipRetry)
	}
	if p.RecipientID == "" {
		return fmt.Errorf("%s without recipient: %w", t.Type(), asynq.SkipRetry)
	}
	title, body := Render(t.Type(), p)
	ref := p.HandshakeID
	if err := w.inbox.Create(ctx, p.RecipientID, t.Type(), title, body, &ref); err != nil {
		return err
	}
	w.logger.InfoContext(ctx, "notification stored",
		slog.String("type", t.Type()),
		slog.String("handshake_id", p.HandshakeID),
		slog.String("recipient_id", p.RecipientID),
	)
	return nil
}
