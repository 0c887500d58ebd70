package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"

	"github.com/sudo-init-do/timebank/internal/timebank"
)

type fakeQueue struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeQueue) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{ID: "t1", Type: task.Type()}, nil
}

type fakeInbox struct {
	userID, ntype, title string
	ref                  *string
}

func (f *fakeInbox) Create(_ context.Context, userID, ntype, title, _ string, reference *string) error {
	f.userID, f.ntype, f.title, f.ref = userID, ntype, title, reference
	return nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func acceptedEvent() timebank.Event {
	return timebank.Event{
		Type:    timebank.EventAccepted,
		ActorID: "owner",
		Handshake: timebank.Handshake{
			ID:          "h1",
			ListingID:   "l1",
			OwnerID:     "owner",
			ApplicantID: "alice",
			Status:      timebank.StatusAccepted,
			Hours:       decimal.RequireFromString("1.5"),
		},
	}
}

func TestDispatcherQueuesPayloadForRecipient(t *testing.T) {
	q := &fakeQueue{}
	d := NewDispatcher(q, discard(), 3)
	d.Notify(context.Background(), acceptedEvent())

	if len(q.tasks) != 1 {
		t.Fatalf("expected 1 task, got %d", len(q.tasks))
	}
	task := q.tasks[0]
	if task.Type() != TaskHandshakeAccepted {
		t.Fatalf("type = %s", task.Type())
	}
	var p HandshakePayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		t.Fatal(err)
	}
	if p.RecipientID != "alice" || p.Hours != "1.5" || p.HandshakeID != "h1" {
		t.Fatalf("unexpected payload %+v", p)
	}
}

func TestDispatcherSwallowsEnqueueErrors(t *testing.T) {
	q := &fakeQueue{err: errors.New("redis down")}
	d := NewDispatcher(q, discard(), 3)
	d.Notify(context.Background(), acceptedEvent())
	if len(q.tasks) != 0 {
		t.Fatal("nothing should be queued")
	}
}

func TestWorkerWritesInbox(t *testing.T) {
	inbox := &fakeInbox{}
	w := &Worker{inbox: inbox, logger: discard()}
	task, err := NewHandshakeTask(acceptedEvent(), time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if err := w.handleHandshakeEvent(context.Background(), task); err != nil {
		t.Fatal(err)
	}
	if inbox.userID != "alice" || inbox.title != "Proposal accepted" || inbox.ref == nil || *inbox.ref != "h1" {
		t.Fatalf("unexpected inbox write %+v", inbox)
	}
}

func TestWorkerSkipsRetryOnBadPayload(t *testing.T) {
	w := &Worker{inbox: &fakeInbox{}, logger: discard()}
	err := w.handleHandshakeEvent(context.Background(), asynq.NewTask(TaskHandshakeProposed, []byte("{")))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry, got %v", err)
	}
}

func TestRenderCoversEveryTask(t *testing.T) {
	p := HandshakePayload{HandshakeID: "h1", Hours: "2"}
	for _, typ := range []string{TaskHandshakeProposed, TaskHandshakeAccepted, TaskHandshakeDeclined, TaskHandshakeWithdrawn, TaskHandshakeConfirmed, TaskHandshakeCompleted} {
		title, body := Render(typ, p)
		if title == "" || body == "" || strings.HasPrefix(title, "Handshake update") {
			t.Errorf("%s: missing specific text", typ)
		}
	}
}
