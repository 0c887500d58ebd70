package alerts

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/sudo-init-do/timebank/internal/timebank"
)

// Task types mirror the handshake event names.
const (
	TaskHandshakeProposed  = string(timebank.EventProposed)
	TaskHandshakeAccepted  = string(timebank.EventAccepted)
	TaskHandshakeDeclined  = string(timebank.EventDeclined)
	TaskHandshakeWithdrawn = string(timebank.EventWithdrawn)
	TaskHandshakeConfirmed = string(timebank.EventConfirmed)
	TaskHandshakeCompleted = string(timebank.EventCompleted)
)

// QueueNotifications is the asynq queue every handshake task goes to.
const QueueNotifications = "notifications"

// HandshakePayload is what the worker needs to write an inbox item.
type HandshakePayload struct {
	HandshakeID string    `json:"handshake_id"`
	ListingID   string    `json:"listing_id"`
	ActorID     string    `json:"actor_id"`
	RecipientID string    `json:"recipient_id"`
	Status      string    `json:"status"`
	Hours       string    `json:"hours"`
	EntryID     string    `json:"entry_id,omitempty"`
	SentAt      time.Time `json:"sent_at"`
}

// NewHandshakeTask turns a committed event into an asynq task.
func NewHandshakeTask(ev timebank.Event, now time.Time) (*asynq.Task, error) {
	p := HandshakePayload{
		HandshakeID: ev.Handshake.ID,
		ListingID:   ev.Handshake.ListingID,
		ActorID:     ev.ActorID,
		RecipientID: ev.Recipient(),
		Status:      string(ev.Handshake.Status),
		Hours:       ev.Handshake.Hours.String(),
		SentAt:      now,
	}
	if ev.Entry != nil {
		p.EntryID = ev.Entry.ID
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(string(ev.Type), b), nil
}

// Render builds the inbox title and body for a task type.
func Render(taskType string, p HandshakePayload) (title, body string) {
	switch taskType {
	case TaskHandshakeProposed:
		return "New proposal", "Someone wants to join your listing."
	case TaskHandshakeAccepted:
		return "Proposal accepted", fmt.Sprintf("Your proposal was accepted for %s hours.", p.Hours)
	case TaskHandshakeDeclined:
		return "Proposal declined", "The listing owner declined your proposal."
	case TaskHandshakeWithdrawn:
		return "Proposal withdrawn", "The applicant withdrew their proposal."
	case TaskHandshakeConfirmed:
		return "Completion confirmed", "The other party marked the exchange as done. Confirm to settle the hours."
	case TaskHandshakeCompleted:
		return "Exchange completed", fmt.Sprintf("%s hours have been settled.", p.Hours)
	}
	return "Handshake update", fmt.Sprintf("Handshake %s is now %s.", p.HandshakeID, p.Status)
}
