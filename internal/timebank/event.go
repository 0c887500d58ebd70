package timebank

import "context"

type EventType string

const (
	EventProposed  EventType = "handshake:proposed"
	EventAccepted  EventType = "handshake:accepted"
	EventDeclined  EventType = "handshake:declined"
	EventWithdrawn EventType = "handshake:withdrawn"
	EventConfirmed EventType = "handshake:confirmed"
	EventCompleted EventType = "handshake:completed"
)

// Event describes a committed handshake transition. Events are produced after
// the transaction commits and are never consumed by the engine itself.
type Event struct {
	Type      EventType    `json:"type"`
	ActorID   string       `json:"actor_id"`
	Handshake Handshake    `json:"handshake"`
	Entry     *LedgerEntry `json:"entry,omitempty"`
}

// Recipient is the party that did not cause the event.
func (e Event) Recipient() string {
	if e.ActorID == e.Handshake.OwnerID {
		return e.Handshake.ApplicantID
	}
	return e.Handshake.OwnerID
}

// Notifier receives committed events. Implementations must not block on
// delivery.
type Notifier interface {
	Notify(ctx context.Context, e Event)
}
