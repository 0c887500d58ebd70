package messaging

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/timebank/internal/db"
)

// MaxMessageLength caps a thread message, counted in runes.
const MaxMessageLength = 2000

var ErrMessageNotFound = errors.New("message not found")

// Message is one entry in the thread between the two parties of a handshake.
type Message struct {
	ID          string     `json:"id"`
	HandshakeID string     `json:"handshake_id"`
	SenderID    string     `json:"sender_id"`
	RecipientID string     `json:"recipient_id"`
	Content     string     `json:"content"`
	CreatedAt   time.Time  `json:"created_at"`
	ReadAt      *time.Time `json:"read_at"`
}

// MessageStore persists thread messages.
type MessageStore interface {
	Insert(ctx context.Context, m *Message) error
	// List returns messages oldest first; a zero since returns the whole thread.
	List(ctx context.Context, handshakeID string, since time.Time) ([]Message, error)
	Unread(ctx context.Context, handshakeID, recipientID string) (int64, error)
	// MarkRead stamps read_at if recipientID is the message's recipient and
	// returns the stored message either way.
	MarkRead(ctx context.Context, handshakeID, messageID, recipientID string) (*Message, error)
}

// Inbox records an in-app notification for a user.
type Inbox interface {
	Create(ctx context.Context, userID, ntype, title, body string, reference *string) error
}

// Threads serves the message thread of each handshake. Only the owner and the
// applicant may read or post, and every change is pushed to the handshake's
// websocket room.
type Threads struct {
	hub    *Hub
	store  MessageStore
	inbox  Inbox
	logger *slog.Logger
	now    func() time.Time
}

// NewThreads wires the thread handlers to hub for party checks and fan-out.
// inbox may be nil.
func NewThreads(hub *Hub, store MessageStore, inbox Inbox, logger *slog.Logger) *Threads {
	return &Threads{
		hub:    hub,
		store:  store,
		inbox:  inbox,
		logger: logger.With(slog.String("component", "threads")),
		now:    time.Now,
	}
}

// SendMessage posts a message from one party to the other.
func (t *Threads) SendMessage(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var body struct {
		Content string `json:"content"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid payload"})
	}
	content := strings.TrimSpace(body.Content)
	if content == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "content is required"})
	}
	if utf8.RuneCountInString(content) > MaxMessageLength {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "content is too long"})
	}

	handshakeID := c.Param("id")
	hs, ok := t.hub.party(c, handshakeID, userID)
	if !ok {
		return nil
	}
	recipientID := hs.OwnerID
	if userID == hs.OwnerID {
		recipientID = hs.ApplicantID
	}

	ctx := c.Request().Context()
	msg := &Message{
		ID:          uuid.NewString(),
		HandshakeID: handshakeID,
		SenderID:    userID,
		RecipientID: recipientID,
		Content:     content,
		CreatedAt:   t.now().UTC(),
	}
	if err := t.store.Insert(ctx, msg); err != nil {
		t.logger.ErrorContext(ctx, "insert message failed", slog.String("handshake_id", handshakeID), slog.Any("error", err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to send message"})
	}

	t.hub.broadcast(handshakeID, wsEvent{Type: "message:new", Data: msg})

	if t.inbox != nil {
		ref := msg.ID
		if err := t.inbox.Create(ctx, recipientID, "message:new", "New message on your handshake", content, &ref); err != nil {
			t.logger.WarnContext(ctx, "inbox notification failed", slog.String("message_id", msg.ID), slog.Any("error", err))
		}
	}

	return c.JSON(http.StatusCreated, msg)
}

// ListMessages returns the thread, optionally only messages after ?since=
// (RFC3339).
func (t *Threads) ListMessages(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var since time.Time
	if raw := c.QueryParam("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid since timestamp, use RFC3339"})
		}
		since = parsed
	}

	handshakeID := c.Param("id")
	if _, ok := t.hub.party(c, handshakeID, userID); !ok {
		return nil
	}

	msgs, err := t.store.List(c.Request().Context(), handshakeID, since)
	if err != nil {
		t.logger.ErrorContext(c.Request().Context(), "list messages failed", slog.String("handshake_id", handshakeID), slog.Any("error", err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to list messages"})
	}
	if msgs == nil {
		msgs = []Message{}
	}
	return c.JSON(http.StatusOK, echo.Map{"messages": msgs})
}

// UnreadCount reports how many messages in the thread the caller has not read.
func (t *Threads) UnreadCount(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	handshakeID := c.Param("id")
	if _, ok := t.hub.party(c, handshakeID, userID); !ok {
		return nil
	}

	n, err := t.store.Unread(c.Request().Context(), handshakeID, userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to compute unread count"})
	}
	return c.JSON(http.StatusOK, echo.Map{"unread": n})
}

// MarkMessageRead lets the recipient mark a message as read.
func (t *Threads) MarkMessageRead(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	handshakeID := c.Param("id")
	if _, ok := t.hub.party(c, handshakeID, userID); !ok {
		return nil
	}

	msg, err := t.store.MarkRead(c.Request().Context(), handshakeID, c.Param("message_id"), userID)
	if errors.Is(err, ErrMessageNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "message not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to mark read"})
	}
	if msg.RecipientID != userID {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not the recipient"})
	}

	t.hub.broadcast(handshakeID, wsEvent{Type: "message:read", Data: echo.Map{
		"message_id":   msg.ID,
		"handshake_id": handshakeID,
		"user_id":      userID,
		"read_at":      msg.ReadAt,
	}})
	return c.JSON(http.StatusOK, echo.Map{"message_id": msg.ID, "read_at": msg.ReadAt})
}

// PostgresMessages stores threads in the messages table.
type PostgresMessages struct{}

func (PostgresMessages) Insert(ctx context.Context, m *Message) error {
	_, err := db.Conn.Exec(ctx,
		`INSERT INTO messages (id, handshake_id, sender_id, recipient_id, content, created_at)
         VALUES ($1, $2, $3, $4, $5, $6)`,
		m.ID, m.HandshakeID, m.SenderID, m.RecipientID, m.Content, m.CreatedAt,
	)
	return err
}

func (PostgresMessages) List(ctx context.Context, handshakeID string, since time.Time) ([]Message, error) {
	rows, err := db.Conn.Query(ctx,
		`SELECT id, handshake_id, sender_id, recipient_id, content, created_at, read_at
         FROM messages WHERE handshake_id = $1 AND created_at > $2
         ORDER BY created_at ASC, id ASC`, handshakeID, since,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.HandshakeID, &m.SenderID, &m.RecipientID, &m.Content, &m.CreatedAt, &m.ReadAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (PostgresMessages) Unread(ctx context.Context, handshakeID, recipientID string) (int64, error) {
	var n int64
	err := db.Conn.QueryRow(ctx,
		`SELECT COUNT(*) FROM messages WHERE handshake_id = $1 AND recipient_id = $2 AND read_at IS NULL`,
		handshakeID, recipientID,
	).Scan(&n)
	return n, err
}

func (PostgresMessages) MarkRead(ctx context.Context, handshakeID, messageID, recipientID string) (*Message, error) {
	if _, err := uuid.Parse(messageID); err != nil {
		return nil, ErrMessageNotFound
	}
	var m Message
	err := db.Conn.QueryRow(ctx,
		`UPDATE messages SET read_at = COALESCE(read_at, NOW())
         WHERE id = $1 AND handshake_id = $2 AND recipient_id = $3
         RETURNING id, handshake_id, sender_id, recipient_id, content, created_at, read_at`,
		messageID, handshakeID, recipientID,
	).Scan(&m.ID, &m.HandshakeID, &m.SenderID, &m.RecipientID, &m.Content, &m.CreatedAt, &m.ReadAt)
	if errors.Is(err, pgx.ErrNoRows) {
		// Either missing or addressed to the other party.
		err = db.Conn.QueryRow(ctx,
			`SELECT id, handshake_id, sender_id, recipient_id, content, created_at, read_at
             FROM messages WHERE id = $1 AND handshake_id = $2`, messageID, handshakeID,
		).Scan(&m.ID, &m.HandshakeID, &m.SenderID, &m.RecipientID, &m.Content, &m.CreatedAt, &m.ReadAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMessageNotFound
		}
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}
