// Package engine is the handshake and settlement engine. It validates
// proposals, runs the handshake state machine, reserves listing capacity and
// settles time credits exactly once when both parties confirm.
//
// Every state change runs inside a single store transaction. Notifications
// are emitted only after that transaction commits.
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sudo-init-do/timebank/internal/store"
	"github.com/sudo-init-do/timebank/internal/timebank"
)

// Engine coordinates proposals, acceptance, completion and ratings.
type Engine struct {
	store     store.Store
	registry  Registry
	notifiers []timebank.Notifier
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string

	allowHoursOverride bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithNotifier adds a receiver for committed events.
func WithNotifier(n timebank.Notifier) Option {
	return func(e *Engine) {
		if n != nil {
			e.notifiers = append(e.notifiers, n)
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDGenerator replaces the uuid generator.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) { e.newID = fn }
}

// WithHoursOverride controls whether the owner may set hours different from
// the listing's nominal price when accepting.
func WithHoursOverride(allow bool) Option {
	return func(e *Engine) { e.allowHoursOverride = allow }
}

// New builds an Engine on top of st.
func New(st store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:              st,
		logger:             slog.Default(),
		now:                func() time.Time { return time.Now().UTC() },
		newID:              func() string { return uuid.New().String() },
		allowHoursOverride: true,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With(slog.String("component", "engine"))
	e.registry = Registry{now: e.now}
	return e
}

// Registry exposes the listing registry used by the engine.
func (e *Engine) Registry() Registry {
	return e.registry
}

func (e *Engine) emit(ctx context.Context, ev timebank.Event) {
	for _, n := range e.notifiers {
		n.Notify(ctx, ev)
	}
}

func (e *Engine) logTransition(ctx context.Context, msg string, h *timebank.Handshake, actorID string) {
	e.logger.InfoContext(ctx, msg,
		slog.String("handshake_id", h.ID),
		slog.String("listing_id", h.ListingID),
		slog.String("actor_id", actorID),
		slog.String("status", string(h.Status)),
	)
}
