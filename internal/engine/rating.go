package engine

import (
	"context"
	"fmt"

	"github.com/sudo-init-do/timebank/internal/store"
	"github.com/sudo-init-do/timebank/internal/timebank"
)

// CanRate reports whether actorID may leave feedback on the handshake. A
// party may rate as soon as their own completion flag is set, whether or not
// the other side has confirmed.
func (e *Engine) CanRate(ctx context.Context, handshakeID, actorID string) (bool, error) {
	h, err := e.store.GetHandshake(ctx, handshakeID)
	if err != nil {
		return false, err
	}
	return h.Confirmed(h.RoleOf(actorID)), nil
}

// RatingInput is one party's feedback.
type RatingInput struct {
	HandshakeID string
	RaterID     string
	Scores      map[string]int
	Comment     string
}

// SubmitRating stores feedback about the other party once CanRate allows it.
func (e *Engine) SubmitRating(ctx context.Context, in RatingInput) (*timebank.Rating, error) {
	if err := timebank.ValidateScores(in.Scores); err != nil {
		return nil, err
	}
	if len(in.Comment) > timebank.MaxCommentLength {
		return nil, fmt.Errorf("comment too long (max %d characters): %w", timebank.MaxCommentLength, timebank.ErrInvalidInput)
	}

	var r *timebank.Rating
	err := e.store.WithTx(ctx, func(tx store.Tx) error {
		h, err := tx.LockHandshake(ctx, in.HandshakeID)
		if err != nil {
			return err
		}
		if !h.IsParty(in.RaterID) {
			return timebank.ErrUnauthorized
		}
		role := h.RoleOf(in.RaterID)
		if !h.Confirmed(role) {
			return timebank.ErrCannotRate
		}
		ratee := h.ProviderID
		if role == timebank.RoleProvider {
			ratee = h.RequesterID
		}
		r = &timebank.Rating{
			ID:          e.newID(),
			HandshakeID: h.ID,
			RaterID:     in.RaterID,
			RateeID:     ratee,
			Scores:      in.Scores,
			Comment:     in.Comment,
			CreatedAt:   e.now(),
		}
		return tx.InsertRating(ctx, r)
	})
	if err != nil {
		return nil, fmt.Errorf("rate %s: %w", in.HandshakeID, err)
	}
	return r, nil
}

// GetRating returns the rating raterID left on a handshake.
func (e *Engine) GetRating(ctx context.Context, handshakeID, raterID string) (*timebank.Rating, error) {
	return e.store.GetRating(ctx, handshakeID, raterID)
}
