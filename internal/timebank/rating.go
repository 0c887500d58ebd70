package timebank

import (
	"fmt"
	"time"
)

// RatingCategories are the score dimensions a party may fill in.
var RatingCategories = []string{"reliability", "quality", "communication", "punctuality"}

const MaxCommentLength = 1000

// Rating is the feedback one party leaves about the other.
type Rating struct {
	ID          string         `json:"id"`
	HandshakeID string         `json:"handshake_id"`
	RaterID     string         `json:"rater_id"`
	RateeID     string         `json:"ratee_id"`
	Scores      map[string]int `json:"scores"`
	Comment     string         `json:"comment"`
	CreatedAt   time.Time      `json:"created_at"`
}

// ValidateScores requires at least one known category with a 1-5 score.
func ValidateScores(scores map[string]int) error {
	if len(scores) == 0 {
		return fmt.Errorf("at least one score is required: %w", ErrInvalidInput)
	}
	for k, v := range scores {
		if !knownCategory(k) {
			return fmt.Errorf("unknown rating category %q: %w", k, ErrInvalidInput)
		}
		if v < 1 || v > 5 {
			return fmt.Errorf("score for %s must be between 1 and 5: %w", k, ErrInvalidInput)
		}
	}
	return nil
}

func knownCategory(name string) bool {
	for _, c := range RatingCategories {
		if c == name {
			return true
		}
	}
	return false
}
