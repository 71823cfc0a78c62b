package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Type identifies a credential lifecycle transition
type Type string

const (
	TypeProvisioned Type = "provisioned"
	TypeReconciled  Type = "reconciled"
	TypeRotated     Type = "rotated"
	TypeReset       Type = "reset"
)

// Event records a single credential lifecycle transition for
// downstream billing and analytics consumers.
type Event struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	Type             Type      `json:"type"`
	RemainingCredits float64   `json:"remaining_credits"`
	TotalCredits     float64   `json:"total_credits"`
	OccurredAt       time.Time `json:"occurred_at"`
}

// New builds an event with a fresh id and timestamp
func New(userID string, t Type, remaining, total float64) Event {
	return Event{
		ID:               uuid.NewString(),
		UserID:           userID,
		Type:             t,
		RemainingCredits: remaining,
		TotalCredits:     total,
		OccurredAt:       time.Now().UTC(),
	}
}

// Sink receives lifecycle events. Publish failures never fail a
// reconciliation; the engine logs and moves on.
type Sink interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}
