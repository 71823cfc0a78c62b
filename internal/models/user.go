package models

import "time"

// User is the durable credential record, one row per subscriber. Key
// and Hash always refer to the same provider-side object and are only
// ever replaced together.
type User struct {
	UserID   string `db:"user_id" json:"user_id"`
	UserName string `db:"user_name" json:"user_name"`
	Email    string `db:"email" json:"email"`

	// Key is the active provider secret handed to the subscriber;
	// Hash is the provider-side handle used to query or delete it.
	Key  string `db:"key" json:"-"`
	Hash string `db:"hash" json:"-"`

	// TotalLimit is the lifetime credit ceiling, fixed at creation.
	// RemainingLimit is the gateway's own ledger of what is left.
	// UsageLimit is the quota baseline of the current key, used to
	// derive consumption from the next provider snapshot.
	TotalLimit     float64 `db:"total_limit" json:"total_limit"`
	RemainingLimit float64 `db:"remaining_limit" json:"remaining_limit"`
	UsageLimit     float64 `db:"usage_limit" json:"usage_limit"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Depleted reports whether the lifetime ledger has dropped to or below
// the given threshold.
func (u *User) Depleted(threshold float64) bool {
	return u.RemainingLimit <= threshold
}

// ConsumedSince returns the credits used on the current key given a
// fresh provider-reported remaining quota. Negative when the provider
// raised the quota out-of-band; callers propagate the raw value.
func (u *User) ConsumedSince(limitRemaining float64) float64 {
	return u.UsageLimit - limitRemaining
}
