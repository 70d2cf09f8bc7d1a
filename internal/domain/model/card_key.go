package model

import (
	"time"
)

// CardKey is a redeemable code that credits points to an account.
// A key may be redeemed up to MaxUses times in total, but at most once per
// account; both limits are enforced transactionally at redemption time.
type CardKey struct {
	ID          string
	Code        string
	Value       int // points credited per redemption
	MaxUses     int
	CurrentUses int
	CreatedBy   string
	CreatedAt   time.Time
	ExpiresAt   *time.Time // nil means the key never expires
}

func (k *CardKey) Expired(now time.Time) bool {
	return k.ExpiresAt != nil && now.After(*k.ExpiresAt)
}

func (k *CardKey) Exhausted() bool { return k.CurrentUses >= k.MaxUses }
