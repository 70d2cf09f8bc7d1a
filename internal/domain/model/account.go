package model

import (
	"time"

	"telegram-verification-bot/internal/domain"

	"github.com/google/uuid"
)

// Account is a domain entity representing one end user of the verification
// service. The balance is mutated only through the ledger; accounts are never
// deleted, only blocked.
type Account struct {
	ID           string
	ChatID       int64 // opaque identity key from the chat layer
	Username     string
	Balance      int
	Blocked      bool
	InvitedBy    *string // account ID of the inviter, bookkeeping only
	RegisteredAt time.Time
	LastCheckin  *time.Time
}

func NewAccount(id string, chatID int64, username string, invitedBy *string) (*Account, error) {
	if id == "" {
		id = uuid.NewString()
	}
	if chatID <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	return &Account{
		ID:           id,
		ChatID:       chatID,
		Username:     username,
		InvitedBy:    invitedBy,
		RegisteredAt: time.Now(),
	}, nil
}

func (a *Account) IsZero() bool { return a == nil || a.ID == "" }
