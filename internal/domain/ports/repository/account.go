package repository

import (
	"context"
	"time"

	"telegram-verification-bot/internal/domain/model"
)

// AccountRepository owns Account rows. Debit and Credit are the only balance
// mutations; both are atomic with respect to concurrent operations on the
// same account.
type AccountRepository interface {
	Save(ctx context.Context, tx Tx, a *model.Account) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Account, error)
	FindByChatID(ctx context.Context, tx Tx, chatID int64) (*model.Account, error)

	// Debit decrements balance by amount iff balance >= amount; it returns
	// domain.ErrInsufficientCredits with no mutation otherwise.
	Debit(ctx context.Context, tx Tx, id string, amount int) error
	// Credit increments balance by amount; it fails only for unknown accounts.
	Credit(ctx context.Context, tx Tx, id string, amount int) error

	SetBlocked(ctx context.Context, tx Tx, id string, blocked bool) error
	ListBlocked(ctx context.Context, tx Tx) ([]*model.Account, error)

	// MarkCheckin sets the last check-in day to today iff it is not already
	// today, returning domain.ErrAlreadyCheckedIn otherwise. The check and
	// the write are a single atomic statement.
	MarkCheckin(ctx context.Context, tx Tx, id string, day time.Time) error
}
