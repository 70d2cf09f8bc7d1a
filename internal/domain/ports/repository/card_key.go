package repository

import (
	"context"

	"telegram-verification-bot/internal/domain/model"
)

// CardKeyRepository owns CardKey rows and their per-account redemption marks.
type CardKeyRepository interface {
	Create(ctx context.Context, tx Tx, k *model.CardKey) error
	FindByCode(ctx context.Context, tx Tx, code string) (*model.CardKey, error)
	// FindByCodeForUpdate locks the key row for the duration of the enclosing
	// transaction so concurrent redemptions of the same code serialize.
	FindByCodeForUpdate(ctx context.Context, tx Tx, code string) (*model.CardKey, error)
	ListAll(ctx context.Context, tx Tx) ([]*model.CardKey, error)

	// IncrementUses bumps current_uses iff uses remain, returning
	// domain.ErrCodeExhausted otherwise.
	IncrementUses(ctx context.Context, tx Tx, keyID string) error

	// InsertRedemption records (key, account); a duplicate insert returns
	// domain.ErrCodeAlreadyUsed.
	InsertRedemption(ctx context.Context, tx Tx, keyID, accountID string) error
}
