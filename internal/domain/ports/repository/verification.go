package repository

import (
	"context"

	"telegram-verification-bot/internal/domain/model"
)

// VerificationRepository stores attempt records produced by the core.
type VerificationRepository interface {
	Save(ctx context.Context, tx Tx, v *model.VerificationAttempt) error
	FindByExternalID(ctx context.Context, tx Tx, externalID string) (*model.VerificationAttempt, error)
	ListByAccount(ctx context.Context, tx Tx, accountID string, limit int) ([]*model.VerificationAttempt, error)

	// UpdateStatus performs the pending -> success/failed transition.
	UpdateStatus(ctx context.Context, tx Tx, id string, status model.AttemptStatus, result string) error
}
