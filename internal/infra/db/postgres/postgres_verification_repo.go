package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-verification-bot/internal/domain"
	"telegram-verification-bot/internal/domain/model"
	"telegram-verification-bot/internal/domain/ports/repository"
)

var _ repository.VerificationRepository = (*verificationRepo)(nil)

type verificationRepo struct {
	pool *pgxpool.Pool
}

func NewVerificationRepo(pool *pgxpool.Pool) repository.VerificationRepository {
	return &verificationRepo{pool: pool}
}

func (r *verificationRepo) Save(ctx context.Context, tx repository.Tx, v *model.VerificationAttempt) error {
	const q = `
INSERT INTO verification_attempts (id, account_id, provider, reference, status, result, external_id, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (id) DO UPDATE SET
  status=$5, result=$6, external_id=$7, updated_at=$9;
`
	_, err := pick(r.pool, tx).Exec(ctx, q,
		v.ID, v.AccountID, string(v.Provider), v.Reference, string(v.Status), v.Result, v.ExternalID, v.CreatedAt, v.UpdatedAt)
	return err
}

const attemptColumns = `id, account_id, provider, reference, status, result, external_id, created_at, updated_at`

func (r *verificationRepo) FindByExternalID(ctx context.Context, tx repository.Tx, externalID string) (*model.VerificationAttempt, error) {
	row := pick(r.pool, tx).QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM verification_attempts WHERE external_id=$1 ORDER BY created_at DESC LIMIT 1;`, externalID)
	var v model.VerificationAttempt
	if err := row.Scan(&v.ID, &v.AccountID, &v.Provider, &v.Reference, &v.Status, &v.Result, &v.ExternalID, &v.CreatedAt, &v.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &v, nil
}

func (r *verificationRepo) ListByAccount(ctx context.Context, tx repository.Tx, accountID string, limit int) ([]*model.VerificationAttempt, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := pick(r.pool, tx).Query(ctx,
		`SELECT `+attemptColumns+` FROM verification_attempts WHERE account_id=$1 ORDER BY created_at DESC LIMIT $2;`, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.VerificationAttempt
	for rows.Next() {
		var v model.VerificationAttempt
		if err := rows.Scan(&v.ID, &v.AccountID, &v.Provider, &v.Reference, &v.Status, &v.Result, &v.ExternalID, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &v)
	}
	return out, rows.Err()
}

func (r *verificationRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.AttemptStatus, result string) error {
	const q = `UPDATE verification_attempts SET status=$2, result=$3, updated_at=$4 WHERE id=$1;`
	tag, err := pick(r.pool, tx).Exec(ctx, q, id, string(status), result, time.Now())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
