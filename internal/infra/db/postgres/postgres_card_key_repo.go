package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-verification-bot/internal/domain"
	"telegram-verification-bot/internal/domain/model"
	"telegram-verification-bot/internal/domain/ports/repository"
)

var _ repository.CardKeyRepository = (*cardKeyRepo)(nil)

type cardKeyRepo struct {
	pool *pgxpool.Pool
}

func NewCardKeyRepo(pool *pgxpool.Pool) repository.CardKeyRepository {
	return &cardKeyRepo{pool: pool}
}

func (r *cardKeyRepo) Create(ctx context.Context, tx repository.Tx, k *model.CardKey) error {
	if k.ID == "" {
		k.ID = uuid.NewString()
	}
	const q = `
INSERT INTO card_keys (id, code, value, max_uses, current_uses, created_by, created_at, expires_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8);
`
	_, err := pick(r.pool, tx).Exec(ctx, q,
		k.ID, k.Code, k.Value, k.MaxUses, k.CurrentUses, k.CreatedBy, k.CreatedAt, k.ExpiresAt)
	if uniqueViolation(err) {
		return domain.ErrAlreadyExists
	}
	return err
}

const cardKeyColumns = `id, code, value, max_uses, current_uses, created_by, created_at, expires_at`

func (r *cardKeyRepo) FindByCode(ctx context.Context, tx repository.Tx, code string) (*model.CardKey, error) {
	row := pick(r.pool, tx).QueryRow(ctx, `SELECT `+cardKeyColumns+` FROM card_keys WHERE code=$1;`, code)
	return scanCardKey(row)
}

// FindByCodeForUpdate serializes concurrent redemptions of one code: the row
// lock is held until the enclosing transaction resolves.
func (r *cardKeyRepo) FindByCodeForUpdate(ctx context.Context, tx repository.Tx, code string) (*model.CardKey, error) {
	row := pick(r.pool, tx).QueryRow(ctx, `SELECT `+cardKeyColumns+` FROM card_keys WHERE code=$1 FOR UPDATE;`, code)
	return scanCardKey(row)
}

func scanCardKey(row pgx.Row) (*model.CardKey, error) {
	var k model.CardKey
	err := row.Scan(&k.ID, &k.Code, &k.Value, &k.MaxUses, &k.CurrentUses, &k.CreatedBy, &k.CreatedAt, &k.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCodeNotFound
		}
		return nil, err
	}
	return &k, nil
}

func (r *cardKeyRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.CardKey, error) {
	rows, err := pick(r.pool, tx).Query(ctx, `SELECT `+cardKeyColumns+` FROM card_keys ORDER BY created_at DESC;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.CardKey
	for rows.Next() {
		var k model.CardKey
		if err := rows.Scan(&k.ID, &k.Code, &k.Value, &k.MaxUses, &k.CurrentUses, &k.CreatedBy, &k.CreatedAt, &k.ExpiresAt); err != nil {
			return nil, err
		}
		out = append(out, &k)
	}
	return out, rows.Err()
}

func (r *cardKeyRepo) IncrementUses(ctx context.Context, tx repository.Tx, keyID string) error {
	const q = `UPDATE card_keys SET current_uses = current_uses + 1 WHERE id=$1 AND current_uses < max_uses;`
	tag, err := pick(r.pool, tx).Exec(ctx, q, keyID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCodeExhausted
	}
	return nil
}

func (r *cardKeyRepo) InsertRedemption(ctx context.Context, tx repository.Tx, keyID, accountID string) error {
	const q = `INSERT INTO card_key_redemptions (card_key_id, account_id, redeemed_at) VALUES ($1,$2,now());`
	_, err := pick(r.pool, tx).Exec(ctx, q, keyID, accountID)
	if uniqueViolation(err) {
		return domain.ErrCodeAlreadyUsed
	}
	return err
}
