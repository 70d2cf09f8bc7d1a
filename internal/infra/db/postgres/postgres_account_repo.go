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

var _ repository.AccountRepository = (*PostgresAccountRepo)(nil)

type PostgresAccountRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresAccountRepo(pool *pgxpool.Pool) *PostgresAccountRepo {
	return &PostgresAccountRepo{pool: pool}
}

func (r *PostgresAccountRepo) Save(ctx context.Context, tx repository.Tx, a *model.Account) error {
	const q = `
INSERT INTO accounts (id, chat_id, username, balance, blocked, invited_by, registered_at, last_checkin)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (id) DO UPDATE SET
  username=$3, blocked=$5, last_checkin=$8;
`
	_, err := pick(r.pool, tx).Exec(ctx, q,
		a.ID, a.ChatID, a.Username, a.Balance, a.Blocked, a.InvitedBy, a.RegisteredAt, a.LastCheckin)
	return err
}

const accountColumns = `id, chat_id, username, balance, blocked, invited_by, registered_at, last_checkin`

func (r *PostgresAccountRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Account, error) {
	row := pick(r.pool, tx).QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id=$1;`, id)
	return scanAccount(row)
}

func (r *PostgresAccountRepo) FindByChatID(ctx context.Context, tx repository.Tx, chatID int64) (*model.Account, error) {
	row := pick(r.pool, tx).QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE chat_id=$1;`, chatID)
	return scanAccount(row)
}

func scanAccount(row pgx.Row) (*model.Account, error) {
	var a model.Account
	err := row.Scan(&a.ID, &a.ChatID, &a.Username, &a.Balance, &a.Blocked, &a.InvitedBy, &a.RegisteredAt, &a.LastCheckin)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

// Debit is a single atomic check-and-decrement: the WHERE clause rejects the
// update when the balance would go negative.
func (r *PostgresAccountRepo) Debit(ctx context.Context, tx repository.Tx, id string, amount int) error {
	if amount <= 0 {
		return domain.ErrInvalidArgument
	}
	const q = `UPDATE accounts SET balance = balance - $2 WHERE id=$1 AND balance >= $2;`
	tag, err := pick(r.pool, tx).Exec(ctx, q, id, amount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInsufficientCredits
	}
	return nil
}

func (r *PostgresAccountRepo) Credit(ctx context.Context, tx repository.Tx, id string, amount int) error {
	if amount <= 0 {
		return domain.ErrInvalidArgument
	}
	const q = `UPDATE accounts SET balance = balance + $2 WHERE id=$1;`
	tag, err := pick(r.pool, tx).Exec(ctx, q, id, amount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PostgresAccountRepo) SetBlocked(ctx context.Context, tx repository.Tx, id string, blocked bool) error {
	tag, err := pick(r.pool, tx).Exec(ctx, `UPDATE accounts SET blocked=$2 WHERE id=$1;`, id, blocked)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PostgresAccountRepo) ListBlocked(ctx context.Context, tx repository.Tx) ([]*model.Account, error) {
	rows, err := pick(r.pool, tx).Query(ctx, `SELECT `+accountColumns+` FROM accounts WHERE blocked ORDER BY registered_at;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Account
	for rows.Next() {
		var a model.Account
		if err := rows.Scan(&a.ID, &a.ChatID, &a.Username, &a.Balance, &a.Blocked, &a.InvitedBy, &a.RegisteredAt, &a.LastCheckin); err != nil {
			return nil, err
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

// MarkCheckin succeeds at most once per calendar day; the date comparison is
// part of the UPDATE so concurrent check-ins cannot both pass.
func (r *PostgresAccountRepo) MarkCheckin(ctx context.Context, tx repository.Tx, id string, day time.Time) error {
	const q = `
UPDATE accounts SET last_checkin=$2
 WHERE id=$1 AND (last_checkin IS NULL OR last_checkin::date < $2::date);
`
	tag, err := pick(r.pool, tx).Exec(ctx, q, id, day)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAlreadyCheckedIn
	}
	return nil
}
