package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"telegram-verification-bot/internal/config"
	"telegram-verification-bot/internal/domain"
	"telegram-verification-bot/internal/domain/model"
	"telegram-verification-bot/internal/domain/ports/repository"
	"telegram-verification-bot/internal/infra/metrics"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
)

// LedgerUseCase owns every balance mutation: registration bonuses, attempt
// charges and refunds, card-key redemption and the daily check-in.
type LedgerUseCase interface {
	RegisterOrFetch(ctx context.Context, chatID int64, username string, inviterChatID *int64) (*model.Account, error)
	GetByChatID(ctx context.Context, chatID int64) (*model.Account, error)

	// Debit charges amount against the account, rejecting the whole
	// operation with domain.ErrInsufficientCredits when the balance is
	// short. The reason only labels metrics and logs.
	Debit(ctx context.Context, accountID string, amount int, reason string) error
	Credit(ctx context.Context, accountID string, amount int, reason string) error

	// RedeemCardKey credits the key's value exactly once per (code, account)
	// and returns the credited amount.
	RedeemCardKey(ctx context.Context, code, accountID string) (int, error)
	CheckIn(ctx context.Context, accountID string) (int, error)

	CreateCardKey(ctx context.Context, code string, value, maxUses int, expiresAt *time.Time, createdBy string) (*model.CardKey, error)
	ListCardKeys(ctx context.Context) ([]*model.CardKey, error)

	SetBlocked(ctx context.Context, accountID string, blocked bool) error
	ListBlocked(ctx context.Context) ([]*model.Account, error)
}

type ledgerUC struct {
	accounts repository.AccountRepository
	keys     repository.CardKeyRepository
	tm       repository.TransactionManager
	cfg      config.VerifyConfig
	log      *zerolog.Logger
}

func NewLedgerUseCase(
	accounts repository.AccountRepository,
	keys repository.CardKeyRepository,
	tm repository.TransactionManager,
	cfg config.VerifyConfig,
	logger *zerolog.Logger,
) *ledgerUC {
	return &ledgerUC{accounts: accounts, keys: keys, tm: tm, cfg: cfg, log: logger}
}

func (u *ledgerUC) RegisterOrFetch(ctx context.Context, chatID int64, username string, inviterChatID *int64) (*model.Account, error) {
	var out *model.Account
	err := u.tm.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(ctx context.Context, tx repository.Tx) error {
		existing, err := u.accounts.FindByChatID(ctx, tx, chatID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		if existing != nil {
			if username != "" && existing.Username != username {
				existing.Username = username
				if err := u.accounts.Save(ctx, tx, existing); err != nil {
					return err
				}
			}
			out = existing
			return nil
		}

		var invitedBy *string
		var inviter *model.Account
		if inviterChatID != nil && *inviterChatID != chatID {
			inviter, err = u.accounts.FindByChatID(ctx, tx, *inviterChatID)
			if err != nil && !errors.Is(err, domain.ErrNotFound) {
				return err
			}
			if inviter != nil {
				invitedBy = &inviter.ID
			}
		}

		acc, err := model.NewAccount(uuid.NewString(), chatID, username, invitedBy)
		if err != nil {
			return err
		}
		if err := u.accounts.Save(ctx, tx, acc); err != nil {
			return err
		}
		// The invite bonus lands in the same transaction as the new row, so
		// a failed registration never pays the inviter.
		if inviter != nil && u.cfg.InviteBonus > 0 {
			if err := u.accounts.Credit(ctx, tx, inviter.ID, u.cfg.InviteBonus); err != nil {
				return err
			}
			metrics.IncCredit("invite_bonus")
		}
		out = acc
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("register account: %w", err)
	}
	return out, nil
}

func (u *ledgerUC) GetByChatID(ctx context.Context, chatID int64) (*model.Account, error) {
	return u.accounts.FindByChatID(ctx, repository.NoTX, chatID)
}

func (u *ledgerUC) Debit(ctx context.Context, accountID string, amount int, reason string) error {
	if amount <= 0 {
		return domain.ErrInvalidArgument
	}
	if err := u.accounts.Debit(ctx, repository.NoTX, accountID, amount); err != nil {
		if errors.Is(err, domain.ErrInsufficientCredits) {
			metrics.IncRejected("debit", "insufficient")
		}
		return err
	}
	metrics.IncDebit(reason)
	u.log.Info().Str("account_id", accountID).Int("amount", amount).Str("reason", reason).Msg("debit")
	return nil
}

func (u *ledgerUC) Credit(ctx context.Context, accountID string, amount int, reason string) error {
	if amount <= 0 {
		return domain.ErrInvalidArgument
	}
	if err := u.accounts.Credit(ctx, repository.NoTX, accountID, amount); err != nil {
		return err
	}
	metrics.IncCredit(reason)
	u.log.Info().Str("account_id", accountID).Int("amount", amount).Str("reason", reason).Msg("credit")
	return nil
}

func (u *ledgerUC) RedeemCardKey(ctx context.Context, code, accountID string) (int, error) {
	var credited int
	err := u.tm.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(ctx context.Context, tx repository.Tx) error {
		key, err := u.keys.FindByCodeForUpdate(ctx, tx, code)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.ErrCodeNotFound
			}
			return err
		}
		if key.Expired(time.Now()) {
			metrics.IncRejected("redeem", "expired")
			return domain.ErrCodeExpired
		}
		if key.Exhausted() {
			metrics.IncRejected("redeem", "exhausted")
			return domain.ErrCodeExhausted
		}
		if err := u.keys.InsertRedemption(ctx, tx, key.ID, accountID); err != nil {
			if errors.Is(err, domain.ErrCodeAlreadyUsed) {
				metrics.IncRejected("redeem", "already_used")
			}
			return err
		}
		if err := u.keys.IncrementUses(ctx, tx, key.ID); err != nil {
			return err
		}
		if err := u.accounts.Credit(ctx, tx, accountID, key.Value); err != nil {
			return err
		}
		credited = key.Value
		return nil
	})
	if err != nil {
		return 0, err
	}
	metrics.IncCredit("card_key")
	u.log.Info().Str("account_id", accountID).Int("amount", credited).Msg("card key redeemed")
	return credited, nil
}

func (u *ledgerUC) CheckIn(ctx context.Context, accountID string) (int, error) {
	bonus := u.cfg.CheckinBonus
	err := u.tm.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(ctx context.Context, tx repository.Tx) error {
		if err := u.accounts.MarkCheckin(ctx, tx, accountID, time.Now()); err != nil {
			return err
		}
		return u.accounts.Credit(ctx, tx, accountID, bonus)
	})
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyCheckedIn) {
			metrics.IncRejected("checkin", "already_today")
		}
		return 0, err
	}
	metrics.IncCredit("checkin")
	return bonus, nil
}

func (u *ledgerUC) CreateCardKey(ctx context.Context, code string, value, maxUses int, expiresAt *time.Time, createdBy string) (*model.CardKey, error) {
	if code == "" || value <= 0 || maxUses <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	key := &model.CardKey{
		ID:        uuid.NewString(),
		Code:      code,
		Value:     value,
		MaxUses:   maxUses,
		CreatedBy: createdBy,
		CreatedAt: time.Now(),
		ExpiresAt: expiresAt,
	}
	if err := u.keys.Create(ctx, repository.NoTX, key); err != nil {
		return nil, err
	}
	return key, nil
}

func (u *ledgerUC) ListCardKeys(ctx context.Context) ([]*model.CardKey, error) {
	return u.keys.ListAll(ctx, repository.NoTX)
}

func (u *ledgerUC) SetBlocked(ctx context.Context, accountID string, blocked bool) error {
	if err := u.accounts.SetBlocked(ctx, repository.NoTX, accountID, blocked); err != nil {
		return err
	}
	u.log.Info().Str("account_id", accountID).Bool("blocked", blocked).Msg("account block state changed")
	return nil
}

func (u *ledgerUC) ListBlocked(ctx context.Context) ([]*model.Account, error) {
	return u.accounts.ListBlocked(ctx, repository.NoTX)
}
