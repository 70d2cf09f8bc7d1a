//go:build !integration

package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"telegram-verification-bot/internal/config"
	"telegram-verification-bot/internal/domain"
	"telegram-verification-bot/internal/domain/model"

	"github.com/rs/zerolog"
)

func newLedgerFixture(t *testing.T) (*ledgerUC, *mockAccountRepo, *mockCardKeyRepo) {
	t.Helper()
	nop := zerolog.Nop()
	accounts := newMockAccountRepo()
	keys := newMockCardKeyRepo()
	uc := NewLedgerUseCase(accounts, keys, &mockTxManager{}, config.VerifyConfig{
		Cost:         5,
		InviteBonus:  2,
		CheckinBonus: 1,
	}, &nop)
	return uc, accounts, keys
}

func seedAccount(t *testing.T, accounts *mockAccountRepo, id string, chatID int64, balance int) *model.Account {
	t.Helper()
	acc, err := model.NewAccount(id, chatID, "u"+id, nil)
	if err != nil {
		t.Fatalf("NewAccount: %v", err)
	}
	acc.Balance = balance
	if err := accounts.Save(context.Background(), nil, acc); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return acc
}

func TestLedger_RegisterOrFetch(t *testing.T) {
	uc, accounts, _ := newLedgerFixture(t)
	ctx := context.Background()

	inviter, err := uc.RegisterOrFetch(ctx, 100, "alice", nil)
	if err != nil {
		t.Fatalf("register inviter: %v", err)
	}

	t.Run("new account pays the inviter", func(t *testing.T) {
		inviterChat := int64(100)
		acc, err := uc.RegisterOrFetch(ctx, 200, "bob", &inviterChat)
		if err != nil {
			t.Fatalf("register: %v", err)
		}
		if acc.InvitedBy == nil || *acc.InvitedBy != inviter.ID {
			t.Fatalf("invitedBy = %v", acc.InvitedBy)
		}
		if got := accounts.balance(inviter.ID); got != 2 {
			t.Fatalf("inviter balance = %d, want invite bonus 2", got)
		}
	})

	t.Run("repeat registration pays nothing", func(t *testing.T) {
		inviterChat := int64(100)
		again, err := uc.RegisterOrFetch(ctx, 200, "bob", &inviterChat)
		if err != nil {
			t.Fatalf("re-register: %v", err)
		}
		if again.InvitedBy == nil || *again.InvitedBy != inviter.ID {
			t.Fatalf("existing row changed: %+v", again)
		}
		if got := accounts.balance(inviter.ID); got != 2 {
			t.Fatalf("inviter balance = %d, bonus paid twice", got)
		}
	})

	t.Run("self invite is ignored", func(t *testing.T) {
		self := int64(300)
		acc, err := uc.RegisterOrFetch(ctx, 300, "carol", &self)
		if err != nil {
			t.Fatalf("register: %v", err)
		}
		if acc.InvitedBy != nil {
			t.Fatalf("invitedBy = %v", acc.InvitedBy)
		}
	})
}

func TestLedger_RedeemCardKey(t *testing.T) {
	ctx := context.Background()

	t.Run("credits once per account under concurrency", func(t *testing.T) {
		uc, accounts, _ := newLedgerFixture(t)
		seedAccount(t, accounts, "acc-1", 1, 0)
		if _, err := uc.CreateCardKey(ctx, "GIFT-1", 25, 10, nil, "admin"); err != nil {
			t.Fatalf("CreateCardKey: %v", err)
		}

		const workers = 8
		var wg sync.WaitGroup
		errs := make([]error, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = uc.RedeemCardKey(ctx, "GIFT-1", "acc-1")
			}(i)
		}
		wg.Wait()

		var ok, dup int
		for _, err := range errs {
			switch {
			case err == nil:
				ok++
			case errors.Is(err, domain.ErrCodeAlreadyUsed):
				dup++
			default:
				t.Fatalf("unexpected error: %v", err)
			}
		}
		if ok != 1 || dup != workers-1 {
			t.Fatalf("ok=%d dup=%d", ok, dup)
		}
		if got := accounts.balance("acc-1"); got != 25 {
			t.Fatalf("balance = %d, want exactly one credit of 25", got)
		}
	})

	t.Run("honors max uses across accounts", func(t *testing.T) {
		uc, accounts, _ := newLedgerFixture(t)
		if _, err := uc.CreateCardKey(ctx, "GIFT-2", 10, 3, nil, "admin"); err != nil {
			t.Fatalf("CreateCardKey: %v", err)
		}
		for i := 0; i < 5; i++ {
			seedAccount(t, accounts, fmt.Sprintf("acc-%d", i), int64(i+1), 0)
		}

		var ok, exhausted int
		for i := 0; i < 5; i++ {
			_, err := uc.RedeemCardKey(ctx, "GIFT-2", fmt.Sprintf("acc-%d", i))
			switch {
			case err == nil:
				ok++
			case errors.Is(err, domain.ErrCodeExhausted):
				exhausted++
			default:
				t.Fatalf("unexpected error: %v", err)
			}
		}
		if ok != 3 || exhausted != 2 {
			t.Fatalf("ok=%d exhausted=%d", ok, exhausted)
		}
	})

	t.Run("rejects expired and unknown codes", func(t *testing.T) {
		uc, accounts, _ := newLedgerFixture(t)
		seedAccount(t, accounts, "acc-1", 1, 0)

		past := time.Now().Add(-time.Hour)
		if _, err := uc.CreateCardKey(ctx, "OLD-1", 10, 1, &past, "admin"); err != nil {
			t.Fatalf("CreateCardKey: %v", err)
		}
		if _, err := uc.RedeemCardKey(ctx, "OLD-1", "acc-1"); !errors.Is(err, domain.ErrCodeExpired) {
			t.Fatalf("err = %v", err)
		}
		if _, err := uc.RedeemCardKey(ctx, "NOPE", "acc-1"); !errors.Is(err, domain.ErrCodeNotFound) {
			t.Fatalf("err = %v", err)
		}
		if got := accounts.balance("acc-1"); got != 0 {
			t.Fatalf("balance = %d", got)
		}
	})
}

func TestLedger_CheckIn(t *testing.T) {
	ctx := context.Background()

	t.Run("pays once per day", func(t *testing.T) {
		uc, accounts, _ := newLedgerFixture(t)
		seedAccount(t, accounts, "acc-1", 1, 0)

		bonus, err := uc.CheckIn(ctx, "acc-1")
		if err != nil {
			t.Fatalf("CheckIn: %v", err)
		}
		if bonus != 1 || accounts.balance("acc-1") != 1 {
			t.Fatalf("bonus=%d balance=%d", bonus, accounts.balance("acc-1"))
		}

		if _, err := uc.CheckIn(ctx, "acc-1"); !errors.Is(err, domain.ErrAlreadyCheckedIn) {
			t.Fatalf("second check-in err = %v", err)
		}
		if got := accounts.balance("acc-1"); got != 1 {
			t.Fatalf("balance = %d after rejected check-in", got)
		}
	})

	t.Run("pays once under concurrency", func(t *testing.T) {
		uc, accounts, _ := newLedgerFixture(t)
		seedAccount(t, accounts, "acc-1", 1, 0)

		const workers = 8
		var wg sync.WaitGroup
		errs := make([]error, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = uc.CheckIn(ctx, "acc-1")
			}(i)
		}
		wg.Wait()

		var ok, dup int
		for _, err := range errs {
			switch {
			case err == nil:
				ok++
			case errors.Is(err, domain.ErrAlreadyCheckedIn):
				dup++
			default:
				t.Fatalf("unexpected error: %v", err)
			}
		}
		if ok != 1 || dup != workers-1 {
			t.Fatalf("ok=%d dup=%d", ok, dup)
		}
		if got := accounts.balance("acc-1"); got != 1 {
			t.Fatalf("balance = %d, want exactly one bonus", got)
		}
	})
}

func TestLedger_DebitAndCredit(t *testing.T) {
	uc, accounts, _ := newLedgerFixture(t)
	ctx := context.Background()
	seedAccount(t, accounts, "acc-1", 1, 4)

	if err := uc.Debit(ctx, "acc-1", 5, "verify"); !errors.Is(err, domain.ErrInsufficientCredits) {
		t.Fatalf("err = %v", err)
	}
	if got := accounts.balance("acc-1"); got != 4 {
		t.Fatalf("balance touched on rejected debit: %d", got)
	}

	if err := uc.Credit(ctx, "acc-1", 6, "admin"); err != nil {
		t.Fatalf("Credit: %v", err)
	}
	if err := uc.Debit(ctx, "acc-1", 5, "verify"); err != nil {
		t.Fatalf("Debit: %v", err)
	}
	if got := accounts.balance("acc-1"); got != 5 {
		t.Fatalf("balance = %d", got)
	}

	if err := uc.Debit(ctx, "acc-1", 0, "verify"); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("zero debit err = %v", err)
	}
}
