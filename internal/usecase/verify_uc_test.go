//go:build !integration

package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"telegram-verification-bot/internal/config"
	"telegram-verification-bot/internal/domain"
	"telegram-verification-bot/internal/domain/model"
	"telegram-verification-bot/internal/domain/ports/adapter"
	"telegram-verification-bot/internal/infra/governor"

	"github.com/rs/zerolog"
)

const (
	testChatID  = int64(42)
	testCost    = 5
	testBalance = 10
)

type verifyFixture struct {
	uc       *verifyUC
	accounts *mockAccountRepo
	attempts *mockAttemptRepo
	account  *model.Account
	provider *fakeProvider
	poller   *fakePoller
}

func newVerifyFixture(t *testing.T) *verifyFixture {
	t.Helper()
	nop := zerolog.Nop()

	accounts := newMockAccountRepo()
	acc, err := model.NewAccount("acc-1", testChatID, "tester", nil)
	if err != nil {
		t.Fatalf("NewAccount: %v", err)
	}
	acc.Balance = testBalance
	if err := accounts.Save(context.Background(), nil, acc); err != nil {
		t.Fatalf("seed account: %v", err)
	}

	cfg := config.VerifyConfig{
		Cost:       testCost,
		RateLimit:  100,
		RateWindow: time.Minute,
		Timeout:    5 * time.Second,
	}
	ledger := NewLedgerUseCase(accounts, newMockCardKeyRepo(), &mockTxManager{}, cfg, &nop)

	gov := governor.New(config.GovernorConfig{}, func(context.Context) (governor.LoadSample, error) {
		return governor.LoadSample{CPUPercent: 50, MemoryPercent: 50}, nil
	}, &nop)

	provider := &fakeProvider{tag: model.ProviderChatGPTTeacherK12}
	poller := &fakePoller{
		AwaitFunc: func(context.Context, string) (*model.StatusResult, error) {
			return &model.StatusResult{Step: "pending"}, nil
		},
		LookupFunc: func(context.Context, string) (*model.StatusResult, error) {
			return &model.StatusResult{Step: "pending"}, nil
		},
	}
	attempts := newMockAttemptRepo()

	uc := NewVerifyUseCase(
		accounts,
		attempts,
		ledger,
		map[model.ProviderTag]adapter.ProviderClient{provider.tag: provider},
		gov,
		poller,
		&fakeLimiter{allow: true},
		cfg,
		&nop,
	)
	return &verifyFixture{uc: uc, accounts: accounts, attempts: attempts, account: acc, provider: provider, poller: poller}
}

func (f *verifyFixture) request(t *testing.T, reference string) *model.Outcome {
	t.Helper()
	out, err := f.uc.Request(context.Background(), testChatID, model.ProviderChatGPTTeacherK12, reference)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	return out
}

func TestVerifyRequest_Success(t *testing.T) {
	f := newVerifyFixture(t)
	f.provider.RunFunc = func(_ context.Context, ref model.ProviderRef) (*model.WorkflowResult, error) {
		return &model.WorkflowResult{VerificationID: ref.ID, RewardCode: "EDU-1"}, nil
	}

	out := f.request(t, "verificationId=aa11")

	if out.Status != model.OutcomeSuccess || out.RewardCode != "EDU-1" {
		t.Fatalf("outcome = %+v", out)
	}
	if got := f.accounts.balance("acc-1"); got != testBalance-testCost {
		t.Fatalf("balance = %d, want %d", got, testBalance-testCost)
	}
	rec := f.attempts.only()
	if rec == nil || rec.Status != model.AttemptSuccess || rec.Result != "EDU-1" {
		t.Fatalf("attempt record = %+v", rec)
	}
}

func TestVerifyRequest_FailureRefunds(t *testing.T) {
	f := newVerifyFixture(t)
	f.provider.RunFunc = func(context.Context, model.ProviderRef) (*model.WorkflowResult, error) {
		return nil, &domain.UploadError{FileName: "teacher_document.png", HTTPCode: 500}
	}

	out := f.request(t, "verificationId=aa11")

	if out.Status != model.OutcomeFailed {
		t.Fatalf("outcome = %+v", out)
	}
	if !strings.Contains(out.Reason, "upload") || !strings.Contains(out.Reason, "teacher_document.png") {
		t.Fatalf("reason = %q", out.Reason)
	}
	if got := f.accounts.balance("acc-1"); got != testBalance {
		t.Fatalf("balance = %d, want refund back to %d", got, testBalance)
	}
	rec := f.attempts.only()
	if rec == nil || rec.Status != model.AttemptFailed {
		t.Fatalf("attempt record = %+v", rec)
	}
}

func TestVerifyRequest_AsyncPendingKeepsCharge(t *testing.T) {
	f := newVerifyFixture(t)
	f.provider.RunFunc = func(_ context.Context, ref model.ProviderRef) (*model.WorkflowResult, error) {
		return &model.WorkflowResult{Pending: true, VerificationID: ref.ID}, nil
	}

	out := f.request(t, "verificationId=bb22")

	if out.Status != model.OutcomePending {
		t.Fatalf("outcome = %+v", out)
	}
	if got := f.accounts.balance("acc-1"); got != testBalance-testCost {
		t.Fatalf("balance = %d, pending approval must keep the charge", got)
	}
	rec := f.attempts.only()
	if rec == nil || rec.Status != model.AttemptPending {
		t.Fatalf("attempt record = %+v", rec)
	}

	// A later free lookup resolves the pending attempt without new charges.
	f.poller.LookupFunc = func(context.Context, string) (*model.StatusResult, error) {
		return &model.StatusResult{Step: "success", RewardCode: "BOLT-7"}, nil
	}
	res, err := f.uc.LookupStatus(context.Background(), rec.ExternalID)
	if err != nil {
		t.Fatalf("LookupStatus: %v", err)
	}
	if res.Status != model.OutcomeSuccess || res.RewardCode != "BOLT-7" {
		t.Fatalf("lookup outcome = %+v", res)
	}
	if got := f.accounts.balance("acc-1"); got != testBalance-testCost {
		t.Fatalf("balance changed on lookup: %d", got)
	}
	rec = f.attempts.only()
	if rec.Status != model.AttemptSuccess || rec.Result != "BOLT-7" {
		t.Fatalf("attempt after lookup = %+v", rec)
	}
}

func TestVerifyRequest_AsyncRejectionKeepsCharge(t *testing.T) {
	f := newVerifyFixture(t)
	f.provider.RunFunc = func(_ context.Context, ref model.ProviderRef) (*model.WorkflowResult, error) {
		return &model.WorkflowResult{Pending: true, VerificationID: ref.ID}, nil
	}
	f.poller.AwaitFunc = func(context.Context, string) (*model.StatusResult, error) {
		return &model.StatusResult{Step: "error", ErrorIDs: []string{"docRejected"}}, nil
	}

	out := f.request(t, "verificationId=cc33")

	if out.Status != model.OutcomeFailed || !strings.Contains(out.Reason, "docRejected") {
		t.Fatalf("outcome = %+v", out)
	}
	// The submission itself was accepted, so the charge stands.
	if got := f.accounts.balance("acc-1"); got != testBalance-testCost {
		t.Fatalf("balance = %d", got)
	}
}

func TestVerifyRequest_InvalidReferenceIsFree(t *testing.T) {
	f := newVerifyFixture(t)
	f.provider.ParseFunc = func(reference string) (model.ProviderRef, error) {
		return model.ProviderRef{}, &domain.ReferenceError{Reference: reference}
	}
	f.provider.RunFunc = func(context.Context, model.ProviderRef) (*model.WorkflowResult, error) {
		t.Fatal("workflow must not run on a bad reference")
		return nil, nil
	}

	out := f.request(t, "not-a-link")

	if out.Status != model.OutcomeInvalidReference {
		t.Fatalf("outcome = %+v", out)
	}
	if got := f.accounts.balance("acc-1"); got != testBalance {
		t.Fatalf("balance = %d, parsing must be free", got)
	}
	if f.attempts.count() != 0 {
		t.Fatal("no attempt record expected")
	}
}

func TestVerifyRequest_InsufficientFunds(t *testing.T) {
	f := newVerifyFixture(t)
	f.account.Balance = 3
	_ = f.accounts.Save(context.Background(), nil, f.account)
	f.provider.RunFunc = func(context.Context, model.ProviderRef) (*model.WorkflowResult, error) {
		t.Fatal("workflow must not run without funds")
		return nil, nil
	}

	out := f.request(t, "verificationId=dd44")

	if out.Status != model.OutcomeInsufficientFunds {
		t.Fatalf("outcome = %+v", out)
	}
	if out.Balance != 3 {
		t.Fatalf("reported balance = %d", out.Balance)
	}
	if f.attempts.count() != 0 {
		t.Fatal("no attempt record expected")
	}
}

func TestVerifyRequest_BlockedAndUnregistered(t *testing.T) {
	f := newVerifyFixture(t)

	t.Run("blocked", func(t *testing.T) {
		_ = f.accounts.SetBlocked(context.Background(), nil, "acc-1", true)
		out := f.request(t, "verificationId=ee55")
		if out.Status != model.OutcomeAccountBlocked {
			t.Fatalf("outcome = %+v", out)
		}
		_ = f.accounts.SetBlocked(context.Background(), nil, "acc-1", false)
	})

	t.Run("unregistered", func(t *testing.T) {
		out, err := f.uc.Request(context.Background(), 999, model.ProviderChatGPTTeacherK12, "verificationId=ff66")
		if err != nil {
			t.Fatalf("Request: %v", err)
		}
		if out.Status != model.OutcomeUnregistered {
			t.Fatalf("outcome = %+v", out)
		}
	})

	t.Run("unknown provider", func(t *testing.T) {
		_, err := f.uc.Request(context.Background(), testChatID, "no_such_provider", "x")
		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("err = %v", err)
		}
	})
}

func TestLookupStatus_UnrecognizedStep(t *testing.T) {
	f := newVerifyFixture(t)
	f.poller.LookupFunc = func(context.Context, string) (*model.StatusResult, error) {
		return &model.StatusResult{Step: "emailLoop"}, nil
	}

	out, err := f.uc.LookupStatus(context.Background(), "cc33")
	if err != nil {
		t.Fatalf("LookupStatus: %v", err)
	}
	if out.Status != model.OutcomeUnknownStatus {
		t.Fatalf("outcome = %+v, unrecognized steps must not read as pending", out)
	}
	if out.Reason != "emailLoop" {
		t.Fatalf("reason = %q, want the provider step verbatim", out.Reason)
	}

	// Steps inside the normal workflow still read as pending.
	f.poller.LookupFunc = func(context.Context, string) (*model.StatusResult, error) {
		return &model.StatusResult{Step: "docReview"}, nil
	}
	out, err = f.uc.LookupStatus(context.Background(), "cc33")
	if err != nil {
		t.Fatalf("LookupStatus: %v", err)
	}
	if out.Status != model.OutcomePending {
		t.Fatalf("outcome = %+v", out)
	}
}

func TestVerifyRequest_RateLimitedIsFree(t *testing.T) {
	f := newVerifyFixture(t)
	f.uc.limiter = &fakeLimiter{allow: false}
	f.provider.RunFunc = func(context.Context, model.ProviderRef) (*model.WorkflowResult, error) {
		t.Fatal("workflow must not run when rate limited")
		return nil, nil
	}

	out := f.request(t, "verificationId=aa77")

	if out.Status != model.OutcomeRateLimited {
		t.Fatalf("outcome = %+v", out)
	}
	if got := f.accounts.balance("acc-1"); got != testBalance {
		t.Fatalf("balance = %d, rate limiting must be free", got)
	}
	if f.attempts.count() != 0 {
		t.Fatal("no attempt record expected")
	}
}

func TestVerifyRequest_SurvivesCallerCancel(t *testing.T) {
	f := newVerifyFixture(t)
	ran := make(chan struct{})
	f.provider.RunFunc = func(ctx context.Context, ref model.ProviderRef) (*model.WorkflowResult, error) {
		select {
		case <-ctx.Done():
			t.Error("workflow context canceled with the caller")
		case <-time.After(20 * time.Millisecond):
		}
		close(ran)
		return &model.WorkflowResult{VerificationID: ref.ID, RewardCode: "X-1"}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()
	out, err := f.uc.Request(ctx, testChatID, model.ProviderChatGPTTeacherK12, "verificationId=ab99")
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	<-ran
	if out.Status != model.OutcomeSuccess {
		t.Fatalf("outcome = %+v", out)
	}
}
