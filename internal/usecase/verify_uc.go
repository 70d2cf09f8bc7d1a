package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"telegram-verification-bot/internal/config"
	"telegram-verification-bot/internal/domain"
	"telegram-verification-bot/internal/domain/model"
	"telegram-verification-bot/internal/domain/ports/adapter"
	"telegram-verification-bot/internal/domain/ports/repository"
	"telegram-verification-bot/internal/infra/governor"
	"telegram-verification-bot/internal/infra/logging"
	"telegram-verification-bot/internal/infra/metrics"
	"telegram-verification-bot/internal/infra/redis"

	"github.com/rs/zerolog"
)

// AttemptPoller waits out asynchronously-approved verifications and answers
// free status queries.
type AttemptPoller interface {
	adapter.StatusSource
	Await(ctx context.Context, verificationID string) (*model.StatusResult, error)
}

// RateLimiter bounds attempts per key inside a rolling window.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// PermitSource hands out in-flight permits per provider.
type PermitSource interface {
	Acquire(ctx context.Context, tag model.ProviderTag) (*governor.Permit, error)
}

// VerifyUseCase drives one verification attempt end to end: reference
// parsing, admission control, the debit/refund bracket around the provider
// workflow, and the attempt record.
type VerifyUseCase interface {
	Request(ctx context.Context, chatID int64, tag model.ProviderTag, reference string) (*model.Outcome, error)
	LookupStatus(ctx context.Context, externalID string) (*model.Outcome, error)
	ListAttempts(ctx context.Context, accountID string, limit int) ([]*model.VerificationAttempt, error)
}

type verifyUC struct {
	accounts  repository.AccountRepository
	attempts  repository.VerificationRepository
	ledger    LedgerUseCase
	providers map[model.ProviderTag]adapter.ProviderClient
	permits   PermitSource
	poller    AttemptPoller
	limiter   RateLimiter
	cfg       config.VerifyConfig
	log       *zerolog.Logger
}

func NewVerifyUseCase(
	accounts repository.AccountRepository,
	attempts repository.VerificationRepository,
	ledger LedgerUseCase,
	providers map[model.ProviderTag]adapter.ProviderClient,
	permits PermitSource,
	poller AttemptPoller,
	limiter RateLimiter,
	cfg config.VerifyConfig,
	logger *zerolog.Logger,
) *verifyUC {
	return &verifyUC{
		accounts:  accounts,
		attempts:  attempts,
		ledger:    ledger,
		providers: providers,
		permits:   permits,
		poller:    poller,
		limiter:   limiter,
		cfg:       cfg,
		log:       logger,
	}
}

// Request runs one attempt. Every return path yields a typed outcome; the
// only error returns are programming mistakes such as an unknown provider
// tag. The cost is debited after reference parsing and admission control,
// and refunded on any terminal failure of the paid workflow. A successful or
// pending-approval workflow keeps the charge.
func (u *verifyUC) Request(ctx context.Context, chatID int64, tag model.ProviderTag, reference string) (*model.Outcome, error) {
	client, ok := u.providers[tag]
	if !ok {
		return nil, fmt.Errorf("%w: unknown provider %q", domain.ErrInvalidArgument, tag)
	}

	account, err := u.accounts.FindByChatID(ctx, repository.NoTX, chatID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return &model.Outcome{Status: model.OutcomeUnregistered}, nil
		}
		return nil, err
	}
	if account.Blocked {
		metrics.IncAttempt(string(tag), string(model.OutcomeAccountBlocked))
		return &model.Outcome{Status: model.OutcomeAccountBlocked}, nil
	}

	ctx = logging.WithAccountID(ctx, account.ID)
	ctx = logging.WithProvider(ctx, string(tag))
	log := logging.With(ctx, u.log)

	// Parsing is free; a bad reference never reaches the debit.
	ref, err := client.ParseReference(strings.TrimSpace(reference))
	if err != nil {
		var refErr *domain.ReferenceError
		if errors.As(err, &refErr) {
			metrics.IncAttempt(string(tag), string(model.OutcomeInvalidReference))
			return &model.Outcome{Status: model.OutcomeInvalidReference, Reason: refErr.Error()}, nil
		}
		return nil, err
	}

	allowed, err := u.limiter.Allow(ctx, redis.AttemptKey(account.ID, string(tag)), u.cfg.RateLimit, u.cfg.RateWindow)
	if err != nil {
		// A broken limiter must not take verification down with it.
		log.Warn().Err(err).Msg("rate limiter unavailable, admitting")
	} else if !allowed {
		metrics.IncAttempt(string(tag), string(model.OutcomeRateLimited))
		return &model.Outcome{Status: model.OutcomeRateLimited}, nil
	}

	if err := u.ledger.Debit(ctx, account.ID, u.cfg.Cost, "verify"); err != nil {
		if errors.Is(err, domain.ErrInsufficientCredits) {
			balance := account.Balance
			if fresh, ferr := u.accounts.FindByID(ctx, repository.NoTX, account.ID); ferr == nil {
				balance = fresh.Balance
			}
			metrics.IncAttempt(string(tag), string(model.OutcomeInsufficientFunds))
			return &model.Outcome{Status: model.OutcomeInsufficientFunds, Balance: balance}, nil
		}
		return nil, err
	}

	attempt := model.NewAttempt(account.ID, tag, reference)
	attempt.ExternalID = ref.ID
	ctx = logging.WithAttemptID(ctx, attempt.ID)
	log = logging.With(ctx, u.log)

	permit, err := u.permits.Acquire(ctx, tag)
	if err != nil {
		u.refund(ctx, account.ID)
		metrics.IncAttempt(string(tag), string(model.OutcomeFailed))
		return &model.Outcome{Status: model.OutcomeFailed, Reason: "verification queue unavailable"}, nil
	}
	defer permit.Release()

	// Once the account has paid, the workflow must run to a terminal state
	// even if the caller goes away, otherwise the debit could leak.
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), u.cfg.Timeout)
	defer cancel()

	start := time.Now()
	result, err := client.Run(runCtx, ref)
	metrics.ObserveWorkflow(string(tag), time.Since(start))

	if err != nil {
		reason := failureReason(err)
		log.Warn().Err(err).Msg("workflow failed")
		u.refund(runCtx, account.ID)
		attempt.Status = model.AttemptFailed
		attempt.Result = reason
		u.saveAttempt(runCtx, attempt, log)
		metrics.IncAttempt(string(tag), string(model.OutcomeFailed))
		return &model.Outcome{Status: model.OutcomeFailed, Reason: reason}, nil
	}

	attempt.ExternalID = result.VerificationID
	if !result.Pending {
		attempt.Status = model.AttemptSuccess
		attempt.Result = result.RewardCode
		u.saveAttempt(runCtx, attempt, log)
		metrics.IncAttempt(string(tag), string(model.OutcomeSuccess))
		log.Info().Msg("verification succeeded")
		return &model.Outcome{
			Status:      model.OutcomeSuccess,
			RewardCode:  result.RewardCode,
			RedirectURL: result.RedirectURL,
			ExternalID:  result.VerificationID,
		}, nil
	}

	// Asynchronous approval: the submission is already paid for, so the
	// record lands as pending before any waiting starts.
	attempt.Status = model.AttemptPending
	u.saveAttempt(runCtx, attempt, log)

	status, err := u.poller.Await(runCtx, result.VerificationID)
	if err != nil {
		log.Warn().Err(err).Msg("await aborted, attempt stays pending")
		return u.pendingOutcome(tag, result.VerificationID), nil
	}
	switch {
	case status.Success():
		u.updateAttempt(runCtx, attempt.ID, model.AttemptSuccess, status.RewardCode, log)
		metrics.IncAttempt(string(tag), string(model.OutcomeSuccess))
		return &model.Outcome{
			Status:      model.OutcomeSuccess,
			RewardCode:  status.RewardCode,
			RedirectURL: status.RedirectURL,
			ExternalID:  result.VerificationID,
		}, nil
	case status.Failed():
		// The submission itself was accepted, so the charge stands.
		reason := strings.Join(status.ErrorIDs, ", ")
		u.updateAttempt(runCtx, attempt.ID, model.AttemptFailed, reason, log)
		metrics.IncAttempt(string(tag), string(model.OutcomeFailed))
		return &model.Outcome{Status: model.OutcomeFailed, Reason: reason, ExternalID: result.VerificationID}, nil
	default:
		return u.pendingOutcome(tag, result.VerificationID), nil
	}
}

// LookupStatus answers a free re-check for an earlier attempt and folds a
// terminal answer back into the stored record.
func (u *verifyUC) LookupStatus(ctx context.Context, externalID string) (*model.Outcome, error) {
	status, err := u.poller.Lookup(ctx, externalID)
	if err != nil {
		return nil, err
	}

	attempt, aerr := u.attempts.FindByExternalID(ctx, repository.NoTX, externalID)
	if aerr != nil && !errors.Is(aerr, domain.ErrNotFound) {
		u.log.Warn().Err(aerr).Str("external_id", externalID).Msg("attempt lookup failed")
	}

	switch {
	case status.Success():
		if attempt != nil && attempt.Status == model.AttemptPending {
			u.updateAttempt(ctx, attempt.ID, model.AttemptSuccess, status.RewardCode, u.log)
		}
		return &model.Outcome{
			Status:      model.OutcomeSuccess,
			RewardCode:  status.RewardCode,
			RedirectURL: status.RedirectURL,
			ExternalID:  externalID,
		}, nil
	case status.Failed():
		if attempt != nil && attempt.Status == model.AttemptPending {
			u.updateAttempt(ctx, attempt.ID, model.AttemptFailed, strings.Join(status.ErrorIDs, ", "), u.log)
		}
		return &model.Outcome{
			Status:     model.OutcomeFailed,
			Reason:     strings.Join(status.ErrorIDs, ", "),
			ExternalID: externalID,
		}, nil
	case status.InProgress():
		return &model.Outcome{Status: model.OutcomePending, ExternalID: externalID, Reason: status.Step}, nil
	default:
		// A step outside the known workflow set: report it verbatim rather
		// than pretending the attempt is still moving.
		u.log.Warn().Str("external_id", externalID).Str("step", status.Step).Msg("unrecognized provider step")
		return &model.Outcome{Status: model.OutcomeUnknownStatus, ExternalID: externalID, Reason: status.Step}, nil
	}
}

func (u *verifyUC) ListAttempts(ctx context.Context, accountID string, limit int) ([]*model.VerificationAttempt, error) {
	return u.attempts.ListByAccount(ctx, repository.NoTX, accountID, limit)
}

func (u *verifyUC) pendingOutcome(tag model.ProviderTag, externalID string) *model.Outcome {
	metrics.IncAttempt(string(tag), string(model.OutcomePending))
	return &model.Outcome{Status: model.OutcomePending, ExternalID: externalID}
}

func (u *verifyUC) refund(ctx context.Context, accountID string) {
	if err := u.ledger.Credit(ctx, accountID, u.cfg.Cost, "refund"); err != nil {
		// A lost refund is worth an operator's attention.
		u.log.Error().Err(err).Str("account_id", accountID).Int("amount", u.cfg.Cost).Msg("refund failed")
	}
}

func (u *verifyUC) saveAttempt(ctx context.Context, a *model.VerificationAttempt, log *zerolog.Logger) {
	if err := u.attempts.Save(ctx, repository.NoTX, a); err != nil {
		log.Error().Err(err).Msg("attempt record save failed")
	}
}

func (u *verifyUC) updateAttempt(ctx context.Context, id string, status model.AttemptStatus, result string, log *zerolog.Logger) {
	if err := u.attempts.UpdateStatus(ctx, repository.NoTX, id, status, result); err != nil {
		log.Error().Err(err).Msg("attempt record update failed")
	}
}

// failureReason renders a user-facing reason. Typed workflow errors carry
// safe, provider-scoped detail; anything else stays opaque.
func failureReason(err error) string {
	var stepErr *domain.StepError
	if errors.As(err, &stepErr) {
		return stepErr.Error()
	}
	var upErr *domain.UploadError
	if errors.As(err, &upErr) {
		return upErr.Error()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "verification timed out"
	}
	return "verification failed"
}
