package sheerid

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"telegram-verification-bot/internal/config"
	"telegram-verification-bot/internal/domain/model"
	"telegram-verification-bot/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// StatusPoller watches asynchronously-approved verifications until they reach
// a terminal step or the wait budget runs out. Lookups are free and
// idempotent, so a poller deadline never costs the account anything.
type StatusPoller struct {
	c        *Client
	maxWait  time.Duration
	interval time.Duration
	log      *zerolog.Logger
}

func NewStatusPoller(c *Client, cfg config.PollerConfig, logger *zerolog.Logger) *StatusPoller {
	return &StatusPoller{
		c:        c,
		maxWait:  cfg.MaxWait,
		interval: cfg.Interval,
		log:      logger,
	}
}

// Lookup fetches the current state of one verification.
func (p *StatusPoller) Lookup(ctx context.Context, verificationID string) (*model.StatusResult, error) {
	resp, status, err := p.c.do(ctx, http.MethodGet, p.c.verificationURL(verificationID, ""), nil)
	if err != nil {
		metrics.IncPollLookup("error")
		return nil, err
	}
	if status != http.StatusOK {
		metrics.IncPollLookup("error")
		return nil, fmt.Errorf("status lookup: HTTP %d", status)
	}
	metrics.IncPollLookup(resp.CurrentStep)
	return &model.StatusResult{
		Step:        resp.CurrentStep,
		RewardCode:  resp.reward(),
		RedirectURL: resp.RedirectURL,
		ErrorIDs:    resp.ErrorIDs,
	}, nil
}

// Await polls at a fixed interval until the verification is terminal or the
// wait budget elapses. Transient lookup failures are retried on the next tick
// and do not shorten the budget. When the budget runs out the last known
// non-terminal state is reported as pending, never as an error.
func (p *StatusPoller) Await(ctx context.Context, verificationID string) (*model.StatusResult, error) {
	deadline := time.Now().Add(p.maxWait)
	log := p.log.With().Str("verification_id", verificationID).Logger()

	for {
		res, err := p.Lookup(ctx, verificationID)
		if err != nil {
			log.Warn().Err(err).Msg("status lookup failed, retrying")
		} else if res.Success() || res.Failed() {
			return res, nil
		} else {
			log.Debug().Str("step", res.Step).Msg("still pending")
		}

		if time.Until(deadline) < p.interval {
			return &model.StatusResult{Step: "pending"}, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(p.interval):
		}
	}
}
