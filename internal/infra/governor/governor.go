package governor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"telegram-verification-bot/internal/config"
	"telegram-verification-bot/internal/domain/model"
	"telegram-verification-bot/internal/infra/metrics"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

const (
	poolFloor   = 5
	poolCeiling = 50

	shrinkFactor = 0.7
	growFactor   = 1.2
)

// Governor bounds the number of simultaneous in-flight workflows per
// provider, so one provider's slowness cannot starve another's capacity.
// It is a required collaborator: callers construct it explicitly and pass it
// to whatever drives attempts; there is no degraded fallback mode.
type Governor struct {
	cfg     config.GovernorConfig
	sampler Sampler
	log     *zerolog.Logger

	mu    sync.Mutex
	base  int64
	pools map[model.ProviderTag]*pool
}

// pool holds the current semaphore for one provider. Retuning swaps the
// semaphore; permits issued against the old one release against the old one,
// so a retune can never revoke an in-flight permit.
type pool struct {
	mu       sync.Mutex
	sem      *semaphore.Weighted
	capacity int64
	inFlight atomic.Int64
}

// Permit is one concurrency slot, held for the duration of one attempt.
type Permit struct {
	release func()
	once    sync.Once
}

// Release frees the slot. Safe to call more than once.
func (p *Permit) Release() { p.once.Do(p.release) }

// New builds a governor with per-provider pools sized from host CPU count and
// memory, divided evenly across the known providers. sampler may be nil, in
// which case live host sampling is used.
func New(cfg config.GovernorConfig, sampler Sampler, logger *zerolog.Logger) *Governor {
	if sampler == nil {
		sampler = HostSampler
	}
	g := &Governor{
		cfg:     cfg,
		sampler: sampler,
		log:     logger,
		base:    baseCapacity(),
		pools:   make(map[model.ProviderTag]*pool),
	}
	per := clampCapacity(g.base / int64(len(model.KnownProviders)))
	for _, tag := range model.KnownProviders {
		g.pools[tag] = newPool(tag, per)
	}
	logger.Info().Int64("base", g.base).Int64("per_provider", per).Msg("governor pools sized")
	return g
}

func newPool(tag model.ProviderTag, capacity int64) *pool {
	metrics.SetPoolCapacity(string(tag), capacity)
	return &pool{sem: semaphore.NewWeighted(capacity), capacity: capacity}
}

func clampCapacity(n int64) int64 {
	if n < poolFloor {
		return poolFloor
	}
	if n > poolCeiling {
		return poolCeiling
	}
	return n
}

// Acquire blocks until a slot is free in the provider's pool, or ctx is done.
// Acquisition has no failure mode of its own; callers are bounded upstream.
func (g *Governor) Acquire(ctx context.Context, tag model.ProviderTag) (*Permit, error) {
	p := g.pool(tag)

	p.mu.Lock()
	sem := p.sem
	p.mu.Unlock()

	if err := sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	p.inFlight.Add(1)
	metrics.AddInFlight(string(tag), 1)
	return &Permit{release: func() {
		sem.Release(1)
		p.inFlight.Add(-1)
		metrics.AddInFlight(string(tag), -1)
	}}, nil
}

// pool returns the provider's pool, lazily creating a smaller default one for
// a tag outside the known set.
func (g *Governor) pool(tag model.ProviderTag) *pool {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.pools[tag]
	if !ok {
		capacity := clampCapacity(g.base / int64(2*len(model.KnownProviders)))
		p = newPool(tag, capacity)
		g.pools[tag] = p
		g.log.Info().Str("provider", string(tag)).Int64("capacity", capacity).Msg("created pool for unknown provider")
	}
	return p
}

// PoolStats is a snapshot of one pool for the ops API.
type PoolStats struct {
	Capacity int64 `json:"capacity"`
	InFlight int64 `json:"in_flight"`
}

func (g *Governor) Stats() map[model.ProviderTag]PoolStats {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(map[model.ProviderTag]PoolStats, len(g.pools))
	for tag, p := range g.pools {
		p.mu.Lock()
		capacity := p.capacity
		p.mu.Unlock()
		out[tag] = PoolStats{Capacity: capacity, InFlight: p.inFlight.Load()}
	}
	return out
}

// Run samples host load on the configured interval and retunes pool sizes
// until ctx is cancelled.
func (g *Governor) Run(ctx context.Context) {
	t := time.NewTicker(g.cfg.RetuneInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			g.retuneOnce(ctx)
		}
	}
}

func (g *Governor) retuneOnce(ctx context.Context) {
	sample, err := g.sampler(ctx)
	if err != nil {
		g.log.Warn().Err(err).Msg("host load sample failed")
		return
	}
	switch {
	case sample.CPUPercent > g.cfg.HighCPU || sample.MemoryPercent > g.cfg.HighMemory:
		g.Retune(shrinkFactor)
		metrics.IncRetune("shrink")
		g.log.Warn().
			Float64("cpu", sample.CPUPercent).
			Float64("mem", sample.MemoryPercent).
			Msg("host load high, shrinking pools")
	case sample.CPUPercent < g.cfg.LowCPU && sample.MemoryPercent < g.cfg.LowMemory:
		g.Retune(growFactor)
		metrics.IncRetune("grow")
		g.log.Info().
			Float64("cpu", sample.CPUPercent).
			Float64("mem", sample.MemoryPercent).
			Msg("host load low, growing pools")
	}
}

// Retune replaces every pool's capacity with multiplier x current, clamped to
// [0.5, 2.0] per call and to the pool floor/ceiling. Only subsequently issued
// permits see the new capacity.
func (g *Governor) Retune(multiplier float64) {
	if multiplier < 0.5 {
		multiplier = 0.5
	}
	if multiplier > 2.0 {
		multiplier = 2.0
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	for tag, p := range g.pools {
		p.mu.Lock()
		newCap := clampCapacity(int64(float64(p.capacity) * multiplier))
		if newCap != p.capacity {
			p.capacity = newCap
			p.sem = semaphore.NewWeighted(newCap)
			metrics.SetPoolCapacity(string(tag), newCap)
		}
		p.mu.Unlock()
	}
}
