//go:build !integration

package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"telegram-verification-bot/internal/domain"
	"telegram-verification-bot/internal/domain/model"
	"telegram-verification-bot/internal/domain/ports/repository"

	"github.com/jackc/pgx/v4"
)

// mockTxManager serializes transactions with one mutex, which also stands in
// for the row lock the real store takes on a card key.
type mockTxManager struct{ mu sync.Mutex }

func (m *mockTxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(ctx, repository.NoTX)
}

type mockAccountRepo struct {
	mu   sync.Mutex
	byID map[string]*model.Account

	DebitFunc  func(id string, amount int) error
	CreditFunc func(id string, amount int) error
}

func newMockAccountRepo() *mockAccountRepo {
	return &mockAccountRepo{byID: make(map[string]*model.Account)}
}

func (m *mockAccountRepo) Save(_ context.Context, _ repository.Tx, a *model.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.byID[a.ID] = &cp
	return nil
}

func (m *mockAccountRepo) FindByID(_ context.Context, _ repository.Tx, id string) (*model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *mockAccountRepo) FindByChatID(_ context.Context, _ repository.Tx, chatID int64) (*model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.byID {
		if a.ChatID == chatID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockAccountRepo) Debit(_ context.Context, _ repository.Tx, id string, amount int) error {
	if m.DebitFunc != nil {
		return m.DebitFunc(id, amount)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	if a.Balance < amount {
		return domain.ErrInsufficientCredits
	}
	a.Balance -= amount
	return nil
}

func (m *mockAccountRepo) Credit(_ context.Context, _ repository.Tx, id string, amount int) error {
	if m.CreditFunc != nil {
		return m.CreditFunc(id, amount)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	a.Balance += amount
	return nil
}

func (m *mockAccountRepo) SetBlocked(_ context.Context, _ repository.Tx, id string, blocked bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	a.Blocked = blocked
	return nil
}

func (m *mockAccountRepo) ListBlocked(_ context.Context, _ repository.Tx) ([]*model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Account
	for _, a := range m.byID {
		if a.Blocked {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockAccountRepo) MarkCheckin(_ context.Context, _ repository.Tx, id string, day time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	y, mo, d := day.Date()
	if a.LastCheckin != nil {
		ly, lmo, ld := a.LastCheckin.Date()
		if ly == y && lmo == mo && ld == d {
			return domain.ErrAlreadyCheckedIn
		}
	}
	t := day
	a.LastCheckin = &t
	return nil
}

func (m *mockAccountRepo) balance(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byID[id].Balance
}

type mockCardKeyRepo struct {
	mu          sync.Mutex
	byID        map[string]*model.CardKey
	redemptions map[string]map[string]bool // keyID -> accountID
}

func newMockCardKeyRepo() *mockCardKeyRepo {
	return &mockCardKeyRepo{
		byID:        make(map[string]*model.CardKey),
		redemptions: make(map[string]map[string]bool),
	}
}

func (m *mockCardKeyRepo) Create(_ context.Context, _ repository.Tx, k *model.CardKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, cur := range m.byID {
		if cur.Code == k.Code {
			return domain.ErrAlreadyExists
		}
	}
	cp := *k
	m.byID[k.ID] = &cp
	return nil
}

func (m *mockCardKeyRepo) find(code string) (*model.CardKey, error) {
	for _, k := range m.byID {
		if k.Code == code {
			cp := *k
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockCardKeyRepo) FindByCode(_ context.Context, _ repository.Tx, code string) (*model.CardKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.find(code)
}

func (m *mockCardKeyRepo) FindByCodeForUpdate(_ context.Context, _ repository.Tx, code string) (*model.CardKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.find(code)
}

func (m *mockCardKeyRepo) ListAll(_ context.Context, _ repository.Tx) ([]*model.CardKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.CardKey, 0, len(m.byID))
	for _, k := range m.byID {
		cp := *k
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (m *mockCardKeyRepo) IncrementUses(_ context.Context, _ repository.Tx, keyID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, ok := m.byID[keyID]
	if !ok {
		return domain.ErrNotFound
	}
	if k.CurrentUses >= k.MaxUses {
		return domain.ErrCodeExhausted
	}
	k.CurrentUses++
	return nil
}

func (m *mockCardKeyRepo) InsertRedemption(_ context.Context, _ repository.Tx, keyID, accountID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.redemptions[keyID] == nil {
		m.redemptions[keyID] = make(map[string]bool)
	}
	if m.redemptions[keyID][accountID] {
		return domain.ErrCodeAlreadyUsed
	}
	m.redemptions[keyID][accountID] = true
	return nil
}

type mockAttemptRepo struct {
	mu   sync.Mutex
	byID map[string]*model.VerificationAttempt
}

func newMockAttemptRepo() *mockAttemptRepo {
	return &mockAttemptRepo{byID: make(map[string]*model.VerificationAttempt)}
}

func (m *mockAttemptRepo) Save(_ context.Context, _ repository.Tx, v *model.VerificationAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *v
	m.byID[v.ID] = &cp
	return nil
}

func (m *mockAttemptRepo) FindByExternalID(_ context.Context, _ repository.Tx, externalID string) (*model.VerificationAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.byID {
		if v.ExternalID == externalID {
			cp := *v
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockAttemptRepo) ListByAccount(_ context.Context, _ repository.Tx, accountID string, limit int) ([]*model.VerificationAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.VerificationAttempt
	for _, v := range m.byID {
		if v.AccountID == accountID {
			cp := *v
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockAttemptRepo) UpdateStatus(_ context.Context, _ repository.Tx, id string, status model.AttemptStatus, result string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	v.Status = status
	v.Result = result
	v.UpdatedAt = time.Now()
	return nil
}

func (m *mockAttemptRepo) only() *model.VerificationAttempt {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.byID {
		cp := *v
		return &cp
	}
	return nil
}

func (m *mockAttemptRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

type fakeProvider struct {
	tag       model.ProviderTag
	ParseFunc func(reference string) (model.ProviderRef, error)
	RunFunc   func(ctx context.Context, ref model.ProviderRef) (*model.WorkflowResult, error)
}

func (f *fakeProvider) Tag() model.ProviderTag { return f.tag }

func (f *fakeProvider) ParseReference(reference string) (model.ProviderRef, error) {
	if f.ParseFunc != nil {
		return f.ParseFunc(reference)
	}
	return model.ProviderRef{ID: "vid-" + reference}, nil
}

func (f *fakeProvider) Run(ctx context.Context, ref model.ProviderRef) (*model.WorkflowResult, error) {
	return f.RunFunc(ctx, ref)
}

type fakePoller struct {
	AwaitFunc  func(ctx context.Context, id string) (*model.StatusResult, error)
	LookupFunc func(ctx context.Context, id string) (*model.StatusResult, error)
}

func (f *fakePoller) Await(ctx context.Context, id string) (*model.StatusResult, error) {
	return f.AwaitFunc(ctx, id)
}

func (f *fakePoller) Lookup(ctx context.Context, id string) (*model.StatusResult, error) {
	return f.LookupFunc(ctx, id)
}

type fakeLimiter struct{ allow bool }

func (f *fakeLimiter) Allow(context.Context, string, int, time.Duration) (bool, error) {
	return f.allow, nil
}
