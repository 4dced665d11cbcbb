package services

import (
	"context"
	"database/sql"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/linkkeeper/internal/common"
	"github.com/dmitrijs2005/linkkeeper/internal/cryptox"
	"github.com/dmitrijs2005/linkkeeper/internal/dbx"
	"github.com/dmitrijs2005/linkkeeper/internal/server/models"
	"github.com/dmitrijs2005/linkkeeper/internal/server/repositories/accounts"
)

// fakeAccountsRepo is an in-memory accounts.Repository. Setting failErr
// makes every call fail with it.
type fakeAccountsRepo struct {
	mu      sync.Mutex
	nextID  int64
	byID    map[string]*models.Account
	tokens  map[string]map[string]string
	failErr error
}

func newFakeAccountsRepo() *fakeAccountsRepo {
	return &fakeAccountsRepo{
		byID:   map[string]*models.Account{},
		tokens: map[string]map[string]string{},
	}
}

func (f *fakeAccountsRepo) Create(_ context.Context, identity, hash string) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return nil, f.failErr
	}
	if _, ok := f.byID[identity]; ok {
		return nil, common.ErrorConflict
	}
	f.nextID++
	a := &models.Account{ID: f.nextID, Identity: identity, PasswordHash: hash, CreatedAt: time.Now()}
	f.byID[identity] = a
	f.tokens[identity] = map[string]string{}
	cp := *a
	return &cp, nil
}

func (f *fakeAccountsRepo) GetByIdentity(_ context.Context, identity string) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return nil, f.failErr
	}
	a, ok := f.byID[identity]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeAccountsRepo) UpdatePasswordHash(_ context.Context, identity, previous, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return f.failErr
	}
	a, ok := f.byID[identity]
	if !ok || a.PasswordHash != previous {
		return common.ErrorNotFound
	}
	a.PasswordHash = hash
	return nil
}

func (f *fakeAccountsRepo) SetLinkedToken(_ context.Context, identity, platform, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return f.failErr
	}
	t, ok := f.tokens[identity]
	if !ok {
		return common.ErrorNotFound
	}
	t[platform] = token
	return nil
}

func (f *fakeAccountsRepo) GetLinkedToken(_ context.Context, identity, platform string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return "", f.failErr
	}
	tok, ok := f.tokens[identity][platform]
	if !ok {
		return "", common.ErrorNotFound
	}
	return tok, nil
}

func (f *fakeAccountsRepo) DeleteLinkedToken(_ context.Context, identity, platform string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return f.failErr
	}
	t, ok := f.tokens[identity]
	if !ok {
		return common.ErrorNotFound
	}
	delete(t, platform)
	return nil
}

func (f *fakeAccountsRepo) ListLinkedTokens(_ context.Context, identity string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return nil, f.failErr
	}
	t, ok := f.tokens[identity]
	if !ok {
		return nil, common.ErrorNotFound
	}
	out := make(map[string]string, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out, nil
}

func (f *fakeAccountsRepo) ListLinkedStatus(_ context.Context, identity string, platforms []string) (map[string]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return nil, f.failErr
	}
	t, ok := f.tokens[identity]
	if !ok {
		return nil, common.ErrorNotFound
	}
	out := make(map[string]bool, len(platforms))
	for _, p := range platforms {
		_, out[p] = t[p]
	}
	return out, nil
}

type fakeRepoManager struct {
	a accounts.Repository
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Accounts(dbx.DBTX) accounts.Repository        { return m.a }

// countingHasher wraps a real hasher and counts calls.
type countingHasher struct {
	inner    *cryptox.PooledHasher
	hashes   atomic.Int32
	verifies atomic.Int32
	failErr  error

	beforeHash func()
}

func (h *countingHasher) Hash(ctx context.Context, pw string) (string, error) {
	h.hashes.Add(1)
	if h.beforeHash != nil {
		h.beforeHash()
	}
	if h.failErr != nil {
		return "", h.failErr
	}
	return h.inner.Hash(ctx, pw)
}

func (h *countingHasher) Verify(ctx context.Context, pw, digest string) (bool, error) {
	h.verifies.Add(1)
	if h.failErr != nil {
		return false, h.failErr
	}
	return h.inner.Verify(ctx, pw, digest)
}
