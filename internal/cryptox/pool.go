package cryptox

import (
	"context"
	"runtime"

	"golang.org/x/sync/semaphore"
)

// PooledHasher bounds the number of concurrent hash computations so that a
// burst of logins cannot starve the rest of the process of CPU.
type PooledHasher struct {
	h   Hasher
	sem *semaphore.Weighted
}

// NewPooledHasher wraps h with a pool of workers slots; workers <= 0 means
// runtime.NumCPU().
func NewPooledHasher(h Hasher, workers int) *PooledHasher {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &PooledHasher{h: h, sem: semaphore.NewWeighted(int64(workers))}
}

// Hash waits for a free slot (or ctx) and hashes password.
func (p *PooledHasher) Hash(ctx context.Context, password string) (string, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer p.sem.Release(1)

	return p.h.Hash(password)
}

// Verify waits for a free slot (or ctx) and checks password against digest.
// The error is non-nil only when ctx ends before a slot frees up.
func (p *PooledHasher) Verify(ctx context.Context, password, digest string) (bool, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return false, err
	}
	defer p.sem.Release(1)

	return p.h.Verify(password, digest), nil
}
