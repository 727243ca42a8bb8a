// Package workpool bounds CPU-heavy work so password hashing, MIME
// sniffing, and archive compression never monopolize request-serving
// goroutines.
package workpool

import (
	"context"
	"runtime"

	"golang.org/x/sync/semaphore"
)

// Pool is a semaphore-bounded executor.
type Pool struct {
	sem *semaphore.Weighted
}

// New creates a pool with the given number of slots. size <= 0 defaults
// to GOMAXPROCS.
func New(size int) *Pool {
	if size <= 0 {
		size = runtime.GOMAXPROCS(0)
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size))}
}

// Do runs fn once a slot is free and returns its error. It blocks the
// caller (respecting ctx) only while the pool is saturated.
func (p *Pool) Do(ctx context.Context, fn func() error) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.sem.Release(1)
	return fn()
}
