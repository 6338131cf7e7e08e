// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

// Package permit implements the admission control used by the infq dispatch
// loop: a counting pool of permits whose size may change at any time and whose
// blocking acquisition honors context cancellation.
package permit

import (
	"context"
	"sync/atomic"
)

// Pool is a counting permit pool. A negative limit means no limit, and a zero
// limit means no permit will be granted until the limit is raised.
//
// Pools must be created with [New].
type Pool struct {
	limit   limit
	held    atomic.Int64
	waiters waitQueue
}

// New creates a pool with the given limit.
func New(n int) *Pool {
	p := &Pool{}
	p.limit.store(n)
	return p
}

// SetLimit replaces the limit. Raising it wakes blocked calls to
// [Pool.Acquire]. Lowering it below the number of held permits does not
// revoke anything; new permits are granted once enough have been released.
func (p *Pool) SetLimit(n int) {
	p.limit.store(n)
}

// Limit returns the current limit.
func (p *Pool) Limit() int {
	n, _ := p.limit.load()
	return n
}

// Held returns the number of permits currently held.
func (p *Pool) Held() int {
	return int(p.held.Load())
}

// Waiting returns the number of registered waiters. Waiters that gave up but
// have not yet been purged by a release are included.
func (p *Pool) Waiting() int {
	return p.waiters.len()
}

// TryAcquire takes a permit if one is immediately available.
func (p *Pool) TryAcquire() bool {
	n, _ := p.limit.load()
	return p.incrementIfUnder(n)
}

// Acquire blocks until a permit is granted or ctx is done, in which case it
// returns ctx.Err() and holds nothing.
func (p *Pool) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.TryAcquire() {
		return nil
	}
	for {
		acquired, err := p.wait(ctx)
		if err != nil {
			return err
		}
		if acquired {
			return nil
		}
	}
}

func (p *Pool) wait(ctx context.Context) (bool, error) {
	w := p.waiters.add()
	defer w.close()

	// Check again after registering, in case a permit was released between
	// the last check and the registration.
	n, limitChangeCh := p.limit.load()
	if p.incrementIfUnder(n) {
		return true, nil
	}
	select {
	case <-w.done():
		return false, nil
	case <-limitChangeCh:
		return false, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Release returns a permit to the pool and wakes the next waiter if the pool
// dropped below its limit. Panics if no permit was held.
func (p *Pool) Release() {
	v := p.held.Add(-1)
	if v < 0 {
		panic("permit released but none were held")
	}
	n, _ := p.limit.load()
	if n < 0 || v < int64(n) {
		p.waiters.notify()
	}
}

func (p *Pool) incrementIfUnder(n int) bool {
	switch {
	case n < 0:
		p.held.Add(1)
		return true
	case n == 0:
		return false
	}
	// Tentatively increment and check against the limit. If over, back out
	// and try again only if another goroutine made room in the meantime.
	for p.held.Add(1) > int64(n) {
		if p.held.Add(-1) >= int64(n) {
			return false
		}
	}
	return true
}
