// Package dbtest provides test doubles for the database package.
package dbtest

import (
	"context"
	"sync"
)

// Transactor runs fn in-process. When Snapshot is set it is called before
// fn, and the returned restore func is invoked if fn fails, so fakes can
// model rollback.
type Transactor struct {
	mu        sync.Mutex
	Snapshot  func() (restore func())
	Calls     int
	Rollbacks int
}

type depthKey struct{}

// WithinTx implements database.Transactor
func (t *Transactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(depthKey{}) != nil {
		return fn(ctx)
	}

	t.mu.Lock()
	t.Calls++
	t.mu.Unlock()

	var restore func()
	if t.Snapshot != nil {
		restore = t.Snapshot()
	}

	err := fn(context.WithValue(ctx, depthKey{}, true))
	if err != nil {
		t.mu.Lock()
		t.Rollbacks++
		t.mu.Unlock()
		if restore != nil {
			restore()
		}
	}
	return err
}
