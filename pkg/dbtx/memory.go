package dbtx

import (
	"context"
	"sync"
)

// MemRunner is a Runner for in-memory repositories. Transactions are
// serialized, and repositories register undo steps through OnRollback.
type MemRunner struct {
	mu sync.Mutex
}

func NewMemRunner() *MemRunner {
	return &MemRunner{}
}

type journal struct {
	undo []func()
}

type journalKey struct{}

func (r *MemRunner) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(journalKey{}).(*journal); ok {
		return fn(ctx)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	j := &journal{}
	committed := false
	defer func() {
		if !committed {
			j.rollback()
		}
	}()
	if err := fn(context.WithValue(ctx, journalKey{}, j)); err != nil {
		return err
	}
	committed = true
	return nil
}

func (j *journal) rollback() {
	for i := len(j.undo) - 1; i >= 0; i-- {
		j.undo[i]()
	}
}

// OnRollback registers undo to run if the in-memory transaction bound to ctx
// fails. Outside a transaction it does nothing.
func OnRollback(ctx context.Context, undo func()) {
	if j, ok := ctx.Value(journalKey{}).(*journal); ok {
		j.undo = append(j.undo, undo)
	}
}
