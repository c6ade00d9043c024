// Package dbtest provides an in-memory stand-in for db.TxRunner.
package dbtest

import (
	"context"
	"sync"
)

// Snapshotter is implemented by in-memory repositories. Snapshot captures
// the current state and returns a function that restores it.
type Snapshotter interface {
	Snapshot() (restore func())
}

// TxRunner serializes units of work and rolls registered stores back when
// fn fails, mirroring a database transaction.
type TxRunner struct {
	mu     sync.Mutex
	Stores []Snapshotter
	Begun  int
	Rolled int
}

func NewTxRunner(stores ...Snapshotter) *TxRunner {
	return &TxRunner{Stores: stores}
}

func (r *TxRunner) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Begun++
	restores := make([]func(), 0, len(r.Stores))
	for _, s := range r.Stores {
		restores = append(restores, s.Snapshot())
	}
	if err := fn(ctx); err != nil {
		for _, restore := range restores {
			restore()
		}
		r.Rolled++
		return err
	}
	return nil
}
