// Package cancel provides a small cancellation token used to short-circuit
// blocking loops (the execution walker, the subshell driver, the bufferfill
// fillthread) without treating cancellation as an error.
package cancel

import (
	"context"
	"sync"
)

// Canceller is a one-shot cancellation signal. Unlike context.Context it
// carries no deadline or value bag: every consumer in this repository only
// ever needs "has SIGINT (or an equivalent signal) arrived yet".
type Canceller struct {
	mu   sync.Mutex
	done chan struct{}
	err  error
}

// New returns a Canceller that has not yet been cancelled.
func New() *Canceller {
	return &Canceller{done: make(chan struct{})}
}

// Cancel marks the Canceller as cancelled. Safe to call multiple times and
// from multiple goroutines; only the first call has an effect.
func (c *Canceller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.done:
		return
	default:
	}

	c.err = context.Canceled
	close(c.done)
}

// Err returns context.Canceled once Cancel has been called, nil otherwise.
func (c *Canceller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.err
}

// Done returns a channel that is closed once Cancel has been called. Loops
// that can block on user-level progress select on this alongside their
// other wake sources.
func (c *Canceller) Done() <-chan struct{} {
	return c.done
}

// Cancelled is a convenience check equivalent to c.Err() != nil.
func (c *Canceller) Cancelled() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}
