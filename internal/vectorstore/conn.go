package vectorstore

import (
	"context"
	"fmt"
)

// readyGate runs a backend's connection setup once, in the background, and
// lets every operation wait for the outcome.
type readyGate struct {
	done chan struct{}
	err  error
}

// startGate launches init immediately. Callers share its single result.
func startGate(init func() error) *readyGate {
	g := &readyGate{done: make(chan struct{})}
	go func() {
		defer close(g.done)
		g.err = init()
	}()
	return g
}

// wait blocks until initialization settles or ctx is done.
func (g *readyGate) wait(ctx context.Context) error {
	select {
	case <-g.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	if g.err != nil {
		return fmt.Errorf("%w: %v", ErrNotInitialized, g.err)
	}
	return nil
}
