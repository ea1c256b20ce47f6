// Package drdy bridges the ADS1299 data-ready line to the acquisition loop.
//
// The device pulls DRDY low once per conversion. Each falling edge is turned
// into a Signal on a Gate, a binary semaphore that saturates at one: edges
// that arrive before the waiter has consumed the previous one are coalesced,
// never queued.
package drdy

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Gate is a saturating binary signal. Signal never blocks.
type Gate struct {
	ch chan struct{}

	signals   atomic.Uint64
	coalesced atomic.Uint64
}

// NewGate returns an empty gate.
func NewGate() *Gate {
	return &Gate{ch: make(chan struct{}, 1)}
}

// Signal marks the gate ready. If it is already ready the signal is merged.
func (g *Gate) Signal() {
	g.signals.Add(1)
	select {
	case g.ch <- struct{}{}:
	default:
		g.coalesced.Add(1)
	}
}

// Wait blocks until the gate is signalled or ctx is done, and consumes the
// signal.
func (g *Gate) Wait(ctx context.Context) error {
	select {
	case <-g.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryWait consumes a pending signal without blocking.
func (g *Gate) TryWait() bool {
	select {
	case <-g.ch:
		return true
	default:
		return false
	}
}

// C exposes the underlying channel for use in a select. Receiving from it
// consumes the signal.
func (g *Gate) C() <-chan struct{} {
	return g.ch
}

// Signals returns the total number of Signal calls.
func (g *Gate) Signals() uint64 {
	return g.signals.Load()
}

// Coalesced returns how many signals were merged into an already pending one.
func (g *Gate) Coalesced() uint64 {
	return g.coalesced.Load()
}

// EdgeSource reports falling edges on the data-ready line.
type EdgeSource interface {
	// WaitFalling blocks up to timeout for a high to low transition and
	// reports whether one was seen.
	WaitFalling(timeout time.Duration) (bool, error)
}

// ErrEdgeSource wraps failures of the underlying line.
var ErrEdgeSource = errors.New("drdy: edge source failed")

// DefaultEdgeTimeout bounds each WaitFalling call so Watch can observe
// cancellation.
const DefaultEdgeTimeout = 100 * time.Millisecond

// Watch forwards every falling edge from src to g until ctx is done. Timeouts
// are not errors; a failing src ends the watch.
func Watch(ctx context.Context, src EdgeSource, g *Gate, timeout time.Duration, log zerolog.Logger) error {
	if timeout <= 0 {
		timeout = DefaultEdgeTimeout
	}
	misses := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		edge, err := src.WaitFalling(timeout)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrEdgeSource, err)
		}
		if !edge {
			misses++
			if misses == 10 {
				log.Warn().Dur("waited", 10*timeout).Msg("no DRDY edges, is the device converting?")
			}
			continue
		}
		misses = 0
		g.Signal()
	}
}
