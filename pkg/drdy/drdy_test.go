package drdy

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestGateSaturates(t *testing.T) {
	g := NewGate()
	for i := 0; i < 5; i++ {
		g.Signal()
	}
	if g.Signals() != 5 || g.Coalesced() != 4 {
		t.Errorf("expected 5 signals and 4 coalesced, got %d and %d", g.Signals(), g.Coalesced())
	}
	if !g.TryWait() {
		t.Fatal("expected a pending signal")
	}
	if g.TryWait() {
		t.Error("expected burst to collapse into a single wakeup")
	}
}

func TestGateWait(t *testing.T) {
	g := NewGate()

	t.Run("Cancelled", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		if err := g.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected deadline exceeded, got %v", err)
		}
	})

	t.Run("Signalled", func(t *testing.T) {
		go func() {
			time.Sleep(5 * time.Millisecond)
			g.Signal()
		}()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := g.Wait(ctx); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("Select", func(t *testing.T) {
		g.Signal()
		select {
		case <-g.C():
		default:
			t.Error("expected the channel to be ready")
		}
	})
}

type fakeEdges struct {
	mu    sync.Mutex
	edges []bool
	err   error
}

func (f *fakeEdges) WaitFalling(timeout time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.edges) == 0 {
		if f.err != nil {
			return false, f.err
		}
		time.Sleep(time.Millisecond)
		return false, nil
	}
	e := f.edges[0]
	f.edges = f.edges[1:]
	return e, nil
}

func TestWatch(t *testing.T) {
	t.Run("ForwardsEdges", func(t *testing.T) {
		src := &fakeEdges{edges: []bool{true, false, true, true}}
		g := NewGate()
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		err := Watch(ctx, src, g, time.Millisecond, zerolog.Nop())
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected deadline exceeded, got %v", err)
		}
		if g.Signals() != 3 {
			t.Errorf("expected 3 signals, got %d", g.Signals())
		}
	})

	t.Run("SourceError", func(t *testing.T) {
		boom := errors.New("line gone")
		src := &fakeEdges{edges: []bool{true}, err: boom}
		g := NewGate()
		err := Watch(context.Background(), src, g, time.Millisecond, zerolog.Nop())
		if !errors.Is(err, ErrEdgeSource) || !errors.Is(err, boom) {
			t.Errorf("expected wrapped source error, got %v", err)
		}
		if !g.TryWait() {
			t.Error("expected the edge before the failure to be delivered")
		}
	})
}
