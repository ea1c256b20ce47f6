package acquire

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/l0nax/go-spew/spew"
	"github.com/rs/zerolog"

	"github.com/yunginnanet/ftdi-ads1299/pkg/ads1299"
	"github.com/yunginnanet/ftdi-ads1299/pkg/drdy"
	"github.com/yunginnanet/ftdi-ads1299/pkg/filter"
)

var pprint = spew.ConfigState{
	Indent:   "\t",
	SortKeys: true,
	SpewKeys: true,
}

var errBus = errors.New("bus fault")

// fakeReader hands out frames built by next, or the errors queued in errs.
type fakeReader struct {
	mu    sync.Mutex
	size  int
	errs  []error
	next  func(seq int, buf []byte)
	reads int
}

func (f *fakeReader) FrameSize() int { return f.size }

func (f *fakeReader) ReadFrame(buf []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return err
		}
	}
	if f.next != nil {
		f.next(f.reads, buf)
	}
	f.reads++
	return nil
}

func zeroFrames(seq int, buf []byte) {
	for i := range buf {
		buf[i] = 0
	}
	buf[0] = 0xC0
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func testDecoder() ads1299.Decoder {
	return ads1299.Decoder{Channels: 4, Vref: 4.5, Gain: 24}
}

func startSession(t *testing.T, s *Session) (cancel func() error) {
	t.Helper()
	ctx, stop := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	return func() error {
		stop()
		select {
		case err := <-done:
			return err
		case <-time.After(2 * time.Second):
			t.Fatal("session did not stop")
			return nil
		}
	}
}

func TestNewSession(t *testing.T) {
	dec := testDecoder()
	sink := SinkFunc(func(Sample) {})

	if _, err := NewSession(Config{Decoder: dec, Sink: sink}); err == nil {
		t.Error("expected error for nil device")
	}
	if _, err := NewSession(Config{Device: &fakeReader{size: 15}, Decoder: dec}); err == nil {
		t.Error("expected error for nil sink")
	}
	if _, err := NewSession(Config{Device: &fakeReader{size: 9}, Decoder: dec, Sink: sink}); err == nil {
		t.Error("expected error for frame size mismatch")
	}
	if _, err := NewSession(Config{Device: &fakeReader{size: 15}, Decoder: dec, Sink: sink, RingSize: 8}); err == nil {
		t.Error("expected error for a ring smaller than a frame")
	}

	s, err := NewSession(Config{Device: &fakeReader{size: 15}, Decoder: dec, Sink: sink, RingSize: 100})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.ring.Cap() != 128 {
		t.Errorf("expected ring rounded up to 128, got %d", s.ring.Cap())
	}
}

func TestZeroInputThroughBiquad(t *testing.T) {
	dec := testDecoder()
	design, err := filter.Bandpass(filter.KindBiquad, filter.Params{
		SampleRate:  250,
		HighpassHz:  0.5,
		LowpassHz:   30,
		BiquadOrder: 2,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sink := NewChanSink(1)
	s, err := NewSession(Config{
		Device:  &fakeReader{size: dec.FrameSize(), next: zeroFrames},
		Decoder: dec,
		Design:  design,
		Sink:    sink,
		Logger:  zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stop := startSession(t, s)

	const n = 250
	for i := 0; i < n; i++ {
		s.Gate().Signal()
		select {
		case smp := <-sink.C:
			if smp.Seq != uint64(i) {
				t.Fatalf("expected seq %d, got %d", i, smp.Seq)
			}
			if !smp.Status.Valid {
				t.Errorf("expected a valid status header")
			}
			for ch := range smp.Volts {
				if smp.Raw[ch] != 0 || smp.Volts[ch] != 0 {
					t.Fatalf("sample %d: expected 0 V on every channel, got %s", i, pprint.Sdump(smp))
				}
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("sample %d never arrived", i)
		}
	}

	if err := stop(); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if st := s.Stats(); st.Published != n || st.Dropped != 0 || st.BusErrors != 0 {
		t.Errorf("unexpected stats: %s", pprint.Sdump(st))
	}
}

func TestDropOnFullRing(t *testing.T) {
	dec := testDecoder()

	got := make(chan uint64, 4)
	release := make(chan struct{})
	sink := SinkFunc(func(smp Sample) {
		got <- smp.Seq
		<-release
	})

	// 16 bytes holds exactly one 15 byte frame
	s, err := NewSession(Config{
		Device:   &fakeReader{size: dec.FrameSize(), next: zeroFrames},
		Decoder:  dec,
		Sink:     sink,
		RingSize: 16,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stop := startSession(t, s)

	s.Gate().Signal()
	<-got // first frame is now held by the sink

	s.Gate().Signal()
	eventually(t, "second frame queued", func() bool { return s.Stats().Frames == 2 })

	s.Gate().Signal()
	eventually(t, "third frame dropped", func() bool { return s.Stats().Dropped == 1 })

	close(release)
	eventually(t, "queued frame published", func() bool { return s.Stats().Published == 2 })

	_ = stop()
	st := s.Stats()
	if st.Frames != 2 || st.Dropped != 1 {
		t.Errorf("unexpected stats: %s", pprint.Sdump(st))
	}
}

func TestBusErrorSkipsFrame(t *testing.T) {
	dec := testDecoder()
	sink := NewChanSink(8)
	s, err := NewSession(Config{
		Device:  &fakeReader{size: dec.FrameSize(), next: zeroFrames, errs: []error{errBus}},
		Decoder: dec,
		Sink:    sink,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stop := startSession(t, s)

	s.Gate().Signal()
	eventually(t, "bus error counted", func() bool { return s.Stats().BusErrors == 1 })
	s.Gate().Signal()
	eventually(t, "next frame published", func() bool { return s.Stats().Published == 1 })

	if err := stop(); !errors.Is(err, context.Canceled) {
		t.Errorf("expected streaming to continue past a bus error, got %v", err)
	}
}

func TestNotStreamingEndsRun(t *testing.T) {
	dec := testDecoder()
	s, err := NewSession(Config{
		Device:  &fakeReader{size: dec.FrameSize(), errs: []error{ads1299.ErrNotStreaming}},
		Decoder: dec,
		Sink:    SinkFunc(func(Sample) {}),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.Gate().Signal()
	if err := s.Run(context.Background()); !errors.Is(err, ads1299.ErrNotStreaming) {
		t.Errorf("expected ErrNotStreaming, got %v", err)
	}
	defer func() {
		if recover() == nil {
			t.Error("expected a second Run to panic")
		}
	}()
	_ = s.Run(context.Background())
}

type tickEdges struct {
	n int
}

func (e *tickEdges) WaitFalling(timeout time.Duration) (bool, error) {
	time.Sleep(time.Millisecond)
	e.n++
	return e.n%2 == 0, nil
}

func TestEdgeSourceDrivesSession(t *testing.T) {
	dec := testDecoder()
	sink := NewChanSink(1024)
	s, err := NewSession(Config{
		Device:      &fakeReader{size: dec.FrameSize(), next: zeroFrames},
		Decoder:     dec,
		Sink:        sink,
		Edges:       &tickEdges{},
		EdgeTimeout: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stop := startSession(t, s)
	eventually(t, "edges to produce samples", func() bool { return s.Stats().Published >= 5 })
	_ = stop()
}

type brokenEdges struct{}

func (brokenEdges) WaitFalling(time.Duration) (bool, error) {
	return false, errors.New("gpio line lost")
}

func TestEdgeFailureEndsRun(t *testing.T) {
	dec := testDecoder()
	s, err := NewSession(Config{
		Device:  &fakeReader{size: dec.FrameSize(), next: zeroFrames},
		Decoder: dec,
		Sink:    SinkFunc(func(Sample) {}),
		Edges:   brokenEdges{},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()

	select {
	case err := <-done:
		if !errors.Is(err, drdy.ErrEdgeSource) {
			t.Errorf("expected ErrEdgeSource, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop the acquisition and processing loops after the edge source failed")
	}
}
