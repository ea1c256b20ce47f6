// Package acquire runs the streaming pipeline: data-ready edges wake the
// acquisition goroutine, which reads frames off the bus into a ring buffer;
// the processing goroutine drains the ring, decodes, filters and publishes.
//
// The acquisition side never waits on the consumer. A full ring drops the
// frame and counts it.
package acquire

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/yunginnanet/ftdi-ads1299/pkg/ads1299"
	"github.com/yunginnanet/ftdi-ads1299/pkg/drdy"
	"github.com/yunginnanet/ftdi-ads1299/pkg/filter"
	"github.com/yunginnanet/ftdi-ads1299/pkg/ringbuf"
)

// FrameReader is the device side of a session. *ads1299.Device satisfies it.
type FrameReader interface {
	FrameSize() int
	ReadFrame(buf []byte) error
}

// DefaultRingFrames is the ring depth used when Config.RingSize is zero.
const DefaultRingFrames = 256

// Config wires a Session.
type Config struct {
	Device  FrameReader
	Decoder ads1299.Decoder
	Design  filter.Design // nil publishes unfiltered volts
	Sink    Sink

	// Edges drives the gate. When nil the caller signals Gate itself.
	// WaitFalling runs in its own goroutine alongside ReadFrame, so a
	// transport that serves both must serialize access to the bus.
	Edges       drdy.EdgeSource
	Gate        *drdy.Gate
	EdgeTimeout time.Duration

	// RingSize is the ring capacity in bytes, rounded up to a power of two.
	RingSize int

	Logger zerolog.Logger
}

// Stats are cumulative session counters.
type Stats struct {
	Frames    uint64 // frames read off the bus and queued
	Dropped   uint64 // frames lost to a full ring
	BusErrors uint64 // failed frame reads
	Published uint64 // samples handed to the sink
	Invalid   uint64 // frames with a bad status header, still published
	Coalesced uint64 // data-ready edges merged before they were serviced
}

// Session owns one streaming pipeline.
type Session struct {
	dev     FrameReader
	dec     ads1299.Decoder
	bank    *filter.Bank
	sink    Sink
	edges   drdy.EdgeSource
	gate    *drdy.Gate
	timeout time.Duration
	ring    *ringbuf.Ring
	data    *drdy.Gate // "frames available" signal to the processing side

	log     zerolog.Logger
	dropLog zerolog.Logger

	frames    atomic.Uint64
	busErrors atomic.Uint64
	published atomic.Uint64
	invalid   atomic.Uint64

	running atomic.Bool
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// NewSession validates cfg and allocates the ring and filter bank.
func NewSession(cfg Config) (*Session, error) {
	if cfg.Device == nil {
		return nil, errors.New("acquire: nil device")
	}
	if cfg.Sink == nil {
		return nil, errors.New("acquire: nil sink")
	}
	if cfg.Device.FrameSize() != cfg.Decoder.FrameSize() {
		return nil, fmt.Errorf("acquire: device frames are %d bytes, decoder expects %d",
			cfg.Device.FrameSize(), cfg.Decoder.FrameSize())
	}

	frame := cfg.Device.FrameSize()
	size := cfg.RingSize
	if size == 0 {
		size = DefaultRingFrames * frame
	}
	if size < frame {
		return nil, fmt.Errorf("acquire: ring of %d bytes cannot hold a %d byte frame", size, frame)
	}

	s := &Session{
		dev:     cfg.Device,
		dec:     cfg.Decoder,
		sink:    cfg.Sink,
		edges:   cfg.Edges,
		gate:    cfg.Gate,
		timeout: cfg.EdgeTimeout,
		ring:    ringbuf.New(nextPow2(size)),
		data:    drdy.NewGate(),
		log:     cfg.Logger,
	}
	if s.gate == nil {
		s.gate = drdy.NewGate()
	}
	if cfg.Design != nil {
		s.bank = filter.NewBank(cfg.Design, cfg.Decoder.Channels)
	}
	s.dropLog = s.log.Sample(&zerolog.BurstSampler{Burst: 5, Period: time.Second})
	return s, nil
}

// Gate returns the data-ready gate the acquisition goroutine waits on.
func (s *Session) Gate() *drdy.Gate {
	return s.gate
}

// Stats returns a snapshot of the counters.
func (s *Session) Stats() Stats {
	return Stats{
		Frames:    s.frames.Load(),
		Dropped:   s.ring.Dropped(),
		BusErrors: s.busErrors.Load(),
		Published: s.published.Load(),
		Invalid:   s.invalid.Load(),
		Coalesced: s.gate.Coalesced(),
	}
}

// Run streams until ctx is cancelled or the edge source or device fails.
// The device must already be streaming. A session runs once.
func (s *Session) Run(parent context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		panic("acquire: session already ran")
	}

	g, ctx := errgroup.WithContext(parent)

	if s.edges != nil {
		g.Go(func() error {
			return drdy.Watch(ctx, s.edges, s.gate, s.timeout, s.log)
		})
	}
	g.Go(func() error {
		return s.acquireLoop(ctx)
	})
	g.Go(func() error {
		return s.processLoop(ctx)
	})

	s.log.Info().Int("ring_bytes", s.ring.Cap()).Int("frame_bytes", s.dev.FrameSize()).Msg("acquisition started")
	err := g.Wait()

	st := s.Stats()
	s.log.Info().Uint64("frames", st.Frames).
		Uint64("dropped", st.Dropped).
		Uint64("bus_errors", st.BusErrors).
		Uint64("published", st.Published).
		Msg("acquisition stopped")

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return parent.Err()
}

// acquireLoop waits for data-ready, reads one frame and queues it.
func (s *Session) acquireLoop(ctx context.Context) error {
	buf := make([]byte, s.dev.FrameSize())
	for {
		if err := s.gate.Wait(ctx); err != nil {
			return err
		}

		if err := s.dev.ReadFrame(buf); err != nil {
			if errors.Is(err, ads1299.ErrNotStreaming) {
				return err
			}
			s.busErrors.Add(1)
			s.log.Error().Err(err).Msg("frame read failed, skipping")
			continue
		}

		if !s.ring.Put(buf) {
			s.dropLog.Warn().Uint64("dropped", s.ring.Dropped()).Msg("ring full, frame dropped")
			continue
		}
		s.frames.Add(1)
		s.data.Signal()
	}
}

// processLoop drains whole frames from the ring and publishes them.
func (s *Session) processLoop(ctx context.Context) error {
	frame := make([]byte, s.dec.FrameSize())
	var seq uint64
	for {
		if err := s.data.Wait(ctx); err != nil {
			return err
		}
		for s.ring.Get(frame) {
			smp := Sample{
				Seq:   seq,
				Raw:   make([]float64, s.dec.Channels),
				Volts: make([]float64, s.dec.Channels),
			}
			smp.Status = s.dec.DecodeFrame(frame, smp.Raw)
			if !smp.Status.Valid {
				s.invalid.Add(1)
			}
			if s.bank != nil {
				s.bank.Process(smp.Raw, smp.Volts)
			} else {
				copy(smp.Volts, smp.Raw)
			}
			s.sink.Publish(smp)
			s.published.Add(1)
			seq++
		}
	}
}
