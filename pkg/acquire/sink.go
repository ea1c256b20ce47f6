package acquire

import (
	"sync/atomic"

	"github.com/yunginnanet/ftdi-ads1299/pkg/ads1299"
)

// Sample is one decoded and filtered frame.
type Sample struct {
	Seq    uint64         // frames published so far, starting at 0
	Status ads1299.Status // lead-off and GPIO bits from the frame header
	Raw    []float64      // decoded volts per channel, before filtering
	Volts  []float64      // filtered volts per channel
}

// Sink receives samples from the processing goroutine. Publish must not
// retain the Sample's slices past the call unless it owns them; the session
// allocates fresh slices for every sample.
type Sink interface {
	Publish(Sample)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(Sample)

func (f SinkFunc) Publish(s Sample) {
	f(s)
}

// ChanSink forwards samples to a channel, dropping them when it is full.
type ChanSink struct {
	C       chan Sample
	dropped atomic.Uint64
}

// NewChanSink returns a ChanSink with the given buffer depth.
func NewChanSink(depth int) *ChanSink {
	return &ChanSink{C: make(chan Sample, depth)}
}

func (cs *ChanSink) Publish(s Sample) {
	select {
	case cs.C <- s:
	default:
		cs.dropped.Add(1)
	}
}

// Dropped returns how many samples did not fit in the channel.
func (cs *ChanSink) Dropped() uint64 {
	return cs.dropped.Load()
}
