// Package filter implements the EEG conditioning filters: a Blackman
// windowed-sinc FIR pair and a Butterworth biquad cascade. Both sit behind
// Design and Channel so a configuration can pick either one.
//
// Coefficients are computed once and shared read-only; every EEG channel gets
// its own zeroed delay line from Design.NewChannel.
package filter

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidDesign is returned for cutoffs or orders that cannot be realised.
var ErrInvalidDesign = errors.New("filter: invalid design")

// Channel filters one stream of samples.
type Channel interface {
	Process(x float64) float64
	Reset()
}

// Design is an immutable coefficient set.
type Design interface {
	NewChannel() Channel
	String() string
}

// Kind selects a filter realisation.
type Kind string

const (
	KindFIR    Kind = "fir"
	KindBiquad Kind = "biquad"
)

// ParseKind accepts "fir" or "biquad", case-insensitively.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindFIR, KindBiquad:
		return k, nil
	default:
		return "", fmt.Errorf("%w: unknown filter kind %q", ErrInvalidDesign, s)
	}
}

func checkCutoff(fc, fs float64) error {
	if fs <= 0 {
		return fmt.Errorf("%w: sample rate %g", ErrInvalidDesign, fs)
	}
	if fc <= 0 || fc >= fs/2 {
		return fmt.Errorf("%w: cutoff %g Hz outside (0, %g)", ErrInvalidDesign, fc, fs/2)
	}
	return nil
}

func checkOrder(order, min int) error {
	if order < min || order%2 != 0 {
		return fmt.Errorf("%w: order %d must be even and at least %d", ErrInvalidDesign, order, min)
	}
	return nil
}

// Cascade applies its designs in order.
type Cascade []Design

func (c Cascade) NewChannel() Channel {
	ch := make(chain, len(c))
	for i, d := range c {
		ch[i] = d.NewChannel()
	}
	return ch
}

func (c Cascade) String() string {
	parts := make([]string, len(c))
	for i, d := range c {
		parts[i] = d.String()
	}
	return strings.Join(parts, " -> ")
}

type chain []Channel

func (c chain) Process(x float64) float64 {
	for _, f := range c {
		x = f.Process(x)
	}
	return x
}

func (c chain) Reset() {
	for _, f := range c {
		f.Reset()
	}
}

// Params describes a highpass + lowpass pair.
type Params struct {
	SampleRate  float64
	HighpassHz  float64
	LowpassHz   float64
	FIROrder    int
	BiquadOrder int
}

// DefaultParams is the 0.5-30 Hz EEG band at 250 SPS.
func DefaultParams() Params {
	return Params{
		SampleRate:  250,
		HighpassHz:  0.5,
		LowpassHz:   30,
		FIROrder:    400,
		BiquadOrder: 2,
	}
}

// Bandpass composes a highpass then a lowpass of the selected kind.
func Bandpass(kind Kind, p Params) (Cascade, error) {
	if p.HighpassHz >= p.LowpassHz {
		return nil, fmt.Errorf("%w: highpass %g Hz is not below lowpass %g Hz", ErrInvalidDesign, p.HighpassHz, p.LowpassHz)
	}
	var (
		hp, lp Design
		err    error
	)
	switch kind {
	case KindFIR:
		if hp, err = HighpassFIR(p.FIROrder, p.HighpassHz, p.SampleRate); err != nil {
			return nil, err
		}
		if lp, err = LowpassFIR(p.FIROrder, p.LowpassHz, p.SampleRate); err != nil {
			return nil, err
		}
	case KindBiquad:
		if hp, err = HighpassBiquad(p.BiquadOrder, p.HighpassHz, p.SampleRate); err != nil {
			return nil, err
		}
		if lp, err = LowpassBiquad(p.BiquadOrder, p.LowpassHz, p.SampleRate); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: unknown filter kind %q", ErrInvalidDesign, kind)
	}
	return Cascade{hp, lp}, nil
}

// Bank holds one Channel per EEG channel, all built from the same Design.
type Bank struct {
	design Design
	chans  []Channel
}

// NewBank builds channels independent delay lines.
func NewBank(d Design, channels int) *Bank {
	b := &Bank{design: d, chans: make([]Channel, channels)}
	for i := range b.chans {
		b.chans[i] = d.NewChannel()
	}
	return b
}

// Channels returns the number of channels in the bank.
func (b *Bank) Channels() int {
	return len(b.chans)
}

// Design returns the shared coefficient set.
func (b *Bank) Design() Design {
	return b.design
}

// Process filters one sample per channel from in into out. in and out may
// be the same slice.
func (b *Bank) Process(in, out []float64) {
	if len(in) != len(b.chans) || len(out) != len(b.chans) {
		panic(fmt.Sprintf("filter: bank has %d channels, got %d in and %d out", len(b.chans), len(in), len(out)))
	}
	for i, ch := range b.chans {
		out[i] = ch.Process(in[i])
	}
}

// Reset zeroes every delay line.
func (b *Bank) Reset() {
	for _, ch := range b.chans {
		ch.Reset()
	}
}
