package filter

import (
	"fmt"
	"math"
	"math/cmplx"
)

// Section is one second-order stage, normalised so a0 = 1:
//
//	y[n] = b0*x[n] + b1*x[n-1] + b2*x[n-2] - a1*y[n-1] - a2*y[n-2]
type Section struct {
	B0, B1, B2 float64
	A1, A2     float64
}

// DCGain returns H(z=1).
func (s Section) DCGain() float64 {
	return (s.B0 + s.B1 + s.B2) / (1 + s.A1 + s.A2)
}

// Response evaluates the section at f Hz.
func (s Section) Response(freq, fs float64) complex128 {
	z1 := cmplx.Exp(complex(0, -2*math.Pi*freq/fs))
	z2 := z1 * z1
	num := complex(s.B0, 0) + complex(s.B1, 0)*z1 + complex(s.B2, 0)*z2
	den := 1 + complex(s.A1, 0)*z1 + complex(s.A2, 0)*z2
	return num / den
}

// Biquad is a Butterworth cascade of order/2 sections.
type Biquad struct {
	Sections []Section
	label    string
}

// ButterworthQ returns the per-section quality factors of an even order
// Butterworth filter, from the analog pole angles.
func ButterworthQ(order int) []float64 {
	qs := make([]float64, order/2)
	for k := range qs {
		theta := float64(2*k+1) * math.Pi / float64(2*order)
		qs[k] = 1 / (2 * math.Cos(theta))
	}
	return qs
}

func designBiquad(order int, fc, fs float64, highpass bool) (*Biquad, error) {
	if err := checkOrder(order, 2); err != nil {
		return nil, err
	}
	if err := checkCutoff(fc, fs); err != nil {
		return nil, err
	}

	// bilinear transform with the cutoff pre-warped, RBJ cookbook form
	omega := 2.0 * math.Pi * fc / fs
	sinOmega := math.Sin(omega)
	cosOmega := math.Cos(omega)

	qs := ButterworthQ(order)
	bq := &Biquad{Sections: make([]Section, len(qs))}
	for i, q := range qs {
		alpha := sinOmega / (2.0 * q)
		a0 := 1.0 + alpha
		var b0, b1, b2 float64
		if highpass {
			b0 = (1.0 + cosOmega) / 2.0
			b1 = -(1.0 + cosOmega)
			b2 = (1.0 + cosOmega) / 2.0
		} else {
			b0 = (1.0 - cosOmega) / 2.0
			b1 = 1.0 - cosOmega
			b2 = (1.0 - cosOmega) / 2.0
		}
		bq.Sections[i] = Section{
			B0: b0 / a0,
			B1: b1 / a0,
			B2: b2 / a0,
			A1: -2.0 * cosOmega / a0,
			A2: (1.0 - alpha) / a0,
		}
	}

	kind := "lowpass"
	if highpass {
		kind = "highpass"
	}
	bq.label = fmt.Sprintf("Butterworth %s %g Hz (order %d)", kind, fc, order)
	return bq, nil
}

// LowpassBiquad designs a Butterworth lowpass. order must be even.
func LowpassBiquad(order int, fc, fs float64) (*Biquad, error) {
	return designBiquad(order, fc, fs, false)
}

// HighpassBiquad designs a Butterworth highpass. order must be even.
func HighpassBiquad(order int, fc, fs float64) (*Biquad, error) {
	return designBiquad(order, fc, fs, true)
}

func (b *Biquad) String() string {
	return b.label
}

// Response evaluates the whole cascade at f Hz.
func (b *Biquad) Response(freq, fs float64) complex128 {
	h := complex(1, 0)
	for _, s := range b.Sections {
		h *= s.Response(freq, fs)
	}
	return h
}

func (b *Biquad) NewChannel() Channel {
	return &biquadChannel{
		sections: b.Sections,
		state:    make([]dfState, len(b.Sections)),
	}
}

// dfState is the direct form I delay line of one section.
type dfState struct {
	x1, x2 float64
	y1, y2 float64
}

type biquadChannel struct {
	sections []Section
	state    []dfState
}

func (c *biquadChannel) Process(x float64) float64 {
	for i, s := range c.sections {
		st := &c.state[i]
		y := s.B0*x + s.B1*st.x1 + s.B2*st.x2 - s.A1*st.y1 - s.A2*st.y2
		st.x2, st.x1 = st.x1, x
		st.y2, st.y1 = st.y1, y
		x = y
	}
	return x
}

func (c *biquadChannel) Reset() {
	for i := range c.state {
		c.state[i] = dfState{}
	}
}
