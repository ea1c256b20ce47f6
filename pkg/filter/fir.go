package filter

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/floats"
)

// DefaultFIROrder gives 401 taps.
const DefaultFIROrder = 400

// FIR is a linear-phase windowed-sinc filter. Taps has order+1 entries and
// is symmetric about its centre tap.
type FIR struct {
	Taps  []float64
	label string
}

// blackman is the Blackman window over n = 0..m.
func blackman(n, m int) float64 {
	x := float64(n) / float64(m)
	return 0.42 - 0.5*math.Cos(2*math.Pi*x) + 0.08*math.Cos(4*math.Pi*x)
}

// lowpassTaps returns Blackman windowed sinc taps normalised to unity DC gain.
func lowpassTaps(order int, fc, fs float64) []float64 {
	ft := fc / fs
	mid := order / 2
	h := make([]float64, order+1)
	for n := range h {
		k := float64(n - mid)
		if n == mid {
			h[n] = 2 * ft
		} else {
			h[n] = math.Sin(2*math.Pi*ft*k) / (math.Pi * k)
		}
		h[n] *= blackman(n, order)
	}
	floats.Scale(1/floats.Sum(h), h)
	return h
}

// LowpassFIR designs a lowpass with unity DC gain. order must be even.
func LowpassFIR(order int, fc, fs float64) (*FIR, error) {
	if err := checkOrder(order, 2); err != nil {
		return nil, err
	}
	if err := checkCutoff(fc, fs); err != nil {
		return nil, err
	}
	return &FIR{
		Taps:  lowpassTaps(order, fc, fs),
		label: fmt.Sprintf("FIR lowpass %g Hz (%d taps)", fc, order+1),
	}, nil
}

// HighpassFIR designs a highpass by spectral inversion of the matching
// lowpass, giving zero DC gain and unity passband. order must be even.
func HighpassFIR(order int, fc, fs float64) (*FIR, error) {
	if err := checkOrder(order, 2); err != nil {
		return nil, err
	}
	if err := checkCutoff(fc, fs); err != nil {
		return nil, err
	}
	h := lowpassTaps(order, fc, fs)
	floats.Scale(-1, h)
	h[order/2] += 1
	return &FIR{
		Taps:  h,
		label: fmt.Sprintf("FIR highpass %g Hz (%d taps)", fc, order+1),
	}, nil
}

func (f *FIR) String() string {
	return f.label
}

// Order returns len(Taps)-1.
func (f *FIR) Order() int {
	return len(f.Taps) - 1
}

// Response evaluates the frequency response at f Hz.
func (f *FIR) Response(freq, fs float64) complex128 {
	w := 2 * math.Pi * freq / fs
	var h complex128
	for n, c := range f.Taps {
		h += complex(c, 0) * cmplx.Exp(complex(0, -w*float64(n)))
	}
	return h
}

func (f *FIR) NewChannel() Channel {
	n := len(f.Taps)
	rev := make([]float64, n)
	for i, c := range f.Taps {
		rev[n-1-i] = c
	}
	return &firChannel{
		rev:  rev,
		hist: make([]float64, 2*n),
		idx:  n - 1,
	}
}

// firChannel keeps its history twice over so the last len(rev) inputs are
// always contiguous at hist[idx+1 : idx+1+n], oldest first.
type firChannel struct {
	rev  []float64
	hist []float64
	idx  int
}

func (c *firChannel) Process(x float64) float64 {
	n := len(c.rev)
	c.idx++
	if c.idx == n {
		c.idx = 0
	}
	c.hist[c.idx] = x
	c.hist[c.idx+n] = x
	return floats.Dot(c.rev, c.hist[c.idx+1:c.idx+1+n])
}

func (c *firChannel) Reset() {
	for i := range c.hist {
		c.hist[i] = 0
	}
	c.idx = len(c.rev) - 1
}
