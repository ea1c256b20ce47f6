package filter

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Responder is implemented by designs with a closed-form frequency response.
type Responder interface {
	Response(freq, fs float64) complex128
}

// Response evaluates d at freq, falling back to a measured impulse response
// for designs without a closed form.
func Response(d Design, freq, fs float64) complex128 {
	if r, ok := d.(Responder); ok {
		return r.Response(freq, fs)
	}
	if c, ok := d.(Cascade); ok {
		h := complex(1, 0)
		for _, sub := range c {
			h *= Response(sub, freq, fs)
		}
		return h
	}
	w := 2 * math.Pi * freq / fs
	var h complex128
	for n, v := range ImpulseResponse(d, 4096) {
		h += complex(v, 0) * cmplx.Exp(complex(0, -w*float64(n)))
	}
	return h
}

// ImpulseResponse runs a unit impulse through a fresh channel of d.
func ImpulseResponse(d Design, n int) []float64 {
	ch := d.NewChannel()
	h := make([]float64, n)
	for i := range h {
		x := 0.0
		if i == 0 {
			x = 1
		}
		h[i] = ch.Process(x)
	}
	return h
}

// Point is one bin of a magnitude response.
type Point struct {
	Freq float64 // Hz
	Gain float64 // linear
}

// DB returns the gain in decibels.
func (p Point) DB() float64 {
	return 20 * math.Log10(p.Gain)
}

// MagnitudeResponse returns |H(f)| for f in [0, fs/2] from the FFT of an
// impulse response, zero padded to nfft points.
func MagnitudeResponse(h []float64, fs float64, nfft int) []Point {
	if nfft < len(h) {
		nfft = len(h)
	}
	seq := make([]float64, nfft)
	copy(seq, h)

	fft := fourier.NewFFT(nfft)
	coeffs := fft.Coefficients(nil, seq)
	pts := make([]Point, len(coeffs))
	for i, c := range coeffs {
		pts[i] = Point{Freq: fft.Freq(i) * fs, Gain: cmplx.Abs(c)}
	}
	return pts
}
