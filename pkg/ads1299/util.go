package ads1299

import "fmt"

// Convert24To32 interprets a 3-byte, 24-bit signed value
// in two's complement form, MSB first, as a 32-bit int.
func Convert24To32(data []byte) int32 {
	// data[0] is MSB. If top bit set => negative
	var u32 uint32
	u32 |= uint32(data[0]) << 16
	u32 |= uint32(data[1]) << 8
	u32 |= uint32(data[2])

	// sign extension
	if (u32 & 0x800000) != 0 {
		u32 |= 0xFF000000
	}
	return int32(u32)
}

// Convert32To24 packs the low 24 bits of code MSB first into dst.
func Convert32To24(code int32, dst []byte) {
	u := uint32(code)
	dst[0] = byte(u >> 16)
	dst[1] = byte(u >> 8)
	dst[2] = byte(u)
}

// ConvertADCtoVolts converts the signed 24-bit code to a voltage.
// full-scale range = ±2 * Vref / PGA. For a code of 0x7FFFFF => +FS.
func ConvertADCtoVolts(code int32, vRef float64, pga int) float64 {
	fullScale := (2.0 * vRef) / float64(pga)
	// code range is [-8388608..8388607], 0x7FFFFF is treated as +FS
	return (float64(code) / 8388607.0) * fullScale
}

// Decoder turns raw RDATAC frames into per-channel voltages.
type Decoder struct {
	Channels int
	Vref     float64
	Gain     int
}

// NewDecoder returns a Decoder matching cfg.
func NewDecoder(cfg Config) Decoder {
	return Decoder{Channels: cfg.Channels, Vref: cfg.Vref, Gain: cfg.Gain}
}

// FrameSize returns the frame length this decoder accepts.
func (d Decoder) FrameSize() int {
	return FrameSize(d.Channels)
}

// DecodeFrame writes one voltage per channel into out and returns the parsed
// status word. A frame or output of the wrong length is a sequencing bug and
// panics.
func (d Decoder) DecodeFrame(frame []byte, out []float64) Status {
	if len(frame) != d.FrameSize() {
		panic(fmt.Sprintf("ads1299: frame is %d bytes, expected %d", len(frame), d.FrameSize()))
	}
	if len(out) != d.Channels {
		panic(fmt.Sprintf("ads1299: output holds %d channels, expected %d", len(out), d.Channels))
	}

	for ch := 0; ch < d.Channels; ch++ {
		off := statusBytes + ch*bytesPerChannel
		out[ch] = ConvertADCtoVolts(Convert24To32(frame[off:off+bytesPerChannel]), d.Vref, d.Gain)
	}
	return ParseStatus(frame[:statusBytes])
}

// Codes extracts the raw signed channel codes from a frame.
func (d Decoder) Codes(frame []byte, out []int32) {
	if len(frame) != d.FrameSize() || len(out) != d.Channels {
		panic("ads1299: frame or output length mismatch")
	}
	for ch := 0; ch < d.Channels; ch++ {
		off := statusBytes + ch*bytesPerChannel
		out[ch] = Convert24To32(frame[off : off+bytesPerChannel])
	}
}
