// Package spidev drives an ADS1299 through a Linux spidev port with DRDY and
// PWDN on sysfs/gpiochip lines, via periph.
package spidev

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/conn/physic"
	"periph.io/x/periph/conn/spi"
	"periph.io/x/periph/conn/spi/spireg"
	"periph.io/x/periph/host"
)

var (
	// ErrNoDRDY is returned by WaitFalling when no DRDY line was configured.
	ErrNoDRDY = errors.New("spidev: DRDY pin not set")
	// ErrClosed is returned once the port has been released.
	ErrClosed = errors.New("spidev: port closed")
)

// Options select the port and pins.
type Options struct {
	// Port is a spireg name ("/dev/spidev0.0", "SPI0.0"); empty picks the first.
	Port    string
	ClockHz int64
	// DRDYPin and PWDNPin are gpioreg names ("GPIO25", "22"). PWDN may be empty.
	DRDYPin string
	PWDNPin string
}

// DefaultClockHz keeps well inside the ADS1299's 20 MHz limit.
const DefaultClockHz = 2000000

// Bus is an ADS1299 transport on a spidev port.
//
// It implements ads1299.Conn, ads1299.Readier and drdy.EdgeSource.
type Bus struct {
	mu   sync.Mutex
	port spi.PortCloser
	conn spi.Conn
	drdy gpio.PinIO
	pwdn gpio.PinIO
	in   []byte
	out  []byte
	log  zerolog.Logger
}

// Open initializes the host drivers and claims the port and pins.
func Open(opts Options, log zerolog.Logger) (*Bus, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("spidev: could not initialize host: %w", err)
	}

	port, err := spireg.Open(opts.Port)
	if err != nil {
		return nil, fmt.Errorf("spidev: could not open SPI port %q: %w", opts.Port, err)
	}

	hz := opts.ClockHz
	if hz <= 0 {
		hz = DefaultClockHz
	}
	// ADS1299 samples on the falling edge: CPOL=0, CPHA=1
	conn, err := port.Connect(physic.Frequency(hz)*physic.Hertz, spi.Mode1, 8)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("spidev: could not connect: %w", err), port.Close())
	}

	b := &Bus{port: port, conn: conn, log: log}

	if opts.DRDYPin != "" {
		if b.drdy = gpioreg.ByName(opts.DRDYPin); b.drdy == nil {
			return nil, errors.Join(fmt.Errorf("spidev: no such pin %q", opts.DRDYPin), port.Close())
		}
		if err = b.drdy.In(gpio.PullUp, gpio.FallingEdge); err != nil {
			return nil, errors.Join(fmt.Errorf("spidev: configure DRDY: %w", err), port.Close())
		}
	}

	if opts.PWDNPin != "" {
		if b.pwdn = gpioreg.ByName(opts.PWDNPin); b.pwdn == nil {
			return nil, errors.Join(fmt.Errorf("spidev: no such pin %q", opts.PWDNPin), port.Close())
		}
		if err = b.pwdn.Out(gpio.High); err != nil {
			return nil, errors.Join(fmt.Errorf("spidev: configure PWDN: %w", err), port.Close())
		}
	}

	log.Info().Str("port", conn.String()).Int64("hz", hz).Str("drdy", opts.DRDYPin).Msg("spidev bus opened")
	return b, nil
}

// Ready reports whether the port is still open.
func (b *Bus) Ready() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn == nil {
		return ErrClosed
	}
	return nil
}

// Tx runs one full-duplex transaction of max(len(w), len(r)) bytes. w is
// padded with zeros and r receives the first len(r) bytes clocked in.
func (b *Bus) Tx(w, r []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.conn == nil {
		return ErrClosed
	}

	n := len(w)
	if len(r) > n {
		n = len(r)
	}
	if n == 0 {
		return nil
	}
	if cap(b.out) < n {
		b.out = make([]byte, n)
		b.in = make([]byte, n)
	}
	out, in := b.out[:n], b.in[:n]
	copy(out, w)
	for i := len(w); i < n; i++ {
		out[i] = 0
	}

	if err := b.conn.Tx(out, in); err != nil {
		return fmt.Errorf("spidev: tx: %w", err)
	}
	copy(r, in)
	return nil
}

// WaitFalling waits for the next DRDY falling edge.
func (b *Bus) WaitFalling(timeout time.Duration) (bool, error) {
	if b.drdy == nil {
		return false, ErrNoDRDY
	}
	return b.drdy.WaitForEdge(timeout), nil
}

// PowerDown pulls the PWDN pin low.
func (b *Bus) PowerDown() error {
	if b.pwdn == nil {
		return fmt.Errorf("PWDN pin not set")
	}
	return b.pwdn.Out(gpio.Low)
}

// PowerUp pulls the PWDN pin high.
func (b *Bus) PowerUp() error {
	if b.pwdn == nil {
		return fmt.Errorf("PWDN pin not set")
	}
	return b.pwdn.Out(gpio.High)
}

// Close releases the DRDY edge detection and the port.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var err error
	if b.drdy != nil {
		err = b.drdy.In(gpio.PullUp, gpio.NoEdge)
	}
	if b.port != nil {
		err = errors.Join(err, b.port.Close())
	}
	b.conn = nil
	b.port = nil
	return err
}
