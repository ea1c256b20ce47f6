package ft232h

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/yunginnanet/ft232h"
)

// ErrNotOpen is returned by Ready when the USB handle is gone.
var ErrNotOpen = errors.New("ft232h: device is not open")

// drdyPoll is how often DRDY is sampled while waiting for an edge.
const drdyPoll = 100 * time.Microsecond

// lines is the part of the MPSSE engine the bus drives.
type lines interface {
	Write(w []byte) error
	Read(n uint) ([]byte, error)
	Get(pin ft232h.CPin) (bool, error)
	Set(pin ft232h.CPin, high bool) error
}

// mpsse routes lines to an open FT232H.
type mpsse struct {
	dev *ft232h.FT232H
}

func (m mpsse) Write(w []byte) error {
	_, err := m.dev.SPI.Write(w, false, false)
	return err
}

func (m mpsse) Read(n uint) ([]byte, error) {
	return m.dev.SPI.Read(n, false, false)
}

func (m mpsse) Get(pin ft232h.CPin) (bool, error) {
	return m.dev.GPIO.Get(pin)
}

func (m mpsse) Set(pin ft232h.CPin, high bool) error {
	return m.dev.GPIO.Set(pin, high)
}

// Ready reports whether the device is open.
func (ft *FT232H) Ready() error {
	if ft.FT232H == nil || !ft.IsOpen() {
		return ErrNotOpen
	}
	return nil
}

// SetCS drives chip select. The ADS1299 is selected when CS is low.
func (ft *FT232H) SetCS(high bool) error {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	if ft.hw == nil {
		return ErrNotOpen
	}
	return ft.hw.Set(ft.csPin, high)
}

// Tx runs one chip-select framed transaction. The MPSSE engine is driven
// half duplex: w is written, then the remaining len(r)-len(w) bytes are
// clocked in and stored at r[len(w):]. Bytes clocked in during the write are
// not captured and read back as zero.
func (ft *FT232H) Tx(w, r []byte) error {
	ft.mu.Lock()
	defer ft.mu.Unlock()

	if ft.hw == nil {
		return ErrNotOpen
	}
	release := func() error { return ft.hw.Set(ft.csPin, true) }

	if err := ft.hw.Set(ft.csPin, false); err != nil {
		return fmt.Errorf("ft232h: assert CS: %w", err)
	}

	if len(w) > 0 {
		if err := ft.hw.Write(w); err != nil {
			return errors.Join(fmt.Errorf("ft232h: write: %w", err), release())
		}
	}

	if n := len(r) - len(w); n > 0 {
		for i := 0; i < len(w) && i < len(r); i++ {
			r[i] = 0
		}
		b, err := ft.hw.Read(uint(n))
		if err != nil {
			return errors.Join(fmt.Errorf("ft232h: read: %w", err), release())
		}
		if len(b) < n {
			return errors.Join(io.ErrShortBuffer, release())
		}
		copy(r[len(w):], b)
	}

	return release()
}

// sampleDRDY reads the DRDY level while holding the bus.
func (ft *FT232H) sampleDRDY() (bool, error) {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	if ft.hw == nil {
		return false, ErrNotOpen
	}
	return ft.hw.Get(ft.drdyPin)
}

// WaitFalling polls DRDY until it goes from high to low or timeout passes.
// A line that is already low counts as an edge only once. The bus is only
// held for each sample, so Tx can run between polls.
func (ft *FT232H) WaitFalling(timeout time.Duration) (bool, error) {
	deadline := time.Now().Add(timeout)
	for {
		high, err := ft.sampleDRDY()
		if err != nil {
			return false, fmt.Errorf("failed to read DRDY pin: %w", err)
		}
		wasHigh := ft.drdyHigh
		ft.drdyHigh = high
		if wasHigh && !high {
			return true, nil
		}
		if time.Now().After(deadline) {
			return false, nil
		}
		time.Sleep(drdyPoll)
	}
}

func (ft *FT232H) setPWDN(high bool) error {
	if ft.pwdnPin == 0 {
		return fmt.Errorf("PWDN pin not set")
	}
	ft.mu.Lock()
	defer ft.mu.Unlock()
	if ft.hw == nil {
		return ErrNotOpen
	}
	if err := ft.hw.Set(ft.pwdnPin, high); err != nil {
		return fmt.Errorf("failed to set PWDN pin: %w", err)
	}
	return nil
}

// PowerDown pulls the PWDN pin low.
func (ft *FT232H) PowerDown() error {
	return ft.setPWDN(false)
}

// PowerUp pulls the PWDN pin high.
func (ft *FT232H) PowerUp() error {
	return ft.setPWDN(true)
}

// Close releases the SPI engine.
func (ft *FT232H) Close() error {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	if ft.FT232H == nil {
		return nil
	}
	ft.hw = nil
	return ft.SPI.Close()
}
