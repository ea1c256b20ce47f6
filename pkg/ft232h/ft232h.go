// Package ft232h drives an ADS1299 over an FTDI FT232H in MPSSE mode: SPI on
// the dedicated pins, with chip select, DRDY and PWDN on GPIO.
package ft232h

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/yunginnanet/ft232h"
)

// DeviceInfo represents a snapshot of the device information for the [FT232H] device.
type DeviceInfo struct {
	Index       int
	Serial      string
	Description string
	ProductID   string
	VendorID    string
	IsOpen      bool
	IsHighSpeed bool
}

// String returns a string representation of the device information.
func (ft DeviceInfo) String() string {
	return fmt.Sprintf(
		"DeviceInfo{Index:%d, Serial:%s, Description:%s, ProductID:%s, VendorID:%s, IsOpen:%t, IsHighSpeed:%t}",
		ft.Index, ft.Serial, ft.Description, ft.ProductID, ft.VendorID, ft.IsOpen, ft.IsHighSpeed,
	)
}

// Pins are the GPIO bit masks wired to the ADS1299.
type Pins struct {
	CS   uint // chip select, active low
	DRDY uint // data ready, input
	PWDN uint // power down, active low; 0 if not wired
}

// DefaultPins matches the reference wiring.
func DefaultPins() Pins {
	return Pins{CS: 0x10, DRDY: 0x01, PWDN: 0x40}
}

// DefaultClock is the SPI clock in Hz. The ADS1299 accepts up to 20 MHz but
// long jumper wires do not.
const DefaultClock = 1700000

// FT232H is an FT232H wired to an ADS1299.
//
// It implements ads1299.Conn, ads1299.Readier and drdy.EdgeSource.
type FT232H struct {
	*ft232h.FT232H
	info DeviceInfo

	// mu serializes every use of the USB handle. The DRDY watcher and the
	// frame reader run in different goroutines and the MPSSE command stream
	// cannot interleave.
	mu sync.Mutex
	hw lines

	csPin   ft232h.CPin
	drdyPin ft232h.CPin
	pwdnPin ft232h.CPin

	drdyHigh bool // last polled DRDY level

	log zerolog.Logger
}

// Info returns a snapshot of the device information for the FT232H device. Read-only.
func (ft *FT232H) Info() DeviceInfo {
	vid, pid := ft.vidPid()
	return DeviceInfo{
		Index:       ft.Index(),
		Serial:      ft.Serial(),
		Description: ft.Desc(),
		ProductID:   pid,
		VendorID:    vid,
		IsOpen:      ft.IsOpen(),
		IsHighSpeed: ft.IsHiSpeed(),
	}
}

func (ft *FT232H) vidPid() (vid string, pid string) {
	return fmt.Sprintf("%04x", ft.VID()), fmt.Sprintf("%04x", ft.PID())
}

// String returns a string representation of the FT232H device. It includes the vendor ID, product ID, and description.
func (ft *FT232H) String() string {
	info := ft.Info()
	return fmt.Sprintf("FT232H[%s:%s]: %s", info.VendorID, info.ProductID, info.Description)
}

// ConnectFT232h opens the first device, or the one chosen by a single descriptor.
func ConnectFT232h(choice ...Descriptor) (ft *FT232H, err error) {
	ft = &FT232H{log: zerolog.Nop()}

	switch len(choice) {
	case 0:
		ft.FT232H, err = ft232h.New()
	case 1:
		desc := choice[0]
		if err = desc.Validate(); err != nil {
			return nil, ErrBadDescriptor
		}
		ft.FT232H, err = ft232h.OpenMask(desc.Mask())
	default:
		return nil, fmt.Errorf("invalid number of arguments")
	}
	if err != nil {
		return nil, fmt.Errorf("ft232h: open: %w", err)
	}

	ft.hw = mpsse{ft.FT232H}
	ft.info = ft.Info()
	return ft, nil
}

// Open connects to the device chosen by desc, configures SPI mode 1 at
// clockHz and claims the ADS1299 pins.
func Open(desc Descriptor, pins Pins, clockHz uint32, log zerolog.Logger) (*FT232H, error) {
	ft, err := ConnectFT232h(desc)
	if err != nil {
		return nil, err
	}
	ft.log = log

	if clockHz == 0 {
		clockHz = DefaultClock
	}

	spiCfg := ft.SPI.GetConfig()
	spiCfg.Clock = clockHz
	spiCfg.CS = ft232h.C(pins.CS)
	spiCfg.Mode = 0x00000001 // CPOL=0, CPHA=1
	spiCfg.ActiveLow = false

	log.Debug().Any("config", spiCfg).Msg("initializing SPI")
	if err = ft.SPI.Config(spiCfg); err != nil {
		return nil, errors.Join(fmt.Errorf("ft232h: configure SPI: %w", err), ft.Close())
	}

	if err = ft.setPins(pins); err != nil {
		return nil, errors.Join(err, ft.Close())
	}

	log.Info().Any("info", ft.info).Msgf("connected to %s", ft)
	return ft, nil
}

func (ft *FT232H) setPins(pins Pins) error {
	ft.csPin = ft232h.CPin(pins.CS)
	// deselected
	if err := ft.GPIO.ConfigPin(ft.csPin, ft232h.Output, true); err != nil {
		return fmt.Errorf("ft232h: configure CS %s: %w", ft.csPin, err)
	}

	ft.drdyPin = ft232h.CPin(pins.DRDY)
	if err := ft.GPIO.ConfigPin(ft.drdyPin, ft232h.Input, true); err != nil {
		return fmt.Errorf("ft232h: configure DRDY %s: %w", ft.drdyPin, err)
	}
	ft.drdyHigh = true

	if pins.PWDN != 0 {
		ft.pwdnPin = ft232h.CPin(pins.PWDN)
		// powered up
		if err := ft.GPIO.ConfigPin(ft.pwdnPin, ft232h.Output, true); err != nil {
			return fmt.Errorf("ft232h: configure PWDN %s: %w", ft.pwdnPin, err)
		}
	}

	ft.log.Debug().
		Str("cs", ft.csPin.String()).
		Str("drdy", ft.drdyPin.String()).
		Str("pwdn", ft.pwdnPin.String()).
		Msg("pins configured")
	return nil
}
