package ads1299

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Register is a 5-bit ADS1299 register address.
type Register byte

// Conn is one chip-select framed SPI transaction.
//
// Tx clocks out w, then keeps clocking zero bytes until len(r) bytes have been
// exchanged in total. r receives every byte clocked in, so for a 2 byte
// command and a 3 byte r the device's answer lands in r[2]. Either slice may
// be empty.
type Conn interface {
	Tx(w, r []byte) error
}

// Readier is implemented by transports that can report whether the bus is usable.
type Readier interface {
	Ready() error
}

// ReferenceSettle is the mandatory wait after enabling the internal reference
// buffer and before touching any conversion-affecting register.
const ReferenceSettle = 150 * time.Millisecond

// Device provides high-level control over a TI ADS1299 biopotential front-end.
//
// All bus traffic is serialized by mu, which also guards state and the
// register shadows.
type Device struct {
	mu   sync.Mutex // Synchronize bus transactions
	conn Conn
	cfg  Config

	state      State
	continuous bool // RDATAC is active on the device

	// Last read or written register states (for reference or debugging)
	regLR [NumRegisters]byte // "Last Read"  register data
	regLW [NumRegisters]byte // "Last Write" register data

	sleep func(time.Duration)
	log   zerolog.Logger
}

// Config represents user-level configuration parameters
type Config struct {
	Channels   int     // active channels: 2, 4 or 8
	Vref       float64 // reference voltage in volts
	Gain       int     // PGA gain: 1, 2, 4, 6, 8, 12 or 24
	SampleRate int     // output data rate in SPS: 250 .. 16000
	SRB2       bool    // route SRB2 to each active channel's negative input
	Bias       bool    // enable the bias drive with internal reference
	LeadOff    bool    // enable DC lead-off detection on active channels
	TestSignal bool    // drive active channels from the internal test signal
	GPIO       byte    // GPIO register value, direction in low nibble (1 = input)

	// SettleDelay is waited after every register transaction and command.
	SettleDelay time.Duration
}

// DefaultConfig provides default config. You can adjust as needed
func DefaultConfig() Config {
	return Config{
		Channels:    4,
		Vref:        4.5,
		Gain:        24,
		SampleRate:  250,
		SRB2:        true,
		Bias:        true,
		LeadOff:     false,
		TestSignal:  false,
		GPIO:        0x00, // all four pins outputs, driven low
		SettleDelay: 2 * time.Millisecond,
	}
}

// Option configures a Device.
type Option func(adc *Device)

// WithLogger sets the logger used for register traffic.
func WithLogger(l zerolog.Logger) Option {
	return func(adc *Device) {
		adc.log = l
	}
}

// WithSleep replaces time.Sleep for settle delays.
func WithSleep(sleep func(time.Duration)) Option {
	return func(adc *Device) {
		adc.sleep = sleep
	}
}

// New constructs a Device on the given transport. No bus traffic happens
// until Initialize.
func New(conn Conn, cfg Config, opts ...Option) (*Device, error) {
	if conn == nil {
		return nil, fmt.Errorf("%w: nil transport", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	adc := &Device{
		conn:  conn,
		cfg:   cfg,
		state: Uninitialized,
		sleep: time.Sleep,
		log:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(adc)
	}
	return adc, nil
}

// Config returns the configuration the device was built with.
func (adc *Device) Config() Config {
	return adc.cfg
}

// State returns the current lifecycle state.
func (adc *Device) State() State {
	adc.mu.Lock()
	s := adc.state
	adc.mu.Unlock()
	return s
}

// FrameSize returns the RDATAC frame length for this device's channel count.
func (adc *Device) FrameSize() int {
	return FrameSize(adc.cfg.Channels)
}

// Initialize runs the power-up register sequence. It must be called exactly
// once, from Uninitialized. Any bus failure leaves the device Faulted and the
// returned error identifies the failing register or command.
func (adc *Device) Initialize() error {
	adc.mu.Lock()
	defer adc.mu.Unlock()

	adc.mustBeIn("Initialize", Uninitialized)
	adc.state = Configuring

	if r, ok := adc.conn.(Readier); ok {
		if err := r.Ready(); err != nil {
			adc.state = Faulted
			return fmt.Errorf("ads1299: %w: %w", ErrNotReady, err)
		}
	}

	// Registers cannot be accessed while RDATAC is active.
	if err := adc.sendCommand(CMDSDATAC); err != nil {
		adc.state = Faulted
		return err
	}

	for _, st := range adc.cfg.initSequence() {
		if st.wait > 0 {
			adc.log.Debug().Dur("wait", st.wait).Msg("waiting for internal reference to settle")
			adc.sleep(st.wait)
			continue
		}
		if err := adc.writeRegister(st.reg, st.val); err != nil {
			adc.state = Faulted
			return err
		}
	}

	adc.state = Idle
	adc.log.Info().Int("channels", adc.cfg.Channels).
		Int("sps", adc.cfg.SampleRate).
		Int("gain", adc.cfg.Gain).
		Msg("ADS1299 initialized")
	return nil
}

// StartStreaming issues START then RDATAC and moves Idle -> Streaming.
// If START fails the device stays Idle. If RDATAC fails after START went
// out, the device is converting outside continuous mode and becomes Faulted.
func (adc *Device) StartStreaming() error {
	adc.mu.Lock()
	defer adc.mu.Unlock()

	adc.mustBeIn("StartStreaming", Idle)

	if err := adc.sendCommand(CMDSTART); err != nil {
		return err
	}
	if err := adc.sendCommand(CMDRDATAC); err != nil {
		adc.state = Faulted
		return err
	}
	adc.state = Streaming
	return nil
}

// StopStreaming issues SDATAC then STOP and moves Streaming -> Idle.
// If SDATAC fails the device stays Streaming. If STOP fails after SDATAC
// went out, conversions may still be running and the device becomes Faulted.
func (adc *Device) StopStreaming() error {
	adc.mu.Lock()
	defer adc.mu.Unlock()

	adc.mustBeIn("StopStreaming", Streaming)

	if err := adc.sendCommand(CMDSDATAC); err != nil {
		return err
	}
	if err := adc.sendCommand(CMDSTOP); err != nil {
		adc.state = Faulted
		return err
	}
	adc.state = Idle
	return nil
}

// ReadFrame clocks one RDATAC frame into buf. buf must be exactly FrameSize
// bytes. No settle delay follows, the device free-runs.
func (adc *Device) ReadFrame(buf []byte) error {
	if len(buf) != adc.FrameSize() {
		panic(fmt.Sprintf("ads1299: ReadFrame buffer is %d bytes, frame is %d", len(buf), adc.FrameSize()))
	}

	adc.mu.Lock()
	defer adc.mu.Unlock()

	if adc.state != Streaming {
		return ErrNotStreaming
	}
	if err := adc.conn.Tx(nil, buf); err != nil {
		return fmt.Errorf("ads1299: read frame: %w", err)
	}
	return nil
}

// Reset triggers a software reset using the RESET command. Register contents
// return to power-on defaults, so it is only allowed before Initialize.
func (adc *Device) Reset() error {
	adc.mu.Lock()
	defer adc.mu.Unlock()

	adc.mustBeIn("Reset", Uninitialized)
	// 18 tCLK after reset before the next command; covered by SettleDelay.
	// The device comes back in RDATAC, which sendCommand records.
	return adc.sendCommand(CMDRESET)
}

// Standby puts the device into its low-power standby mode.
func (adc *Device) Standby() error {
	adc.mu.Lock()
	defer adc.mu.Unlock()

	adc.mustBeIn("Standby", Idle)
	return adc.sendCommand(CMDSTANDBY)
}

// WakeUp exits standby mode.
func (adc *Device) WakeUp() error {
	adc.mu.Lock()
	defer adc.mu.Unlock()

	adc.mustBeIn("WakeUp", Idle)
	return adc.sendCommand(CMDWAKEUP)
}

// Close stops streaming if needed and releases the transport when it is an
// [io.Closer].
func (adc *Device) Close() error {
	var err error
	if adc.State() == Streaming {
		err = adc.StopStreaming()
	}
	if c, ok := adc.conn.(io.Closer); ok {
		err = errors.Join(err, c.Close())
	}
	return err
}
