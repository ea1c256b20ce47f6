// Package config loads brainz settings from HCL, falling back to BRAINZ_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/hcl"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog"

	"github.com/yunginnanet/ftdi-ads1299/pkg/ads1299"
	"github.com/yunginnanet/ftdi-ads1299/pkg/filter"
)

// EnvPrefix marks environment variables read when no config file loads.
const EnvPrefix = "BRAINZ_"

// SearchPaths are tried in order when no path is given.
var SearchPaths = []string{"/etc/brainz/config.hcl", "~/.config/brainz/config.hcl", "./config.hcl"}

// ErrInvalid wraps validation failures.
var ErrInvalid = errors.New("invalid config")

type DeviceConf struct {
	Channels    int           `koanf:"channels"`
	Vref        float64       `koanf:"vref"`
	Gain        int           `koanf:"gain"`
	SampleRate  int           `koanf:"sample_rate"`
	SettleDelay time.Duration `koanf:"settle_delay"`
	Bias        bool          `koanf:"bias"`
	LeadOff     bool          `koanf:"lead_off"`
	TestSignal  bool          `koanf:"test_signal"`
	SRB2        bool          `koanf:"srb2"`
}

type TransportConf struct {
	Kind string `koanf:"kind"` // "ft232h" or "spidev"

	// ft232h
	Index  int    `koanf:"index"`
	Serial string `koanf:"serial"`
	CS     uint   `koanf:"cs"`
	DRDY   uint   `koanf:"drdy"`
	PWDN   uint   `koanf:"pwdn"`

	ClockHz int64 `koanf:"clock_hz"`

	// spidev
	Port    string `koanf:"port"`
	DRDYPin string `koanf:"drdy_pin"`
	PWDNPin string `koanf:"pwdn_pin"`
}

type FilterConf struct {
	Kind        string  `koanf:"kind"` // "fir" or "biquad"
	HighpassHz  float64 `koanf:"highpass_hz"`
	LowpassHz   float64 `koanf:"lowpass_hz"`
	FIROrder    int     `koanf:"fir_order"`
	BiquadOrder int     `koanf:"biquad_order"`
}

type PipelineConf struct {
	RingSize    int           `koanf:"ring_size"` // bytes, 0 for the default depth
	EdgeTimeout time.Duration `koanf:"edge_timeout"`
	PrintEvery  int           `koanf:"print_every"` // log every Nth sample, 0 disables
}

// Config is the whole file.
type Config struct {
	Device    DeviceConf    `koanf:"device"`
	Transport TransportConf `koanf:"transport"`
	Filter    FilterConf    `koanf:"filter"`
	Pipeline  PipelineConf  `koanf:"pipeline"`
}

const (
	TransportFT232H = "ft232h"
	TransportSpidev = "spidev"
)

// Default mirrors ads1299.DefaultConfig and filter.DefaultParams.
func Default() Config {
	dev := ads1299.DefaultConfig()
	fp := filter.DefaultParams()
	return Config{
		Device: DeviceConf{
			Channels:    dev.Channels,
			Vref:        dev.Vref,
			Gain:        dev.Gain,
			SampleRate:  dev.SampleRate,
			SettleDelay: dev.SettleDelay,
			Bias:        dev.Bias,
			LeadOff:     dev.LeadOff,
			TestSignal:  dev.TestSignal,
			SRB2:        dev.SRB2,
		},
		Transport: TransportConf{
			Kind:    TransportFT232H,
			CS:      0x10,
			DRDY:    0x01,
			PWDN:    0x40,
			ClockHz: 1700000,
			DRDYPin: "GPIO25",
		},
		Filter: FilterConf{
			Kind:        string(filter.KindBiquad),
			HighpassHz:  fp.HighpassHz,
			LowpassHz:   fp.LowpassHz,
			FIROrder:    fp.FIROrder,
			BiquadOrder: fp.BiquadOrder,
		},
		Pipeline: PipelineConf{
			EdgeTimeout: 100 * time.Millisecond,
			PrintEvery:  250,
		},
	}
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

// FindPath returns the first existing entry of SearchPaths, or "".
func FindPath(log zerolog.Logger) string {
	for _, path := range SearchPaths {
		path = expandHome(path)
		if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
			log.Info().Str("path", path).Msg("found config file")
			return path
		}
	}
	log.Info().Msg("config file not found")
	return ""
}

func envTransform(k, v string) (string, any) {
	key := strings.ToLower(strings.TrimPrefix(k, EnvPrefix))
	return strings.Replace(key, "_", ".", 1), v
}

// Load reads path (or the first search path that exists) over Default. If the
// file cannot be read, BRAINZ_SECTION_KEY environment variables are used
// instead, e.g. BRAINZ_DEVICE_SAMPLE_RATE=500.
func Load(path string, log zerolog.Logger) (Config, error) {
	k := koanf.New(".")

	if path == "" {
		path = FindPath(log)
	}

	if err := k.Load(file.Provider(path), hcl.Parser(true)); err != nil {
		log.Warn().Err(err).Msg("could not read config file, attempting to use environment variables")
		if err = k.Load(env.Provider(".", env.Opt{
			Prefix: EnvPrefix,
			TransformFunc: func(k, v string) (string, any) {
				k, val := envTransform(k, v)
				log.Debug().Str("key", k).Str("value", v).Msg("found config env var")
				return k, val
			},
		}), nil); err != nil {
			return Config{}, fmt.Errorf("config: environment: %w", err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, cfg.Validate()
}

// ADS1299 converts the device section.
func (c Config) ADS1299() ads1299.Config {
	dev := ads1299.DefaultConfig()
	dev.Channels = c.Device.Channels
	dev.Vref = c.Device.Vref
	dev.Gain = c.Device.Gain
	dev.SampleRate = c.Device.SampleRate
	dev.SettleDelay = c.Device.SettleDelay
	dev.Bias = c.Device.Bias
	dev.LeadOff = c.Device.LeadOff
	dev.TestSignal = c.Device.TestSignal
	dev.SRB2 = c.Device.SRB2
	return dev
}

// FilterParams converts the filter section at the device sample rate.
func (c Config) FilterParams() filter.Params {
	return filter.Params{
		SampleRate:  float64(c.Device.SampleRate),
		HighpassHz:  c.Filter.HighpassHz,
		LowpassHz:   c.Filter.LowpassHz,
		FIROrder:    c.Filter.FIROrder,
		BiquadOrder: c.Filter.BiquadOrder,
	}
}

// Design builds the configured band-pass.
func (c Config) Design() (filter.Design, error) {
	kind, err := filter.ParseKind(c.Filter.Kind)
	if err != nil {
		return nil, err
	}
	return filter.Bandpass(kind, c.FilterParams())
}

// Validate checks every section.
func (c Config) Validate() error {
	var errs []error

	if err := c.ADS1299().Validate(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Design(); err != nil {
		errs = append(errs, err)
	}

	switch c.Transport.Kind {
	case TransportFT232H:
		if c.Transport.Index < 0 && c.Transport.Serial == "" {
			errs = append(errs, fmt.Errorf("%w: transport needs an index or serial", ErrInvalid))
		}
	case TransportSpidev:
		if c.Transport.DRDYPin == "" {
			errs = append(errs, fmt.Errorf("%w: spidev transport needs drdy_pin", ErrInvalid))
		}
	default:
		errs = append(errs, fmt.Errorf("%w: unknown transport %q", ErrInvalid, c.Transport.Kind))
	}

	if c.Pipeline.RingSize < 0 {
		errs = append(errs, fmt.Errorf("%w: negative ring_size", ErrInvalid))
	}
	if c.Pipeline.PrintEvery < 0 {
		errs = append(errs, fmt.Errorf("%w: negative print_every", ErrInvalid))
	}

	return errors.Join(errs...)
}
