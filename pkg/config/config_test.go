package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/yunginnanet/ftdi-ads1299/pkg/ads1299"
	"github.com/yunginnanet/ftdi-ads1299/pkg/filter"
)

const testHCL = `
device {
  channels     = 4
  gain         = 12
  sample_rate  = 500
  settle_delay = "5ms"
  lead_off     = true
}

transport {
  kind     = "spidev"
  port     = "/dev/spidev0.0"
  drdy_pin = "GPIO17"
  clock_hz = 1000000
}

filter {
  kind        = "fir"
  highpass_hz = 1
  lowpass_hz  = 40
}

pipeline {
  ring_size   = 4096
  print_every = 0
}
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.hcl")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.ADS1299() != ads1299.DefaultConfig() {
		t.Errorf("default device section does not match ads1299.DefaultConfig:\n%+v", cfg.ADS1299())
	}
	if cfg.FilterParams() != filter.DefaultParams() {
		t.Errorf("default filter section does not match filter.DefaultParams:\n%+v", cfg.FilterParams())
	}
}

func TestLoadHCL(t *testing.T) {
	cfg, err := Load(writeConfig(t, testHCL), zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	t.Run("Device", func(t *testing.T) {
		dev := cfg.ADS1299()
		if dev.Channels != 4 || dev.Gain != 12 || dev.SampleRate != 500 {
			t.Errorf("unexpected device section: %+v", dev)
		}
		if dev.SettleDelay != 5*time.Millisecond {
			t.Errorf("expected 5ms settle delay, got %s", dev.SettleDelay)
		}
		if !dev.LeadOff {
			t.Error("expected lead-off detection enabled")
		}
		if dev.Vref != ads1299.DefaultConfig().Vref {
			t.Errorf("unset vref should keep the default, got %g", dev.Vref)
		}
	})

	t.Run("Transport", func(t *testing.T) {
		tr := cfg.Transport
		if tr.Kind != TransportSpidev || tr.Port != "/dev/spidev0.0" || tr.DRDYPin != "GPIO17" {
			t.Errorf("unexpected transport section: %+v", tr)
		}
		if tr.ClockHz != 1000000 {
			t.Errorf("expected 1 MHz clock, got %d", tr.ClockHz)
		}
	})

	t.Run("Filter", func(t *testing.T) {
		p := cfg.FilterParams()
		if p.SampleRate != 500 || p.HighpassHz != 1 || p.LowpassHz != 40 {
			t.Errorf("unexpected filter params: %+v", p)
		}
		if p.FIROrder != filter.DefaultFIROrder {
			t.Errorf("unset fir_order should keep the default, got %d", p.FIROrder)
		}
		d, err := cfg.Design()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, ok := d.(filter.Cascade); !ok {
			t.Errorf("expected a cascade, got %T", d)
		}
	})

	t.Run("Pipeline", func(t *testing.T) {
		if cfg.Pipeline.RingSize != 4096 || cfg.Pipeline.PrintEvery != 0 {
			t.Errorf("unexpected pipeline section: %+v", cfg.Pipeline)
		}
		if cfg.Pipeline.EdgeTimeout != 100*time.Millisecond {
			t.Errorf("unset edge_timeout should keep the default, got %s", cfg.Pipeline.EdgeTimeout)
		}
	})
}

func TestLoadEnvironment(t *testing.T) {
	t.Setenv("BRAINZ_DEVICE_SAMPLE_RATE", "1000")
	t.Setenv("BRAINZ_DEVICE_CHANNELS", "2")
	t.Setenv("BRAINZ_FILTER_KIND", "fir")
	t.Setenv("BRAINZ_TRANSPORT_SERIAL", "FT1234")

	missing := filepath.Join(t.TempDir(), "nope.hcl")
	cfg, err := Load(missing, zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Device.SampleRate != 1000 || cfg.Device.Channels != 2 {
		t.Errorf("environment not applied to device section: %+v", cfg.Device)
	}
	if cfg.Filter.Kind != "fir" {
		t.Errorf("expected fir filter, got %q", cfg.Filter.Kind)
	}
	if cfg.Transport.Serial != "FT1234" {
		t.Errorf("expected serial FT1234, got %q", cfg.Transport.Serial)
	}
}

func TestEnvTransform(t *testing.T) {
	for in, want := range map[string]string{
		"BRAINZ_DEVICE_SAMPLE_RATE":    "device.sample_rate",
		"BRAINZ_FILTER_KIND":           "filter.kind",
		"BRAINZ_PIPELINE_EDGE_TIMEOUT": "pipeline.edge_timeout",
	} {
		if got, _ := envTransform(in, ""); got != want {
			t.Errorf("%s: expected %q, got %q", in, want, got)
		}
	}
}

func TestValidate(t *testing.T) {
	for name, mutate := range map[string]func(*Config){
		"Channels":  func(c *Config) { c.Device.Channels = 9 },
		"Gain":      func(c *Config) { c.Device.Gain = 3 },
		"Rate":      func(c *Config) { c.Device.SampleRate = 300 },
		"Band":      func(c *Config) { c.Filter.HighpassHz = 40 },
		"Kind":      func(c *Config) { c.Filter.Kind = "iir" },
		"FIROrder":  func(c *Config) { c.Filter.Kind = "fir"; c.Filter.FIROrder = 7 },
		"Transport": func(c *Config) { c.Transport.Kind = "usb" },
		"Index":     func(c *Config) { c.Transport.Index = -1 },
		"DRDY":      func(c *Config) { c.Transport.Kind = TransportSpidev; c.Transport.DRDYPin = "" },
		"Ring":      func(c *Config) { c.Pipeline.RingSize = -1 },
		"Print":     func(c *Config) { c.Pipeline.PrintEvery = -1 },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected error")
			}
		})
	}

	t.Run("Wrapped", func(t *testing.T) {
		cfg := Default()
		cfg.Transport.Kind = "usb"
		if err := cfg.Validate(); !errors.Is(err, ErrInvalid) {
			t.Errorf("expected ErrInvalid, got %v", err)
		}
		cfg = Default()
		cfg.Device.Gain = 3
		if err := cfg.Validate(); !errors.Is(err, ads1299.ErrInvalidConfig) {
			t.Errorf("expected ads1299.ErrInvalidConfig, got %v", err)
		}
	})
}

func TestFindPath(t *testing.T) {
	old := SearchPaths
	defer func() { SearchPaths = old }()

	dir := t.TempDir()
	path := writeConfig(t, testHCL)
	SearchPaths = []string{filepath.Join(dir, "missing.hcl"), path}
	if got := FindPath(zerolog.Nop()); got != path {
		t.Errorf("expected %s, got %q", path, got)
	}

	SearchPaths = []string{filepath.Join(dir, "missing.hcl")}
	if got := FindPath(zerolog.Nop()); got != "" {
		t.Errorf("expected no path, got %q", got)
	}
}
