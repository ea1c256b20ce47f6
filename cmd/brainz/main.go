package main

import (
	"context"
	"errors"
	"fmt"
	"math/cmplx"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog"

	"github.com/yunginnanet/ftdi-ads1299/pkg/acquire"
	"github.com/yunginnanet/ftdi-ads1299/pkg/ads1299"
	"github.com/yunginnanet/ftdi-ads1299/pkg/config"
	"github.com/yunginnanet/ftdi-ads1299/pkg/drdy"
	"github.com/yunginnanet/ftdi-ads1299/pkg/filter"
	"github.com/yunginnanet/ftdi-ads1299/pkg/ft232h"
	"github.com/yunginnanet/ftdi-ads1299/pkg/spidev"
)

var cli struct {
	Verbose bool   `help:"Prints debug output" short:"v"`
	Config  string `help:"HCL config file, searched for in the usual places when empty" short:"c"`

	Stream struct {
		Count uint64 `help:"Stop after this many samples, 0 streams until interrupted"`
	} `cmd:"" help:"Initialize the ADS1299 and stream filtered samples"`
	Dump   struct{} `cmd:"" help:"Initialize the ADS1299 and print its decoded register map"`
	Design struct {
		Points int `help:"FFT length of the printed magnitude response" default:"1024"`
		Every  int `help:"Print every Nth bin" default:"16"`
	} `cmd:"" help:"Print the configured band-pass filter without touching hardware"`
}

var log zerolog.Logger

func init() {
	cw := zerolog.ConsoleWriter{Out: os.Stdout}
	log = zerolog.New(cw).With().Timestamp().Logger()
}

// transport is what both bus drivers provide.
type transport interface {
	ads1299.Conn
	drdy.EdgeSource
	Close() error
}

func openTransport(cfg config.Config) (transport, error) {
	tc := cfg.Transport
	switch tc.Kind {
	case config.TransportFT232H:
		pins := ft232h.Pins{CS: tc.CS, DRDY: tc.DRDY, PWDN: tc.PWDN}
		return ft232h.Open(ft232h.Select(tc.Index, tc.Serial), pins, uint32(tc.ClockHz), log)
	case config.TransportSpidev:
		return spidev.Open(spidev.Options{
			Port:    tc.Port,
			ClockHz: tc.ClockHz,
			DRDYPin: tc.DRDYPin,
			PWDNPin: tc.PWDNPin,
		}, log)
	default:
		return nil, fmt.Errorf("unknown transport %q", tc.Kind)
	}
}

func openDevice(cfg config.Config) (*ads1299.Device, transport, error) {
	bus, err := openTransport(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s transport: %w", cfg.Transport.Kind, err)
	}

	adc, err := ads1299.New(bus, cfg.ADS1299(), ads1299.WithLogger(log))
	if err != nil {
		return nil, nil, errors.Join(err, bus.Close())
	}

	if err = adc.Reset(); err != nil {
		return nil, nil, errors.Join(fmt.Errorf("failed to reset ADS1299: %w", err), adc.Close())
	}

	log.Debug().Any("config", cfg.ADS1299()).Msg("initializing ADS1299")
	if err = adc.Initialize(); err != nil {
		return nil, nil, errors.Join(fmt.Errorf("failed to initialize ADS1299: %w", err), adc.Close())
	}
	log.Info().Int("channels", cfg.Device.Channels).Int("sps", cfg.Device.SampleRate).
		Int("gain", cfg.Device.Gain).Msg("initialized ADS1299")

	return adc, bus, nil
}

func dump(cfg config.Config) error {
	adc, _, err := openDevice(cfg)
	if err != nil {
		return err
	}

	rep, err := adc.DumpConfiguration()
	if err != nil {
		return errors.Join(fmt.Errorf("failed to read ADS1299 registers: %w", err), adc.Close())
	}
	log.Debug().Any("values", rep.Registers).Msg("ADS1299 registers")
	fmt.Print(rep.String())

	return adc.Close()
}

func stream(cfg config.Config, count uint64) error {
	design, err := cfg.Design()
	if err != nil {
		return err
	}

	adc, bus, err := openDevice(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	every := uint64(cfg.Pipeline.PrintEvery)
	sink := acquire.SinkFunc(func(s acquire.Sample) {
		if every > 0 && s.Seq%every == 0 {
			ev := log.Info().Uint64("seq", s.Seq).Floats64("volts", s.Volts)
			if !s.Status.Valid || s.Status.LeadOffP != 0 || s.Status.LeadOffN != 0 {
				ev = ev.Stringer("status", s.Status)
			}
			ev.Msg("sample")
		}
		if count > 0 && s.Seq+1 >= count {
			stop()
		}
	})

	sess, err := acquire.NewSession(acquire.Config{
		Device:      adc,
		Decoder:     ads1299.NewDecoder(cfg.ADS1299()),
		Design:      design,
		Sink:        sink,
		Edges:       bus,
		EdgeTimeout: cfg.Pipeline.EdgeTimeout,
		RingSize:    cfg.Pipeline.RingSize,
		Logger:      log,
	})
	if err != nil {
		return errors.Join(err, adc.Close())
	}

	log.Info().Stringer("filter", design).Msg("streaming, interrupt to stop")
	if err = adc.StartStreaming(); err != nil {
		return errors.Join(fmt.Errorf("failed to start streaming: %w", err), adc.Close())
	}

	err = sess.Run(ctx)
	if errors.Is(err, context.Canceled) {
		err = nil
	}

	st := sess.Stats()
	log.Info().Any("stats", st).Msg("session finished")

	return errors.Join(err, adc.Close())
}

func printDesign(cfg config.Config, points, every int) error {
	design, err := cfg.Design()
	if err != nil {
		return err
	}
	fs := float64(cfg.Device.SampleRate)

	fmt.Println(design)
	for _, d := range design.(filter.Cascade) {
		switch d := d.(type) {
		case *filter.FIR:
			fmt.Printf("  %s: %d taps, centre %.6f\n", d, len(d.Taps), d.Taps[len(d.Taps)/2])
		case *filter.Biquad:
			for i, s := range d.Sections {
				fmt.Printf("  %s section %d: b=[%.6g %.6g %.6g] a=[1 %.6g %.6g]\n", d, i, s.B0, s.B1, s.B2, s.A1, s.A2)
			}
		}
	}

	for _, f := range []float64{cfg.Filter.HighpassHz, cfg.Filter.LowpassHz} {
		fmt.Printf("  |H(%g Hz)| = %.2f dB\n", f, filter.Point{Gain: cmplx.Abs(filter.Response(design, f, fs))}.DB())
	}

	if every <= 0 {
		every = 1
	}
	pts := filter.MagnitudeResponse(filter.ImpulseResponse(design, points), fs, points)
	for i := 0; i < len(pts); i += every {
		fmt.Printf("%8.2f Hz %8.2f dB\n", pts[i].Freq, pts[i].DB())
	}
	return nil
}

func main() {
	ctx := kong.Parse(&cli, kong.Description("ADS1299 EEG acquisition over FT232H or spidev"))

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if cli.Verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	cfg, err := config.Load(cli.Config, log)
	if err != nil {
		log.Fatal().Err(err).Msg("bad configuration")
	}

	switch ctx.Command() {
	case "stream":
		err = stream(cfg, cli.Stream.Count)
	case "dump":
		err = dump(cfg)
	case "design":
		err = printDesign(cfg, cli.Design.Points, cli.Design.Every)
	default:
		err = fmt.Errorf("unknown command %q", ctx.Command())
	}
	if err != nil {
		log.Fatal().Err(err).Msg(ctx.Command())
	}
}
