package ads1299

import (
	"fmt"
	"time"
)

var gainCodes = map[int]byte{
	1:  PGA_1,
	2:  PGA_2,
	4:  PGA_4,
	6:  PGA_6,
	8:  PGA_8,
	12: PGA_12,
	24: PGA_24,
}

var rateCodes = map[int]byte{
	16000: DR_16000_SPS,
	8000:  DR_8000_SPS,
	4000:  DR_4000_SPS,
	2000:  DR_2000_SPS,
	1000:  DR_1000_SPS,
	500:   DR_500_SPS,
	250:   DR_250_SPS,
}

// Validate checks the configuration against what the hardware supports.
func (cfg Config) Validate() error {
	switch cfg.Channels {
	case 2, 4, 8:
	default:
		return fmt.Errorf("%w: channel count %d (want 2, 4 or 8)", ErrInvalidConfig, cfg.Channels)
	}
	if _, ok := gainCodes[cfg.Gain]; !ok {
		return fmt.Errorf("%w: PGA gain %d", ErrInvalidConfig, cfg.Gain)
	}
	if _, ok := rateCodes[cfg.SampleRate]; !ok {
		return fmt.Errorf("%w: sample rate %d SPS", ErrInvalidConfig, cfg.SampleRate)
	}
	if cfg.Vref <= 0 {
		return fmt.Errorf("%w: reference voltage %g", ErrInvalidConfig, cfg.Vref)
	}
	if cfg.SettleDelay < 0 {
		return fmt.Errorf("%w: negative settle delay", ErrInvalidConfig)
	}
	return nil
}

// activeMask has one bit per active channel, CH1 in bit 0.
func (cfg Config) activeMask() byte {
	return byte(uint16(1)<<cfg.Channels - 1)
}

func (cfg Config) config1() byte {
	return Config1Reserved | rateCodes[cfg.SampleRate]
}

func (cfg Config) config2() byte {
	if cfg.TestSignal {
		return Config2Reserved | Config2IntCal | CalFreqFclk21
	}
	return Config2Reserved
}

func (cfg Config) config3() byte {
	v := byte(Config3Reserved | Config3PDRefBuf)
	if cfg.Bias {
		v |= Config3BiasRefInt | Config3PDBias
	}
	return v
}

func (cfg Config) chset() byte {
	v := gainCodes[cfg.Gain] << ChGainShift
	if cfg.SRB2 {
		v |= ChSRB2
	}
	if cfg.TestSignal {
		v |= MuxTest
	} else {
		v |= MuxNormal
	}
	return v
}

func (cfg Config) biasSensP() byte {
	if cfg.Bias {
		return cfg.activeMask()
	}
	return 0
}

// loff selects 95% comparator threshold, 6 nA and DC detection.
func (cfg Config) loff() byte {
	return LoffILead6nA | LoffFLeadDC
}

func (cfg Config) config4() byte {
	if cfg.LeadOff {
		return Config4PDLoffComp
	}
	return 0
}

func (cfg Config) loffSens() byte {
	if cfg.LeadOff {
		return cfg.activeMask()
	}
	return 0
}

type initStep struct {
	reg  Register
	val  byte
	wait time.Duration
}

// initSequence is the vendor-mandated power-up order. The reference settle
// wait must stay between CONFIG3 and CONFIG1.
func (cfg Config) initSequence() []initStep {
	steps := []initStep{
		{reg: RegGPIO, val: cfg.GPIO},
		{reg: RegCONFIG3, val: cfg.config3()},
		{wait: ReferenceSettle},
		{reg: RegCONFIG1, val: cfg.config1()},
		{reg: RegCONFIG2, val: cfg.config2()},
	}
	for ch := 0; ch < cfg.Channels; ch++ {
		steps = append(steps, initStep{reg: RegCH1SET + Register(ch), val: cfg.chset()})
	}
	return append(steps,
		initStep{reg: RegBIASSENSP, val: cfg.biasSensP()},
		initStep{reg: RegLOFF, val: cfg.loff()},
		initStep{reg: RegCONFIG4, val: cfg.config4()},
		initStep{reg: RegLOFFSENSP, val: cfg.loffSens()},
		initStep{reg: RegLOFFSENSN, val: cfg.loffSens()},
	)
}
