package ads1299

import (
	"fmt"
	"strings"
)

var (
	muxNames = [8]string{
		MuxNormal:   "normal",
		MuxShorted:  "shorted",
		MuxBiasMeas: "bias-measure",
		MuxMVDD:     "supply",
		MuxTemp:     "temperature",
		MuxTest:     "test-signal",
		MuxBiasDRP:  "bias-drp",
		MuxBiasDRN:  "bias-drn",
	}
	gainValues     = [8]int{1, 2, 4, 6, 8, 12, 24, 0}
	compThresholds = [8]string{"95%", "92.5%", "90%", "87.5%", "85%", "80%", "75%", "70%"}
	leadCurrents   = [4]string{"6nA", "24nA", "6uA", "24uA"}
	leadFreqs      = [4]string{"DC", "AC fDR/4", "AC fDR/4 (alt)", "AC fCLK/2^x"}
	calFreqs       = [4]string{"fCLK/2^21", "fCLK/2^20", "(reserved)", "DC"}
)

// ChannelReport is the decoded CHnSET register of one channel.
type ChannelReport struct {
	Index     int // 1-based, as printed on the board
	PowerDown bool
	Gain      int // 0 for the reserved code
	SRB2      bool
	Mux       string
	Raw       byte
}

// Report is a decoded snapshot of the full register map.
type Report struct {
	Registers [NumRegisters]byte

	ID          byte
	IDValid     bool // device bits read back as 11b
	Revision    byte
	IDChannels  int
	DataRateSPS int
	DaisyChain  bool
	ClockOut    bool

	TestSignal    bool
	TestAmplitude string
	TestFrequency string

	RefBuffer   bool
	BiasRefInt  bool
	BiasEnabled bool
	BiasLoffOK  bool

	LeadOffThreshold string
	LeadOffCurrent   string
	LeadOffFrequency string

	Channels []ChannelReport

	BiasSensP, BiasSensN byte
	LoffSensP, LoffSensN byte
	LoffFlip             byte
	LoffStatP, LoffStatN byte

	GPIODirection byte // 1 = input, GPIO1 in bit 0
	GPIOData      byte
	SRB1          bool
	SingleShot    bool
	LeadOffComp   bool
}

// DecodeReport decodes a register map snapshot. Every CHnSET register is
// decoded; activeChannels only bounds the Channels slice.
func DecodeReport(regs [NumRegisters]byte, activeChannels int) Report {
	r := Report{Registers: regs}

	id := regs[RegID]
	r.ID = id
	r.IDValid = id&IDDevMask == IDDevMask
	r.Revision = (id & IDRevMask) >> 5
	switch id & IDChanMask {
	case IDChan4:
		r.IDChannels = 4
	case IDChan6:
		r.IDChannels = 6
	case IDChan8:
		r.IDChannels = 8
	}

	c1 := regs[RegCONFIG1]
	if dr := c1 & Config1DRMask; dr <= DR_250_SPS {
		r.DataRateSPS = 16000 >> dr
	}
	// DAISY_EN is active low.
	r.DaisyChain = c1&Config1DaisyEn == 0
	r.ClockOut = c1&Config1ClkEn != 0

	c2 := regs[RegCONFIG2]
	r.TestSignal = c2&Config2IntCal != 0
	r.TestAmplitude = "1x -(VREFP-VREFN)/2.4mV"
	if c2&Config2CalAmp != 0 {
		r.TestAmplitude = "2x -(VREFP-VREFN)/2.4mV"
	}
	r.TestFrequency = calFreqs[c2&Config2CalFreqMsk]

	c3 := regs[RegCONFIG3]
	r.RefBuffer = c3&Config3PDRefBuf != 0
	r.BiasRefInt = c3&Config3BiasRefInt != 0
	r.BiasEnabled = c3&Config3PDBias != 0
	r.BiasLoffOK = c3&Config3BiasStat == 0

	loff := regs[RegLOFF]
	r.LeadOffThreshold = compThresholds[(loff&LoffCompThMask)>>LoffCompThShift]
	r.LeadOffCurrent = leadCurrents[(loff&LoffILeadMask)>>LoffILeadShift]
	r.LeadOffFrequency = leadFreqs[loff&LoffFLeadMask]

	if activeChannels <= 0 || activeChannels > MaxChannels {
		activeChannels = MaxChannels
	}
	r.Channels = make([]ChannelReport, activeChannels)
	for i := range r.Channels {
		v := regs[RegCH1SET+Register(i)]
		r.Channels[i] = ChannelReport{
			Index:     i + 1,
			PowerDown: v&ChPowerDown != 0,
			Gain:      gainValues[(v&ChGainMask)>>ChGainShift],
			SRB2:      v&ChSRB2 != 0,
			Mux:       muxNames[v&ChMuxMask],
			Raw:       v,
		}
	}

	r.BiasSensP = regs[RegBIASSENSP]
	r.BiasSensN = regs[RegBIASSENSN]
	r.LoffSensP = regs[RegLOFFSENSP]
	r.LoffSensN = regs[RegLOFFSENSN]
	r.LoffFlip = regs[RegLOFFFLIP]
	r.LoffStatP = regs[RegLOFFSTATP]
	r.LoffStatN = regs[RegLOFFSTATN]

	r.GPIODirection = regs[RegGPIO] & GPIODirMask
	r.GPIOData = (regs[RegGPIO] & GPIODataMask) >> GPIODataShift
	r.SRB1 = regs[RegMISC1]&Misc1SRB1 != 0
	r.SingleShot = regs[RegCONFIG4]&Config4SingleShot != 0
	r.LeadOffComp = regs[RegCONFIG4]&Config4PDLoffComp != 0
	return r
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func (r Report) String() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "ID:          0x%02X (rev %d, %d channels, valid=%t)\n", r.ID, r.Revision, r.IDChannels, r.IDValid)
	fmt.Fprintf(&sb, "Data rate:   %d SPS (daisy=%s, clkout=%s)\n", r.DataRateSPS, onOff(r.DaisyChain), onOff(r.ClockOut))
	fmt.Fprintf(&sb, "Test signal: %s, %s, %s\n", onOff(r.TestSignal), r.TestAmplitude, r.TestFrequency)
	fmt.Fprintf(&sb, "Reference:   buffer=%s\n", onOff(r.RefBuffer))
	fmt.Fprintf(&sb, "Bias:        buffer=%s, internal ref=%s, connected=%t\n", onOff(r.BiasEnabled), onOff(r.BiasRefInt), r.BiasLoffOK)
	fmt.Fprintf(&sb, "Lead-off:    threshold=%s, current=%s, %s, comparators=%s\n",
		r.LeadOffThreshold, r.LeadOffCurrent, r.LeadOffFrequency, onOff(r.LeadOffComp))
	for _, ch := range r.Channels {
		fmt.Fprintf(&sb, "CH%d:         gain=%d, mux=%s, srb2=%s, powered=%s (0x%02X)\n",
			ch.Index, ch.Gain, ch.Mux, onOff(ch.SRB2), onOff(!ch.PowerDown), ch.Raw)
	}
	fmt.Fprintf(&sb, "BIAS_SENS:   P=%08b N=%08b\n", r.BiasSensP, r.BiasSensN)
	fmt.Fprintf(&sb, "LOFF_SENS:   P=%08b N=%08b flip=%08b\n", r.LoffSensP, r.LoffSensN, r.LoffFlip)
	fmt.Fprintf(&sb, "LOFF_STAT:   P=%08b N=%08b\n", r.LoffStatP, r.LoffStatN)
	fmt.Fprintf(&sb, "GPIO:        dir=%04b (1=in) data=%04b\n", r.GPIODirection, r.GPIOData)
	fmt.Fprintf(&sb, "MISC:        srb1=%s single-shot=%s\n", onOff(r.SRB1), onOff(r.SingleShot))
	return sb.String()
}

// DumpConfiguration reads back every register and decodes it. It has no
// effect on State and may be called while streaming.
func (adc *Device) DumpConfiguration() (Report, error) {
	adc.mu.Lock()
	defer adc.mu.Unlock()

	adc.mustBeIn("DumpConfiguration", Idle, Streaming)
	if err := adc.pauseContinuous(adc.readAllRegisters); err != nil {
		return Report{}, err
	}
	r := DecodeReport(adc.regLR, adc.cfg.Channels)
	if !r.IDValid {
		adc.log.Warn().Str("id", fmt.Sprintf("0x%02X", r.ID)).Msg("unexpected device ID, check wiring")
	}
	return r, nil
}
