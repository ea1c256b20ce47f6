package ads1299

// Constants from the datasheet

// Register Addresses
const (
	// RegID is the read-only device ID register
	RegID Register = 0x00
	// RegCONFIG1 holds daisy-chain, clock output and data rate bits
	RegCONFIG1 Register = 0x01
	// RegCONFIG2 holds the internal test signal configuration
	RegCONFIG2 Register = 0x02
	// RegCONFIG3 holds the reference buffer and bias configuration
	RegCONFIG3 Register = 0x03
	// RegLOFF is the lead-off control register
	RegLOFF Register = 0x04
	// RegCH1SET is the first of eight per-channel settings registers
	RegCH1SET Register = 0x05
	RegCH2SET Register = 0x06
	RegCH3SET Register = 0x07
	RegCH4SET Register = 0x08
	RegCH5SET Register = 0x09
	RegCH6SET Register = 0x0A
	RegCH7SET Register = 0x0B
	RegCH8SET Register = 0x0C
	// RegBIASSENSP routes positive inputs into bias derivation
	RegBIASSENSP Register = 0x0D
	// RegBIASSENSN routes negative inputs into bias derivation
	RegBIASSENSN Register = 0x0E
	// RegLOFFSENSP enables positive-side lead-off detection
	RegLOFFSENSP Register = 0x0F
	// RegLOFFSENSN enables negative-side lead-off detection
	RegLOFFSENSN Register = 0x10
	// RegLOFFFLIP flips lead-off current direction
	RegLOFFFLIP Register = 0x11
	// RegLOFFSTATP is the read-only positive lead-off status
	RegLOFFSTATP Register = 0x12
	// RegLOFFSTATN is the read-only negative lead-off status
	RegLOFFSTATN Register = 0x13
	// RegGPIO holds GPIO direction and data
	RegGPIO Register = 0x14
	// RegMISC1 holds the SRB1 switch
	RegMISC1 Register = 0x15
	// RegMISC2 is reserved
	RegMISC2 Register = 0x16
	// RegCONFIG4 holds single-shot and lead-off comparator power bits
	RegCONFIG4 Register = 0x17

	// NumRegisters is the total number of registers.
	NumRegisters = 0x18 // 24 total (0 through 0x17)
)

// Opcode is a single-byte ADS1299 command.
type Opcode byte

// Command Opcodes
const (
	CMDWAKEUP  Opcode = 0x02
	CMDSTANDBY Opcode = 0x04
	CMDRESET   Opcode = 0x06
	CMDSTART   Opcode = 0x08
	CMDSTOP    Opcode = 0x0A
	CMDRDATAC  Opcode = 0x10
	CMDSDATAC  Opcode = 0x11
	CMDRDATA   Opcode = 0x12

	CMDRREG = 0x20 // 0x20 + (reg & 0x1F)
	CMDWREG = 0x40 // 0x40 + (reg & 0x1F)
)

func (op Opcode) String() string {
	switch op {
	case CMDWAKEUP:
		return "WAKEUP"
	case CMDSTANDBY:
		return "STANDBY"
	case CMDRESET:
		return "RESET"
	case CMDSTART:
		return "START"
	case CMDSTOP:
		return "STOP"
	case CMDRDATAC:
		return "RDATAC"
	case CMDSDATAC:
		return "SDATAC"
	case CMDRDATA:
		return "RDATA"
	default:
		return "(invalid opcode)"
	}
}

// ID register
const (
	IDRevMask  = 0xE0
	IDDevMask  = 0x0C // bits 3-2 always 11b for ADS1299 family
	IDChanMask = 0x03
	IDChan4    = 0x00
	IDChan6    = 0x01
	IDChan8    = 0x02
)

// CONFIG1 register. Bit 4 must be written as 1, bit 3 as 0.
const (
	Config1Reserved = 0x90 // bit7 DAISY_EN' (multi readback) + reserved bit4
	Config1DaisyEn  = 0x80
	Config1ClkEn    = 0x20
	Config1DRMask   = 0x07

	DR_16000_SPS = 0x00
	DR_8000_SPS  = 0x01
	DR_4000_SPS  = 0x02
	DR_2000_SPS  = 0x03
	DR_1000_SPS  = 0x04
	DR_500_SPS   = 0x05
	DR_250_SPS   = 0x06
)

// CONFIG2 register. Bits 7-5 must be written as 110b.
const (
	Config2Reserved   = 0xC0
	Config2IntCal     = 0x10
	Config2CalAmp     = 0x04
	Config2CalFreqMsk = 0x03

	CalFreqFclk21 = 0x00
	CalFreqFclk20 = 0x01
	CalFreqDC     = 0x03
)

// CONFIG3 register. Bits 6-5 must be written as 11b.
const (
	Config3Reserved     = 0x60
	Config3PDRefBuf     = 0x80 // 1 = internal reference buffer enabled
	Config3BiasMeas     = 0x10
	Config3BiasRefInt   = 0x08
	Config3PDBias       = 0x04 // 1 = bias buffer enabled
	Config3BiasLoffSens = 0x02
	Config3BiasStat     = 0x01 // read-only
)

// LOFF register
const (
	LoffCompThMask  = 0xE0
	LoffILeadMask   = 0x0C
	LoffFLeadMask   = 0x03
	LoffCompThShift = 5
	LoffILeadShift  = 2

	LoffILead6nA  = 0x00
	LoffILead24nA = 0x04
	LoffILead6uA  = 0x08
	LoffILead24uA = 0x0C

	LoffFLeadDC    = 0x00
	LoffFLeadAC7   = 0x01
	LoffFLeadAC31  = 0x02
	LoffFLeadACMax = 0x03
)

// CHnSET registers
const (
	ChPowerDown = 0x80
	ChGainMask  = 0x70
	ChGainShift = 4
	ChSRB2      = 0x08
	ChMuxMask   = 0x07

	MuxNormal   = 0x00
	MuxShorted  = 0x01
	MuxBiasMeas = 0x02
	MuxMVDD     = 0x03
	MuxTemp     = 0x04
	MuxTest     = 0x05
	MuxBiasDRP  = 0x06
	MuxBiasDRN  = 0x07
)

// PGA gain codes for the CHnSET GAIN field.
const (
	PGA_1  = 0x00
	PGA_2  = 0x01
	PGA_4  = 0x02
	PGA_6  = 0x03
	PGA_8  = 0x04
	PGA_12 = 0x05
	PGA_24 = 0x06
)

// GPIO register: low nibble is direction (1 = input), high nibble is data.
const (
	GPIODirMask   = 0x0F
	GPIODataMask  = 0xF0
	GPIODataShift = 4
)

// MISC1 register
const Misc1SRB1 = 0x20

// CONFIG4 register
const (
	Config4SingleShot = 0x08
	Config4PDLoffComp = 0x02
)

// Status word header, the top nibble of the first status byte.
const statusHeader = 0xC0

// MaxChannels is the number of channels on the largest ADS1299 variant.
const MaxChannels = 8

const (
	statusBytes     = 3
	bytesPerChannel = 3
)

// FrameSize returns the RDATAC frame length for the given channel count.
func FrameSize(channels int) int {
	return statusBytes + bytesPerChannel*channels
}
