package ads1299

import "fmt"

// Status is the 24-bit word leading every RDATAC frame:
// 1100 + LOFF_STATP + LOFF_STATN + GPIO[7:4].
type Status struct {
	Valid     bool // header nibble was 1100b
	LeadOffP  byte // one bit per channel, CH1 in bit 0
	LeadOffN  byte
	GPIO      byte // GPIO4..GPIO1 levels in the low nibble
	RawHeader byte
}

// ParseStatus decodes the three status bytes of a frame.
func ParseStatus(b []byte) Status {
	return Status{
		Valid:     b[0]&0xF0 == statusHeader,
		LeadOffP:  (b[0]&0x0F)<<4 | b[1]>>4,
		LeadOffN:  (b[1]&0x0F)<<4 | b[2]>>4,
		GPIO:      b[2] & 0x0F,
		RawHeader: b[0] >> 4,
	}
}

// LeadOff reports whether either electrode of channel ch (0-based) is off.
func (s Status) LeadOff(ch int) bool {
	m := byte(1) << ch
	return s.LeadOffP&m != 0 || s.LeadOffN&m != 0
}

func (s Status) String() string {
	return fmt.Sprintf("status{valid=%t loffP=%08b loffN=%08b gpio=%04b}", s.Valid, s.LeadOffP, s.LeadOffN, s.GPIO)
}
