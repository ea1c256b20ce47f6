package ads1299

import (
	"errors"
	"fmt"
)

var registerNames = [NumRegisters]string{
	"ID", "CONFIG1", "CONFIG2", "CONFIG3", "LOFF",
	"CH1SET", "CH2SET", "CH3SET", "CH4SET", "CH5SET", "CH6SET", "CH7SET", "CH8SET",
	"BIAS_SENSP", "BIAS_SENSN", "LOFF_SENSP", "LOFF_SENSN", "LOFF_FLIP",
	"LOFF_STATP", "LOFF_STATN", "GPIO", "MISC1", "MISC2", "CONFIG4",
}

func (reg Register) String() string {
	if !reg.Valid() {
		return fmt.Sprintf("REG(0x%02X)", byte(reg))
	}
	return registerNames[reg]
}

// Valid reports whether reg is inside the register map.
func (reg Register) Valid() bool {
	return reg < NumRegisters
}

// ReadOnly reports whether the device ignores writes to reg.
func (reg Register) ReadOnly() bool {
	switch reg {
	case RegID, RegLOFFSTATP, RegLOFFSTATN:
		return true
	}
	return false
}

// EncodeWrite returns the WREG frame for a single register.
func EncodeWrite(reg Register, value byte) [3]byte {
	// second byte: # of registers -1. We only do one register => 0
	return [3]byte{CMDWREG | byte(reg)&0x1F, 0x00, value}
}

// EncodeRead returns the RREG frame for a single register. The value is
// clocked back as the third byte of a 3 byte transaction.
func EncodeRead(reg Register) [2]byte {
	return [2]byte{CMDRREG | byte(reg)&0x1F, 0x00}
}

// LastReadRegister returns the shadow of the last value read from reg.
func (adc *Device) LastReadRegister(reg Register) byte {
	adc.mu.Lock()
	b := adc.regLR[reg]
	adc.mu.Unlock()
	return b
}

// LastWrittenRegister returns the shadow of the last value written to reg.
func (adc *Device) LastWrittenRegister(reg Register) byte {
	adc.mu.Lock()
	b := adc.regLW[reg]
	adc.mu.Unlock()
	return b
}

// Registers returns a copy of the last read register values.
func (adc *Device) Registers() map[Register]byte {
	adc.mu.Lock()
	r := make(map[Register]byte, NumRegisters)
	for reg, val := range adc.regLR {
		r[Register(reg)] = val
	}
	adc.mu.Unlock()
	return r
}

// WriteRegister writes a single register. Only allowed in Idle; use
// Initialize for the power-up configuration.
func (adc *Device) WriteRegister(reg Register, value byte) error {
	adc.mu.Lock()
	defer adc.mu.Unlock()

	adc.mustBeIn("WriteRegister", Idle)
	return adc.writeRegister(reg, value)
}

// ReadRegister reads a single register. While streaming the read is
// bracketed by SDATAC and RDATAC.
func (adc *Device) ReadRegister(reg Register) (val byte, err error) {
	adc.mu.Lock()
	defer adc.mu.Unlock()

	adc.mustBeIn("ReadRegister", Idle, Streaming)
	err = adc.pauseContinuous(func() error {
		var rerr error
		val, rerr = adc.readRegister(reg)
		return rerr
	})
	return val, err
}

// pauseContinuous runs fn with RDATAC suspended, restoring it afterwards.
func (adc *Device) pauseContinuous(fn func() error) error {
	if !adc.continuous {
		return fn()
	}
	if err := adc.sendCommand(CMDSDATAC); err != nil {
		return err
	}
	err := fn()
	return errors.Join(err, adc.sendCommand(CMDRDATAC))
}

// writeRegister writes a single register [reg], with the given value.
func (adc *Device) writeRegister(reg Register, value byte) error {
	if !reg.Valid() {
		return &RegisterError{Op: "write", Reg: reg, Err: ErrInvalidRegister}
	}
	if reg.ReadOnly() {
		return &RegisterError{Op: "write", Reg: reg, Err: ErrReadOnly}
	}

	out := getTx()
	frame := EncodeWrite(reg, value)
	out = append(out, frame[:]...)
	err := adc.conn.Tx(out, nil)
	putTx(out)
	if err != nil {
		return &RegisterError{Op: "write", Reg: reg, Err: err}
	}
	adc.sleep(adc.cfg.SettleDelay)

	adc.regLW[reg] = value
	adc.log.Debug().Str("reg", reg.String()).
		Str("value", fmt.Sprintf("0x%02X", value)).
		Msg("register written")
	return nil
}

// readRegister reads a single register [reg].
func (adc *Device) readRegister(reg Register) (byte, error) {
	if !reg.Valid() {
		return 0, &RegisterError{Op: "read", Reg: reg, Err: ErrInvalidRegister}
	}

	frame := EncodeRead(reg)
	buf := get3Bytes()
	defer put3Bytes(buf)

	if err := adc.conn.Tx(frame[:], buf); err != nil {
		return 0, &RegisterError{Op: "read", Reg: reg, Err: err}
	}
	adc.sleep(adc.cfg.SettleDelay)

	adc.regLR[reg] = buf[2]
	adc.log.Trace().Str("reg", reg.String()).
		Str("value", fmt.Sprintf("0x%02X", buf[2])).
		Msg("register read")
	return buf[2], nil
}

// ReadAllRegisters reads the full register map. While streaming the reads
// are bracketed by SDATAC and RDATAC.
func (adc *Device) ReadAllRegisters() (registers map[Register]byte, err error) {
	adc.mu.Lock()
	defer adc.mu.Unlock()

	adc.mustBeIn("ReadAllRegisters", Idle, Streaming)
	err = adc.pauseContinuous(adc.readAllRegisters)
	if err == nil {
		registers = make(map[Register]byte, NumRegisters)
		for reg, val := range adc.regLR {
			registers[Register(reg)] = val
		}
	}
	return
}

func (adc *Device) readAllRegisters() error {
	for reg := Register(0); reg < NumRegisters; reg++ {
		if _, err := adc.readRegister(reg); err != nil {
			return err
		}
	}
	return nil
}
