package ads1299

// Command issues a raw opcode. It does not change State, so START, STOP,
// RDATAC and SDATAC belong to StartStreaming and StopStreaming instead.
func (adc *Device) Command(cmd Opcode) error {
	adc.mu.Lock()
	defer adc.mu.Unlock()

	adc.mustBeIn("Command", Idle)
	switch cmd {
	case CMDSTART, CMDSTOP, CMDRDATAC, CMDSDATAC:
		panic("ads1299: streaming opcodes must go through StartStreaming/StopStreaming, not " + cmd.String())
	}
	return adc.sendCommand(cmd)
}

// ReadData performs a single RDATA read of the latest conversion into buf,
// outside of continuous mode. A conversion must be running, see Command.
func (adc *Device) ReadData(buf []byte) error {
	if len(buf) != adc.FrameSize()+1 {
		panic("ads1299: ReadData buffer must be FrameSize()+1 bytes")
	}

	adc.mu.Lock()
	defer adc.mu.Unlock()

	adc.mustBeIn("ReadData", Idle)
	if err := adc.conn.Tx([]byte{byte(CMDRDATA)}, buf); err != nil {
		return &CommandError{Cmd: CMDRDATA, Err: err}
	}
	return nil
}

func (adc *Device) sendCommand(cmd Opcode) error {
	buf := getTx()
	buf = append(buf, byte(cmd))
	err := adc.conn.Tx(buf, nil)
	putTx(buf)
	if err != nil {
		return &CommandError{Cmd: cmd, Err: err}
	}

	switch cmd {
	case CMDRDATAC, CMDRESET:
		adc.continuous = true
	case CMDSDATAC:
		adc.continuous = false
	}

	adc.log.Debug().Str("cmd", cmd.String()).Msg("command sent")
	adc.sleep(adc.cfg.SettleDelay)
	return nil
}
