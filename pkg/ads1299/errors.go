package ads1299

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRegister is returned for addresses outside 0x00-0x17.
	ErrInvalidRegister = errors.New("invalid register address")
	// ErrReadOnly is returned when asked to write ID, LOFF_STATP or LOFF_STATN.
	// The bus is never touched.
	ErrReadOnly = errors.New("register is read-only")
	// ErrNotReady is returned by Initialize when the bus reports it is not ready.
	ErrNotReady = errors.New("transport not ready")
	// ErrNotStreaming is returned by ReadFrame outside of the Streaming state.
	ErrNotStreaming = errors.New("device is not streaming")
	// ErrInvalidConfig wraps configuration validation failures.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// RegisterError records the register transaction that failed.
type RegisterError struct {
	Op  string // "read" or "write"
	Reg Register
	Err error
}

func (e *RegisterError) Error() string {
	return fmt.Sprintf("ads1299: %s %s: %v", e.Op, e.Reg, e.Err)
}

func (e *RegisterError) Unwrap() error {
	return e.Err
}

// CommandError records the opcode that failed.
type CommandError struct {
	Cmd Opcode
	Err error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("ads1299: command %s (0x%02X): %v", e.Cmd, byte(e.Cmd), e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}
