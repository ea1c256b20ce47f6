package ads1299

import "fmt"

// State is the lifecycle state of a Device.
type State int

const (
	Uninitialized State = iota
	Configuring
	Idle
	Streaming
	// Faulted is terminal. It is entered when Initialize fails on the bus, or
	// when StartStreaming or StopStreaming fail halfway through.
	Faulted
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "Uninitialized"
	case Configuring:
		return "Configuring"
	case Idle:
		return "Idle"
	case Streaming:
		return "Streaming"
	case Faulted:
		return "Faulted"
	default:
		return "(invalid state)"
	}
}

// mustBeIn panics unless the device is in one of the allowed states.
// Calling an operation from the wrong state is a sequencing bug in the caller.
func (adc *Device) mustBeIn(op string, allowed ...State) {
	for _, s := range allowed {
		if adc.state == s {
			return
		}
	}
	panic(fmt.Sprintf("ads1299: %s called in state %s (allowed: %v)", op, adc.state, allowed))
}
