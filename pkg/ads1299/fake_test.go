package ads1299

import (
	"errors"
	"sync"
	"time"

	"github.com/l0nax/go-spew/spew"
)

var pprint = spew.ConfigState{
	Indent:                  "\t",
	MaxDepth:                0,
	DisableMethods:          false,
	DisablePointerMethods:   false,
	DisablePointerAddresses: false,
	DisableCapacities:       false,
	ContinueOnMethod:        true,
	SortKeys:                true,
	SpewKeys:                true,
	HighlightValues:         true,
	HighlightHex:            true,
}

var errBus = errors.New("bus fault")

// event is one observable action against the fake bus: a transaction or a wait.
type event struct {
	w    []byte
	rlen int
	wait time.Duration
}

func (e event) isWait() bool { return e.w == nil && e.rlen == 0 }

// fakeConn emulates the register file and records every transaction.
type fakeConn struct {
	mu       sync.Mutex
	regs     [NumRegisters]byte
	events   []event
	frames   [][]byte
	notReady error
	failOn   func(w []byte) error
	closed   bool
}

func newFakeConn() *fakeConn {
	fc := &fakeConn{}
	// ADS1299-4, revision 3
	fc.regs[RegID] = 0x7C
	return fc
}

func (fc *fakeConn) Ready() error { return fc.notReady }

func (fc *fakeConn) Close() error {
	fc.closed = true
	return nil
}

func (fc *fakeConn) Tx(w, r []byte) error {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	fc.events = append(fc.events, event{w: append([]byte{}, w...), rlen: len(r)})
	if fc.failOn != nil {
		if err := fc.failOn(w); err != nil {
			return err
		}
	}

	switch {
	case len(w) == 0 && len(r) > 0:
		if len(fc.frames) > 0 {
			copy(r, fc.frames[0])
			fc.frames = fc.frames[1:]
		}
	case len(w) == 3 && w[0]&0xE0 == CMDWREG:
		fc.regs[w[0]&0x1F] = w[2]
	case len(w) == 2 && w[0]&0xE0 == CMDRREG && len(r) == 3:
		r[2] = fc.regs[w[0]&0x1F]
	}
	return nil
}

func (fc *fakeConn) sleep(d time.Duration) {
	fc.mu.Lock()
	fc.events = append(fc.events, event{wait: d})
	fc.mu.Unlock()
}

// transactions returns every recorded event, dropping settle delays.
func (fc *fakeConn) transactions(settle time.Duration) []event {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	var out []event
	for _, e := range fc.events {
		if e.isWait() && e.wait == settle {
			continue
		}
		out = append(out, e)
	}
	return out
}

func (fc *fakeConn) reset() {
	fc.mu.Lock()
	fc.events = nil
	fc.mu.Unlock()
}

func newTestDevice(fc *fakeConn, cfg Config) *Device {
	adc, err := New(fc, cfg, WithSleep(fc.sleep))
	if err != nil {
		panic(err)
	}
	return adc
}

func expectPanic(t interface {
	Helper()
	Errorf(string, ...any)
}, name string, fn func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Errorf("expected %s to panic", name)
		}
	}()
	fn()
}
