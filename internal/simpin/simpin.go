// Package simpin is the simulated physical pin abstraction standing in
// for the out-of-scope hardware layer (spec.md §1 names "the physical pin
// abstraction" out of scope, specifying only its capability set). A Pin
// holds whatever state a driver needs: a milliamp level for analog
// outputs, a boolean for digital lines, and injectable faults used to
// exercise the executor's error paths deterministically in tests.
//
// The status-word read reuses the tinygo.org/x/drivers.I2C-compatible Tx
// surface the teacher's adaptors use to talk to real hardware
// (services/hal/internal/drvshim/i2cshim.go wraps a core.I2COwner behind
// exactly this signature) — here it reads back a simulated AO driver chip's
// status register instead of a physical one.
package simpin

import (
	"sync"

	"tinygo.org/x/drivers"
)

// Fault is an injectable pin-level fault condition.
type Fault uint8

const (
	FaultNone Fault = iota
	FaultLoopOpen
	FaultLinkIntegrity
	FaultBusIntegrity
)

// statusAddr is the simulated chip address used for status-word reads.
const statusAddr = 0x40

// Pin is one simulated physical point, shared by whichever driver has
// claimed it. It is safe for concurrent use, though the executor's
// single-threaded design means contention is not expected in practice
// (spec.md §5, "bus access is naturally serialized").
type Pin struct {
	mu sync.Mutex

	Name string

	levelMA float64 // last written AO level
	digital bool     // last written/read DO/DI state

	fault Fault
}

var _ drivers.I2C = (*Pin)(nil)

// New creates a simulated pin with no fault and a neutral initial state.
func New(name string) *Pin {
	return &Pin{Name: name, levelMA: 4, fault: FaultNone}
}

// SetFault injects a fault condition for subsequent reads. Used by tests;
// nothing else in the module calls it.
func (p *Pin) SetFault(f Fault) {
	p.mu.Lock()
	p.fault = f
	p.mu.Unlock()
}

// WriteMA sets the AO level.
func (p *Pin) WriteMA(ma float64) {
	p.mu.Lock()
	p.levelMA = ma
	p.mu.Unlock()
}

// ReadMA returns the last-written (or simulated ambient) AO/AI level.
func (p *Pin) ReadMA() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fault == FaultBusIntegrity {
		return 0
	}
	return p.levelMA
}

// WriteBool sets the DO state.
func (p *Pin) WriteBool(v bool) {
	p.mu.Lock()
	p.digital = v
	p.mu.Unlock()
}

// ReadBool returns the DI/DO state.
func (p *Pin) ReadBool() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.digital
}

// Tx implements the drivers.I2C-compatible status-word read: writing to
// addr is ignored (the simulated chip has no writable registers over this
// path), and a read request returns one status byte whose bits reflect
// the pin's current fault, if any. Any other access is a no-op success.
func (p *Pin) Tx(addr uint16, w, r []byte) error {
	if addr != statusAddr || len(r) == 0 {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	var status byte
	switch p.fault {
	case FaultLoopOpen:
		status = 0x01
	case FaultLinkIntegrity:
		status = 0x02
	}
	for i := range r {
		r[i] = status
	}
	return nil
}

// StatusWord reads the simulated AO driver's fault status register.
func (p *Pin) StatusWord() (loopOpen, linkIntegrity bool, err error) {
	var r [1]byte
	if err := p.Tx(statusAddr, nil, r[:]); err != nil {
		return false, false, err
	}
	return r[0]&0x01 != 0, r[0]&0x02 != 0, nil
}
