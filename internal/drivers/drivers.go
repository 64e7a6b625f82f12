// Package drivers defines the node-side driver sum type. spec.md §9
// replaces the original's duck-typed, inheritance-based driver classes
// with a small closed set of variants, each exposing a fixed capability
// set — grounded on the teacher's device packages (services/hal/devices/
// gpio_dout, led, pwm_out, gpio_button), generalized from real GPIO/PWM
// hardware to the simulated internal/simpin.Pin.
package drivers

import (
	"github.com/PineWarbler/iosim-go/internal/simpin"
)

// Driver is the closed sum type every Module Registry entry holds. Callers
// type-switch on the concrete variant (which is already implied by the
// entry's direction) rather than calling through a duck-typed interface.
type Driver interface {
	Pin() string
	driver() // unexported: closes the set to this package
}

type base struct {
	pin *simpin.Pin
}

func (b base) Pin() string { return b.pin.Name }
func (base) driver()       {}

// SimPin exposes the backing simulated pin, for fault injection in tests.
func (b base) SimPin() *simpin.Pin { return b.pin }

// AODriver writes milliamp levels and reads back a simulated status word.
type AODriver struct{ base }

func NewAODriver(p *simpin.Pin) *AODriver { return &AODriver{base{p}} }

func (d *AODriver) WriteMA(ma float64) { d.pin.WriteMA(ma) }

// StatusWord reports (loopOpen, linkIntegrityFault).
func (d *AODriver) StatusWord() (bool, bool, error) { return d.pin.StatusWord() }

// AIDriver reads milliamp samples.
type AIDriver struct{ base }

func NewAIDriver(p *simpin.Pin) *AIDriver { return &AIDriver{base{p}} }

// ReadMA takes one simulated sample.
func (d *AIDriver) ReadMA() float64 { return d.pin.ReadMA() }

// DODriver writes a boolean output state.
type DODriver struct{ base }

func NewDODriver(p *simpin.Pin) *DODriver { return &DODriver{base{p}} }

func (d *DODriver) WriteBool(v bool) { d.pin.WriteBool(v) }

// DIDriver reads a boolean input state.
type DIDriver struct{ base }

func NewDIDriver(p *simpin.Pin) *DIDriver { return &DIDriver{base{p}} }

func (d *DIDriver) ReadBool() bool { return d.pin.ReadBool() }

// INDriver is a local indicator: off, solid on, or rapid blink. It has no
// useful reading and is never driven by a master-originated command
// (spec.md §4.6 — those are rejected upstream as a reserved channel).
type INDriver struct {
	base
	level int
}

func NewINDriver(p *simpin.Pin) *INDriver { return &INDriver{base: base{p}} }

// Indicate sets the local indicator level: 0 off, 1 solid on, 2 rapid blink.
func (d *INDriver) Indicate(level int) { d.level = level }

func (d *INDriver) Level() int { return d.level }
