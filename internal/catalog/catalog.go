// Package catalog defines the channel catalog: the read-only mapping from
// logical channel names to their direction, range, calibration, and
// resolved pin, plus the engineering-unit <-> milliamp conversions that
// every other component builds on.
package catalog

import (
	"fmt"

	"golang.org/x/exp/constraints"

	"github.com/PineWarbler/iosim-go/internal/errcode"
)

// Clamp limits v to [lo, hi], swapping bounds if given in the wrong order.
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if hi < lo {
		lo, hi = hi, lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Between reports lo <= v && v <= hi, order-insensitive.
func Between[T constraints.Ordered](v, lo, hi T) bool {
	if hi < lo {
		lo, hi = hi, lo
	}
	return v >= lo && v <= hi
}

// Direction is a channel's signal direction.
type Direction string

const (
	AO Direction = "ao"
	AI Direction = "ai"
	DO Direction = "do"
	DI Direction = "di"
	IN Direction = "in"
)

func (d Direction) Analog() bool { return d == AO || d == AI }

// Channel is one catalog entry. Immutable after Load.
type Channel struct {
	Name        string
	Slot        string
	Pin         string // empty if the slot did not resolve
	Direction   Direction
	Units       string
	EngLow      float64
	EngHigh     float64
	CalibSlope  float64 // 0 means "no calibration applied" unless CalibSet
	CalibOffset float64
	CalibSet    bool
	ShowOnGUI   bool
}

func (c *Channel) hasPin() bool { return c.Pin != "" }

// Record is the raw, JSON-shaped channel definition as read from the
// master's config file (spec.md §6).
type Record struct {
	Name                       string  `json:"name"`
	BoardSlotPosition          string  `json:"boardSlotPosition"`
	SigType                    string  `json:"sig_type"`
	EngineeringUnits           string  `json:"engineeringUnits"`
	EngineeringUnitsLowAmount  float64 `json:"engineeringUnitsLowAmount"`
	EngineeringUnitsHighAmount float64 `json:"engineeringUnitsHighAmount"`
	ShowOnGUI                  bool    `json:"showOnGUI"`
	OffsetCalibConstant        *float64 `json:"offset_calib_constant,omitempty"`
	SlopeCalibConstant         *float64 `json:"slope_calib_constant,omitempty"`
}

// SlotTable resolves an opaque slot key to a pin name. It is a fixed part
// of the catalog, analogous to a board's physical wiring table.
type SlotTable map[string]string

// DefaultSlotTable is the built-in slot -> pin wiring for this simulator.
// Slots not present here leave their channel's Pin unresolved.
var DefaultSlotTable = SlotTable{
	"1": "GPIO2", "2": "GPIO3", "3": "GPIO4", "4": "GPIO5",
	"5": "GPIO6", "6": "GPIO7", "7": "GPIO8", "8": "GPIO9",
	"9": "GPIO10", "10": "GPIO11", "11": "GPIO12", "12": "GPIO13",
	"13": "GPIO14", "14": "GPIO15", "15": "GPIO16", "16": "GPIO17",
}

// Catalog is the read-only channel set built once at Load.
type Catalog struct {
	channels []Channel
	byName   map[string]*Channel
	byPin    map[string]*Channel
}

// Load builds a Catalog from config records, resolving slots through the
// slot table. A record whose slot does not resolve still produces a
// channel — its Pin is left empty so enqueues against it fail with a
// readable message rather than the process refusing to start (spec.md §7,
// Configuration errors).
func Load(records []Record, slots SlotTable) (*Catalog, error) {
	if slots == nil {
		slots = DefaultSlotTable
	}
	cat := &Catalog{
		byName: make(map[string]*Channel, len(records)),
		byPin:  make(map[string]*Channel, len(records)),
	}
	cat.channels = make([]Channel, len(records))
	for i, r := range records {
		dir := Direction(r.SigType)
		ch := Channel{
			Name:      r.Name,
			Slot:      r.BoardSlotPosition,
			Pin:       slots[r.BoardSlotPosition],
			Direction: dir,
			Units:     r.EngineeringUnits,
			EngLow:    r.EngineeringUnitsLowAmount,
			EngHigh:   r.EngineeringUnitsHighAmount,
			ShowOnGUI: r.ShowOnGUI,
		}
		if r.SlopeCalibConstant != nil || r.OffsetCalibConstant != nil {
			ch.CalibSet = true
			if r.SlopeCalibConstant != nil {
				ch.CalibSlope = *r.SlopeCalibConstant
			}
			if r.OffsetCalibConstant != nil {
				ch.CalibOffset = *r.OffsetCalibConstant
			}
		}
		if dir == AO || dir == AI {
			if ch.EngLow == ch.EngHigh {
				return nil, &errcode.E{C: errcode.ZeroSpan, Op: "catalog.Load",
					Msg: fmt.Sprintf("channel %q has zero-span range", ch.Name)}
			}
		}
		cat.channels[i] = ch
		cp := &cat.channels[i]
		cat.byName[ch.Name] = cp
		if cp.hasPin() {
			cat.byPin[cp.Pin] = cp
		}
	}
	return cat, nil
}

// ByName returns the channel with the given name, or nil.
func (c *Catalog) ByName(name string) *Channel { return c.byName[name] }

// ByPin returns the channel resolved to the given pin, or nil.
func (c *Catalog) ByPin(pin string) *Channel { return c.byPin[pin] }

// All returns every channel in catalog order.
func (c *Catalog) All() []Channel { return c.channels }

// ValidMA reports 4 <= m <= 20.
func ValidMA(m float64) bool { return Between(m, 4, 20) }

// EngToMA converts an engineering-unit value to its on-wire milliamp value.
// AO/AI channels use the linear 4-20mA map; DO/DI truncate to an integer.
func EngToMA(ch *Channel, x float64) (float64, error) {
	switch ch.Direction {
	case AO, AI:
		span := ch.EngHigh - ch.EngLow
		if span == 0 {
			return 0, &errcode.E{C: errcode.ZeroSpan, Op: "catalog.EngToMA",
				Msg: fmt.Sprintf("channel %q has eng_low == eng_high", ch.Name)}
		}
		return 4 + (x-ch.EngLow)*16/span, nil
	case DO, DI:
		return float64(int64(x)), nil
	default:
		return float64(int64(x)), nil
	}
}

// MaToEng is the inverse of EngToMA, applying calibration first when set.
func MaToEng(ch *Channel, m float64) (float64, error) {
	if ch.CalibSet {
		m = ch.CalibSlope*m + ch.CalibOffset
	}
	switch ch.Direction {
	case AO, AI:
		span := ch.EngHigh - ch.EngLow
		if span == 0 {
			return 0, &errcode.E{C: errcode.ZeroSpan, Op: "catalog.MaToEng",
				Msg: fmt.Sprintf("channel %q has eng_low == eng_high", ch.Name)}
		}
		return ch.EngLow + (m-4)*span/16, nil
	case DO, DI:
		return m, nil
	default:
		return m, nil
	}
}

// ValidEng reports whether x converts to an in-range milliamp value.
func ValidEng(ch *Channel, x float64) bool {
	m, err := EngToMA(ch, x)
	if err != nil {
		return false
	}
	return ValidMA(m)
}

// RateEngToMA converts an engineering-units-per-second rate to a
// milliamps-per-second step, for ramp expansion (§4.3).
func RateEngToMA(ch *Channel, r float64) (float64, error) {
	span := ch.EngHigh - ch.EngLow
	if span == 0 {
		return 0, &errcode.E{C: errcode.ZeroSpan, Op: "catalog.RateEngToMA",
			Msg: fmt.Sprintf("channel %q has eng_low == eng_high", ch.Name)}
	}
	return 16 * r / span, nil
}
