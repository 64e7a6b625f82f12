// Package entry defines the wire-level Entry, Error and Batch types and
// the length-prefixed frame codec that carries them between master and
// node: "<type>:<len>:<payload>" with a JSON payload.
package entry

import (
	"encoding/json"
	"time"
)

// Kind is an entry's channel direction tag, as it appears on the wire.
type Kind string

const (
	KindAO Kind = "ao"
	KindAI Kind = "ai"
	KindDO Kind = "do"
	KindDI Kind = "di"
	KindIN Kind = "in"
)

// NAK is the sentinel value an echoed Entry carries when the node refused
// or failed the command (spec.md GLOSSARY).
const NAK = "NAK"

// Value is a tagged union: exactly one of Num or IsNAK is meaningful.
// This replaces the dynamic string|number check in the original setters
// (spec.md §9 Design Notes) with a small closed type.
type Value struct {
	Num   float64
	IsNAK bool
}

func NumValue(n float64) Value { return Value{Num: n} }
func NAKValue() Value          { return Value{IsNAK: true} }

// MarshalJSON emits either the NAK string sentinel or the numeric value.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.IsNAK {
		return json.Marshal(NAK)
	}
	return json.Marshal(v.Num)
}

// UnmarshalJSON accepts either a JSON number or the NAK string.
func (v *Value) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		*v = NAKValue()
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*v = NumValue(f)
	return nil
}

// Entry is one timestamped command or reading (spec.md §3).
type Entry struct {
	ChType Kind
	Pin    string // "gpio_str" on the wire
	Value  Value
	Time   float64 // seconds since epoch, fractional
}

// DueTime returns Time as a time.Time for scheduler comparisons.
func (e Entry) DueTime() time.Time {
	sec := int64(e.Time)
	nsec := int64((e.Time - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}

// Severity is an Error's severity level.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityNone   Severity = "none"
)

// Error is a free-form fault report that flows only upstream, node to
// master to GUI (spec.md §3).
type Error struct {
	Source      string
	Severity    Severity
	Description string
	Time        float64
}

// Batch is the atomic unit of exchange on one connection: an ordered
// sequence of Entries plus an optional ordered sequence of Errors.
type Batch struct {
	Time    float64
	Data    []Entry
	Errors  []Error
}

// NewBatch builds a batch whose Time is stamped with the current time.
func NewBatch(data []Entry, errs []Error) Batch {
	return Batch{Time: nowSeconds(), Data: data, Errors: errs}
}

func nowSeconds() float64 {
	t := time.Now()
	return float64(t.Unix()) + float64(t.Nanosecond())/1e9
}
