// Package errcode provides a stable, wire-facing error identifier shared by
// every component in the simulator, master and node alike.
package errcode

// Code is a stable, bus-facing error identifier.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes.
const (
	OK    Code = "ok"
	Busy  Code = "busy"
	Error Code = "error" // generic fallback

	// Validation errors (rejected at the enqueue boundary, spec.md §7).
	InvalidParams  Code = "invalid_params"
	InvalidPayload Code = "invalid_payload"
	OutOfRangeMA   Code = "out_of_range_ma"
	ZeroStep       Code = "zero_step"
	UnresolvedPin  Code = "unresolved_pin"
	ZeroSpan       Code = "zero_span"

	// Registry errors (C7).
	UnknownPin Code = "unknown_pin"
	PinInUse   Code = "pin_in_use"

	// Protocol errors (C2, not retried).
	BadFrameType Code = "bad_frame_type"
	BadFrameLen  Code = "bad_frame_len"
	BadPayload   Code = "bad_payload"

	// Transport errors (C4, retried for outputs only).
	ConnectFailed Code = "connect_failed"
	Timeout       Code = "timeout"

	// Driver errors (C6, per-entry, do not abort the batch).
	LoopOpen            Code = "ao_loop_open"
	LinkIntegrityFault  Code = "ao_link_integrity_fault"
	BusIntegrityFault   Code = "ai_bus_integrity_fault"
	ReservedChannel     Code = "in_reserved_channel"
	UnknownCapability   Code = "unknown_capability"
	UnsupportedVerb     Code = "unsupported_verb"
)

// E wraps a Code with free-form operator context and an optional cause,
// for components that want to keep both a stable code and a human message.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	if e.Msg != "" {
		return string(e.C) + ": " + e.Msg
	}
	return string(e.C)
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Of extracts a Code from an error, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	if c, ok := err.(Code); ok {
		return c
	}
	type coder interface{ Code() Code }
	if x, ok := err.(coder); ok {
		return x.Code()
	}
	return Error
}
