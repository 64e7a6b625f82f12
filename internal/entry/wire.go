package entry

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/PineWarbler/iosim-go/internal/errcode"
)

// FrameType is the single-character frame discriminator.
type FrameType byte

const (
	// TypeData is a data batch, the normal case.
	TypeData FrameType = 'd'
	// TypeWrite is a write/poll request carrying no data.
	TypeWrite FrameType = 'w'
)

func (t FrameType) Valid() bool { return t == TypeData || t == TypeWrite }

// wireEntry mirrors the on-wire Entry JSON shape (spec.md §4.2).
type wireEntry struct {
	ChType  Kind    `json:"chType"`
	GpioStr string  `json:"gpio_str"`
	Val     Value   `json:"val"`
	Time    float64 `json:"time"`
}

// wireError mirrors the on-wire Error JSON shape.
type wireError struct {
	Source           string  `json:"source"`
	CriticalityLevel *string `json:"criticalityLevel"`
	Description      string  `json:"description"`
	Time             float64 `json:"time"`
}

// wirePayload mirrors the payload object carried by every frame.
type wirePayload struct {
	Time   float64     `json:"time"`
	Data   []wireEntry `json:"data"`
	Errors []wireError `json:"errors,omitempty"`
}

// Sanitize replaces stray double quotes with a backtick and strips
// trailing commas, applied to every free-form field before JSON emission
// (spec.md §4.2, Design Notes). A real encoder makes the quote-escaping
// moot for structural characters; this only guards the handful of
// free-text fields the wire format still carries raw.
func Sanitize(s string) string {
	s = strings.ReplaceAll(s, `"`, "`")
	s = strings.TrimRight(s, " \t")
	s = strings.TrimSuffix(s, ",")
	return s
}

func toWireEntry(e Entry) wireEntry {
	return wireEntry{ChType: e.ChType, GpioStr: e.Pin, Val: e.Value, Time: e.Time}
}

func fromWireEntry(w wireEntry) Entry {
	return Entry{ChType: w.ChType, Pin: w.GpioStr, Value: w.Val, Time: w.Time}
}

func toWireError(e Error) wireError {
	var lvl *string
	switch e.Severity {
	case SeverityHigh:
		s := "high"
		lvl = &s
	case SeverityMedium:
		s := "medium"
		lvl = &s
	}
	return wireError{
		Source:           Sanitize(e.Source),
		CriticalityLevel: lvl,
		Description:      Sanitize(e.Description),
		Time:             e.Time,
	}
}

func fromWireError(w wireError) Error {
	sev := SeverityNone
	if w.CriticalityLevel != nil {
		switch *w.CriticalityLevel {
		case "high":
			sev = SeverityHigh
		case "medium":
			sev = SeverityMedium
		}
	}
	return Error{Source: w.Source, Severity: sev, Description: w.Description, Time: w.Time}
}

// Encode frames a batch as a single "<type>:<len>:<payload>" message.
func Encode(typ FrameType, b Batch) ([]byte, error) {
	if !typ.Valid() {
		return nil, &errcode.E{C: errcode.BadFrameType, Op: "entry.Encode"}
	}
	if b.Time == 0 {
		b = NewBatch(b.Data, b.Errors)
	}
	wp := wirePayload{Time: b.Time}
	for _, e := range b.Data {
		wp.Data = append(wp.Data, toWireEntry(e))
	}
	for _, e := range b.Errors {
		wp.Errors = append(wp.Errors, toWireError(e))
	}
	payload, err := json.Marshal(wp)
	if err != nil {
		return nil, &errcode.E{C: errcode.BadPayload, Op: "entry.Encode", Err: err}
	}
	head := fmt.Sprintf("%c:%d:", typ, len(payload))
	out := make([]byte, 0, len(head)+len(payload))
	out = append(out, head...)
	out = append(out, payload...)
	return out, nil
}

// Decode reads exactly one frame from r: one type byte, a colon, decimal
// digits up to the next colon, then exactly that many payload bytes. It
// never reads past the frame. If the stream has fewer than four bytes
// available before the first colon is even found (i.e. the connection
// closed immediately), the frame is treated as empty: a zero-entry
// TypeData batch is returned (spec.md §4.2).
func Decode(r *bufio.Reader) (FrameType, Batch, error) {
	if head, err := r.Peek(4); err != nil || len(head) < 4 {
		return TypeData, Batch{Time: nowSeconds()}, nil
	}

	typByte, err := r.ReadByte()
	if err != nil {
		return TypeData, Batch{Time: nowSeconds()}, nil
	}
	colon1, err := r.ReadByte()
	if err != nil || colon1 != ':' {
		return TypeData, Batch{}, &errcode.E{C: errcode.BadFrameLen, Op: "entry.Decode",
			Msg: "missing colon after type byte"}
	}
	lenStr, err := r.ReadString(':')
	if err != nil {
		return TypeData, Batch{}, &errcode.E{C: errcode.BadFrameLen, Op: "entry.Decode", Err: err}
	}
	lenStr = strings.TrimSuffix(lenStr, ":")
	n, err := strconv.Atoi(lenStr)
	if err != nil {
		return TypeData, Batch{}, &errcode.E{C: errcode.BadFrameLen, Op: "entry.Decode", Err: err}
	}

	typ := FrameType(typByte)
	if !typ.Valid() {
		return TypeData, Batch{}, &errcode.E{C: errcode.BadFrameType, Op: "entry.Decode",
			Msg: fmt.Sprintf("unrecognized frame type %q", typByte)}
	}

	payload := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return TypeData, Batch{}, &errcode.E{C: errcode.BadPayload, Op: "entry.Decode", Err: err}
		}
	}

	if n == 0 {
		return typ, Batch{Time: nowSeconds()}, nil
	}

	var wp wirePayload
	if err := json.Unmarshal(payload, &wp); err != nil {
		return typ, Batch{}, &errcode.E{C: errcode.BadPayload, Op: "entry.Decode", Err: err}
	}

	b := Batch{Time: wp.Time}
	for _, e := range wp.Data {
		b.Data = append(b.Data, fromWireEntry(e))
	}
	for _, e := range wp.Errors {
		b.Errors = append(b.Errors, fromWireError(e))
	}
	return typ, b, nil
}
