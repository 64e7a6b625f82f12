// Package ramp expands a linear milliamp sweep into an eager sequence of
// timestamped entries. It is grounded on x/ramp.StartLinear's step-size
// arithmetic, generalized from a caller-driven synchronous tick loop (used
// on an embedded target to drive a PWM level over real time) to an eager
// generator appropriate for a scheduler that never blocks: every step of
// the sweep is produced up front with an absolute due-time, rather than
// being stepped by a Tick callback.
package ramp

import (
	"fmt"
	"time"

	"github.com/PineWarbler/iosim-go/internal/catalog"
	"github.com/PineWarbler/iosim-go/internal/entry"
	"github.com/PineWarbler/iosim-go/internal/errcode"
)

// Expand produces the arithmetic sequence of milliamp values from
// startMA to stopMA in steps of stepMA, one second apart starting at
// now, inclusive of stopMA (spec.md §4.3). If sign(step) does not match
// sign(stop-start), the step is silently inverted. Every produced value
// is validated with catalog.ValidMA; the first out-of-range value aborts
// the whole expansion with no partial result.
func Expand(ch *catalog.Channel, startMA, stopMA, stepMA float64, now time.Time) ([]entry.Entry, error) {
	if stepMA == 0 {
		return nil, &errcode.E{C: errcode.ZeroStep, Op: "ramp.Expand",
			Msg: fmt.Sprintf("channel %q: step must be non-zero", ch.Name)}
	}
	if !ch.Direction.Analog() {
		return nil, &errcode.E{C: errcode.InvalidParams, Op: "ramp.Expand",
			Msg: fmt.Sprintf("channel %q: ramps apply only to AO/AI channels", ch.Name)}
	}
	if ch.Pin == "" {
		return nil, &errcode.E{C: errcode.UnresolvedPin, Op: "ramp.Expand",
			Msg: fmt.Sprintf("channel %q has no resolved pin", ch.Name)}
	}

	span := stopMA - startMA
	step := stepMA
	if sign(step) != sign(span) && span != 0 {
		step = -step
	}

	var values []float64
	if span == 0 {
		values = []float64{startMA}
	} else {
		v := startMA
		for between(v, startMA, stopMA) && v != stopMA {
			values = append(values, v)
			v += step
		}
		values = append(values, stopMA)
	}

	entries := make([]entry.Entry, 0, len(values))
	nowSec := float64(now.Unix()) + float64(now.Nanosecond())/1e9
	for i, v := range values {
		if !catalog.ValidMA(v) {
			return nil, &errcode.E{C: errcode.OutOfRangeMA, Op: "ramp.Expand",
				Msg: fmt.Sprintf("channel %q: ramp value %.3f mA out of [4,20]", ch.Name, v)}
		}
		entries = append(entries, entry.Entry{
			ChType: toKind(ch.Direction),
			Pin:    ch.Pin,
			Value:  entry.NumValue(v),
			Time:   nowSec + float64(i),
		})
	}
	return entries, nil
}

func sign(x float64) int {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return 0
	}
}

func between(v, a, b float64) bool {
	if a <= b {
		return v >= a && v < b || v == a
	}
	return v <= a && v > b || v == a
}

func toKind(d catalog.Direction) entry.Kind {
	switch d {
	case catalog.AO:
		return entry.KindAO
	case catalog.AI:
		return entry.KindAI
	default:
		return entry.KindAO
	}
}
