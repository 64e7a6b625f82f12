// Package executor implements the node's Executor (C6): a single
// long-lived loop that drains the shared command queue strictly in wire
// order, dispatches each entry to its driver through the Module Registry,
// and collects value and error responses. Grounded on the teacher's
// services/hal/internal/worker.MeasureWorker — a single consumption loop
// with per-item timeouts and exception isolation — generalized from a
// timer-driven measurement poll to a straight-line per-entry dispatch,
// since spec.md's ordering guarantee forbids any overlap between entries
// (§5).
package executor

import (
	"fmt"
	"time"

	"github.com/PineWarbler/iosim-go/internal/catalog"
	"github.com/PineWarbler/iosim-go/internal/dispatch"
	"github.com/PineWarbler/iosim-go/internal/drivers"
	"github.com/PineWarbler/iosim-go/internal/entry"
	"github.com/PineWarbler/iosim-go/internal/registry"
)

// Executor consumes dispatch.NodeState's command queue.
type Executor struct {
	State    *dispatch.NodeState
	Registry *registry.Registry

	// DefaultAISamples seeds the sample count for an AI entry whose val
	// is absent or non-positive (spec.md §6, ai_LPF_boxcar_length).
	DefaultAISamples int
}

func New(state *dispatch.NodeState, reg *registry.Registry, defaultAISamples int) *Executor {
	if defaultAISamples < 1 {
		defaultAISamples = 1
	}
	return &Executor{State: state, Registry: reg, DefaultAISamples: defaultAISamples}
}

// Run processes entries until the NodeState is stopped (spec.md §4.6).
// Each entry is popped, processed, and its result/error pushed before the
// entry is marked done — the queue is not considered drained (spec.md
// §4.5 step 3) until that last step completes.
func (ex *Executor) Run() {
	for {
		e, ok := ex.State.PopFront()
		if !ok {
			return
		}
		val, errs := ex.process(e)
		for _, er := range errs {
			ex.State.PushError(er)
		}
		if val != nil {
			ex.State.PushResult(*val)
		}
		ex.State.Done()
	}
}

func (ex *Executor) process(e entry.Entry) (val *entry.Entry, errs []entry.Error) {
	defer func() {
		if r := recover(); r != nil {
			msg := entry.Sanitize(fmt.Sprintf("%v", r))
			errs = append(errs, entry.Error{
				Source:      fmt.Sprintf("%s:%s", e.ChType, e.Pin),
				Severity:    entry.SeverityHigh,
				Description: msg,
				Time:        nowSec(),
			})
			if e.ChType == entry.KindAI || e.ChType == entry.KindDI {
				v := entry.Entry{ChType: e.ChType, Pin: e.Pin, Value: entry.NAKValue(), Time: nowSec()}
				val = &v
			}
		}
	}()

	switch e.ChType {
	case entry.KindAO:
		return ex.execAO(e)
	case entry.KindAI:
		return ex.execAI(e)
	case entry.KindDO:
		return ex.execDO(e)
	case entry.KindDI:
		return ex.execDI(e)
	case entry.KindIN:
		return ex.execIN(e)
	default:
		errs = append(errs, entry.Error{
			Source: "executor", Severity: entry.SeverityHigh,
			Description: fmt.Sprintf("unknown channel type %q for pin %s", e.ChType, e.Pin),
			Time:        nowSec(),
		})
		return nil, errs
	}
}

func (ex *Executor) execAO(e entry.Entry) (*entry.Entry, []entry.Error) {
	d, err := ex.Registry.GetOrCreate(e.Pin, catalog.AO)
	if err != nil {
		return nil, []entry.Error{driverErr(e, err)}
	}
	ao := d.(*drivers.AODriver)
	ao.WriteMA(e.Value.Num)

	loopOpen, linkFault, err := ao.StatusWord()
	if err != nil {
		return nil, []entry.Error{driverErr(e, err)}
	}

	if loopOpen || linkFault {
		var errs []entry.Error
		if loopOpen {
			errs = append(errs, entry.Error{
				Source: fmt.Sprintf("ao:%s", e.Pin), Severity: entry.SeverityHigh,
				Description: fmt.Sprintf("loop open on pin %s", e.Pin), Time: nowSec(),
			})
		}
		if linkFault {
			errs = append(errs, entry.Error{
				Source: fmt.Sprintf("ao:%s", e.Pin), Severity: entry.SeverityHigh,
				Description: fmt.Sprintf("link integrity fault on pin %s", e.Pin), Time: nowSec(),
			})
		}
		v := entry.Entry{ChType: entry.KindAO, Pin: e.Pin, Value: entry.NAKValue(), Time: nowSec()}
		return &v, errs
	}

	v := entry.Entry{ChType: entry.KindAO, Pin: e.Pin, Value: entry.NumValue(e.Value.Num), Time: nowSec()}
	return &v, nil
}

func (ex *Executor) execAI(e entry.Entry) (*entry.Entry, []entry.Error) {
	d, err := ex.Registry.GetOrCreate(e.Pin, catalog.AI)
	if err != nil {
		return nil, []entry.Error{driverErr(e, err)}
	}
	ai := d.(*drivers.AIDriver)

	n := int(e.Value.Num)
	if n < 1 {
		n = ex.DefaultAISamples
	}

	sum := 0.0
	busFault := false
	for i := 0; i < n; i++ {
		sample := ai.ReadMA()
		if sample == 0 {
			busFault = true
		}
		sum += sample
	}
	mean := sum / float64(n)

	v := entry.Entry{ChType: entry.KindAI, Pin: e.Pin, Value: entry.NumValue(mean), Time: nowSec()}
	if busFault {
		return &v, []entry.Error{{
			Source: fmt.Sprintf("ai:%s", e.Pin), Severity: entry.SeverityHigh,
			Description: fmt.Sprintf("bus integrity fault on pin %s (zero-current reading)", e.Pin),
			Time:        nowSec(),
		}}
	}
	return &v, nil
}

func (ex *Executor) execDO(e entry.Entry) (*entry.Entry, []entry.Error) {
	d, err := ex.Registry.GetOrCreate(e.Pin, catalog.DO)
	if err != nil {
		return nil, []entry.Error{driverErr(e, err)}
	}
	d.(*drivers.DODriver).WriteBool(e.Value.Num != 0)
	return nil, nil
}

func (ex *Executor) execDI(e entry.Entry) (*entry.Entry, []entry.Error) {
	d, err := ex.Registry.GetOrCreate(e.Pin, catalog.DI)
	if err != nil {
		return nil, []entry.Error{driverErr(e, err)}
	}
	state := d.(*drivers.DIDriver).ReadBool()
	n := 0.0
	if state {
		n = 1
	}
	v := entry.Entry{ChType: entry.KindDI, Pin: e.Pin, Value: entry.NumValue(n), Time: nowSec()}
	return &v, nil
}

func (ex *Executor) execIN(e entry.Entry) (*entry.Entry, []entry.Error) {
	return nil, []entry.Error{{
		Source: fmt.Sprintf("in:%s", e.Pin), Severity: entry.SeverityMedium,
		Description: fmt.Sprintf("reserved channel: IN pin %s cannot be set from the master", e.Pin),
		Time:        nowSec(),
	}}
}

func driverErr(e entry.Entry, err error) entry.Error {
	return entry.Error{
		Source: fmt.Sprintf("%s:%s", e.ChType, e.Pin), Severity: entry.SeverityHigh,
		Description: entry.Sanitize(err.Error()), Time: nowSec(),
	}
}

func nowSec() float64 {
	t := time.Now()
	return float64(t.Unix()) + float64(t.Nanosecond())/1e9
}
