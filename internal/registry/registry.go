// Package registry implements the node's Module Registry (C7): lazy,
// per-pin driver instantiation keyed by (pin, direction). Grounded
// directly on the teacher's services/hal/internal/core.ResourceRegistry
// (ClaimPin/ReleasePin, function-claim-per-pin) and its
// services/hal/internal/registry.RegisterBuilder/Lookup (type-keyed
// constructor, guarded by one mutex).
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/PineWarbler/iosim-go/internal/catalog"
	"github.com/PineWarbler/iosim-go/internal/drivers"
	"github.com/PineWarbler/iosim-go/internal/errcode"
	"github.com/PineWarbler/iosim-go/internal/simpin"
)

type slot struct {
	dir    catalog.Direction
	driver drivers.Driver
}

// Registry maps pin -> (direction, driver instance). Entries are created
// on first reference and destroyed by ReleaseAll (spec.md §3).
type Registry struct {
	mu      sync.Mutex
	entries map[string]*slot
}

func New() *Registry {
	return &Registry{entries: make(map[string]*slot)}
}

// GetOrCreate returns the driver for pin, creating it (and its backing
// simulated pin) on first reference. Spec.md §4.7 leaves a direction
// mismatch on a second claim undefined; this registry fails closed with
// errcode.PinInUse rather than silently reusing or panicking (the
// REDESIGN choice recorded for C7).
func (r *Registry) GetOrCreate(pin string, dir catalog.Direction) (drivers.Driver, error) {
	if pin == "" {
		return nil, &errcode.E{C: errcode.UnresolvedPin, Op: "registry.GetOrCreate"}
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.entries[pin]; ok {
		if s.dir != dir {
			return nil, &errcode.E{C: errcode.PinInUse, Op: "registry.GetOrCreate",
				Msg: fmt.Sprintf("pin %q already claimed as %s, cannot claim as %s", pin, s.dir, dir)}
		}
		return s.driver, nil
	}

	p := simpin.New(pin)
	var d drivers.Driver
	switch dir {
	case catalog.AO:
		d = drivers.NewAODriver(p)
	case catalog.AI:
		d = drivers.NewAIDriver(p)
	case catalog.DO:
		d = drivers.NewDODriver(p)
	case catalog.DI:
		d = drivers.NewDIDriver(p)
	case catalog.IN:
		d = drivers.NewINDriver(p)
	default:
		return nil, &errcode.E{C: errcode.UnknownCapability, Op: "registry.GetOrCreate",
			Msg: fmt.Sprintf("unknown direction %q", dir)}
	}
	r.entries[pin] = &slot{dir: dir, driver: d}
	return d, nil
}

// InputPin names one claimed pin usable as a poll-all-inputs target.
type InputPin struct {
	Pin string
	Dir catalog.Direction
}

// InputPins returns every currently claimed AI/DI pin, sorted by pin name,
// for poll-all-inputs requests (spec.md §4.5, empty `d`/`w`-type frames).
// IN pins are excluded: they are node-local indicators the executor always
// rejects as a reserved channel, which would turn every poll-all into an
// error (spec.md §8's "exactly zero error entries" nominal property).
func (r *Registry) InputPins() []InputPin {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]InputPin, 0, len(r.entries))
	for pin, s := range r.entries {
		if s.dir == catalog.AI || s.dir == catalog.DI {
			out = append(out, InputPin{Pin: pin, Dir: s.dir})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Pin < out[j].Pin })
	return out
}

// ReleaseAll destroys every registered driver, returning the pins to the
// operating system (spec.md §3, §4.7).
func (r *Registry) ReleaseAll() {
	r.mu.Lock()
	r.entries = make(map[string]*slot)
	r.mu.Unlock()
}

// Len reports how many pins currently have a claimed driver.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
