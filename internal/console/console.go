// Package console is the master's line-oriented operator console, a
// stand-in for the out-of-scope GUI (spec.md §1). It reads commands from
// an io.Reader, tokenizes them with google/shlex (so a quoted channel
// name such as "case temp" behaves the way a shell would split it), and
// drives the scheduler and catalog the same way a GUI click handler
// would.
package console

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/shlex"
	"github.com/rs/zerolog"

	"github.com/PineWarbler/iosim-go/internal/busx"
	"github.com/PineWarbler/iosim-go/internal/catalog"
	"github.com/PineWarbler/iosim-go/internal/entry"
	"github.com/PineWarbler/iosim-go/internal/ramp"
	"github.com/PineWarbler/iosim-go/internal/scheduler"
)

// Console is the REPL driving a Catalog and Scheduler from stdin-style
// input, printing results it receives from the transport worker's result
// topic.
type Console struct {
	Catalog   *catalog.Catalog
	Scheduler *scheduler.Scheduler
	Results   *busx.Connection
	Log       zerolog.Logger

	out io.Writer
}

// New builds a Console. out receives prompt and result text; pass
// os.Stdout in cmd/master.
func New(cat *catalog.Catalog, sched *scheduler.Scheduler, results *busx.Connection, log zerolog.Logger, out io.Writer) *Console {
	return &Console{Catalog: cat, Scheduler: sched, Results: results, Log: log, out: out}
}

// WatchResults subscribes to the result topic and prints every reply
// until the subscription is closed, e.g. via conn.Disconnect(). Intended
// to run in its own goroutine.
func (c *Console) WatchResults() {
	sub := c.Results.Subscribe(busx.T("result", "#"))
	for msg := range sub.Channel() {
		switch v := msg.Payload.(type) {
		case entry.Entry:
			c.printEntry(v)
		case entry.Error:
			c.printError(v)
		}
	}
}

func (c *Console) printEntry(e entry.Entry) {
	ch := c.Catalog.ByPin(e.Pin)
	if ch == nil || e.Value.IsNAK {
		val := "NAK"
		if !e.Value.IsNAK {
			val = fmt.Sprintf("%.3f mA", e.Value.Num)
		}
		fmt.Fprintf(c.out, "<- %s %s = %s\n", e.ChType, e.Pin, val)
		return
	}
	eng, err := catalog.MaToEng(ch, e.Value.Num)
	if err != nil {
		fmt.Fprintf(c.out, "<- %s = %.3f mA (conversion error: %v)\n", ch.Name, e.Value.Num, err)
		return
	}
	fmt.Fprintf(c.out, "<- %s = %.3f %s\n", ch.Name, eng, ch.Units)
}

func (c *Console) printError(e entry.Error) {
	fmt.Fprintf(c.out, "!! [%s] %s: %s\n", e.Severity, e.Source, e.Description)
}

// Run reads commands line by line from r until EOF or a "quit" command.
func (c *Console) Run(r io.Reader) {
	scan := bufio.NewScanner(r)
	for {
		fmt.Fprint(c.out, "> ")
		if !scan.Scan() {
			return
		}
		line := scan.Text()
		if stop := c.dispatch(line); stop {
			return
		}
	}
}

func (c *Console) dispatch(line string) (stop bool) {
	tokens, err := shlex.Split(line)
	if err != nil {
		fmt.Fprintf(c.out, "parse error: %v\n", err)
		return false
	}
	if len(tokens) == 0 {
		return false
	}

	switch tokens[0] {
	case "quit", "exit":
		return true
	case "set":
		c.cmdSet(tokens[1:])
	case "ramp":
		c.cmdRamp(tokens[1:])
	case "poll":
		c.cmdPoll(tokens[1:])
	case "cancel":
		c.cmdCancel(tokens[1:])
	default:
		fmt.Fprintf(c.out, "unknown command %q (try set, ramp, poll, cancel, quit)\n", tokens[0])
	}
	return false
}

func (c *Console) resolveChannel(name string) *catalog.Channel {
	ch := c.Catalog.ByName(name)
	if ch == nil {
		fmt.Fprintf(c.out, "no such channel %q\n", name)
		return nil
	}
	if ch.Pin == "" {
		fmt.Fprintf(c.out, "channel %q has no resolved pin\n", name)
		return nil
	}
	return ch
}

func (c *Console) cmdSet(args []string) {
	if len(args) != 2 {
		fmt.Fprintln(c.out, "usage: set <channel> <value>")
		return
	}
	ch := c.resolveChannel(args[0])
	if ch == nil {
		return
	}
	x, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		fmt.Fprintf(c.out, "invalid value %q: %v\n", args[1], err)
		return
	}
	ma, err := catalog.EngToMA(ch, x)
	if err != nil {
		fmt.Fprintf(c.out, "conversion error: %v\n", err)
		return
	}
	if ch.Direction.Analog() && !catalog.ValidMA(ma) {
		fmt.Fprintf(c.out, "value %.3f %s converts to %.3f mA, out of [4,20]\n", x, ch.Units, ma)
		return
	}
	e := entry.Entry{ChType: toKind(ch.Direction), Pin: ch.Pin, Value: entry.NumValue(ma), Time: nowSec()}
	c.Scheduler.Put(e)
	fmt.Fprintf(c.out, "queued %s = %.3f mA\n", ch.Name, ma)
}

func (c *Console) cmdRamp(args []string) {
	if len(args) != 4 {
		fmt.Fprintln(c.out, "usage: ramp <channel> <start_ma> <stop_ma> <step_ma_per_s>")
		return
	}
	ch := c.resolveChannel(args[0])
	if ch == nil {
		return
	}
	start, err1 := strconv.ParseFloat(args[1], 64)
	stop, err2 := strconv.ParseFloat(args[2], 64)
	step, err3 := strconv.ParseFloat(args[3], 64)
	if err1 != nil || err2 != nil || err3 != nil {
		fmt.Fprintln(c.out, "invalid start/stop/step value")
		return
	}
	entries, err := ramp.Expand(ch, start, stop, step, time.Now())
	if err != nil {
		fmt.Fprintf(c.out, "ramp error: %v\n", err)
		return
	}
	c.Scheduler.PutAll(entries)
	fmt.Fprintf(c.out, "queued %d-step ramp on %s\n", len(entries), ch.Name)
}

func (c *Console) cmdPoll(args []string) {
	if len(args) < 1 || len(args) > 2 {
		fmt.Fprintln(c.out, "usage: poll <channel> [n]")
		return
	}
	ch := c.resolveChannel(args[0])
	if ch == nil {
		return
	}
	n := 1.0
	if len(args) == 2 {
		v, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			fmt.Fprintf(c.out, "invalid sample count %q\n", args[1])
			return
		}
		n = v
	}
	e := entry.Entry{ChType: toKind(ch.Direction), Pin: ch.Pin, Value: entry.NumValue(n), Time: nowSec()}
	c.Scheduler.Put(e)
	fmt.Fprintf(c.out, "queued poll on %s\n", ch.Name)
}

func (c *Console) cmdCancel(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(c.out, "usage: cancel <channel>")
		return
	}
	ch := c.resolveChannel(args[0])
	if ch == nil {
		return
	}
	n := c.Scheduler.RemoveByPin(ch.Pin)
	fmt.Fprintf(c.out, "cancelled %d entries on %s\n", n, ch.Name)
}

func toKind(d catalog.Direction) entry.Kind {
	switch d {
	case catalog.AO:
		return entry.KindAO
	case catalog.AI:
		return entry.KindAI
	case catalog.DO:
		return entry.KindDO
	case catalog.DI:
		return entry.KindDI
	default:
		return entry.KindIN
	}
}

func nowSec() float64 {
	t := time.Now()
	return float64(t.Unix()) + float64(t.Nanosecond())/1e9
}
