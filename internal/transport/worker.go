// Package transport implements the master's Transport Worker (C4): a
// single long-lived background loop that drains due entries from the
// scheduler, opens a fresh one-batch-per-connection stream to the node,
// and routes the reply to the GUI result queue. Grounded on the
// teacher's services/bridge.Service.runLink supervision loop (dial, one
// exchange, backoff-and-retry) and its backoffSeq helper, adapted from a
// long-lived multiplexed link to spec.md's one-batch-per-connection
// discipline.
package transport

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"time"

	"github.com/PineWarbler/iosim-go/internal/busx"
	"github.com/PineWarbler/iosim-go/internal/entry"
	"github.com/PineWarbler/iosim-go/internal/scheduler"
)

// ResultTopic is the busx topic the worker publishes every reply entry
// and error to — the GUI result queue stand-in (spec.md §1).
var ResultTopic = busx.T("result")

// ErrorTopic carries transport-layer errors (connect failure, timeout)
// that are not tied to a specific reply frame.
var ErrorTopic = busx.T("result", "transport_error")

// Worker is the master's background transport loop.
type Worker struct {
	Addr          string
	LoopDelay     time.Duration
	SocketTimeout time.Duration
	Scheduler     *scheduler.Scheduler
	Results       *busx.Connection
}

// New constructs a Worker with the given scheduler and result publisher.
func New(addr string, sched *scheduler.Scheduler, results *busx.Connection) *Worker {
	return &Worker{
		Addr:          addr,
		LoopDelay:     100 * time.Millisecond,
		SocketTimeout: 3 * time.Second,
		Scheduler:     sched,
		Results:       results,
	}
}

// Run executes the loop described in spec.md §4.4 until ctx is cancelled.
// Entries scheduled for the future are discarded on shutdown, as required.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.LoopDelay)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		due := w.Scheduler.PopAllDue()
		if len(due) == 0 {
			continue
		}
		w.sendBatch(ctx, due)
	}
}

func (w *Worker) sendBatch(ctx context.Context, due []entry.Entry) {
	batch := entry.NewBatch(due, nil)

	dialer := net.Dialer{Timeout: w.SocketTimeout, KeepAlive: -1}
	conn, err := dialer.DialContext(ctx, "tcp", w.Addr)
	if err != nil {
		w.publishError(fmt.Sprintf("connect to %s failed: %v", w.Addr, err))
		w.requeueOutputs(due)
		return
	}
	defer conn.Close()

	if tcp, ok := conn.(*net.TCPConn); ok {
		tcp.SetNoDelay(true)
	}

	encoded, err := entry.Encode(entry.TypeData, batch)
	if err != nil {
		w.publishError(fmt.Sprintf("encode failed: %v", err))
		w.requeueOutputs(due)
		return
	}

	conn.SetDeadline(time.Now().Add(w.SocketTimeout))
	if _, err := conn.Write(encoded); err != nil {
		w.publishError(fmt.Sprintf("write to %s failed: %v", w.Addr, err))
		w.requeueOutputs(due)
		return
	}

	r := bufio.NewReader(conn)
	_, reply, err := entry.Decode(r)
	if err != nil {
		w.publishError(fmt.Sprintf("read reply from %s failed: %v", w.Addr, err))
		w.requeueOutputs(due)
		return
	}

	for _, e := range reply.Data {
		w.Results.Publish(w.Results.NewMessage(ResultTopic, e))
	}
	for _, er := range reply.Errors {
		w.Results.Publish(w.Results.NewMessage(ResultTopic, er))
	}
}

// requeueOutputs re-enqueues every output entry (AO/DO) so it can retry
// once the node returns; input-poll entries (AI/DI/IN) are discarded —
// they will be re-issued by the next poll tick (spec.md §4.4 step 6).
func (w *Worker) requeueOutputs(due []entry.Entry) {
	for _, e := range due {
		if isOutput(e.ChType) {
			w.Scheduler.Put(e)
		}
	}
}

func isOutput(k entry.Kind) bool { return k == entry.KindAO || k == entry.KindDO }

func (w *Worker) publishError(desc string) {
	e := entry.Error{Source: "transport", Severity: entry.SeverityHigh, Description: desc, Time: nowSec()}
	w.Results.Publish(w.Results.NewMessage(ErrorTopic, e))
}

func nowSec() float64 {
	t := time.Now()
	return float64(t.Unix()) + float64(t.Nanosecond())/1e9
}
