package dispatch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PineWarbler/iosim-go/internal/entry"
)

func TestPopFront_BlocksUntilEnqueued(t *testing.T) {
	ns := NewNodeState(0)
	done := make(chan entry.Entry, 1)
	go func() {
		e, ok := ns.PopFront()
		if ok {
			done <- e
		}
	}()

	select {
	case <-done:
		t.Fatal("PopFront returned before anything was enqueued")
	case <-time.After(20 * time.Millisecond):
	}

	ns.Enqueue([]entry.Entry{{ChType: entry.KindAO, Pin: "GPIO2", Time: 1}})
	select {
	case e := <-done:
		assert.Equal(t, "GPIO2", e.Pin)
	case <-time.After(time.Second):
		t.Fatal("PopFront never returned after Enqueue")
	}
}

func TestPopFront_FIFOOrder(t *testing.T) {
	ns := NewNodeState(0)
	ns.Enqueue([]entry.Entry{
		{ChType: entry.KindAO, Pin: "A", Time: 1},
		{ChType: entry.KindAO, Pin: "B", Time: 2},
	})
	e1, ok := ns.PopFront()
	require.True(t, ok)
	e2, ok := ns.PopFront()
	require.True(t, ok)
	assert.Equal(t, "A", e1.Pin)
	assert.Equal(t, "B", e2.Pin)
}

func TestWaitDrained_ReturnsImmediatelyWhenEmpty(t *testing.T) {
	ns := NewNodeState(0)
	done := make(chan struct{})
	go func() { ns.WaitDrained(); close(done) }()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WaitDrained blocked on an empty queue")
	}
}

func TestWaitDrained_StaysBlockedWhilePoppedEntryStillInFlight(t *testing.T) {
	ns := NewNodeState(0)
	ns.Enqueue([]entry.Entry{{ChType: entry.KindDO, Pin: "X", Time: 1}})

	drained := make(chan struct{})
	go func() { ns.WaitDrained(); close(drained) }()

	select {
	case <-drained:
		t.Fatal("WaitDrained returned before the queue was drained")
	case <-time.After(20 * time.Millisecond):
	}

	_, ok := ns.PopFront()
	require.True(t, ok)

	// The queue is empty but the popped entry has not been marked Done
	// yet — WaitDrained must still block (this is the fix for the race
	// where a reply could be sent before the last entry's result/error
	// was pushed).
	select {
	case <-drained:
		t.Fatal("WaitDrained unblocked before the in-flight entry was marked Done")
	case <-time.After(20 * time.Millisecond):
	}

	ns.Done()

	select {
	case <-drained:
	case <-time.After(time.Second):
		t.Fatal("WaitDrained never unblocked after Done")
	}
}

func TestWaitDrained_UnblocksOnlyAfterResultPushedAndDone(t *testing.T) {
	ns := NewNodeState(0)
	ns.Enqueue([]entry.Entry{{ChType: entry.KindAO, Pin: "GPIO2", Value: entry.NumValue(12), Time: 1}})

	drained := make(chan struct{})
	go func() { ns.WaitDrained(); close(drained) }()

	e, ok := ns.PopFront()
	require.True(t, ok)
	ns.PushResult(entry.Entry{ChType: e.ChType, Pin: e.Pin, Value: e.Value, Time: e.Time})
	ns.Done()

	select {
	case <-drained:
	case <-time.After(time.Second):
		t.Fatal("WaitDrained never unblocked")
	}

	out, _ := ns.DrainResults()
	require.Len(t, out, 1, "the result pushed before Done must be visible once drained")
}

func TestStop_UnblocksPopFrontAndWaitDrained(t *testing.T) {
	ns := NewNodeState(0)
	ns.Enqueue([]entry.Entry{{ChType: entry.KindAI, Pin: "Y", Time: 1}})

	popDone := make(chan bool, 1)
	go func() {
		_, ok := ns.PopFront()
		popDone <- ok
	}()

	ns.Stop()

	select {
	case ok := <-popDone:
		_ = ok
	case <-time.After(time.Second):
		t.Fatal("PopFront never returned after Stop")
	}

	_, ok := ns.PopFront()
	assert.False(t, ok)

	// The popped entry is still in flight (never marked Done), so only
	// Stop can release WaitDrained here.
	drained := make(chan struct{})
	go func() { ns.WaitDrained(); close(drained) }()
	select {
	case <-drained:
	case <-time.After(time.Second):
		t.Fatal("Stop did not unblock WaitDrained")
	}
}

func TestPushResultAndError_DrainResultsReturnsAndClears(t *testing.T) {
	ns := NewNodeState(0)
	ns.PushResult(entry.Entry{ChType: entry.KindAO, Pin: "Z", Time: 1})
	ns.PushError(entry.Error{Source: "ao:Z", Severity: entry.SeverityHigh, Time: 1})

	out, errs := ns.DrainResults()
	require.Len(t, out, 1)
	require.Len(t, errs, 1)

	out2, errs2 := ns.DrainResults()
	assert.Empty(t, out2)
	assert.Empty(t, errs2)
}

func TestPushError_TrimsToMaxLen(t *testing.T) {
	ns := NewNodeState(2)
	for i := 0; i < 5; i++ {
		ns.PushError(entry.Error{Source: "x", Time: float64(i)})
	}
	_, errs := ns.DrainResults()
	require.Len(t, errs, 2)
	assert.Equal(t, float64(3), errs[0].Time)
	assert.Equal(t, float64(4), errs[1].Time)
}

func TestQueueLen_ReflectsPendingEntries(t *testing.T) {
	ns := NewNodeState(0)
	assert.Equal(t, 0, ns.QueueLen())
	ns.Enqueue([]entry.Entry{{ChType: entry.KindDO, Pin: "A", Time: 1}, {ChType: entry.KindDO, Pin: "B", Time: 2}})
	assert.Equal(t, 2, ns.QueueLen())
}
