package executor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PineWarbler/iosim-go/internal/catalog"
	"github.com/PineWarbler/iosim-go/internal/dispatch"
	"github.com/PineWarbler/iosim-go/internal/drivers"
	"github.com/PineWarbler/iosim-go/internal/entry"
	"github.com/PineWarbler/iosim-go/internal/registry"
	"github.com/PineWarbler/iosim-go/internal/simpin"
)

func newExecutor() (*Executor, *dispatch.NodeState, *registry.Registry) {
	st := dispatch.NewNodeState(0)
	reg := registry.New()
	return New(st, reg, 4), st, reg
}

func TestExecAO_NominalEchoesValue(t *testing.T) {
	ex, st, _ := newExecutor()
	st.Enqueue([]entry.Entry{{ChType: entry.KindAO, Pin: "GPIO2", Value: entry.NumValue(12.0), Time: 1}})
	go ex.Run()
	st.WaitDrained()
	st.Stop()

	out, errs := st.DrainResults()
	require.Len(t, out, 1)
	assert.Empty(t, errs)
	assert.InDelta(t, 12.0, out[0].Value.Num, 1e-9)
}

func TestExecAO_LoopOpenFault(t *testing.T) {
	ex, st, reg := newExecutor()
	d, err := reg.GetOrCreate("GPIO2", catalog.AO)
	require.NoError(t, err)
	d.(*drivers.AODriver).SimPin().SetFault(simpin.FaultLoopOpen)

	go ex.Run()
	st.Enqueue([]entry.Entry{{ChType: entry.KindAO, Pin: "GPIO2", Value: entry.NumValue(12.0), Time: 1}})
	st.WaitDrained()
	st.Stop()

	out, errs := st.DrainResults()
	require.Len(t, out, 1)
	assert.True(t, out[0].Value.IsNAK)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Source, "ao")
	assert.Equal(t, entry.SeverityHigh, errs[0].Severity)
}

func TestExecAI_BusIntegrityFaultOnZeroReading(t *testing.T) {
	ex, st, reg := newExecutor()
	d, err := reg.GetOrCreate("GPIO3", catalog.AI)
	require.NoError(t, err)
	d.(*drivers.AIDriver).SimPin().SetFault(simpin.FaultBusIntegrity)

	go ex.Run()
	st.Enqueue([]entry.Entry{{ChType: entry.KindAI, Pin: "GPIO3", Value: entry.NumValue(8), Time: 1}})
	st.WaitDrained()
	st.Stop()

	out, errs := st.DrainResults()
	require.Len(t, out, 1)
	assert.Equal(t, 0.0, out[0].Value.Num)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Source, "ai")
}

func TestExecAI_NominalAverage(t *testing.T) {
	ex, st, _ := newExecutor()
	go ex.Run()
	st.Enqueue([]entry.Entry{{ChType: entry.KindAI, Pin: "GPIO9", Value: entry.NumValue(8), Time: 1}})
	st.WaitDrained()
	st.Stop()

	out, errs := st.DrainResults()
	require.Len(t, out, 1)
	assert.Empty(t, errs)
	assert.InDelta(t, 4.0, out[0].Value.Num, 1e-9) // simpin.New defaults levelMA to 4
}

func TestExecDI_ReturnsBooleanValue(t *testing.T) {
	ex, st, _ := newExecutor()
	go ex.Run()
	st.Enqueue([]entry.Entry{{ChType: entry.KindDI, Pin: "GPIO4", Value: entry.NumValue(0), Time: 1}})
	st.WaitDrained()
	st.Stop()

	out, _ := st.DrainResults()
	require.Len(t, out, 1)
	assert.Equal(t, 0.0, out[0].Value.Num)
}

func TestExecIN_ReservedChannelErrorForMasterOriginated(t *testing.T) {
	ex, st, _ := newExecutor()
	go ex.Run()
	st.Enqueue([]entry.Entry{{ChType: entry.KindIN, Pin: "GPIO6", Value: entry.NumValue(1), Time: 1}})
	st.WaitDrained()
	st.Stop()

	out, errs := st.DrainResults()
	assert.Empty(t, out)
	require.Len(t, errs, 1)
	assert.Equal(t, entry.SeverityMedium, errs[0].Severity)
}

func TestExecDO_NoValueResponse(t *testing.T) {
	ex, st, _ := newExecutor()
	go ex.Run()
	st.Enqueue([]entry.Entry{{ChType: entry.KindDO, Pin: "GPIO7", Value: entry.NumValue(1), Time: 1}})
	st.WaitDrained()
	st.Stop()

	out, errs := st.DrainResults()
	assert.Empty(t, out)
	assert.Empty(t, errs)
}
