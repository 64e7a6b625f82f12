package drivers

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/PineWarbler/iosim-go/internal/simpin"
)

func TestAODriver_WriteMAAndStatusWord(t *testing.T) {
	p := simpin.New("GPIO2")
	ao := NewAODriver(p)
	ao.WriteMA(12)

	loopOpen, linkFault, err := ao.StatusWord()
	assert.NoError(t, err)
	assert.False(t, loopOpen)
	assert.False(t, linkFault)
	assert.Equal(t, "GPIO2", ao.Pin())
}

func TestAODriver_SimPinReflectsInjectedFault(t *testing.T) {
	p := simpin.New("GPIO2")
	ao := NewAODriver(p)
	ao.SimPin().SetFault(simpin.FaultLoopOpen)

	loopOpen, linkFault, err := ao.StatusWord()
	assert.NoError(t, err)
	assert.True(t, loopOpen)
	assert.False(t, linkFault)
}

func TestAIDriver_ReadMA(t *testing.T) {
	p := simpin.New("GPIO3")
	p.WriteMA(8)
	ai := NewAIDriver(p)
	assert.InDelta(t, 8.0, ai.ReadMA(), 1e-9)
}

func TestDODriver_WriteBoolPersistsOnPin(t *testing.T) {
	p := simpin.New("GPIO7")
	do := NewDODriver(p)
	do.WriteBool(true)
	di := NewDIDriver(p)
	assert.True(t, di.ReadBool())
}

func TestINDriver_IndicateTracksLevel(t *testing.T) {
	p := simpin.New("GPIO6")
	in := NewINDriver(p)
	assert.Equal(t, 0, in.Level())
	in.Indicate(2)
	assert.Equal(t, 2, in.Level())
}
