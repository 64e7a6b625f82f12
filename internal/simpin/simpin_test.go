package simpin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadMA_RoundTrips(t *testing.T) {
	p := New("GPIO2")
	p.WriteMA(12.5)
	assert.InDelta(t, 12.5, p.ReadMA(), 1e-9)
}

func TestReadMA_ReturnsZeroOnBusIntegrityFault(t *testing.T) {
	p := New("GPIO2")
	p.WriteMA(12.5)
	p.SetFault(FaultBusIntegrity)
	assert.Equal(t, 0.0, p.ReadMA())
}

func TestWriteReadBool_RoundTrips(t *testing.T) {
	p := New("GPIO7")
	p.WriteBool(true)
	assert.True(t, p.ReadBool())
}

func TestStatusWord_NoFaultReportsClean(t *testing.T) {
	p := New("GPIO2")
	loopOpen, linkIntegrity, err := p.StatusWord()
	require.NoError(t, err)
	assert.False(t, loopOpen)
	assert.False(t, linkIntegrity)
}

func TestStatusWord_ReportsInjectedLoopOpen(t *testing.T) {
	p := New("GPIO2")
	p.SetFault(FaultLoopOpen)
	loopOpen, linkIntegrity, err := p.StatusWord()
	require.NoError(t, err)
	assert.True(t, loopOpen)
	assert.False(t, linkIntegrity)
}

func TestStatusWord_ReportsInjectedLinkIntegrity(t *testing.T) {
	p := New("GPIO2")
	p.SetFault(FaultLinkIntegrity)
	loopOpen, linkIntegrity, err := p.StatusWord()
	require.NoError(t, err)
	assert.False(t, loopOpen)
	assert.True(t, linkIntegrity)
}

func TestTx_IgnoresNonStatusAddress(t *testing.T) {
	p := New("GPIO2")
	p.SetFault(FaultLoopOpen)
	buf := []byte{0xFF}
	err := p.Tx(0x99, nil, buf)
	require.NoError(t, err)
	assert.Equal(t, byte(0xFF), buf[0], "non-status address must not be touched")
}
