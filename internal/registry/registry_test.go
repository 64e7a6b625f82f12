package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PineWarbler/iosim-go/internal/catalog"
	"github.com/PineWarbler/iosim-go/internal/drivers"
	"github.com/PineWarbler/iosim-go/internal/errcode"
)

func TestGetOrCreate_SameDirectionReturnsSameDriver(t *testing.T) {
	r := New()
	d1, err := r.GetOrCreate("GPIO2", catalog.AO)
	require.NoError(t, err)
	d2, err := r.GetOrCreate("GPIO2", catalog.AO)
	require.NoError(t, err)
	assert.Same(t, d1, d2)
	assert.Equal(t, 1, r.Len())
}

func TestGetOrCreate_DirectionMismatchFailsClosed(t *testing.T) {
	r := New()
	_, err := r.GetOrCreate("GPIO2", catalog.AO)
	require.NoError(t, err)

	_, err = r.GetOrCreate("GPIO2", catalog.DI)
	require.Error(t, err)
	assert.Equal(t, errcode.PinInUse, errcode.Of(err))
}

func TestGetOrCreate_EachDirectionYieldsExpectedType(t *testing.T) {
	cases := []struct {
		dir  catalog.Direction
		want any
	}{
		{catalog.AO, &drivers.AODriver{}},
		{catalog.AI, &drivers.AIDriver{}},
		{catalog.DO, &drivers.DODriver{}},
		{catalog.DI, &drivers.DIDriver{}},
		{catalog.IN, &drivers.INDriver{}},
	}
	for i, c := range cases {
		r := New()
		pin := "GPIO" + string(rune('A'+i))
		d, err := r.GetOrCreate(pin, c.dir)
		require.NoError(t, err)
		assert.IsType(t, c.want, d)
	}
}

func TestGetOrCreate_EmptyPinFails(t *testing.T) {
	r := New()
	_, err := r.GetOrCreate("", catalog.AO)
	assert.Error(t, err)
}

func TestReleaseAll_ClearsRegistry(t *testing.T) {
	r := New()
	_, _ = r.GetOrCreate("GPIO2", catalog.AO)
	r.ReleaseAll()
	assert.Equal(t, 0, r.Len())
}

func TestInputPins_ReturnsOnlyAIDISortedByPin(t *testing.T) {
	r := New()
	_, err := r.GetOrCreate("GPIO9", catalog.DI)
	require.NoError(t, err)
	_, err = r.GetOrCreate("GPIO3", catalog.AI)
	require.NoError(t, err)
	_, err = r.GetOrCreate("GPIO2", catalog.AO)
	require.NoError(t, err)
	_, err = r.GetOrCreate("GPIO6", catalog.IN)
	require.NoError(t, err)

	inputs := r.InputPins()
	require.Len(t, inputs, 2)
	assert.Equal(t, "GPIO3", inputs[0].Pin)
	assert.Equal(t, catalog.AI, inputs[0].Dir)
	assert.Equal(t, "GPIO9", inputs[1].Pin)
	assert.Equal(t, catalog.DI, inputs[1].Dir)
}

func TestInputPins_EmptyWhenNothingClaimed(t *testing.T) {
	r := New()
	assert.Empty(t, r.InputPins())
}
