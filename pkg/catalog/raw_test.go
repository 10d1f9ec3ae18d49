package catalog_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fkcurrie/regio/internal/sim"
	"github.com/fkcurrie/regio/pkg/catalog"
	"github.com/fkcurrie/regio/pkg/reg"
)

func newRaw(t *testing.T) (*catalog.Catalog, *sim.Bus, catalog.Backend) {
	t.Helper()
	bus := sim.NewBus()
	return mustParse(t), bus, catalog.Backend{Memory: bus, System: bus}
}

func TestReadWriteRaw(t *testing.T) {
	c, bus, b := newRaw(t)

	tests := []struct {
		name  string
		value uint64
	}{
		{"CTRL", 0xdead_beef},
		{"SCRATCH", 0x0123_4567_89ab_cdef},
		{"TIMER_FREQ", 54_000_000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := c.Get(tt.name)
			require.NoError(t, err)
			require.NoError(t, catalog.WriteRaw(d, b, tt.value))
			got, err := catalog.ReadRaw(d, b)
			require.NoError(t, err)
			assert.Equal(t, tt.value, got)
		})
	}

	data, _ := c.Lookup("DATA")
	require.NoError(t, catalog.WriteRaw(data, b, 0x41))
	assert.Equal(t, uint64(0x41), bus.Peek(0x1004, reg.Width8))
	_, err := catalog.ReadRaw(data, b)
	assert.ErrorIs(t, err, catalog.ErrCapability)

	err = catalog.WriteRaw(data, b, 0x141)
	assert.ErrorIs(t, err, reg.ErrOverflow)

	stat, _ := c.Lookup("STAT")
	bus.Poke(0x1008, reg.Width16, 1)
	v, err := catalog.ReadRaw(stat, b)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), v)
	assert.ErrorIs(t, catalog.WriteRaw(stat, b, 0), catalog.ErrCapability)
}

func TestFieldRaw(t *testing.T) {
	c, bus, b := newRaw(t)
	ctrl, _ := c.Lookup("CTRL")
	bus.Poke(0x1000, reg.Width32, 0xffff_ff00)

	written, err := catalog.SetFieldRaw(ctrl, b, "MODE", 5, false)
	require.NoError(t, err)
	assert.Equal(t, uint64(0xffff_ff0a), written)

	got, err := catalog.ReadFieldRaw(ctrl, b, "MODE")
	require.NoError(t, err)
	assert.Equal(t, uint64(5), got)

	// 9 is 0b1001, only the low three bits land.
	written, err = catalog.SetFieldRaw(ctrl, b, "MODE", 9, false)
	require.NoError(t, err)
	assert.Equal(t, uint64(0xffff_ff02), written)

	bus.Reset()
	_, err = catalog.SetFieldRaw(ctrl, b, "MODE", 9, true)
	assert.ErrorIs(t, err, reg.ErrOverflow)
	reads, writes := bus.Counts()
	assert.Zero(t, reads)
	assert.Zero(t, writes)

	_, err = catalog.SetFieldRaw(ctrl, b, "STATUS", 1, false)
	assert.ErrorIs(t, err, catalog.ErrCapability)
	_, err = catalog.ReadFieldRaw(ctrl, b, "NOPE")
	assert.ErrorIs(t, err, catalog.ErrUnknownField)
}

func TestFieldRawWriteOnly(t *testing.T) {
	c, bus, b := newRaw(t)
	data, _ := c.Lookup("DATA")
	bus.Poke(0x1004, reg.Width8, 0xf0)

	written, err := catalog.SetFieldRaw(data, b, "LOW", 0x3, false)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x03), written)
	assert.Equal(t, uint64(0x03), bus.Peek(0x1004, reg.Width8))

	reads, writes := bus.Counts()
	assert.Zero(t, reads)
	assert.Equal(t, 1, writes)

	_, err = catalog.ReadFieldRaw(data, b, "LOW")
	assert.ErrorIs(t, err, catalog.ErrCapability)
}

func TestModifyRaw(t *testing.T) {
	c, bus, b := newRaw(t)
	ctrl, _ := c.Lookup("CTRL")
	bus.Poke(0x1000, reg.Width32, 0x50)

	written, err := catalog.ModifyRaw(ctrl, b, []catalog.Assignment{
		{Field: "EN", Value: 1},
		{Field: "MODE", Value: 7},
		{Field: "MODE", Value: 2},
	}, false)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x55), written)

	reads, writes := bus.Counts()
	assert.Equal(t, 1, reads)
	assert.Equal(t, 1, writes)

	_, err = catalog.ModifyRaw(ctrl, b, []catalog.Assignment{{Field: "EN", Value: 1}, {Field: "NOPE"}}, false)
	assert.ErrorIs(t, err, catalog.ErrUnknownField)
	reads, writes = bus.Counts()
	assert.Equal(t, 1, reads)
	assert.Equal(t, 1, writes)
}
