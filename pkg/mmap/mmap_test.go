package mmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fkcurrie/regio/pkg/reg"
)

func anon(t *testing.T, base, size uintptr) *MemoryMap {
	t.Helper()
	m, err := NewAnonymous(base, size)
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}

func TestMemoryMapWidths(t *testing.T) {
	m := anon(t, 0x3f20_0000, 0x1000)
	assert.Equal(t, uintptr(0x3f20_0000), m.Base())
	assert.Equal(t, uintptr(0x1000), m.Size())

	tests := []struct {
		name  string
		addr  uintptr
		width reg.Width
		value uint64
	}{
		{"8-bit", 0x3f20_0001, reg.Width8, 0xa5},
		{"16-bit", 0x3f20_0002, reg.Width16, 0xbeef},
		{"32-bit", 0x3f20_0004, reg.Width32, 0xdead_beef},
		{"64-bit", 0x3f20_0ff8, reg.Width64, 0x0123_4567_89ab_cdef},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m.WriteMemory(tt.addr, tt.width, tt.value)
			assert.Equal(t, tt.value, m.ReadMemory(tt.addr, tt.width))
		})
	}

	// Narrow writes truncate.
	m.WriteMemory(0x3f20_0010, reg.Width8, 0x1ff)
	assert.Equal(t, uint64(0xff), m.ReadMemory(0x3f20_0010, reg.Width8))
	assert.Equal(t, uint8(0xff), m.Region()[0x10])
}

func TestMemoryMapFaults(t *testing.T) {
	m := anon(t, 0x1000, 0x100)

	assert.Panics(t, func() { m.ReadMemory(0x0fff, reg.Width8) })
	assert.Panics(t, func() { m.ReadMemory(0x10fc, reg.Width64) })
	assert.Panics(t, func() { m.WriteMemory(0x1002, reg.Width32, 0) })
	assert.NotPanics(t, func() { m.ReadMemory(0x10fc, reg.Width32) })

	assert.True(t, m.Contains(0x10f8, reg.Width64))
	assert.False(t, m.Contains(0x1100, reg.Width8))
}

func TestMemoryMapHandles(t *testing.T) {
	m := anon(t, 0x3f21_5000, 0x100)
	r := reg.NewReadWrite[uint32](reg.MMIO(m, 0x3f21_5040))
	f := reg.MustField[uint32](4, 3)

	r.Write(0x50)
	r.Field(f).Set(2)
	assert.Equal(t, uint32(0x20), r.Read())
	assert.Equal(t, uint32(0x20), m.Read32(0x40))
}

func TestBusRouting(t *testing.T) {
	a := anon(t, 0x1000, 0x100)
	b := anon(t, 0x4000, 0x1000)
	bus, err := NewBus(b, a)
	require.NoError(t, err)
	require.Len(t, bus.Windows(), 2)
	assert.Equal(t, uintptr(0x1000), bus.Windows()[0].Base())

	bus.WriteMemory(0x1010, reg.Width32, 1)
	bus.WriteMemory(0x4010, reg.Width32, 2)
	assert.Equal(t, uint32(1), a.Read32(0x10))
	assert.Equal(t, uint32(2), b.Read32(0x10))
	assert.Equal(t, uint64(2), bus.ReadMemory(0x4010, reg.Width32))

	w, ok := bus.Window(0x40ff, reg.Width8)
	assert.True(t, ok)
	assert.Same(t, b, w)
	_, ok = bus.Window(0x2000, reg.Width8)
	assert.False(t, ok)
	assert.Panics(t, func() { bus.ReadMemory(0x2000, reg.Width32) })

	overlap := anon(t, 0x10f0, 0x100)
	assert.Error(t, bus.Add(overlap))
}

func TestEmptyWindow(t *testing.T) {
	_, err := NewAnonymous(0x1000, 0)
	assert.Error(t, err)
}
