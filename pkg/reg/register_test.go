package reg_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fkcurrie/regio/internal/sim"
	"github.com/fkcurrie/regio/pkg/reg"
)

const base = 0x3f21_5000

func TestReadWrite(t *testing.T) {
	bus := sim.NewBus()
	r := reg.NewReadWrite[uint32](reg.MMIO(bus, base))

	r.Write(0xdead_beef)
	assert.Equal(t, uint32(0xdead_beef), r.Read())
	assert.Equal(t, uint64(0xdead_beef), bus.Peek(base, reg.Width32))

	reads, writes := bus.Counts()
	assert.Equal(t, 1, reads)
	assert.Equal(t, 1, writes)
}

func TestReadThenWriteSingleAccessEach(t *testing.T) {
	transforms := map[string]func(uint16) uint16{
		"identity":  func(v uint16) uint16 { return v },
		"increment": func(v uint16) uint16 { return v + 1 },
		"constant":  func(uint16) uint16 { return 0x1234 },
		"invert":    func(v uint16) uint16 { return ^v },
	}

	for name, fn := range transforms {
		t.Run(name, func(t *testing.T) {
			bus := sim.NewBus()
			bus.Poke(base, reg.Width16, 0x00f0)
			r := reg.NewReadWrite[uint16](reg.MMIO(bus, base))

			got := r.ReadThenWrite(fn)

			assert.Equal(t, fn(0x00f0), got)
			assert.Equal(t, uint64(got), bus.Peek(base, reg.Width16))
			log := bus.Log()
			require.Len(t, log, 2)
			assert.Equal(t, sim.OpRead, log[0].Op)
			assert.Equal(t, sim.OpWrite, log[1].Op)
		})
	}
}

func TestFieldRoundTrip(t *testing.T) {
	bus := sim.NewBus()
	r := reg.NewReadWrite[uint32](reg.MMIO(bus, base))

	for offset := uint(0); offset < 32; offset += 3 {
		for width := uint(1); offset+width <= 32; width += 5 {
			f := r.Field(reg.MustField[uint32](offset, width))
			for _, v := range []uint32{0, 1, 0x5555_5555, 0xaaaa_aaaa, 0xffff_ffff} {
				bus.Poke(base, reg.Width32, 0x1234_5678)
				f.Set(v)
				assert.Equal(t, v&f.Field().Max(), f.Get(), "field %s value %#x", f.Field(), v)
			}
		}
	}
}

func TestDisjointFieldsDoNotInterfere(t *testing.T) {
	bus := sim.NewBus()
	r := reg.NewReadWrite[uint64](reg.MMIO(bus, base))
	lo := r.Field(reg.MustField[uint64](0, 12))
	hi := r.Field(reg.MustField[uint64](40, 20))

	lo.Set(0xabc)
	hi.Set(0xfffff)
	assert.Equal(t, uint64(0xabc), lo.Get())
	hi.Set(0)
	assert.Equal(t, uint64(0xabc), lo.Get())
	assert.Equal(t, uint64(0xabc), bus.Peek(base, reg.Width64))
}

func TestReadWriteFieldSetIsReadModifyWrite(t *testing.T) {
	bus := sim.NewBus()
	bus.Poke(base, reg.Width32, 0xffff_0000)
	f := reg.NewReadWrite[uint32](reg.MMIO(bus, base)).Field(reg.MustField[uint32](0, 8))

	written := f.Set(0x1ab)

	assert.Equal(t, uint32(0xffff_00ab), written)
	reads, writes := bus.Counts()
	assert.Equal(t, 1, reads)
	assert.Equal(t, 1, writes)
}

func TestWriteOnlyFieldWritesZeroBase(t *testing.T) {
	bus := sim.NewBus()
	bus.Poke(base, reg.Width32, 0xffff_ffff)
	f := reg.NewWriteOnly[uint32](reg.MMIO(bus, base)).Field(reg.MustField[uint32](4, 4))

	f.Set(0x3)

	assert.Equal(t, uint64(0x30), bus.Peek(base, reg.Width32))
	reads, writes := bus.Counts()
	assert.Equal(t, 0, reads)
	assert.Equal(t, 1, writes)
}

func TestSetCheckedRejectsOverflow(t *testing.T) {
	bus := sim.NewBus()
	r := reg.NewReadWrite[uint8](reg.MMIO(bus, base))
	f := r.Field(reg.MustField[uint8](1, 2))

	err := f.SetChecked(4)
	require.Error(t, err)
	assert.True(t, errors.Is(err, reg.ErrOverflow))
	_, writes := bus.Counts()
	assert.Equal(t, 0, writes)

	require.NoError(t, f.SetChecked(3))
	assert.Equal(t, uint64(0x6), bus.Peek(base, reg.Width8))

	wo := reg.NewWriteOnly[uint8](reg.MMIO(bus, base+1)).Field(reg.MustField[uint8](0, 1))
	assert.Error(t, wo.SetChecked(2))
	require.NoError(t, wo.SetChecked(1))
	assert.Equal(t, uint64(1), bus.Peek(base+1, reg.Width8))
}

func TestBitHelpers(t *testing.T) {
	bus := sim.NewBus()
	r := reg.NewReadWrite[uint32](reg.MMIO(bus, base))

	r.SetBits(0x0000_0101)
	assert.True(t, r.HasBits(0x0000_0100))
	assert.False(t, r.HasBits(0x0000_0102))

	r.ClearBits(0x0000_0001)
	assert.Equal(t, uint32(0x0000_0100), r.Read())

	r.ReplaceBits(0x1f, 0x0f, 4)
	assert.Equal(t, uint32(0x0000_01f0), r.Read())

	assert.True(t, r.ReadOnly().HasBits(0x0000_00f0))
	r.WriteOnly().Write(7)
	assert.Equal(t, uint32(7), r.Read())
}

func TestReadOnlyField(t *testing.T) {
	bus := sim.NewBus()
	bus.Poke(base, reg.Width8, 0b0110_0000)
	ro := reg.NewReadOnly[uint8](reg.MMIO(bus, base))
	tx := ro.Field(reg.Bit[uint8](5))

	assert.Equal(t, uint8(1), tx.Get())
	assert.Equal(t, uint8(0b0110_0000), ro.Read())
	assert.Equal(t, reg.Read, ro.Permission())
}

func TestMMIOWidths(t *testing.T) {
	bus := sim.NewBus()
	bus.Poke(base, reg.Width64, 0x0807_0605_0403_0201)

	assert.Equal(t, uint8(0x01), reg.NewReadOnly[uint8](reg.MMIO(bus, base)).Read())
	assert.Equal(t, uint8(0x03), reg.NewReadOnly[uint8](reg.MMIO(bus, base+2)).Read())
	assert.Equal(t, uint16(0x0403), reg.NewReadOnly[uint16](reg.MMIO(bus, base+2)).Read())
	assert.Equal(t, uint32(0x0807_0605), reg.NewReadOnly[uint32](reg.MMIO(bus, base+4)).Read())
	assert.Equal(t, uint64(0x0807_0605_0403_0201), reg.NewReadOnly[uint64](reg.MMIO(bus, base)).Read())
}

func TestConstructionRejectsBadLocations(t *testing.T) {
	bus := sim.NewBus()

	assert.Panics(t, func() { reg.NewReadWrite[uint32](reg.MMIO(bus, base+2)) }, "misaligned")
	assert.Panics(t, func() { reg.NewReadOnly[uint32](reg.Location{}) }, "zero location")
	assert.Panics(t, func() { reg.NewReadOnly[uint32](reg.MMIO(nil, base)) }, "no primitive")
	assert.Panics(t, func() { reg.NewReadWrite[uint32](reg.System(bus, reg.AArch64(3, 0, 1, 0, 0))) }, "narrow aarch64")
	assert.Panics(t, func() { reg.NewReadWrite[uint64](reg.System(bus, reg.AArch32(15, 0, 1, 0, 0))) }, "wide aarch32")

	err := reg.MMIO(bus, base+1).Supports(reg.Width16)
	assert.True(t, errors.Is(err, reg.ErrWidth))
	assert.NoError(t, reg.MMIO(bus, base+1).Supports(reg.Width8))
}

func TestSystemRegister(t *testing.T) {
	bus := sim.NewBus()
	sctlr := reg.AArch64(3, 0, 1, 0, 0)
	r := reg.NewReadWrite[uint64](reg.System(bus, sctlr))
	m := r.Field(reg.Bit[uint64](0))
	c := r.Field(reg.Bit[uint64](2))

	bus.PokeSystem(sctlr, 0x30d0_0800)
	r.Modify(m.Field().Val(1), c.Field().Val(1))

	assert.Equal(t, uint64(0x30d0_0805), bus.PeekSystem(sctlr))
	assert.True(t, r.Location().IsSystem())
	assert.Equal(t, sctlr, r.Location().ID())

	log := bus.Log()
	require.Len(t, log, 2)
	assert.True(t, log[0].System)
	assert.Equal(t, reg.Width64, log[1].Width)
}

func TestSysRegID(t *testing.T) {
	id := reg.AArch64(3, 3, 14, 0, 2)
	assert.Equal(t, "S3_3_C14_C0_2", id.String())
	assert.False(t, id.IsAArch32())
	assert.Equal(t, reg.Width64, id.NativeWidth())

	cp := reg.AArch32(15, 0, 1, 0, 0)
	assert.Equal(t, "p15_0_c1_c0_0", cp.String())
	assert.True(t, cp.IsAArch32())
	assert.Equal(t, reg.Width32, cp.NativeWidth())
	assert.NotEqual(t, reg.AArch64(3, 0, 1, 0, 0), cp)
}

func TestPermission(t *testing.T) {
	assert.True(t, reg.RW.Includes(reg.Read))
	assert.True(t, reg.RW.Includes(reg.Write))
	assert.False(t, reg.Read.Includes(reg.Write))
	assert.Equal(t, "rw", reg.RW.String())
	assert.Equal(t, reg.Width16, reg.WidthOf[uint16]())
	assert.Equal(t, uint64(0xffff), reg.Width16.Mask())
	assert.Equal(t, ^uint64(0), reg.Width64.Mask())
}

func TestZeroHandlePanics(t *testing.T) {
	msg := "reg: invalid register location: zero location, use a New constructor"
	assert.PanicsWithValue(t, msg, func() { reg.ReadOnly[uint32]{}.Read() })
	assert.PanicsWithValue(t, msg, func() { reg.WriteOnly[uint32]{}.Write(1) })
	assert.PanicsWithValue(t, msg, func() { reg.ReadWrite[uint64]{}.SetBits(1) })
}
