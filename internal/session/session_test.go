package session

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fkcurrie/regio/internal/config"
	"github.com/fkcurrie/regio/internal/trace"
	"github.com/fkcurrie/regio/internal/types"
	"github.com/fkcurrie/regio/pkg/catalog"
	"github.com/fkcurrie/regio/pkg/mmap"
	"github.com/fkcurrie/regio/pkg/reg"
)

const lcr = 0x3F21_504C

func open(t *testing.T, edit func(c *config.Config)) *Session {
	t.Helper()
	cfg := config.DefaultConfig()
	if edit != nil {
		edit(cfg)
	}
	s, err := Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenSeedsResetValues(t *testing.T) {
	s := open(t, nil)
	require.NotNil(t, s.Sim())
	assert.Nil(t, s.Recorder())

	v, err := s.Read("SCTLR_EL1")
	require.NoError(t, err)
	assert.Equal(t, uint64(0x30D0_0800), v)

	v, err = s.Read("AUX_MU_LSR")
	require.NoError(t, err)
	assert.Equal(t, uint64(0x60), v)
}

func TestOpenSeedValues(t *testing.T) {
	s := open(t, func(c *config.Config) {
		c.Sim.Registers = map[string]types.Hex{"CNTFRQ_EL0": 54_000_000, "aux_mu_baud": 270}
	})
	v, err := s.Get("CNTFRQ_EL0", "Frequency")
	require.NoError(t, err)
	assert.Equal(t, uint64(54_000_000), v)

	v, err = s.Read("AUX_MU_BAUD")
	require.NoError(t, err)
	assert.Equal(t, uint64(270), v)

	cfg := config.DefaultConfig()
	cfg.Sim.Registers = map[string]types.Hex{"NOPE": 1}
	_, err = Open(cfg)
	assert.ErrorIs(t, err, catalog.ErrUnknownRegister)

	cfg.Sim.Registers = map[string]types.Hex{"AUX_MU_LCR": 1 << 40}
	_, err = Open(cfg)
	assert.Error(t, err)
}

func TestOpenErrors(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Backend = "jtag"
	_, err := Open(cfg)
	assert.Error(t, err)

	cfg = config.DefaultConfig()
	cfg.Catalogs = []string{filepath.Join(t.TempDir(), "missing.yaml")}
	_, err = Open(cfg)
	assert.Error(t, err)
}

func TestSetAndModify(t *testing.T) {
	s := open(t, nil)
	bus := s.Sim()
	bus.Poke(lcr, reg.Width32, 0x40)
	bus.Reset()

	written, err := s.Set("AUX_MU_LCR", "DataSize", "EightBit")
	require.NoError(t, err)
	assert.Equal(t, uint64(0x43), written)

	written, err = s.Modify("aux_mu_lcr", []string{"break=0", "DLAB=1", "DataSize=0b01"})
	require.NoError(t, err)
	assert.Equal(t, uint64(0x81), written)

	reads, writes := bus.Counts()
	assert.Equal(t, 2, reads)
	assert.Equal(t, 2, writes)

	v, err := s.Get("AUX_MU_LCR", "DataSize")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), v)
}

func TestModifyErrors(t *testing.T) {
	s := open(t, nil)

	tests := []struct {
		name    string
		reg     string
		assigns []string
		want    error
	}{
		{"unknown register", "NOPE", []string{"A=1"}, catalog.ErrUnknownRegister},
		{"unknown field", "AUX_MU_LCR", []string{"Parity=1"}, catalog.ErrUnknownField},
		{"read-only register", "AUX_MU_LSR", []string{"DataReady=1"}, catalog.ErrCapability},
		{"read-only field", "AUX_MU_IIR", []string{"InterruptID=1"}, catalog.ErrCapability},
		{"not an assignment", "AUX_MU_LCR", []string{"DLAB"}, nil},
		{"bad value", "AUX_MU_LCR", []string{"DataSize=Nine"}, nil},
		{"empty", "AUX_MU_LCR", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Modify(tt.reg, tt.assigns)
			require.Error(t, err)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestStrict(t *testing.T) {
	loose := open(t, nil)
	written, err := loose.Set("AUX_MU_LCR", "DataSize", "7")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), written)

	strict := open(t, func(c *config.Config) { c.Strict = true })
	_, err = strict.Set("AUX_MU_LCR", "DataSize", "7")
	assert.ErrorIs(t, err, reg.ErrOverflow)
}

func TestWriteAndRead(t *testing.T) {
	s := open(t, nil)
	require.NoError(t, s.Write("TTBR0_EL1", "0x0001_0000_8000_0000"))
	v, err := s.Read("TTBR0_EL1")
	require.NoError(t, err)
	assert.Equal(t, uint64(0x0001_0000_8000_0000), v)

	asid, err := s.Get("TTBR0_EL1", "ASID")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), asid)

	assert.Error(t, s.Write("TTBR0_EL1", "lots"))
	assert.ErrorIs(t, s.Write("MIDR_EL1", "1"), catalog.ErrCapability)
}

func TestTrace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.cbor")
	s := open(t, func(c *config.Config) { c.Trace.Path = path })
	require.NotNil(t, s.Recorder())

	_, err := s.Set("AUX_ENABLES", "MiniUART", "1")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	hdr, events, err := trace.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "sim", hdr.Backend)
	assert.Equal(t, "aarch64+bcm2837-aux", hdr.Catalog)
	require.Len(t, events, 2)
	assert.Equal(t, "AUX_ENABLES", events[0].Register)
	assert.Equal(t, trace.OpWrite, events[1].Op)
	assert.Equal(t, uint64(1), events[1].Value)
}

func TestDecode(t *testing.T) {
	s := open(t, nil)
	d, err := s.Register("CurrentEL")
	require.NoError(t, err)

	readings := Decode(d, 0b1000)
	require.Len(t, readings, 1)
	assert.Equal(t, "EL", readings[0].Field.Name)
	assert.Equal(t, uint64(2), readings[0].Value)
	assert.Equal(t, "EL2", readings[0].Name)
}

func TestLint(t *testing.T) {
	s := open(t, nil)
	var msgs []string
	for _, f := range s.Lint() {
		msgs = append(msgs, f.String())
	}
	assert.Contains(t, msgs, "SPSR_EL3: fields F and DAIF overlap")
	assert.Contains(t, msgs, "AUX_MU_IO: fields Transmit and Receive overlap")
}

func TestParseFieldValue(t *testing.T) {
	f := &catalog.FieldDesc{Name: "TG0", Width: 2, Values: map[string]uint64{"4KB": 0, "64KB": 1, "16KB": 2}}

	tests := []struct {
		in   string
		want uint64
	}{
		{"64KB", 1},
		{"16kb", 2},
		{"3", 3},
		{"0x2", 2},
		{"0b1", 1},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			v, err := ParseFieldValue(f, tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, v)
		})
	}

	_, err := ParseFieldValue(f, "8KB")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "4KB, 64KB, 16KB")
}

// inputBank answers at address 0 like an input gpio.Bank: reads return
// the line levels, writes are dropped and latched as an error.
type inputBank struct {
	levels uint64
	err    error
}

func (b *inputBank) ReadMemory(addr uintptr, w reg.Width) uint64 { return b.levels }

func (b *inputBank) WriteMemory(addr uintptr, w reg.Width, value uint64) {
	if b.err == nil {
		b.err = errors.New("write to input bank on gpiochip0")
	}
}

func (b *inputBank) Base() uintptr { return 0 }
func (b *inputBank) Size() uintptr { return 4 }
func (b *inputBank) Contains(addr uintptr, w reg.Width) bool {
	return addr == 0 && w == reg.Width32
}
func (b *inputBank) Close() error { return nil }

func (b *inputBank) ClearErr() error {
	err := b.err
	b.err = nil
	return err
}

func TestLineErrorsReachCaller(t *testing.T) {
	s := open(t, func(c *config.Config) {
		c.Catalogs = []string{filepath.Join("..", "..", "configs", "hub75.yaml")}
	})
	bank := &inputBank{levels: 0b1000_0000_0001}
	bus, err := mmap.NewBus(bank)
	require.NoError(t, err)
	s.Backend.Memory = bus
	s.banks = []lineErrors{bank}

	err = s.Write("HUB75_PINS", "0x3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "input bank")

	_, err = s.Set("HUB75_PINS", "OE", "Enabled")
	assert.Error(t, err)

	// The error is cleared once reported.
	v, err := s.Read("HUB75_PINS")
	require.NoError(t, err)
	assert.Equal(t, uint64(0b1000_0000_0001), v)

	oe, err := s.Get("HUB75_PINS", "OE")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), oe)
}
