package catalog

import (
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/fkcurrie/regio/pkg/reg"
)

// RawCatalog is a catalog file as written in YAML.
type RawCatalog struct {
	Name        string          `yaml:"name"`
	Description string          `yaml:"description"`
	Peripherals []RawPeripheral `yaml:"peripherals"`
	Registers   []RawRegister   `yaml:"registers"`
}

// RawPeripheral groups MMIO registers that share a base address.
type RawPeripheral struct {
	Name        string        `yaml:"name"`
	Description string        `yaml:"description"`
	Base        uint64        `yaml:"base"`
	Registers   []RawRegister `yaml:"registers"`
}

// RawRegister is one register entry. Exactly one of Address, Offset (in
// a peripheral) or System gives its location.
type RawRegister struct {
	Name        string     `yaml:"name"`
	Description string     `yaml:"description"`
	Address     *uint64    `yaml:"address"`
	Offset      *uint64    `yaml:"offset"`
	System      *RawSystem `yaml:"system"`
	Width       uint       `yaml:"width"`  // defaults to 32 for MMIO and the native width for system registers
	Access      string     `yaml:"access"` // "r", "w" or "rw"
	Reset       uint64     `yaml:"reset"`
	Fields      []RawField `yaml:"fields"`
}

// RawSystem is a system register encoding. AArch64 registers use op0,
// op1, crn, crm and op2; AArch32 registers use coproc, op1 (opc1), crn,
// crm and op2 (opc2).
type RawSystem struct {
	Arch   string `yaml:"arch"` // "aarch64" (default) or "aarch32"
	Op0    uint8  `yaml:"op0"`
	Coproc uint8  `yaml:"coproc"`
	Op1    uint8  `yaml:"op1"`
	CRn    uint8  `yaml:"crn"`
	CRm    uint8  `yaml:"crm"`
	Op2    uint8  `yaml:"op2"`
}

// RawField is one field entry. The range is given either as offset and
// width or as bits "msb:lsb" (or a single "bit").
type RawField struct {
	Name        string            `yaml:"name"`
	Description string            `yaml:"description"`
	Offset      uint              `yaml:"offset"`
	Width       uint              `yaml:"width"`
	Bits        string            `yaml:"bits"`
	Access      string            `yaml:"access"` // empty inherits the register's access
	Values      map[string]uint64 `yaml:"values"`
}

// ParseAccess parses an access string: "r", "w" or "rw", in any case.
func ParseAccess(s string) (reg.Permission, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "r", "ro":
		return reg.Read, nil
	case "w", "wo":
		return reg.Write, nil
	case "rw":
		return reg.RW, nil
	}
	return 0, fmt.Errorf("unable to understand access value %q", s)
}

// Parse decodes and validates a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	var raw RawCatalog
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return Build(&raw)
}

// Load reads and parses the catalog file at path.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// LoadFS is like Load but reads from fsys.
func LoadFS(fsys fs.FS, path string) (*Catalog, error) {
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Build validates raw and turns it into a Catalog.
func Build(raw *RawCatalog) (*Catalog, error) {
	c := New(raw.Name)
	c.Description = raw.Description

	for i := range raw.Peripherals {
		p := &raw.Peripherals[i]
		for j := range p.Registers {
			r := &p.Registers[j]
			if r.Address != nil || r.System != nil || r.Offset == nil {
				return nil, fmt.Errorf("%w: register %s in peripheral %s must have an offset and nothing else",
					ErrInvalid, r.Name, p.Name)
			}
			d, err := buildRegister(r, p.Name, uintptr(p.Base+*r.Offset), true)
			if err != nil {
				return nil, err
			}
			if err := c.insert(d); err != nil {
				return nil, err
			}
		}
	}
	for i := range raw.Registers {
		r := &raw.Registers[i]
		if r.Offset != nil {
			return nil, fmt.Errorf("%w: register %s has an offset but no peripheral", ErrInvalid, r.Name)
		}
		var addr uintptr
		if r.Address != nil {
			addr = uintptr(*r.Address)
		}
		d, err := buildRegister(r, "", addr, r.Address != nil)
		if err != nil {
			return nil, err
		}
		if err := c.insert(d); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Catalog) insert(d RegisterDesc) error {
	if _, ok := c.byName[d.Name]; ok {
		return fmt.Errorf("%w: duplicate register %s", ErrInvalid, d.Name)
	}
	c.add(d)
	return nil
}

func buildRegister(r *RawRegister, group string, addr uintptr, mmio bool) (RegisterDesc, error) {
	fail := func(format string, args ...any) (RegisterDesc, error) {
		return RegisterDesc{}, fmt.Errorf("%w: register %s: %s", ErrInvalid, r.Name, fmt.Sprintf(format, args...))
	}
	if r.Name == "" {
		return RegisterDesc{}, fmt.Errorf("%w: register without a name", ErrInvalid)
	}

	d := RegisterDesc{
		Name:        r.Name,
		Description: strings.TrimSpace(r.Description),
		Group:       group,
		Reset:       r.Reset,
		fieldIndex:  make(map[string]int, len(r.Fields)),
	}

	switch {
	case r.System != nil && mmio:
		return fail("has both an address and a system encoding")
	case r.System != nil:
		id, err := r.System.id()
		if err != nil {
			return fail("%v", err)
		}
		d.Kind, d.ID = KindSystem, id
		d.Width = id.NativeWidth()
		if r.Width != 0 && r.Width != uint(d.Width) {
			return fail("system register transfers %d bits, not %d", d.Width, r.Width)
		}
	case mmio:
		d.Kind, d.Address = KindMMIO, addr
		d.Width = reg.Width32
		if r.Width != 0 {
			d.Width = reg.Width(r.Width)
		}
		if r.Width > 64 || !d.Width.Valid() {
			return fail("unsupported width %d", r.Width)
		}
		if addr%d.Width.Bytes() != 0 {
			return fail("address %#x is not aligned to %d bytes", addr, d.Width.Bytes())
		}
	default:
		return fail("has no address or system encoding")
	}

	if r.Access == "" {
		return fail("has no declared access level (r, w, or rw)")
	}
	acc, err := ParseAccess(r.Access)
	if err != nil {
		return fail("%v", err)
	}
	d.Access = acc

	if r.Reset&^d.Width.Mask() != 0 {
		return fail("reset value %#x wider than %d bits", r.Reset, d.Width)
	}

	for i := range r.Fields {
		f, err := buildField(&r.Fields[i], d.Width, d.Access)
		if err != nil {
			return fail("%v", err)
		}
		if _, ok := d.fieldIndex[f.Name]; ok {
			return fail("duplicate field %s", f.Name)
		}
		d.fieldIndex[f.Name] = len(d.Fields)
		d.Fields = append(d.Fields, f)
	}
	return d, nil
}

func buildField(r *RawField, width reg.Width, access reg.Permission) (FieldDesc, error) {
	if r.Name == "" {
		return FieldDesc{}, fmt.Errorf("field without a name")
	}
	f := FieldDesc{
		Name:        r.Name,
		Description: strings.TrimSpace(r.Description),
		Offset:      r.Offset,
		Width:       r.Width,
		Access:      access,
		Values:      r.Values,
	}
	if r.Bits != "" {
		if r.Offset != 0 || r.Width != 0 {
			return FieldDesc{}, fmt.Errorf("field %s: give bits or offset/width, not both", r.Name)
		}
		lsb, w, err := parseBits(r.Bits)
		if err != nil {
			return FieldDesc{}, fmt.Errorf("field %s: %v", r.Name, err)
		}
		f.Offset, f.Width = lsb, w
	}
	if f.Width == 0 {
		return FieldDesc{}, fmt.Errorf("field %s has zero width", r.Name)
	}
	if w := uint(width); f.Width > w || f.Offset >= w || f.Offset+f.Width > w {
		return FieldDesc{}, fmt.Errorf("field %s at offset %d width %d exceeds %d-bit register", r.Name, f.Offset, f.Width, uint(width))
	}
	if r.Access != "" {
		acc, err := ParseAccess(r.Access)
		if err != nil {
			return FieldDesc{}, fmt.Errorf("field %s: %v", r.Name, err)
		}
		if !access.Includes(acc) {
			return FieldDesc{}, fmt.Errorf("field %s access %s exceeds register access %s", r.Name, acc, access)
		}
		f.Access = acc
	}
	for name, v := range f.Values {
		if v&^lowMask(f.Width) != 0 {
			return FieldDesc{}, fmt.Errorf("field %s value %s=%#x does not fit in %d bits", r.Name, name, v, f.Width)
		}
	}
	return f, nil
}

// parseBits parses "msb:lsb" or a single bit number.
func parseBits(s string) (lsb, width uint, err error) {
	hi, lo, found := strings.Cut(s, ":")
	msb, err := strconv.ParseUint(strings.TrimSpace(hi), 10, 8)
	if err != nil {
		return 0, 0, fmt.Errorf("bad bit range %q", s)
	}
	l := msb
	if found {
		l, err = strconv.ParseUint(strings.TrimSpace(lo), 10, 8)
		if err != nil {
			return 0, 0, fmt.Errorf("bad bit range %q", s)
		}
	}
	if msb < l {
		return 0, 0, fmt.Errorf("bit range %q has msb < lsb", s)
	}
	return uint(l), uint(msb-l) + 1, nil
}

func (s *RawSystem) id() (reg.SysRegID, error) {
	switch strings.ToLower(s.Arch) {
	case "", "aarch64":
		if s.Op0 > 3 || s.Op1 > 7 || s.CRn > 15 || s.CRm > 15 || s.Op2 > 7 {
			return 0, fmt.Errorf("aarch64 encoding out of range")
		}
		return reg.AArch64(s.Op0, s.Op1, s.CRn, s.CRm, s.Op2), nil
	case "aarch32":
		if s.Coproc > 15 || s.Op1 > 7 || s.CRn > 15 || s.CRm > 15 || s.Op2 > 7 {
			return 0, fmt.Errorf("aarch32 encoding out of range")
		}
		return reg.AArch32(s.Coproc, s.Op1, s.CRn, s.CRm, s.Op2), nil
	}
	return 0, fmt.Errorf("unknown architecture %q", s.Arch)
}
