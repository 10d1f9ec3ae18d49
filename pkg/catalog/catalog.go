// Package catalog describes registers as data. A catalog is a table of
// register descriptors (location, width, permission and field layout)
// loaded from YAML, validated once, and bound to typed reg handles on
// demand.
package catalog

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/fkcurrie/regio/pkg/reg"
)

var (
	// ErrInvalid reports a catalog that fails validation.
	ErrInvalid = errors.New("invalid catalog")
	// ErrUnknownRegister reports a register name missing from a catalog.
	ErrUnknownRegister = errors.New("unknown register")
	// ErrUnknownField reports a field name missing from a register.
	ErrUnknownField = errors.New("unknown field")
	// ErrCapability reports a binding the register's permission forbids.
	ErrCapability = errors.New("operation not permitted by register access")
	// ErrWidth reports a binding whose type does not match the register width.
	ErrWidth = errors.New("register width mismatch")
	// ErrNoBackend reports a binding without the primitive its location needs.
	ErrNoBackend = errors.New("no backend for register location")
)

// Kind is the location kind of a register.
type Kind uint8

const (
	KindMMIO Kind = iota
	KindSystem
)

func (k Kind) String() string {
	if k == KindSystem {
		return "system"
	}
	return "mmio"
}

// FieldDesc is one named bit range of a register.
type FieldDesc struct {
	Name        string
	Description string
	Offset      uint
	Width       uint
	Access      reg.Permission
	// Values names particular field values, for example modes.
	Values map[string]uint64
}

// Mask returns the bits of the field in register position.
func (f *FieldDesc) Mask() uint64 {
	return lowMask(f.Width) << f.Offset
}

// Range returns the field's bit range as "[msb:lsb]".
func (f *FieldDesc) Range() string {
	if f.Width == 1 {
		return fmt.Sprintf("[%d]", f.Offset)
	}
	return fmt.Sprintf("[%d:%d]", f.Offset+f.Width-1, f.Offset)
}

// ValueName returns the name of v among the field's values, if any.
func (f *FieldDesc) ValueName(v uint64) (string, bool) {
	for name, x := range f.Values {
		if x == v {
			return name, true
		}
	}
	return "", false
}

// RegisterDesc describes one register. Descriptors are created by
// Parse and never modified afterwards.
type RegisterDesc struct {
	Name        string
	Description string
	Group       string
	Kind        Kind
	Address     uintptr
	ID          reg.SysRegID
	Width       reg.Width
	Access      reg.Permission
	Reset       uint64
	Fields      []FieldDesc

	fieldIndex map[string]int
}

// Field returns the field called name.
func (d *RegisterDesc) Field(name string) (*FieldDesc, bool) {
	i, ok := d.fieldIndex[name]
	if !ok {
		return nil, false
	}
	return &d.Fields[i], true
}

// Where describes the register's location.
func (d *RegisterDesc) Where() string {
	if d.Kind == KindSystem {
		return d.ID.String()
	}
	return fmt.Sprintf("%#x", d.Address)
}

// Location returns the register's location behind the primitives of b.
func (d *RegisterDesc) Location(b Backend) (reg.Location, error) {
	switch d.Kind {
	case KindSystem:
		if b.System == nil {
			return reg.Location{}, fmt.Errorf("%w: %s needs system register access", ErrNoBackend, d.Name)
		}
		return reg.System(b.System, d.ID), nil
	default:
		if b.Memory == nil {
			return reg.Location{}, fmt.Errorf("%w: %s needs memory access", ErrNoBackend, d.Name)
		}
		return reg.MMIO(b.Memory, d.Address), nil
	}
}

// Overlaps returns the pairs of fields that share bits. Overlap is
// legal, it is how a catalog aliases bits under several names.
func (d *RegisterDesc) Overlaps() [][2]string {
	var out [][2]string
	for i := range d.Fields {
		for j := i + 1; j < len(d.Fields); j++ {
			if d.Fields[i].Mask()&d.Fields[j].Mask() != 0 {
				out = append(out, [2]string{d.Fields[i].Name, d.Fields[j].Name})
			}
		}
	}
	return out
}

// Decode splits raw into the values of each field, in field order.
func (d *RegisterDesc) Decode(raw uint64) []uint64 {
	out := make([]uint64, len(d.Fields))
	for i := range d.Fields {
		f := &d.Fields[i]
		out[i] = raw >> f.Offset & lowMask(f.Width)
	}
	return out
}

// Backend is the set of primitives registers are bound to. Either may be
// nil when no register of that kind is used.
type Backend struct {
	Memory reg.Memory
	System reg.SystemRegisters
}

// Catalog is a named table of register descriptors.
type Catalog struct {
	Name        string
	Description string

	regs   []RegisterDesc
	byName map[string]int
}

// New returns an empty catalog.
func New(name string) *Catalog {
	return &Catalog{Name: name, byName: make(map[string]int)}
}

// Len returns the number of registers.
func (c *Catalog) Len() int { return len(c.regs) }

// Lookup returns the register called name.
func (c *Catalog) Lookup(name string) (*RegisterDesc, bool) {
	i, ok := c.byName[name]
	if !ok {
		return nil, false
	}
	return &c.regs[i], true
}

// Get is like Lookup but returns an error wrapping ErrUnknownRegister.
func (c *Catalog) Get(name string) (*RegisterDesc, error) {
	d, ok := c.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q in catalog %s", ErrUnknownRegister, name, c.Name)
	}
	return d, nil
}

// Names returns the register names in sorted order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.regs))
	for i := range c.regs {
		names = append(names, c.regs[i].Name)
	}
	sort.Strings(names)
	return names
}

// Registers returns the descriptors in catalog order.
func (c *Catalog) Registers() []*RegisterDesc {
	out := make([]*RegisterDesc, len(c.regs))
	for i := range c.regs {
		out[i] = &c.regs[i]
	}
	return out
}

// Merge adds every register of other to c. Names must not collide.
func (c *Catalog) Merge(other *Catalog) error {
	for i := range other.regs {
		if _, ok := c.byName[other.regs[i].Name]; ok {
			return fmt.Errorf("%w: register %s defined in both %s and %s",
				ErrInvalid, other.regs[i].Name, c.Name, other.Name)
		}
	}
	for i := range other.regs {
		c.add(other.regs[i])
	}
	if c.Name == "" {
		c.Name = other.Name
	} else if other.Name != "" && !strings.Contains(c.Name, other.Name) {
		c.Name += "+" + other.Name
	}
	return nil
}

func (c *Catalog) add(d RegisterDesc) {
	if c.byName == nil {
		c.byName = make(map[string]int)
	}
	c.byName[d.Name] = len(c.regs)
	c.regs = append(c.regs, d)
}

func lowMask(n uint) uint64 {
	if n >= 64 {
		return ^uint64(0)
	}
	return 1<<n - 1
}
