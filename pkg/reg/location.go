package reg

import (
	"fmt"
)

// Memory is the volatile memory primitive of the platform. Each call is
// exactly one access of the given width at addr. Implementations do not
// return errors: an access either completes or faults.
type Memory interface {
	ReadMemory(addr uintptr, w Width) uint64
	WriteMemory(addr uintptr, w Width, value uint64)
}

// SystemRegisters is the CPU system register primitive of the platform.
type SystemRegisters interface {
	ReadSystemRegister(id SysRegID) uint64
	WriteSystemRegister(id SysRegID, value uint64)
}

// SysRegID identifies a CPU system register by its instruction encoding.
//
// AArch64 registers use the MRS/MSR operand encoding
// (op0, op1, CRn, CRm, op2). AArch32 registers use the MRC/MCR encoding
// (coproc, opc1, CRn, CRm, opc2) with the top bit set.
type SysRegID uint32

const aarch32Flag SysRegID = 1 << 31

// AArch64 returns the identifier of the AArch64 system register
// S<op0>_<op1>_C<crn>_C<crm>_<op2>.
func AArch64(op0, op1, crn, crm, op2 uint8) SysRegID {
	return SysRegID(op0&3)<<14 | SysRegID(op1&7)<<11 |
		SysRegID(crn&15)<<7 | SysRegID(crm&15)<<3 | SysRegID(op2&7)
}

// AArch32 returns the identifier of the AArch32 coprocessor register
// p<coproc>, <opc1>, c<crn>, c<crm>, <opc2>.
func AArch32(coproc, opc1, crn, crm, opc2 uint8) SysRegID {
	return aarch32Flag | SysRegID(coproc&15)<<14 | SysRegID(opc1&7)<<11 |
		SysRegID(crn&15)<<7 | SysRegID(crm&15)<<3 | SysRegID(opc2&7)
}

// IsAArch32 reports whether id names an AArch32 coprocessor register.
func (id SysRegID) IsAArch32() bool { return id&aarch32Flag != 0 }

// Fields returns the five encoding fields of id.
func (id SysRegID) Fields() (a, b, crn, crm, c uint8) {
	return uint8(id>>14) & 15, uint8(id>>11) & 7, uint8(id>>7) & 15, uint8(id>>3) & 15, uint8(id) & 7
}

// NativeWidth is the transfer size of MRS/MSR (64) or MRC/MCR (32).
func (id SysRegID) NativeWidth() Width {
	if id.IsAArch32() {
		return Width32
	}
	return Width64
}

func (id SysRegID) String() string {
	a, b, crn, crm, c := id.Fields()
	if id.IsAArch32() {
		return fmt.Sprintf("p%d_%d_c%d_c%d_%d", a, b, crn, crm, c)
	}
	return fmt.Sprintf("S%d_%d_C%d_C%d_%d", a, b, crn, crm, c)
}

type locationKind uint8

const (
	kindNone locationKind = iota
	kindMMIO
	kindSystem
)

// Location is where a register lives: a memory address behind a Memory
// primitive or a system register behind a SystemRegisters primitive.
// The zero Location is not usable.
type Location struct {
	kind locationKind
	mem  Memory
	addr uintptr
	sys  SystemRegisters
	id   SysRegID
}

// MMIO returns the location of a memory-mapped register at addr.
func MMIO(mem Memory, addr uintptr) Location {
	return Location{kind: kindMMIO, mem: mem, addr: addr}
}

// System returns the location of the CPU system register id.
func System(sys SystemRegisters, id SysRegID) Location {
	return Location{kind: kindSystem, sys: sys, id: id}
}

// IsMMIO reports whether l is a memory-mapped location.
func (l Location) IsMMIO() bool { return l.kind == kindMMIO }

// IsSystem reports whether l is a system register location.
func (l Location) IsSystem() bool { return l.kind == kindSystem }

// Address returns the address of an MMIO location.
func (l Location) Address() uintptr { return l.addr }

// ID returns the identifier of a system register location.
func (l Location) ID() SysRegID { return l.id }

func (l Location) String() string {
	switch l.kind {
	case kindMMIO:
		return fmt.Sprintf("mmio@%#x", l.addr)
	case kindSystem:
		return "sysreg " + l.id.String()
	}
	return "nowhere"
}

// Supports returns an error unless an access of width w is legal at l.
func (l Location) Supports(w Width) error {
	if !w.Valid() {
		return fmt.Errorf("%w: unsupported width %d", ErrWidth, uint8(w))
	}
	switch l.kind {
	case kindMMIO:
		if l.mem == nil {
			return fmt.Errorf("%w: %s has no memory primitive", ErrLocation, l)
		}
		if l.addr%w.Bytes() != 0 {
			return fmt.Errorf("%w: %s is not aligned for %s access", ErrWidth, l, w)
		}
	case kindSystem:
		if l.sys == nil {
			return fmt.Errorf("%w: %s has no system register primitive", ErrLocation, l)
		}
		if w != l.id.NativeWidth() {
			return fmt.Errorf("%w: %s transfers %s, not %s", ErrWidth, l, l.id.NativeWidth(), w)
		}
	default:
		return fmt.Errorf("%w: zero location", ErrLocation)
	}
	return nil
}

func (l Location) load(w Width) uint64 {
	switch l.kind {
	case kindSystem:
		return l.sys.ReadSystemRegister(l.id)
	case kindMMIO:
		return l.mem.ReadMemory(l.addr, w)
	}
	panic(zeroLocation)
}

func (l Location) store(w Width, v uint64) {
	switch l.kind {
	case kindSystem:
		l.sys.WriteSystemRegister(l.id, v)
	case kindMMIO:
		l.mem.WriteMemory(l.addr, w, v)
	default:
		panic(zeroLocation)
	}
}

// zeroLocation is the panic message of an access through a zero handle.
var zeroLocation = "reg: " + ErrLocation.Error() + ": zero location, use a New constructor"

func mustSupport[T Value](l Location) {
	if err := l.Supports(WidthOf[T]()); err != nil {
		panic("reg: " + err.Error())
	}
}
