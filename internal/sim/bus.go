// Package sim provides a simulated register bus. It stands in for the
// memory and system register primitives in tests and in the CLI's sim
// backend, and counts every access made through it.
package sim

import (
	"fmt"
	"sync"

	"github.com/fkcurrie/regio/pkg/reg"
)

// Op is the direction of an access.
type Op uint8

const (
	OpRead Op = iota
	OpWrite
)

func (o Op) String() string {
	if o == OpWrite {
		return "write"
	}
	return "read"
}

// Access is one primitive call seen by the bus.
type Access struct {
	Op     Op
	System bool
	Addr   uintptr
	ID     reg.SysRegID
	Width  reg.Width
	Value  uint64
}

func (a Access) String() string {
	where := fmt.Sprintf("%#x", a.Addr)
	if a.System {
		where = a.ID.String()
	}
	return fmt.Sprintf("%s %s %s = %#x", a.Op, a.Width, where, a.Value)
}

// Bus is byte addressed little-endian memory plus a system register
// file. Unwritten memory and registers read as zero. Bus is safe for
// concurrent use.
type Bus struct {
	mu     sync.Mutex
	mem    map[uintptr]byte
	sys    map[reg.SysRegID]uint64
	log    []Access
	keep   bool
	reads  int
	writes int
}

// NewBus returns an empty bus that records its access log.
func NewBus() *Bus {
	return &Bus{
		mem:  make(map[uintptr]byte),
		sys:  make(map[reg.SysRegID]uint64),
		keep: true,
	}
}

// ReadMemory implements reg.Memory.
func (b *Bus) ReadMemory(addr uintptr, w reg.Width) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	v := b.peek(addr, w)
	b.record(Access{Op: OpRead, Addr: addr, Width: w, Value: v})
	return v
}

// WriteMemory implements reg.Memory.
func (b *Bus) WriteMemory(addr uintptr, w reg.Width, value uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	value &= w.Mask()
	b.poke(addr, w, value)
	b.record(Access{Op: OpWrite, Addr: addr, Width: w, Value: value})
}

// ReadSystemRegister implements reg.SystemRegisters.
func (b *Bus) ReadSystemRegister(id reg.SysRegID) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	v := b.sys[id]
	b.record(Access{Op: OpRead, System: true, ID: id, Width: id.NativeWidth(), Value: v})
	return v
}

// WriteSystemRegister implements reg.SystemRegisters.
func (b *Bus) WriteSystemRegister(id reg.SysRegID, value uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	value &= id.NativeWidth().Mask()
	b.sys[id] = value
	b.record(Access{Op: OpWrite, System: true, ID: id, Width: id.NativeWidth(), Value: value})
}

// Poke stores value at addr without counting an access.
func (b *Bus) Poke(addr uintptr, w reg.Width, value uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.poke(addr, w, value)
}

// Peek loads from addr without counting an access.
func (b *Bus) Peek(addr uintptr, w reg.Width) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.peek(addr, w)
}

// PokeSystem sets a system register without counting an access.
func (b *Bus) PokeSystem(id reg.SysRegID, value uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sys[id] = value & id.NativeWidth().Mask()
}

// PeekSystem returns a system register without counting an access.
func (b *Bus) PeekSystem(id reg.SysRegID) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sys[id]
}

// Counts returns the number of reads and writes since the last Reset.
func (b *Bus) Counts() (reads, writes int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.reads, b.writes
}

// Log returns a copy of the accesses since the last Reset.
func (b *Bus) Log() []Access {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Access, len(b.log))
	copy(out, b.log)
	return out
}

// KeepLog turns recording of the access log on or off. Counting is
// always on.
func (b *Bus) KeepLog(keep bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.keep = keep
	if !keep {
		b.log = nil
	}
}

// Reset clears the counters and the access log, keeping the contents.
func (b *Bus) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reads, b.writes = 0, 0
	b.log = nil
}

func (b *Bus) record(a Access) {
	if a.Op == OpWrite {
		b.writes++
	} else {
		b.reads++
	}
	if b.keep {
		b.log = append(b.log, a)
	}
}

func (b *Bus) peek(addr uintptr, w reg.Width) uint64 {
	var v uint64
	for i := uintptr(0); i < w.Bytes(); i++ {
		v |= uint64(b.mem[addr+i]) << (8 * i)
	}
	return v
}

func (b *Bus) poke(addr uintptr, w reg.Width, value uint64) {
	for i := uintptr(0); i < w.Bytes(); i++ {
		b.mem[addr+i] = byte(value >> (8 * i))
	}
}

var (
	_ reg.Memory          = (*Bus)(nil)
	_ reg.SystemRegisters = (*Bus)(nil)
)
