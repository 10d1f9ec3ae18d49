// Package mmap provides the memory primitive for MMIO registers: windows
// of physical memory mapped from /dev/mem, addressed by their physical
// address.
package mmap

import (
	"fmt"
	"log"
	"os"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/fkcurrie/regio/pkg/reg"
)

// DevMem is the physical memory device.
const DevMem = "/dev/mem"

// MemoryMap represents a memory mapped window of physical addresses
// [base, base+size).
type MemoryMap struct {
	base   uintptr
	size   uintptr
	mapped []byte // whole pages, as returned by mmap
	region []byte // the window itself
}

// NewMemoryMap maps [addr, addr+size) of /dev/mem. addr need not be page
// aligned.
func NewMemoryMap(addr, size uintptr) (*MemoryMap, error) {
	return mapFile(DevMem, addr, size)
}

func mapFile(path string, addr, size uintptr) (*MemoryMap, error) {
	if size == 0 {
		return nil, fmt.Errorf("failed to map %s: empty window at %#x", path, addr)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	page := uintptr(os.Getpagesize())
	skew := addr % page
	mapped, err := unix.Mmap(
		int(f.Fd()),
		int64(addr-skew),
		int(size+skew),
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_SHARED,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to mmap %s at %#x: %w", path, addr, err)
	}
	log.Printf("Mapped %s window %#x-%#x", path, addr, addr+size)

	return &MemoryMap{
		base:   addr,
		size:   size,
		mapped: mapped,
		region: mapped[skew : skew+size],
	}, nil
}

// NewAnonymous maps size bytes of zeroed private memory and addresses them
// as [base, base+size). It behaves like a device window without needing
// one.
func NewAnonymous(base, size uintptr) (*MemoryMap, error) {
	if size == 0 {
		return nil, fmt.Errorf("failed to map anonymous window: empty window at %#x", base)
	}
	mapped, err := unix.Mmap(-1, 0, int(size),
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_ANON|unix.MAP_PRIVATE,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to mmap anonymous window: %w", err)
	}
	return &MemoryMap{base: base, size: size, mapped: mapped, region: mapped}, nil
}

// Close unmaps the memory region
func (m *MemoryMap) Close() error {
	if m.mapped == nil {
		return nil
	}
	err := unix.Munmap(m.mapped)
	m.mapped, m.region = nil, nil
	if err != nil {
		return fmt.Errorf("failed to munmap %#x: %w", m.base, err)
	}
	return nil
}

// Base returns the physical address of the first byte of the window.
func (m *MemoryMap) Base() uintptr { return m.base }

// Size returns the window size in bytes.
func (m *MemoryMap) Size() uintptr { return m.size }

// Contains reports whether an access of width w at addr lies inside
// the window.
func (m *MemoryMap) Contains(addr uintptr, w reg.Width) bool {
	return addr >= m.base && addr-m.base+w.Bytes() <= m.size
}

// Region returns the mapped memory region
func (m *MemoryMap) Region() []byte {
	return m.region
}

// Read64 reads a 64-bit value at offset.
func (m *MemoryMap) Read64(offset uintptr) uint64 {
	return atomic.LoadUint64((*uint64)(unsafe.Pointer(&m.region[offset])))
}

// Write64 writes a 64-bit value at offset.
func (m *MemoryMap) Write64(offset uintptr, value uint64) {
	atomic.StoreUint64((*uint64)(unsafe.Pointer(&m.region[offset])), value)
}

// Read32 reads a 32-bit value from the memory region
func (m *MemoryMap) Read32(offset uintptr) uint32 {
	return atomic.LoadUint32((*uint32)(unsafe.Pointer(&m.region[offset])))
}

// Write32 writes a 32-bit value to the memory region
func (m *MemoryMap) Write32(offset uintptr, value uint32) {
	atomic.StoreUint32((*uint32)(unsafe.Pointer(&m.region[offset])), value)
}

// Read16 reads a 16-bit value from the memory region
func (m *MemoryMap) Read16(offset uintptr) uint16 {
	return load16((*uint16)(unsafe.Pointer(&m.region[offset])))
}

// Write16 writes a 16-bit value to the memory region
func (m *MemoryMap) Write16(offset uintptr, value uint16) {
	store16((*uint16)(unsafe.Pointer(&m.region[offset])), value)
}

// Read8 reads an 8-bit value from the memory region
func (m *MemoryMap) Read8(offset uintptr) uint8 {
	return load8(&m.region[offset])
}

// Write8 writes an 8-bit value to the memory region
func (m *MemoryMap) Write8(offset uintptr, value uint8) {
	store8(&m.region[offset], value)
}

// ReadMemory implements reg.Memory. It panics if the access is outside
// the window or misaligned, as the bus would fault.
func (m *MemoryMap) ReadMemory(addr uintptr, w reg.Width) uint64 {
	off := m.offset(addr, w)
	switch w {
	case reg.Width8:
		return uint64(m.Read8(off))
	case reg.Width16:
		return uint64(m.Read16(off))
	case reg.Width32:
		return uint64(m.Read32(off))
	default:
		return m.Read64(off)
	}
}

// WriteMemory implements reg.Memory. It panics if the access is outside
// the window or misaligned.
func (m *MemoryMap) WriteMemory(addr uintptr, w reg.Width, value uint64) {
	off := m.offset(addr, w)
	switch w {
	case reg.Width8:
		m.Write8(off, uint8(value))
	case reg.Width16:
		m.Write16(off, uint16(value))
	case reg.Width32:
		m.Write32(off, uint32(value))
	default:
		m.Write64(off, value)
	}
}

func (m *MemoryMap) offset(addr uintptr, w reg.Width) uintptr {
	if !w.Valid() {
		panic(fmt.Sprintf("mmap: unsupported width %d", uint8(w)))
	}
	if !m.Contains(addr, w) {
		panic(fmt.Sprintf("mmap: %s access at %#x outside window %#x-%#x", w, addr, m.base, m.base+m.size))
	}
	if addr%w.Bytes() != 0 {
		panic(fmt.Sprintf("mmap: %s access at %#x is misaligned", w, addr))
	}
	return addr - m.base
}

// The compiler may merge or split plain narrow accesses; keeping them
// in their own frames gives exactly one load or store each.

//go:noinline
func load8(p *uint8) uint8 { return *p }

//go:noinline
func store8(p *uint8, v uint8) { *p = v }

//go:noinline
func load16(p *uint16) uint16 { return *p }

//go:noinline
func store16(p *uint16, v uint16) { *p = v }

var _ reg.Memory = (*MemoryMap)(nil)
