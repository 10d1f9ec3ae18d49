package mmap

import (
	"errors"
	"fmt"
	"sort"

	"github.com/fkcurrie/regio/pkg/reg"
)

// Window is a range of physical addresses served by one primitive.
type Window interface {
	reg.Memory
	Base() uintptr
	Size() uintptr
	Contains(addr uintptr, w reg.Width) bool
	Close() error
}

// Bus routes accesses to the window that contains them.
type Bus struct {
	windows []Window
}

// NewBus returns a bus over windows, which must not overlap.
func NewBus(windows ...Window) (*Bus, error) {
	b := &Bus{}
	for _, w := range windows {
		if err := b.Add(w); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// Add adds a window to the bus.
func (b *Bus) Add(m Window) error {
	for _, w := range b.windows {
		if m.Base() < w.Base()+w.Size() && w.Base() < m.Base()+m.Size() {
			return fmt.Errorf("window %#x-%#x overlaps %#x-%#x",
				m.Base(), m.Base()+m.Size(), w.Base(), w.Base()+w.Size())
		}
	}
	b.windows = append(b.windows, m)
	sort.Slice(b.windows, func(i, j int) bool { return b.windows[i].Base() < b.windows[j].Base() })
	return nil
}

// Windows returns the windows in address order.
func (b *Bus) Windows() []Window {
	return append([]Window(nil), b.windows...)
}

// Window returns the window holding an access of width w at addr.
func (b *Bus) Window(addr uintptr, w reg.Width) (Window, bool) {
	i := sort.Search(len(b.windows), func(i int) bool {
		return b.windows[i].Base()+b.windows[i].Size() > addr
	})
	if i < len(b.windows) && b.windows[i].Contains(addr, w) {
		return b.windows[i], true
	}
	return nil, false
}

// ReadMemory implements reg.Memory. Addresses outside every window panic.
func (b *Bus) ReadMemory(addr uintptr, w reg.Width) uint64 {
	return b.route(addr, w).ReadMemory(addr, w)
}

// WriteMemory implements reg.Memory.
func (b *Bus) WriteMemory(addr uintptr, w reg.Width, value uint64) {
	b.route(addr, w).WriteMemory(addr, w, value)
}

func (b *Bus) route(addr uintptr, w reg.Width) Window {
	m, ok := b.Window(addr, w)
	if !ok {
		panic(fmt.Sprintf("mmap: no window maps %s access at %#x", w, addr))
	}
	return m
}

// Close unmaps every window.
func (b *Bus) Close() error {
	var errs []error
	for _, m := range b.windows {
		if err := m.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	b.windows = nil
	return errors.Join(errs...)
}

var (
	_ reg.Memory = (*Bus)(nil)
	_ Window     = (*MemoryMap)(nil)
)
