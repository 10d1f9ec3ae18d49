// Package gpio presents a bank of GPIO lines as one memory-mapped
// register: bit i of the register is line i of the bank. Reading samples
// the lines, writing drives them.
package gpio

import (
	"fmt"
	"log"
	"sync"

	"github.com/warthog618/go-gpiocdev"

	"github.com/fkcurrie/regio/pkg/reg"
)

// Consumer is the label the kernel shows for lines held by a Bank.
const Consumer = "regio"

// lineIO is the part of *gpiocdev.Lines a Bank uses.
type lineIO interface {
	Values(values []int) error
	SetValues(values []int) error
	Close() error
}

// BankConfig describes a bank of lines.
type BankConfig struct {
	Chip    string    // gpiochip name, e.g. "gpiochip0"
	Lines   []int     // line offsets; Lines[i] is register bit i
	Address uintptr   // address the bank answers at
	Width   reg.Width // register width, 32 if zero
	Output  bool      // request the lines as outputs
}

// Bank is a GPIO line bank behind a register address.
type Bank struct {
	mu     sync.Mutex
	chip   string
	addr   uintptr
	width  reg.Width
	output bool
	lines  lineIO
	n      int
	err    error
}

// NewBank requests the lines of cfg from the GPIO character device.
func NewBank(cfg BankConfig) (*Bank, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	opts := []gpiocdev.LineReqOption{gpiocdev.WithConsumer(Consumer)}
	if cfg.Output {
		opts = append(opts, gpiocdev.AsOutput(make([]int, len(cfg.Lines))...))
	} else {
		opts = append(opts, gpiocdev.AsInput)
	}
	lines, err := gpiocdev.RequestLines(cfg.Chip, cfg.Lines, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to request lines %v on %s: %w", cfg.Lines, cfg.Chip, err)
	}
	log.Printf("Requested %d GPIO lines on %s at %#x (output=%v)", len(cfg.Lines), cfg.Chip, cfg.Address, cfg.Output)
	return newBank(cfg, lines), nil
}

func newBank(cfg BankConfig, lines lineIO) *Bank {
	w := cfg.Width
	if w == 0 {
		w = reg.Width32
	}
	return &Bank{
		chip:   cfg.Chip,
		addr:   cfg.Address,
		width:  w,
		output: cfg.Output,
		lines:  lines,
		n:      len(cfg.Lines),
	}
}

func (c BankConfig) validate() error {
	w := c.Width
	if w == 0 {
		w = reg.Width32
	}
	if !w.Valid() {
		return fmt.Errorf("gpio bank at %#x: unsupported width %d", c.Address, uint8(w))
	}
	if len(c.Lines) == 0 {
		return fmt.Errorf("gpio bank at %#x: no lines", c.Address)
	}
	if len(c.Lines) > int(w) {
		return fmt.Errorf("gpio bank at %#x: %d lines do not fit a %s register", c.Address, len(c.Lines), w)
	}
	if c.Address%w.Bytes() != 0 {
		return fmt.Errorf("gpio bank at %#x: address not aligned for %s access", c.Address, w)
	}
	return nil
}

// Base returns the address the bank answers at.
func (b *Bank) Base() uintptr { return b.addr }

// Size returns the size of the bank register in bytes.
func (b *Bank) Size() uintptr { return b.width.Bytes() }

// Width returns the register width of the bank.
func (b *Bank) Width() reg.Width { return b.width }

// Contains reports whether an access of width w at addr is the bank
// register.
func (b *Bank) Contains(addr uintptr, w reg.Width) bool {
	return addr == b.addr && w == b.width
}

// Output reports whether the lines are driven by the bank.
func (b *Bank) Output() bool { return b.output }

// Err returns the first line error seen, if any. The register interface
// has no way to report one.
func (b *Bank) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

// ReadMemory implements reg.Memory. Bit i is the value of line i.
func (b *Bank) ReadMemory(addr uintptr, w reg.Width) uint64 {
	b.check(addr, w)
	b.mu.Lock()
	defer b.mu.Unlock()

	values := make([]int, b.n)
	if err := b.lines.Values(values); err != nil {
		b.fail(fmt.Errorf("failed to read lines on %s: %w", b.chip, err))
		return 0
	}
	var v uint64
	for i, x := range values {
		if x != 0 {
			v |= 1 << i
		}
	}
	return v
}

// WriteMemory implements reg.Memory. Line i is driven to bit i of value.
// Writes to an input bank are dropped and latched as an error.
func (b *Bank) WriteMemory(addr uintptr, w reg.Width, value uint64) {
	b.check(addr, w)
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.output {
		b.fail(fmt.Errorf("write %#x to input bank on %s", value, b.chip))
		return
	}
	values := make([]int, b.n)
	for i := range values {
		values[i] = int(value >> i & 1)
	}
	if err := b.lines.SetValues(values); err != nil {
		b.fail(fmt.Errorf("failed to set lines on %s: %w", b.chip, err))
	}
}

func (b *Bank) check(addr uintptr, w reg.Width) {
	if addr != b.addr || w != b.width {
		panic(fmt.Sprintf("gpio: %s access at %#x, bank is %s at %#x", w, addr, b.width, b.addr))
	}
}

// ClearErr returns the latched line error, if any, and resets it so the
// next failure is latched again.
func (b *Bank) ClearErr() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	err := b.err
	b.err = nil
	return err
}

func (b *Bank) fail(err error) {
	log.Printf("Warning: %v", err)
	if b.err == nil {
		b.err = err
	}
}

// Close releases the lines.
func (b *Bank) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	log.Printf("Releasing GPIO lines on %s", b.chip)
	if err := b.lines.Close(); err != nil {
		return fmt.Errorf("failed to release lines on %s: %w", b.chip, err)
	}
	return nil
}

var _ reg.Memory = (*Bank)(nil)
