// Package sysreg provides the system register primitive for the running
// CPU. Only registers that user space may read are available: on arm64
// Linux these are the generic timer frequency and count, the cache type
// and DC ZVA registers, and MIDR_EL1, which the kernel emulates.
// Every other access panics, as an undefined instruction would.
package sysreg

import (
	"fmt"
	"sort"

	"github.com/fkcurrie/regio/pkg/reg"
)

// Well known identifiers.
var (
	MIDR_EL1   = reg.AArch64(3, 0, 0, 0, 0)
	CTR_EL0    = reg.AArch64(3, 3, 0, 0, 1)
	DCZID_EL0  = reg.AArch64(3, 3, 0, 0, 7)
	CNTFRQ_EL0 = reg.AArch64(3, 3, 14, 0, 0)
	CNTVCT_EL0 = reg.AArch64(3, 3, 14, 0, 2)
)

// CPU reads system registers of the processor the caller runs on.
type CPU struct {
	readers map[reg.SysRegID]func() uint64
}

// New returns the primitive for this CPU. On architectures without
// readable system registers every access panics.
func New() *CPU {
	return &CPU{readers: readers}
}

// Readable reports whether id can be read.
func (c *CPU) Readable(id reg.SysRegID) bool {
	_, ok := c.readers[id]
	return ok
}

// IDs returns the readable registers.
func (c *CPU) IDs() []reg.SysRegID {
	ids := make([]reg.SysRegID, 0, len(c.readers))
	for id := range c.readers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ReadSystemRegister implements reg.SystemRegisters.
func (c *CPU) ReadSystemRegister(id reg.SysRegID) uint64 {
	read, ok := c.readers[id]
	if !ok {
		panic(fmt.Sprintf("sysreg: %s is not readable from user space", id))
	}
	return read()
}

// WriteSystemRegister implements reg.SystemRegisters. No system register
// is writable from user space, so it always panics.
func (c *CPU) WriteSystemRegister(id reg.SysRegID, value uint64) {
	panic(fmt.Sprintf("sysreg: %s is not writable from user space", id))
}

var _ reg.SystemRegisters = (*CPU)(nil)
