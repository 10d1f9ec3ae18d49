// Package trace records every access made through the memory and system
// register primitives, to the log and to CBOR trace files.
package trace

import (
	"log"
	"os"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	"github.com/fkcurrie/regio/pkg/reg"
)

// Namer returns the register name of an access, or "" if it has none.
type Namer func(e Event) string

// Recorder numbers accesses and hands them to its outputs. It is safe
// for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	seq     uint64
	verbose bool
	namer   Namer
	file    *os.File
	enc     *cbor.Encoder
	events  []Event
	keep    bool
	now     func() time.Time
}

// Options configure a Recorder.
type Options struct {
	// Path, if set, is the trace file to create.
	Path string
	// Verbose logs every access.
	Verbose bool
	// Keep holds the events in memory for Events.
	Keep    bool
	Namer   Namer
	Backend string
	Catalog string
}

// NewRecorder returns a recorder. When opt.Path is set the file is
// created and the header written immediately.
func NewRecorder(opt Options) (*Recorder, error) {
	r := &Recorder{
		verbose: opt.Verbose,
		namer:   opt.Namer,
		keep:    opt.Keep,
		now:     time.Now,
	}
	if opt.Path == "" {
		return r, nil
	}

	f, err := os.OpenFile(opt.Path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	hdr := Header{
		Session: uuid.New().String(),
		Start:   r.now(),
		Backend: opt.Backend,
		Catalog: opt.Catalog,
	}
	enc := NewEncoder(f)
	if err := enc.Encode(hdr); err != nil {
		f.Close()
		return nil, err
	}
	log.Printf("Tracing session %s to %s", hdr.Session, opt.Path)
	r.file, r.enc = f, enc
	return r, nil
}

func (r *Recorder) record(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	e.Seq = r.seq
	e.Time = r.now()
	if r.namer != nil {
		e.Register = r.namer(e)
	}
	if r.verbose {
		log.Printf("trace: %s", e)
	}
	if r.keep {
		r.events = append(r.events, e)
	}
	if r.enc != nil {
		// Ignore encoding errors - tracing should not disrupt register access
		_ = r.enc.Encode(e)
	}
}

// Count returns the number of accesses recorded.
func (r *Recorder) Count() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seq
}

// Events returns the accesses kept in memory.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Close closes the trace file. Later accesses are still counted and
// logged.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file, r.enc = nil, nil
	return err
}

// Memory wraps next so every access is recorded.
func (r *Recorder) Memory(next reg.Memory) reg.Memory {
	return &memory{next: next, rec: r}
}

// SystemRegisters wraps next so every access is recorded.
func (r *Recorder) SystemRegisters(next reg.SystemRegisters) reg.SystemRegisters {
	return &system{next: next, rec: r}
}

type memory struct {
	next reg.Memory
	rec  *Recorder
}

func (m *memory) ReadMemory(addr uintptr, w reg.Width) uint64 {
	v := m.next.ReadMemory(addr, w)
	m.rec.record(Event{Op: OpRead, Kind: KindMMIO, Addr: uint64(addr), Width: uint8(w), Value: v})
	return v
}

func (m *memory) WriteMemory(addr uintptr, w reg.Width, value uint64) {
	m.next.WriteMemory(addr, w, value)
	m.rec.record(Event{Op: OpWrite, Kind: KindMMIO, Addr: uint64(addr), Width: uint8(w), Value: value})
}

type system struct {
	next reg.SystemRegisters
	rec  *Recorder
}

func (s *system) ReadSystemRegister(id reg.SysRegID) uint64 {
	v := s.next.ReadSystemRegister(id)
	s.rec.record(Event{Op: OpRead, Kind: KindSystem, ID: uint32(id), Width: uint8(id.NativeWidth()), Value: v})
	return v
}

func (s *system) WriteSystemRegister(id reg.SysRegID, value uint64) {
	s.next.WriteSystemRegister(id, value)
	s.rec.record(Event{Op: OpWrite, Kind: KindSystem, ID: uint32(id), Width: uint8(id.NativeWidth()), Value: value})
}
