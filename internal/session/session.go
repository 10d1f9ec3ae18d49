// Package session turns a configuration into a catalog bound to register
// backends, and offers register operations by name.
package session

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"

	"github.com/fkcurrie/regio/internal/config"
	"github.com/fkcurrie/regio/internal/sim"
	"github.com/fkcurrie/regio/internal/trace"
	"github.com/fkcurrie/regio/pkg/catalog"
	"github.com/fkcurrie/regio/pkg/gpio"
	"github.com/fkcurrie/regio/pkg/mmap"
	"github.com/fkcurrie/regio/pkg/reg"
	"github.com/fkcurrie/regio/pkg/sysreg"
)

// Session is an open set of backends and the catalog that describes them.
type Session struct {
	Config  *config.Config
	Catalog *catalog.Catalog
	Backend catalog.Backend

	sim      *sim.Bus
	bus      *mmap.Bus
	banks    []lineErrors
	recorder *trace.Recorder
}

// lineErrors is implemented by windows that cannot report failures
// through reg.Memory and latch them instead.
type lineErrors interface {
	ClearErr() error
}

// Open loads the catalogs of cfg and opens its backend.
func Open(cfg *config.Config) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cat, err := catalog.OpenAll(cfg.Catalogs...)
	if err != nil {
		return nil, err
	}
	s := &Session{Config: cfg, Catalog: cat}

	var (
		mem reg.Memory
		sys reg.SystemRegisters
	)
	switch cfg.Backend {
	case config.BackendSim:
		s.sim = sim.NewBus()
		s.sim.KeepLog(false)
		if err := s.seed(); err != nil {
			return nil, err
		}
		mem, sys = s.sim, s.sim
	case config.BackendDevMem, config.BackendCPU:
		if err := s.openWindows(); err != nil {
			s.Close()
			return nil, err
		}
		if s.bus != nil {
			mem = s.bus
		}
		sys = sysreg.New()
	}

	if cfg.Trace.Path != "" || cfg.Trace.Verbose {
		s.recorder, err = trace.NewRecorder(trace.Options{
			Path:    cfg.Trace.Path,
			Verbose: cfg.Trace.Verbose,
			Namer:   s.namer(),
			Backend: cfg.Backend,
			Catalog: cat.Name,
		})
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to start trace: %w", err)
		}
		if mem != nil {
			mem = s.recorder.Memory(mem)
		}
		sys = s.recorder.SystemRegisters(sys)
	}
	s.Backend = catalog.Backend{Memory: mem, System: sys}
	log.Printf("Session open: backend %s, catalog %s with %d registers", cfg.Backend, cat.Name, cat.Len())
	return s, nil
}

func (s *Session) openWindows() error {
	cfg := s.Config
	if len(cfg.Windows) == 0 && len(cfg.GPIO) == 0 {
		return nil
	}
	bus, err := mmap.NewBus()
	if err != nil {
		return err
	}
	s.bus = bus
	for _, w := range cfg.Windows {
		m, err := mmap.NewMemoryMap(uintptr(w.Base), uintptr(w.Size))
		if err != nil {
			return err
		}
		if err := bus.Add(m); err != nil {
			m.Close()
			return err
		}
	}
	for _, g := range cfg.GPIO {
		b, err := gpio.NewBank(gpio.BankConfig{
			Chip:    g.Chip,
			Lines:   g.Lines,
			Address: uintptr(g.Address),
			Width:   reg.Width(g.Width),
			Output:  g.Output,
		})
		if err != nil {
			return err
		}
		if err := bus.Add(b); err != nil {
			b.Close()
			return err
		}
		s.banks = append(s.banks, b)
	}
	return nil
}

// lineErr collects and clears the errors latched by GPIO banks during
// the last operation.
func (s *Session) lineErr() error {
	var errs []error
	for _, b := range s.banks {
		if err := b.ClearErr(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// seed loads every register of the simulated bus with its reset value,
// then applies the configured seed values.
func (s *Session) seed() error {
	for _, d := range s.Catalog.Registers() {
		s.poke(d, d.Reset)
	}
	names := make([]string, 0, len(s.Config.Sim.Registers))
	for name := range s.Config.Sim.Registers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		d, err := s.Register(name)
		if err != nil {
			return fmt.Errorf("sim seed: %w", err)
		}
		v := uint64(s.Config.Sim.Registers[name])
		if v&^d.Width.Mask() != 0 {
			return fmt.Errorf("sim seed: %#x is wider than %s register %s", v, d.Width, name)
		}
		s.poke(d, v)
	}
	return nil
}

func (s *Session) poke(d *catalog.RegisterDesc, v uint64) {
	if d.Kind == catalog.KindSystem {
		s.sim.PokeSystem(d.ID, v)
	} else {
		s.sim.Poke(d.Address, d.Width, v)
	}
}

func (s *Session) namer() trace.Namer {
	byAddr := make(map[uint64]string)
	byID := make(map[uint32]string)
	for _, d := range s.Catalog.Registers() {
		if d.Kind == catalog.KindSystem {
			if _, ok := byID[uint32(d.ID)]; !ok {
				byID[uint32(d.ID)] = d.Name
			}
		} else if _, ok := byAddr[uint64(d.Address)]; !ok {
			byAddr[uint64(d.Address)] = d.Name
		}
	}
	return func(e trace.Event) string {
		if e.Kind == trace.KindSystem {
			return byID[e.ID]
		}
		return byAddr[e.Addr]
	}
}

// Sim returns the simulated bus, or nil for other backends.
func (s *Session) Sim() *sim.Bus { return s.sim }

// Recorder returns the trace recorder, or nil when tracing is off.
func (s *Session) Recorder() *trace.Recorder { return s.recorder }

// Strict reports whether field values wider than their field are errors.
func (s *Session) Strict() bool { return s.Config.Strict }

// Close releases the backend and finishes the trace.
func (s *Session) Close() error {
	var errs []error
	if s.bus != nil {
		errs = append(errs, s.bus.Close())
		s.bus = nil
		s.banks = nil
	}
	if s.recorder != nil {
		errs = append(errs, s.recorder.Close())
	}
	return errors.Join(errs...)
}

// Register returns the descriptor called name. Names are matched
// exactly first, then without regard to case.
func (s *Session) Register(name string) (*catalog.RegisterDesc, error) {
	if d, ok := s.Catalog.Lookup(name); ok {
		return d, nil
	}
	for _, d := range s.Catalog.Registers() {
		if strings.EqualFold(d.Name, name) {
			return d, nil
		}
	}
	return s.Catalog.Get(name)
}

func (s *Session) field(d *catalog.RegisterDesc, name string) (*catalog.FieldDesc, error) {
	if f, ok := d.Field(name); ok {
		return f, nil
	}
	for i := range d.Fields {
		if strings.EqualFold(d.Fields[i].Name, name) {
			return &d.Fields[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s.%s", catalog.ErrUnknownField, d.Name, name)
}

// Read reads the whole register.
func (s *Session) Read(name string) (uint64, error) {
	d, err := s.Register(name)
	if err != nil {
		return 0, err
	}
	v, err := catalog.ReadRaw(d, s.Backend)
	if err != nil {
		return 0, err
	}
	return v, s.lineErr()
}

// Write writes value, a number, to the whole register.
func (s *Session) Write(name, value string) error {
	d, err := s.Register(name)
	if err != nil {
		return err
	}
	v, err := ParseNumber(value)
	if err != nil {
		return err
	}
	if err := catalog.WriteRaw(d, s.Backend, v); err != nil {
		return err
	}
	return s.lineErr()
}

// Get reads one field.
func (s *Session) Get(name, field string) (uint64, error) {
	d, err := s.Register(name)
	if err != nil {
		return 0, err
	}
	f, err := s.field(d, field)
	if err != nil {
		return 0, err
	}
	v, err := catalog.ReadFieldRaw(d, s.Backend, f.Name)
	if err != nil {
		return 0, err
	}
	return v, s.lineErr()
}

// Set writes one field and returns the value written to the register.
// value is a number or one of the field's named values.
func (s *Session) Set(name, field, value string) (uint64, error) {
	return s.Modify(name, []string{field + "=" + value})
}

// Modify applies "FIELD=VALUE" assignments in order with a single read
// and a single write, and returns the value written.
func (s *Session) Modify(name string, assignments []string) (uint64, error) {
	d, err := s.Register(name)
	if err != nil {
		return 0, err
	}
	if len(assignments) == 0 {
		return 0, fmt.Errorf("nothing to modify in %s", d.Name)
	}
	as := make([]catalog.Assignment, 0, len(assignments))
	for _, a := range assignments {
		fname, value, ok := strings.Cut(a, "=")
		if !ok {
			return 0, fmt.Errorf("assignment %q is not FIELD=VALUE", a)
		}
		f, err := s.field(d, strings.TrimSpace(fname))
		if err != nil {
			return 0, err
		}
		v, err := ParseFieldValue(f, strings.TrimSpace(value))
		if err != nil {
			return 0, err
		}
		as = append(as, catalog.Assignment{Field: f.Name, Value: v})
	}
	v, err := catalog.ModifyRaw(d, s.Backend, as, s.Config.Strict)
	if err != nil {
		return 0, err
	}
	return v, s.lineErr()
}

// FieldReading is the value of one field within a raw register value.
type FieldReading struct {
	Field *catalog.FieldDesc
	Value uint64
	// Name is the enumerated name of Value, if the field has one.
	Name string
}

// Decode splits raw into its fields.
func Decode(d *catalog.RegisterDesc, raw uint64) []FieldReading {
	values := d.Decode(raw)
	out := make([]FieldReading, len(values))
	for i, v := range values {
		f := &d.Fields[i]
		name, _ := f.ValueName(v)
		out[i] = FieldReading{Field: f, Value: v, Name: name}
	}
	return out
}

// Finding is one lint result.
type Finding struct {
	Register string
	Message  string
}

func (f Finding) String() string { return f.Register + ": " + f.Message }

// Lint reports overlapping fields and MMIO registers that share an
// address. Both are legal, but worth a second look.
func (s *Session) Lint() []Finding {
	var out []Finding
	at := make(map[uintptr]string)
	for _, d := range s.Catalog.Registers() {
		for _, pair := range d.Overlaps() {
			out = append(out, Finding{d.Name, fmt.Sprintf("fields %s and %s overlap", pair[0], pair[1])})
		}
		if d.Kind != catalog.KindMMIO {
			continue
		}
		if other, ok := at[d.Address]; ok {
			out = append(out, Finding{d.Name, fmt.Sprintf("shares address %#x with %s", d.Address, other)})
		} else {
			at[d.Address] = d.Name
		}
	}
	return out
}

// ParseNumber parses a number in Go syntax: decimal, 0x, 0o or 0b, with
// optional underscores.
func ParseNumber(s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return v, nil
}

// ParseFieldValue parses a number or a named value of f.
func ParseFieldValue(f *catalog.FieldDesc, s string) (uint64, error) {
	if v, ok := f.Values[s]; ok {
		return v, nil
	}
	for name, v := range f.Values {
		if strings.EqualFold(name, s) {
			return v, nil
		}
	}
	v, err := ParseNumber(s)
	if err != nil {
		if len(f.Values) > 0 {
			return 0, fmt.Errorf("%w (or one of %s)", err, strings.Join(ValueNames(f), ", "))
		}
		return 0, err
	}
	return v, nil
}

// ValueNames returns the named values of f in value order.
func ValueNames(f *catalog.FieldDesc) []string {
	names := make([]string, 0, len(f.Values))
	for name := range f.Values {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		vi, vj := f.Values[names[i]], f.Values[names[j]]
		if vi != vj {
			return vi < vj
		}
		return names[i] < names[j]
	})
	return names
}
