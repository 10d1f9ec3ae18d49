package catalog

import (
	"fmt"

	"github.com/fkcurrie/regio/pkg/reg"
)

// Assignment sets one field by name.
type Assignment struct {
	Field string
	Value uint64
}

// The Raw functions serve callers that only know a register by its
// descriptor, such as the CLI. Each one dispatches on the register width
// to typed handles, so permissions are enforced by the same binding
// rules as typed code.

// ReadRaw reads the whole register.
func ReadRaw(d *RegisterDesc, b Backend) (uint64, error) {
	return opsFor(d.Width).read(d, b)
}

// WriteRaw replaces the whole register with v. Values wider than the
// register are rejected.
func WriteRaw(d *RegisterDesc, b Backend, v uint64) error {
	if v&^d.Width.Mask() != 0 {
		return fmt.Errorf("%w: %#x is wider than %s register %s", reg.ErrOverflow, v, d.Width, d.Name)
	}
	return opsFor(d.Width).write(d, b, v)
}

// ReadFieldRaw reads one field.
func ReadFieldRaw(d *RegisterDesc, b Backend, field string) (uint64, error) {
	fd, ok := d.Field(field)
	if !ok {
		return 0, fmt.Errorf("%w: %s.%s", ErrUnknownField, d.Name, field)
	}
	if !fd.Access.CanRead() {
		return 0, fmt.Errorf("%w: field %s.%s is %s", ErrCapability, d.Name, field, fd.Access)
	}
	return opsFor(d.Width).readField(d, b, field)
}

// SetFieldRaw sets one field and returns the value written to the
// register. On a rw register the other fields are preserved; on a
// write-only register they are written as zero. Without strict, bits of
// v above the field width are dropped.
func SetFieldRaw(d *RegisterDesc, b Backend, field string, v uint64, strict bool) (uint64, error) {
	return ModifyRaw(d, b, []Assignment{{Field: field, Value: v}}, strict)
}

// ModifyRaw applies assignments in order with one read and one write on a
// rw register, or one write from zero on a write-only register. It
// returns the value written.
func ModifyRaw(d *RegisterDesc, b Backend, assignments []Assignment, strict bool) (uint64, error) {
	for _, a := range assignments {
		fd, ok := d.Field(a.Field)
		if !ok {
			return 0, fmt.Errorf("%w: %s.%s", ErrUnknownField, d.Name, a.Field)
		}
		if !fd.Access.CanWrite() {
			return 0, fmt.Errorf("%w: field %s.%s is %s", ErrCapability, d.Name, a.Field, fd.Access)
		}
	}
	return opsFor(d.Width).modify(d, b, assignments, strict)
}

type rawOps interface {
	read(d *RegisterDesc, b Backend) (uint64, error)
	write(d *RegisterDesc, b Backend, v uint64) error
	readField(d *RegisterDesc, b Backend, field string) (uint64, error)
	modify(d *RegisterDesc, b Backend, assignments []Assignment, strict bool) (uint64, error)
}

func opsFor(w reg.Width) rawOps {
	switch w {
	case reg.Width8:
		return typedOps[uint8]{}
	case reg.Width16:
		return typedOps[uint16]{}
	case reg.Width32:
		return typedOps[uint32]{}
	default:
		return typedOps[uint64]{}
	}
}

type typedOps[T reg.Value] struct{}

func (typedOps[T]) read(d *RegisterDesc, b Backend) (uint64, error) {
	r, err := BindReader[T](d, b)
	if err != nil {
		return 0, err
	}
	return uint64(r.Read()), nil
}

func (typedOps[T]) write(d *RegisterDesc, b Backend, v uint64) error {
	w, err := BindWriter[T](d, b)
	if err != nil {
		return err
	}
	w.Write(T(v))
	return nil
}

func (typedOps[T]) readField(d *RegisterDesc, b Backend, field string) (uint64, error) {
	f, err := FieldOf[T](d, field)
	if err != nil {
		return 0, err
	}
	r, err := BindReadOnly[T](d, b)
	if err != nil {
		return 0, err
	}
	return uint64(r.Field(f).Get()), nil
}

func (typedOps[T]) modify(d *RegisterDesc, b Backend, assignments []Assignment, strict bool) (uint64, error) {
	values := make([]reg.FieldValue[T], 0, len(assignments))
	for _, a := range assignments {
		f, err := FieldOf[T](d, a.Field)
		if err != nil {
			return 0, err
		}
		if a.Value&^uint64(f.Max()) != 0 && strict {
			return 0, fmt.Errorf("%w: %#x does not fit in %d-bit field %s.%s",
				reg.ErrOverflow, a.Value, f.Width(), d.Name, a.Field)
		}
		values = append(values, f.Val(T(a.Value)))
	}

	if d.Access == reg.RW {
		rw, err := BindReadWrite[T](d, b)
		if err != nil {
			return 0, err
		}
		return uint64(rw.Modify(values...)), nil
	}
	wo, err := BindWriteOnly[T](d, b)
	if err != nil {
		return 0, err
	}
	return uint64(wo.Overwrite(values...)), nil
}
