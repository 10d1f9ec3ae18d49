package catalog

import (
	"fmt"

	"github.com/fkcurrie/regio/pkg/reg"
)

func bindLocation[T reg.Value](d *RegisterDesc, b Backend) (reg.Location, error) {
	if w := reg.WidthOf[T](); w != d.Width {
		return reg.Location{}, fmt.Errorf("%w: %s is %s, bound as %s", ErrWidth, d.Name, d.Width, w)
	}
	loc, err := d.Location(b)
	if err != nil {
		return reg.Location{}, err
	}
	if err := loc.Supports(d.Width); err != nil {
		return reg.Location{}, fmt.Errorf("%s: %w", d.Name, err)
	}
	return loc, nil
}

func denied(d *RegisterDesc, want reg.Permission) error {
	return fmt.Errorf("%w: %s is %s, need %s", ErrCapability, d.Name, d.Access, want)
}

// BindReadOnly returns a read-only handle for d. Any readable register
// may be bound read-only.
func BindReadOnly[T reg.Value](d *RegisterDesc, b Backend) (reg.ReadOnly[T], error) {
	if !d.Access.CanRead() {
		return reg.ReadOnly[T]{}, denied(d, reg.Read)
	}
	loc, err := bindLocation[T](d, b)
	if err != nil {
		return reg.ReadOnly[T]{}, err
	}
	return reg.NewReadOnly[T](loc), nil
}

// BindWriteOnly returns a write-only handle for d. Any writable register
// may be bound write-only.
func BindWriteOnly[T reg.Value](d *RegisterDesc, b Backend) (reg.WriteOnly[T], error) {
	if !d.Access.CanWrite() {
		return reg.WriteOnly[T]{}, denied(d, reg.Write)
	}
	loc, err := bindLocation[T](d, b)
	if err != nil {
		return reg.WriteOnly[T]{}, err
	}
	return reg.NewWriteOnly[T](loc), nil
}

// BindReadWrite returns a read-write handle for d, which must be
// declared rw.
func BindReadWrite[T reg.Value](d *RegisterDesc, b Backend) (reg.ReadWrite[T], error) {
	if d.Access != reg.RW {
		return reg.ReadWrite[T]{}, denied(d, reg.RW)
	}
	loc, err := bindLocation[T](d, b)
	if err != nil {
		return reg.ReadWrite[T]{}, err
	}
	return reg.NewReadWrite[T](loc), nil
}

// BindReader returns the most capable readable handle for d.
func BindReader[T reg.Value](d *RegisterDesc, b Backend) (reg.Reader[T], error) {
	if d.Access == reg.RW {
		rw, err := BindReadWrite[T](d, b)
		if err != nil {
			return nil, err
		}
		return rw, nil
	}
	ro, err := BindReadOnly[T](d, b)
	if err != nil {
		return nil, err
	}
	return ro, nil
}

// BindWriter returns the most capable writable handle for d.
func BindWriter[T reg.Value](d *RegisterDesc, b Backend) (reg.Writer[T], error) {
	if d.Access == reg.RW {
		rw, err := BindReadWrite[T](d, b)
		if err != nil {
			return nil, err
		}
		return rw, nil
	}
	wo, err := BindWriteOnly[T](d, b)
	if err != nil {
		return nil, err
	}
	return wo, nil
}

// FieldOf returns the layout of the field called name.
func FieldOf[T reg.Value](d *RegisterDesc, name string) (reg.Field[T], error) {
	fd, ok := d.Field(name)
	if !ok {
		return reg.Field[T]{}, fmt.Errorf("%w: %s.%s", ErrUnknownField, d.Name, name)
	}
	if w := reg.WidthOf[T](); w != d.Width {
		return reg.Field[T]{}, fmt.Errorf("%w: %s is %s, field requested as %s", ErrWidth, d.Name, d.Width, w)
	}
	return reg.NewField[T](fd.Offset, fd.Width)
}
