package reg

// ReadOnlyField reads one field of a read-only register.
type ReadOnlyField[T Value] struct {
	reg ReadOnly[T]
	f   Field[T]
}

// Field returns the bit range of the accessor.
func (a ReadOnlyField[T]) Field() Field[T] { return a.f }

// Get reads the register and returns the field value.
func (a ReadOnlyField[T]) Get() T { return a.f.Extract(a.reg.Read()) }

// WriteOnlyField writes one field of a write-only register. Because the
// register cannot be read back, Set writes every other bit as zero.
// Callers that need to preserve other fields must track the register
// contents themselves and use Write on the register.
type WriteOnlyField[T Value] struct {
	reg WriteOnly[T]
	f   Field[T]
}

// Field returns the bit range of the accessor.
func (a WriteOnlyField[T]) Field() Field[T] { return a.f }

// Set writes v into the field of an otherwise zero register. Bits of v
// above the field width are dropped. It returns the value written.
func (a WriteOnlyField[T]) Set(v T) T {
	raw := a.f.place(v)
	a.reg.Write(raw)
	return raw
}

// SetChecked is like Set but fails instead of truncating.
func (a WriteOnlyField[T]) SetChecked(v T) error {
	if _, err := a.f.Checked(v); err != nil {
		return err
	}
	a.Set(v)
	return nil
}

// ReadWriteField reads and updates one field of a read-write register.
type ReadWriteField[T Value] struct {
	reg ReadWrite[T]
	f   Field[T]
}

// Field returns the bit range of the accessor.
func (a ReadWriteField[T]) Field() Field[T] { return a.f }

// Get reads the register and returns the field value.
func (a ReadWriteField[T]) Get() T { return a.f.Extract(a.reg.Read()) }

// Set replaces the field with v using one read and one write, leaving
// the other bits of the register untouched. Bits of v above the field
// width are dropped. It returns the value written to the register.
func (a ReadWriteField[T]) Set(v T) T {
	return a.reg.Modify(a.f.Val(v))
}

// SetChecked is like Set but fails instead of truncating, without
// touching the register.
func (a ReadWriteField[T]) SetChecked(v T) error {
	fv, err := a.f.Checked(v)
	if err != nil {
		return err
	}
	a.reg.Modify(fv)
	return nil
}

// IsSet reports whether any bit of the field is set.
func (a ReadWriteField[T]) IsSet() bool { return a.Get() != 0 }
