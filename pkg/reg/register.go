package reg

// ReadOnly is a register that may only be read. The zero value has no
// location and panics on access; use NewReadOnly.
type ReadOnly[T Value] struct {
	loc Location
}

// NewReadOnly returns a read-only handle for the register at loc.
// It panics if loc cannot transfer values of type T.
func NewReadOnly[T Value](loc Location) ReadOnly[T] {
	mustSupport[T](loc)
	return ReadOnly[T]{loc: loc}
}

// Location returns where the register lives.
func (r ReadOnly[T]) Location() Location { return r.loc }

// Permission returns Read.
func (r ReadOnly[T]) Permission() Permission { return Read }

// Read returns the raw register contents.
func (r ReadOnly[T]) Read() T { return load[T](r.loc) }

// HasBits reports whether every bit of mask is set.
func (r ReadOnly[T]) HasBits(mask T) bool { return r.Read()&mask == mask }

// Field returns an accessor for f.
func (r ReadOnly[T]) Field(f Field[T]) ReadOnlyField[T] {
	return ReadOnlyField[T]{reg: r, f: f}
}

// WriteOnly is a register that may only be written. Its previous contents
// cannot be observed, so partial updates start from zero. The zero value
// panics on access; use NewWriteOnly.
type WriteOnly[T Value] struct {
	loc Location
}

// NewWriteOnly returns a write-only handle for the register at loc.
// It panics if loc cannot transfer values of type T.
func NewWriteOnly[T Value](loc Location) WriteOnly[T] {
	mustSupport[T](loc)
	return WriteOnly[T]{loc: loc}
}

// Location returns where the register lives.
func (r WriteOnly[T]) Location() Location { return r.loc }

// Permission returns Write.
func (r WriteOnly[T]) Permission() Permission { return Write }

// Write replaces the register contents with value.
func (r WriteOnly[T]) Write(value T) { store(r.loc, value) }

// Overwrite writes values into an all-zero register in a single write.
func (r WriteOnly[T]) Overwrite(values ...FieldValue[T]) T {
	v := Updates(values...).Apply(0)
	r.Write(v)
	return v
}

// Field returns an accessor for f.
func (r WriteOnly[T]) Field(f Field[T]) WriteOnlyField[T] {
	return WriteOnlyField[T]{reg: r, f: f}
}

// ReadWrite is a register that may be read and written. The zero value
// panics on access; use NewReadWrite.
type ReadWrite[T Value] struct {
	loc Location
}

// NewReadWrite returns a read-write handle for the register at loc.
// It panics if loc cannot transfer values of type T.
func NewReadWrite[T Value](loc Location) ReadWrite[T] {
	mustSupport[T](loc)
	return ReadWrite[T]{loc: loc}
}

// Location returns where the register lives.
func (r ReadWrite[T]) Location() Location { return r.loc }

// Permission returns RW.
func (r ReadWrite[T]) Permission() Permission { return RW }

// Read returns the raw register contents.
func (r ReadWrite[T]) Read() T { return load[T](r.loc) }

// Write replaces the register contents with value.
func (r ReadWrite[T]) Write(value T) { store(r.loc, value) }

// ReadThenWrite reads the register once, passes the value to fn and
// writes the result once. It returns the value written.
func (r ReadWrite[T]) ReadThenWrite(fn func(T) T) T {
	v := fn(r.Read())
	r.Write(v)
	return v
}

// Apply performs u as a single read followed by a single write and
// returns the value written.
func (r ReadWrite[T]) Apply(u Update[T]) T {
	return r.ReadThenWrite(u.Apply)
}

// Modify assigns values to their fields with one read and one write,
// leaving every other bit as it was. Later values win over earlier ones
// that touch the same bits. It returns the value written.
func (r ReadWrite[T]) Modify(values ...FieldValue[T]) T {
	return r.Apply(Updates(values...))
}

// Overwrite writes values into an all-zero register in a single write,
// without reading it first.
func (r ReadWrite[T]) Overwrite(values ...FieldValue[T]) T {
	v := Updates(values...).Apply(0)
	r.Write(v)
	return v
}

// HasBits reports whether every bit of mask is set.
func (r ReadWrite[T]) HasBits(mask T) bool { return r.Read()&mask == mask }

// SetBits sets the bits of mask.
func (r ReadWrite[T]) SetBits(mask T) { r.ReadThenWrite(func(v T) T { return v | mask }) }

// ClearBits clears the bits of mask.
func (r ReadWrite[T]) ClearBits(mask T) { r.ReadThenWrite(func(v T) T { return v &^ mask }) }

// ReplaceBits replaces the bits selected by mask<<pos with value<<pos.
func (r ReadWrite[T]) ReplaceBits(value, mask T, pos uint8) {
	r.ReadThenWrite(func(v T) T { return v&^(mask<<pos) | (value&mask)<<pos })
}

// Field returns an accessor for f.
func (r ReadWrite[T]) Field(f Field[T]) ReadWriteField[T] {
	return ReadWriteField[T]{reg: r, f: f}
}

// ReadOnly returns a read-only view of the same register.
func (r ReadWrite[T]) ReadOnly() ReadOnly[T] { return ReadOnly[T]{loc: r.loc} }

// WriteOnly returns a write-only view of the same register.
func (r ReadWrite[T]) WriteOnly() WriteOnly[T] { return WriteOnly[T]{loc: r.loc} }

func load[T Value](loc Location) T {
	return T(loc.load(WidthOf[T]()))
}

func store[T Value](loc Location, v T) {
	loc.store(WidthOf[T](), uint64(v))
}

var (
	_ Reader[uint32]     = ReadOnly[uint32]{}
	_ Writer[uint32]     = WriteOnly[uint32]{}
	_ ReadWriter[uint32] = ReadWrite[uint32]{}
)
