package reg

import (
	"fmt"
)

// Field describes a contiguous range of bits inside a register of type T.
// Fields are plain values; they may overlap when a register aliases bits
// under several names. The zero Field selects no bits.
type Field[T Value] struct {
	offset uint8
	width  uint8
}

// NewField returns the field of width bits starting at bit offset.
// It fails when the range is empty or does not fit in T.
func NewField[T Value](offset, width uint) (Field[T], error) {
	rw := uint(WidthOf[T]())
	if width == 0 {
		return Field[T]{}, fmt.Errorf("%w: field at bit %d has zero width", ErrLayout, offset)
	}
	if offset >= rw || width > rw || offset+width > rw {
		return Field[T]{}, fmt.Errorf("%w: bits [%d:%d] exceed %d-bit register",
			ErrLayout, offset+width-1, offset, rw)
	}
	return Field[T]{offset: uint8(offset), width: uint8(width)}, nil
}

// MustField is like NewField but panics on an invalid range. It is meant
// for package-level register layouts.
func MustField[T Value](offset, width uint) Field[T] {
	f, err := NewField[T](offset, width)
	if err != nil {
		panic("reg: " + err.Error())
	}
	return f
}

// Bit returns the single-bit field at bit n.
func Bit[T Value](n uint) Field[T] { return MustField[T](n, 1) }

// Offset returns the index of the lowest bit of f.
func (f Field[T]) Offset() uint { return uint(f.offset) }

// Width returns the number of bits in f.
func (f Field[T]) Width() uint { return uint(f.width) }

// Max returns the largest value f can hold.
func (f Field[T]) Max() T { return ^T(0) >> (uint8(WidthOf[T]()) - f.width) }

// Mask returns the bits of f in register position.
func (f Field[T]) Mask() T { return f.Max() << f.offset }

// Fits reports whether v is representable in f without truncation.
func (f Field[T]) Fits(v T) bool { return v&^f.Max() == 0 }

// Extract returns the value of f in the raw register value.
func (f Field[T]) Extract(raw T) T { return raw >> f.offset & f.Max() }

// Signed returns the value of f in raw read as a two's complement number.
func (f Field[T]) Signed(raw T) int64 {
	if f.width == 0 {
		return 0
	}
	shift := 64 - uint(f.width)
	return int64(uint64(f.Extract(raw))<<shift) >> shift
}

// Insert returns raw with f replaced by v. Bits of v above the field
// width are dropped.
func (f Field[T]) Insert(raw, v T) T { return raw&^f.Mask() | f.place(v) }

func (f Field[T]) place(v T) T { return (v & f.Max()) << f.offset }

// Val pairs f with v for use in Modify and Overwrite. Bits of v above the
// field width are dropped when the value is applied.
func (f Field[T]) Val(v T) FieldValue[T] { return FieldValue[T]{field: f, value: v} }

// Checked is like Val but fails instead of truncating.
func (f Field[T]) Checked(v T) (FieldValue[T], error) {
	if !f.Fits(v) {
		return FieldValue[T]{}, fmt.Errorf("%w: %#x does not fit in %d-bit field %s",
			ErrOverflow, uint64(v), f.width, f)
	}
	return f.Val(v), nil
}

// Overlaps reports whether f and g share at least one bit.
func (f Field[T]) Overlaps(g Field[T]) bool { return f.Mask()&g.Mask() != 0 }

func (f Field[T]) String() string {
	if f.width == 1 {
		return fmt.Sprintf("[%d]", f.offset)
	}
	return fmt.Sprintf("[%d:%d]", uint(f.offset)+uint(f.width)-1, f.offset)
}

// FieldValue is a field together with the value to store in it.
type FieldValue[T Value] struct {
	field Field[T]
	value T
}

// Field returns the field being assigned.
func (fv FieldValue[T]) Field() Field[T] { return fv.field }

// Value returns the value as given, before truncation.
func (fv FieldValue[T]) Value() T { return fv.value }
