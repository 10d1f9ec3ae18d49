// Package reg provides typed access to hardware registers.
//
// A register is described by where it lives (a Location), how wide it is
// (the type parameter T) and what may be done to it (the handle type:
// ReadOnly, WriteOnly or ReadWrite). Operations that a permission does not
// allow are not methods of the corresponding handle, so writing a
// read-only register does not compile.
//
// Handles are immutable values that hold no state of their own. Every
// operation goes straight to the platform primitive behind the Location.
// Read-modify-write sequences are not atomic with respect to other cores
// or interrupt handlers; callers that share a register across execution
// contexts must provide their own mutual exclusion.
package reg

import (
	"fmt"
	"math/bits"
)

// Value is the set of raw register types.
type Value interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64
}

// Width is the transfer size of a register access in bits.
type Width uint8

const (
	Width8  Width = 8
	Width16 Width = 16
	Width32 Width = 32
	Width64 Width = 64
)

// Valid reports whether w is one of the supported transfer sizes.
func (w Width) Valid() bool {
	switch w {
	case Width8, Width16, Width32, Width64:
		return true
	}
	return false
}

// Bytes returns the transfer size in bytes.
func (w Width) Bytes() uintptr { return uintptr(w) / 8 }

// Mask returns a mask covering every bit of a w-bit register.
func (w Width) Mask() uint64 {
	if w >= Width64 {
		return ^uint64(0)
	}
	return 1<<w - 1
}

func (w Width) String() string { return fmt.Sprintf("%d-bit", uint8(w)) }

// WidthOf returns the width of registers of type T.
func WidthOf[T Value]() Width {
	return Width(bits.Len64(uint64(^T(0))))
}

// Permission is the access capability of a register or field.
type Permission uint8

const (
	Read Permission = 1 << iota
	Write
	RW = Read | Write
)

// CanRead reports whether p includes Read.
func (p Permission) CanRead() bool { return p&Read != 0 }

// CanWrite reports whether p includes Write.
func (p Permission) CanWrite() bool { return p&Write != 0 }

// Includes reports whether every capability of q is also in p.
func (p Permission) Includes(q Permission) bool { return p&q == q }

func (p Permission) String() string {
	switch p {
	case Read:
		return "r"
	case Write:
		return "w"
	case RW:
		return "rw"
	}
	return fmt.Sprintf("Permission(%d)", uint8(p))
}

// Reader is implemented by handles that permit reads.
type Reader[T Value] interface {
	Read() T
	Location() Location
}

// Writer is implemented by handles that permit writes.
type Writer[T Value] interface {
	Write(value T)
	Location() Location
}

// ReadWriter is implemented by handles that permit both.
type ReadWriter[T Value] interface {
	Reader[T]
	Writer[T]
	ReadThenWrite(fn func(T) T) T
	Modify(values ...FieldValue[T]) T
}
