package reg

// Update is a precomputed change to a register: the bits to clear and the
// bits to set in their place. It is built from field assignments by
// Updates and applied with ReadWrite.Apply, so a batch of field changes
// costs one read and one write.
type Update[T Value] struct {
	mask  T
	value T
}

// Updates folds values, in order, into a single Update. Where two
// assignments touch the same bit the later one wins.
func Updates[T Value](values ...FieldValue[T]) Update[T] {
	var u Update[T]
	return u.With(values...)
}

// With returns u followed by values.
func (u Update[T]) With(values ...FieldValue[T]) Update[T] {
	for _, fv := range values {
		m := fv.field.Mask()
		u.mask |= m
		u.value = u.value&^m | fv.field.place(fv.value)
	}
	return u
}

// Then returns u followed by v; bits set by both take v's value.
func (u Update[T]) Then(v Update[T]) Update[T] {
	return Update[T]{mask: u.mask | v.mask, value: u.value&^v.mask | v.value}
}

// Mask returns every bit touched by u.
func (u Update[T]) Mask() T { return u.mask }

// Value returns the new contents of the touched bits.
func (u Update[T]) Value() T { return u.value }

// Apply returns raw with the touched bits replaced.
func (u Update[T]) Apply(raw T) T { return raw&^u.mask | u.value }
