package reg

import "errors"

var (
	// ErrLayout reports a field that does not fit its register.
	ErrLayout = errors.New("invalid field layout")
	// ErrWidth reports a register width the location cannot transfer.
	ErrWidth = errors.New("unsupported register width")
	// ErrLocation reports a location without a usable primitive.
	ErrLocation = errors.New("invalid register location")
	// ErrOverflow reports a strict-mode value wider than its field.
	ErrOverflow = errors.New("value overflows field")
)
