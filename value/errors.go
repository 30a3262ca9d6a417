package value

import "errors"

var (
	// ErrConversion is returned when a value cannot be represented as the
	// requested kind.
	ErrConversion = errors.New("unsupported conversion")
	// ErrOverflow is returned when a numeric value does not fit the target
	// kind.
	ErrOverflow = errors.New("numeric overflow")
	// ErrIncomparable is returned when two kinds have no defined ordering.
	ErrIncomparable = errors.New("values are not comparable")
)
