package value

import (
	"bytes"
	"cmp"
	"encoding/binary"
	"fmt"
	"hash/maphash"
	"math"
	"strings"
)

// Compare orders a and b. Numeric kinds are promoted so that a long compares
// to a decimal exactly and anything compared to a double compares as a double.
// Strings compared to numbers or dates are converted to the other side. NULL
// sorts before every other value, callers implementing SQL semantics check for
// NULL first.
func Compare(a, b Value) (int, error) {
	if a.kind == Null || b.kind == Null {
		switch {
		case a.kind == b.kind:
			return 0, nil
		case a.kind == Null:
			return -1, nil
		default:
			return 1, nil
		}
	}
	if a.kind == b.kind {
		return compareSame(a, b), nil
	}
	switch {
	case a.kind == String && b.kind != Binary:
		ca, err := a.Convert(b.kind)
		if err != nil {
			return 0, fmt.Errorf("%w: %s and %s", ErrIncomparable, a.kind, b.kind)
		}
		return Compare(ca, b)
	case b.kind == String && a.kind != Binary:
		c, err := Compare(b, a)
		return -c, err
	case a.kind == Binary || b.kind == Binary:
		ab, aerr := a.AsBinary()
		bb, berr := b.AsBinary()
		if aerr != nil || berr != nil {
			return 0, fmt.Errorf("%w: %s and %s", ErrIncomparable, a.kind, b.kind)
		}
		return bytes.Compare(ab, bb), nil
	case a.kind == Double || b.kind == Double:
		af, aerr := a.AsDouble()
		bf, berr := b.AsDouble()
		if aerr != nil || berr != nil {
			return 0, fmt.Errorf("%w: %s and %s", ErrIncomparable, a.kind, b.kind)
		}
		return cmp.Compare(af, bf), nil
	case a.kind == Decimal || b.kind == Decimal:
		ad, aerr := a.AsDecimal()
		bd, berr := b.AsDecimal()
		if aerr != nil || berr != nil {
			return 0, fmt.Errorf("%w: %s and %s", ErrIncomparable, a.kind, b.kind)
		}
		return ad.Cmp(bd), nil
	}
	// Long, Date and Bool share the integer representation.
	return cmp.Compare(a.i, b.i), nil
}

func compareSame(a, b Value) int {
	switch a.kind {
	case Bool, Long, Date:
		return cmp.Compare(a.i, b.i)
	case Double:
		return cmp.Compare(a.f, b.f)
	case Decimal:
		return a.d.Cmp(b.d)
	case String:
		return strings.Compare(a.s, b.s)
	case Binary:
		return bytes.Compare(a.b, b.b)
	}
	return 0
}

// class groups kinds whose values may be equal to each other.
func (k Kind) class() byte {
	switch k {
	case Long, Double, Decimal, Date:
		return 'n'
	case Bool:
		return 'b'
	case String:
		return 's'
	case Binary:
		return 'x'
	}
	return 0
}

// Equal reports whether a and b belong to the same group. Unlike SQL equality
// two NULLs are equal. Values of different classes, such as a string and a
// number, are never equal so that Equal stays consistent with Hash.
func Equal(a, b Value) bool {
	if a.kind.class() != b.kind.class() {
		return false
	}
	if a.kind == Null {
		return true
	}
	c, err := Compare(a, b)
	return err == nil && c == 0
}

// Hash writes v to h such that Equal values produce the same hash.
func (v Value) Hash(h *maphash.Hash) {
	h.WriteByte(v.kind.class())
	switch v.kind {
	case Long, Date:
		writeFloat(h, float64(v.i))
	case Double:
		writeFloat(h, v.f)
	case Decimal:
		f, _ := v.d.Float64()
		writeFloat(h, f)
	case Bool:
		h.WriteByte(byte(v.i))
	case String:
		h.WriteString(v.s)
	case Binary:
		h.Write(v.b)
	}
}

func writeFloat(h *maphash.Hash, f float64) {
	if f == 0 {
		f = 0
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], math.Float64bits(f))
	h.Write(buf[:])
}
