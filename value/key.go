package value

import (
	"encoding/binary"
	"math"
	"strings"
)

// Key tags. NULL sorts first. Values of one index column always share a kind
// so the tags only need to separate NULL from the rest.
const (
	keyNull    byte = 0x00
	keyBool    byte = 0x01
	keyInt     byte = 0x02
	keyDouble  byte = 0x03
	keyDecimal byte = 0x04
	keyString  byte = 0x05
	keyBinary  byte = 0x06
)

// AppendKey appends an order preserving and prefix free encoding of v to dst.
// Comparing two encodings with bytes.Compare gives the same result as Compare
// on values of the same kind, which lets a composite key be built by appending
// the encodings of each column.
func AppendKey(dst []byte, v Value) []byte {
	switch v.kind {
	case Null:
		return append(dst, keyNull)
	case Bool:
		return append(dst, keyBool, byte(v.i))
	case Long, Date:
		dst = append(dst, keyInt)
		return binary.BigEndian.AppendUint64(dst, uint64(v.i)^(1<<63))
	case Double:
		f := v.f
		if f == 0 {
			f = 0
		}
		bits := math.Float64bits(f)
		if bits&(1<<63) != 0 {
			bits = ^bits
		} else {
			bits |= 1 << 63
		}
		dst = append(dst, keyDouble)
		return binary.BigEndian.AppendUint64(dst, bits)
	case Decimal:
		return appendDecimalKey(append(dst, keyDecimal), v)
	case String:
		return appendEscaped(append(dst, keyString), []byte(v.s))
	case Binary:
		return appendEscaped(append(dst, keyBinary), v.b)
	}
	return dst
}

// appendEscaped writes b with every 0x00 escaped as 0x00 0xff and terminates
// it with 0x00 0x01 so a shorter value sorts before any value it prefixes.
func appendEscaped(dst, b []byte) []byte {
	for _, c := range b {
		if c == 0 {
			dst = append(dst, 0x00, 0xff)
			continue
		}
		dst = append(dst, c)
	}
	return append(dst, 0x00, 0x01)
}

// appendDecimalKey writes a sign byte, then for non zero values the decimal
// exponent of 0.ddd × 10^e and the significant digits followed by a
// terminator. Negative values have the exponent and digits inverted.
func appendDecimalKey(dst []byte, v Value) []byte {
	sign := v.d.Sign()
	switch sign {
	case 0:
		return append(dst, 0x01)
	case 1:
		dst = append(dst, 0x02)
	default:
		dst = append(dst, 0x00)
	}
	digits := v.d.Coefficient().String()
	digits = strings.TrimPrefix(digits, "-")
	exp := int64(v.d.Exponent())
	trimmed := strings.TrimRight(digits, "0")
	exp += int64(len(digits) - len(trimmed))
	e := exp + int64(len(trimmed))
	body := binary.BigEndian.AppendUint32(nil, uint32(int32(e))^(1<<31))
	body = append(body, trimmed...)
	body = append(body, 0x00)
	if sign < 0 {
		for i := range body {
			body[i] = ^body[i]
		}
	}
	return append(dst, body...)
}
