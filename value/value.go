// value defines the scalar values that flow between the storage layer, the
// expression evaluator and the result buffer. A Value is immutable and cheap to
// copy.
package value

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Kind is the runtime type of a value. As a static expression type Null means
// the type is not known until execution, for example a parameter marker.
type Kind uint8

const (
	Null Kind = iota
	Bool
	Long
	Double
	Decimal
	String
	Binary
	Date
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "NULL"
	case Bool:
		return "BOOLEAN"
	case Long:
		return "LONG"
	case Double:
		return "DOUBLE"
	case Decimal:
		return "DECIMAL"
	case String:
		return "STRING"
	case Binary:
		return "BINARY"
	case Date:
		return "DATE"
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// IsNumeric is true for kinds that take part in arithmetic.
func (k Kind) IsNumeric() bool {
	return k == Long || k == Double || k == Decimal
}

// Value is a tagged scalar. The zero Value is NULL.
type Value struct {
	kind Kind
	// i holds Long, Date (epoch milliseconds) and Bool (0 or 1).
	i int64
	f float64
	s string
	b []byte
	d decimal.Decimal
}

func NullValue() Value { return Value{} }

func BoolValue(b bool) Value {
	if b {
		return Value{kind: Bool, i: 1}
	}
	return Value{kind: Bool}
}

func LongValue(i int64) Value { return Value{kind: Long, i: i} }

func DoubleValue(f float64) Value { return Value{kind: Double, f: f} }

func DecimalValue(d decimal.Decimal) Value { return Value{kind: Decimal, d: d} }

func StringValue(s string) Value { return Value{kind: String, s: s} }

func BinaryValue(b []byte) Value { return Value{kind: Binary, b: b} }

// DateValue creates a date from epoch milliseconds.
func DateValue(millis int64) Value { return Value{kind: Date, i: millis} }

// TimeValue creates a date from a time truncated to milliseconds.
func TimeValue(t time.Time) Value { return Value{kind: Date, i: t.UnixMilli()} }

// FromAny converts a Go value, typically a database/sql argument, to a Value.
func FromAny(a any) (Value, error) {
	switch t := a.(type) {
	case nil:
		return NullValue(), nil
	case Value:
		return t, nil
	case bool:
		return BoolValue(t), nil
	case int:
		return LongValue(int64(t)), nil
	case int8:
		return LongValue(int64(t)), nil
	case int16:
		return LongValue(int64(t)), nil
	case int32:
		return LongValue(int64(t)), nil
	case int64:
		return LongValue(t), nil
	case uint8:
		return LongValue(int64(t)), nil
	case uint16:
		return LongValue(int64(t)), nil
	case uint32:
		return LongValue(int64(t)), nil
	case uint64:
		if t > math.MaxInt64 {
			return NullValue(), fmt.Errorf("%w: %d overflows BIGINT", ErrConversion, t)
		}
		return LongValue(int64(t)), nil
	case float32:
		return DoubleValue(float64(t)), nil
	case float64:
		return DoubleValue(t), nil
	case decimal.Decimal:
		return DecimalValue(t), nil
	case string:
		return StringValue(t), nil
	case []byte:
		return BinaryValue(t), nil
	case time.Time:
		return TimeValue(t), nil
	}
	return NullValue(), fmt.Errorf("%w: unsupported argument type %T", ErrConversion, a)
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNull() bool { return v.kind == Null }

// Raw accessors. They return the zero value when the kind does not match and
// are meant for hot paths where the kind has been checked by the binder.

func (v Value) Long() int64              { return v.i }
func (v Value) Double() float64          { return v.f }
func (v Value) Decimal() decimal.Decimal { return v.d }
func (v Value) Str() string              { return v.s }
func (v Value) Bytes() []byte            { return v.b }
func (v Value) Millis() int64            { return v.i }
func (v Value) Bool() bool               { return v.i != 0 }

// Any returns the value as a plain Go value for database/sql.
func (v Value) Any() any {
	switch v.kind {
	case Bool:
		return v.Bool()
	case Long:
		return v.i
	case Double:
		return v.f
	case Decimal:
		return v.d.String()
	case String:
		return v.s
	case Binary:
		return v.b
	case Date:
		return time.UnixMilli(v.i).UTC()
	}
	return nil
}

// String renders the value for display.
func (v Value) String() string {
	switch v.kind {
	case Null:
		return "NULL"
	case Bool:
		if v.Bool() {
			return "true"
		}
		return "false"
	case Long:
		return strconv.FormatInt(v.i, 10)
	case Double:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case Decimal:
		return v.d.String()
	case String:
		return v.s
	case Binary:
		return fmt.Sprintf("%x", v.b)
	case Date:
		return time.UnixMilli(v.i).UTC().Format("2006-01-02 15:04:05.000")
	}
	return "?"
}

// AsLong converts the value to a long. Doubles and decimals are truncated.
func (v Value) AsLong() (int64, error) {
	switch v.kind {
	case Long, Date, Bool:
		return v.i, nil
	case Double:
		if v.f >= math.MaxInt64 || v.f < math.MinInt64 || math.IsNaN(v.f) {
			return 0, fmt.Errorf("%w: %g overflows BIGINT", ErrOverflow, v.f)
		}
		return int64(v.f), nil
	case Decimal:
		if v.d.Abs().GreaterThan(maxLongDecimal) {
			return 0, fmt.Errorf("%w: %s overflows BIGINT", ErrOverflow, v.d)
		}
		return v.d.IntPart(), nil
	case String:
		s := strings.TrimSpace(v.s)
		i, err := strconv.ParseInt(s, 10, 64)
		if err == nil {
			return i, nil
		}
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return 0, fmt.Errorf("%w: %q is not a number", ErrConversion, v.s)
		}
		return DoubleValue(f).AsLong()
	}
	return 0, fmt.Errorf("%w: %s to LONG", ErrConversion, v.kind)
}

// AsDouble converts the value to a double.
func (v Value) AsDouble() (float64, error) {
	switch v.kind {
	case Long, Date, Bool:
		return float64(v.i), nil
	case Double:
		return v.f, nil
	case Decimal:
		f, _ := v.d.Float64()
		return f, nil
	case String:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.s), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not a number", ErrConversion, v.s)
		}
		return f, nil
	}
	return 0, fmt.Errorf("%w: %s to DOUBLE", ErrConversion, v.kind)
}

// AsDecimal converts the value to a decimal.
func (v Value) AsDecimal() (decimal.Decimal, error) {
	switch v.kind {
	case Long, Bool:
		return decimal.NewFromInt(v.i), nil
	case Double:
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			return decimal.Zero, fmt.Errorf("%w: %g to DECIMAL", ErrConversion, v.f)
		}
		return decimal.NewFromFloat(v.f), nil
	case Decimal:
		return v.d, nil
	case String:
		d, err := decimal.NewFromString(strings.TrimSpace(v.s))
		if err != nil {
			return decimal.Zero, fmt.Errorf("%w: %q is not a number", ErrConversion, v.s)
		}
		return d, nil
	}
	return decimal.Zero, fmt.Errorf("%w: %s to DECIMAL", ErrConversion, v.kind)
}

// AsString converts the value to its string form. Binary values are not
// converted since there is no canonical text encoding for them.
func (v Value) AsString() (string, error) {
	switch v.kind {
	case String:
		return v.s, nil
	case Binary:
		return "", fmt.Errorf("%w: BINARY to STRING", ErrConversion)
	}
	return v.String(), nil
}

// AsBinary converts the value to bytes.
func (v Value) AsBinary() ([]byte, error) {
	switch v.kind {
	case Binary:
		return v.b, nil
	case String:
		return []byte(v.s), nil
	}
	return nil, fmt.Errorf("%w: %s to BINARY", ErrConversion, v.kind)
}

// AsDate converts the value to epoch milliseconds. Strings are parsed using a
// handful of common layouts.
func (v Value) AsDate() (int64, error) {
	switch v.kind {
	case Date, Long:
		return v.i, nil
	case String:
		for _, layout := range dateLayouts {
			t, err := time.ParseInLocation(layout, strings.TrimSpace(v.s), time.UTC)
			if err == nil {
				return t.UnixMilli(), nil
			}
		}
		return 0, fmt.Errorf("%w: %q is not a date", ErrConversion, v.s)
	}
	return 0, fmt.Errorf("%w: %s to DATE", ErrConversion, v.kind)
}

var maxLongDecimal = decimal.NewFromInt(math.MaxInt64)

var dateLayouts = []string{
	"2006-01-02 15:04:05.000",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02",
}

// AsBool converts the value to a boolean. Numbers are true when non zero.
func (v Value) AsBool() (bool, error) {
	switch v.kind {
	case Bool, Long:
		return v.i != 0, nil
	case Double:
		return v.f != 0, nil
	case Decimal:
		return !v.d.IsZero(), nil
	case String:
		switch strings.ToLower(strings.TrimSpace(v.s)) {
		case "true", "1", "t", "y", "yes":
			return true, nil
		case "false", "0", "f", "n", "no":
			return false, nil
		}
	}
	return false, fmt.Errorf("%w: %s to BOOLEAN", ErrConversion, v.kind)
}

// Convert converts the value to the given kind. NULL converts to NULL.
func (v Value) Convert(k Kind) (Value, error) {
	if v.kind == k || v.kind == Null || k == Null {
		return v, nil
	}
	switch k {
	case Bool:
		b, err := v.AsBool()
		return BoolValue(b), err
	case Long:
		i, err := v.AsLong()
		return LongValue(i), err
	case Double:
		f, err := v.AsDouble()
		return DoubleValue(f), err
	case Decimal:
		d, err := v.AsDecimal()
		return DecimalValue(d), err
	case String:
		s, err := v.AsString()
		return StringValue(s), err
	case Binary:
		b, err := v.AsBinary()
		return BinaryValue(b), err
	case Date:
		d, err := v.AsDate()
		return DateValue(d), err
	}
	return NullValue(), fmt.Errorf("%w: %s to %s", ErrConversion, v.kind, k)
}
