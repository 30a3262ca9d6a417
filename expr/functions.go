package expr

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/chirst/relq/value"
	"github.com/shopspring/decimal"
)

// Func is a scalar function implementation.
type Func struct {
	Name string
	// Kind computes the static result kind from the argument kinds.
	Kind func(args []value.Kind) value.Kind
	Eval func(env Env, args []value.Value) (value.Value, error)
	// Strict functions return NULL when any argument is NULL without calling
	// Eval.
	Strict bool
	// Volatile functions may return a different value on every call and are
	// never folded.
	Volatile bool
}

var funcs = map[string]*Func{}

func register(f *Func) { funcs[f.Name] = f }

// Lookup returns the implementation of a scalar function by its canonical name.
func Lookup(name string) (*Func, bool) {
	f, ok := funcs[strings.ToUpper(name)]
	return f, ok
}

func init() {
	register(&Func{Name: "ABS", Kind: numericArg, Strict: true, Eval: absFunc})
	register(&Func{Name: "ROUND", Kind: numericArg, Strict: true, Eval: roundFunc})
	register(&Func{Name: "FLOOR", Kind: numericArg, Strict: true, Eval: floorFunc})
	register(&Func{Name: "CEILING", Kind: numericArg, Strict: true, Eval: ceilFunc})
	register(&Func{Name: "SQRT", Kind: always(value.Double), Strict: true, Eval: sqrtFunc})
	register(&Func{Name: "POWER", Kind: always(value.Double), Strict: true, Eval: powerFunc})
	register(&Func{Name: "MOD", Kind: arithArgs, Strict: true, Eval: modFunc})
	register(&Func{Name: "SIGN", Kind: always(value.Long), Strict: true, Eval: signFunc})
	register(&Func{Name: "UPPER", Kind: always(value.String), Strict: true, Eval: stringFunc(strings.ToUpper)})
	register(&Func{Name: "LOWER", Kind: always(value.String), Strict: true, Eval: stringFunc(strings.ToLower)})
	register(&Func{Name: "TRIM", Kind: always(value.String), Strict: true, Eval: stringFunc(strings.TrimSpace)})
	register(&Func{Name: "LTRIM", Kind: always(value.String), Strict: true, Eval: stringFunc(trimLeft)})
	register(&Func{Name: "RTRIM", Kind: always(value.String), Strict: true, Eval: stringFunc(trimRight)})
	register(&Func{Name: "LENGTH", Kind: always(value.Long), Strict: true, Eval: lengthFunc})
	register(&Func{Name: "SUBSTRING", Kind: always(value.String), Strict: true, Eval: substringFunc})
	register(&Func{Name: "REPLACE", Kind: always(value.String), Strict: true, Eval: replaceFunc})
	register(&Func{Name: "CONCAT", Kind: always(value.String), Eval: concatFunc})
	register(&Func{Name: "COALESCE", Kind: commonArgs, Eval: coalesceFunc})
	register(&Func{Name: "IFNULL", Kind: commonArgs, Eval: coalesceFunc})
	register(&Func{Name: "NULLIF", Kind: firstArg, Eval: nullifFunc})
	register(&Func{Name: "NOW", Kind: always(value.Date), Volatile: true, Eval: nowFunc})
}

func always(k value.Kind) func([]value.Kind) value.Kind {
	return func([]value.Kind) value.Kind { return k }
}

func firstArg(args []value.Kind) value.Kind { return args[0] }

func numericArg(args []value.Kind) value.Kind { return numericKind(args[0]) }

func arithArgs(args []value.Kind) value.Kind { return arithKind(args[0], args[1]) }

func commonArgs(args []value.Kind) value.Kind {
	k, _ := commonKind(args)
	return k
}

// toNumeric converts v to the kind arithmetic uses for it.
func toNumeric(v value.Value) (value.Value, error) {
	return v.Convert(numericKind(v.Kind()))
}

func absFunc(_ Env, args []value.Value) (value.Value, error) {
	v, err := toNumeric(args[0])
	if err != nil {
		return v, err
	}
	switch v.Kind() {
	case value.Long:
		if v.Long() == math.MinInt64 {
			return value.NullValue(), fmt.Errorf("%w: ABS(%d)", ErrOverflow, v.Long())
		}
		if v.Long() < 0 {
			return value.LongValue(-v.Long()), nil
		}
		return v, nil
	case value.Double:
		return value.DoubleValue(math.Abs(v.Double())), nil
	}
	return value.DecimalValue(v.Decimal().Abs()), nil
}

func roundFunc(_ Env, args []value.Value) (value.Value, error) {
	v, err := toNumeric(args[0])
	if err != nil {
		return v, err
	}
	places := int64(0)
	if len(args) > 1 {
		if places, err = args[1].AsLong(); err != nil {
			return value.NullValue(), err
		}
	}
	switch v.Kind() {
	case value.Long:
		if places >= 0 {
			return v, nil
		}
		d := decimal.NewFromInt(v.Long()).Round(int32(places))
		return value.LongValue(d.IntPart()), nil
	case value.Double:
		d := decimal.NewFromFloat(v.Double()).Round(int32(places))
		f, _ := d.Float64()
		return value.DoubleValue(f), nil
	}
	return value.DecimalValue(v.Decimal().Round(int32(places))), nil
}

func floorFunc(_ Env, args []value.Value) (value.Value, error) {
	v, err := toNumeric(args[0])
	if err != nil {
		return v, err
	}
	switch v.Kind() {
	case value.Long:
		return v, nil
	case value.Double:
		return value.DoubleValue(math.Floor(v.Double())), nil
	}
	return value.DecimalValue(v.Decimal().Floor()), nil
}

func ceilFunc(_ Env, args []value.Value) (value.Value, error) {
	v, err := toNumeric(args[0])
	if err != nil {
		return v, err
	}
	switch v.Kind() {
	case value.Long:
		return v, nil
	case value.Double:
		return value.DoubleValue(math.Ceil(v.Double())), nil
	}
	return value.DecimalValue(v.Decimal().Ceil()), nil
}

func sqrtFunc(_ Env, args []value.Value) (value.Value, error) {
	f, err := args[0].AsDouble()
	if err != nil {
		return value.NullValue(), err
	}
	if f < 0 {
		return value.NullValue(), nil
	}
	return value.DoubleValue(math.Sqrt(f)), nil
}

func powerFunc(_ Env, args []value.Value) (value.Value, error) {
	x, err := args[0].AsDouble()
	if err != nil {
		return value.NullValue(), err
	}
	y, err := args[1].AsDouble()
	if err != nil {
		return value.NullValue(), err
	}
	return value.DoubleValue(math.Pow(x, y)), nil
}

func modFunc(_ Env, args []value.Value) (value.Value, error) {
	return arith(OpMod, value.Null, args[0], args[1])
}

func signFunc(_ Env, args []value.Value) (value.Value, error) {
	v, err := toNumeric(args[0])
	if err != nil {
		return v, err
	}
	c, err := value.Compare(v, value.LongValue(0))
	if err != nil {
		return value.NullValue(), err
	}
	return value.LongValue(int64(c)), nil
}

func trimLeft(s string) string  { return strings.TrimLeft(s, " \t\r\n") }
func trimRight(s string) string { return strings.TrimRight(s, " \t\r\n") }

func stringFunc(fn func(string) string) func(Env, []value.Value) (value.Value, error) {
	return func(_ Env, args []value.Value) (value.Value, error) {
		s, err := args[0].AsString()
		if err != nil {
			return value.NullValue(), err
		}
		return value.StringValue(fn(s)), nil
	}
}

func lengthFunc(_ Env, args []value.Value) (value.Value, error) {
	if args[0].Kind() == value.Binary {
		return value.LongValue(int64(len(args[0].Bytes()))), nil
	}
	s, err := args[0].AsString()
	if err != nil {
		return value.NullValue(), err
	}
	return value.LongValue(int64(utf8.RuneCountInString(s))), nil
}

// substringFunc counts characters from 1. A start before the first character
// shortens the length accordingly.
func substringFunc(_ Env, args []value.Value) (value.Value, error) {
	s, err := args[0].AsString()
	if err != nil {
		return value.NullValue(), err
	}
	start, err := args[1].AsLong()
	if err != nil {
		return value.NullValue(), err
	}
	runes := []rune(s)
	end := int64(len(runes)) + 1
	if len(args) > 2 {
		n, err := args[2].AsLong()
		if err != nil {
			return value.NullValue(), err
		}
		if n < 0 {
			return value.StringValue(""), nil
		}
		end = min(end, start+n)
	}
	start = max(start, 1)
	if start >= end {
		return value.StringValue(""), nil
	}
	return value.StringValue(string(runes[start-1 : end-1])), nil
}

func replaceFunc(_ Env, args []value.Value) (value.Value, error) {
	var s [3]string
	for i := range s {
		var err error
		if s[i], err = args[i].AsString(); err != nil {
			return value.NullValue(), err
		}
	}
	if s[1] == "" {
		return value.StringValue(s[0]), nil
	}
	return value.StringValue(strings.ReplaceAll(s[0], s[1], s[2])), nil
}

// concatFunc skips NULL arguments, unlike the || operator.
func concatFunc(_ Env, args []value.Value) (value.Value, error) {
	var b strings.Builder
	for _, a := range args {
		if a.IsNull() {
			continue
		}
		s, err := a.AsString()
		if err != nil {
			return value.NullValue(), err
		}
		b.WriteString(s)
	}
	return value.StringValue(b.String()), nil
}

func coalesceFunc(_ Env, args []value.Value) (value.Value, error) {
	for _, a := range args {
		if !a.IsNull() {
			return a, nil
		}
	}
	return value.NullValue(), nil
}

func nullifFunc(_ Env, args []value.Value) (value.Value, error) {
	if args[0].IsNull() || args[1].IsNull() {
		return args[0], nil
	}
	c, err := value.Compare(args[0], args[1])
	if err != nil {
		return value.NullValue(), err
	}
	if c == 0 {
		return value.NullValue(), nil
	}
	return args[0], nil
}

func nowFunc(env Env, _ []value.Value) (value.Value, error) {
	return value.TimeValue(env.Now()), nil
}
