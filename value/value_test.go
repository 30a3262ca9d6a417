package value

import (
	"bytes"
	"hash/maphash"
	"math"
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompare(t *testing.T) {
	cases := []struct {
		name string
		a, b Value
		want int
	}{
		{"long", LongValue(1), LongValue(2), -1},
		{"long double", LongValue(2), DoubleValue(1.5), 1},
		{"long decimal", LongValue(3), DecimalValue(decimal.RequireFromString("3.00")), 0},
		{"decimal double", DecimalValue(decimal.RequireFromString("0.5")), DoubleValue(0.5), 0},
		{"string number", StringValue("10"), LongValue(9), 1},
		{"number string", LongValue(9), StringValue("10"), -1},
		{"string", StringValue("a"), StringValue("b"), -1},
		{"date long", DateValue(1000), LongValue(1000), 0},
		{"null first", NullValue(), LongValue(math.MinInt64), -1},
		{"null null", NullValue(), NullValue(), 0},
		{"binary", BinaryValue([]byte{1}), BinaryValue([]byte{1, 0}), -1},
		{"bool", BoolValue(false), BoolValue(true), -1},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := Compare(c.a, c.b)
			require.NoError(t, err)
			assert.Equal(t, c.want, got)
		})
	}

	t.Run("incomparable", func(t *testing.T) {
		_, err := Compare(StringValue("abc"), LongValue(1))
		assert.ErrorIs(t, err, ErrIncomparable)
	})
}

func TestEqualHash(t *testing.T) {
	seed := maphash.MakeSeed()
	hash := func(v Value) uint64 {
		var h maphash.Hash
		h.SetSeed(seed)
		v.Hash(&h)
		return h.Sum64()
	}
	pairs := [][2]Value{
		{LongValue(2), DoubleValue(2)},
		{LongValue(2), DecimalValue(decimal.NewFromInt(2))},
		{DoubleValue(math.Copysign(0, -1)), DoubleValue(0)},
		{NullValue(), NullValue()},
		{StringValue("x"), StringValue("x")},
	}
	for _, p := range pairs {
		assert.True(t, Equal(p[0], p[1]), "%v = %v", p[0], p[1])
		assert.Equal(t, hash(p[0]), hash(p[1]), "%v = %v", p[0], p[1])
	}
	assert.False(t, Equal(StringValue("1"), LongValue(1)))
	assert.False(t, Equal(NullValue(), LongValue(0)))
}

func TestConvert(t *testing.T) {
	v, err := StringValue(" 42 ").Convert(Long)
	require.NoError(t, err)
	assert.Equal(t, int64(42), v.Long())

	v, err = LongValue(7).Convert(String)
	require.NoError(t, err)
	assert.Equal(t, "7", v.Str())

	v, err = DoubleValue(2.9).Convert(Long)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v.Long())

	v, err = StringValue("2024-03-01").Convert(Date)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC).UnixMilli(), v.Millis())

	_, err = StringValue("abc").Convert(Long)
	assert.ErrorIs(t, err, ErrConversion)

	_, err = DoubleValue(1e300).Convert(Long)
	assert.ErrorIs(t, err, ErrOverflow)

	v, err = NullValue().Convert(Long)
	require.NoError(t, err)
	assert.True(t, v.IsNull())
}

func TestFromAny(t *testing.T) {
	cases := []struct {
		in   any
		kind Kind
	}{
		{nil, Null},
		{int(1), Long},
		{int64(1), Long},
		{1.5, Double},
		{"s", String},
		{[]byte{1}, Binary},
		{true, Bool},
		{time.Now(), Date},
	}
	for _, c := range cases {
		v, err := FromAny(c.in)
		require.NoError(t, err)
		assert.Equal(t, c.kind, v.Kind())
	}
	_, err := FromAny(struct{}{})
	assert.ErrorIs(t, err, ErrConversion)
}

func TestAppendKeyOrder(t *testing.T) {
	groups := map[string][]Value{
		"long": {
			LongValue(math.MinInt64), LongValue(-5), LongValue(-1), LongValue(0),
			LongValue(1), LongValue(300), LongValue(math.MaxInt64),
		},
		"double": {
			DoubleValue(math.Inf(-1)), DoubleValue(-2.5), DoubleValue(-0.1),
			DoubleValue(0), DoubleValue(1e-9), DoubleValue(3), DoubleValue(math.Inf(1)),
		},
		"decimal": {
			DecimalValue(decimal.RequireFromString("-100")),
			DecimalValue(decimal.RequireFromString("-12.5")),
			DecimalValue(decimal.RequireFromString("-0.123")),
			DecimalValue(decimal.RequireFromString("-0.12")),
			DecimalValue(decimal.Zero),
			DecimalValue(decimal.RequireFromString("0.12")),
			DecimalValue(decimal.RequireFromString("0.123")),
			DecimalValue(decimal.RequireFromString("9.99")),
			DecimalValue(decimal.RequireFromString("10")),
			DecimalValue(decimal.RequireFromString("1000.5")),
		},
		"string": {
			StringValue(""), StringValue("a"), StringValue("a\x00"), StringValue("a\x00b"),
			StringValue("ab"), StringValue("b"),
		},
	}
	for name, vs := range groups {
		t.Run(name, func(t *testing.T) {
			keys := make([][]byte, len(vs))
			for i, v := range vs {
				keys[i] = AppendKey(nil, v)
			}
			assert.True(t, sort.SliceIsSorted(keys, func(i, j int) bool {
				return bytes.Compare(keys[i], keys[j]) < 0
			}), "keys out of order for %v", vs)
			null := AppendKey(nil, NullValue())
			assert.Negative(t, bytes.Compare(null, keys[0]))
		})
	}

	t.Run("negative zero", func(t *testing.T) {
		assert.Equal(t, AppendKey(nil, DoubleValue(0)), AppendKey(nil, DoubleValue(math.Copysign(0, -1))))
	})

	t.Run("decimal scale", func(t *testing.T) {
		a := AppendKey(nil, DecimalValue(decimal.RequireFromString("1.50")))
		b := AppendKey(nil, DecimalValue(decimal.RequireFromString("1.5")))
		assert.Equal(t, a, b)
	})

	t.Run("composite", func(t *testing.T) {
		a := AppendKey(AppendKey(nil, StringValue("a")), LongValue(9))
		b := AppendKey(AppendKey(nil, StringValue("ab")), LongValue(1))
		assert.Negative(t, bytes.Compare(a, b))
	})
}
