package kv

import (
	"bytes"
	"math"
	"testing"

	"github.com/chirst/relq/value"
	"github.com/shopspring/decimal"
)

func TestEncoding(t *testing.T) {
	t.Run("encode/decode record", func(t *testing.T) {
		v := []value.Value{
			value.LongValue(-42),
			value.StringValue("first_name"),
			value.NullValue(),
			value.DoubleValue(1.5),
			value.DecimalValue(decimal.RequireFromString("12.340")),
			value.BinaryValue([]byte{0, 1, 2}),
			value.BoolValue(true),
			value.DateValue(1700000000000),
		}
		kinds := []value.Kind{
			value.Long, value.String, value.String, value.Double,
			value.Decimal, value.Binary, value.Bool, value.Date,
		}
		vb, err := EncodeRecord(v)
		if err != nil {
			t.Fatalf("expected no err got err: %s", err)
		}
		dv, err := DecodeRecord(vb, kinds)
		if err != nil {
			t.Fatalf("expected no err got err: %s", err)
		}
		for i := range v {
			if dv[i].Kind() != v[i].Kind() {
				t.Fatalf("column %d expected kind %s got %s", i, v[i].Kind(), dv[i].Kind())
			}
			if !v[i].IsNull() && !value.Equal(v[i], dv[i]) {
				t.Fatalf("column %d expected %v got %v", i, v[i], dv[i])
			}
		}
	})

	t.Run("decode truncated record", func(t *testing.T) {
		vb, err := EncodeRecord([]value.Value{value.StringValue("hello")})
		if err != nil {
			t.Fatal(err)
		}
		if _, err := DecodeRecord(vb[:len(vb)-2], []value.Kind{value.String}); err == nil {
			t.Fatal("expected error decoding truncated record")
		}
	})

	t.Run("encode/decode rowid", func(t *testing.T) {
		for _, v := range []int64{0, 1, -1, math.MaxInt64, math.MinInt64} {
			if dv := DecodeRowID(EncodeRowID(v)); dv != v {
				t.Fatalf("expected %d got %d", v, dv)
			}
		}
	})

	t.Run("compare encoded rowid", func(t *testing.T) {
		for i := int64(-math.MaxInt16); i < math.MaxInt16; i += 1 {
			k1 := EncodeRowID(i)
			k2 := EncodeRowID(i + 1)
			if c := bytes.Compare(k1, k2); c != -1 {
				t.Fatalf("expected key %d to be less than key %d", i, i+1)
			}
		}
	})

	t.Run("index key carries rowid", func(t *testing.T) {
		k := IndexKey([]value.Value{value.StringValue("a")}, 77)
		if r := DecodeRowID(k); r != 77 {
			t.Fatalf("expected rowid 77 got %d", r)
		}
		k2 := IndexKey([]value.Value{value.StringValue("b")}, 1)
		if bytes.Compare(k, k2) != -1 {
			t.Fatal("expected index keys to order by value before rowid")
		}
	})
}
