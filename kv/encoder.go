package kv

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/chirst/relq/value"
	"github.com/shopspring/decimal"
	"google.golang.org/protobuf/encoding/protowire"
)

// rowIDSize is the byte size of an encoded rowid.
const rowIDSize = 8

// EncodeRowID encodes a rowid so that byte order matches numeric order.
func EncodeRowID(id int64) []byte {
	b := make([]byte, rowIDSize)
	binary.BigEndian.PutUint64(b, uint64(id)^(1<<63))
	return b
}

// DecodeRowID reverses EncodeRowID. It reads the last eight bytes so it also
// extracts the rowid suffix of an index key.
func DecodeRowID(b []byte) int64 {
	return int64(binary.BigEndian.Uint64(b[len(b)-rowIDSize:]) ^ (1 << 63))
}

// IndexKey builds the key of an index entry: the order preserving encoding of
// the indexed values followed by the rowid.
func IndexKey(values []value.Value, rowID int64) []byte {
	var k []byte
	for _, v := range values {
		k = value.AppendKey(k, v)
	}
	return append(k, EncodeRowID(rowID)...)
}

// EncodeRecord encodes a row. Column i is stored as protobuf field i+1 and
// NULL columns are omitted.
func EncodeRecord(values []value.Value) ([]byte, error) {
	var b []byte
	for i, v := range values {
		num := protowire.Number(i + 1)
		switch v.Kind() {
		case value.Null:
		case value.Bool:
			b = protowire.AppendTag(b, num, protowire.VarintType)
			b = protowire.AppendVarint(b, protowire.EncodeBool(v.Bool()))
		case value.Long, value.Date:
			b = protowire.AppendTag(b, num, protowire.VarintType)
			b = protowire.AppendVarint(b, protowire.EncodeZigZag(v.Long()))
		case value.Double:
			b = protowire.AppendTag(b, num, protowire.Fixed64Type)
			b = protowire.AppendFixed64(b, math.Float64bits(v.Double()))
		case value.Decimal:
			b = protowire.AppendTag(b, num, protowire.BytesType)
			b = protowire.AppendString(b, v.Decimal().String())
		case value.String:
			b = protowire.AppendTag(b, num, protowire.BytesType)
			b = protowire.AppendString(b, v.Str())
		case value.Binary:
			b = protowire.AppendTag(b, num, protowire.BytesType)
			b = protowire.AppendBytes(b, v.Bytes())
		default:
			return nil, fmt.Errorf("cannot encode %s column %d", v.Kind(), i)
		}
	}
	return b, nil
}

// DecodeRecord decodes a row encoded by EncodeRecord. kinds are the value kinds
// of the table's columns. Fields beyond the known columns are skipped.
func DecodeRecord(b []byte, kinds []value.Kind) ([]value.Value, error) {
	ret := make([]value.Value, len(kinds))
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("decode record: %w", protowire.ParseError(n))
		}
		b = b[n:]
		col := int(num) - 1
		var v value.Value
		switch typ {
		case protowire.VarintType:
			x, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("decode column %d: %w", col, protowire.ParseError(n))
			}
			b = b[n:]
			if col >= len(kinds) {
				continue
			}
			switch kinds[col] {
			case value.Bool:
				v = value.BoolValue(protowire.DecodeBool(x))
			case value.Date:
				v = value.DateValue(protowire.DecodeZigZag(x))
			default:
				v = value.LongValue(protowire.DecodeZigZag(x))
			}
		case protowire.Fixed64Type:
			x, n := protowire.ConsumeFixed64(b)
			if n < 0 {
				return nil, fmt.Errorf("decode column %d: %w", col, protowire.ParseError(n))
			}
			b = b[n:]
			v = value.DoubleValue(math.Float64frombits(x))
		case protowire.BytesType:
			x, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("decode column %d: %w", col, protowire.ParseError(n))
			}
			b = b[n:]
			if col >= len(kinds) {
				continue
			}
			switch kinds[col] {
			case value.Decimal:
				d, err := decimal.NewFromString(string(x))
				if err != nil {
					return nil, fmt.Errorf("decode column %d: %w", col, err)
				}
				v = value.DecimalValue(d)
			case value.Binary:
				v = value.BinaryValue(append([]byte(nil), x...))
			default:
				v = value.StringValue(string(x))
			}
		default:
			return nil, fmt.Errorf("decode column %d: unexpected wire type %d", col, typ)
		}
		if col >= 0 && col < len(kinds) {
			ret[col] = v
		}
	}
	return ret, nil
}
