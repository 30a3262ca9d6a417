package catalog

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/chirst/relq/value"
)

// DataType is the declared type of a column.
type DataType int

const (
	TypeUnknown DataType = iota
	TypeVarchar
	TypeChar
	TypeText
	TypeVarbinary
	TypeBinary
	TypeBlob
	TypeSmallInt
	TypeInteger
	TypeBigInt
	TypeDouble
	TypeDecimal
	TypeDateTime
	TypeBoolean
	TypeIdentity
)

var typeNames = map[string]DataType{
	"VARCHAR":   TypeVarchar,
	"CHAR":      TypeChar,
	"TINYTEXT":  TypeText,
	"TEXT":      TypeText,
	"CLOB":      TypeText,
	"VARBINARY": TypeVarbinary,
	"BINARY":    TypeBinary,
	"BLOB":      TypeBlob,
	"SMALLINT":  TypeSmallInt,
	"TINYINT":   TypeSmallInt,
	"BIT":       TypeSmallInt,
	"INTEGER":   TypeInteger,
	"INT":       TypeInteger,
	"MEDIUMINT": TypeInteger,
	"BIGINT":    TypeBigInt,
	"DOUBLE":    TypeDouble,
	"FLOAT":     TypeDouble,
	"REAL":      TypeDouble,
	"DECIMAL":   TypeDecimal,
	"NUMERIC":   TypeDecimal,
	"DATETIME":  TypeDateTime,
	"TIMESTAMP": TypeDateTime,
	"BOOLEAN":   TypeBoolean,
	"IDENTITY":  TypeIdentity,
}

// ParseType resolves a type name as written in CREATE TABLE.
func ParseType(name string) (DataType, bool) {
	t, ok := typeNames[strings.ToUpper(name)]
	return t, ok
}

// IsTypeName reports whether the word names a column type.
func IsTypeName(name string) bool {
	_, ok := ParseType(name)
	return ok
}

func (t DataType) String() string {
	switch t {
	case TypeVarchar:
		return "VARCHAR"
	case TypeChar:
		return "CHAR"
	case TypeText:
		return "TEXT"
	case TypeVarbinary:
		return "VARBINARY"
	case TypeBinary:
		return "BINARY"
	case TypeBlob:
		return "BLOB"
	case TypeSmallInt:
		return "SMALLINT"
	case TypeInteger:
		return "INTEGER"
	case TypeBigInt:
		return "BIGINT"
	case TypeDouble:
		return "DOUBLE"
	case TypeDecimal:
		return "DECIMAL"
	case TypeDateTime:
		return "DATETIME"
	case TypeBoolean:
		return "BOOLEAN"
	case TypeIdentity:
		return "IDENTITY"
	}
	return "UNKNOWN"
}

// Kind is the runtime kind values of this type are stored as.
func (t DataType) Kind() value.Kind {
	switch t {
	case TypeVarchar, TypeChar, TypeText:
		return value.String
	case TypeVarbinary, TypeBinary, TypeBlob:
		return value.Binary
	case TypeSmallInt, TypeInteger, TypeBigInt, TypeIdentity:
		return value.Long
	case TypeDouble:
		return value.Double
	case TypeDecimal:
		return value.Decimal
	case TypeDateTime:
		return value.Date
	case TypeBoolean:
		return value.Bool
	}
	return value.Null
}

// IsIntegral is true for types that may serve as a rowid.
func (t DataType) IsIntegral() bool {
	switch t {
	case TypeSmallInt, TypeInteger, TypeBigInt, TypeIdentity:
		return true
	}
	return false
}

// Coerce converts v into the column's type and checks the declared size. NULL
// is returned unchanged, NOT NULL is enforced by the caller.
func (c *Column) Coerce(v value.Value) (value.Value, error) {
	if v.IsNull() {
		return v, nil
	}
	cv, err := v.Convert(c.Type.Kind())
	if err != nil {
		return value.NullValue(), fmt.Errorf("column %s: %w", c.Name, err)
	}
	switch c.Type {
	case TypeVarchar, TypeChar:
		if c.Size > 0 && utf8.RuneCountInString(cv.Str()) > c.Size {
			return value.NullValue(), fmt.Errorf("%w: column %s holds %d characters", ErrValueTooLong, c.Name, c.Size)
		}
	case TypeVarbinary, TypeBinary:
		if c.Size > 0 && len(cv.Bytes()) > c.Size {
			return value.NullValue(), fmt.Errorf("%w: column %s holds %d bytes", ErrValueTooLong, c.Name, c.Size)
		}
	case TypeSmallInt:
		if cv.Long() < math.MinInt16 || cv.Long() > math.MaxInt16 {
			return value.NullValue(), fmt.Errorf("%w: %d for SMALLINT column %s", value.ErrOverflow, cv.Long(), c.Name)
		}
	case TypeInteger:
		if cv.Long() < math.MinInt32 || cv.Long() > math.MaxInt32 {
			return value.NullValue(), fmt.Errorf("%w: %d for INTEGER column %s", value.ErrOverflow, cv.Long(), c.Name)
		}
	case TypeDecimal:
		d := cv.Decimal()
		if c.Size > 0 {
			d = d.Round(int32(c.Scale))
			intDigits := len(d.Abs().Truncate(0).String())
			if d.Abs().LessThan(one) {
				intDigits = 0
			}
			if intDigits > c.Size-c.Scale {
				return value.NullValue(), fmt.Errorf("%w: %s for DECIMAL(%d,%d) column %s", value.ErrOverflow, d, c.Size, c.Scale, c.Name)
			}
			cv = value.DecimalValue(d)
		}
	}
	return cv, nil
}
