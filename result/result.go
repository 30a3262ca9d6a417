// result holds query output in a paged binary buffer. Every value is a one
// byte tag followed by a big endian payload. Rows are appended once and read
// back positionally, optionally after sorting the row index with an Order.
package result

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/chirst/relq/pool"
	"github.com/chirst/relq/value"
	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
)

// Tag identifies the encoding of one value.
type Tag byte

const (
	TagNone Tag = iota
	TagShort
	TagInt
	TagLong
	TagDate
	TagDouble
	TagVarchar
	TagBinary
	TagBlob
	TagDecimal
	TagBoolean
)

func (t Tag) String() string {
	switch t {
	case TagNone:
		return "NONE"
	case TagShort:
		return "SHORT"
	case TagInt:
		return "INT"
	case TagLong:
		return "LONG"
	case TagDate:
		return "DATE"
	case TagDouble:
		return "DOUBLE"
	case TagVarchar:
		return "VARCHAR"
	case TagBinary:
		return "BINARY"
	case TagBlob:
		return "BLOB"
	case TagDecimal:
		return "DECIMAL"
	case TagBoolean:
		return "BOOLEAN"
	}
	return fmt.Sprintf("Tag(%d)", byte(t))
}

const (
	// pageSize is the size of one buffer page. A row larger than a page gets a
	// page of its own.
	pageSize = 32 * 1024
	// BlobRefSize is the size of the storage reference written for a BLOB.
	BlobRefSize = 128
	// maxInlineBinary is the longest BINARY payload. Longer values are
	// written as BLOB.
	maxInlineBinary = 255
)

// ErrTagMismatch is returned by a typed getter when the stored value has a
// different tag.
var ErrTagMismatch = errors.New("column type mismatch")

// BlobRef locates the storage a BLOB value came from. Slot indexes the
// payload kept by the result so it can be read without the storage.
type BlobRef struct {
	Block  int64
	RowID  int64
	Column int32
	Length int32
	Slot   int32
}

// SelectResult is an append only buffer of encoded rows.
type SelectResult struct {
	columns []string
	// width is the number of values in a row. Columns past len(columns) are
	// hidden sort keys.
	width int
	pages [][]byte
	// rows packs (page << 32) | offset for every row.
	rows  []uint64
	arena [][]byte

	// scratch holds the row being written until EndRow.
	scratch    []byte
	written    int
	visibleEnd int

	// Read state. off is the offset of column col within the current row.
	row []byte
	col int
	off int

	enc *encoding.Encoder
	dec *encoding.Decoder
}

var utf16be = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)

var results = pool.New(
	func() *SelectResult {
		return &SelectResult{enc: utf16be.NewEncoder(), dec: utf16be.NewDecoder()}
	},
	func(r *SelectResult) { r.reset() },
)

// New takes a result from the pool. columns are the visible column names and
// hidden is the number of trailing sort keys written after them.
func New(columns []string, hidden int) *SelectResult {
	r := results.Get()
	r.columns = append(r.columns[:0], columns...)
	r.width = len(columns) + hidden
	return r
}

func (r *SelectResult) reset() {
	r.columns = r.columns[:0]
	r.width = 0
	clear(r.pages)
	r.pages = r.pages[:0]
	r.rows = r.rows[:0]
	clear(r.arena)
	r.arena = r.arena[:0]
	r.scratch = r.scratch[:0]
	r.written = 0
	r.visibleEnd = 0
	r.row = nil
}

// Close returns the result to the pool. The result must not be used after.
func (r *SelectResult) Close() {
	results.Put(r)
}

// Columns returns the visible column names.
func (r *SelectResult) Columns() []string {
	return r.columns
}

// Width returns the number of values in each row including hidden ones.
func (r *SelectResult) Width() int {
	return r.width
}

// RowCount returns the number of rows.
func (r *SelectResult) RowCount() int {
	return len(r.rows)
}

func (r *SelectResult) wrote() {
	r.written++
	if r.written == len(r.columns) {
		r.visibleEnd = len(r.scratch)
	}
}

// WriteNull appends a NULL.
func (r *SelectResult) WriteNull() {
	r.scratch = append(r.scratch, byte(TagNone))
	r.wrote()
}

// WriteShort appends a SHORT.
func (r *SelectResult) WriteShort(v int16) {
	r.scratch = append(r.scratch, byte(TagShort))
	r.scratch = binary.BigEndian.AppendUint16(r.scratch, uint16(v))
	r.wrote()
}

// WriteInt appends an INT.
func (r *SelectResult) WriteInt(v int32) {
	r.scratch = append(r.scratch, byte(TagInt))
	r.scratch = binary.BigEndian.AppendUint32(r.scratch, uint32(v))
	r.wrote()
}

// WriteLong appends a LONG.
func (r *SelectResult) WriteLong(v int64) {
	r.scratch = append(r.scratch, byte(TagLong))
	r.scratch = binary.BigEndian.AppendUint64(r.scratch, uint64(v))
	r.wrote()
}

// WriteDate appends a DATE in epoch milliseconds.
func (r *SelectResult) WriteDate(millis int64) {
	r.scratch = append(r.scratch, byte(TagDate))
	r.scratch = binary.BigEndian.AppendUint64(r.scratch, uint64(millis))
	r.wrote()
}

// WriteDouble appends a DOUBLE.
func (r *SelectResult) WriteDouble(v float64) {
	r.scratch = append(r.scratch, byte(TagDouble))
	r.scratch = binary.BigEndian.AppendUint64(r.scratch, math.Float64bits(v))
	r.wrote()
}

// WriteString appends a VARCHAR as UTF-16 code units.
func (r *SelectResult) WriteString(s string) error {
	u, err := r.enc.String(s)
	if err != nil {
		return fmt.Errorf("encode varchar: %w", err)
	}
	r.scratch = append(r.scratch, byte(TagVarchar))
	r.scratch = binary.BigEndian.AppendUint32(r.scratch, uint32(len(u)))
	r.scratch = append(r.scratch, u...)
	r.wrote()
	return nil
}

// WriteBinary appends a BINARY. Values longer than 255 bytes are written as a
// BLOB without a storage location.
func (r *SelectResult) WriteBinary(b []byte) {
	if len(b) > maxInlineBinary {
		r.WriteBlob(BlobRef{}, b)
		return
	}
	r.scratch = append(r.scratch, byte(TagBinary), byte(len(b)))
	r.scratch = append(r.scratch, b...)
	r.wrote()
}

// WriteBlob appends a BLOB reference and keeps payload for reading.
func (r *SelectResult) WriteBlob(ref BlobRef, payload []byte) {
	ref.Length = int32(len(payload))
	ref.Slot = int32(len(r.arena))
	r.arena = append(r.arena, payload)
	var buf [BlobRefSize]byte
	binary.BigEndian.PutUint64(buf[0:], uint64(ref.Block))
	binary.BigEndian.PutUint64(buf[8:], uint64(ref.RowID))
	binary.BigEndian.PutUint32(buf[16:], uint32(ref.Column))
	binary.BigEndian.PutUint32(buf[20:], uint32(ref.Length))
	binary.BigEndian.PutUint32(buf[24:], uint32(ref.Slot))
	r.scratch = append(r.scratch, byte(TagBlob))
	r.scratch = append(r.scratch, buf[:]...)
	r.wrote()
}

// WriteDecimal appends a DECIMAL as its canonical text behind a 4 byte
// big endian length.
func (r *SelectResult) WriteDecimal(d decimal.Decimal) {
	s := d.String()
	r.scratch = append(r.scratch, byte(TagDecimal))
	r.scratch = binary.BigEndian.AppendUint32(r.scratch, uint32(len(s)))
	r.scratch = append(r.scratch, s...)
	r.wrote()
}

// WriteBool appends a BOOLEAN.
func (r *SelectResult) WriteBool(b bool) {
	var v byte
	if b {
		v = 1
	}
	r.scratch = append(r.scratch, byte(TagBoolean), v)
	r.wrote()
}

// WriteValue appends v. hint selects SHORT or INT for integers that fit,
// otherwise integers are LONG.
func (r *SelectResult) WriteValue(v value.Value, hint Tag) error {
	switch v.Kind() {
	case value.Null:
		r.WriteNull()
	case value.Bool:
		r.WriteBool(v.Bool())
	case value.Long:
		i := v.Long()
		switch {
		case hint == TagShort && i >= math.MinInt16 && i <= math.MaxInt16:
			r.WriteShort(int16(i))
		case hint == TagInt && i >= math.MinInt32 && i <= math.MaxInt32:
			r.WriteInt(int32(i))
		default:
			r.WriteLong(i)
		}
	case value.Date:
		r.WriteDate(v.Millis())
	case value.Double:
		r.WriteDouble(v.Double())
	case value.Decimal:
		r.WriteDecimal(v.Decimal())
	case value.String:
		return r.WriteString(v.Str())
	case value.Binary:
		r.WriteBinary(v.Bytes())
	default:
		return fmt.Errorf("cannot write %s", v.Kind())
	}
	return nil
}

// PendingRow returns the visible part of the row being written. It is used to
// detect duplicate rows before EndRow.
func (r *SelectResult) PendingRow() []byte {
	if r.written < len(r.columns) {
		return r.scratch
	}
	return r.scratch[:r.visibleEnd]
}

// DiscardRow drops the row being written.
func (r *SelectResult) DiscardRow() {
	r.scratch = r.scratch[:0]
	r.written = 0
	r.visibleEnd = 0
}

// EndRow finishes the row being written. Rows never straddle pages.
func (r *SelectResult) EndRow() error {
	if r.written != r.width {
		n := r.written
		r.DiscardRow()
		return fmt.Errorf("row has %d values want %d", n, r.width)
	}
	n := len(r.scratch)
	last := len(r.pages) - 1
	if last < 0 || len(r.pages[last])+n > cap(r.pages[last]) {
		r.pages = append(r.pages, make([]byte, 0, max(pageSize, n)))
		last++
	}
	off := len(r.pages[last])
	r.pages[last] = append(r.pages[last], r.scratch...)
	r.rows = append(r.rows, uint64(last)<<32|uint64(off))
	r.DiscardRow()
	return nil
}

func (r *SelectResult) rowBytes(ref uint64) []byte {
	return r.pages[ref>>32][uint32(ref):]
}

// SetRow positions the reader on row i.
func (r *SelectResult) SetRow(i int) {
	r.row = r.rowBytes(r.rows[i])
	r.col = 0
	r.off = 0
}

// Limit keeps rows [offset, offset+limit). A negative limit keeps every row
// after offset.
func (r *SelectResult) Limit(offset, limit int) {
	offset = min(max(offset, 0), len(r.rows))
	r.rows = r.rows[offset:]
	if limit >= 0 && limit < len(r.rows) {
		r.rows = r.rows[:limit]
	}
}

// payloadSize returns the size of the value starting at b[0], tag included.
func payloadSize(b []byte) int {
	switch Tag(b[0]) {
	case TagNone:
		return 1
	case TagShort:
		return 3
	case TagInt:
		return 5
	case TagLong, TagDate, TagDouble:
		return 9
	case TagVarchar, TagDecimal:
		return 5 + int(binary.BigEndian.Uint32(b[1:]))
	case TagBinary:
		return 2 + int(b[1])
	case TagBlob:
		return 1 + BlobRefSize
	case TagBoolean:
		return 2
	}
	panic(fmt.Sprintf("corrupt result buffer tag %d", b[0]))
}

// seek returns the bytes of column col of the current row. Access to
// increasing columns continues from the last position; otherwise the row is
// scanned from its start.
func (r *SelectResult) seek(col int) []byte {
	if col < r.col {
		r.col = 0
		r.off = 0
	}
	for r.col < col {
		r.off += payloadSize(r.row[r.off:])
		r.col++
	}
	return r.row[r.off:]
}

// Tag returns the tag of column col of the current row.
func (r *SelectResult) Tag(col int) Tag {
	return Tag(r.seek(col)[0])
}

// IsNull reports whether column col of the current row is NULL.
func (r *SelectResult) IsNull(col int) bool {
	return r.Tag(col) == TagNone
}

func (r *SelectResult) mismatch(col int, t Tag, want string) error {
	return fmt.Errorf("%w: column %d is %s not %s", ErrTagMismatch, col, t, want)
}

// Long reads an integer column. SHORT and INT widen to int64.
func (r *SelectResult) Long(col int) (int64, error) {
	b := r.seek(col)
	switch Tag(b[0]) {
	case TagShort:
		return int64(int16(binary.BigEndian.Uint16(b[1:]))), nil
	case TagInt:
		return int64(int32(binary.BigEndian.Uint32(b[1:]))), nil
	case TagLong:
		return int64(binary.BigEndian.Uint64(b[1:])), nil
	}
	return 0, r.mismatch(col, Tag(b[0]), "integer")
}

// Date reads a DATE column as epoch milliseconds.
func (r *SelectResult) Date(col int) (int64, error) {
	b := r.seek(col)
	if Tag(b[0]) != TagDate {
		return 0, r.mismatch(col, Tag(b[0]), "DATE")
	}
	return int64(binary.BigEndian.Uint64(b[1:])), nil
}

// Double reads a DOUBLE column.
func (r *SelectResult) Double(col int) (float64, error) {
	b := r.seek(col)
	if Tag(b[0]) != TagDouble {
		return 0, r.mismatch(col, Tag(b[0]), "DOUBLE")
	}
	return math.Float64frombits(binary.BigEndian.Uint64(b[1:])), nil
}

// String reads a VARCHAR column.
func (r *SelectResult) String(col int) (string, error) {
	b := r.seek(col)
	if Tag(b[0]) != TagVarchar {
		return "", r.mismatch(col, Tag(b[0]), "VARCHAR")
	}
	n := binary.BigEndian.Uint32(b[1:])
	s, err := r.dec.Bytes(b[5 : 5+n])
	if err != nil {
		return "", fmt.Errorf("decode varchar: %w", err)
	}
	return string(s), nil
}

// Binary reads a BINARY or BLOB column.
func (r *SelectResult) Binary(col int) ([]byte, error) {
	b := r.seek(col)
	switch Tag(b[0]) {
	case TagBinary:
		return b[2 : 2+int(b[1])], nil
	case TagBlob:
		ref := decodeBlobRef(b[1:])
		return r.arena[ref.Slot], nil
	}
	return nil, r.mismatch(col, Tag(b[0]), "BINARY")
}

// Blob reads the storage reference of a BLOB column.
func (r *SelectResult) Blob(col int) (BlobRef, error) {
	b := r.seek(col)
	if Tag(b[0]) != TagBlob {
		return BlobRef{}, r.mismatch(col, Tag(b[0]), "BLOB")
	}
	return decodeBlobRef(b[1:]), nil
}

func decodeBlobRef(b []byte) BlobRef {
	return BlobRef{
		Block:  int64(binary.BigEndian.Uint64(b[0:])),
		RowID:  int64(binary.BigEndian.Uint64(b[8:])),
		Column: int32(binary.BigEndian.Uint32(b[16:])),
		Length: int32(binary.BigEndian.Uint32(b[20:])),
		Slot:   int32(binary.BigEndian.Uint32(b[24:])),
	}
}

// Decimal reads a DECIMAL column.
func (r *SelectResult) Decimal(col int) (decimal.Decimal, error) {
	b := r.seek(col)
	if Tag(b[0]) != TagDecimal {
		return decimal.Decimal{}, r.mismatch(col, Tag(b[0]), "DECIMAL")
	}
	n := int(binary.BigEndian.Uint32(b[1:]))
	return decimal.NewFromString(string(b[5 : 5+n]))
}

// Bool reads a BOOLEAN column.
func (r *SelectResult) Bool(col int) (bool, error) {
	b := r.seek(col)
	if Tag(b[0]) != TagBoolean {
		return false, r.mismatch(col, Tag(b[0]), "BOOLEAN")
	}
	return b[1] != 0, nil
}

// Value reads column col of the current row whatever its tag.
func (r *SelectResult) Value(col int) (value.Value, error) {
	switch r.Tag(col) {
	case TagNone:
		return value.NullValue(), nil
	case TagShort, TagInt, TagLong:
		i, err := r.Long(col)
		return value.LongValue(i), err
	case TagDate:
		i, err := r.Date(col)
		return value.DateValue(i), err
	case TagDouble:
		f, err := r.Double(col)
		return value.DoubleValue(f), err
	case TagVarchar:
		s, err := r.String(col)
		return value.StringValue(s), err
	case TagBinary, TagBlob:
		b, err := r.Binary(col)
		return value.BinaryValue(b), err
	case TagDecimal:
		d, err := r.Decimal(col)
		return value.DecimalValue(d), err
	case TagBoolean:
		b, err := r.Bool(col)
		return value.BoolValue(b), err
	}
	return value.Value{}, fmt.Errorf("corrupt result buffer tag %d", r.Tag(col))
}

// Row reads the visible columns of row i.
func (r *SelectResult) Row(i int) ([]value.Value, error) {
	r.SetRow(i)
	ret := make([]value.Value, len(r.columns))
	for c := range ret {
		v, err := r.Value(c)
		if err != nil {
			return nil, err
		}
		ret[c] = v
	}
	return ret, nil
}
