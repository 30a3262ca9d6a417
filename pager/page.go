package pager

import (
	"bytes"
	"encoding/binary"
	"slices"
	"sort"
)

// Page is structured as follows where values accumulate start to end unless
// otherwise specified:
//   - 2 bytes for the Page type. Which could be internal or leaf.
//   - 4 bytes for the parent pointer (btree).
//   - 4 bytes for the left pointer (btree).
//   - 4 bytes for the right pointer (btree).
//   - 2 bytes for the count of tuples stored on the Page.
//   - 4 bytes for the tuple offsets (2 bytes key 2 bytes value) multiplied by
//     the count of tuples previously mentioned.
//   - Variable length key and value tuples filling the remaining space. Which
//     accumulates from the end of the Page to the start.
//
// Tuple offsets are sorted and listed in order. Tuples are stored in reverse
// order starting at the end of the Page. This is so the end of each tuple can
// be calculated by the start of the previous tuple and in the case of the first
// tuple the size of the Page.
//
// Example page:
// +---------------------------------------------------------------------------+
// | Page type - Parent pointer - Left pointer - Right pointer - Tuple Count - |
// | Tuple offsets - Tuple offset 1 - Tuple offset 2 - Tuple offset 3 ---------|
// |--> grows forwards                                                         |
// |                  grows backwards <----------- Tuple 3 - Tuple 2 - Tuple 1 |
// +---------------------------------------------------------------------------+
type Page struct {
	content []byte
	number  int
}

// PageTuple is a variable length key value pair.
type PageTuple struct {
	Key   []byte
	Value []byte
}

// Clone returns a private copy of the page.
func (p *Page) Clone() *Page {
	return &Page{content: slices.Clone(p.content), number: p.number}
}

func (p *Page) getPointer(offset int) (bool, int) {
	pn := binary.LittleEndian.Uint32(p.content[offset : offset+pagePointerSize])
	if pn == emptyParentPageNumber {
		return false, emptyParentPageNumber
	}
	return true, int(pn)
}

func (p *Page) setPointer(offset, pageNumber int) {
	binary.LittleEndian.PutUint32(p.content[offset:offset+pagePointerSize], uint32(pageNumber))
}

func (p *Page) GetParentPageNumber() (hasParent bool, pageNumber int) {
	return p.getPointer(parentPointerOffset)
}

func (p *Page) SetParentPageNumber(pageNumber int) {
	p.setPointer(parentPointerOffset, pageNumber)
}

func (p *Page) GetLeftPageNumber() (hasLeft bool, pageNumber int) {
	return p.getPointer(leftPointerOffset)
}

func (p *Page) SetLeftPageNumber(pageNumber int) {
	p.setPointer(leftPointerOffset, pageNumber)
}

func (p *Page) GetRightPageNumber() (hasRight bool, pageNumber int) {
	return p.getPointer(rightPointerOffset)
}

func (p *Page) SetRightPageNumber(pageNumber int) {
	p.setPointer(rightPointerOffset, pageNumber)
}

func (p *Page) GetNumber() int {
	return p.number
}

func (p *Page) GetNumberAsBytes() []byte {
	bn := make([]byte, freePageCounterSize)
	binary.LittleEndian.PutUint32(bn, uint32(p.number))
	return bn
}

// PageNumberFromBytes decodes a child pointer stored by GetNumberAsBytes.
func PageNumberFromBytes(b []byte) int {
	return int(binary.LittleEndian.Uint32(b))
}

// GetType returns the page type. A page that was never written is a leaf.
func (p *Page) GetType() int {
	t := int(binary.LittleEndian.Uint16(p.content[pageTypeOffset : pageTypeOffset+pageTypeSize]))
	if t == pageTypeUnknown {
		return pageTypeLeaf
	}
	return t
}

func (p *Page) IsLeaf() bool {
	return p.GetType() == pageTypeLeaf
}

func (p *Page) SetType(t int) {
	binary.LittleEndian.PutUint16(p.content[pageTypeOffset:pageTypeOffset+pageTypeSize], uint16(t))
}

func (p *Page) SetTypeInternal() {
	p.SetType(pageTypeInternal)
}

// GetRecordCount returns the value of the counter that tells how many tuples
// are currently stored on the page.
func (p *Page) GetRecordCount() int {
	return int(binary.LittleEndian.Uint16(p.content[pageRecordCountOffset : pageRecordCountOffset+pageRecordCountSize]))
}

func (p *Page) setRecordCount(newCount int) {
	binary.LittleEndian.PutUint16(
		p.content[pageRecordCountOffset:pageRecordCountOffset+pageRecordCountSize],
		uint16(newCount),
	)
}

// CanInsertTuple returns true if the page can fit the new tuple otherwise it
// returns false.
func (p *Page) CanInsertTuple(key, value []byte) bool {
	return p.CanInsertTuples([]PageTuple{{key, value}})
}

// CanInsertTuples returns true if the page can fit the new tuples otherwise it
// returns false.
func (p *Page) CanInsertTuples(pageTuples []PageTuple) bool {
	return FitsPage(append(pageTuples, p.GetEntries()...))
}

// FitsPage reports whether the tuples fit on one page.
func FitsPage(entries []PageTuple) bool {
	s := pageRowOffsetsOffset
	s += len(entries) * (pageRowOffsetSize + pageRowOffsetSize)
	for _, e := range entries {
		s += len(e.Key)
		s += len(e.Value)
	}
	return pageSize >= s
}

// SetEntries sets the page tuples in sorted order.
func (p *Page) SetEntries(entries []PageTuple) {
	clear(p.content[pageRowOffsetsOffset:pageSize])
	sort.Slice(entries, func(a, b int) bool { return bytes.Compare(entries[a].Key, entries[b].Key) == -1 })
	shift := pageRowOffsetsOffset
	entryEnd := pageSize
	for _, entry := range entries {
		startKeyOffset := shift
		endKeyOffset := shift + pageRowOffsetSize
		endValueOffset := shift + pageRowOffsetSize + pageRowOffsetSize

		// set key offset
		keyOffset := entryEnd - len(entry.Key) - len(entry.Value)
		binary.LittleEndian.PutUint16(p.content[startKeyOffset:endKeyOffset], uint16(keyOffset))

		// set value offset
		valueOffset := entryEnd - len(entry.Value)
		binary.LittleEndian.PutUint16(p.content[endKeyOffset:endValueOffset], uint16(valueOffset))

		copy(p.content[keyOffset:valueOffset], entry.Key)
		copy(p.content[valueOffset:valueOffset+len(entry.Value)], entry.Value)

		// update for next iteration
		shift = endValueOffset
		entryEnd = keyOffset
	}
	p.setRecordCount(len(entries))
}

// bounds returns the key and value offsets of the i-th tuple and the end of
// its value.
func (p *Page) bounds(i int) (keyOffset, valueOffset, end int) {
	o := pageRowOffsetsOffset + i*(pageRowOffsetSize+pageRowOffsetSize)
	keyOffset = int(binary.LittleEndian.Uint16(p.content[o : o+pageRowOffsetSize]))
	valueOffset = int(binary.LittleEndian.Uint16(p.content[o+pageRowOffsetSize : o+2*pageRowOffsetSize]))
	end = pageSize
	if i > 0 {
		prev := o - (pageRowOffsetSize + pageRowOffsetSize)
		end = int(binary.LittleEndian.Uint16(p.content[prev : prev+pageRowOffsetSize]))
	}
	return keyOffset, valueOffset, end
}

// Entry returns a copy of the i-th tuple.
func (p *Page) Entry(i int) PageTuple {
	k, v, e := p.bounds(i)
	return PageTuple{
		Key:   slices.Clone(p.content[k:v]),
		Value: slices.Clone(p.content[v:e]),
	}
}

// KeyAt returns the i-th key without copying. The slice must not be retained
// past the page's lifetime or modified.
func (p *Page) KeyAt(i int) []byte {
	k, v, _ := p.bounds(i)
	return p.content[k:v]
}

// ValueAt returns the i-th value without copying.
func (p *Page) ValueAt(i int) []byte {
	_, v, e := p.bounds(i)
	return p.content[v:e]
}

// GetEntries returns the page tuples in sorted order.
func (p *Page) GetEntries() []PageTuple {
	recordCount := p.GetRecordCount()
	entries := make([]PageTuple, 0, recordCount)
	entryEnd := pageSize
	for i := 0; i < recordCount; i += 1 {
		o := pageRowOffsetsOffset + i*(pageRowOffsetSize+pageRowOffsetSize)
		keyOffset := int(binary.LittleEndian.Uint16(p.content[o : o+pageRowOffsetSize]))
		valueOffset := int(binary.LittleEndian.Uint16(p.content[o+pageRowOffsetSize : o+2*pageRowOffsetSize]))
		// These must be copied otherwise the underlying byte array is returned.
		// This causes what seems a unique value to be treated as a reference.
		entries = append(entries, PageTuple{
			Key:   slices.Clone(p.content[keyOffset:valueOffset]),
			Value: slices.Clone(p.content[valueOffset:entryEnd]),
		})
		entryEnd = keyOffset
	}
	return entries
}

// Search returns the index of the first tuple whose key is greater than or
// equal to key and whether that tuple's key equals key.
func (p *Page) Search(key []byte) (int, bool) {
	n := p.GetRecordCount()
	i := sort.Search(n, func(i int) bool {
		return bytes.Compare(p.KeyAt(i), key) >= 0
	})
	return i, i < n && bytes.Equal(p.KeyAt(i), key)
}

// SetValue adds the value or overwrites the existing value.
func (p *Page) SetValue(key, value []byte) {
	e := p.GetEntries()
	i, found := p.Search(key)
	if found {
		e[i].Value = value
		p.SetEntries(e)
		return
	}
	p.SetEntries(append(e, PageTuple{key, value}))
}

// DeleteValue removes the tuple for key and reports whether it existed.
func (p *Page) DeleteValue(key []byte) bool {
	i, found := p.Search(key)
	if !found {
		return false
	}
	p.SetEntries(slices.Delete(p.GetEntries(), i, i+1))
	return true
}

// GetValue searches the page and returns the value and a flag indicated if the
// value was found. If the page is leaf an exact match must be made. If the page
// is internal GetValue returns the child pointer for the range the key falls
// in. A key below the first separator belongs to the first child.
func (p *Page) GetValue(key []byte) (value []byte, exists bool) {
	n := p.GetRecordCount()
	if n == 0 {
		return []byte{}, false
	}
	i, found := p.Search(key)
	if p.IsLeaf() {
		if !found {
			return []byte{}, false
		}
		return p.Entry(i).Value, true
	}
	if !found && i > 0 {
		i -= 1
	}
	if i >= n {
		i = n - 1
	}
	return p.Entry(i).Value, true
}
