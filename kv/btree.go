package kv

import (
	"bytes"
	"fmt"
	"slices"

	"github.com/chirst/relq/pager"
)

// maxTupleSize bounds a key and value so that at least four tuples fit on a
// page. This guarantees both halves of a split fit.
const maxTupleSize = (pager.PageSize-16)/4 - 4

// tree is a B-tree rooted at root whose pages belong to block. Leaves are
// linked to their siblings so a cursor can scan without going back through
// the internal pages.
type tree struct {
	tx    *Transaction
	block int
	root  int
}

// Cursor is an abstraction that can seek and scan ranges of a btree. Pages a
// cursor points to are never modified in place, so a cursor stays consistent
// while its own transaction writes the tree.
type Cursor struct {
	t     *tree
	page  *pager.Page
	index int
	valid bool
}

// NewCursor creates a cursor on the tree rooted at rootPageNumber in block.
func (tx *Transaction) NewCursor(block, rootPageNumber int) *Cursor {
	if rootPageNumber == 0 {
		panic("root page cannot be 0")
	}
	return &Cursor{t: &tree{tx: tx, block: block, root: rootPageNumber}}
}

// Valid reports whether the cursor points to a tuple.
func (c *Cursor) Valid() bool {
	return c.valid
}

// Key returns the key of the current tuple. The slice is read only.
func (c *Cursor) Key() []byte {
	return c.page.KeyAt(c.index)
}

// Value returns the value of the current tuple. The slice is read only.
func (c *Cursor) Value() []byte {
	return c.page.ValueAt(c.index)
}

// PageNumber returns the leaf page the cursor is on.
func (c *Cursor) PageNumber() int {
	if c.page == nil {
		return 0
	}
	return c.page.GetNumber()
}

// First moves the cursor to the first tuple in ascending order. It returns
// true if the tree has values. It returns false if the tree is empty.
func (c *Cursor) First() (bool, error) {
	p, err := c.t.tx.readPage(c.t.block, c.t.root)
	if err != nil {
		return false, err
	}
	for !p.IsLeaf() {
		p, err = c.t.tx.readPage(c.t.block, pager.PageNumberFromBytes(p.ValueAt(0)))
		if err != nil {
			return false, err
		}
	}
	return c.settle(p, 0)
}

// Last moves the cursor to the last tuple in ascending order.
func (c *Cursor) Last() (bool, error) {
	p, err := c.t.tx.readPage(c.t.block, c.t.root)
	if err != nil {
		return false, err
	}
	for !p.IsLeaf() {
		n := p.GetRecordCount()
		p, err = c.t.tx.readPage(c.t.block, pager.PageNumberFromBytes(p.ValueAt(n-1)))
		if err != nil {
			return false, err
		}
	}
	for p.GetRecordCount() == 0 {
		hasLeft, left := p.GetLeftPageNumber()
		if !hasLeft {
			c.valid = false
			return false, nil
		}
		if p, err = c.t.tx.readPage(c.t.block, left); err != nil {
			return false, err
		}
	}
	c.page = p
	c.index = p.GetRecordCount() - 1
	c.valid = true
	return true, nil
}

// SeekGE moves the cursor to the first tuple whose key is greater than or
// equal to key.
func (c *Cursor) SeekGE(key []byte) (bool, error) {
	p, err := c.t.leaf(key, nil)
	if err != nil {
		return false, err
	}
	i, _ := p.Search(key)
	return c.settle(p, i)
}

// Seek moves the cursor to key and reports whether it exists.
func (c *Cursor) Seek(key []byte) (bool, error) {
	ok, err := c.SeekGE(key)
	if err != nil || !ok {
		return false, err
	}
	return bytes.Equal(c.Key(), key), nil
}

// Next moves the cursor to the next tuple in ascending order. If there is no
// next tuple it returns false.
func (c *Cursor) Next() (bool, error) {
	if !c.valid {
		return false, nil
	}
	if c.NextInPage() {
		return true, nil
	}
	return c.NextPage()
}

// NextInPage moves to the next tuple on the current leaf. It returns false
// without moving when the leaf is exhausted.
func (c *Cursor) NextInPage() bool {
	if !c.valid || c.index+1 >= c.page.GetRecordCount() {
		return false
	}
	c.index++
	return true
}

// NextPage moves the cursor to the first tuple of the next non empty leaf.
func (c *Cursor) NextPage() (bool, error) {
	if c.page == nil {
		return false, nil
	}
	hasRight, right := c.page.GetRightPageNumber()
	if !hasRight {
		c.valid = false
		return false, nil
	}
	p, err := c.t.tx.readPage(c.t.block, right)
	if err != nil {
		return false, err
	}
	return c.settle(p, 0)
}

// settle points the cursor at tuple i of leaf p, moving right past the end of
// p and any empty leaves.
func (c *Cursor) settle(p *pager.Page, i int) (bool, error) {
	for i >= p.GetRecordCount() {
		hasRight, right := p.GetRightPageNumber()
		if !hasRight {
			c.page = p
			c.valid = false
			return false, nil
		}
		var err error
		if p, err = c.t.tx.readPage(c.t.block, right); err != nil {
			return false, err
		}
		i = 0
	}
	c.page = p
	c.index = i
	c.valid = true
	return true, nil
}

// Count returns the count of the tree's leaf entries. Count does this not by
// scanning each individual tuple, but scanning each page and summing the
// computed counter on the page.
func (c *Cursor) Count() (int, error) {
	ok, err := c.First()
	if err != nil || !ok {
		return 0, err
	}
	sum := c.page.GetRecordCount()
	for {
		ok, err := c.NextPage()
		if err != nil {
			return 0, err
		}
		if !ok {
			return sum, nil
		}
		sum += c.page.GetRecordCount()
	}
}

// Set inserts or updates the value for the given key.
func (c *Cursor) Set(key, value []byte) error {
	if len(key)+len(value) > maxTupleSize {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrRecordTooLarge, len(key)+len(value), maxTupleSize)
	}
	var path []int
	if _, err := c.t.leaf(key, &path); err != nil {
		return err
	}
	c.valid = false
	return c.t.insert(path, key, value)
}

// Delete removes key from the tree and reports whether it existed. Pages are
// never merged. Empty leaves stay linked and are skipped by cursors.
func (c *Cursor) Delete(key []byte) (bool, error) {
	var path []int
	if _, err := c.t.leaf(key, &path); err != nil {
		return false, err
	}
	p, err := c.t.tx.writePage(c.t.block, path[len(path)-1])
	if err != nil {
		return false, err
	}
	c.valid = false
	return p.DeleteValue(key), nil
}

// leaf descends to the leaf that holds key. When path is not nil it receives
// the page numbers from the root to the leaf.
func (t *tree) leaf(key []byte, path *[]int) (*pager.Page, error) {
	pn := t.root
	for {
		p, err := t.tx.readPage(t.block, pn)
		if err != nil {
			return nil, err
		}
		if path != nil {
			*path = append(*path, pn)
		}
		if p.IsLeaf() {
			return p, nil
		}
		child, ok := p.GetValue(key)
		if !ok {
			return nil, fmt.Errorf("internal page %d of tree %d is empty", pn, t.root)
		}
		pn = pager.PageNumberFromBytes(child)
	}
}

// insert sets key on the last page of path, splitting pages up the path as
// needed. The root keeps its page number when it splits so the catalog never
// has to change.
func (t *tree) insert(path []int, key, value []byte) error {
	pn := path[len(path)-1]
	p, err := t.tx.writePage(t.block, pn)
	if err != nil {
		return err
	}
	entries := p.GetEntries()
	i, found := p.Search(key)
	if found {
		entries[i].Value = value
	} else {
		entries = slices.Insert(entries, i, pager.PageTuple{Key: key, Value: value})
	}
	if pager.FitsPage(entries) {
		p.SetEntries(entries)
		return nil
	}
	mid := splitPoint(entries)
	left, right := entries[:mid], entries[mid:]
	if len(path) == 1 {
		return t.splitRoot(p, left, right)
	}
	rp, err := t.tx.newPage(t.block)
	if err != nil {
		return err
	}
	rp.SetType(p.GetType())
	rp.SetEntries(right)
	p.SetEntries(left)
	if p.IsLeaf() {
		_, oldRight := p.GetRightPageNumber()
		rp.SetLeftPageNumber(p.GetNumber())
		rp.SetRightPageNumber(oldRight)
		p.SetRightPageNumber(rp.GetNumber())
		if oldRight != 0 {
			orp, err := t.tx.writePage(t.block, oldRight)
			if err != nil {
				return err
			}
			orp.SetLeftPageNumber(rp.GetNumber())
		}
	}
	return t.insert(path[:len(path)-1], right[0].Key, rp.GetNumberAsBytes())
}

// splitRoot moves the root's tuples into two new children and turns the root
// into an internal page pointing at them.
func (t *tree) splitRoot(root *pager.Page, left, right []pager.PageTuple) error {
	lp, err := t.tx.newPage(t.block)
	if err != nil {
		return err
	}
	rp, err := t.tx.newPage(t.block)
	if err != nil {
		return err
	}
	lp.SetType(root.GetType())
	rp.SetType(root.GetType())
	lp.SetEntries(left)
	rp.SetEntries(right)
	if root.IsLeaf() {
		lp.SetRightPageNumber(rp.GetNumber())
		rp.SetLeftPageNumber(lp.GetNumber())
	}
	root.SetTypeInternal()
	root.SetEntries([]pager.PageTuple{
		{Key: left[0].Key, Value: lp.GetNumberAsBytes()},
		{Key: right[0].Key, Value: rp.GetNumberAsBytes()},
	})
	return nil
}

// splitPoint returns the index that divides entries into two halves of about
// equal byte size. Both halves are non empty.
func splitPoint(entries []pager.PageTuple) int {
	total := 0
	for _, e := range entries {
		total += len(e.Key) + len(e.Value) + 4
	}
	acc := 0
	for i, e := range entries {
		acc += len(e.Key) + len(e.Value) + 4
		if acc*2 >= total {
			return max(1, min(i+1, len(entries)-1))
		}
	}
	return len(entries) / 2
}
