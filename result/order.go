package result

import (
	"cmp"
	"strings"

	"github.com/chirst/relq/value"
)

// Order is a chain of sort keys. Rows equal on one key are ordered by the
// next key in the chain. NULL sorts before every other value.
type Order struct {
	Column int
	Desc   bool
	next   *Order
}

// NewOrder starts a chain with one key.
func NewOrder(column int, desc bool) *Order {
	return &Order{Column: column, Desc: desc}
}

// Then appends a key to the end of the chain and returns the head.
func (o *Order) Then(column int, desc bool) *Order {
	tail := o
	for tail.next != nil {
		tail = tail.next
	}
	tail.next = NewOrder(column, desc)
	return o
}

// Len returns the number of keys in the chain.
func (o *Order) Len() int {
	n := 0
	for k := o; k != nil; k = k.next {
		n++
	}
	return n
}

// sortEntry is one row reference with its decoded sort keys.
type sortEntry struct {
	ref  uint64
	keys []value.Value
}

// compare orders two entries by the chain starting at o.
func (o *Order) compare(a, b *sortEntry) int {
	i := 0
	for k := o; k != nil; k = k.next {
		c := compareValues(a.keys[i], b.keys[i])
		if c != 0 {
			if k.Desc {
				return -c
			}
			return c
		}
		i++
	}
	return 0
}

// compareValues is a total order over values. Same kinds compare directly;
// mixed kinds use value.Compare and fall back to ordering by kind when the
// values are incomparable.
func compareValues(a, b value.Value) int {
	an, bn := a.IsNull(), b.IsNull()
	switch {
	case an && bn:
		return 0
	case an:
		return -1
	case bn:
		return 1
	}
	if a.Kind() == b.Kind() {
		switch a.Kind() {
		case value.Long, value.Date:
			return cmp.Compare(a.Long(), b.Long())
		case value.String:
			return strings.Compare(a.Str(), b.Str())
		}
	}
	c, err := value.Compare(a, b)
	if err != nil {
		return cmp.Compare(a.Kind(), b.Kind())
	}
	return c
}

// Sort orders the rows of r in place.
func (o *Order) Sort(r *SelectResult) error {
	if o == nil || len(r.rows) < 2 {
		return nil
	}
	n := o.Len()
	entries := make([]sortEntry, len(r.rows))
	for i, ref := range r.rows {
		r.row = r.rowBytes(ref)
		r.col, r.off = 0, 0
		keys := make([]value.Value, n)
		j := 0
		for k := o; k != nil; k = k.next {
			v, err := r.Value(k.Column)
			if err != nil {
				return err
			}
			keys[j] = v
			j++
		}
		entries[i] = sortEntry{ref: ref, keys: keys}
	}
	o.quicksort(entries)
	for i := range entries {
		r.rows[i] = entries[i].ref
	}
	r.row = nil
	return nil
}

// quicksort is a three way partition quicksort with a median of three pivot.
// Keys equal to the pivot are gathered in the middle and never revisited, so
// runs of duplicates cost linear time.
func (o *Order) quicksort(e []sortEntry) {
	for len(e) > 3 {
		o.medianOfThree(e)
		pivot := e[0]
		lt, i, gt := 0, 1, len(e)-1
		// e[:lt] < pivot, e[lt:i] == pivot, e[gt+1:] > pivot
		for i <= gt {
			c := o.compare(&e[i], &pivot)
			switch {
			case c < 0:
				e[lt], e[i] = e[i], e[lt]
				lt++
				i++
			case c > 0:
				e[i], e[gt] = e[gt], e[i]
				gt--
			default:
				i++
			}
		}
		// Recurse into the smaller side to bound the stack.
		if lt < len(e)-gt-1 {
			o.quicksort(e[:lt])
			e = e[gt+1:]
		} else {
			o.quicksort(e[gt+1:])
			e = e[:lt]
		}
	}
	switch len(e) {
	case 2:
		if o.compare(&e[1], &e[0]) < 0 {
			e[0], e[1] = e[1], e[0]
		}
	case 3:
		o.sort3(e)
	}
}

func (o *Order) sort3(e []sortEntry) {
	if o.compare(&e[1], &e[0]) < 0 {
		e[0], e[1] = e[1], e[0]
	}
	if o.compare(&e[2], &e[1]) < 0 {
		e[1], e[2] = e[2], e[1]
		if o.compare(&e[1], &e[0]) < 0 {
			e[0], e[1] = e[1], e[0]
		}
	}
}

// medianOfThree moves the median of the first, middle and last entries to
// the front to serve as the pivot.
func (o *Order) medianOfThree(e []sortEntry) {
	mid, last := len(e)/2, len(e)-1
	if o.compare(&e[mid], &e[0]) < 0 {
		e[0], e[mid] = e[mid], e[0]
	}
	if o.compare(&e[last], &e[0]) < 0 {
		e[0], e[last] = e[last], e[0]
	}
	if o.compare(&e[last], &e[mid]) < 0 {
		e[mid], e[last] = e[last], e[mid]
	}
	// e[0] <= e[mid] <= e[last]
	e[0], e[mid] = e[mid], e[0]
}
