package executor

import (
	"github.com/chirst/relq/expr"
	"github.com/chirst/relq/kv"
)

// laneKind selects how a lane advances. Each kind has its own branch in
// advance so the per row path tests nothing it does not need.
type laneKind uint8

const (
	laneScan laneKind = iota
	laneScanFiltered
	laneIdentity
	laneIdentityFiltered
	laneIndex
	laneIndexFiltered
	laneOuter
	laneOuterFiltered
)

func (k laneKind) String() string {
	switch k {
	case laneScan, laneScanFiltered:
		return "scan"
	case laneIdentity, laneIdentityFiltered:
		return "rowid"
	case laneIndex, laneIndexFiltered:
		return "index"
	}
	return "outer"
}

func (k laneKind) filtered() bool {
	switch k {
	case laneScanFiltered, laneIdentityFiltered, laneIndexFiltered, laneOuterFiltered:
		return true
	}
	return false
}

// shifts reports whether the lane may yield more than the row it was
// initialized on. Identity probes find a single row. Outer lanes are kept
// conservative and never shift to a second block of a probe.
func (k laneKind) shifts() bool {
	switch k {
	case laneIdentity, laneIdentityFiltered:
		return false
	}
	return true
}

func kindOf(item *FromItem) laneKind {
	var k laneKind
	switch {
	case item.Outer:
		k = laneOuter
	case item.Probe == nil:
		k = laneScan
	case item.Probe.Identity:
		k = laneIdentity
	default:
		k = laneIndex
	}
	if item.Filter != nil {
		k++
	}
	return k
}

// lane reads one FROM item inside the lanes outside of it.
type lane struct {
	kind  laneKind
	item  *FromItem
	table *kv.TableCursor
	index *kv.IndexCursor
	// matched is set for an outer lane once a row satisfied On. nulled is set
	// once its NULL row was produced.
	matched bool
	nulled  bool
	// scanned counts the rows the lane read.
	scanned int
}

// lanes is the nested loop of a query. lanes[0] is the innermost lane and is
// advanced most often.
type lanes struct {
	ctx  *QueryContext
	list []*lane
}

func newLanes(ctx *QueryContext, tx *kv.Transaction, items []*FromItem) *lanes {
	ls := &lanes{ctx: ctx, list: make([]*lane, len(items))}
	for i, item := range items {
		l := &lane{kind: kindOf(item), item: item, table: tx.OpenTable(item.Table)}
		if item.Probe != nil && !item.Probe.Identity {
			l.index = tx.OpenIndex(item.Table, item.Probe.Index)
		}
		ls.list[len(items)-1-i] = l
	}
	return ls
}

// each calls fn for every combination of rows accepted by the lanes until fn
// returns false. With no lanes fn is called once.
func (ls *lanes) each(fn func() (bool, error)) error {
	n := len(ls.list)
	if n == 0 {
		_, err := fn()
		return err
	}
	i := n - 1
	ok, err := ls.init(ls.list[i])
	for {
		if err != nil {
			return err
		}
		if !ok {
			// Carry into the next outer lane.
			i++
			if i == n {
				return nil
			}
			ok, err = ls.next(ls.list[i])
			continue
		}
		if i == 0 {
			more, err := fn()
			if err != nil || !more {
				return err
			}
			ok, err = ls.next(ls.list[0])
			continue
		}
		i--
		ok, err = ls.init(ls.list[i])
	}
}

// init positions l on its first accepted row for the current rows of the
// outer lanes.
func (ls *lanes) init(l *lane) (bool, error) {
	l.matched, l.nulled = false, false
	var ok bool
	var err error
	switch l.kind {
	case laneScan, laneScanFiltered, laneOuter, laneOuterFiltered:
		ok, err = l.table.First()
	case laneIdentity, laneIdentityFiltered:
		ok, err = ls.seekIdentity(l)
	case laneIndex, laneIndexFiltered:
		ok, err = ls.seekIndex(l)
	}
	if err != nil {
		return false, err
	}
	return ls.settle(l, ok)
}

// next moves l to its next accepted row.
func (ls *lanes) next(l *lane) (bool, error) {
	if l.nulled || !l.kind.shifts() {
		return false, nil
	}
	ok, err := ls.step(l)
	if err != nil {
		return false, err
	}
	return ls.settle(l, ok)
}

// step moves l one row without testing it.
func (ls *lanes) step(l *lane) (bool, error) {
	switch l.kind {
	case laneIndex, laneIndexFiltered:
		ok, err := l.index.Next()
		if err != nil || !ok {
			return false, err
		}
		return l.table.SeekRowID(l.index.RowID())
	}
	if l.table.NextInPage() {
		return true, nil
	}
	return l.table.NextPage()
}

// settle advances l from a positioned or exhausted state to the next row
// its conditions accept.
func (ls *lanes) settle(l *lane, ok bool) (bool, error) {
	id := l.item.ID
	for {
		if !ok {
			if l.kind >= laneOuter && !l.matched && !l.nulled {
				l.nulled = true
				ls.ctx.rows[id] = nil
				ls.ctx.rowIDs[id] = 0
				return ls.accept(l)
			}
			return false, nil
		}
		row, err := l.table.Row()
		if err != nil {
			return false, err
		}
		l.scanned++
		ls.ctx.rows[id] = row
		ls.ctx.rowIDs[id] = l.table.RowID()
		accepted, err := ls.accept(l)
		if err != nil || accepted {
			return accepted, err
		}
		if !l.kind.shifts() {
			return false, nil
		}
		if ok, err = ls.step(l); err != nil {
			return false, err
		}
	}
}

// accept tests the current row of l against the ON condition of an outer
// lane and the lane filter.
func (ls *lanes) accept(l *lane) (bool, error) {
	if l.kind >= laneOuter && !l.nulled && l.item.On != nil {
		b, err := expr.EvalBool(ls.ctx, l.item.On)
		if err != nil || b != expr.True {
			return false, err
		}
	}
	if l.kind >= laneOuter && !l.nulled {
		l.matched = true
	}
	if !l.kind.filtered() {
		return true, nil
	}
	b, err := expr.EvalBool(ls.ctx, l.item.Filter)
	return b == expr.True, err
}

func (ls *lanes) seekIdentity(l *lane) (bool, error) {
	v, err := expr.Eval(ls.ctx, l.item.Probe.Key)
	if err != nil {
		return false, err
	}
	k, ok := expr.ProbeKey(l.item.Probe, v)
	if !ok {
		return false, nil
	}
	return l.table.SeekRowID(k.Long())
}

func (ls *lanes) seekIndex(l *lane) (bool, error) {
	v, err := expr.Eval(ls.ctx, l.item.Probe.Key)
	if err != nil {
		return false, err
	}
	k, ok := expr.ProbeKey(l.item.Probe, v)
	if !ok {
		return false, nil
	}
	found, err := l.index.SeekPrefix(k)
	if err != nil || !found {
		return false, err
	}
	return l.table.SeekRowID(l.index.RowID())
}
