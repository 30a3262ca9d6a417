package executor

import (
	"hash/maphash"
	"slices"

	"github.com/chirst/relq/expr"
	"github.com/chirst/relq/pool"
	"github.com/chirst/relq/value"
)

// GroupItem is one group of a grouped query. It keeps the group key, a
// representative row of each FROM item for reading grouped columns, and the
// aggregate accumulators.
type GroupItem struct {
	key    []value.Value
	rows   [][]value.Value
	rowIDs []int64
	accs   []accumulator
}

type accumulator struct {
	count int64
	val   value.Value
	// total is the running sum of an AVG.
	total value.Value
	// seen holds the keys of the values counted by a DISTINCT aggregate.
	seen map[string]struct{}
}

var groupItems = pool.New(
	func() *GroupItem { return &GroupItem{} },
	func(g *GroupItem) {
		clear(g.key)
		g.key = g.key[:0]
		for i := range g.rows {
			clear(g.rows[i])
			g.rows[i] = g.rows[i][:0]
		}
		g.rowIDs = g.rowIDs[:0]
		clear(g.accs)
		g.accs = g.accs[:0]
	},
)

// result returns the value of aggregate slot of the group.
func (g *GroupItem) result(slot int) value.Value {
	return g.accs[slot].val
}

// groups buckets rows by their GROUP BY key. Groups are emitted in the order
// they were first seen.
type groups struct {
	seed    maphash.Seed
	buckets map[uint64][]*GroupItem
	order   []*GroupItem
	aggs    []*expr.Aggregate
}

func newGroups(aggs []*expr.Aggregate) *groups {
	return &groups{
		seed:    maphash.MakeSeed(),
		buckets: map[uint64][]*GroupItem{},
		aggs:    aggs,
	}
}

// add accumulates the current rows of ctx into the group of key.
func (gs *groups) add(ctx *QueryContext, key []value.Value) error {
	g := gs.find(ctx, key)
	for i, a := range gs.aggs {
		if err := accumulate(ctx, a, &g.accs[i]); err != nil {
			return err
		}
	}
	return nil
}

func (gs *groups) find(ctx *QueryContext, key []value.Value) *GroupItem {
	var h maphash.Hash
	h.SetSeed(gs.seed)
	for _, v := range key {
		v.Hash(&h)
	}
	sum := h.Sum64()
	for _, g := range gs.buckets[sum] {
		if equalKeys(g.key, key) {
			return g
		}
	}
	g := gs.newGroup(ctx, key)
	gs.buckets[sum] = append(gs.buckets[sum], g)
	return g
}

// newGroup creates a group whose representative rows are copies of the
// current rows of ctx. A nil row stays nil.
func (gs *groups) newGroup(ctx *QueryContext, key []value.Value) *GroupItem {
	g := groupItems.Get()
	g.key = append(g.key, key...)
	g.rowIDs = append(g.rowIDs, ctx.rowIDs...)
	g.accs = slices.Grow(g.accs, len(gs.aggs))[:len(gs.aggs)]
	g.rows = slices.Grow(g.rows[:0], len(ctx.rows))[:len(ctx.rows)]
	for i, row := range ctx.rows {
		if row == nil {
			g.rows[i] = nil
			continue
		}
		g.rows[i] = append(g.rows[i][:0], row...)
	}
	for i, a := range gs.aggs {
		if a.Func == expr.AggCount {
			g.accs[i].val = value.LongValue(0)
		}
	}
	gs.order = append(gs.order, g)
	return g
}

// release returns every group to the pool.
func (gs *groups) release() {
	for _, g := range gs.order {
		groupItems.Put(g)
	}
	gs.order = nil
	clear(gs.buckets)
}

// NULL keys group together.
func equalKeys(a, b []value.Value) bool {
	for i := range a {
		if a[i].IsNull() != b[i].IsNull() {
			return false
		}
		if !a[i].IsNull() && !value.Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

func accumulate(ctx *QueryContext, a *expr.Aggregate, acc *accumulator) error {
	if a.Star {
		acc.count++
		acc.val = value.LongValue(acc.count)
		return nil
	}
	v, err := expr.Eval(ctx, a.Arg)
	if err != nil || v.IsNull() {
		return err
	}
	if a.Distinct {
		if acc.seen == nil {
			acc.seen = map[string]struct{}{}
		}
		k := string(value.AppendKey(nil, v))
		if _, ok := acc.seen[k]; ok {
			return nil
		}
		acc.seen[k] = struct{}{}
	}
	acc.count++
	switch a.Func {
	case expr.AggCount:
		acc.val = value.LongValue(acc.count)
	case expr.AggSum, expr.AggAvg:
		return accumulateSum(a, acc, v)
	case expr.AggMin, expr.AggMax:
		if acc.val.IsNull() {
			acc.val = v
			return nil
		}
		c, err := value.Compare(v, acc.val)
		if err != nil {
			return err
		}
		if (a.Func == expr.AggMin && c < 0) || (a.Func == expr.AggMax && c > 0) {
			acc.val = v
		}
	}
	return nil
}

// accumulateSum adds v to the running sum. AVG divides the sum by the count
// once per row so the accumulator always reads the current average.
func accumulateSum(a *expr.Aggregate, acc *accumulator, v value.Value) error {
	sum := v
	if a.Kind != value.Null {
		var err error
		if sum, err = v.Convert(a.Kind); err != nil {
			return err
		}
	}
	if acc.count > 1 {
		prev := acc.val
		if a.Func == expr.AggAvg {
			prev = acc.total
		}
		var err error
		if sum, err = expr.Arithmetic(expr.OpAdd, value.Null, prev, v); err != nil {
			return err
		}
	}
	if a.Func == expr.AggSum {
		acc.val = sum
		return nil
	}
	acc.total = sum
	avg, err := expr.Arithmetic(expr.OpDiv, a.Kind, sum, value.LongValue(acc.count))
	if err != nil {
		return err
	}
	acc.val = avg
	return nil
}
