package planner

import (
	"github.com/chirst/relq/executor"
	"github.com/chirst/relq/expr"
)

// optimizer orders the FROM items of a select and places each WHERE conjunct
// at the join level where it can first be evaluated.
type optimizer struct {
	items []*executor.FromItem
	// deps holds for each item the items that must be evaluated before it.
	deps []expr.ItemSet
	// pool holds the conjuncts not yet placed.
	pool []expr.Expr
}

func newOptimizer(items []*executor.FromItem, deps []expr.ItemSet, conjuncts []expr.Expr) *optimizer {
	return &optimizer{items: items, deps: deps, pool: conjuncts}
}

// optimize reorders items into evaluation order, the outermost first, and
// returns the conjuncts reading no item.
func (o *optimizer) optimize() []expr.Expr {
	var residual []expr.Expr
	pool := o.pool[:0:0]
	for _, e := range o.pool {
		if expr.Refs(e).Empty() {
			residual = append(residual, e)
		} else {
			pool = append(pool, e)
		}
	}
	o.pool = pool
	order := o.orderFromItems()
	o.items = order
	o.generateWhere()
	return residual
}

// orderFromItems fills the join levels from the innermost to the outermost.
// At each level every item whose dependents are already placed is costed
// against the items still left for the outer levels, and the cheapest is
// placed. Ties go to the item later in the FROM clause so a join without
// usable indexes keeps its written order.
func (o *optimizer) orderFromItems() []*executor.FromItem {
	n := len(o.items)
	order := make([]*executor.FromItem, n)
	var unplaced expr.ItemSet
	for _, item := range o.items {
		unplaced = unplaced.With(item.ID)
	}
	for level := n - 1; level >= 0; level-- {
		var best *executor.FromItem
		var bestProbe *expr.IndexProbe
		bestCost := 0
		for _, c := range o.items {
			if !unplaced.Has(c.ID) || !o.placeable(c, unplaced) {
				continue
			}
			cost, probe := o.cost(c, unplaced.Without(c.ID))
			if best == nil || cost <= bestCost {
				best, bestCost, bestProbe = c, cost, probe
			}
		}
		if bestProbe != nil {
			best.Probe = bestProbe
			o.remove(bestProbe.Pred)
		}
		order[level] = best
		unplaced = unplaced.Without(best.ID)
	}
	return order
}

// placeable reports whether no unplaced item depends on c, so c can be placed
// inside all of them.
func (o *optimizer) placeable(c *executor.FromItem, unplaced expr.ItemSet) bool {
	for _, item := range o.items {
		if item != c && unplaced.Has(item.ID) && o.deps[item.ID].Has(c.ID) {
			return false
		}
	}
	return true
}

// cost returns the cheapest way to read c with the available items outside
// of it. Conjuncts are tried in order, the first of equal cost wins.
func (o *optimizer) cost(c *executor.FromItem, available expr.ItemSet) (int, *expr.IndexProbe) {
	if c.Outer {
		return expr.CostScan, nil
	}
	best := expr.CostScan
	var probe *expr.IndexProbe
	for _, e := range o.pool {
		cost, p := expr.Cost(e, c.ID, available, c.Table)
		if p != nil && cost < best {
			best, probe = cost, p
		}
	}
	return best, probe
}

func (o *optimizer) remove(e expr.Expr) {
	for i, x := range o.pool {
		if x == e {
			o.pool = append(o.pool[:i], o.pool[i+1:]...)
			return
		}
	}
}

// generateWhere ANDs each remaining conjunct into the filter of the level of
// the innermost item it reads.
func (o *optimizer) generateWhere() {
	level := make(map[int]int, len(o.items))
	for i, item := range o.items {
		level[item.ID] = i
	}
	filters := make([][]expr.Expr, len(o.items))
	for _, e := range o.pool {
		at := 0
		refs := expr.Refs(e)
		for id, l := range level {
			if refs.Has(id) && l > at {
				at = l
			}
		}
		filters[at] = append(filters[at], e)
	}
	for i, item := range o.items {
		item.Filter = expr.AndAll(filters[i])
	}
	o.pool = nil
}
