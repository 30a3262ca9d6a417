package expr

import (
	"math"

	"github.com/chirst/relq/catalog"
	"github.com/chirst/relq/value"
)

// Costs of evaluating a predicate at a join level, cheapest first.
const (
	CostConstant = 0
	CostIdentity = 1
	CostPrimary  = 2
	CostUnique   = 3
	CostIndex    = 10
	CostScan     = 1000
	// CostNoTable marks a predicate that reads an item not yet positioned.
	CostNoTable = math.MaxInt32
)

// Cost estimates evaluating e at the join level of item candidate, whose table
// is table, when the items in available are positioned in outer levels. A
// predicate that can position the candidate through an index also returns the
// probe.
func Cost(e Expr, candidate int, available ItemSet, table *catalog.Table) (int, *IndexProbe) {
	refs := Refs(e)
	if !refs.Has(candidate) {
		if refs.Empty() {
			return CostConstant, nil
		}
		return CostNoTable, nil
	}
	if !refs.Without(candidate).SubsetOf(available) {
		return CostNoTable, nil
	}
	if p := probe(e, candidate, table); p != nil {
		return p.Cost, p
	}
	return CostScan, nil
}

// probe returns the cheapest index probe e can drive on candidate, or nil.
func probe(e Expr, candidate int, table *catalog.Table) *IndexProbe {
	var l, r Expr
	switch n := e.(type) {
	case *Compare:
		if n.Op != OpEq {
			return nil
		}
		l, r = n.Left, n.Right
	case *LongCompare:
		if n.Op != OpEq {
			return nil
		}
		l, r = n.Left, n.Right
	default:
		return nil
	}
	var best *IndexProbe
	for _, side := range [2][2]Expr{{l, r}, {r, l}} {
		p := probeColumn(side[0], side[1], candidate, table)
		if p != nil && (best == nil || p.Cost < best.Cost) {
			p.Pred = e
			best = p
		}
	}
	return best
}

func probeColumn(col, key Expr, candidate int, table *catalog.Table) *IndexProbe {
	c, ok := col.(*Column)
	if !ok || c.Item != candidate || Refs(key).Has(candidate) || HasAggregate(key) {
		return nil
	}
	ck, kk := c.Type.Kind(), KindOf(key)
	if kk != ck && kk != value.Null && !(kk.IsNumeric() && ck.IsNumeric()) {
		return nil
	}
	p := &IndexProbe{Item: c.Item, Col: c.Col, Key: key, Kind: ck}
	if table.RowIDColumn == c.Col {
		p.Identity = true
		p.Cost = CostIdentity
		return p
	}
	idx, ok := table.IndexOn(c.Col)
	if !ok {
		return nil
	}
	p.Index = idx
	switch {
	case idx.Primary && len(idx.Columns) == 1:
		p.Cost = CostPrimary
	case idx.Unique && len(idx.Columns) == 1:
		p.Cost = CostUnique
	default:
		p.Cost = CostIndex
	}
	return p
}

// ProbeKey converts a probe key to the probed column's kind. ok is false when
// the key cannot equal any stored value, for example NULL or 1.5 against a
// long column.
func ProbeKey(p *IndexProbe, v value.Value) (value.Value, bool) {
	if v.IsNull() {
		return v, false
	}
	k, err := v.Convert(p.Kind)
	if err != nil {
		return k, false
	}
	c, err := value.Compare(k, v)
	return k, err == nil && c == 0
}
