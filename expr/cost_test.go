package expr

import (
	"testing"

	"github.com/chirst/relq/catalog"
	"github.com/chirst/relq/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCost(t *testing.T) {
	s := newTestScope()
	tt, u := s.tables[0], s.tables[1]
	byTID := &catalog.Index{Name: "u_t_id", Table: "u", Columns: []int{1}}
	u.Indexes = []*catalog.Index{byTID}
	none := ItemSet(0)
	onlyT := none.With(0)
	onlyU := none.With(1)

	cases := []struct {
		name      string
		sql       string
		candidate int
		available ItemSet
		table     *catalog.Table
		cost      int
		identity  bool
	}{
		{name: "identity", sql: "t.id = u.t_id", candidate: 0, available: onlyU, table: tt, cost: CostIdentity, identity: true},
		{name: "index", sql: "t.id = u.t_id", candidate: 1, available: onlyT, table: u, cost: CostIndex},
		{name: "reversed", sql: "u.t_id = t.id", candidate: 1, available: onlyT, table: u, cost: CostIndex},
		{name: "deferred", sql: "t.id = u.t_id", candidate: 1, available: none, table: u, cost: CostNoTable},
		{name: "other table", sql: "t.age = 1", candidate: 1, available: onlyT, table: u, cost: CostNoTable},
		{name: "constant", sql: "1 = 1", candidate: 0, available: none, table: tt, cost: CostConstant},
		{name: "param", sql: "t.id = ?", candidate: 0, available: none, table: tt, cost: CostIdentity, identity: true},
		{name: "no index", sql: "u.code = 'x'", candidate: 1, available: none, table: u, cost: CostScan},
		{name: "range", sql: "t.id > u.t_id", candidate: 0, available: onlyU, table: tt, cost: CostScan},
		{name: "kind mismatch", sql: "t.id = u.code", candidate: 0, available: onlyU, table: tt, cost: CostScan},
		{name: "same item", sql: "t.id = t.age", candidate: 0, available: none, table: tt, cost: CostScan},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			e, err := bindSQL(t, s, c.sql)
			require.NoError(t, err)
			cost, p := Cost(e, c.candidate, c.available, c.table)
			assert.Equal(t, c.cost, cost)
			if c.cost > CostIndex {
				assert.Nil(t, p)
				return
			}
			if c.cost == CostConstant {
				return
			}
			require.NotNil(t, p)
			assert.Equal(t, c.identity, p.Identity)
			assert.Equal(t, c.candidate, p.Item)
			assert.Same(t, e, p.Pred)
		})
	}
}

func TestCostPrefersUnique(t *testing.T) {
	s := newTestScope()
	u := s.tables[1]
	u.Indexes = []*catalog.Index{
		{Name: "u_t_id", Table: "u", Columns: []int{1}},
		{Name: "u_t_id_uq", Table: "u", Columns: []int{1}, Unique: true},
		{Name: "u_pk", Table: "u", Columns: []int{0}, Unique: true, Primary: true},
	}
	e, err := bindSQL(t, s, "u.t_id = t.id")
	require.NoError(t, err)
	cost, p := Cost(e, 1, ItemSet(0).With(0), u)
	assert.Equal(t, CostUnique, cost)
	assert.Equal(t, "u_t_id_uq", p.Index.Name)

	e, err = bindSQL(t, s, "u.id = 4")
	require.NoError(t, err)
	cost, _ = Cost(e, 1, 0, u)
	assert.Equal(t, CostPrimary, cost)
}

func TestCostOrder(t *testing.T) {
	costs := []int{CostConstant, CostIdentity, CostPrimary, CostUnique, CostIndex, CostScan, CostNoTable}
	for i := 1; i < len(costs); i++ {
		assert.Less(t, costs[i-1], costs[i])
	}
}

func TestProbeKey(t *testing.T) {
	p := &IndexProbe{Kind: value.Long}
	k, ok := ProbeKey(p, value.DoubleValue(3))
	assert.True(t, ok)
	assert.Equal(t, value.Long, k.Kind())
	_, ok = ProbeKey(p, value.DoubleValue(1.5))
	assert.False(t, ok)
	_, ok = ProbeKey(p, value.NullValue())
	assert.False(t, ok)
	_, ok = ProbeKey(p, value.StringValue("abc"))
	assert.False(t, ok)
}
