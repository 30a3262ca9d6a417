package result

import (
	"math/rand"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func longs(t *testing.T, r *SelectResult, col int) []int64 {
	t.Helper()
	ret := make([]int64, r.RowCount())
	for i := range ret {
		r.SetRow(i)
		v, err := r.Long(col)
		require.NoError(t, err)
		ret[i] = v
	}
	return ret
}

func TestOrderSortSizes(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for _, n := range []int{0, 1, 2, 3, 4, 100} {
		for _, desc := range []bool{false, true} {
			r := New([]string{"k", "seq"}, 0)
			for i := range n {
				// Few distinct keys so there are many duplicates.
				r.WriteLong(int64(rng.Intn(5)))
				r.WriteLong(int64(i))
				require.NoError(t, r.EndRow())
			}
			want := longs(t, r, 0)
			slices.SortStableFunc(want, func(a, b int64) int {
				if desc {
					return int(b - a)
				}
				return int(a - b)
			})
			require.NoError(t, NewOrder(0, desc).Sort(r))
			assert.Equal(t, want, longs(t, r, 0), "n=%d desc=%v", n, desc)
			r.Close()
		}
	}
}

func TestOrderChain(t *testing.T) {
	r := New([]string{"name", "age"}, 0)
	defer r.Close()
	rows := []struct {
		name string
		age  int64
	}{{"b", 1}, {"a", 3}, {"b", 0}, {"a", 1}}
	for _, row := range rows {
		require.NoError(t, r.WriteString(row.name))
		r.WriteLong(row.age)
		require.NoError(t, r.EndRow())
	}
	require.NoError(t, NewOrder(0, false).Then(1, true).Sort(r))
	var got []string
	for i := 0; i < r.RowCount(); i++ {
		r.SetRow(i)
		name, err := r.String(0)
		require.NoError(t, err)
		age, err := r.Long(1)
		require.NoError(t, err)
		got = append(got, name+string(rune('0'+age)))
	}
	assert.Equal(t, []string{"a3", "a1", "b1", "b0"}, got)
}

func TestOrderNulls(t *testing.T) {
	r := New([]string{"v"}, 0)
	defer r.Close()
	r.WriteLong(2)
	require.NoError(t, r.EndRow())
	r.WriteNull()
	require.NoError(t, r.EndRow())
	r.WriteLong(1)
	require.NoError(t, r.EndRow())

	require.NoError(t, NewOrder(0, false).Sort(r))
	r.SetRow(0)
	assert.True(t, r.IsNull(0))

	require.NoError(t, NewOrder(0, true).Sort(r))
	r.SetRow(2)
	assert.True(t, r.IsNull(0))
}

func TestOrderHiddenColumn(t *testing.T) {
	r := New([]string{"name"}, 1)
	defer r.Close()
	for i, name := range []string{"c", "a", "b"} {
		require.NoError(t, r.WriteString(name))
		r.WriteLong(int64(-i))
		require.NoError(t, r.EndRow())
	}
	require.NoError(t, NewOrder(1, false).Sort(r))
	row, err := r.Row(0)
	require.NoError(t, err)
	assert.Equal(t, "b", row[0].Str())
	assert.Len(t, row, 1)
}
