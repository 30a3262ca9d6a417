package cache

import "testing"

func TestCache(t *testing.T) {
	c := NewLRU(5)
	c.Add(5, []byte{5})
	c.Add(8, []byte{8})
	c.Add(12, []byte{12})
	c.Add(21, []byte{21})
	c.Add(240, []byte{240})

	c.Get(5)
	c.Get(12)
	c.Get(8)
	c.Get(240)

	c.Add(241, []byte{241})

	if cl := c.Len(); cl != 5 {
		t.Fatalf("expected cache size 5 got %d", cl)
	}
	for _, k := range []int{5, 12, 8, 240, 241} {
		if _, ok := c.Get(k); !ok {
			t.Fatalf("expected cache[%d] to be ok", k)
		}
	}
	if _, ok := c.Get(21); ok {
		t.Fatal("expected cache[21] to be evicted")
	}
	if e := c.Evictions(); e != 1 {
		t.Fatalf("expected 1 eviction got %d", e)
	}
}

func TestCacheRemove(t *testing.T) {
	c := NewLRU(2)
	c.Add(1, []byte{1})
	c.Remove(1)
	c.Remove(2)
	if _, ok := c.Get(1); ok {
		t.Fatal("expected cache[1] to be removed")
	}
	c.Add(1, []byte{1})
	c.Add(1, []byte{2})
	v, ok := c.Get(1)
	if !ok || v[0] != 2 {
		t.Fatalf("expected updated value got %v", v)
	}
	c.Clear()
	if c.Len() != 0 {
		t.Fatal("expected empty cache")
	}
}
