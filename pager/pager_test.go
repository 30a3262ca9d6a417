package pager

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

func mustNewMemoryPager(t *testing.T) *Pager {
	p, err := New(true, "")
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestPageHelpers(t *testing.T) {
	p := mustNewMemoryPager(t).NewPage()

	t.Run("get set internal", func(t *testing.T) {
		p.SetType(pageTypeInternal)
		if res := p.GetType(); res != pageTypeInternal {
			t.Errorf("want %d got %d", pageTypeInternal, res)
		}
	})

	t.Run("get set leaf", func(t *testing.T) {
		p.SetType(pageTypeLeaf)
		if res := p.GetType(); res != pageTypeLeaf {
			t.Errorf("want %d got %d", pageTypeLeaf, res)
		}
	})

	t.Run("get set record count", func(t *testing.T) {
		want := 2
		p.setRecordCount(want)
		if res := p.GetRecordCount(); res != want {
			t.Errorf("want %d got %d", want, res)
		}
		p.setRecordCount(0)
	})

	t.Run("get page number", func(t *testing.T) {
		want := 2
		if res := p.GetNumber(); res != want {
			t.Errorf("want %d got %d", want, res)
		}
		if res := PageNumberFromBytes(p.GetNumberAsBytes()); res != want {
			t.Errorf("want %d got %d", want, res)
		}
	})

	t.Run("get set parent page number", func(t *testing.T) {
		wantPn := 12
		p.SetParentPageNumber(wantPn)
		gotHas, gotPn := p.GetParentPageNumber()
		if !gotHas {
			t.Error("want true got false")
		}
		if gotPn != wantPn {
			t.Errorf("got %d want %d", gotPn, wantPn)
		}
	})

	t.Run("get set left page number", func(t *testing.T) {
		wantPn := 21
		p.SetLeftPageNumber(wantPn)
		gotHas, gotPn := p.GetLeftPageNumber()
		if !gotHas {
			t.Error("want true got false")
		}
		if gotPn != wantPn {
			t.Errorf("got %d want %d", gotPn, wantPn)
		}
	})

	t.Run("get set right page number", func(t *testing.T) {
		wantPn := 33
		p.SetRightPageNumber(wantPn)
		gotHas, gotPn := p.GetRightPageNumber()
		if !gotHas {
			t.Error("want true got false")
		}
		if gotPn != wantPn {
			t.Errorf("got %d want %d", gotPn, wantPn)
		}
	})
}

func TestPageSet(t *testing.T) {
	t.Run("set", func(t *testing.T) {
		p := mustNewMemoryPager(t).NewPage()

		p.SetValue([]byte{2}, []byte{'g', 'r', 'e', 'g'})
		p.SetValue([]byte{1}, []byte{'c', 'a', 'r', 'l'})
		p.SetValue([]byte{3}, []byte{'j', 'i', 'l', 'l', 'i', 'a', 'n'})

		ExpectUint16(t, p.content, 14, 3)
		ExpectUint16(t, p.content, 16, 4091)
		ExpectUint16(t, p.content, 18, 4092)
		ExpectUint16(t, p.content, 20, 4086)
		ExpectUint16(t, p.content, 22, 4087)
		ExpectUint16(t, p.content, 24, 4078)
		ExpectUint16(t, p.content, 26, 4079)

		ExpectByteArray(t, p.content, 4078, []byte{3})
		ExpectByteArray(t, p.content, 4079, []byte{'j', 'i', 'l', 'l', 'i', 'a', 'n'})
		ExpectByteArray(t, p.content, 4086, []byte{2})
		ExpectByteArray(t, p.content, 4087, []byte{'g', 'r', 'e', 'g'})
		ExpectByteArray(t, p.content, 4091, []byte{1})
		ExpectByteArray(t, p.content, 4092, []byte{'c', 'a', 'r', 'l'})
	})

	t.Run("set update", func(t *testing.T) {
		p := mustNewMemoryPager(t).NewPage()

		p.SetValue([]byte{1}, []byte{'c', 'a', 'r', 'l'})
		p.SetValue([]byte{1}, []byte{'r', 'o', 'l', 'f'})

		ExpectUint16(t, p.content, 14, 1)
		ExpectUint16(t, p.content, 16, 4091)
		ExpectUint16(t, p.content, 18, 4092)

		ExpectByteArray(t, p.content, 4091, []byte{1})
		ExpectByteArray(t, p.content, 4092, []byte{'r', 'o', 'l', 'f'})
	})

	t.Run("delete", func(t *testing.T) {
		p := mustNewMemoryPager(t).NewPage()
		p.SetValue([]byte{1}, []byte{1})
		p.SetValue([]byte{2}, []byte{2})
		if !p.DeleteValue([]byte{1}) {
			t.Fatal("expected delete to find key")
		}
		if p.DeleteValue([]byte{1}) {
			t.Fatal("expected second delete to miss")
		}
		if c := p.GetRecordCount(); c != 1 {
			t.Fatalf("expected 1 record got %d", c)
		}
	})
}

func TestGet(t *testing.T) {
	t.Run("get", func(t *testing.T) {
		p := mustNewMemoryPager(t).NewPage()
		n := []byte{'o', 'k', 'i', 'e'}
		p.SetValue([]byte{3}, []byte{'j', 'a', 'n', 'i', 'c', 'e'})
		p.SetValue([]byte{1}, n)
		p.SetValue([]byte{5}, []byte{'m', 'a', 't', 'i', 'l', 'd', 'a'})

		ret, found := p.GetValue([]byte{1})

		if !bytes.Equal(ret, n) {
			t.Errorf("expected %v got %v", n, ret)
		}
		if !found {
			t.Error("expected found")
		}
		if e := p.Entry(2); !bytes.Equal(e.Key, []byte{5}) {
			t.Errorf("expected key 5 got %v", e.Key)
		}
	})

	t.Run("get not found", func(t *testing.T) {
		p := mustNewMemoryPager(t).NewPage()

		_, found := p.GetValue([]byte{1})

		if found {
			t.Error("expected not found")
		}
	})

	t.Run("internal ranges", func(t *testing.T) {
		p := mustNewMemoryPager(t).NewPage()
		p.SetTypeInternal()
		p.SetValue([]byte{10}, []byte{1})
		p.SetValue([]byte{20}, []byte{2})
		cases := []struct {
			key  byte
			want byte
		}{
			{5, 1},
			{10, 1},
			{15, 1},
			{20, 2},
			{99, 2},
		}
		for _, c := range cases {
			v, found := p.GetValue([]byte{c.key})
			if !found || v[0] != c.want {
				t.Errorf("key %d expected child %d got %v", c.key, c.want, v)
			}
		}
	})
}

func TestPublishFlush(t *testing.T) {
	name := filepath.Join(t.TempDir(), "test")
	p, err := New(false, name)
	if err != nil {
		t.Fatal(err)
	}
	np := p.NewPage()
	np.SetValue([]byte{1}, []byte("one"))
	p.Publish([]*Page{np})

	got, err := p.GetPage(np.GetNumber())
	if err != nil {
		t.Fatal(err)
	}
	if v, ok := got.GetValue([]byte{1}); !ok || string(v) != "one" {
		t.Fatalf("expected published value got %q", v)
	}
	if err := p.Flush([]*Page{np}); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(getJournalName(name)); !os.IsNotExist(err) {
		t.Fatalf("expected journal to be removed got %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := New(false, name)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()
	if m := reopened.MaxPage(); m != np.GetNumber() {
		t.Fatalf("expected max page %d got %d", np.GetNumber(), m)
	}
	got, err = reopened.GetPage(np.GetNumber())
	if err != nil {
		t.Fatal(err)
	}
	if v, ok := got.GetValue([]byte{1}); !ok || string(v) != "one" {
		t.Fatalf("expected persisted value got %q", v)
	}
}

func TestJournalRestore(t *testing.T) {
	name := filepath.Join(t.TempDir(), "test")
	p, err := New(false, name)
	if err != nil {
		t.Fatal(err)
	}
	np := p.NewPage()
	np.SetValue([]byte{1}, []byte("before"))
	p.Publish([]*Page{np})
	if err := p.Flush([]*Page{np}); err != nil {
		t.Fatal(err)
	}
	fs := p.store.(*fileStorage)
	// Simulate a crash half way through a write.
	if err := fs.CreateJournal([]int{np.GetNumber()}); err != nil {
		t.Fatal(err)
	}
	changed := np.Clone()
	changed.SetValue([]byte{1}, []byte("after"))
	if err := p.writePage(changed); err != nil {
		t.Fatal(err)
	}
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := New(false, name)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()
	got, err := reopened.GetPage(np.GetNumber())
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := got.GetValue([]byte{1}); string(v) != "before" {
		t.Fatalf("expected journal to restore before image got %q", v)
	}
}

func ExpectUint16(t *testing.T, content []byte, start int, expected uint16) {
	t.Helper()
	e := make([]byte, 2)
	binary.LittleEndian.PutUint16(e, expected)
	if !bytes.Equal(content[start:start+2], e) {
		t.Errorf("expected %v got %v at range start %d end %d", e, content[start:start+2], start, start+2)
	}
}

func ExpectByteArray(t *testing.T, content []byte, start int, expected []byte) {
	t.Helper()
	end := start + len(expected)
	if !bytes.Equal(content[start:end], expected) {
		t.Errorf("expected %v got %v at range start %d end %d", expected, content[start:end], start, end)
	}
}
