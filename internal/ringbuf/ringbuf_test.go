package ringbuf

import "testing"

func TestRing_BasicPush(t *testing.T) {
	r := New[float64](4)

	r.Push(1)
	r.Push(2)

	if r.Len() != 2 {
		t.Fatalf("expected len=2, got %d", r.Len())
	}
	got := r.Values()
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("expected [1 2], got %v", got)
	}
	if v, ok := r.Newest(); !ok || v != 2 {
		t.Fatalf("expected newest=2, got %v ok=%v", v, ok)
	}
}

func TestRing_Empty(t *testing.T) {
	r := New[int](3)
	if _, ok := r.Newest(); ok {
		t.Fatal("newest on empty ring should return false")
	}
	if len(r.Values()) != 0 {
		t.Fatal("values on empty ring should be empty")
	}
}

func TestRing_Wraparound(t *testing.T) {
	r := New[int](5)

	// push 8 values, first 3 are evicted
	for i := 1; i <= 8; i++ {
		r.Push(i)
	}

	if r.Len() != 5 {
		t.Fatalf("Len() = %d, want 5", r.Len())
	}
	if r.Evicted() != 3 {
		t.Fatalf("Evicted() = %d, want 3", r.Evicted())
	}
	got := r.Values()
	for i, v := range got {
		if v != i+4 {
			t.Errorf("entry[%d] = %d, want %d", i, v, i+4)
		}
	}
	last := r.Last(3)
	if len(last) != 3 || last[0] != 6 || last[2] != 8 {
		t.Errorf("Last(3) = %v, want [6 7 8]", last)
	}
}

func TestRing_LastMoreThanLen(t *testing.T) {
	r := New[int](10)
	r.Push(7)
	if got := r.Last(3); len(got) != 1 || got[0] != 7 {
		t.Errorf("Last(3) = %v, want [7]", got)
	}
}

func TestRing_Reset(t *testing.T) {
	r := New[string](2)
	r.Push("a")
	r.Push("b")
	r.Reset()
	if r.Len() != 0 {
		t.Fatalf("expected empty ring after reset, got %d", r.Len())
	}
	r.Push("c")
	if got := r.Values(); len(got) != 1 || got[0] != "c" {
		t.Fatalf("expected [c], got %v", got)
	}
}

func TestRing_MinimumCapacity(t *testing.T) {
	r := New[int](0)
	if r.Cap() != 1 {
		t.Fatalf("expected cap=1, got %d", r.Cap())
	}
	r.Push(1)
	r.Push(2)
	if v, _ := r.Newest(); v != 2 || r.Len() != 1 {
		t.Fatalf("expected single newest value 2, got %v len=%d", v, r.Len())
	}
}
