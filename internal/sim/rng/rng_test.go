package rng

import "testing"

func TestFrom_SameSeedSameStream(t *testing.T) {
	a := From("world-1")
	b := From("world-1")
	for i := 0; i < 1000; i++ {
		if x, y := a.Next64(), b.Next64(); x != y {
			t.Fatalf("draw %d: %x != %x", i, x, y)
		}
	}
	if From("world-1").Next64() == From("world-2").Next64() {
		t.Fatalf("different seeds produced the same first draw")
	}
}

func TestFrom_ChainsFourHashPasses(t *testing.T) {
	for _, seed := range []string{"", "a", "world-1"} {
		h1 := hash32(hashSeed, seed)
		h2 := hash32(h1, seed)
		h3 := hash32(h2, seed)
		h4 := hash32(h3, seed)
		want := State{{h1, h2}, {h3, h4}}
		if h1|h2|h3|h4 == 0 {
			continue
		}
		if got := From(seed).State(); got != want {
			t.Fatalf("seed %q: state %v want %v", seed, got, want)
		}
	}
}

func TestState_RoundTrip(t *testing.T) {
	r := From("seed")
	for i := 0; i < 17; i++ {
		r.Next64()
	}
	st := r.State()
	r2 := FromState(st)
	if r2.State() != st {
		t.Fatalf("export->import->export mismatch: %v vs %v", r2.State(), st)
	}
	for i := 0; i < 100; i++ {
		if x, y := r.Next64(), r2.Next64(); x != y {
			t.Fatalf("draw %d after restore: %x != %x", i, x, y)
		}
	}
}

func TestFromState_ZeroIsReplaced(t *testing.T) {
	r := FromState(State{})
	if r.Next64() == 0 && r.Next64() == 0 {
		t.Fatalf("zero state produced a zero stream")
	}
}

func TestUniform_Range(t *testing.T) {
	r := From("u")
	for i := 0; i < 10000; i++ {
		v := r.Uniform()
		if v < 0 || v >= 1 {
			t.Fatalf("uniform out of range: %v", v)
		}
	}
}

func TestPick_RemovesEachElementOnce(t *testing.T) {
	r := From("pick")
	s := []int{1, 2, 3, 4, 5, 6, 7}
	seen := map[int]bool{}
	for len(s) > 0 {
		v, ok := Pick(r, &s)
		if !ok {
			t.Fatalf("pick failed with %d left", len(s))
		}
		if seen[v] {
			t.Fatalf("picked %d twice", v)
		}
		seen[v] = true
	}
	if len(seen) != 7 {
		t.Fatalf("picked %d elements, want 7", len(seen))
	}
	if _, ok := Pick(r, &s); ok {
		t.Fatalf("pick on empty slice should report absent")
	}
}

func TestSelect_DeletesKeyDeterministically(t *testing.T) {
	m1 := map[string]int{"a": 1, "b": 2, "c": 3, "d": 4}
	m2 := map[string]int{"d": 4, "c": 3, "b": 2, "a": 1}
	r1 := From("sel")
	r2 := From("sel")
	for len(m1) > 0 {
		k1, v1, _ := Select(r1, m1)
		k2, v2, _ := Select(r2, m2)
		if k1 != k2 || v1 != v2 {
			t.Fatalf("select diverged: %s=%d vs %s=%d", k1, v1, k2, v2)
		}
		if _, ok := m1[k1]; ok {
			t.Fatalf("key %s not deleted", k1)
		}
	}
}

func TestHex64_Format(t *testing.T) {
	id := From("ids").Hex64()
	if len(id) != 16 {
		t.Fatalf("hex id length %d: %q", len(id), id)
	}
}
