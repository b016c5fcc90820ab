package mathx

import "testing"

func TestFloorDivMod_Negative(t *testing.T) {
	cases := []struct{ a, b, q, m int }{
		{7, 5, 1, 2},
		{-1, 50, -1, 49},
		{-50, 50, -1, 0},
		{-51, 50, -2, 49},
		{0, 50, 0, 0},
	}
	for _, c := range cases {
		if q := FloorDiv(c.a, c.b); q != c.q {
			t.Fatalf("FloorDiv(%d,%d)=%d want %d", c.a, c.b, q, c.q)
		}
		if m := Mod(c.a, c.b); m != c.m {
			t.Fatalf("Mod(%d,%d)=%d want %d", c.a, c.b, m, c.m)
		}
	}
}

func TestChebyshev(t *testing.T) {
	if d := Chebyshev(0, 0, 3, -2); d != 3 {
		t.Fatalf("Chebyshev=%d want 3", d)
	}
}
