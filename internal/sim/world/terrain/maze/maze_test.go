package maze

import (
	"testing"

	"creepworld.ai/internal/sim/rng"
	"creepworld.ai/internal/sim/world/model"
)

func TestGenerate_Deterministic(t *testing.T) {
	p := DefaultParams()
	p.RoomsX, p.RoomsY = 2, 2
	a, err := Generate(rng.From("maze"), p)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	b, err := Generate(rng.From("maze"), p)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	ta := a.Tile(Origin(2, 2))
	tb := b.Tile(Origin(2, 2))
	if len(ta) != 4 {
		t.Fatalf("rooms=%d want 4", len(ta))
	}
	for name, terr := range ta {
		if terr.Encode() != tb[name].Encode() {
			t.Fatalf("room %s differs between identical seeds", name)
		}
	}
	c, _ := Generate(rng.From("other"), p)
	same := true
	for i := range a.Cells {
		if a.Cells[i] != c.Cells[i] {
			same = false
			break
		}
	}
	if same {
		t.Fatalf("different seeds produced identical terrain")
	}
}

func TestGenerate_EdgesSealedAndInteriorOpen(t *testing.T) {
	p := DefaultParams()
	p.RoomsX, p.RoomsY = 1, 1
	g, err := Generate(rng.From("edges"), p)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	open := 0
	for y := 0; y < g.H; y++ {
		for x := 0; x < g.W; x++ {
			k := g.At(x, y)
			if g.edge(x, y) && k != model.Wall {
				t.Fatalf("world edge cell %d,%d is %v", x, y, k)
			}
			if k != model.Wall {
				open++
			}
		}
	}
	if open < g.W*g.H/10 {
		t.Fatalf("only %d open cells", open)
	}
}

func TestGenerateCoarse_SpanningTreeConnects(t *testing.T) {
	c := GenerateCoarse(rng.From("tree"), 6, 4, 0)
	links := 0
	for i := range c.East {
		if c.East[i] {
			links++
		}
		if c.South[i] {
			links++
		}
	}
	if links != 6*4-1 {
		t.Fatalf("spanning tree has %d links, want %d", links, 6*4-1)
	}

	seen := make([]bool, c.W*c.H)
	stack := []int{0}
	seen[0] = true
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := i%c.W, i/c.W
		try := func(j int, linked bool) {
			if linked && !seen[j] {
				seen[j] = true
				stack = append(stack, j)
			}
		}
		if x+1 < c.W {
			try(i+1, c.East[i])
		}
		if x > 0 {
			try(i-1, c.East[i-1])
		}
		if y+1 < c.H {
			try(i+c.W, c.South[i])
		}
		if y > 0 {
			try(i-c.W, c.South[i-c.W])
		}
	}
	for i, ok := range seen {
		if !ok {
			t.Fatalf("cell %d unreachable", i)
		}
	}
}

func TestParams_Validate(t *testing.T) {
	p := DefaultParams()
	p.CellsPerRoom = 7
	if err := p.Validate(); err == nil {
		t.Fatalf("expected error for non-dividing cells_per_room")
	}
}
