package model

import (
	"errors"
	"fmt"
	"strings"
)

type TerrainKind uint8

const (
	Plain TerrainKind = iota
	Swamp
	Lava
	Wall
)

// terrainGlyphs is the persisted alphabet; it doubles as the debug rendering.
var terrainGlyphs = [...]byte{Plain: ' ', Swamp: '~', Lava: '!', Wall: 'x'}

func (k TerrainKind) Glyph() byte {
	if int(k) >= len(terrainGlyphs) {
		return '?'
	}
	return terrainGlyphs[k]
}

func (k TerrainKind) String() string {
	switch k {
	case Plain:
		return "plain"
	case Swamp:
		return "swamp"
	case Lava:
		return "lava"
	case Wall:
		return "wall"
	}
	return fmt.Sprintf("terrain(%d)", uint8(k))
}

func terrainFromGlyph(c byte) (TerrainKind, bool) {
	for k, g := range terrainGlyphs {
		if g == c {
			return TerrainKind(k), true
		}
	}
	return 0, false
}

var ErrBadTerrain = errors.New("bad terrain encoding")

// Terrain is one room's immutable cell grid (row-major).
type Terrain struct {
	cells [RoomWidth * RoomHeight]TerrainKind
}

func NewTerrain(fill TerrainKind) *Terrain {
	t := &Terrain{}
	for i := range t.cells {
		t.cells[i] = fill
	}
	return t
}

// At returns Wall for out-of-room coordinates.
func (t *Terrain) At(x, y int) TerrainKind {
	if x < 0 || x >= RoomWidth || y < 0 || y >= RoomHeight {
		return Wall
	}
	return t.cells[y*RoomWidth+x]
}

// Set is only used while a world is being generated or decoded.
func (t *Terrain) Set(x, y int, k TerrainKind) {
	if x < 0 || x >= RoomWidth || y < 0 || y >= RoomHeight {
		return
	}
	t.cells[y*RoomWidth+x] = k
}

func (t *Terrain) Walkable(x, y int) bool {
	k := t.At(x, y)
	return k != Wall
}

// Encode renders rows of glyphs joined by ','.
func (t *Terrain) Encode() string {
	var sb strings.Builder
	sb.Grow(RoomHeight * (RoomWidth + 1))
	for y := 0; y < RoomHeight; y++ {
		if y > 0 {
			sb.WriteByte(',')
		}
		for x := 0; x < RoomWidth; x++ {
			sb.WriteByte(t.cells[y*RoomWidth+x].Glyph())
		}
	}
	return sb.String()
}

func DecodeTerrain(s string) (*Terrain, error) {
	rows := strings.Split(s, ",")
	if len(rows) != RoomHeight {
		return nil, fmt.Errorf("%w: %d rows, want %d", ErrBadTerrain, len(rows), RoomHeight)
	}
	t := &Terrain{}
	for y, row := range rows {
		if len(row) != RoomWidth {
			return nil, fmt.Errorf("%w: row %d has %d cells, want %d", ErrBadTerrain, y, len(row), RoomWidth)
		}
		for x := 0; x < RoomWidth; x++ {
			k, ok := terrainFromGlyph(row[x])
			if !ok {
				return nil, fmt.Errorf("%w: symbol %q at %d,%d", ErrBadTerrain, row[x], x, y)
			}
			t.cells[y*RoomWidth+x] = k
		}
	}
	return t, nil
}
