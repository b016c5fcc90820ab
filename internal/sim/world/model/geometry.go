package model

import (
	"fmt"
	"strconv"

	"creepworld.ai/internal/sim/world/logic/mathx"
)

const (
	RoomWidth  = 50
	RoomHeight = 50
)

// RoomName is a room address in global room coordinates. X >= 0 is the east quadrant
// ("E<X>"), X < 0 the west quadrant ("W<-X-1>"); Y >= 0 is south, Y < 0 north.
type RoomName struct {
	X int
	Y int
}

func (r RoomName) String() string {
	var b []byte
	if r.X >= 0 {
		b = append(b, 'E')
		b = strconv.AppendInt(b, int64(r.X), 10)
	} else {
		b = append(b, 'W')
		b = strconv.AppendInt(b, int64(-r.X-1), 10)
	}
	if r.Y >= 0 {
		b = append(b, 'S')
		b = strconv.AppendInt(b, int64(r.Y), 10)
	} else {
		b = append(b, 'N')
		b = strconv.AppendInt(b, int64(-r.Y-1), 10)
	}
	return string(b)
}

// Less orders rooms by their text name, the order used for action resolution.
func (r RoomName) Less(o RoomName) bool { return r.String() < o.String() }

// ParseRoomName is the inverse of RoomName.String.
func ParseRoomName(s string) (RoomName, error) {
	var out RoomName
	if len(s) < 4 {
		return out, fmt.Errorf("bad room name %q", s)
	}
	i := 1
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 1 || i >= len(s)-1 {
		return out, fmt.Errorf("bad room name %q", s)
	}
	x, err := strconv.Atoi(s[1:i])
	if err != nil {
		return out, fmt.Errorf("bad room name %q: %w", s, err)
	}
	y, err := strconv.Atoi(s[i+1:])
	if err != nil {
		return out, fmt.Errorf("bad room name %q: %w", s, err)
	}
	switch s[0] {
	case 'E':
		out.X = x
	case 'W':
		out.X = -x - 1
	default:
		return out, fmt.Errorf("bad room name %q", s)
	}
	switch s[i] {
	case 'S':
		out.Y = y
	case 'N':
		out.Y = -y - 1
	default:
		return out, fmt.Errorf("bad room name %q", s)
	}
	return out, nil
}

func (r RoomName) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

func (r *RoomName) UnmarshalText(b []byte) error {
	v, err := ParseRoomName(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// Position is a cell inside a room. 0 <= X < RoomWidth and 0 <= Y < RoomHeight always hold
// for positions produced by Step or FromGlobal.
type Position struct {
	X    int
	Y    int
	Room RoomName
}

func (p Position) String() string {
	return fmt.Sprintf("[%s %d,%d]", p.Room, p.X, p.Y)
}

func (p Position) InBounds() bool {
	return p.X >= 0 && p.X < RoomWidth && p.Y >= 0 && p.Y < RoomHeight
}

// Global maps the position into one world-wide coordinate plane.
func (p Position) Global() (int, int) {
	return p.Room.X*RoomWidth + p.X, p.Room.Y*RoomHeight + p.Y
}

// FromGlobal rolls world coordinates back into a room-local position; crossing a room edge
// lands on the opposite edge of the neighbouring room.
func FromGlobal(gx, gy int) Position {
	return Position{
		X:    mathx.Mod(gx, RoomWidth),
		Y:    mathx.Mod(gy, RoomHeight),
		Room: RoomName{X: mathx.FloorDiv(gx, RoomWidth), Y: mathx.FloorDiv(gy, RoomHeight)},
	}
}

// Step moves one cell in dir, rolling over room edges.
func (p Position) Step(d Direction) Position {
	dx, dy := d.Delta()
	gx, gy := p.Global()
	return FromGlobal(gx+dx, gy+dy)
}

// Range is the Chebyshev distance between two positions, across rooms.
func (p Position) Range(o Position) int {
	ax, ay := p.Global()
	bx, by := o.Global()
	return mathx.Chebyshev(ax, ay, bx, by)
}

// DirectionTo returns the single-step direction towards o (0 when equal).
func (p Position) DirectionTo(o Position) Direction {
	ax, ay := p.Global()
	bx, by := o.Global()
	return DirectionOf(sign(bx-ax), sign(by-ay))
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

// Direction numbering follows the script API: 1 = top, clockwise to 8 = top-left.
type Direction int

const (
	Top Direction = iota + 1
	TopRight
	Right
	BottomRight
	Bottom
	BottomLeft
	Left
	TopLeft
)

var AllDirections = [8]Direction{Top, TopRight, Right, BottomRight, Bottom, BottomLeft, Left, TopLeft}

var dirDelta = [9][2]int{
	{0, 0},
	{0, -1},
	{1, -1},
	{1, 0},
	{1, 1},
	{0, 1},
	{-1, 1},
	{-1, 0},
	{-1, -1},
}

func (d Direction) Valid() bool { return d >= Top && d <= TopLeft }

func (d Direction) Delta() (int, int) {
	if !d.Valid() {
		return 0, 0
	}
	return dirDelta[d][0], dirDelta[d][1]
}

func DirectionOf(dx, dy int) Direction {
	for _, d := range AllDirections {
		if dirDelta[d][0] == dx && dirDelta[d][1] == dy {
			return d
		}
	}
	return 0
}
