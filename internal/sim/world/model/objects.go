package model

// RoomObject is implemented by every entity placed in a room.
type RoomObject interface {
	ObjectID() string
	Position() Position
	Glyph() byte
}

// Damageable objects carry hit points.
type Damageable interface {
	HitPoints() (hits, hitsMax int)
}

// Storer objects hold a resource Store.
type Storer interface {
	Storage() *Store
}

// Owned objects belong to a player (empty owner means unowned).
type Owned interface {
	OwnerName() string
}

type ObjectBase struct {
	ID      string
	Pos     Position
	Hits    int
	HitsMax int
}

func (o *ObjectBase) ObjectID() string               { return o.ID }
func (o *ObjectBase) Position() Position             { return o.Pos }
func (o *ObjectBase) HitPoints() (hits, hitsMax int) { return o.Hits, o.HitsMax }

type Creep struct {
	ObjectBase
	Name    string
	Owner   string
	Body    []BodyPart
	Fatigue int
	Head    Direction
	Store   *Store

	Pending *Action
}

// NewCreep sizes hits and carry capacity from the body.
func NewCreep(id, name, owner string, body []BodyPart, pos Position) *Creep {
	b := append([]BodyPart(nil), body...)
	return &Creep{
		ObjectBase: ObjectBase{ID: id, Pos: pos, Hits: len(b) * PartHits, HitsMax: len(b) * PartHits},
		Name:       name,
		Owner:      owner,
		Body:       b,
		Store:      EnergyStore(CountParts(b, PartCarry) * CarryCapacity),
	}
}

func (c *Creep) Glyph() byte          { return 'c' }
func (c *Creep) OwnerName() string    { return c.Owner }
func (c *Creep) Storage() *Store      { return c.Store }
func (c *Creep) Parts(p BodyPart) int { return CountParts(c.Body, p) }

// Weight is the number of parts that generate fatigue when moving. Carry parts only count
// while they hold something, filled in body order.
func (c *Creep) Weight() int {
	carrying := c.Store.UsedTotal()
	w := 0
	for _, p := range c.Body {
		switch p {
		case PartMove:
		case PartCarry:
			if carrying > 0 {
				w++
				carrying -= CarryCapacity
			}
		default:
			w++
		}
	}
	return w
}

type StructureType string

const (
	StructureController StructureType = "controller"
	StructureSource     StructureType = "source"
	StructureSpawn      StructureType = "spawn"
)

// Structure is the closed family of stationary objects, dispatched by StructureType.
type Structure interface {
	RoomObject
	Damageable
	Owned
	StructureType() StructureType
}

const ControllerMaxLevel = 8

// controllerThresholds[level] is the progress needed to advance from level.
var controllerThresholds = [ControllerMaxLevel]int{100, 200, 45000, 135000, 405000, 1215000, 3645000, 10935000}

func ControllerThreshold(level int) int {
	if level < 0 || level >= ControllerMaxLevel {
		return 0
	}
	return controllerThresholds[level]
}

type Controller struct {
	ObjectBase
	Owner    string
	Level    int
	Progress int
}

func (c *Controller) Glyph() byte                  { return 'C' }
func (c *Controller) OwnerName() string            { return c.Owner }
func (c *Controller) StructureType() StructureType { return StructureController }
func (c *Controller) ProgressTotal() int           { return ControllerThreshold(c.Level) }

// Remaining is how much progress the controller can still absorb before reaching max level.
func (c *Controller) Remaining() int {
	if c.Level >= ControllerMaxLevel {
		return 0
	}
	n := -c.Progress
	for l := c.Level; l < ControllerMaxLevel; l++ {
		n += ControllerThreshold(l)
	}
	return n
}

// AddProgress credits progress and advances as many levels as it spans, carrying the
// remainder forward. It returns the number of levels gained.
func (c *Controller) AddProgress(n int) int {
	if n <= 0 || c.Level >= ControllerMaxLevel {
		return 0
	}
	c.Progress += n
	gained := 0
	for c.Level < ControllerMaxLevel {
		th := ControllerThreshold(c.Level)
		if c.Progress < th {
			break
		}
		c.Progress -= th
		c.Level++
		gained++
	}
	if c.Level >= ControllerMaxLevel {
		c.Progress = 0
	}
	return gained
}

const (
	SourceCapacity   = 3000
	SourceRegenTicks = 300
)

type Source struct {
	ObjectBase
	Store               *Store
	TicksToRegeneration int
}

func NewSource(id string, pos Position) *Source {
	s := &Source{ObjectBase: ObjectBase{ID: id, Pos: pos}, Store: EnergyStore(SourceCapacity)}
	s.Store.Add(Energy, SourceCapacity)
	return s
}

func (s *Source) Glyph() byte                  { return 's' }
func (s *Source) OwnerName() string            { return "" }
func (s *Source) StructureType() StructureType { return StructureSource }
func (s *Source) Storage() *Store              { return s.Store }

// Regenerate advances the refill countdown by one tick.
func (s *Source) Regenerate() {
	if s.TicksToRegeneration <= 0 {
		return
	}
	s.TicksToRegeneration--
	if s.TicksToRegeneration == 0 {
		s.Store.Add(Energy, s.Store.Free(Energy))
	}
}

const (
	SpawnCapacity  = 300
	SpawnHits      = 5000
	SpawnRegenRate = 1
)

type Spawn struct {
	ObjectBase
	Owner string
	Name  string
	Store *Store

	Pending *Action
}

func NewSpawn(id, name, owner string, pos Position) *Spawn {
	s := &Spawn{
		ObjectBase: ObjectBase{ID: id, Pos: pos, Hits: SpawnHits, HitsMax: SpawnHits},
		Owner:      owner,
		Name:       name,
		Store:      EnergyStore(SpawnCapacity),
	}
	s.Store.Add(Energy, SpawnCapacity)
	return s
}

func (s *Spawn) Glyph() byte                  { return 'S' }
func (s *Spawn) OwnerName() string            { return s.Owner }
func (s *Spawn) StructureType() StructureType { return StructureSpawn }
func (s *Spawn) Storage() *Store              { return s.Store }

func (s *Spawn) Regenerate() {
	if free := s.Store.Free(Energy); free > 0 {
		s.Store.Add(Energy, min(free, SpawnRegenRate))
	}
}
