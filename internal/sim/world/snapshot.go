package world

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"creepworld.ai/internal/persistence/snapshot"
	"creepworld.ai/internal/sim/rng"
	"creepworld.ai/internal/sim/world/model"
)

// Export captures everything needed to resume the world. Pending actions are never part of
// it: snapshots are only taken between ticks.
func (w *World) Export() snapshot.SnapshotV1 {
	snap := snapshot.SnapshotV1{
		Time:     w.time,
		Interval: w.intervalMs,
		Seed:     w.seed,
		RNG:      w.rng.State(),
		Players:  map[string]snapshot.PlayerV1{},
		Rooms:    map[string]snapshot.RoomV1{},
	}
	for name, p := range w.players {
		snap.Players[name] = snapshot.PlayerV1{
			Name:         p.Name,
			RegisteredAt: p.RegisteredAt,
			Faults:       p.Faults,
			LastRunMs:    p.LastRunMs,
		}
	}
	for rn, r := range w.rooms {
		snap.Rooms[rn.String()] = exportRoom(r)
	}
	return snap
}

func exportRoom(r *model.Room) snapshot.RoomV1 {
	out := snapshot.RoomV1{
		Terrain:    r.Terrain.Encode(),
		Creeps:     map[string]snapshot.CreepV1{},
		Structures: map[string]snapshot.StructureV1{},
	}
	for _, c := range r.Creeps {
		out.Creeps[c.Name] = ExportCreep(c)
	}
	for id, s := range r.Structures {
		out.Structures[id] = ExportStructure(s)
	}
	return out
}

func exportBase(o *model.ObjectBase) snapshot.ObjectV1 {
	return snapshot.ObjectV1{
		Pos:     snapshot.PosV1{X: o.Pos.X, Y: o.Pos.Y, Room: o.Pos.Room.String()},
		Hits:    o.Hits,
		HitsMax: o.HitsMax,
		ID:      o.ID,
	}
}

func exportStore(s *model.Store) map[string]int {
	out := map[string]int{}
	for k, v := range s.Contents() {
		out[string(k)] = v
	}
	return out
}

func ExportCreep(c *model.Creep) snapshot.CreepV1 {
	body := make([]string, len(c.Body))
	for i, p := range c.Body {
		body[i] = string(p)
	}
	return snapshot.CreepV1{
		ObjectV1: exportBase(&c.ObjectBase),
		Name:     c.Name,
		Owner:    c.Owner,
		Head:     int(c.Head),
		Body:     body,
		Fatigue:  c.Fatigue,
		Store:    exportStore(c.Store),
	}
}

func ExportStructure(s model.Structure) snapshot.StructureV1 {
	out := snapshot.StructureV1{StructureType: string(s.StructureType())}
	switch v := s.(type) {
	case *model.Controller:
		out.ObjectV1 = exportBase(&v.ObjectBase)
		out.Owner = v.Owner
		out.Level = snapshot.IntPtr(v.Level)
		out.Progress = snapshot.IntPtr(v.Progress)
		out.ProgressTotal = snapshot.IntPtr(v.ProgressTotal())
	case *model.Source:
		out.ObjectV1 = exportBase(&v.ObjectBase)
		out.Store = exportStore(v.Store)
		out.TicksToRegeneration = snapshot.IntPtr(v.TicksToRegeneration)
	case *model.Spawn:
		out.ObjectV1 = exportBase(&v.ObjectBase)
		out.Owner = v.Owner
		out.Name = v.Name
		out.Store = exportStore(v.Store)
	}
	return out
}

// Import rebuilds a world from a snapshot, restoring the PRNG stream exactly.
func Import(snap snapshot.SnapshotV1) (*World, error) {
	w := New(snap.Seed)
	w.rng = rng.FromState(snap.RNG)
	w.time = snap.Time
	w.SetIntervalMs(snap.Interval)
	for name, p := range snap.Players {
		w.players[name] = &Player{Name: name, RegisteredAt: p.RegisteredAt, Faults: p.Faults, LastRunMs: p.LastRunMs}
	}
	for key, rv := range snap.Rooms {
		rn, err := model.ParseRoomName(key)
		if err != nil {
			return nil, err
		}
		t, err := model.DecodeTerrain(rv.Terrain)
		if err != nil {
			return nil, fmt.Errorf("room %s: %w", key, err)
		}
		r := model.NewRoom(rn, t)
		for name, cv := range rv.Creeps {
			c, err := importCreep(rn, cv)
			if err != nil {
				return nil, fmt.Errorf("room %s creep %s: %w", key, name, err)
			}
			r.AddCreep(c)
		}
		for id, sv := range rv.Structures {
			s, err := importStructure(rn, sv)
			if err != nil {
				return nil, fmt.Errorf("room %s structure %s: %w", key, id, err)
			}
			r.AddStructure(s)
		}
		w.AddRoom(r)
	}
	return w, nil
}

func importBase(rn model.RoomName, o snapshot.ObjectV1) (model.ObjectBase, error) {
	if o.Pos.Room != "" && o.Pos.Room != rn.String() {
		return model.ObjectBase{}, fmt.Errorf("position room %s outside %s", o.Pos.Room, rn)
	}
	p := model.Position{X: o.Pos.X, Y: o.Pos.Y, Room: rn}
	if !p.InBounds() {
		return model.ObjectBase{}, fmt.Errorf("position %v out of bounds", p)
	}
	return model.ObjectBase{ID: o.ID, Pos: p, Hits: o.Hits, HitsMax: o.HitsMax}, nil
}

func importStore(s *model.Store, m map[string]int) {
	for k, v := range m {
		s.Add(model.Resource(k), v)
	}
}

func importCreep(rn model.RoomName, cv snapshot.CreepV1) (*model.Creep, error) {
	base, err := importBase(rn, cv.ObjectV1)
	if err != nil {
		return nil, err
	}
	body := make([]model.BodyPart, len(cv.Body))
	for i, p := range cv.Body {
		body[i] = model.BodyPart(p)
		if !body[i].Valid() {
			return nil, fmt.Errorf("unknown body part %q", p)
		}
	}
	c := model.NewCreep(base.ID, cv.Name, cv.Owner, body, base.Pos)
	c.Hits, c.HitsMax = base.Hits, base.HitsMax
	c.Head = model.Direction(cv.Head)
	c.Fatigue = cv.Fatigue
	importStore(c.Store, cv.Store)
	return c, nil
}

func importStructure(rn model.RoomName, sv snapshot.StructureV1) (model.Structure, error) {
	base, err := importBase(rn, sv.ObjectV1)
	if err != nil {
		return nil, err
	}
	switch model.StructureType(sv.StructureType) {
	case model.StructureController:
		lvl := snapshot.Deref(sv.Level)
		if lvl < 0 || lvl > model.ControllerMaxLevel {
			return nil, fmt.Errorf("controller level %d out of range", lvl)
		}
		return &model.Controller{ObjectBase: base, Owner: sv.Owner, Level: lvl, Progress: snapshot.Deref(sv.Progress)}, nil
	case model.StructureSource:
		s := model.NewSource(base.ID, base.Pos)
		s.ObjectBase = base
		s.Store.Remove(model.Energy, model.SourceCapacity)
		importStore(s.Store, sv.Store)
		s.TicksToRegeneration = snapshot.Deref(sv.TicksToRegeneration)
		return s, nil
	case model.StructureSpawn:
		s := model.NewSpawn(base.ID, sv.Name, sv.Owner, base.Pos)
		s.ObjectBase = base
		s.Store.Remove(model.Energy, model.SpawnCapacity)
		importStore(s.Store, sv.Store)
		return s, nil
	}
	return nil, fmt.Errorf("unknown structure type %q", sv.StructureType)
}

// Digest is a sha256 over the canonical JSON export; equal digests mean equal worlds.
// Script timings are wall-clock measurements and are left out.
func (w *World) Digest() string {
	snap := w.Export()
	for name, p := range snap.Players {
		p.LastRunMs = 0
		snap.Players[name] = p
	}
	b, err := json.Marshal(snap)
	if err != nil {
		panic(err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
