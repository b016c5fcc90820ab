package world

import (
	"creepworld.ai/internal/persistence/snapshot"
	"creepworld.ai/internal/sim/world/model"
)

// RoomData is the read-only room view served to operators.
type RoomData struct {
	Room       string                 `json:"room"`
	Time       uint64                 `json:"time"`
	Terrain    string                 `json:"terrain"`
	Creeps     []snapshot.CreepV1     `json:"creeps"`
	Structures []snapshot.StructureV1 `json:"structures"`
	Render     string                 `json:"render"`
}

func (w *World) RoomData(name string) (RoomData, bool) {
	rn, err := model.ParseRoomName(name)
	if err != nil {
		return RoomData{}, false
	}
	r := w.rooms[rn]
	if r == nil {
		return RoomData{}, false
	}
	d := RoomData{
		Room:       rn.String(),
		Time:       w.time,
		Terrain:    r.Terrain.Encode(),
		Creeps:     []snapshot.CreepV1{},
		Structures: []snapshot.StructureV1{},
		Render:     r.Render(),
	}
	for _, id := range r.CreepIDs() {
		d.Creeps = append(d.Creeps, ExportCreep(r.Creeps[id]))
	}
	for _, id := range r.StructureIDs() {
		d.Structures = append(d.Structures, ExportStructure(r.Structures[id]))
	}
	return d, true
}
