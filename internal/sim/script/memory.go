package script

import (
	"strings"

	"github.com/dop251/goja"

	"creepworld.ai/internal/sim/bridge"
	"creepworld.ai/internal/sim/world/model"
	"creepworld.ai/internal/sim/world/pathfind"
)

// creepMemory returns Memory.creeps[name], creating the entry when create is set. It reads the
// Memory global each time because scripts may replace it.
func (e *env) creepMemory(name string, create bool) *goja.Object {
	mem, ok := e.vm.Get("Memory").(*goja.Object)
	if !ok {
		return nil
	}
	creeps, ok := mem.Get("creeps").(*goja.Object)
	if !ok {
		if !create {
			return nil
		}
		creeps = e.vm.NewObject()
		set(mem, "creeps", creeps)
	}
	entry, ok := creeps.Get(name).(*goja.Object)
	if !ok {
		if !create {
			return nil
		}
		entry = e.vm.NewObject()
		set(creeps, name, entry)
	}
	return entry
}

// pathMemory keeps moveTo caches in Memory.creeps[name]._move so they survive between ticks
// with the rest of the player's Memory.
type pathMemory struct{ e *env }

const moveKey = "_move"

func (m pathMemory) LoadPath(creepID string) (bridge.CachedPath, bool) {
	entry := m.e.creepMemory(m.e.creepNames[creepID], false)
	if entry == nil {
		return bridge.CachedPath{}, false
	}
	mv, ok := entry.Get(moveKey).(*goja.Object)
	if !ok {
		return bridge.CachedPath{}, false
	}
	dest, ok1 := posArg(mv.Get("dest"))
	from, ok2 := posArg(mv.Get("from"))
	if !ok1 || !ok2 {
		return bridge.CachedPath{}, false
	}
	var path string
	if steps, isArray := m.e.arrayArg(mv.Get("path")); isArray {
		dirs := make([]model.Direction, len(steps))
		for i, s := range steps {
			dirs[i] = model.Direction(s.ToInteger())
		}
		path = pathfind.EncodePath(dirs)
	} else if p := mv.Get("path"); defined(p) {
		path = p.String()
	}
	return bridge.CachedPath{Dest: dest, From: from, Path: path}, path != ""
}

func (m pathMemory) StorePath(creepID string, p bridge.CachedPath, serialize bool) {
	entry := m.e.creepMemory(m.e.creepNames[creepID], true)
	if entry == nil {
		return
	}
	mv := m.e.vm.NewObject()
	set(mv, "dest", m.e.pos(p.Dest))
	set(mv, "from", m.e.pos(p.From))
	if serialize {
		set(mv, "path", p.Path)
	} else {
		dirs, _ := pathfind.DecodePath(p.Path)
		items := make([]any, len(dirs))
		for i, d := range dirs {
			items[i] = int(d)
		}
		set(mv, "path", m.e.vm.NewArray(items...))
	}
	set(entry, moveKey, mv)
}

func (m pathMemory) ClearPath(creepID string) {
	if entry := m.e.creepMemory(m.e.creepNames[creepID], false); entry != nil {
		_ = entry.Delete(moveKey)
	}
}

// summarize trims a console line for logs.
func summarize(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.TrimSpace(s[:n]) + "..."
}
