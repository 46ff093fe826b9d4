package netsync

import (
	"lanewars/grid"
	"lanewars/sim"
)

// UnitEntry 快照中的一个单位：位置、朝向与完整状态
type UnitEntry struct {
	Pos   grid.Pos `msgpack:"pos"`
	FlipX bool     `msgpack:"flip,omitempty"`
	Unit  sim.Unit `msgpack:"unit"`
}

// BuildingEntry 快照中的一个建筑
type BuildingEntry struct {
	Pos      grid.Pos     `msgpack:"pos"`
	Building sim.Building `msgpack:"building"`
}

// Population 发送方本地实体 ID → 状态。箭矢不同步
type Population struct {
	Units     map[sim.EntityID]UnitEntry     `msgpack:"units"`
	Buildings map[sim.EntityID]BuildingEntry `msgpack:"buildings"`
}

// Contains 快照是否包含该远端 ID
func (p Population) Contains(id sim.EntityID) bool {
	if _, ok := p.Units[id]; ok {
		return true
	}
	_, ok := p.Buildings[id]
	return ok
}

// Len 实体总数
func (p Population) Len() int { return len(p.Units) + len(p.Buildings) }

// Translator 发送前改写引用字段：本地 ID → 接收方认得的 ID；
// 返回 false 表示接收方不认识该实体
type Translator func(sim.EntityID) (sim.EntityID, bool)

// BuildPopulation 收集不属于 receiver 颜色的单位与建筑。
// xlate 为 nil 时引用按原样发送，由接收方入站时转换
func BuildPopulation(w *sim.World, receiver sim.Color, xlate Translator) Population {
	pop := Population{
		Units:     make(map[sim.EntityID]UnitEntry),
		Buildings: make(map[sim.EntityID]BuildingEntry),
	}
	w.Each(func(e *sim.Entity) {
		if e.Color() == receiver {
			return
		}
		switch {
		case e.Unit != nil:
			u := *e.Unit
			if xlate != nil && u.Action.Targeted() {
				if t, ok := xlate(u.Action.Target); ok {
					u.Action.Target = t
				} else {
					u.Action = sim.Idle()
				}
			}
			pop.Units[e.ID] = UnitEntry{Pos: e.Pos, FlipX: e.FlipX, Unit: u}
		case e.Building != nil:
			pop.Buildings[e.ID] = BuildingEntry{Pos: e.Pos, Building: *e.Building}
		}
	})
	return pop
}
