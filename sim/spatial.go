package sim

import "lanewars/grid"

// UnitOccupant 索引中的单位快照
type UnitOccupant struct {
	ID   EntityID
	Pos  grid.Pos
	Unit Unit
}

// BuildingOccupant 索引中的建筑快照
type BuildingOccupant struct {
	ID       EntityID
	Pos      grid.Pos
	Building Building
}

// SpatialIndex 格子 → 占用者。每个 Tick 开始时全量重建，Tick 内只读
type SpatialIndex struct {
	units     map[grid.Tile][]UnitOccupant
	buildings map[grid.Tile][]BuildingOccupant
}

// BuildIndex 按实体表顺序建立索引
func BuildIndex(a *Arena) *SpatialIndex {
	idx := &SpatialIndex{
		units:     make(map[grid.Tile][]UnitOccupant),
		buildings: make(map[grid.Tile][]BuildingOccupant),
	}
	a.Each(func(e *Entity) {
		t := grid.WorldToTile(e.Pos)
		switch {
		case e.Unit != nil:
			idx.units[t] = append(idx.units[t], UnitOccupant{ID: e.ID, Pos: e.Pos, Unit: *e.Unit})
		case e.Building != nil:
			idx.buildings[t] = append(idx.buildings[t], BuildingOccupant{ID: e.ID, Pos: e.Pos, Building: *e.Building})
		}
	})
	return idx
}

// UnitsNear 以固定顺序（行优先）遍历半径内的单位；fn 返回 false 时停止
func (s *SpatialIndex) UnitsNear(center grid.Tile, radius int, fn func(UnitOccupant) bool) {
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			for _, occ := range s.units[grid.Tile{X: center.X + dx, Y: center.Y + dy}] {
				if !fn(occ) {
					return
				}
			}
		}
	}
}

// BuildingsNear 同 UnitsNear，针对建筑
func (s *SpatialIndex) BuildingsNear(center grid.Tile, radius int, fn func(BuildingOccupant) bool) {
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			for _, occ := range s.buildings[grid.Tile{X: center.X + dx, Y: center.Y + dy}] {
				if !fn(occ) {
					return
				}
			}
		}
	}
}
