package sim

import (
	"math"

	"go.uber.org/zap"

	"lanewars/grid"
)

const (
	UnitScanRadius     = 4
	BuildingScanRadius = 5
	// SeparationRadius 小于此距离的邻居会把单位上下推开
	SeparationRadius = 0.6 * grid.TileSize
	// MaxStepPerTick 单 Tick 最大位移
	MaxStepPerTick = 0.5 * grid.TileSize
	// FlipThreshold 水平位移超过该值才翻转朝向，避免抖动
	FlipThreshold = 0.1
	// verticalBias 目标纵向偏差小于该值时按相对位置决定推开方向
	verticalBias = 1.0
)

func (w *World) moveUnits(dt float64) {
	w.arena.Each(func(e *Entity) {
		u := e.Unit
		if u == nil {
			return
		}
		if u.Action.Kind != ActionIdle && u.Action.Kind != ActionRun {
			return
		}
		w.stepUnit(e, u, dt)
	})
}

func (w *World) stepUnit(e *Entity, u *Unit, dt float64) {
	cur := grid.WorldToTile(e.Pos)
	path := w.Map.LanePath(u.Lane, u.Side)
	if len(path) == 0 {
		u.Action = Idle()
		return
	}
	if cur == path[len(path)-1] {
		u.Action = Idle()
		return
	}

	desired := grid.TileToWorld(w.Map.TargetTile(cur, path)).Sub(e.Pos)

	var nudge grid.Pos
	engaged := false
	w.index.UnitsNear(cur, UnitScanRadius, func(occ UnitOccupant) bool {
		if occ.ID == e.ID {
			return true
		}
		dist := e.Pos.Dist(occ.Pos)
		if occ.Unit.Color == u.Color {
			if u.Type.Healer() && occ.Unit.Damaged() && occ.Unit.Health > 0 && dist <= u.Type.Range() {
				u.Action = HealOn(occ.ID)
				engaged = true
				return false
			}
		} else if !u.Type.Healer() && occ.Unit.Health > 0 && dist <= u.Type.Range() {
			if !u.Type.Melee() || dist < SeparationRadius {
				u.Action = AttackOn(occ.ID)
				engaged = true
				return false
			}
		}
		if dist < SeparationRadius {
			nudge.Y += separationDir(desired.Y, e.Pos.Y-occ.Pos.Y)
		}
		return true
	})
	if engaged {
		return
	}

	if !u.Type.Healer() {
		w.index.BuildingsNear(cur, BuildingScanRadius, func(occ BuildingOccupant) bool {
			if occ.Building.Color == u.Color || !occ.Building.Targetable() {
				return true
			}
			if e.Pos.Dist(occ.Pos) <= u.Type.Range()+occ.Building.Type.HalfSize() {
				u.Action = AttackOn(occ.ID)
				engaged = true
				return false
			}
			return true
		})
		if engaged {
			return
		}
	}

	if u.OnBuilding {
		return
	}

	owner := w.PlayerByColor(u.Color)
	dir := desired.Normalize().Add(nudge.Normalize()).Normalize()
	step := math.Min(u.Type.Speed()*owner.SpeedMultiplier()*dt, MaxStepPerTick)
	next := e.Pos.Add(dir.Scale(step))
	nextTile := grid.WorldToTile(next)

	if nextTile != cur && !w.Map.Walkable(nextTile) {
		u.Action = Idle()
		w.log.Debug("unit stuck",
			zap.Stringer("entity", e.ID),
			zap.Stringer("type", u.Type),
			zap.Int("tile_x", cur.X), zap.Int("tile_y", cur.Y),
			zap.Int("next_x", nextTile.X), zap.Int("next_y", nextTile.Y))
		return
	}
	if !w.Map.Walkable(nextTile.Below()) {
		if top := grid.TileToWorld(nextTile).Y; next.Y > top {
			next.Y = top
		}
	}
	if dx := next.X - e.Pos.X; math.Abs(dx) > FlipThreshold {
		e.FlipX = dx < 0
	}
	e.Pos = next
	u.Action = Run()
}

// separationDir 纵向推开方向：优先顺着目标的纵向偏差，偏差很小时按与邻居的相对位置
func separationDir(targetDY, relativeY float64) float64 {
	if math.Abs(targetDY) > verticalBias {
		return math.Copysign(1, targetDY)
	}
	if relativeY < 0 {
		return -1
	}
	return 1
}
