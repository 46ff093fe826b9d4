package sim

import "lanewars/grid"

const (
	ArrowSpeed     = 320.0
	ArrowHitRadius = 10.0
	// ArrowStickTime 落地后插在地上的时长
	ArrowStickTime = 2.0
)

func (w *World) spawnArrow(color Color, damage float64, from, to grid.Pos) EntityID {
	a := &Arrow{
		Color:  color,
		Damage: damage,
		Start:  from,
		Dest:   to,
		Total:  from.Dist(to),
	}
	id := w.arena.Insert(&Entity{Pos: from, FlipX: to.X < from.X, Arrow: a})
	w.emit(Event{Kind: EventSpawnArrow, Entity: id, Color: color, Amount: damage, Pos: from})
	return id
}

func (w *World) moveArrows(dt float64) {
	w.arena.Each(func(e *Entity) {
		a := e.Arrow
		if a == nil {
			return
		}
		if a.Stuck {
			a.DespawnTimer -= dt
			if a.DespawnTimer <= 0 {
				a.Stuck = false
				w.despawns = append(w.despawns, e.ID)
			}
			return
		}

		a.Traveled += ArrowSpeed * dt
		ground := a.Ground()
		e.Pos = grid.Pos{X: ground.X, Y: ground.Y - a.Height()}
		if a.Progress() >= 1 {
			a.Stuck = true
			a.DespawnTimer = ArrowStickTime
			w.emit(Event{Kind: EventArrowStuck, Entity: e.ID, Color: a.Color, Pos: e.Pos})
			return
		}

		hit := NoEntity
		w.index.UnitsNear(grid.WorldToTile(ground), 1, func(occ UnitOccupant) bool {
			if occ.Unit.Color == a.Color || occ.Unit.Health <= 0 {
				return true
			}
			if ground.Dist(occ.Pos) <= ArrowHitRadius {
				hit = occ.ID
				return false
			}
			return true
		})
		if hit != NoEntity {
			w.damage = append(w.damage, damageIntent{target: hit, amount: a.Damage})
			w.despawns = append(w.despawns, e.ID)
		}
	})
}
