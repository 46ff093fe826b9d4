package sim

import "go.uber.org/zap"

func (w *World) resolveAnimations() {
	pending := w.anims
	w.anims = nil
	for _, id := range pending {
		w.resolveAnimation(id)
	}
}

// resolveAnimation 一轮攻击/治疗动画结束：弓手放箭，其他兵种直接结算；
// 结束后回到 Idle，下一个 Tick 重新索敌
func (w *World) resolveAnimation(id EntityID) {
	e := w.arena.Get(id)
	if e == nil || e.Unit == nil {
		return
	}
	u := e.Unit
	if !u.Action.Targeted() {
		return
	}
	action := u.Action
	u.Action = Idle()
	u.attackClock = 0

	target := w.arena.Get(action.Target)
	if target == nil {
		return
	}

	if action.Kind == ActionHeal {
		w.damage = append(w.damage, damageIntent{target: target.ID, amount: -u.Type.HealAmount()})
		return
	}

	amount := u.AttackDamage(w.PlayerByColor(u.Color))
	if u.Type == Archer {
		w.spawnArrow(u.Color, amount, e.Pos, target.Pos)
		return
	}
	w.damage = append(w.damage, damageIntent{target: target.ID, amount: amount})
}

// applyDamage 按发出顺序结算本 Tick 所有伤害/治疗
func (w *World) applyDamage() {
	pending := w.damage
	w.damage = nil
	for _, d := range pending {
		e := w.arena.Get(d.target)
		if e == nil {
			continue
		}
		switch {
		case e.Unit != nil:
			w.damageUnit(e, d.amount)
		case e.Building != nil:
			w.damageBuilding(e, d.amount)
		}
	}
}

func (w *World) damageUnit(e *Entity, amount float64) {
	u := e.Unit
	if u.Health <= 0 {
		// 已等待移除
		return
	}
	u.Health = clamp(u.Health-amount, 0, u.MaxHealth())
	w.emit(Event{Kind: EventDamage, Entity: e.ID, Color: u.Color, Amount: amount})
	if u.Health == 0 {
		w.despawns = append(w.despawns, e.ID)
	}
}

func (w *World) damageBuilding(e *Entity, amount float64) {
	b := e.Building
	if b.Health <= 0 {
		return
	}
	b.Health = clamp(b.Health-amount, 0, b.MaxHealth())
	w.emit(Event{Kind: EventDamage, Entity: e.ID, Color: b.Color, Amount: amount})
	if b.Health > 0 {
		return
	}
	b.Destroying = true
	b.DestroyTimer = BuildingDestroyTime
	w.emit(Event{Kind: EventExplosion, Entity: e.ID, Color: b.Color, Building: b.Type, Pos: e.Pos})
	w.emit(Event{Kind: EventAudio, Cue: CueExplosion, Color: b.Color, Pos: e.Pos})

	if b.IsBase && w.winner == ColorNone {
		for _, p := range w.players {
			if p.Color != b.Color {
				w.winner = p.Color
				break
			}
		}
		w.log.Info("base destroyed",
			zap.Stringer("loser", b.Color),
			zap.Stringer("winner", w.winner))
		w.emit(Event{Kind: EventGameOver, Color: w.winner})
	}
}
