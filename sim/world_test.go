package sim

import (
	"bytes"
	"errors"
	"math/rand"
	"testing"

	"lanewars/grid"
)

func newTestWorld(t *testing.T, opts ...Option) (*World, *Player, *Player) {
	t.Helper()
	base := []Option{WithRand(rand.New(rand.NewSource(1))), WithManualAnimation()}
	w := NewWorld(grid.Default(), append(base, opts...)...)
	me := NewPlayer("me", ColorRed, grid.SideLeft, ControllerRemote)
	enemy := NewPlayer("enemy", ColorBlue, grid.SideRight, ControllerRemote)
	if err := w.AddPlayer(me); err != nil {
		t.Fatalf("add me: %v", err)
	}
	if err := w.AddPlayer(enemy); err != nil {
		t.Fatalf("add enemy: %v", err)
	}
	return w, me, enemy
}

func placeUnit(w *World, kind UnitType, c Color, side grid.Side, pos grid.Pos) EntityID {
	return w.PlaceUnit(Unit{Type: kind, Color: c, Health: kind.MaxHealth(), Lane: grid.LaneMid, Side: side}, pos, false)
}

func countEvents(events []Event, kind EventKind) int {
	n := 0
	for _, e := range events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func countArrows(w *World) int {
	n := 0
	w.Each(func(e *Entity) {
		if e.Arrow != nil {
			n++
		}
	})
	return n
}

func TestArenaGenerations(t *testing.T) {
	var a Arena
	first := a.Insert(&Entity{})
	if a.Get(first) == nil {
		t.Fatalf("expected entity to be live")
	}
	if !a.Remove(first) {
		t.Fatalf("expected remove to succeed")
	}
	if a.Remove(first) {
		t.Fatalf("expected second remove to fail")
	}
	second := a.Insert(&Entity{})
	if second.Index() != first.Index() {
		t.Fatalf("expected slot reuse, got %v then %v", first, second)
	}
	if second.Gen() == first.Gen() {
		t.Fatalf("expected generation bump on reuse")
	}
	if a.Get(first) != nil {
		t.Fatalf("stale handle resolved after reuse")
	}
	if a.Get(NoEntity) != nil {
		t.Fatalf("zero handle must never resolve")
	}
	if a.Len() != 1 {
		t.Fatalf("expected 1 live entity, got %d", a.Len())
	}
}

func TestQueueCapacityHuman(t *testing.T) {
	w, me, _ := newTestWorld(t)
	me.Controller = ControllerHuman
	for i := 0; i < MaxQueueLength; i++ {
		if err := w.QueueUnit("me", Warrior); err != nil {
			t.Fatalf("request %d rejected: %v", i, err)
		}
	}
	if err := w.QueueUnit("me", Warrior); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
	events := w.DrainEvents()
	audio := 0
	for _, e := range events {
		if e.Kind == EventAudio && e.Cue == CueError {
			audio++
		}
	}
	if audio != 1 {
		t.Fatalf("expected exactly one error cue, got %d", audio)
	}

	// one completion frees a slot
	w.Settings.Speed = 100
	w.Tick(1)
	if me.Queue.Len() != MaxQueueLength-1 {
		t.Fatalf("expected one completion, queue len %d", me.Queue.Len())
	}
	if err := w.QueueUnit("me", Archer); err != nil {
		t.Fatalf("expected request after completion to be accepted: %v", err)
	}
}

func TestQueueRejectionSilentForAI(t *testing.T) {
	w, _, enemy := newTestWorld(t)
	enemy.Controller = ControllerAI
	for i := 0; i < MaxQueueLength; i++ {
		_ = w.QueueUnit("enemy", Lancer)
	}
	if err := w.QueueUnit("enemy", Lancer); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
	if n := countEvents(w.DrainEvents(), EventAudio); n != 0 {
		t.Fatalf("expected no audio for AI rejection, got %d", n)
	}
}

func TestQueueUnknownPlayer(t *testing.T) {
	w, _, _ := newTestWorld(t)
	if err := w.QueueUnit("nobody", Warrior); !errors.Is(err, ErrUnknownPlayer) {
		t.Fatalf("expected ErrUnknownPlayer, got %v", err)
	}
}

func TestHumanRepeatsLastCompleted(t *testing.T) {
	w, me, _ := newTestWorld(t)
	me.Controller = ControllerHuman
	me.LastCompleted = Archer
	w.Tick(0.01)
	items := me.Queue.Items()
	if len(items) != 1 || items[0].Type != Archer {
		t.Fatalf("expected auto-submitted archer, got %+v", items)
	}
}

func TestProductionSpawnsAtBase(t *testing.T) {
	w, me, enemy := newTestWorld(t)
	me.Controller = ControllerHuman
	me.LastCompleted = Lancer
	w.Settings.Speed = 100
	w.Tick(1)

	events := w.DrainEvents()
	var spawned *Event
	for i := range events {
		if events[i].Kind == EventSpawnUnit {
			spawned = &events[i]
		}
	}
	if spawned == nil {
		t.Fatalf("expected a spawn event, got %+v", events)
	}
	if spawned.Player != "me" || spawned.Unit != Lancer || spawned.Color != ColorRed {
		t.Fatalf("unexpected spawn event %+v", spawned)
	}
	if spawned.Pos != grid.TileToWorld(w.Map.Base(grid.SideLeft)) {
		t.Fatalf("expected spawn at the left base, got %+v", spawned.Pos)
	}
	if me.LastCompleted != Lancer {
		t.Fatalf("expected last completed to stay lancer, got %s", me.LastCompleted)
	}
	if enemy.Queue.Len() != 0 {
		t.Fatalf("remote player queue must not be ticked locally")
	}
}

func TestWeightedPickFavoursFastUnits(t *testing.T) {
	w, _, _ := newTestWorld(t)
	counts := make(map[UnitType]int)
	for i := 0; i < 4000; i++ {
		counts[w.pickWeighted()]++
	}
	if counts[Warrior] <= counts[Priest] {
		t.Fatalf("expected warriors (fast) to outnumber priests (slow): %v", counts)
	}
	for _, kind := range UnitTypes {
		if counts[kind] == 0 {
			t.Fatalf("expected every unit type to be picked at least once: %v", counts)
		}
	}
}

func TestDamageToZeroDespawnsOnce(t *testing.T) {
	w, _, _ := newTestWorld(t)
	id := placeUnit(w, Warrior, ColorRed, grid.SideLeft, grid.TileToWorld(grid.Tile{X: 5, Y: 10}))
	w.DrainEvents()

	w.damage = append(w.damage,
		damageIntent{target: id, amount: 60},
		damageIntent{target: id, amount: 100},
		damageIntent{target: id, amount: 10},
	)
	w.applyDamage()
	e, ok := w.Entity(id)
	if !ok || e.Unit.Health != 0 {
		t.Fatalf("expected health 0 before despawn pass, got %+v", e)
	}
	w.applyDespawns()
	if w.Exists(id) {
		t.Fatalf("expected unit to be despawned")
	}
	if n := countEvents(w.DrainEvents(), EventDespawn); n != 1 {
		t.Fatalf("expected exactly one despawn, got %d", n)
	}
}

func TestHealthStaysClamped(t *testing.T) {
	w, me, _ := newTestWorld(t)
	unitID := placeUnit(w, Archer, ColorRed, grid.SideLeft, grid.TileToWorld(grid.Tile{X: 5, Y: 10}))
	bID, err := w.SpawnBuilding(me.ID, House, grid.TileToWorld(grid.Tile{X: 3, Y: 8}), false)
	if err != nil {
		t.Fatalf("spawn building: %v", err)
	}
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		target := unitID
		if i%2 == 1 {
			target = bID
		}
		amount := rng.Float64()*80 - 50
		w.damage = append(w.damage, damageIntent{target: target, amount: amount})
		w.applyDamage()

		if e, ok := w.Entity(unitID); ok {
			if h := e.Unit.Health; h < 0 || h > e.Unit.MaxHealth() {
				t.Fatalf("unit health out of range after %d intents: %v", i, h)
			}
		}
		if e, ok := w.Entity(bID); ok {
			if h := e.Building.Health; h < 0 || h > e.Building.MaxHealth() {
				t.Fatalf("building health out of range after %d intents: %v", i, h)
			}
		}
	}
}

func TestBuildingDestructionTriggersOnce(t *testing.T) {
	w, me, _ := newTestWorld(t)
	id, err := w.SpawnBuilding(me.ID, Castle, grid.TileToWorld(w.Map.Base(grid.SideLeft)), true)
	if err != nil {
		t.Fatalf("spawn castle: %v", err)
	}
	if _, err := w.SpawnBuilding(me.ID, Castle, grid.Pos{}, true); err == nil {
		t.Fatalf("expected second base to be rejected")
	}
	w.DrainEvents()

	w.damage = append(w.damage,
		damageIntent{target: id, amount: 5000},
		damageIntent{target: id, amount: 10},
		damageIntent{target: id, amount: -100},
	)
	w.applyDamage()
	events := w.DrainEvents()
	if n := countEvents(events, EventExplosion); n != 1 {
		t.Fatalf("expected one explosion, got %d", n)
	}
	if n := countEvents(events, EventGameOver); n != 1 {
		t.Fatalf("expected one game over, got %d", n)
	}
	if winner, over := w.GameOver(); !over || winner != ColorBlue {
		t.Fatalf("expected blue to win, got %s %v", winner, over)
	}
	e, _ := w.Entity(id)
	if e.Building.Health != 0 || !e.Building.Destroying {
		t.Fatalf("expected exploding building, got %+v", e.Building)
	}

	w.tickDestruction(1)
	w.applyDespawns()
	if !w.Exists(id) {
		t.Fatalf("building removed before the destruction timer elapsed")
	}
	w.tickDestruction(BuildingDestroyTime)
	w.applyDespawns()
	if w.Exists(id) {
		t.Fatalf("expected building to be removed after the timer")
	}
}

func TestAnimationCompleteArcherSpawnsArrow(t *testing.T) {
	w, _, _ := newTestWorld(t)
	archer := placeUnit(w, Archer, ColorRed, grid.SideLeft, grid.Pos{X: 100, Y: 336})
	target := placeUnit(w, Warrior, ColorBlue, grid.SideRight, grid.Pos{X: 200, Y: 336})
	e, _ := w.Entity(archer)
	e.Unit.Action = AttackOn(target)

	w.AnimationComplete(archer)
	w.resolveAnimations()

	if n := countArrows(w); n != 1 {
		t.Fatalf("expected exactly one arrow, got %d", n)
	}
	if len(w.damage) != 0 {
		t.Fatalf("archer must not apply damage directly, got %+v", w.damage)
	}
	w.Each(func(e *Entity) {
		if e.Arrow != nil && e.Arrow.Damage != Archer.Damage() {
			t.Fatalf("expected arrow damage %v, got %v", Archer.Damage(), e.Arrow.Damage)
		}
	})
	if e.Unit.Action.Kind != ActionIdle {
		t.Fatalf("expected archer to return to idle, got %s", e.Unit.Action.Kind)
	}
}

func TestAnimationCompleteArcherUsesBoost(t *testing.T) {
	w, me, _ := newTestWorld(t)
	if err := w.InitiateBoost(me.ID, BoostDamage); err != nil {
		t.Fatalf("boost: %v", err)
	}
	archer := placeUnit(w, Archer, ColorRed, grid.SideLeft, grid.Pos{X: 100, Y: 336})
	target := placeUnit(w, Warrior, ColorBlue, grid.SideRight, grid.Pos{X: 200, Y: 336})
	e, _ := w.Entity(archer)
	e.Unit.Action = AttackOn(target)
	w.AnimationComplete(archer)
	w.resolveAnimations()

	want := Archer.Damage() * BoostMultiplier
	w.Each(func(e *Entity) {
		if e.Arrow != nil && e.Arrow.Damage != want {
			t.Fatalf("expected boosted arrow damage %v, got %v", want, e.Arrow.Damage)
		}
	})

	me.tickBoosts(BoostDuration)
	if me.Boosted(BoostDamage) {
		t.Fatalf("expected boost to expire")
	}
}

func TestAnimationCompleteWarriorDamagesDirectly(t *testing.T) {
	w, _, _ := newTestWorld(t)
	warrior := placeUnit(w, Warrior, ColorRed, grid.SideLeft, grid.Pos{X: 100, Y: 336})
	target := placeUnit(w, Warrior, ColorBlue, grid.SideRight, grid.Pos{X: 130, Y: 336})
	e, _ := w.Entity(warrior)
	e.Unit.Action = AttackOn(target)

	w.AnimationComplete(warrior)
	w.resolveAnimations()

	if n := countArrows(w); n != 0 {
		t.Fatalf("expected no arrows, got %d", n)
	}
	if len(w.damage) != 1 || w.damage[0].target != target || w.damage[0].amount != Warrior.Damage() {
		t.Fatalf("unexpected damage intents %+v", w.damage)
	}
}

func TestAnimationCompleteHealAndMissingTarget(t *testing.T) {
	w, _, _ := newTestWorld(t)
	priest := placeUnit(w, Priest, ColorRed, grid.SideLeft, grid.Pos{X: 100, Y: 336})
	ally := placeUnit(w, Warrior, ColorRed, grid.SideLeft, grid.Pos{X: 130, Y: 336})
	e, _ := w.Entity(priest)

	t.Run("heal", func(t *testing.T) {
		e.Unit.Action = HealOn(ally)
		w.AnimationComplete(priest)
		w.resolveAnimations()
		if len(w.damage) != 1 || w.damage[0].amount != -Priest.HealAmount() {
			t.Fatalf("expected one negative intent, got %+v", w.damage)
		}
		w.damage = nil
	})

	t.Run("missing target", func(t *testing.T) {
		e.Unit.Action = HealOn(ally)
		w.Despawn(ally)
		w.AnimationComplete(priest)
		w.resolveAnimations()
		if len(w.damage) != 0 || countArrows(w) != 0 {
			t.Fatalf("expected a silent no-op, got %+v", w.damage)
		}
	})

	t.Run("missing actor", func(t *testing.T) {
		w.AnimationComplete(EntityID(12345))
		w.resolveAnimations()
	})
}

func TestAttackClockFiresAnimation(t *testing.T) {
	w := NewWorld(grid.Default(), WithRand(rand.New(rand.NewSource(1))))
	red := NewPlayer("me", ColorRed, grid.SideLeft, ControllerRemote)
	blue := NewPlayer("enemy", ColorBlue, grid.SideRight, ControllerRemote)
	_ = w.AddPlayer(red)
	_ = w.AddPlayer(blue)
	lancer := placeUnit(w, Lancer, ColorRed, grid.SideLeft, grid.Pos{X: 100, Y: 336})
	target := placeUnit(w, Warrior, ColorBlue, grid.SideRight, grid.Pos{X: 130, Y: 336})
	e, _ := w.Entity(lancer)
	e.Unit.Action = AttackOn(target)

	w.tickAttackClocks(Lancer.AttackPeriod() / 2)
	if len(w.anims) != 0 {
		t.Fatalf("animation fired early")
	}
	w.tickAttackClocks(Lancer.AttackPeriod() / 2)
	if len(w.anims) != 1 || w.anims[0] != lancer {
		t.Fatalf("expected one animation trigger, got %+v", w.anims)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	in := SaveGame{Settings: Settings{Speed: 2, Color: ColorGreen, EnemyColor: ColorYellow}, Turn: 77, PColonizable: 0.25}
	if err := WriteSave(&buf, in); err != nil {
		t.Fatalf("write: %v", err)
	}
	out, err := ReadSave(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if out != in {
		t.Fatalf("expected %+v, got %+v", in, out)
	}
	if _, err := ReadSave(bytes.NewReader([]byte{0xc1})); err == nil {
		t.Fatalf("expected garbage save to fail")
	}
}
