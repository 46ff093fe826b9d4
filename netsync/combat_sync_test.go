package netsync

import (
	"math/rand"
	"testing"

	"lanewars/grid"
	"lanewars/sim"
)

// 自动动画的世界：蓝方 "host" 在右，红方 "guest" 在左，都不自动出兵
func newLiveWorld(t *testing.T) *sim.World {
	t.Helper()
	w := sim.NewWorld(grid.Default(), sim.WithRand(rand.New(rand.NewSource(7))))
	if err := w.AddPlayer(sim.NewPlayer("host", sim.ColorBlue, grid.SideRight, sim.ControllerRemote)); err != nil {
		t.Fatalf("add host: %v", err)
	}
	if err := w.AddPlayer(sim.NewPlayer("guest", sim.ColorRed, grid.SideLeft, sim.ControllerRemote)); err != nil {
		t.Fatalf("add guest: %v", err)
	}
	return w
}

func fighter(kind sim.UnitType, c sim.Color, side grid.Side) sim.Unit {
	u := unit(kind, c)
	u.Side = side
	return u
}

func TestReconcileKeepsLocalTargetForUnmappedAttack(t *testing.T) {
	host, client := newPair(t)
	hostRed := host.PlaceUnit(unit(sim.Warrior, sim.ColorRed), grid.Pos{X: 300, Y: 336}, false)
	blue := unit(sim.Warrior, sim.ColorBlue)
	blue.Action = sim.AttackOn(hostRed)
	hostBlue := host.PlaceUnit(blue, grid.Pos{X: 315, Y: 336}, true)

	ownRed := client.PlaceUnit(unit(sim.Warrior, sim.ColorRed), grid.Pos{X: 300, Y: 336}, false)

	r := NewReconciler(nil)
	r.BeginCycle()
	r.Apply(client, "host", BuildPopulation(host, sim.ColorRed, nil))
	mirror, _ := r.Identities("host").Local(hostBlue)
	e, _ := client.Entity(mirror)
	if e.Unit.Action.Kind != sim.ActionIdle {
		t.Fatalf("fresh mirror with unmapped target should idle, got %+v", e.Unit.Action)
	}

	// 本地移动阶段给镜像选了目标，下一份快照不能把它清掉
	e.Unit.Action = sim.AttackOn(ownRed)
	r.BeginCycle()
	r.Apply(client, "host", BuildPopulation(host, sim.ColorRed, nil))
	e, _ = client.Entity(mirror)
	if e.Unit.Action != sim.AttackOn(ownRed) {
		t.Fatalf("local target lost on sync, got %+v", e.Unit.Action)
	}

	// 远端不再攻击时照常覆盖
	he, _ := host.Entity(hostBlue)
	he.Unit.Action = sim.Run()
	r.BeginCycle()
	r.Apply(client, "host", BuildPopulation(host, sim.ColorRed, nil))
	e, _ = client.Entity(mirror)
	if e.Unit.Action.Kind != sim.ActionRun {
		t.Fatalf("expected remote action to win, got %+v", e.Unit.Action)
	}
}

// 两个世界交替 Tick 与对账，战斗结果需要在客户端双向可见：
// 镜像打得到客户端自己的单位，主机上的伤害也随快照到达镜像
func TestSnapshotsInterleavedWithCombat(t *testing.T) {
	host := newLiveWorld(t)
	client := newLiveWorld(t)

	host.PlaceUnit(fighter(sim.Warrior, sim.ColorRed, grid.SideLeft), grid.Pos{X: 300, Y: 336}, false)
	hostBlue := host.PlaceUnit(fighter(sim.Warrior, sim.ColorBlue, grid.SideRight), grid.Pos{X: 315, Y: 336}, true)
	ownRed := client.PlaceUnit(fighter(sim.Warrior, sim.ColorRed, grid.SideLeft), grid.Pos{X: 300, Y: 336}, false)

	r := NewReconciler(nil)
	sync := func() {
		r.BeginCycle()
		r.Apply(client, "host", BuildPopulation(host, sim.ColorRed, nil))
	}
	sync()

	ownHurt, mirrorHurt := false, false
	for tick := 1; tick <= 200 && !(ownHurt && mirrorHurt); tick++ {
		host.Tick(0.05)
		client.Tick(0.05)
		if tick%2 == 0 {
			sync()
		}

		if e, ok := client.Entity(ownRed); !ok || e.Unit.Health < sim.Warrior.MaxHealth() {
			ownHurt = true
		}
		if local, ok := r.Identities("host").Local(hostBlue); ok {
			if e, ok := client.Entity(local); ok && e.Unit.Health < sim.Warrior.MaxHealth() {
				mirrorHurt = true
			}
		} else if !host.Exists(hostBlue) {
			mirrorHurt = true
		}
	}
	if !ownHurt {
		t.Fatalf("mirrored attacker never damaged the client's own unit")
	}
	if !mirrorHurt {
		t.Fatalf("host-side damage never reached the mirror")
	}
}
