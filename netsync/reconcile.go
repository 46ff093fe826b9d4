package netsync

import (
	"maps"
	"slices"

	"go.uber.org/zap"

	"lanewars/sim"
)

// Result 一次对账的增删改计数
type Result struct {
	Spawned   int
	Updated   int
	Despawned int
}

// Reconciler 把对端的快照合并进本地世界。每个发送方一张 IdentityMap，
// 同一接收周期内同一发送方只处理一次
type Reconciler struct {
	log  *zap.Logger
	maps map[string]*IdentityMap
	seen map[string]struct{}
}

func NewReconciler(log *zap.Logger) *Reconciler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reconciler{
		log:  log,
		maps: make(map[string]*IdentityMap),
		seen: make(map[string]struct{}),
	}
}

// BeginCycle 开始新的接收周期（每 Tick 一次）
func (r *Reconciler) BeginCycle() {
	clear(r.seen)
}

// Identities 发送方的映射表，不存在时创建
func (r *Reconciler) Identities(sender string) *IdentityMap {
	m, ok := r.maps[sender]
	if !ok {
		m = NewIdentityMap()
		r.maps[sender] = m
	}
	return m
}

// Forget 丢弃某个发送方的全部映射（断线后）
func (r *Reconciler) Forget(sender string) {
	delete(r.maps, sender)
	delete(r.seen, sender)
}

// Apply 对账一份快照。本周期内已处理过该发送方时返回 false，不做任何改动
func (r *Reconciler) Apply(w *sim.World, sender string, pop Population) (Result, bool) {
	if _, dup := r.seen[sender]; dup {
		r.log.Debug("duplicate snapshot dropped", zap.String("sender", sender))
		return Result{}, false
	}
	r.seen[sender] = struct{}{}
	ids := r.Identities(sender)

	var res Result
	for local, remote := range ids.Pairs() {
		if !pop.Contains(remote) {
			ids.RemoveLocal(local)
			if w.Despawn(local) {
				res.Despawned++
			}
			continue
		}
		if !w.Exists(local) {
			// 本地已先一步移除，按新实体重新生成
			ids.RemoveLocal(local)
		}
	}

	for _, rid := range slices.Sorted(maps.Keys(pop.Buildings)) {
		entry := pop.Buildings[rid]
		if local, ok := ids.Local(rid); ok {
			if w.SyncBuilding(local, entry.Building, entry.Pos) {
				res.Updated++
				continue
			}
			ids.RemoveLocal(local)
			w.Despawn(local)
		}
		r.register(ids, w.PlaceBuilding(entry.Building, entry.Pos), rid)
		res.Spawned++
	}

	// 先补齐新单位的映射，再统一转换动作目标，单位之间的引用才能解析
	units := slices.Sorted(maps.Keys(pop.Units))
	fresh := make(map[sim.EntityID]bool)
	for _, rid := range units {
		if local, ok := ids.Local(rid); ok {
			if e, exists := w.Entity(local); exists && e.Unit != nil {
				continue
			}
			ids.RemoveLocal(local)
			w.Despawn(local)
		}
		entry := pop.Units[rid]
		u := entry.Unit
		u.Action = sim.Idle()
		r.register(ids, w.PlaceUnit(u, entry.Pos, entry.FlipX), rid)
		fresh[rid] = true
		res.Spawned++
	}
	for _, rid := range units {
		entry := pop.Units[rid]
		local, _ := ids.Local(rid)
		u := entry.Unit
		var current sim.Action
		if e, ok := w.Entity(local); ok && e.Unit != nil {
			current = e.Unit.Action
		}
		u.Action = translateAction(ids, u.Action, current)
		w.SyncUnit(local, u, entry.Pos, entry.FlipX)
		if !fresh[rid] {
			res.Updated++
		}
	}

	if res.Spawned > 0 || res.Despawned > 0 {
		r.log.Debug("snapshot reconciled",
			zap.String("sender", sender),
			zap.Int("spawned", res.Spawned),
			zap.Int("updated", res.Updated),
			zap.Int("despawned", res.Despawned),
			zap.Int("mapped", ids.Len()))
	}
	return res, true
}

func (r *Reconciler) register(ids *IdentityMap, local, remote sim.EntityID) {
	if err := ids.Insert(local, remote); err != nil {
		r.log.Warn("identity map rejected pair", zap.Error(err))
	}
}

// translateAction 远端目标 → 本地 ID。
// 目标不在映射里（通常是接收方自己的单位）时沿用镜像当前的本地目标，
// 攻击节拍不被打断；本地也没有目标才回到 Idle
func translateAction(ids *IdentityMap, a, current sim.Action) sim.Action {
	if !a.Targeted() {
		return a
	}
	local, ok := ids.Local(a.Target)
	if !ok {
		if current.Targeted() {
			return current
		}
		return sim.Idle()
	}
	a.Target = local
	return a
}
