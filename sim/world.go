package sim

import (
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"lanewars/grid"
)

const (
	// FrameDuration 动画每帧秒数
	FrameDuration = 0.1
	// MaxFrameDelta 单 Tick 可用的最大真实时间，防止掉帧或高倍速时穿墙
	MaxFrameDelta = 0.05
	// BuildingDestroyTime 建筑归零到移除之间的爆炸时长
	BuildingDestroyTime = 1.5
)

// Settings 整局共享、读多写少的配置；作为模拟上下文显式传入
type Settings struct {
	Speed      float64 `msgpack:"speed"`
	Color      Color   `msgpack:"color"`
	EnemyColor Color   `msgpack:"enemy_color"`
}

// DefaultSettings 1 倍速，红方对蓝方
func DefaultSettings() Settings {
	return Settings{Speed: 1, Color: ColorRed, EnemyColor: ColorBlue}
}

// Option 构造选项
type Option func(*World)

// WithLogger 注入日志
func WithLogger(l *zap.Logger) Option {
	return func(w *World) { w.log = l }
}

// WithRand 注入随机源（AI 选兵）
func WithRand(r *rand.Rand) Option {
	return func(w *World) { w.rng = r }
}

// WithSettings 初始配置
func WithSettings(s Settings) Option {
	return func(w *World) { w.Settings = s }
}

// WithManualAnimation 关闭内置的攻击节拍，由外部调用 AnimationComplete 驱动战斗
func WithManualAnimation() Option {
	return func(w *World) { w.autoAnimate = false }
}

// World 权威模拟：单线程，每次 Tick 完整推进一步
type World struct {
	Map      *grid.Map
	Settings Settings

	arena   Arena
	players []*Player
	index   *SpatialIndex

	pendingSpawns []spawnIntent
	damage        []damageIntent
	despawns      []EntityID
	anims         []EntityID
	events        []Event

	rng         *rand.Rand
	log         *zap.Logger
	autoAnimate bool
	tick        uint64
	winner      Color
}

// NewWorld 创建空世界
func NewWorld(m *grid.Map, opts ...Option) *World {
	w := &World{
		Map:         m,
		Settings:    DefaultSettings(),
		autoAnimate: true,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.log == nil {
		w.log = zap.NewNop()
	}
	if w.rng == nil {
		w.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	w.index = BuildIndex(&w.arena)
	return w
}

// TickCount 已推进的 Tick 数
func (w *World) TickCount() uint64 { return w.tick }

// SetTickCount 读档时恢复回合数
func (w *World) SetTickCount(n uint64) { w.tick = n }

// AddPlayer 注册玩家；ID 与颜色都不可重复
func (w *World) AddPlayer(p *Player) error {
	for _, other := range w.players {
		if other.ID == p.ID {
			return fmt.Errorf("sim: duplicate player %q", p.ID)
		}
		if other.Color == p.Color {
			return fmt.Errorf("sim: color %s already taken", p.Color)
		}
	}
	if p.boosts == nil {
		p.boosts = make(map[BoostType]float64)
	}
	w.players = append(w.players, p)
	return nil
}

// Player 按 ID 查找
func (w *World) Player(id string) (*Player, bool) {
	for _, p := range w.players {
		if p.ID == id {
			return p, true
		}
	}
	return nil, false
}

// PlayerByColor 按颜色查找；找不到返回 nil
func (w *World) PlayerByColor(c Color) *Player {
	for _, p := range w.players {
		if p.Color == c {
			return p
		}
	}
	return nil
}

// Players 注册顺序
func (w *World) Players() []*Player {
	return append([]*Player(nil), w.players...)
}

// Entity 查找实体
func (w *World) Entity(id EntityID) (*Entity, bool) {
	e := w.arena.Get(id)
	return e, e != nil
}

// Exists 句柄是否仍然有效
func (w *World) Exists(id EntityID) bool { return w.arena.Get(id) != nil }

// Each 按实体表顺序遍历
func (w *World) Each(fn func(*Entity)) { w.arena.Each(fn) }

// Len 存活实体数
func (w *World) Len() int { return w.arena.Len() }

// GameOver 基地被摧毁后返回胜方颜色
func (w *World) GameOver() (Color, bool) {
	return w.winner, w.winner != ColorNone
}

// DrainEvents 取走本 Tick 及之前累积的对外意图
func (w *World) DrainEvents() []Event {
	out := w.events
	w.events = nil
	return out
}

func (w *World) emit(e Event) { w.events = append(w.events, e) }

// QueueUnit 生产请求。队列满时拒绝，人类玩家额外收到一次错误音效
func (w *World) QueueUnit(playerID string, t UnitType) error {
	p, ok := w.Player(playerID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPlayer, playerID)
	}
	if err := p.Queue.Push(t); err != nil {
		if p.Controller == ControllerHuman {
			w.emit(Event{Kind: EventAudio, Cue: CueError, Color: p.Color, Player: p.ID})
		}
		return err
	}
	return nil
}

// RemoveQueued 展示层从队列移除一项
func (w *World) RemoveQueued(playerID string, i int) error {
	p, ok := w.Player(playerID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPlayer, playerID)
	}
	return p.Queue.Remove(i)
}

// InitiateBoost 开启或刷新增益
func (w *World) InitiateBoost(playerID string, b BoostType) error {
	p, ok := w.Player(playerID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPlayer, playerID)
	}
	p.startBoost(b)
	return nil
}

// RequestSpawn 下一个 Tick 在玩家基地生成单位（对端的生产请求走这里）
func (w *World) RequestSpawn(playerID string, t UnitType) error {
	p, ok := w.Player(playerID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPlayer, playerID)
	}
	if !t.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownUnit, t)
	}
	w.pendingSpawns = append(w.pendingSpawns, spawnIntent{color: p.Color, unit: t})
	return nil
}

// SpawnBuilding 立即放置建筑
func (w *World) SpawnBuilding(ownerID string, t BuildingType, pos grid.Pos, isBase bool) (EntityID, error) {
	p, ok := w.Player(ownerID)
	if !ok {
		return NoEntity, fmt.Errorf("%w: %s", ErrUnknownPlayer, ownerID)
	}
	if !t.Valid() {
		return NoEntity, fmt.Errorf("sim: unknown building type %d", t)
	}
	if isBase && w.baseOf(p.Color) != nil {
		return NoEntity, fmt.Errorf("sim: %s already has a base", p.Color)
	}
	b := Building{Type: t, Color: p.Color, IsBase: isBase, Health: t.MaxHealth()}
	return w.PlaceBuilding(b, pos), nil
}

// PlaceUnit 以给定完整状态立即放置单位（同步层用）
func (w *World) PlaceUnit(u Unit, pos grid.Pos, flip bool) EntityID {
	u.Health = clamp(u.Health, 0, u.MaxHealth())
	id := w.arena.Insert(&Entity{Pos: pos, FlipX: flip, Unit: &u})
	w.emit(Event{Kind: EventSpawnUnit, Entity: id, Color: u.Color, Unit: u.Type, Pos: pos})
	return id
}

// PlaceBuilding 以给定完整状态立即放置建筑
func (w *World) PlaceBuilding(b Building, pos grid.Pos) EntityID {
	b.Health = clamp(b.Health, 0, b.MaxHealth())
	id := w.arena.Insert(&Entity{Pos: pos, Building: &b})
	w.emit(Event{Kind: EventSpawnBuilding, Entity: id, Color: b.Color, Building: b.Type, Pos: pos})
	return id
}

// SyncUnit 用对端快照覆盖单位状态；动作未变时保留攻击节拍
func (w *World) SyncUnit(id EntityID, u Unit, pos grid.Pos, flip bool) bool {
	e := w.arena.Get(id)
	if e == nil || e.Unit == nil {
		return false
	}
	if u.Action == e.Unit.Action {
		u.attackClock = e.Unit.attackClock
	}
	u.Health = clamp(u.Health, 0, u.MaxHealth())
	*e.Unit = u
	e.Pos = pos
	e.FlipX = flip
	return true
}

// SyncBuilding 用对端快照覆盖建筑状态
func (w *World) SyncBuilding(id EntityID, b Building, pos grid.Pos) bool {
	e := w.arena.Get(id)
	if e == nil || e.Building == nil {
		return false
	}
	b.Health = clamp(b.Health, 0, b.MaxHealth())
	*e.Building = b
	e.Pos = pos
	return true
}

// Despawn 立即移除实体；不存在时返回 false
func (w *World) Despawn(id EntityID) bool {
	e := w.arena.Get(id)
	if e == nil {
		return false
	}
	color := e.Color()
	w.arena.Remove(id)
	w.emit(Event{Kind: EventDespawn, Entity: id, Color: color})
	return true
}

// SetGarrisoned 标记单位是否站在建筑上（站上去后不再移动）
func (w *World) SetGarrisoned(id EntityID, on bool) bool {
	e := w.arena.Get(id)
	if e == nil || e.Unit == nil {
		return false
	}
	e.Unit.OnBuilding = on
	return true
}

// AnimationComplete 外部通知：某单位的攻击/治疗动画播完一轮
func (w *World) AnimationComplete(id EntityID) {
	w.anims = append(w.anims, id)
}

// Tick 推进一步。frameDelta 为真实经过的秒数
func (w *World) Tick(frameDelta float64) {
	dt := frameDelta
	if dt > MaxFrameDelta {
		dt = MaxFrameDelta
	}
	if dt < 0 {
		dt = 0
	}
	dt *= w.Settings.Speed
	w.tick++

	for _, p := range w.players {
		p.tickBoosts(dt)
	}
	w.advanceQueues(dt)
	w.materializeSpawns()

	w.index = BuildIndex(&w.arena)
	w.moveUnits(dt)
	w.moveArrows(dt)
	if w.autoAnimate {
		w.tickAttackClocks(dt)
	}
	w.resolveAnimations()
	w.applyDamage()
	w.tickDestruction(dt)
	w.applyDespawns()
}

func (w *World) advanceQueues(dt float64) {
	for _, p := range w.players {
		switch p.Controller {
		case ControllerRemote:
			continue
		case ControllerHuman:
			if p.Queue.Len() == 0 {
				_ = p.Queue.Push(p.LastCompleted)
			}
		case ControllerAI:
			if p.Queue.Len() == 0 {
				_ = p.Queue.Push(w.pickWeighted())
			}
		}
		if t, done := p.Queue.Advance(dt); done {
			p.LastCompleted = t
			w.pendingSpawns = append(w.pendingSpawns, spawnIntent{player: p.ID, color: p.Color, unit: t})
		}
	}
}

// pickWeighted 权重与生产耗时成反比：越快的兵种越常被选中
func (w *World) pickWeighted() UnitType {
	total := 0.0
	for _, t := range UnitTypes {
		total += 1 / t.SpawnDuration()
	}
	r := w.rng.Float64() * total
	for _, t := range UnitTypes {
		r -= 1 / t.SpawnDuration()
		if r < 0 {
			return t
		}
	}
	return UnitTypes[len(UnitTypes)-1]
}

func (w *World) materializeSpawns() {
	pending := w.pendingSpawns
	w.pendingSpawns = nil
	for _, s := range pending {
		owner := w.PlayerByColor(s.color)
		if owner == nil {
			continue
		}
		u := Unit{
			Type:   s.unit,
			Color:  s.color,
			Action: Idle(),
			Health: s.unit.MaxHealth(),
			Lane:   owner.Lane,
			Side:   owner.Side,
		}
		pos := w.spawnPoint(owner)
		id := w.arena.Insert(&Entity{Pos: pos, FlipX: owner.Side == grid.SideRight, Unit: &u})
		w.emit(Event{Kind: EventSpawnUnit, Entity: id, Color: u.Color, Unit: u.Type, Pos: pos, Player: s.player})
	}
}

// spawnPoint 基地建筑所在位置；没有基地时用地图上的基地格
func (w *World) spawnPoint(p *Player) grid.Pos {
	if base := w.baseOf(p.Color); base != nil {
		return base.Pos
	}
	return grid.TileToWorld(w.Map.Base(p.Side))
}

func (w *World) baseOf(c Color) *Entity {
	var found *Entity
	w.arena.Each(func(e *Entity) {
		if found == nil && e.Building != nil && e.Building.IsBase && e.Building.Color == c {
			found = e
		}
	})
	return found
}

func (w *World) tickAttackClocks(dt float64) {
	w.arena.Each(func(e *Entity) {
		u := e.Unit
		if u == nil {
			return
		}
		if !u.Action.Targeted() {
			u.attackClock = 0
			return
		}
		u.attackClock += dt
		if period := u.Type.AttackPeriod(); u.attackClock >= period {
			u.attackClock -= period
			w.anims = append(w.anims, e.ID)
		}
	})
}

func (w *World) tickDestruction(dt float64) {
	w.arena.Each(func(e *Entity) {
		b := e.Building
		if b == nil || !b.Destroying {
			return
		}
		b.DestroyTimer -= dt
		if b.DestroyTimer <= 0 {
			b.Destroying = false
			w.despawns = append(w.despawns, e.ID)
		}
	})
}

func (w *World) applyDespawns() {
	pending := w.despawns
	w.despawns = nil
	for _, id := range pending {
		w.Despawn(id)
	}
}
