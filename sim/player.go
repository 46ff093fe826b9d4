package sim

import (
	"errors"
	"fmt"

	"lanewars/grid"
)

// MaxQueueLength 每个玩家生产队列的容量
const MaxQueueLength = 10

var (
	ErrQueueFull     = errors.New("sim: production queue is full")
	ErrUnknownPlayer = errors.New("sim: unknown player")
	ErrUnknownUnit   = errors.New("sim: unknown unit type")
	ErrQueueIndex    = errors.New("sim: queue index out of range")
)

// Controller 玩家由谁操控
type Controller uint8

const (
	ControllerHuman Controller = iota
	ControllerAI
	// ControllerRemote 对端玩家：生产在对端完成，单位经网络到达
	ControllerRemote
)

func (c Controller) String() string {
	switch c {
	case ControllerHuman:
		return "human"
	case ControllerAI:
		return "ai"
	case ControllerRemote:
		return "remote"
	default:
		return fmt.Sprintf("controller(%d)", uint8(c))
	}
}

// ParseController 解析操控方；远端玩家不能由本地切换
func ParseController(s string) (Controller, error) {
	switch s {
	case "human":
		return ControllerHuman, nil
	case "ai":
		return ControllerAI, nil
	}
	return 0, fmt.Errorf("sim: unknown controller %q", s)
}

// QueuedUnit 队列中的一项：兵种 + 剩余时间
type QueuedUnit struct {
	Type      UnitType `msgpack:"type"`
	Remaining float64  `msgpack:"remaining"`
}

// Queue 有界 FIFO 生产队列，只有队首在计时
type Queue struct {
	items []QueuedUnit
}

func (q *Queue) Len() int   { return len(q.items) }
func (q *Queue) Full() bool { return len(q.items) >= MaxQueueLength }

// Items 队列快照
func (q *Queue) Items() []QueuedUnit {
	return append([]QueuedUnit(nil), q.items...)
}

// Push 入队；满时拒绝
func (q *Queue) Push(t UnitType) error {
	if !t.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownUnit, t)
	}
	if q.Full() {
		return ErrQueueFull
	}
	q.items = append(q.items, QueuedUnit{Type: t, Remaining: t.SpawnDuration()})
	return nil
}

// Remove 展示层移除某一项
func (q *Queue) Remove(i int) error {
	if i < 0 || i >= len(q.items) {
		return ErrQueueIndex
	}
	q.items = append(q.items[:i], q.items[i+1:]...)
	return nil
}

// Advance 推进队首计时；完成时出队并返回兵种
func (q *Queue) Advance(dt float64) (UnitType, bool) {
	if len(q.items) == 0 {
		return 0, false
	}
	front := &q.items[0]
	front.Remaining -= dt
	if front.Remaining > 0 {
		return 0, false
	}
	t := front.Type
	q.items = q.items[1:]
	return t, true
}

// BoostType 临时增益
type BoostType uint8

const (
	BoostDamage BoostType = iota
	BoostSpeed
)

func (b BoostType) String() string {
	switch b {
	case BoostDamage:
		return "damage"
	case BoostSpeed:
		return "speed"
	default:
		return fmt.Sprintf("boost(%d)", uint8(b))
	}
}

// ParseBoost 解析增益名称
func ParseBoost(s string) (BoostType, error) {
	for _, b := range []BoostType{BoostDamage, BoostSpeed} {
		if b.String() == s {
			return b, nil
		}
	}
	return 0, fmt.Errorf("unknown boost %q", s)
}

const (
	BoostDuration   = 15.0
	BoostMultiplier = 1.5
)

// Player 一局中的一方
type Player struct {
	ID            string
	Color         Color
	Side          grid.Side
	Lane          grid.Lane // 新单位走的路线
	Controller    Controller
	Queue         Queue
	LastCompleted UnitType // 人类玩家队列空时的默认兵种

	boosts map[BoostType]float64
}

// NewPlayer 创建玩家
func NewPlayer(id string, color Color, side grid.Side, ctrl Controller) *Player {
	return &Player{
		ID:         id,
		Color:      color,
		Side:       side,
		Lane:       grid.LaneMid,
		Controller: ctrl,
		boosts:     make(map[BoostType]float64),
	}
}

// Boosted 增益是否生效
func (p *Player) Boosted(b BoostType) bool {
	return p != nil && p.boosts[b] > 0
}

// DamageMultiplier 伤害倍率；nil 玩家为 1
func (p *Player) DamageMultiplier() float64 {
	if p.Boosted(BoostDamage) {
		return BoostMultiplier
	}
	return 1
}

// SpeedMultiplier 移动速度倍率；nil 玩家为 1
func (p *Player) SpeedMultiplier() float64 {
	if p.Boosted(BoostSpeed) {
		return BoostMultiplier
	}
	return 1
}

func (p *Player) startBoost(b BoostType) {
	if p.boosts == nil {
		p.boosts = make(map[BoostType]float64)
	}
	p.boosts[b] = BoostDuration
}

func (p *Player) tickBoosts(dt float64) {
	for b, left := range p.boosts {
		left -= dt
		if left <= 0 {
			delete(p.boosts, b)
			continue
		}
		p.boosts[b] = left
	}
}
