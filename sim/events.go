package sim

import (
	"fmt"

	"lanewars/grid"
)

// EventKind 对外发出的意图类型（展示层/网络层消费，无需回复）
type EventKind uint8

const (
	EventSpawnUnit EventKind = iota
	EventSpawnBuilding
	EventSpawnArrow
	EventArrowStuck
	EventDespawn
	EventDamage
	EventExplosion
	EventAudio
	EventGameOver
)

func (k EventKind) String() string {
	switch k {
	case EventSpawnUnit:
		return "spawn_unit"
	case EventSpawnBuilding:
		return "spawn_building"
	case EventSpawnArrow:
		return "spawn_arrow"
	case EventArrowStuck:
		return "arrow_stuck"
	case EventDespawn:
		return "despawn"
	case EventDamage:
		return "damage"
	case EventExplosion:
		return "explosion"
	case EventAudio:
		return "audio"
	case EventGameOver:
		return "game_over"
	default:
		return fmt.Sprintf("event(%d)", uint8(k))
	}
}

// AudioCue 音效提示
type AudioCue uint8

const (
	CueError AudioCue = iota
	CueExplosion
)

// Event 一条对外意图
type Event struct {
	Kind     EventKind
	Entity   EntityID
	Color    Color
	Unit     UnitType
	Building BuildingType
	Amount   float64
	Cue      AudioCue
	Pos      grid.Pos
	// Player 本地生产完成的单位带上玩家 ID，客户端据此转发 SpawnUnit
	Player string
}

type damageIntent struct {
	target EntityID
	amount float64 // 负数为治疗
}

type spawnIntent struct {
	player string
	color  Color
	unit   UnitType
}
