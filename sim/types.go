package sim

import (
	"fmt"

	"lanewars/grid"
)

// Color 阵营颜色
type Color uint8

const (
	ColorNone Color = iota
	ColorRed
	ColorBlue
	ColorGreen
	ColorYellow
)

var colorNames = map[Color]string{
	ColorNone:   "none",
	ColorRed:    "red",
	ColorBlue:   "blue",
	ColorGreen:  "green",
	ColorYellow: "yellow",
}

func (c Color) String() string {
	if s, ok := colorNames[c]; ok {
		return s
	}
	return fmt.Sprintf("color(%d)", uint8(c))
}

// Valid 是否为可分配的颜色
func (c Color) Valid() bool { return c >= ColorRed && c <= ColorYellow }

// ParseColor 解析颜色名称
func ParseColor(s string) (Color, error) {
	for c, name := range colorNames {
		if name == s && c.Valid() {
			return c, nil
		}
	}
	return ColorNone, fmt.Errorf("unknown color %q", s)
}

// UnitType 兵种，属性表固定
type UnitType uint8

const (
	Warrior UnitType = iota
	Lancer
	Archer
	Priest
)

// UnitTypes 所有兵种
var UnitTypes = []UnitType{Warrior, Lancer, Archer, Priest}

func (t UnitType) String() string {
	switch t {
	case Warrior:
		return "warrior"
	case Lancer:
		return "lancer"
	case Archer:
		return "archer"
	case Priest:
		return "priest"
	default:
		return fmt.Sprintf("unit(%d)", uint8(t))
	}
}

// Valid 是否为已知兵种
func (t UnitType) Valid() bool { return t <= Priest }

// ParseUnitType 解析兵种名称
func ParseUnitType(s string) (UnitType, error) {
	for _, t := range UnitTypes {
		if t.String() == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown unit type %q", s)
}

func (t UnitType) MaxHealth() float64 {
	switch t {
	case Warrior:
		return 150
	case Lancer:
		return 120
	case Archer:
		return 80
	case Priest:
		return 70
	}
	return 0
}

// Damage 基础攻击力（不含加成）
func (t UnitType) Damage() float64 {
	switch t {
	case Warrior:
		return 20
	case Lancer:
		return 28
	case Archer:
		return 15
	}
	return 0
}

// HealAmount 每次治疗量
func (t UnitType) HealAmount() float64 {
	if t == Priest {
		return 12
	}
	return 0
}

// Speed 世界单位/秒
func (t UnitType) Speed() float64 {
	switch t {
	case Warrior:
		return 40
	case Lancer:
		return 48
	case Archer, Priest:
		return 36
	}
	return 0
}

// Range 攻击或治疗距离（世界单位）
func (t UnitType) Range() float64 {
	switch t {
	case Warrior:
		return 36
	case Lancer:
		return 48
	case Archer:
		return 5 * grid.TileSize
	case Priest:
		return 3 * grid.TileSize
	}
	return 0
}

// SpawnDuration 生产耗时（秒）
func (t UnitType) SpawnDuration() float64 {
	switch t {
	case Warrior:
		return 3
	case Lancer:
		return 4
	case Archer:
		return 5
	case Priest:
		return 6
	}
	return 1
}

func (t UnitType) Melee() bool { return t == Warrior || t == Lancer }

func (t UnitType) Healer() bool { return t == Priest }

// AttackFrames 一次攻击/治疗动画的帧数
func (t UnitType) AttackFrames() int {
	switch t {
	case Warrior:
		return 6
	case Lancer:
		return 3
	case Archer:
		return 8
	case Priest:
		return 6
	}
	return 1
}

// AttackPeriod 一次动画循环的秒数
func (t UnitType) AttackPeriod() float64 {
	return float64(t.AttackFrames()) * FrameDuration
}

// BuildingType 建筑类型
type BuildingType uint8

const (
	Castle BuildingType = iota
	Tower
	House
)

func (t BuildingType) String() string {
	switch t {
	case Castle:
		return "castle"
	case Tower:
		return "tower"
	case House:
		return "house"
	default:
		return fmt.Sprintf("building(%d)", uint8(t))
	}
}

func (t BuildingType) Valid() bool { return t <= House }

// ParseBuildingType 解析建筑名称
func ParseBuildingType(s string) (BuildingType, error) {
	for _, t := range []BuildingType{Castle, Tower, House} {
		if t.String() == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown building type %q", s)
}

func (t BuildingType) MaxHealth() float64 {
	switch t {
	case Castle:
		return 1500
	case Tower:
		return 600
	case House:
		return 300
	}
	return 0
}

// HalfSize 建筑半边长，攻击距离从边缘算起
func (t BuildingType) HalfSize() float64 {
	if t == Castle {
		return 1.5 * grid.TileSize
	}
	return 0.75 * grid.TileSize
}

// ActionKind 单位当前动作
type ActionKind uint8

const (
	ActionIdle ActionKind = iota
	ActionRun
	ActionAttack
	ActionHeal
)

func (k ActionKind) String() string {
	switch k {
	case ActionIdle:
		return "idle"
	case ActionRun:
		return "run"
	case ActionAttack:
		return "attack"
	case ActionHeal:
		return "heal"
	default:
		return fmt.Sprintf("action(%d)", uint8(k))
	}
}

// Action 动作及其目标（仅 Attack/Heal 使用 Target）
type Action struct {
	Kind   ActionKind `msgpack:"k"`
	Target EntityID   `msgpack:"t,omitempty"`
}

func Idle() Action                    { return Action{Kind: ActionIdle} }
func Run() Action                     { return Action{Kind: ActionRun} }
func AttackOn(target EntityID) Action { return Action{Kind: ActionAttack, Target: target} }
func HealOn(target EntityID) Action   { return Action{Kind: ActionHeal, Target: target} }

// Targeted 是否引用了另一个实体
func (a Action) Targeted() bool {
	return a.Kind == ActionAttack || a.Kind == ActionHeal
}
