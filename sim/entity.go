package sim

import "lanewars/grid"

// Unit 单位状态。整份随快照同步
type Unit struct {
	Type       UnitType  `msgpack:"type"`
	Color      Color     `msgpack:"color"`
	Action     Action    `msgpack:"action"`
	Health     float64   `msgpack:"health"`
	Lane       grid.Lane `msgpack:"lane"`
	Side       grid.Side `msgpack:"side"`
	OnBuilding bool      `msgpack:"on_building,omitempty"`

	attackClock float64
}

func (u *Unit) MaxHealth() float64 { return u.Type.MaxHealth() }

// Damaged 生命值低于上限
func (u *Unit) Damaged() bool { return u.Health < u.MaxHealth() }

// AttackDamage 结合所属玩家的加成计算一次攻击伤害
func (u *Unit) AttackDamage(owner *Player) float64 {
	return u.Type.Damage() * owner.DamageMultiplier()
}

// Building 建筑状态。生命值归零后进入爆炸倒计时，期间不可被选为目标
type Building struct {
	Type         BuildingType `msgpack:"type"`
	Color        Color        `msgpack:"color"`
	IsBase       bool         `msgpack:"is_base"`
	Health       float64      `msgpack:"health"`
	Destroying   bool         `msgpack:"destroying,omitempty"`
	DestroyTimer float64      `msgpack:"destroy_timer,omitempty"`
}

func (b *Building) MaxHealth() float64 { return b.Type.MaxHealth() }

// Targetable 爆炸中的建筑不可被攻击
func (b *Building) Targetable() bool { return b.Health > 0 }

// Arrow 抛物线弹道
type Arrow struct {
	Color        Color
	Damage       float64
	Start        grid.Pos
	Dest         grid.Pos
	Total        float64
	Traveled     float64
	Stuck        bool
	DespawnTimer float64
}

// Progress 0..1
func (a *Arrow) Progress() float64 {
	if a.Total <= 0 {
		return 1
	}
	return clamp(a.Traveled/a.Total, 0, 1)
}

// Ground 弹道在地面上的投影点
func (a *Arrow) Ground() grid.Pos {
	p := a.Progress()
	return a.Start.Add(a.Dest.Sub(a.Start).Scale(p))
}

// Height 抛物线高度：4·p·(1-p)·0.2·总距离
func (a *Arrow) Height() float64 {
	p := a.Progress()
	return 4 * p * (1 - p) * 0.2 * a.Total
}

// Entity 实体表中的一条记录；Unit/Building/Arrow 三者之一非空
type Entity struct {
	ID       EntityID
	Pos      grid.Pos
	FlipX    bool
	Unit     *Unit
	Building *Building
	Arrow    *Arrow
}

// Color 实体所属颜色
func (e *Entity) Color() Color {
	switch {
	case e.Unit != nil:
		return e.Unit.Color
	case e.Building != nil:
		return e.Building.Color
	case e.Arrow != nil:
		return e.Arrow.Color
	}
	return ColorNone
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
