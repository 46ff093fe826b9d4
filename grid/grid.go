package grid

import (
	"errors"
	"fmt"
	"math"
)

// TileSize 每个格子对应的世界坐标边长
const TileSize = 32.0

// Tile 离散格子坐标，空间分区的键
type Tile struct {
	X int `msgpack:"x"`
	Y int `msgpack:"y"`
}

// Pos 世界坐标（Y 轴向下）
type Pos struct {
	X float64 `msgpack:"x"`
	Y float64 `msgpack:"y"`
}

// Add 向量加法
func (p Pos) Add(o Pos) Pos { return Pos{X: p.X + o.X, Y: p.Y + o.Y} }

// Sub 向量减法
func (p Pos) Sub(o Pos) Pos { return Pos{X: p.X - o.X, Y: p.Y - o.Y} }

// Scale 标量乘法
func (p Pos) Scale(k float64) Pos { return Pos{X: p.X * k, Y: p.Y * k} }

// Len 向量长度
func (p Pos) Len() float64 { return math.Hypot(p.X, p.Y) }

// Dist 两点距离
func (p Pos) Dist(o Pos) float64 { return p.Sub(o).Len() }

// Normalize 单位化；零向量原样返回
func (p Pos) Normalize() Pos {
	l := p.Len()
	if l == 0 {
		return p
	}
	return p.Scale(1 / l)
}

// Manhattan 曼哈顿距离
func (t Tile) Manhattan(o Tile) int {
	return abs(t.X-o.X) + abs(t.Y-o.Y)
}

// Below 正下方的格子
func (t Tile) Below() Tile { return Tile{X: t.X, Y: t.Y + 1} }

// Side 阵营所在的半场
type Side uint8

const (
	SideLeft Side = iota
	SideRight
)

func (s Side) String() string {
	switch s {
	case SideLeft:
		return "left"
	case SideRight:
		return "right"
	default:
		return fmt.Sprintf("side(%d)", uint8(s))
	}
}

// Opposite 对面半场
func (s Side) Opposite() Side {
	if s == SideLeft {
		return SideRight
	}
	return SideLeft
}

// Lane 预先计算好的行军路线
type Lane uint8

const (
	LaneTop Lane = iota
	LaneMid
	LaneBottom
)

// Lanes 所有路线，按固定顺序
var Lanes = []Lane{LaneTop, LaneMid, LaneBottom}

func (l Lane) String() string {
	switch l {
	case LaneTop:
		return "top"
	case LaneMid:
		return "mid"
	case LaneBottom:
		return "bottom"
	default:
		return fmt.Sprintf("lane(%d)", uint8(l))
	}
}

// ParseLane 解析路线名称
func ParseLane(s string) (Lane, error) {
	for _, l := range Lanes {
		if l.String() == s {
			return l, nil
		}
	}
	return 0, fmt.Errorf("unknown lane %q", s)
}

var (
	ErrEmptyLane    = errors.New("grid: lane has no tiles")
	ErrLaneEndpoint = errors.New("grid: lane endpoints must be the two bases")
	ErrBlockedLane  = errors.New("grid: lane crosses an unwalkable tile")
)

// Map 格子地图：可走性 + 路线骨架。构造后只读
type Map struct {
	width, height int
	blocked       []bool
	bases         [2]Tile
	lanes         map[Lane][]Tile
}

// New 构造地图并校验路线：非空、起点为左基地、终点为右基地、全程可走
// lanes 一律按左基地 → 右基地的方向编写
func New(width, height int, left, right Tile, obstacles []Tile, lanes map[Lane][]Tile) (*Map, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("grid: invalid size %dx%d", width, height)
	}
	m := &Map{
		width:   width,
		height:  height,
		blocked: make([]bool, width*height),
		bases:   [2]Tile{left, right},
		lanes:   make(map[Lane][]Tile, len(lanes)),
	}
	for _, t := range obstacles {
		if m.inBounds(t) {
			m.blocked[t.Y*width+t.X] = true
		}
	}
	for lane, tiles := range lanes {
		if len(tiles) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrEmptyLane, lane)
		}
		if tiles[0] != left || tiles[len(tiles)-1] != right {
			return nil, fmt.Errorf("%w: %s", ErrLaneEndpoint, lane)
		}
		for _, t := range tiles {
			if !m.Walkable(t) {
				return nil, fmt.Errorf("%w: %s at %v", ErrBlockedLane, lane, t)
			}
		}
		m.lanes[lane] = append([]Tile(nil), tiles...)
	}
	return m, nil
}

// Width 地图宽（格）
func (m *Map) Width() int { return m.width }

// Height 地图高（格）
func (m *Map) Height() int { return m.height }

// Base 某一侧基地所在格子
func (m *Map) Base(side Side) Tile { return m.bases[side] }

// WorldToTile 世界坐标 → 格子
func WorldToTile(p Pos) Tile {
	return Tile{X: int(math.Floor(p.X / TileSize)), Y: int(math.Floor(p.Y / TileSize))}
}

// TileToWorld 格子 → 世界坐标（格子中心）
func TileToWorld(t Tile) Pos {
	return Pos{X: (float64(t.X) + 0.5) * TileSize, Y: (float64(t.Y) + 0.5) * TileSize}
}

func (m *Map) inBounds(t Tile) bool {
	return t.X >= 0 && t.Y >= 0 && t.X < m.width && t.Y < m.height
}

// Walkable 越界或障碍格返回 false
func (m *Map) Walkable(t Tile) bool {
	if !m.inBounds(t) {
		return false
	}
	return !m.blocked[t.Y*m.width+t.X]
}

// Path 路线骨架的副本（左 → 右）
func (m *Map) Path(lane Lane) []Tile {
	return append([]Tile(nil), m.lanes[lane]...)
}

// LanePath 按行军方向给出骨架：右侧阵营走反向
func (m *Map) LanePath(lane Lane, side Side) []Tile {
	p := m.Path(lane)
	if side == SideRight {
		for i, j := 0, len(p)-1; i < j; i, j = i+1, j-1 {
			p[i], p[j] = p[j], p[i]
		}
	}
	return p
}

// FindPath 局部一步：返回 [from, 朝 to 的一步]，不是完整寻路
// 优先沿差值较大的轴走；被挡时换另一轴
func (m *Map) FindPath(from, to Tile) []Tile {
	dx, dy := to.X-from.X, to.Y-from.Y
	if dx == 0 && dy == 0 {
		return []Tile{from, from}
	}
	stepX := Tile{X: from.X + sign(dx), Y: from.Y}
	stepY := Tile{X: from.X, Y: from.Y + sign(dy)}
	primary, secondary := stepX, stepY
	if abs(dy) > abs(dx) {
		primary, secondary = stepY, stepX
	}
	if primary != from && m.Walkable(primary) {
		return []Tile{from, primary}
	}
	if secondary != from && m.Walkable(secondary) {
		return []Tile{from, secondary}
	}
	if primary == from {
		return []Tile{from, secondary}
	}
	return []Tile{from, primary}
}

// TargetTile 找到骨架上曼哈顿距离最近的格（并列取靠前者），
// 然后朝它的下一格（已在末尾则取最后一格）走一步
func (m *Map) TargetTile(cur Tile, path []Tile) Tile {
	if len(path) == 0 {
		return cur
	}
	best, bestDist := 0, math.MaxInt
	for i, t := range path {
		if d := cur.Manhattan(t); d < bestDist {
			best, bestDist = i, d
		}
	}
	next := path[len(path)-1]
	if best+1 < len(path) {
		next = path[best+1]
	}
	return m.FindPath(cur, next)[1]
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
