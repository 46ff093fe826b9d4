package grid

const (
	DefaultWidth  = 30
	DefaultHeight = 20
)

// Default 标准战场：30x20，左右基地在中线两端，三条路线，
// 最底一行是不可走的地面，中间两条岩带把路线隔开
func Default() *Map {
	left := Tile{X: 1, Y: 10}
	right := Tile{X: 28, Y: 10}

	var obstacles []Tile
	for x := 0; x < DefaultWidth; x++ {
		obstacles = append(obstacles, Tile{X: x, Y: DefaultHeight - 1})
	}
	for x := 6; x <= 23; x++ {
		obstacles = append(obstacles, Tile{X: x, Y: 6}, Tile{X: x, Y: 13})
	}

	lanes := map[Lane][]Tile{
		LaneTop:    polyline(left, Tile{X: 1, Y: 3}, Tile{X: 28, Y: 3}, right),
		LaneMid:    polyline(left, right),
		LaneBottom: polyline(left, Tile{X: 1, Y: 16}, Tile{X: 28, Y: 16}, right),
	}
	m, err := New(DefaultWidth, DefaultHeight, left, right, obstacles, lanes)
	if err != nil {
		// 静态数据，出错即编码错误
		panic(err)
	}
	return m
}

// polyline 依次连接各拐点的直角折线，拐点不重复
func polyline(points ...Tile) []Tile {
	out := []Tile{points[0]}
	for i := 1; i < len(points); i++ {
		cur := out[len(out)-1]
		dst := points[i]
		for cur != dst {
			switch {
			case cur.X != dst.X:
				cur.X += sign(dst.X - cur.X)
			default:
				cur.Y += sign(dst.Y - cur.Y)
			}
			out = append(out, cur)
		}
	}
	return out
}
