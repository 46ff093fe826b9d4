package grid

import (
	"errors"
	"testing"
)

func TestLaneSymmetry(t *testing.T) {
	m := Default()
	for _, lane := range Lanes {
		t.Run(lane.String(), func(t *testing.T) {
			fwd := m.LanePath(lane, SideLeft)
			back := m.LanePath(lane, SideRight)
			if len(fwd) == 0 {
				t.Fatalf("lane %s is empty", lane)
			}
			if fwd[0] != m.Base(SideLeft) || fwd[len(fwd)-1] != m.Base(SideRight) {
				t.Fatalf("forward endpoints %v..%v are not the bases", fwd[0], fwd[len(fwd)-1])
			}
			if back[0] != m.Base(SideRight) || back[len(back)-1] != m.Base(SideLeft) {
				t.Fatalf("reverse endpoints %v..%v are not the bases", back[0], back[len(back)-1])
			}
			seen := make(map[Tile]int)
			for _, tile := range fwd {
				seen[tile]++
			}
			for _, tile := range back {
				seen[tile]--
			}
			for tile, n := range seen {
				if n != 0 {
					t.Fatalf("tile %v visited unevenly (%d)", tile, n)
				}
			}
		})
	}
}

func TestPathReturnsCopy(t *testing.T) {
	m := Default()
	p := m.Path(LaneMid)
	p[0] = Tile{X: -5, Y: -5}
	if m.Path(LaneMid)[0] != m.Base(SideLeft) {
		t.Fatalf("mutating returned path leaked into the map")
	}
}

func TestWorldTileRoundTrip(t *testing.T) {
	cases := []Tile{{0, 0}, {3, 7}, {29, 19}, {12, 0}}
	for _, tile := range cases {
		if got := WorldToTile(TileToWorld(tile)); got != tile {
			t.Fatalf("round trip %v -> %v", tile, got)
		}
	}
	if got := WorldToTile(Pos{X: -1, Y: 5}); got.X != -1 {
		t.Fatalf("negative coordinates must floor, got %v", got)
	}
}

func TestWalkable(t *testing.T) {
	m := Default()
	cases := []struct {
		name string
		tile Tile
		want bool
	}{
		{"open", Tile{X: 5, Y: 10}, true},
		{"ground row", Tile{X: 5, Y: DefaultHeight - 1}, false},
		{"rock band", Tile{X: 10, Y: 6}, false},
		{"left of bounds", Tile{X: -1, Y: 10}, false},
		{"below bounds", Tile{X: 3, Y: DefaultHeight}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := m.Walkable(tc.tile); got != tc.want {
				t.Fatalf("Walkable(%v) = %v, want %v", tc.tile, got, tc.want)
			}
		})
	}
}

func TestFindPath(t *testing.T) {
	m := Default()
	t.Run("prefers larger axis", func(t *testing.T) {
		got := m.FindPath(Tile{X: 2, Y: 10}, Tile{X: 8, Y: 11})
		if len(got) != 2 || got[1] != (Tile{X: 3, Y: 10}) {
			t.Fatalf("unexpected step %v", got)
		}
	})
	t.Run("same tile", func(t *testing.T) {
		got := m.FindPath(Tile{X: 4, Y: 4}, Tile{X: 4, Y: 4})
		if got[0] != got[1] {
			t.Fatalf("expected stationary step, got %v", got)
		}
	})
	t.Run("blocked primary falls back", func(t *testing.T) {
		// (10,5) -> (10,8): straight down hits the rock band at y=6
		got := m.FindPath(Tile{X: 10, Y: 5}, Tile{X: 11, Y: 8})
		if got[1] != (Tile{X: 11, Y: 5}) {
			t.Fatalf("expected sideways step, got %v", got)
		}
	})
}

func TestTargetTile(t *testing.T) {
	m := Default()
	path := m.LanePath(LaneMid, SideLeft)
	if got := m.TargetTile(Tile{X: 4, Y: 10}, path); got != (Tile{X: 5, Y: 10}) {
		t.Fatalf("expected to follow the lane, got %v", got)
	}
	// off-lane: steps back toward the skeleton's next tile
	if got := m.TargetTile(Tile{X: 4, Y: 12}, path); got != (Tile{X: 4, Y: 11}) {
		t.Fatalf("expected to rejoin the lane, got %v", got)
	}
	end := path[len(path)-1]
	if got := m.TargetTile(end, path); got != end {
		t.Fatalf("expected to hold at the end, got %v", got)
	}
	rev := m.LanePath(LaneMid, SideRight)
	if got := m.TargetTile(Tile{X: 20, Y: 10}, rev); got != (Tile{X: 19, Y: 10}) {
		t.Fatalf("expected reversed travel, got %v", got)
	}
}

func TestNewValidatesLanes(t *testing.T) {
	left, right := Tile{X: 0, Y: 0}, Tile{X: 3, Y: 0}
	cases := []struct {
		name  string
		lanes map[Lane][]Tile
		obs   []Tile
		want  error
	}{
		{"empty", map[Lane][]Tile{LaneMid: nil}, nil, ErrEmptyLane},
		{"bad endpoint", map[Lane][]Tile{LaneMid: {left, {X: 1, Y: 0}}}, nil, ErrLaneEndpoint},
		{"blocked", map[Lane][]Tile{LaneMid: polyline(left, right)}, []Tile{{X: 2, Y: 0}}, ErrBlockedLane},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(4, 2, left, right, tc.obs, tc.lanes)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}
