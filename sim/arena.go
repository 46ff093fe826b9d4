package sim

import "fmt"

// EntityID 带代数的实体句柄：低 32 位是槽位下标，高 32 位是代数。
// 槽位复用后代数递增，旧句柄自动失效
type EntityID uint64

// NoEntity 零值句柄，永远无效
const NoEntity EntityID = 0

func makeID(index, gen uint32) EntityID {
	return EntityID(uint64(gen)<<32 | uint64(index))
}

// Index 槽位下标
func (id EntityID) Index() uint32 { return uint32(id) }

// Gen 代数
func (id EntityID) Gen() uint32 { return uint32(id >> 32) }

func (id EntityID) String() string {
	return fmt.Sprintf("%d#%d", id.Index(), id.Gen())
}

type slot struct {
	gen  uint32
	live bool
	ent  *Entity
}

// Arena 实体表：O(1) 插入、查找、删除
type Arena struct {
	slots []slot
	free  []uint32
	live  int
}

// Insert 放入实体并返回新句柄（同时写回 e.ID）
func (a *Arena) Insert(e *Entity) EntityID {
	var idx uint32
	if n := len(a.free); n > 0 {
		idx = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		idx = uint32(len(a.slots))
		a.slots = append(a.slots, slot{gen: 1})
	}
	s := &a.slots[idx]
	s.live = true
	s.ent = e
	e.ID = makeID(idx, s.gen)
	a.live++
	return e.ID
}

// Get 句柄失效（已删除或槽位已复用）时返回 nil
func (a *Arena) Get(id EntityID) *Entity {
	idx := id.Index()
	if id == NoEntity || int(idx) >= len(a.slots) {
		return nil
	}
	s := &a.slots[idx]
	if !s.live || s.gen != id.Gen() {
		return nil
	}
	return s.ent
}

// Remove 删除实体；句柄无效时返回 false
func (a *Arena) Remove(id EntityID) bool {
	if a.Get(id) == nil {
		return false
	}
	s := &a.slots[id.Index()]
	s.live = false
	s.ent = nil
	s.gen++
	a.free = append(a.free, id.Index())
	a.live--
	return true
}

// Len 存活实体数
func (a *Arena) Len() int { return a.live }

// Each 按槽位顺序遍历存活实体。遍历中插入的实体不会被访问
func (a *Arena) Each(fn func(*Entity)) {
	n := len(a.slots)
	for i := 0; i < n; i++ {
		if s := &a.slots[i]; s.live {
			fn(s.ent)
		}
	}
}
