package netsync

import (
	"errors"
	"fmt"

	"lanewars/sim"
)

// ErrAlreadyMapped 插入会破坏一一对应
var ErrAlreadyMapped = errors.New("netsync: identity already mapped")

// IdentityMap 本地 ↔ 远端实体 ID 的双向映射，始终保持一一对应
type IdentityMap struct {
	toRemote map[sim.EntityID]sim.EntityID
	toLocal  map[sim.EntityID]sim.EntityID
}

func NewIdentityMap() *IdentityMap {
	return &IdentityMap{
		toRemote: make(map[sim.EntityID]sim.EntityID),
		toLocal:  make(map[sim.EntityID]sim.EntityID),
	}
}

// Insert 登记一对 ID；任一侧已存在时拒绝
func (m *IdentityMap) Insert(local, remote sim.EntityID) error {
	if r, ok := m.toRemote[local]; ok {
		return fmt.Errorf("%w: local %v -> remote %v", ErrAlreadyMapped, local, r)
	}
	if l, ok := m.toLocal[remote]; ok {
		return fmt.Errorf("%w: remote %v -> local %v", ErrAlreadyMapped, remote, l)
	}
	m.toRemote[local] = remote
	m.toLocal[remote] = local
	return nil
}

func (m *IdentityMap) Local(remote sim.EntityID) (sim.EntityID, bool) {
	l, ok := m.toLocal[remote]
	return l, ok
}

func (m *IdentityMap) Remote(local sim.EntityID) (sim.EntityID, bool) {
	r, ok := m.toRemote[local]
	return r, ok
}

// RemoveLocal 按本地 ID 删除一对
func (m *IdentityMap) RemoveLocal(local sim.EntityID) (sim.EntityID, bool) {
	r, ok := m.toRemote[local]
	if !ok {
		return sim.NoEntity, false
	}
	delete(m.toRemote, local)
	delete(m.toLocal, r)
	return r, true
}

// RemoveRemote 按远端 ID 删除一对
func (m *IdentityMap) RemoveRemote(remote sim.EntityID) (sim.EntityID, bool) {
	l, ok := m.toLocal[remote]
	if !ok {
		return sim.NoEntity, false
	}
	delete(m.toLocal, remote)
	delete(m.toRemote, l)
	return l, true
}

func (m *IdentityMap) Len() int { return len(m.toLocal) }

// Pairs 当前所有映射（local → remote）的副本
func (m *IdentityMap) Pairs() map[sim.EntityID]sim.EntityID {
	out := make(map[sim.EntityID]sim.EntityID, len(m.toRemote))
	for l, r := range m.toRemote {
		out[l] = r
	}
	return out
}
