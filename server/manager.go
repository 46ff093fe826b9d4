package server

import (
	"context"
	"sync"

	"github.com/sasha-s/go-deadlock"
)

// DefaultRoomID 未指定 ?room= 时使用的房间
const DefaultRoomID = "room-1"

// RoomManager 管理多个房间的生命周期
type RoomManager struct {
	mu    deadlock.RWMutex
	ctx   context.Context
	cfg   RoomConfig
	rooms map[string]*Room
}

var (
	defaultManager *RoomManager
	once           sync.Once
)

// GetRoomManager 单例房间管理器；首次调用时的 ctx/cfg 生效
func GetRoomManager(ctx context.Context, cfg RoomConfig) *RoomManager {
	once.Do(func() {
		defaultManager = NewRoomManager(ctx, cfg)
	})
	return defaultManager
}

// NewRoomManager 独立的管理器（测试用）
func NewRoomManager(ctx context.Context, cfg RoomConfig) *RoomManager {
	return &RoomManager{ctx: ctx, cfg: cfg, rooms: make(map[string]*Room)}
}

// Room 查找已存在的房间
func (m *RoomManager) Room(id string) (*Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[id]
	return r, ok
}

// GetOrCreateRoom 获取或创建房间，并确保开始 Tick
func (m *RoomManager) GetOrCreateRoom(id string) *Room {
	if r, ok := m.Room(id); ok {
		return r
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[id]
	if !ok {
		r = NewRoom(id, m.cfg)
		m.rooms[id] = r
		r.StartTicker(m.ctx)
		Log.Infow("room created", "room", id, "host", r.HostID())
	}
	return r
}

// Rooms 当前所有房间 ID
func (m *RoomManager) Rooms() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.rooms))
	for id := range m.rooms {
		out = append(out, id)
	}
	return out
}
