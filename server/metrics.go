package server

import (
	"sync/atomic"
)

// RoomMetrics 记录一局运行期的关键指标（用于监控与调试）
type RoomMetrics struct {
	TickCount         int64 // 统计的 Tick 次数
	MessagesIn        int64 // 解码成功的入站消息
	MessagesOut       int64 // 入队的出站消息
	DecodeErrors      int64 // 非法/方向错误的消息，已丢弃
	SpawnRequests     int64 // 对端的 SpawnUnit 请求
	SnapshotsSent     int64 // 发出的 Status 快照
	SnapshotsReplaced int64 // 未发出/未处理就被更新快照覆盖的次数
	ReliableOverflow  int64 // 可靠通道溢出导致断开的次数
	TotalTickNs       int64 // Tick 累计耗时（纳秒）
}

func (m *RoomMetrics) IncIn()                { atomic.AddInt64(&m.MessagesIn, 1) }
func (m *RoomMetrics) IncOut()               { atomic.AddInt64(&m.MessagesOut, 1) }
func (m *RoomMetrics) IncDecodeErrors()      { atomic.AddInt64(&m.DecodeErrors, 1) }
func (m *RoomMetrics) IncSpawnRequests()     { atomic.AddInt64(&m.SpawnRequests, 1) }
func (m *RoomMetrics) IncSnapshotsSent()     { atomic.AddInt64(&m.SnapshotsSent, 1) }
func (m *RoomMetrics) IncSnapshotsReplaced() { atomic.AddInt64(&m.SnapshotsReplaced, 1) }
func (m *RoomMetrics) IncReliableOverflow()  { atomic.AddInt64(&m.ReliableOverflow, 1) }
func (m *RoomMetrics) AddTick(ns int64) {
	atomic.AddInt64(&m.TickCount, 1)
	atomic.AddInt64(&m.TotalTickNs, ns)
}

// Snapshot 返回只读副本，便于 HTTP 输出
func (m *RoomMetrics) Snapshot() map[string]any {
	tick := atomic.LoadInt64(&m.TickCount)
	total := atomic.LoadInt64(&m.TotalTickNs)
	var avgMs float64
	if tick > 0 {
		avgMs = float64(total) / float64(tick) / 1e6
	}
	return map[string]any{
		"tick_count":         tick,
		"messages_in":        atomic.LoadInt64(&m.MessagesIn),
		"messages_out":       atomic.LoadInt64(&m.MessagesOut),
		"decode_errors":      atomic.LoadInt64(&m.DecodeErrors),
		"spawn_requests":     atomic.LoadInt64(&m.SpawnRequests),
		"snapshots_sent":     atomic.LoadInt64(&m.SnapshotsSent),
		"snapshots_replaced": atomic.LoadInt64(&m.SnapshotsReplaced),
		"reliable_overflow":  atomic.LoadInt64(&m.ReliableOverflow),
		"avg_tick_ms":        avgMs,
	}
}
