package server

import (
	"time"

	"lanewars/netsync"
	"lanewars/sim"
)

// PlayerID 表示玩家唯一标识（uuid）
type PlayerID string

// Peer 房间内的远端玩家（服务端视角）
type Peer struct {
	ID       PlayerID
	Color    sim.Color // ShareColor 之前为 ColorNone
	JoinedAt time.Time

	Conn *PeerConn // 网络连接的发送端（写协程）
}

// Seated 是否已公布颜色并加入对局
func (p *Peer) Seated() bool { return p.Color != sim.ColorNone }

// send 按消息种类选择通道；可靠通道溢出时断开对端
func (p *Peer) send(m netsync.ServerMessage, metrics *RoomMetrics) {
	b, err := netsync.EncodeServer(m)
	if err != nil {
		Log.Errorw("encode failed", "peer", p.ID, "kind", m.Kind, "err", err)
		return
	}
	if m.Channel() == netsync.Unreliable {
		replaced, err := p.Conn.SendLatest(b)
		if err != nil {
			return
		}
		if replaced {
			metrics.IncSnapshotsReplaced()
		}
		metrics.IncSnapshotsSent()
		metrics.IncOut()
		return
	}
	switch err := p.Conn.SendReliable(b); err {
	case nil:
		metrics.IncOut()
	case ErrReliableOverflow:
		metrics.IncReliableOverflow()
		Log.Warnw("reliable queue overflow, dropping peer", "peer", p.ID, "kind", m.Kind)
		p.Conn.Close()
	}
}
