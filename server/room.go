package server

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"lanewars/grid"
	"lanewars/netsync"
	"lanewars/sim"
)

// ErrRoomClosed 房间的 Tick 循环已退出
var ErrRoomClosed = errors.New("server: room closed")

// RoomConfig 主机房间配置
type RoomConfig struct {
	Settings  sim.Settings
	Save      *sim.SaveGame // 非空时开局前先发 LoadGame
	LocalAI   bool          // 主机一方由 AI 出兵
	SyncEvery int           // 每隔多少 Tick 发一次 Status
}

// DefaultRoomConfig 1 倍速、每 2 Tick（100ms）同步一次
func DefaultRoomConfig() RoomConfig {
	return RoomConfig{Settings: sim.DefaultSettings(), SyncEvery: 2}
}

// Room 主机对局：权威世界维护在内存，单线程 Tick 推进。
// 主机固定在左侧，远端玩家在右侧
type Room struct {
	ID string

	cfg    RoomConfig
	world  *sim.World
	hostID string
	peers  map[PlayerID]*Peer
	state  netsync.GameState
	played bool

	joinChan  chan *Peer
	inputChan chan Inbound
	leaveChan chan PlayerID
	intents   chan intent
	done      chan struct{}

	metrics   *RoomMetrics
	tickSeq   atomic.Uint64
	stateView atomic.Uint32
	log       *zap.Logger

	tickerStarted bool
}

// NewRoom 创建房间，初始化数据结构
func NewRoom(id string, cfg RoomConfig) *Room {
	if cfg.SyncEvery <= 0 {
		cfg.SyncEvery = 1
	}
	if cfg.Settings.Speed <= 0 {
		cfg.Settings.Speed = 1
	}
	r := &Room{
		ID:        id,
		cfg:       cfg,
		hostID:    uuid.NewString(),
		peers:     make(map[PlayerID]*Peer),
		state:     netsync.StateMenu,
		joinChan:  make(chan *Peer, 8),
		inputChan: make(chan Inbound, 256), // 足够缓冲，避免网络读阻塞影响 Tick
		leaveChan: make(chan PlayerID, 64),
		intents:   make(chan intent, 64),
		done:      make(chan struct{}),
		metrics:   &RoomMetrics{},
		log:       Named("room").With(zap.String("room", id)),
	}
	r.resetWorld()
	return r
}

// HostID 主机本地玩家的身份
func (r *Room) HostID() string { return r.hostID }

// Metrics 运行指标
func (r *Room) Metrics() *RoomMetrics { return r.metrics }

// State 当前阶段（可在任意协程读取）
func (r *Room) State() netsync.GameState { return netsync.GameState(r.stateView.Load()) }

// TickSeq 已执行的 Tick 数
func (r *Room) TickSeq() uint64 { return r.tickSeq.Load() }

func (r *Room) resetWorld() {
	r.world = sim.NewWorld(grid.Default(), sim.WithLogger(r.log), sim.WithSettings(r.cfg.Settings))
	ctrl := sim.ControllerHuman
	if r.cfg.LocalAI {
		ctrl = sim.ControllerAI
	}
	if err := r.world.AddPlayer(sim.NewPlayer(r.hostID, r.cfg.Settings.Color, grid.SideLeft, ctrl)); err != nil {
		r.log.Error("add host player", zap.Error(err))
		return
	}
	base := grid.TileToWorld(r.world.Map.Base(grid.SideLeft))
	if _, err := r.world.SpawnBuilding(r.hostID, sim.Castle, base, true); err != nil {
		r.log.Error("spawn host base", zap.Error(err))
	}
	if s := r.cfg.Save; s != nil {
		r.world.SetTickCount(s.Turn)
	}
	r.played = false
}

func (r *Room) setState(s netsync.GameState) {
	if r.state == s {
		return
	}
	r.log.Info("state change", zap.Stringer("from", r.state), zap.Stringer("to", s))
	r.state = s
	r.stateView.Store(uint32(s))
}

// RequestJoin 分配 uuid 身份，在 Tick 线程中加入房间；房间已关闭时直接断开
func (r *Room) RequestJoin(conn *PeerConn) PlayerID {
	p := &Peer{ID: PlayerID(uuid.NewString()), JoinedAt: time.Now(), Conn: conn}
	select {
	case r.joinChan <- p:
	case <-r.done:
		conn.Close()
	}
	return p.ID
}

// OnMessage 入站原始数据：解码失败的直接丢弃并记录，不影响房间
func (r *Room) OnMessage(pid PlayerID, payload []byte) {
	msg, err := netsync.DecodeClient(payload)
	if err != nil {
		r.metrics.IncDecodeErrors()
		r.log.Warn("dropping malformed message", zap.String("peer", string(pid)), zap.Error(err))
		return
	}
	r.metrics.IncIn()
	// 可靠通道不能丢：阻塞读协程，让背压回到 TCP
	select {
	case r.inputChan <- Inbound{PlayerID: pid, Msg: msg}:
	case <-r.done:
	}
}

// RequestLeave 请求在 Tick 线程中移除玩家，避免并发改动房间状态
func (r *Room) RequestLeave(pid PlayerID) {
	select {
	case r.leaveChan <- pid:
	case <-r.done:
	}
}

// Do 在 Tick 线程执行 fn（管理接口用）；local 为主机玩家 ID
func (r *Room) Do(ctx context.Context, fn func(w *sim.World, local string) error) error {
	// 关闭后 intents 仍有缓冲，不先检查的话 select 可能选中发送
	select {
	case <-r.done:
		return ErrRoomClosed
	default:
	}
	it := intent{fn: fn, reply: make(chan error, 1)}
	select {
	case r.intents <- it:
	case <-r.done:
		return ErrRoomClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-it.reply:
		return err
	case <-r.done:
		return ErrRoomClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Save 在 Tick 线程里取当前配置与回合数，组成存档
func (r *Room) Save(ctx context.Context) (sim.SaveGame, error) {
	var save sim.SaveGame
	err := r.Do(ctx, func(w *sim.World, _ string) error {
		save = sim.SaveGame{Settings: w.Settings, Turn: w.TickCount()}
		if s := r.cfg.Save; s != nil {
			save.PColonizable = s.PColonizable
		}
		return nil
	})
	return save, err
}

// ProcessInputs 处理当前帧的所有入站事件（非阻塞 drain）；
// 先处理加入，保证同一帧内对端的首条消息能找到它
func (r *Room) ProcessInputs() {
	for drained := false; !drained; {
		select {
		case p := <-r.joinChan:
			r.handleJoin(p)
		default:
			drained = true
		}
	}
	for {
		select {
		case pid := <-r.leaveChan:
			r.handleLeave(pid)
		case in := <-r.inputChan:
			r.handleMessage(in)
		case it := <-r.intents:
			it.reply <- it.fn(r.world, r.hostID)
		default:
			return
		}
	}
}

func (r *Room) handleJoin(p *Peer) {
	if len(r.peers) > 0 {
		r.log.Warn("room full, rejecting peer", zap.String("peer", string(p.ID)))
		p.Conn.Close()
		return
	}
	if r.played {
		r.resetWorld()
	}
	r.peers[p.ID] = p
	r.log.Info("peer joined", zap.String("peer", string(p.ID)))
	r.setState(netsync.StateLobby)

	if s := r.cfg.Save; s != nil {
		p.send(netsync.LoadGameMessage(s.Turn, s.PColonizable), r.metrics)
	}
	r.broadcast(netsync.NPlayersMessage(len(r.peers) + 1))
	r.broadcast(netsync.StateMessage(r.state))
}

func (r *Room) handleLeave(pid PlayerID) {
	p, ok := r.peers[pid]
	if !ok {
		return
	}
	p.Conn.Close()
	delete(r.peers, pid)
	r.log.Info("peer left", zap.String("peer", string(pid)), zap.Duration("session", time.Since(p.JoinedAt)))
	r.setState(netsync.StateMenu)
	r.broadcast(netsync.StateMessage(r.state))
}

func (r *Room) handleMessage(in Inbound) {
	p, ok := r.peers[in.PlayerID]
	if !ok {
		return
	}
	switch in.Msg.Kind {
	case netsync.ClientShareColor:
		r.seat(p, in.Msg.Color)
	case netsync.ClientState:
		if !p.Seated() {
			r.log.Debug("state from unseated peer ignored", zap.String("peer", string(p.ID)))
			return
		}
		r.setState(in.Msg.State)
		r.broadcast(netsync.StateMessage(r.state))
	case netsync.ClientSpawnUnit:
		if !p.Seated() || r.state != netsync.StatePlaying {
			r.log.Debug("spawn request outside a match", zap.String("peer", string(p.ID)), zap.Stringer("state", r.state))
			return
		}
		r.metrics.IncSpawnRequests()
		if err := r.world.RequestSpawn(string(p.ID), in.Msg.Unit); err != nil {
			r.log.Warn("spawn request rejected", zap.String("peer", string(p.ID)), zap.Error(err))
		}
	}
}

// seat 对端公布颜色后开局；与主机撞色时改用配置的敌方颜色
func (r *Room) seat(p *Peer, c sim.Color) {
	if p.Seated() {
		r.log.Debug("color already shared", zap.String("peer", string(p.ID)))
		return
	}
	host := r.cfg.Settings.Color
	if c == host {
		c = r.cfg.Settings.EnemyColor
	}
	if c == host || !c.Valid() {
		for _, alt := range []sim.Color{sim.ColorRed, sim.ColorBlue, sim.ColorGreen, sim.ColorYellow} {
			if alt != host {
				c = alt
				break
			}
		}
	}
	if err := r.world.AddPlayer(sim.NewPlayer(string(p.ID), c, grid.SideRight, sim.ControllerRemote)); err != nil {
		r.log.Error("seat peer", zap.String("peer", string(p.ID)), zap.Error(err))
		p.Conn.Close()
		return
	}
	p.Color = c
	r.world.Settings.EnemyColor = c
	base := grid.TileToWorld(r.world.Map.Base(grid.SideRight))
	if _, err := r.world.SpawnBuilding(string(p.ID), sim.Castle, base, true); err != nil {
		r.log.Error("spawn peer base", zap.Error(err))
	}

	p.send(netsync.StartGameMessage(netsync.StartGame{
		ID:         string(p.ID),
		Color:      c,
		EnemyID:    r.hostID,
		EnemyColor: host,
	}), r.metrics)
	r.played = true
	r.setState(netsync.StatePlaying)
	r.broadcast(netsync.StateMessage(r.state))
	r.log.Info("match started",
		zap.String("host", r.hostID), zap.Stringer("host_color", host),
		zap.String("peer", string(p.ID)), zap.Stringer("peer_color", c))
}

// UpdateWorld 推进模拟并消费对外事件
func (r *Room) UpdateWorld(frame float64) {
	if r.state != netsync.StatePlaying {
		r.world.DrainEvents()
		return
	}
	r.world.Tick(frame)
	for _, ev := range r.world.DrainEvents() {
		if ev.Kind == sim.EventGameOver {
			r.log.Info("game over", zap.Stringer("winner", ev.Color), zap.Uint64("turn", r.world.TickCount()))
			r.setState(netsync.StateGameOver)
			r.broadcast(netsync.StateMessage(r.state))
		}
	}
}

// BroadcastStatus 给每个已入座的对端发送不含其自身颜色的快照
func (r *Room) BroadcastStatus() {
	for _, p := range r.peers {
		if !p.Seated() {
			continue
		}
		pop := netsync.BuildPopulation(r.world, p.Color, nil)
		p.send(netsync.StatusMessage(r.world.Settings.Speed, pop), r.metrics)
	}
}

func (r *Room) broadcast(m netsync.ServerMessage) {
	for _, p := range r.peers {
		p.send(m, r.metrics)
	}
}

func (r *Room) shutdown() {
	for pid, p := range r.peers {
		p.Conn.Close()
		delete(r.peers, pid)
	}
	close(r.done)
}
