package server

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sasha-s/go-deadlock"
	"go.uber.org/zap"

	"lanewars/grid"
	"lanewars/netsync"
	"lanewars/sim"
)

// ErrMatchNotStarted 主机尚未发来 StartGame，本地世界还不存在
var ErrMatchNotStarted = errors.New("server: match not started")

// ClientConfig 加入方配置
type ClientConfig struct {
	Settings sim.Settings
	LocalAI  bool
}

// Client 加入方：本地跑自己颜色的模拟，对方颜色由主机快照对账。
// 加入方固定在右侧
type Client struct {
	cfg     ClientConfig
	conn    *PeerConn
	metrics *RoomMetrics
	log     *zap.Logger

	inbox chan netsync.ServerMessage

	mu      deadlock.Mutex
	pending *netsync.Status // 最新快照，未处理的旧快照被覆盖

	intents chan intent

	// 以下只在 Tick 协程访问
	world   *sim.World
	recon   *netsync.Reconciler
	state   netsync.GameState
	localID string
	enemyID string
	loaded  *netsync.LoadGame

	stateView atomic.Uint32
	mapped    atomic.Int64
	nPlayers  atomic.Int64
}

// DialClient 连接主机并公布颜色
func DialClient(ctx context.Context, url string, cfg ClientConfig) (*Client, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	log := Named("client")
	c := &Client{
		cfg:     cfg,
		conn:    NewPeerConn(ws),
		metrics: &RoomMetrics{},
		log:     log,
		inbox:   make(chan netsync.ServerMessage, 256),
		intents: make(chan intent, 64),
		recon:   netsync.NewReconciler(log.Named("reconcile")),
		state:   netsync.StateMenu,
	}
	go c.conn.writePump()
	go c.conn.readPump(c.onPayload)

	if err := c.send(netsync.ShareColor(cfg.Settings.Color)); err != nil {
		c.conn.Close()
		return nil, err
	}
	log.Info("connected", zap.String("url", url), zap.Stringer("color", cfg.Settings.Color))
	return c, nil
}

// Metrics 运行指标
func (c *Client) Metrics() *RoomMetrics { return c.metrics }

// State 当前阶段（可在任意协程读取）
func (c *Client) State() netsync.GameState { return netsync.GameState(c.stateView.Load()) }

// Mapped 当前镜像的对方实体数
func (c *Client) Mapped() int { return int(c.mapped.Load()) }

// NPlayers 主机公布的在线人数
func (c *Client) NPlayers() int { return int(c.nPlayers.Load()) }

func (c *Client) send(m netsync.ClientMessage) error {
	b, err := netsync.EncodeClient(m)
	if err != nil {
		return err
	}
	if err := c.conn.SendReliable(b); err != nil {
		if errors.Is(err, ErrReliableOverflow) {
			c.metrics.IncReliableOverflow()
			c.log.Warn("reliable queue overflow, closing connection", zap.Stringer("kind", m.Kind))
			c.conn.Close()
		}
		return fmt.Errorf("send %s: %w", m.Kind, err)
	}
	c.metrics.IncOut()
	return nil
}

// onPayload 读协程：可靠消息按序入队，Status 只保留最新一份
func (c *Client) onPayload(b []byte) {
	m, err := netsync.DecodeServer(b)
	if err != nil {
		c.metrics.IncDecodeErrors()
		c.log.Warn("dropping malformed message", zap.Error(err))
		return
	}
	c.metrics.IncIn()
	if m.Channel() == netsync.Unreliable {
		c.mu.Lock()
		replaced := c.pending != nil
		c.pending = m.Status
		c.mu.Unlock()
		if replaced {
			c.metrics.IncSnapshotsReplaced()
		}
		return
	}
	select {
	case c.inbox <- m:
	case <-c.conn.Done():
	}
}

func (c *Client) takeStatus() *netsync.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.pending
	c.pending = nil
	return st
}

// Do 在 Tick 协程执行 fn；对局开始前返回错误
func (c *Client) Do(ctx context.Context, fn func(w *sim.World, local string) error) error {
	it := intent{fn: fn, reply: make(chan error, 1)}
	select {
	case c.intents <- it:
	case <-c.conn.Done():
		return ErrPeerClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-it.reply:
		return err
	case <-c.conn.Done():
		return ErrPeerClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run Tick 循环，直到 ctx 取消或连接断开。断开不是错误：阶段回到 Menu
func (c *Client) Run(ctx context.Context) error {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			c.conn.Close()
			return ctx.Err()
		case <-c.conn.Done():
			c.setState(netsync.StateMenu)
			c.log.Warn("disconnected from host")
			return nil
		case now := <-ticker.C:
			start := time.Now()
			c.step(now.Sub(last).Seconds())
			last = now
			c.metrics.AddTick(time.Since(start).Nanoseconds())
		}
	}
}

func (c *Client) step(frame float64) {
	c.drainInbox()
	c.drainIntents()

	c.recon.BeginCycle()
	if st := c.takeStatus(); st != nil && c.world != nil {
		c.world.Settings.Speed = st.Speed
		c.recon.Apply(c.world, c.enemyID, st.Population)
		c.mapped.Store(int64(c.recon.Identities(c.enemyID).Len()))
	}
	if c.state != netsync.StatePlaying || c.world == nil {
		return
	}
	c.world.Tick(frame)
	c.forwardEvents()
}

func (c *Client) drainInbox() {
	for {
		select {
		case m := <-c.inbox:
			c.handle(m)
		default:
			return
		}
	}
}

func (c *Client) drainIntents() {
	for {
		select {
		case it := <-c.intents:
			if c.world == nil {
				it.reply <- ErrMatchNotStarted
				continue
			}
			it.reply <- it.fn(c.world, c.localID)
		default:
			return
		}
	}
}

func (c *Client) handle(m netsync.ServerMessage) {
	switch m.Kind {
	case netsync.ServerLoadGame:
		c.loaded = m.Load
		c.log.Info("host loaded a save", zap.Uint64("turn", m.Load.Turn), zap.Float64("p_colonizable", m.Load.PColonizable))
	case netsync.ServerNPlayers:
		c.nPlayers.Store(int64(m.NPlayers))
		c.log.Info("lobby", zap.Int("players", m.NPlayers))
	case netsync.ServerStartGame:
		c.start(*m.Start)
	case netsync.ServerState:
		c.setState(m.State)
	default:
		c.log.Warn("unexpected reliable message", zap.Stringer("kind", m.Kind))
	}
}

// start 按主机分配建立本地世界：自己在右侧，主机在左侧
func (c *Client) start(s netsync.StartGame) {
	settings := c.cfg.Settings
	settings.Color = s.Color
	settings.EnemyColor = s.EnemyColor
	w := sim.NewWorld(grid.Default(), sim.WithLogger(c.log), sim.WithSettings(settings))

	ctrl := sim.ControllerHuman
	if c.cfg.LocalAI {
		ctrl = sim.ControllerAI
	}
	if err := w.AddPlayer(sim.NewPlayer(s.ID, s.Color, grid.SideRight, ctrl)); err != nil {
		c.log.Error("add local player", zap.Error(err))
		return
	}
	if err := w.AddPlayer(sim.NewPlayer(s.EnemyID, s.EnemyColor, grid.SideLeft, sim.ControllerRemote)); err != nil {
		c.log.Error("add host player", zap.Error(err))
		return
	}
	if _, err := w.SpawnBuilding(s.ID, sim.Castle, grid.TileToWorld(w.Map.Base(grid.SideRight)), true); err != nil {
		c.log.Error("spawn local base", zap.Error(err))
	}
	if c.loaded != nil {
		w.SetTickCount(c.loaded.Turn)
	}

	if c.enemyID != "" {
		c.recon.Forget(c.enemyID)
	}
	c.world = w
	c.localID = s.ID
	c.enemyID = s.EnemyID
	c.log.Info("match assigned",
		zap.String("id", s.ID), zap.Stringer("color", s.Color),
		zap.String("enemy", s.EnemyID), zap.Stringer("enemy_color", s.EnemyColor))
}

// forwardEvents 本地生产完成的单位告知主机
func (c *Client) forwardEvents() {
	for _, ev := range c.world.DrainEvents() {
		switch ev.Kind {
		case sim.EventSpawnUnit:
			if ev.Player != c.localID {
				continue
			}
			if err := c.send(netsync.SpawnUnit(ev.Unit)); err != nil {
				c.log.Warn("forward spawn failed", zap.Error(err))
			}
		case sim.EventGameOver:
			c.log.Info("game over", zap.Stringer("winner", ev.Color))
		}
	}
}

func (c *Client) setState(s netsync.GameState) {
	if c.state == s {
		return
	}
	c.log.Info("state change", zap.Stringer("from", c.state), zap.Stringer("to", s))
	c.state = s
	c.stateView.Store(uint32(s))
}

// SetState 本地阶段切换（暂停/继续）并告知主机
func (c *Client) SetState(ctx context.Context, s netsync.GameState) error {
	return c.Do(ctx, func(*sim.World, string) error {
		c.setState(s)
		return c.send(netsync.ClientStateChange(s))
	})
}
