package server

import (
	"context"
	"time"

	"lanewars/netsync"
)

const (
	// TicksPerSecond 世界推进频率（20 TPS）
	TicksPerSecond = 20
)

var tickInterval = time.Duration(1000/TicksPerSecond) * time.Millisecond // 50ms

// StartTicker 启动房间的 Tick 循环（单线程推进世界）；ctx 取消后退出
func (r *Room) StartTicker(ctx context.Context) {
	if r.tickerStarted {
		return
	}
	r.tickerStarted = true
	go func() {
		ticker := time.NewTicker(tickInterval)
		defer ticker.Stop()
		defer r.shutdown()
		last := time.Now()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				// 核心循环：处理输入 → 更新世界 → 同步快照
				start := time.Now()
				r.step(now.Sub(last).Seconds())
				last = now
				r.metrics.AddTick(time.Since(start).Nanoseconds())
			}
		}
	}()
}

// step 一个 Tick；frame 为距上个 Tick 的真实秒数
func (r *Room) step(frame float64) {
	r.ProcessInputs()
	r.UpdateWorld(frame)
	seq := r.tickSeq.Add(1)
	if r.state == netsync.StatePlaying && seq%uint64(r.cfg.SyncEvery) == 0 {
		r.BroadcastStatus()
	}
}
