package server

import (
	"lanewars/netsync"
	"lanewars/sim"
)

// Inbound 已解码的客户端消息，在 Tick 中按到达顺序处理
type Inbound struct {
	PlayerID PlayerID
	Msg      netsync.ClientMessage
}

// intent 需要在 Tick 线程执行的管理操作（HTTP 接口 → 世界）
type intent struct {
	fn    func(w *sim.World, local string) error
	reply chan error
}
