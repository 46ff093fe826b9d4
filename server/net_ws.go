package server

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sasha-s/go-deadlock"
)

const (
	reliableBuffer = 64
	writeWait      = 5 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 1 << 20 // 1MB
)

var (
	ErrPeerClosed       = errors.New("server: peer connection closed")
	ErrReliableOverflow = errors.New("server: reliable queue overflow")
)

// PeerConn 一条 WS 连接上的两个逻辑通道：
// 可靠有序（有界 FIFO，溢出即断开）与不可靠（单槽，新快照覆盖未发出的旧快照）
type PeerConn struct {
	ws       *websocket.Conn
	reliable chan []byte
	wake     chan struct{}
	done     chan struct{}

	mu     deadlock.Mutex
	latest []byte
	closed bool

	closeOnce sync.Once
}

func NewPeerConn(ws *websocket.Conn) *PeerConn {
	return &PeerConn{
		ws:       ws,
		reliable: make(chan []byte, reliableBuffer),
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// SendReliable 压入可靠队列（非阻塞）；队列满说明对端跟不上，由调用方断开
func (c *PeerConn) SendReliable(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrPeerClosed
	}
	select {
	case c.reliable <- b:
		return nil
	default:
		return ErrReliableOverflow
	}
}

// SendLatest 写入不可靠槽位；返回是否覆盖了尚未发出的旧数据
func (c *PeerConn) SendLatest(b []byte) (bool, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false, ErrPeerClosed
	}
	replaced := c.latest != nil
	c.latest = b
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
	return replaced, nil
}

func (c *PeerConn) takeLatest() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	b := c.latest
	c.latest = nil
	return b
}

// Done 连接关闭后可读
func (c *PeerConn) Done() <-chan struct{} { return c.done }

// Close 关闭底层连接；可重复调用
func (c *PeerConn) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.done)
		if c.ws != nil {
			_ = c.ws.Close()
		}
	})
}

func (c *PeerConn) write(kind int, b []byte) error {
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(kind, b)
}

// writePump 独立协程，负责把两个通道的数据写出到 WS
func (c *PeerConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer c.Close()
	for {
		select {
		case <-c.done:
			return
		case b := <-c.reliable:
			if err := c.write(websocket.BinaryMessage, b); err != nil {
				return
			}
		case <-c.wake:
			if b := c.takeLatest(); b != nil {
				if err := c.write(websocket.BinaryMessage, b); err != nil {
					return
				}
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump 读取二进制帧交给 onMessage；退出时关闭连接
func (c *PeerConn) readPump(onMessage func([]byte)) {
	defer c.Close()
	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error { return c.ws.SetReadDeadline(time.Now().Add(pongWait)) })

	for {
		kind, payload, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		if kind != websocket.BinaryMessage {
			continue
		}
		onMessage(payload)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// 局域网对战：允许所有来源
		return true
	},
}
