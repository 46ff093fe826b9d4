package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// requestLogger 每个 HTTP 请求一条 Debug 日志
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		Named("http").Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)))
	}
}

func roomParam(c *gin.Context) string {
	if id := c.Query("room"); id != "" {
		return id
	}
	return DefaultRoomID
}

func mountSession(r *gin.Engine, resolve resolver) {
	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/metrics", getMetrics(resolve))

	admin := r.Group("/admin")
	admin.GET("/config", getConfig(resolve))
	admin.POST("/config", postConfig(resolve))

	in := r.Group("/intents")
	in.GET("/queue", getQueue(resolve))
	in.POST("/queue", postQueue(resolve))
	in.DELETE("/queue/:index", deleteQueued(resolve))
	in.POST("/boost", postBoost(resolve))
	in.POST("/building", postBuilding(resolve))
}

// SetupRouter 主机：/ws 接入对端，其余为管理接口；?room= 选择房间
func SetupRouter(m *RoomManager) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())
	r.GET("/ws", HandleWS(m))
	mountSession(r, func(c *gin.Context) Session { return m.GetOrCreateRoom(roomParam(c)) })
	return r
}

// SetupClientRouter 加入方只暴露本地管理接口
func SetupClientRouter(cl *Client) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())
	mountSession(r, func(*gin.Context) Session { return cl })
	return r
}

// HandleWS 升级连接并在房间中注册对端；读循环结束即离开
func HandleWS(m *RoomManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			Log.Warnw("upgrade failed", "err", err)
			return
		}
		room := m.GetOrCreateRoom(roomParam(c))
		conn := NewPeerConn(ws)
		pid := room.RequestJoin(conn)
		Log.Infow("peer connected", "room", room.ID, "peer", pid, "remote", c.Request.RemoteAddr)

		go conn.writePump()
		conn.readPump(func(b []byte) { room.OnMessage(pid, b) })
		room.RequestLeave(pid)
	}
}
