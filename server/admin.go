package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"lanewars/grid"
	"lanewars/netsync"
	"lanewars/sim"
)

const intentTimeout = 2 * time.Second

// Session 管理接口可操作的一局：主机房间或加入方
type Session interface {
	Do(ctx context.Context, fn func(w *sim.World, local string) error) error
	Metrics() *RoomMetrics
	State() netsync.GameState
}

type resolver func(c *gin.Context) Session

type configView struct {
	Speed      float64 `json:"speed"`
	Color      string  `json:"color"`
	EnemyColor string  `json:"enemyColor"`
	Lane       string  `json:"lane"`
	Controller string  `json:"controller"`
	Turn       uint64  `json:"turn"`
	State      string  `json:"state"`
}

type configPatch struct {
	Speed      *float64 `json:"speed,omitempty"`
	Lane       *string  `json:"lane,omitempty"`
	Controller *string  `json:"controller,omitempty"`
}

func do(c *gin.Context, s Session, fn func(w *sim.World, local string) error) error {
	ctx, cancel := context.WithTimeout(c.Request.Context(), intentTimeout)
	defer cancel()
	return s.Do(ctx, fn)
}

func intentStatus(err error) int {
	switch {
	case errors.Is(err, sim.ErrQueueFull):
		return http.StatusConflict
	case errors.Is(err, sim.ErrQueueIndex):
		return http.StatusNotFound
	case errors.Is(err, ErrMatchNotStarted):
		return http.StatusConflict
	case errors.Is(err, sim.ErrUnknownPlayer), errors.Is(err, sim.ErrUnknownUnit):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, ErrRoomClosed), errors.Is(err, ErrPeerClosed):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func fail(c *gin.Context, err error) {
	c.JSON(intentStatus(err), gin.H{"error": err.Error()})
}

// getConfig GET /admin/config?room=room-1 返回当前配置
func getConfig(resolve resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		s := resolve(c)
		var view configView
		err := do(c, s, func(w *sim.World, local string) error {
			view = configView{
				Speed:      w.Settings.Speed,
				Color:      w.Settings.Color.String(),
				EnemyColor: w.Settings.EnemyColor.String(),
				Turn:       w.TickCount(),
				State:      s.State().String(),
			}
			if p, ok := w.Player(local); ok {
				view.Lane = p.Lane.String()
				view.Controller = p.Controller.String()
			}
			return nil
		})
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, view)
	}
}

// postConfig POST /admin/config?room=room-1 以 JSON 载荷更新部分字段
func postConfig(resolve resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body configPatch
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
		if body.Speed != nil && (*body.Speed <= 0 || *body.Speed > 10) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "speed must be in (0, 10]"})
			return
		}
		var lane grid.Lane
		if body.Lane != nil {
			l, err := grid.ParseLane(*body.Lane)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			lane = l
		}
		var ctrl sim.Controller
		if body.Controller != nil {
			v, err := sim.ParseController(*body.Controller)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctrl = v
		}
		err := do(c, resolve(c), func(w *sim.World, local string) error {
			if body.Speed != nil {
				w.Settings.Speed = *body.Speed
			}
			if body.Lane == nil && body.Controller == nil {
				return nil
			}
			p, ok := w.Player(local)
			if !ok {
				return sim.ErrUnknownPlayer
			}
			if body.Lane != nil {
				p.Lane = lane
			}
			if body.Controller != nil {
				p.Controller = ctrl
			}
			return nil
		})
		if err != nil {
			fail(c, err)
			return
		}
		Log.Infow("config updated", "speed", body.Speed, "lane", body.Lane, "controller", body.Controller)
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// getMetrics GET /metrics?room=room-1
func getMetrics(resolve resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		s := resolve(c)
		c.JSON(http.StatusOK, gin.H{
			"state":   s.State().String(),
			"metrics": s.Metrics().Snapshot(),
		})
	}
}

type queueRequest struct {
	Unit string `json:"unit" binding:"required"`
}

type queueItem struct {
	Unit      string  `json:"unit"`
	Remaining float64 `json:"remaining"`
}

// getQueue GET /intents/queue 本地玩家的生产队列
func getQueue(resolve resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		var items []queueItem
		err := do(c, resolve(c), func(w *sim.World, local string) error {
			p, ok := w.Player(local)
			if !ok {
				return sim.ErrUnknownPlayer
			}
			for _, q := range p.Queue.Items() {
				items = append(items, queueItem{Unit: q.Type.String(), Remaining: q.Remaining})
			}
			return nil
		})
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"queue": items})
	}
}

// postQueue POST /intents/queue {"unit":"archer"}
func postQueue(resolve resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body queueRequest
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
		t, err := sim.ParseUnitType(body.Unit)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		err = do(c, resolve(c), func(w *sim.World, local string) error {
			return w.QueueUnit(local, t)
		})
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"ok": true})
	}
}

// deleteQueued DELETE /intents/queue/:index
func deleteQueued(resolve resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		i, err := strconv.Atoi(c.Param("index"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "index must be an integer"})
			return
		}
		err = do(c, resolve(c), func(w *sim.World, local string) error {
			return w.RemoveQueued(local, i)
		})
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

type boostRequest struct {
	Boost string `json:"boost" binding:"required"`
}

// postBoost POST /intents/boost {"boost":"damage"}
func postBoost(resolve resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body boostRequest
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
		b, err := sim.ParseBoost(body.Boost)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		err = do(c, resolve(c), func(w *sim.World, local string) error {
			return w.InitiateBoost(local, b)
		})
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"ok": true})
	}
}

type buildingRequest struct {
	Type string  `json:"type" binding:"required"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Base bool    `json:"base"`
}

// postBuilding POST /intents/building {"type":"tower","x":320,"y":336}
func postBuilding(resolve resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body buildingRequest
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
		t, err := sim.ParseBuildingType(body.Type)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		var id sim.EntityID
		err = do(c, resolve(c), func(w *sim.World, local string) error {
			var err error
			id, err = w.SpawnBuilding(local, t, grid.Pos{X: body.X, Y: body.Y}, body.Base)
			return err
		})
		if err != nil {
			if intentStatus(err) == http.StatusInternalServerError {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"id": id.String()})
	}
}
