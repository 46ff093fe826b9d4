package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"lanewars/server"
	"lanewars/sim"
)

type options struct {
	addr       string
	mode       string
	host       string
	room       string
	logFile    string
	console    bool
	speed      float64
	color      string
	enemyColor string
	load       string
	save       string
	localAI    bool
	syncEvery  int
}

// lanewars 入口：host 模式开房间等待对端，client 模式连接主机
func main() {
	var o options
	flag.StringVar(&o.addr, "addr", ":8080", "HTTP listen address, e.g. :8080")
	flag.StringVar(&o.mode, "mode", "host", "host or client")
	flag.StringVar(&o.host, "host", "ws://localhost:8080/ws", "host websocket URL (client mode)")
	flag.StringVar(&o.room, "room", server.DefaultRoomID, "room id")
	flag.StringVar(&o.logFile, "log", "lanewars.log", "log file path")
	flag.BoolVar(&o.console, "console", true, "also log to stderr")
	flag.Float64Var(&o.speed, "speed", 1, "game speed multiplier")
	flag.StringVar(&o.color, "color", "red", "own color")
	flag.StringVar(&o.enemyColor, "enemy-color", "blue", "color handed to the peer on conflict")
	flag.StringVar(&o.load, "load", "", "save file to start from (host mode)")
	flag.StringVar(&o.save, "save", "", "write a save file on exit (host mode)")
	flag.BoolVar(&o.localAI, "local-ai", false, "let the AI produce units for the local player")
	flag.IntVar(&o.syncEvery, "sync-every", 2, "ticks between status snapshots (host mode)")
	flag.Parse()

	if err := server.InitLogger(o.logFile, o.console); err != nil {
		panic(err)
	}
	defer server.SyncLogger()
	gin.SetMode(gin.ReleaseMode)

	settings, err := parseSettings(o)
	if err != nil {
		server.Log.Fatalf("bad flags: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch o.mode {
	case "host":
		err = runHost(ctx, o, settings)
	case "client":
		err = runClient(ctx, o, settings)
	default:
		err = errors.New("mode must be host or client")
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		server.Log.Errorw("exit", "err", err)
		server.SyncLogger()
		os.Exit(1)
	}
	server.Log.Info("Shutting down...")
}

func parseSettings(o options) (sim.Settings, error) {
	s := sim.DefaultSettings()
	s.Speed = o.speed
	c, err := sim.ParseColor(o.color)
	if err != nil {
		return s, err
	}
	e, err := sim.ParseColor(o.enemyColor)
	if err != nil {
		return s, err
	}
	s.Color, s.EnemyColor = c, e
	return s, nil
}

func runHost(ctx context.Context, o options, settings sim.Settings) error {
	cfg := server.DefaultRoomConfig()
	cfg.Settings = settings
	cfg.LocalAI = o.localAI
	cfg.SyncEvery = o.syncEvery
	if o.load != "" {
		f, err := os.Open(o.load)
		if err != nil {
			return err
		}
		save, err := sim.ReadSave(f)
		_ = f.Close()
		if err != nil {
			return err
		}
		cfg.Save = &save
		cfg.Settings.Speed = save.Settings.Speed
		server.Log.Infow("save loaded", "file", o.load, "turn", save.Turn)
	}

	// 房间不跟随信号退出：先存档再停
	roomCtx, stopRooms := context.WithCancel(context.Background())
	defer stopRooms()
	rm := server.GetRoomManager(roomCtx, cfg)
	room := rm.GetOrCreateRoom(o.room)

	srv := &http.Server{Addr: o.addr, Handler: server.SetupRouter(rm)}
	errc := make(chan error, 1)
	go func() {
		server.Log.Infof("lanewars host listening on %s, peers connect to ws://<host>%s/ws?room=%s", o.addr, o.addr, o.room)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
	}

	if o.save != "" {
		if err := writeSave(room, o.save); err != nil {
			server.Log.Warnw("save failed", "file", o.save, "err", err)
		}
	}
	stopRooms()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// writeSave 房间停止前取存档并写入文件
func writeSave(room *server.Room, path string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	save, err := room.Save(ctx)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := sim.WriteSave(f, save); err != nil {
		_ = f.Close()
		return err
	}
	server.Log.Infow("save written", "file", path, "turn", save.Turn)
	return f.Close()
}

func runClient(ctx context.Context, o options, settings sim.Settings) error {
	cl, err := server.DialClient(ctx, o.host, server.ClientConfig{Settings: settings, LocalAI: o.localAI})
	if err != nil {
		return err
	}
	srv := &http.Server{Addr: o.addr, Handler: server.SetupClientRouter(cl)}
	go func() {
		server.Log.Infof("lanewars client admin on %s", o.addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			server.Log.Warnw("admin listener", "err", err)
		}
	}()

	runErr := cl.Run(ctx)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	return runErr
}
