package main

import (
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"voxeledge/logging"
	"voxeledge/world"
)

// worldd：参考用的世界服务。维护 64×64 棋盘并向所有连接整帧推送。
// 鉴权在网关完成，这个进程只应暴露在内网。
func main() {
	var addr, logFile string
	flag.StringVar(&addr, "addr", ":7002", "server listen address")
	flag.StringVar(&logFile, "log", "world.log", "log file path")
	flag.Parse()

	log, err := logging.Init(logFile)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	hub := world.NewHub(log)
	hub.Start()
	srv := &http.Server{Addr: addr, Handler: world.NewServer(hub, log).Routes()}

	go func() {
		log.Infof("world listening on %s (%dx%d board)", addr, world.W, world.H)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down...")
}
