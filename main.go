package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"voxeledge/edge"
	"voxeledge/logging"
)

// voxeledge 入口：启动边缘网关。/auth 与 /game 按路由表转发到上游，
// 受保护前缀先验凭证再放行。
func main() {
	var addr, cfgPath string
	flag.StringVar(&addr, "addr", "", "listen address override, e.g. :8080")
	flag.StringVar(&cfgPath, "config", "", "optional YAML config path")
	flag.Parse()

	cfg, err := edge.LoadConfig(cfgPath)
	if err != nil {
		panic(err)
	}
	if addr != "" {
		cfg.Addr = addr
	}

	log, err := logging.Init(cfg.LogFile)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	gw, err := edge.New(cfg, log)
	if err != nil {
		log.Fatalf("gateway init: %v", err)
	}

	srv := &http.Server{Addr: cfg.Addr, Handler: gw.Handler()}

	go func() {
		log.Infof("edge listening on %s; auth → %s game → %s",
			cfg.Addr, cfg.AuthServiceURL, cfg.GameServiceURL)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	// 优雅退出（Ctrl+C）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}
