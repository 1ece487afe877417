package main

import (
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/viper"

	"voxeledge/authsvc"
	"voxeledge/logging"
)

// authd：参考用的身份服务。注册/登录并签发网关要校验的凭证。
// 签名密钥必须与网关一致（VOXEL_JWT_SECRET）。
func main() {
	var addr, storePath, logFile string
	flag.StringVar(&addr, "addr", ":7001", "server listen address")
	flag.StringVar(&storePath, "store", "users.json", "user store path")
	flag.StringVar(&logFile, "log", "auth.log", "log file path")
	flag.Parse()

	v := viper.New()
	v.SetDefault("jwt_secret", "dev-secret-change-me")
	v.SetEnvPrefix("VOXEL")
	v.AutomaticEnv()
	secret := []byte(v.GetString("jwt_secret"))

	log, err := logging.Init(logFile)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	store, err := authsvc.NewStore(storePath)
	if err != nil {
		log.Fatalf("user store: %v", err)
	}
	svc := authsvc.NewService(store, secret, log)
	srv := &http.Server{Addr: addr, Handler: svc.Routes()}

	go func() {
		log.Infof("auth listening on %s, store=%s", addr, storePath)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down...")
}
