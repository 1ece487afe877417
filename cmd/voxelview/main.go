package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"voxeledge/client"
	"voxeledge/grid"
	"voxeledge/logging"
)

// voxelview：行模式的终端查看器。经网关建立同步会话，
// 周期性把棋盘画成 ASCII，stdin 每行一个指令（w/a/s/d/c）。
func main() {
	var url, token, logFile string
	flag.StringVar(&url, "url", "ws://localhost:8080/game/ws", "gateway stream endpoint")
	flag.StringVar(&token, "token", "", "bearer token from the auth service")
	flag.StringVar(&logFile, "log", "voxelview.log", "log file path")
	flag.Parse()
	if token == "" {
		fmt.Fprintln(os.Stderr, "voxelview: -token is required (login via /auth/login first)")
		os.Exit(2)
	}

	log, err := logging.Init(logFile)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	sess := client.NewSession(url, token, log)
	defer sess.Close()
	sess.Connect()

	// 渲染协程：连接指示 + 在线人数 + 棋盘
	go func() {
		for range time.Tick(500 * time.Millisecond) {
			render(sess)
		}
	}()

	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "q" || line == "quit" {
			return
		}
		sess.HandleKey(line)
	}
}

func render(sess *client.Session) {
	fmt.Print("\033[H\033[2J")
	status := "OFFLINE"
	if sess.State() == client.StateOpen {
		status = "ONLINE"
	}
	fmt.Printf("[%s] players: %d  (w/a/s/d move, c color, q quit)\n", status, sess.PlayerCount())

	snap := sess.Snapshot()
	if snap == nil {
		fmt.Println("waiting for snapshot...")
		return
	}
	var sb strings.Builder
	for row := 0; row < snap.H; row++ {
		for col := 0; col < snap.W; col++ {
			cell := snap.At(row, col)
			if grid.IsOccupied(cell) {
				r, g, b := grid.DecodeColor(cell)
				// 近似映射到 256 色终端前景
				fmt.Fprintf(&sb, "\033[38;2;%d;%d;%dm#\033[0m", r, g, b)
			} else {
				sb.WriteByte('.')
			}
		}
		sb.WriteByte('\n')
	}
	fmt.Print(sb.String())
}
