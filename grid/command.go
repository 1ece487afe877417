package grid

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Command 客户端→服务端的离散指令
type Command string

const (
	CmdUp         Command = "up"
	CmdDown       Command = "down"
	CmdLeft       Command = "left"
	CmdRight      Command = "right"
	CmdCycleColor Command = "c"
)

// ErrUnknownCommand 表示指令帧无法识别
var ErrUnknownCommand = errors.New("unknown command")

// commandFrame 指令的线上形态，单字段 JSON：{"k":"up"}
type commandFrame struct {
	K string `json:"k"`
}

// EncodeCommand 把指令编码为线上帧
func EncodeCommand(c Command) ([]byte, error) {
	return json.Marshal(commandFrame{K: string(c)})
}

// ParseCommand 解析指令帧。服务端对历史客户端宽容，
// 接受 "arrowup" 等按键别名与 "color"/"color++"。
func ParseCommand(raw []byte) (Command, error) {
	var f commandFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnknownCommand, err)
	}
	switch strings.ToLower(f.K) {
	case "up", "arrowup":
		return CmdUp, nil
	case "down", "arrowdown":
		return CmdDown, nil
	case "left", "arrowleft":
		return CmdLeft, nil
	case "right", "arrowright":
		return CmdRight, nil
	case "c", "color", "color++":
		return CmdCycleColor, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCommand, f.K)
}
