package client

import (
	"strings"

	"voxeledge/grid"
)

// keyCommands 按键→指令的固定映射：方向键与 WASD 等价，c 轮转颜色。
// 不在表里的按键一律忽略。
var keyCommands = map[string]grid.Command{
	"arrowup":    grid.CmdUp,
	"w":          grid.CmdUp,
	"arrowdown":  grid.CmdDown,
	"s":          grid.CmdDown,
	"arrowleft":  grid.CmdLeft,
	"a":          grid.CmdLeft,
	"arrowright": grid.CmdRight,
	"d":          grid.CmdRight,
	"c":          grid.CmdCycleColor,
}

// CommandForKey 把按键名翻译成指令，大小写不敏感
func CommandForKey(key string) (grid.Command, bool) {
	cmd, ok := keyCommands[strings.ToLower(key)]
	return cmd, ok
}
