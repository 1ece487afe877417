package grid

// Cell 单个格子的 8 位打包值。位布局与上游世界服务共享，必须保持字节级一致：
//
//	bit0        占用位（1 = 有玩家）
//	bit1        链接位（保留，当前不参与渲染）
//	bit2, bit5  R 通道低/高位
//	bit3, bit6  G 通道低/高位
//	bit4, bit7  B 通道低/高位
type Cell uint8

const (
	bitOccupied = 0
	bitLink     = 1

	bitR0, bitR1 = 2, 5
	bitG0, bitG1 = 3, 6
	bitB0, bitB1 = 4, 7
)

// levels 把 2 位通道值（0..3）映射到 8 位色阶
var levels = [4]uint8{0, 85, 170, 255}

// get2 读取 {lo, hi} 两个位组成的 2 位值，hi 是高位
func get2(c Cell, lo, hi uint) uint8 {
	return uint8((c>>hi)&1)<<1 | uint8((c>>lo)&1)
}

// set2 写入 {lo, hi} 两个位组成的 2 位值
func set2(c Cell, lo, hi uint, v uint8) Cell {
	c &^= Cell(1<<lo | 1<<hi)
	if v&1 != 0 {
		c |= Cell(1 << lo)
	}
	if v&2 != 0 {
		c |= Cell(1 << hi)
	}
	return c
}

// IsOccupied 判断占用位
func IsOccupied(c Cell) bool {
	return c&(1<<bitOccupied) != 0
}

// WithOccupied 返回设置/清除占用位后的值
func WithOccupied(c Cell, on bool) Cell {
	if on {
		return c | (1 << bitOccupied)
	}
	return c &^ (1 << bitOccupied)
}

// DecodeColor 把打包值解成 8 位每通道的颜色。未占用格子无颜色语义，
// 由调用方按背景渲染，这里只负责位运算本身。
func DecodeColor(c Cell) (r, g, b uint8) {
	return levels[get2(c, bitR0, bitR1)],
		levels[get2(c, bitG0, bitG1)],
		levels[get2(c, bitB0, bitB1)]
}

// MakeColor 用三个 2 位通道值（0..3）构造颜色位，不含占用位
func MakeColor(r, g, b uint8) Cell {
	var c Cell
	c = set2(c, bitR0, bitR1, r&3)
	c = set2(c, bitG0, bitG1, g&3)
	c = set2(c, bitB0, bitB1, b&3)
	return c
}

// CycleColor 三个通道各 +1（mod 4），其余位不变
func CycleColor(c Cell) Cell {
	c = set2(c, bitR0, bitR1, (get2(c, bitR0, bitR1)+1)&3)
	c = set2(c, bitG0, bitG1, (get2(c, bitG0, bitG1)+1)&3)
	c = set2(c, bitB0, bitB1, (get2(c, bitB0, bitB1)+1)&3)
	return c
}

// CountOccupied 统计快照里被占用的格子数，用于在线人数显示
func CountOccupied(s *Snapshot) int {
	if s == nil {
		return 0
	}
	n := 0
	for _, c := range s.Data {
		if IsOccupied(c) {
			n++
		}
	}
	return n
}
