package world

import (
	"math/rand"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"voxeledge/grid"
)

const (
	// W, H 棋盘尺寸
	W = 64
	H = 64

	// TicksPerSecond 世界推进频率（20 TPS）
	TicksPerSecond = 20
)

var tickInterval = time.Duration(1000/TicksPerSecond) * time.Millisecond // 50ms

// player 棋盘上的一名玩家：位置加上自己的打包字节（占用位+颜色位）
type player struct {
	conn     *ClientConn
	row, col int
	cell     grid.Cell
}

// input 待 Tick 处理的一条指令
type input struct {
	conn *ClientConn
	cmd  grid.Command
}

// Hub 世界权威状态。全部状态只被 Tick 协程触碰，
// 外部通过通道注入加入/离开/指令，无锁。
type Hub struct {
	log *zap.SugaredLogger

	board   []grid.Cell
	players map[*ClientConn]*player

	joinChan  chan *ClientConn
	leaveChan chan *ClientConn
	inputChan chan input

	dirty bool
	rng   *rand.Rand

	playerCount atomic.Int64
	tickCount   atomic.Int64
	broadcasts  atomic.Int64

	tickerStarted bool
}

// NewHub 创建空棋盘的世界
func NewHub(log *zap.SugaredLogger) *Hub {
	return &Hub{
		log:       log,
		board:     make([]grid.Cell, W*H),
		players:   make(map[*ClientConn]*player),
		joinChan:  make(chan *ClientConn, 64),
		leaveChan: make(chan *ClientConn, 64),
		inputChan: make(chan input, 256), // 足够缓冲，避免网络读阻塞影响 Tick
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Start 启动 Tick 循环（单协程推进世界）
func (h *Hub) Start() {
	if h.tickerStarted {
		return
	}
	h.tickerStarted = true
	go func() {
		ticker := time.NewTicker(tickInterval)
		defer ticker.Stop()
		for range ticker.C {
			h.step()
		}
	}()
}

// Join 请求把连接加入世界，在 Tick 线程中生效
func (h *Hub) Join(c *ClientConn) {
	h.joinChan <- c
}

// Leave 请求移除连接。阻塞式写入保证移除一定生效。
func (h *Hub) Leave(c *ClientConn) {
	h.leaveChan <- c
}

// OnInput 注入一条指令（不立即生效，等下一次 Tick）
func (h *Hub) OnInput(c *ClientConn, cmd grid.Command) {
	// 不阻塞：拥塞时丢弃，保证 Tick 准时
	select {
	case h.inputChan <- input{conn: c, cmd: cmd}:
	default:
	}
}

// PlayerCount 当前在线人数
func (h *Hub) PlayerCount() int {
	return int(h.playerCount.Load())
}

// Stats 运行指标，/metrics 输出用
func (h *Hub) Stats() map[string]interface{} {
	return map[string]interface{}{
		"players":    h.playerCount.Load(),
		"ticks":      h.tickCount.Load(),
		"broadcasts": h.broadcasts.Load(),
	}
}

// step 一次 Tick：处理加入/离开/指令 → 有变化就广播全量矩阵
func (h *Hub) step() {
	h.tickCount.Add(1)
	h.drain()
	if h.dirty {
		h.broadcast()
		h.dirty = false
	}
}

// drain 非阻塞清空三条队列
func (h *Hub) drain() {
	for {
		select {
		case c := <-h.joinChan:
			h.applyJoin(c)
		case c := <-h.leaveChan:
			h.applyLeave(c)
		case in := <-h.inputChan:
			h.applyInput(in)
		default:
			return
		}
	}
}

func (h *Hub) applyJoin(c *ClientConn) {
	if _, ok := h.players[c]; ok {
		return
	}
	row, col := h.randomEmptyCell()
	cell := grid.WithOccupied(grid.MakeColor(
		uint8(h.rng.Intn(4)), uint8(h.rng.Intn(4)), uint8(h.rng.Intn(4))), true)
	p := &player{conn: c, row: row, col: col, cell: cell}
	h.players[c] = p
	h.board[row*W+col] = cell
	h.playerCount.Add(1)
	h.dirty = true
	h.log.Infof("player joined at (%d,%d), online=%d", row, col, len(h.players))
}

func (h *Hub) applyLeave(c *ClientConn) {
	p, ok := h.players[c]
	if !ok {
		return
	}
	h.board[p.row*W+p.col] = 0
	delete(h.players, c)
	h.playerCount.Add(-1)
	h.dirty = true
	c.Close()
	h.log.Infof("player left, online=%d", len(h.players))
}

func (h *Hub) applyInput(in input) {
	p, ok := h.players[in.conn]
	if !ok {
		return
	}
	switch in.cmd {
	case grid.CmdUp:
		h.moveBy(p, -1, 0)
	case grid.CmdDown:
		h.moveBy(p, +1, 0)
	case grid.CmdLeft:
		h.moveBy(p, 0, -1)
	case grid.CmdRight:
		h.moveBy(p, 0, +1)
	case grid.CmdCycleColor:
		p.cell = grid.CycleColor(p.cell)
		h.board[p.row*W+p.col] = p.cell
		h.dirty = true
	}
}

// moveBy 目标越界或已被占用则原地不动
func (h *Hub) moveBy(p *player, dr, dc int) {
	nr, nc := p.row+dr, p.col+dc
	if nr < 0 || nr >= H || nc < 0 || nc >= W {
		return
	}
	if grid.IsOccupied(h.board[nr*W+nc]) {
		return
	}
	h.board[p.row*W+p.col] = 0
	p.row, p.col = nr, nc
	h.board[nr*W+nc] = p.cell
	h.dirty = true
}

func (h *Hub) randomEmptyCell() (int, int) {
	for i := 0; i < 4096; i++ {
		r := h.rng.Intn(H)
		c := h.rng.Intn(W)
		if !grid.IsOccupied(h.board[r*W+c]) {
			return r, c
		}
	}
	return H / 2, W / 2
}

// broadcast 把当前棋盘整帧推给所有连接
func (h *Hub) broadcast() {
	raw, err := grid.EncodeSnapshot(&grid.Snapshot{W: W, H: H, Data: h.board})
	if err != nil {
		h.log.Errorf("encode snapshot: %v", err)
		return
	}
	for _, p := range h.players {
		p.conn.Enqueue(raw)
	}
	h.broadcasts.Add(1)
}
