package client

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"voxeledge/grid"
)

// State 同步会话的连接状态
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateOpen
	StateReconnectPending
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateReconnectPending:
		return "reconnect_pending"
	}
	return "unknown"
}

// DefaultRetryDelay 断线后的固定重连间隔。观测行为就是常量退避，
// 不带抖动不带上限；改动它会改变外部可见时序，须另行评估。
const DefaultRetryDelay = 3 * time.Second

// Session 持有一条到网关流式端点的逻辑连接：连上、收快照、发指令、
// 断了按固定间隔重连。单实例单连接，任一时刻最多挂一个重连定时器。
type Session struct {
	url        string
	token      string
	log        *zap.SugaredLogger
	dialer     *websocket.Dialer
	RetryDelay time.Duration

	mu         sync.Mutex
	state      State
	conn       *websocket.Conn
	snapshot   *grid.Snapshot
	retryTimer *time.Timer
	cancelDial context.CancelFunc
	closed     bool
	gen        uint64 // 连接代数，旧连接的回调不得影响新连接
}

// NewSession 构造会话。url 是网关的流式端点（如 ws://host/game/ws），
// 凭证走查询参数约定，升级请求设不了自定义头。
func NewSession(url, token string, log *zap.SugaredLogger) *Session {
	return &Session{
		url:        url,
		token:      token,
		log:        log,
		dialer:     &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		RetryDelay: DefaultRetryDelay,
	}
}

// Connect 发起连接。已在连接中或已连上时是幂等空操作；
// 手动调用会先取消挂着的重连定时器。
func (s *Session) Connect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connectLocked()
}

func (s *Session) connectLocked() {
	if s.closed || s.state == StateConnecting || s.state == StateOpen {
		return
	}
	s.stopTimerLocked()
	s.state = StateConnecting
	s.gen++
	gen := s.gen

	ctx, cancel := context.WithCancel(context.Background())
	s.cancelDial = cancel

	go s.dial(ctx, gen)
}

func (s *Session) dial(ctx context.Context, gen uint64) {
	conn, _, err := s.dialer.DialContext(ctx, s.url+"?token="+url.QueryEscape(s.token), nil)

	s.mu.Lock()
	if s.closed || gen != s.gen {
		s.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return
	}
	if err != nil {
		s.log.Infof("connect failed: %v", err)
		s.scheduleReconnectLocked()
		s.mu.Unlock()
		return
	}
	s.conn = conn
	s.state = StateOpen
	s.mu.Unlock()
	s.log.Infof("stream open: %s", s.url)

	go s.readLoop(conn, gen)
}

// readLoop 逐帧接收快照。到达顺序应用，每帧整体取代上一帧。
func (s *Session) readLoop(conn *websocket.Conn, gen uint64) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			s.handleDisconnect(gen)
			return
		}
		snap, err := grid.ParseSnapshot(raw)
		if err != nil {
			// 畸形快照不得污染已持有的快照；按流故障处理，走标准重连
			s.log.Warnf("snapshot rejected: %v", err)
			conn.Close()
			s.handleDisconnect(gen)
			return
		}
		s.mu.Lock()
		if s.gen == gen && s.state == StateOpen {
			s.snapshot = snap
		}
		s.mu.Unlock()
	}
}

// handleDisconnect 远端关闭或出错：清空快照（不展示陈旧状态），
// 恰好安排一次延迟重连。
func (s *Session) handleDisconnect(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || gen != s.gen {
		return
	}
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.snapshot = nil
	s.scheduleReconnectLocked()
	s.log.Infof("stream lost, retrying in %s", s.RetryDelay)
}

func (s *Session) scheduleReconnectLocked() {
	s.stopTimerLocked()
	s.state = StateReconnectPending
	s.retryTimer = time.AfterFunc(s.RetryDelay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed || s.state != StateReconnectPending {
			return
		}
		s.connectLocked()
	})
}

func (s *Session) stopTimerLocked() {
	if s.retryTimer != nil {
		s.retryTimer.Stop()
		s.retryTimer = nil
	}
}

// HandleKey 把按键翻译成指令并发送。仅在 OPEN 状态发送，
// 否则静默丢弃（不排队）。发送顺序即按键顺序，不合并不重排。
func (s *Session) HandleKey(key string) {
	cmd, ok := CommandForKey(key)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateOpen || s.conn == nil {
		return
	}
	raw, err := grid.EncodeCommand(cmd)
	if err != nil {
		return
	}
	s.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := s.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		s.log.Infof("send failed: %v", err)
	}
}

// Close 终止会话：取消在途握手、挂着的重连定时器与已开的流。
// 任何状态下调用都安全，且可重复调用。
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.gen++
	s.stopTimerLocked()
	if s.cancelDial != nil {
		s.cancelDial()
		s.cancelDial = nil
	}
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.snapshot = nil
	s.state = StateDisconnected
}

// State 当前连接状态，用于连接指示灯
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Snapshot 当前持有的快照，可能为 nil
func (s *Session) Snapshot() *grid.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

// PlayerCount 按占用位统计在线人数
func (s *Session) PlayerCount() int {
	return grid.CountOccupied(s.Snapshot())
}
