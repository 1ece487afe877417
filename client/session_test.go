package client

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"voxeledge/grid"
)

// wsHarness 模拟网关的流式端点：记录升级次数、收到的指令帧，
// 并能主动推帧或掐断连接。
type wsHarness struct {
	srv      *httptest.Server
	upgrades atomic.Int64
	received chan []byte

	mu    sync.Mutex
	conns []*websocket.Conn
}

func newWSHarness(t *testing.T) *wsHarness {
	t.Helper()
	h := &wsHarness{received: make(chan []byte, 16)}
	up := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	h.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		h.upgrades.Add(1)
		h.mu.Lock()
		h.conns = append(h.conns, conn)
		h.mu.Unlock()
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			h.received <- msg
		}
	}))
	t.Cleanup(h.srv.Close)
	return h
}

func (h *wsHarness) wsURL() string {
	return "ws" + strings.TrimPrefix(h.srv.URL, "http")
}

func (h *wsHarness) send(t *testing.T, raw string) {
	t.Helper()
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.conns) == 0 {
		t.Fatal("no connection to send on")
	}
	conn := h.conns[len(h.conns)-1]
	if err := conn.WriteMessage(websocket.TextMessage, []byte(raw)); err != nil {
		t.Fatalf("harness send: %v", err)
	}
}

func (h *wsHarness) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.conns {
		c.Close()
	}
	h.conns = nil
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func newTestSession(t *testing.T, h *wsHarness) *Session {
	t.Helper()
	s := NewSession(h.wsURL(), "tok", zap.NewNop().Sugar())
	s.RetryDelay = 100 * time.Millisecond
	t.Cleanup(s.Close)
	return s
}

func validFrame() string {
	return `{"type":"matrix","w":2,"h":2,"data":[1,0,0,5]}`
}

func TestSessionConnectAndSnapshot(t *testing.T) {
	h := newWSHarness(t)
	s := newTestSession(t, h)

	s.Connect()
	waitFor(t, "open", func() bool { return s.State() == StateOpen })

	h.send(t, validFrame())
	waitFor(t, "snapshot", func() bool { return s.Snapshot() != nil })

	snap := s.Snapshot()
	if snap.W != 2 || snap.H != 2 {
		t.Fatalf("snapshot %dx%d", snap.W, snap.H)
	}
	if s.PlayerCount() != 2 {
		t.Errorf("PlayerCount = %d, want 2", s.PlayerCount())
	}
}

func TestSessionConnectIdempotent(t *testing.T) {
	h := newWSHarness(t)
	s := newTestSession(t, h)

	s.Connect()
	waitFor(t, "open", func() bool { return s.State() == StateOpen })
	s.Connect()
	s.Connect()
	time.Sleep(50 * time.Millisecond)
	if n := h.upgrades.Load(); n != 1 {
		t.Fatalf("upgrades = %d, want 1", n)
	}
}

func TestSessionSendsCommandWhileOpen(t *testing.T) {
	h := newWSHarness(t)
	s := newTestSession(t, h)

	s.Connect()
	waitFor(t, "open", func() bool { return s.State() == StateOpen })

	s.HandleKey("ArrowUp")
	s.HandleKey("d")
	s.HandleKey("c")
	s.HandleKey("x") // 未映射的键不产生任何帧

	want := []string{`{"k":"up"}`, `{"k":"right"}`, `{"k":"c"}`}
	for _, w := range want {
		select {
		case got := <-h.received:
			if string(got) != w {
				t.Fatalf("got frame %s, want %s", got, w)
			}
		case <-time.After(time.Second):
			t.Fatalf("frame %s never arrived", w)
		}
	}
	select {
	case got := <-h.received:
		t.Fatalf("unexpected extra frame %s", got)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSessionIgnoresInputWhileDisconnected(t *testing.T) {
	h := newWSHarness(t)
	s := newTestSession(t, h)

	// 从未连接：发键必须是无副作用的空操作
	s.HandleKey("w")
	if s.State() != StateDisconnected {
		t.Fatalf("state = %v", s.State())
	}
	select {
	case got := <-h.received:
		t.Fatalf("network write while disconnected: %s", got)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSessionReconnectsOnceAfterDelay(t *testing.T) {
	h := newWSHarness(t)
	s := newTestSession(t, h)

	s.Connect()
	waitFor(t, "open", func() bool { return s.State() == StateOpen })
	h.send(t, validFrame())
	waitFor(t, "snapshot", func() bool { return s.Snapshot() != nil })

	h.closeAll()
	waitFor(t, "reconnect pending", func() bool { return s.State() == StateReconnectPending })

	// 断开即清空快照，不展示陈旧状态
	if s.Snapshot() != nil {
		t.Error("stale snapshot kept after disconnect")
	}
	// 延迟未到之前不得有第二次连接
	if n := h.upgrades.Load(); n != 1 {
		t.Fatalf("reconnected before delay elapsed: upgrades = %d", n)
	}

	waitFor(t, "second connect", func() bool { return h.upgrades.Load() == 2 })
	waitFor(t, "open again", func() bool { return s.State() == StateOpen })

	// 恰好一次：不会连环触发更多
	time.Sleep(250 * time.Millisecond)
	if n := h.upgrades.Load(); n != 2 {
		t.Fatalf("upgrades = %d, want 2", n)
	}
}

func TestSessionMalformedSnapshot(t *testing.T) {
	h := newWSHarness(t)
	s := newTestSession(t, h)

	s.Connect()
	waitFor(t, "open", func() bool { return s.State() == StateOpen })
	h.send(t, validFrame())
	waitFor(t, "snapshot", func() bool { return s.Snapshot() != nil })

	// data 长度与 w*h 不符：拒帧，不得把坏数据顶进来；随后走标准重连
	h.send(t, `{"type":"matrix","w":4,"h":4,"data":[0,0,0,0,0,0,0,0,0,0,0,0,0,0,0]}`)
	waitFor(t, "teardown", func() bool { return s.State() != StateOpen })

	if snap := s.Snapshot(); snap != nil && len(snap.Data) == 15 {
		t.Fatal("malformed snapshot applied")
	}
	waitFor(t, "reconnect", func() bool { return h.upgrades.Load() == 2 })
}

func TestSessionCloseCancelsReconnect(t *testing.T) {
	h := newWSHarness(t)
	s := newTestSession(t, h)

	s.Connect()
	waitFor(t, "open", func() bool { return s.State() == StateOpen })
	h.closeAll()
	waitFor(t, "reconnect pending", func() bool { return s.State() == StateReconnectPending })

	s.Close()
	if s.State() != StateDisconnected {
		t.Fatalf("state after Close = %v", s.State())
	}
	time.Sleep(250 * time.Millisecond)
	if n := h.upgrades.Load(); n != 1 {
		t.Fatalf("reconnect fired after Close: upgrades = %d", n)
	}

	// 任意状态下重复 Close 都安全
	s.Close()
}

func TestSessionTokenInQuery(t *testing.T) {
	var gotToken atomic.Value
	up := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken.Store(r.URL.Query().Get("token"))
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.Close()
	}))
	defer srv.Close()

	s := NewSession("ws"+strings.TrimPrefix(srv.URL, "http"), "secret-tok", zap.NewNop().Sugar())
	s.RetryDelay = time.Hour
	defer s.Close()
	s.Connect()
	waitFor(t, "token seen", func() bool { return gotToken.Load() != nil })
	if gotToken.Load() != "secret-tok" {
		t.Fatalf("token = %v", gotToken.Load())
	}
}

func TestCommandForKey(t *testing.T) {
	cases := []struct {
		key  string
		want grid.Command
		ok   bool
	}{
		{"w", grid.CmdUp, true},
		{"ArrowUp", grid.CmdUp, true},
		{"S", grid.CmdDown, true},
		{"arrowleft", grid.CmdLeft, true},
		{"D", grid.CmdRight, true},
		{"c", grid.CmdCycleColor, true},
		{"Enter", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := CommandForKey(tc.key)
		if ok != tc.ok || got != tc.want {
			t.Errorf("CommandForKey(%q) = (%q, %v), want (%q, %v)", tc.key, got, ok, tc.want, tc.ok)
		}
	}
}
