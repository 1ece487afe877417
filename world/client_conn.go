package world

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"voxeledge/grid"
)

// ClientConn 负责发送（写）数据到客户端的轻量包装
type ClientConn struct {
	ws   *websocket.Conn
	mu   sync.Mutex
	send chan []byte
}

func NewClientConn(ws *websocket.Conn) *ClientConn {
	return &ClientConn{
		ws:   ws,
		send: make(chan []byte, 64),
	}
}

// Enqueue 将要发送的消息压入队列（非阻塞，满则丢弃最新帧；
// 反正下一帧很快就到，整帧语义下丢帧无害）
func (c *ClientConn) Enqueue(b []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.send == nil {
		return
	}
	select {
	case c.send <- b:
	default:
	}
}

// Close 关闭底层连接与发送队列
func (c *ClientConn) Close() {
	c.mu.Lock()
	if c.send != nil {
		close(c.send)
		c.send = nil
	}
	c.mu.Unlock()
	if c.ws != nil {
		_ = c.ws.Close()
	}
}

// writePump 独立协程，负责从 send 队列写出到 WS
func (c *ClientConn) writePump() {
	defer c.ws.Close()
	for msg := range c.send {
		c.ws.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

// readPump 读取客户端指令，解析后注入世界；退出时请求移除玩家
func (c *ClientConn) readPump(hub *Hub) {
	defer c.ws.Close()
	defer hub.Leave(c)
	// 不设读超时：存活与否交给传输层关闭事件
	c.ws.SetReadLimit(1 << 20) // 1MB

	for {
		_, payload, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		cmd, err := grid.ParseCommand(payload)
		if err != nil {
			continue
		}
		hub.OnInput(c, cmd)
	}
}
