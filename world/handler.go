package world

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Server 世界服务的 HTTP/WS 入口。鉴权在网关完成，
// 这里信任转发来的身份头，只做日志用途。
type Server struct {
	hub      *Hub
	log      *zap.SugaredLogger
	upgrader websocket.Upgrader
}

func NewServer(hub *Hub, log *zap.SugaredLogger) *Server {
	return &Server{
		hub: hub,
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// 网关已经做了来源控制，这里放行
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Routes 组装世界服务的端点
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{"ok": true, "service": "game"})
	})
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, s.hub.Stats())
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, map[string]interface{}{"ok": true, "w": W, "h": H})
	})
	return mux
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnf("upgrade error: %v", err)
		return
	}
	if user := r.Header.Get("X-User-Name"); user != "" {
		s.log.Infof("stream accepted: user=%s", user)
	}

	client := NewClientConn(ws)
	s.hub.Join(client)

	go client.writePump()
	go client.readPump(s.hub)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
