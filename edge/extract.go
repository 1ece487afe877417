package edge

import (
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
)

// subprotocolMarker WebSocket 子协议列表里凭证前的标记项。
// 浏览器发起的升级请求设不了自定义头，凭证只能走查询参数或子协议。
const subprotocolMarker = "bearer"

// tokenSource 从请求里尝试取出一个候选凭证
type tokenSource func(r *http.Request) (string, bool)

// 提取顺序固定：Authorization 头 → 查询参数 → 升级请求的子协议。
// 先命中的生效，三者皆空视为未认证，绝不当作匿名放行。
var tokenSources = []tokenSource{fromAuthHeader, fromQuery, fromSubprotocol}

// ExtractToken 按固定次序从请求中提取候选凭证
func ExtractToken(r *http.Request) (string, bool) {
	for _, src := range tokenSources {
		if tok, ok := src(r); ok {
			return tok, true
		}
	}
	return "", false
}

func fromAuthHeader(r *http.Request) (string, bool) {
	hdr := r.Header.Get("Authorization")
	if !strings.HasPrefix(hdr, "Bearer ") {
		return "", false
	}
	tok := strings.TrimSpace(hdr[len("Bearer "):])
	return tok, tok != ""
}

func fromQuery(r *http.Request) (string, bool) {
	tok := r.URL.Query().Get("token")
	return tok, tok != ""
}

func fromSubprotocol(r *http.Request) (string, bool) {
	protos := websocket.Subprotocols(r)
	for i, p := range protos {
		if p == subprotocolMarker && i+1 < len(protos) && protos[i+1] != "" {
			return protos[i+1], true
		}
	}
	return "", false
}

// viaSubprotocol 判断凭证是否经由子协议送达；是的话握手响应要回显标记项
func viaSubprotocol(r *http.Request) bool {
	if _, ok := fromAuthHeader(r); ok {
		return false
	}
	if _, ok := fromQuery(r); ok {
		return false
	}
	_, ok := fromSubprotocol(r)
	return ok
}
