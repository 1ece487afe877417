package edge

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// relayStream 承接已通过鉴权的流式升级：先拨通上游，再升级调用方，
// 然后双向盲搬字节。任一侧关闭即整体拆除，两侧一起收尾。
// 鉴权只发生在握手期，流建立后不再逐消息复查。
func (g *Gateway) relayStream(w http.ResponseWriter, r *http.Request, route *Route, claims *Claims) {
	target, err := upstreamWSURL(route.Upstream, stripPrefix(r.URL.Path, route.Prefix), r.URL.RawQuery)
	if err != nil {
		writeErrorDetail(w, http.StatusBadGateway, "upstream_error", err.Error())
		return
	}

	hdr := http.Header{}
	if claims != nil {
		hdr.Set("X-User-Id", claims.Subject)
		hdr.Set("X-User-Name", claims.Username)
	}
	upConn, _, err := g.dialer.Dial(target, hdr)
	if err != nil {
		g.metrics.IncUpstreamError()
		g.log.Warnf("stream dial failed: target=%s err=%v", target, err)
		writeErrorDetail(w, http.StatusBadGateway, "upstream_error", err.Error())
		return
	}

	// 凭证经子协议送达时，握手响应要回显标记项，否则浏览器会拒绝连接
	var respHeader http.Header
	if viaSubprotocol(r) {
		respHeader = http.Header{"Sec-Websocket-Protocol": []string{subprotocolMarker}}
	}
	clientConn, err := g.upgrader.Upgrade(w, r, respHeader)
	if err != nil {
		// Upgrade 已经写了响应，这里只需放掉上游
		upConn.Close()
		return
	}

	g.metrics.StreamOpened()
	defer g.metrics.StreamClosed()
	g.log.Infof("stream open: path=%s upstream=%s", r.URL.Path, target)

	// 双向各一个搬运协程，无应用层缓冲：慢的一侧自然把背压传回快的一侧
	errc := make(chan error, 2)
	go pumpFrames(clientConn, upConn, errc)
	go pumpFrames(upConn, clientConn, errc)
	err = <-errc

	upConn.Close()
	clientConn.Close()
	if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		g.log.Infof("stream closed: path=%s err=%v", r.URL.Path, err)
	}
}

// pumpFrames 单方向搬运帧，读写任一出错即退出
func pumpFrames(src, dst *websocket.Conn, errc chan<- error) {
	for {
		mt, msg, err := src.ReadMessage()
		if err != nil {
			errc <- err
			return
		}
		dst.SetWriteDeadline(time.Now().Add(30 * time.Second))
		if err := dst.WriteMessage(mt, msg); err != nil {
			errc <- err
			return
		}
	}
}

// upstreamWSURL 把 http(s) 上游地址换算成剥掉前缀后的 ws(s) 地址
func upstreamWSURL(upstream, path, rawQuery string) (string, error) {
	u, err := url.Parse(upstream)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + path
	u.RawQuery = rawQuery
	return u.String(), nil
}
