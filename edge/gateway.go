package edge

import (
	"errors"
	"net/http"
	"net/http/httputil"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Gateway 唯一的入口组件：按路由表分类流量，受保护的前缀先验凭证再转发，
// 负载本身一个字节都不解释。网关自身跨请求不持有任何会话状态，
// 每个请求/流独立完成一次鉴权。
type Gateway struct {
	cfg      *Config
	log      *zap.SugaredLogger
	secret   []byte
	routes   *routeTable
	proxies  map[string]*httputil.ReverseProxy
	metrics  *Metrics
	limiter  *ipLimiter
	upgrader websocket.Upgrader
	dialer   *websocket.Dialer
}

// New 按只读配置构造网关
func New(cfg *Config, log *zap.SugaredLogger) (*Gateway, error) {
	routes := []Route{
		{Prefix: "/auth", Gated: false, Upstream: cfg.AuthServiceURL},
		{Prefix: "/game", Gated: true, Upstream: cfg.GameServiceURL},
	}
	g := &Gateway{
		cfg:     cfg,
		log:     log,
		secret:  []byte(cfg.JWTSecret),
		routes:  newRouteTable(routes),
		proxies: make(map[string]*httputil.ReverseProxy, len(routes)),
		metrics: &Metrics{},
		limiter: newIPLimiter(cfg.RateLimitPerMinute),
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.UpstreamTimeout,
		},
	}
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     g.originAllowed,
	}
	for _, rt := range routes {
		p, err := newProxy(rt, cfg.UpstreamTimeout, g.metrics, log)
		if err != nil {
			return nil, err
		}
		g.proxies[rt.Prefix] = p
	}
	return g, nil
}

// Handler 返回带中间件链的 http.Handler：访问日志 → 限流 → CORS → 网关
func (g *Gateway) Handler() http.Handler {
	var h http.Handler = http.HandlerFunc(g.serve)
	h = corsMiddleware(g.cfg.CORSOrigins, h)
	h = rateLimit(g.limiter, g.metrics, h)
	h = accessLog(g.log, h)
	return h
}

// Metrics 暴露给监控端点
func (g *Gateway) Metrics() *Metrics {
	return g.metrics
}

func (g *Gateway) serve(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/health":
		writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "service": "edge"})
		return
	case "/metrics":
		writeJSON(w, http.StatusOK, g.metrics.Snapshot())
		return
	}

	route, ok := g.routes.match(r.URL.Path)
	if !ok {
		g.metrics.IncNotFound()
		writeError(w, http.StatusNotFound, "not_found")
		return
	}

	// 受保护前缀：在任何字节到达上游之前完成鉴权，失败就地拒绝，
	// 不建上游连接
	var claims *Claims
	if route.Gated {
		tok, found := ExtractToken(r)
		if !found {
			g.metrics.IncAuthMissing()
			writeError(w, http.StatusUnauthorized, "missing_token")
			return
		}
		c, err := VerifyToken(tok, g.secret)
		if err != nil {
			g.metrics.IncAuthInvalid()
			g.log.Infof("token rejected: path=%s reason=%v", r.URL.Path, rejectKind(err))
			writeError(w, http.StatusUnauthorized, "invalid_token")
			return
		}
		claims = c
	}

	if websocket.IsWebSocketUpgrade(r) {
		g.relayStream(w, r, route, claims)
		return
	}

	g.metrics.IncRelayed()
	identityHeaders(r, claims)
	g.proxies[route.Prefix].ServeHTTP(w, r)
}

// rejectKind 把校验错误归一成日志用的短词，区分三种失败形态
func rejectKind(err error) string {
	switch {
	case errors.Is(err, ErrTokenExpired):
		return "expired"
	case errors.Is(err, ErrTokenSignature):
		return "bad_signature"
	default:
		return "malformed"
	}
}

func (g *Gateway) originAllowed(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range g.cfg.CORSOrigins {
		if o == origin || o == "*" {
			return true
		}
	}
	return false
}
