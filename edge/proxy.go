package edge

import (
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// newProxy 为一条路由构造反向代理：剥前缀、带超时、上游故障回 502。
// 网关自身绝不重试，重连是客户端的事。
func newProxy(route Route, timeout time.Duration, metrics *Metrics, log *zap.SugaredLogger) (*httputil.ReverseProxy, error) {
	target, err := url.Parse(route.Upstream)
	if err != nil {
		return nil, err
	}
	return &httputil.ReverseProxy{
		Director: func(req *http.Request) {
			req.URL.Scheme = target.Scheme
			req.URL.Host = target.Host
			req.URL.Path = stripPrefix(req.URL.Path, route.Prefix)
			req.Host = target.Host
		},
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout: timeout,
			}).DialContext,
			ResponseHeaderTimeout: timeout,
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			metrics.IncUpstreamError()
			log.Warnf("upstream error: route=%s path=%s err=%v", route.Prefix, r.URL.Path, err)
			writeErrorDetail(w, http.StatusBadGateway, "upstream_error", err.Error())
		},
	}, nil
}

// identityHeaders 把校验通过的身份写进转发请求头。
// 先清掉调用方自带的同名头，身份只能由网关注入。
func identityHeaders(r *http.Request, claims *Claims) {
	r.Header.Del("X-User-Id")
	r.Header.Del("X-User-Name")
	if claims != nil {
		r.Header.Set("X-User-Id", claims.Subject)
		r.Header.Set("X-User-Name", claims.Username)
	}
}
