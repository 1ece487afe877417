package edge

import (
	"sync/atomic"
)

// Metrics 记录网关运行期的关键指标（用于监控与调试）
type Metrics struct {
	Relayed        int64 // 成功转发的 HTTP 请求数
	AuthMissing    int64 // 因缺失凭证拒绝的请求数
	AuthInvalid    int64 // 因凭证非法拒绝的请求数
	UpstreamErrors int64 // 上游不可达次数
	RateLimited    int64 // 被限流拒绝的请求数
	NotFound       int64 // 未命中路由的请求数
	OpenStreams    int64 // 当前存活的双向流数
	StreamsTotal   int64 // 累计建立的双向流数
}

func (m *Metrics) IncRelayed()       { atomic.AddInt64(&m.Relayed, 1) }
func (m *Metrics) IncAuthMissing()   { atomic.AddInt64(&m.AuthMissing, 1) }
func (m *Metrics) IncAuthInvalid()   { atomic.AddInt64(&m.AuthInvalid, 1) }
func (m *Metrics) IncUpstreamError() { atomic.AddInt64(&m.UpstreamErrors, 1) }
func (m *Metrics) IncRateLimited()   { atomic.AddInt64(&m.RateLimited, 1) }
func (m *Metrics) IncNotFound()      { atomic.AddInt64(&m.NotFound, 1) }

func (m *Metrics) StreamOpened() {
	atomic.AddInt64(&m.OpenStreams, 1)
	atomic.AddInt64(&m.StreamsTotal, 1)
}

func (m *Metrics) StreamClosed() { atomic.AddInt64(&m.OpenStreams, -1) }

// Snapshot 返回只读副本，便于 HTTP 输出
func (m *Metrics) Snapshot() map[string]interface{} {
	return map[string]interface{}{
		"relayed":         atomic.LoadInt64(&m.Relayed),
		"auth_missing":    atomic.LoadInt64(&m.AuthMissing),
		"auth_invalid":    atomic.LoadInt64(&m.AuthInvalid),
		"upstream_errors": atomic.LoadInt64(&m.UpstreamErrors),
		"rate_limited":    atomic.LoadInt64(&m.RateLimited),
		"not_found":       atomic.LoadInt64(&m.NotFound),
		"open_streams":    atomic.LoadInt64(&m.OpenStreams),
		"streams_total":   atomic.LoadInt64(&m.StreamsTotal),
	}
}
