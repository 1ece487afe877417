package edge

import (
	"sort"
	"strings"
)

// Route 一条转发规则：URL 前缀、是否要求凭证、上游地址。
// 转发前会剥掉命中的前缀（/game/ws → 上游的 /ws）。
type Route struct {
	Prefix   string
	Gated    bool
	Upstream string
}

// routeTable 只读路由表，按前缀长度降序保证最长前缀优先
type routeTable struct {
	routes []Route
}

func newRouteTable(routes []Route) *routeTable {
	sorted := make([]Route, len(routes))
	copy(sorted, routes)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i].Prefix) > len(sorted[j].Prefix)
	})
	return &routeTable{routes: sorted}
}

// match 最长前缀匹配。/game 命中 /game 与 /game/xx，不命中 /gamer。
func (t *routeTable) match(path string) (*Route, bool) {
	for i := range t.routes {
		r := &t.routes[i]
		if path == r.Prefix || strings.HasPrefix(path, r.Prefix+"/") {
			return r, true
		}
	}
	return nil, false
}

// stripPrefix 剥掉命中的前缀，空结果归一化为 "/"
func stripPrefix(path, prefix string) string {
	rest := strings.TrimPrefix(path, prefix)
	if rest == "" || rest[0] != '/' {
		rest = "/" + rest
	}
	return rest
}
