package gateway

import (
	"net"
	"net/http"
	"strings"

	"github.com/formrelay/formrelay/internal/config"
	"github.com/formrelay/formrelay/internal/normalize"
)

type Router struct {
	routes []config.Route
}

// NewRouter keeps the enabled routes in declared order.
func NewRouter(routes []config.Route) *Router {
	out := make([]config.Route, 0, len(routes))
	for _, route := range routes {
		if !route.IsEnabled() {
			continue
		}
		route.Match.Host = strings.ToLower(strings.TrimSpace(route.Match.Host))
		out = append(out, route)
	}
	return &Router{routes: out}
}

// Match returns every route whose match block accepts the request, in declared
// order. An empty match accepts everything.
func (r *Router) Match(req *http.Request) []config.Route {
	if req == nil || req.URL == nil {
		return nil
	}

	host := strings.ToLower(stripPort(req.Host))
	path := normalize.RequestPath(req.URL.EscapedPath(), 0)

	var out []config.Route
	for _, route := range r.routes {
		if route.Match.Host != "" && route.Match.Host != host {
			continue
		}
		if normalize.HasPathPrefix(path, route.Match.PathPrefix) {
			out = append(out, route)
		}
	}
	return out
}

func stripPort(hostport string) string {
	if hostport == "" {
		return ""
	}

	if host, _, err := net.SplitHostPort(hostport); err == nil {
		return host
	}

	return hostport
}
