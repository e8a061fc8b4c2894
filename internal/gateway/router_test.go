package gateway

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/formrelay/formrelay/internal/config"
)

func names(routes []config.Route) []string {
	out := make([]string, 0, len(routes))
	for _, r := range routes {
		out = append(out, r.Name)
	}
	return out
}

func TestRouterMatchKeepsDeclaredOrder(t *testing.T) {
	disabled := false
	router := NewRouter([]config.Route{
		{Name: "all"},
		{Name: "newsletter", Match: config.RouteMatch{PathPrefix: "/newsletter"}},
		{Name: "off", Enabled: &disabled},
		{Name: "contact", Match: config.RouteMatch{PathPrefix: "/contact"}},
	})

	req := &http.Request{URL: &url.URL{Path: "/newsletter/de"}, Host: "example.com"}
	got := names(router.Match(req))
	if len(got) != 2 || got[0] != "all" || got[1] != "newsletter" {
		t.Fatalf("unexpected routes %v", got)
	}
}

func TestRouterMatchHost(t *testing.T) {
	router := NewRouter([]config.Route{
		{Name: "a", Match: config.RouteMatch{Host: "Example.com", PathPrefix: "/"}},
		{Name: "b", Match: config.RouteMatch{Host: "other.example", PathPrefix: "/"}},
	})

	req := &http.Request{URL: &url.URL{Path: "/"}, Host: "example.com:8443"}
	got := names(router.Match(req))
	if len(got) != 1 || got[0] != "a" {
		t.Fatalf("expected host match a, got %v", got)
	}
}

func TestRouterNormalizesPath(t *testing.T) {
	router := NewRouter([]config.Route{
		{Name: "admin", Match: config.RouteMatch{PathPrefix: "/admin"}},
	})

	req := &http.Request{URL: &url.URL{Path: "/contact/../admin", RawPath: "/contact/%2e%2e/admin"}, Host: "example.com"}
	if got := names(router.Match(req)); len(got) != 1 {
		t.Fatalf("expected normalized path to match, got %v", got)
	}

	req = &http.Request{URL: &url.URL{Path: "/administrator"}, Host: "example.com"}
	if got := names(router.Match(req)); len(got) != 0 {
		t.Fatalf("expected segment boundary, got %v", got)
	}
}
