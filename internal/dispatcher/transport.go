package dispatcher

import (
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const defaultTimeout = 10 * time.Second

// ClientOptions configures the outbound HTTP client.
type ClientOptions struct {
	Timeout time.Duration
	Tracing bool
}

// NewClient builds the client used by request dispatchers. The timeout bounds a
// whole send; there are no retries.
func NewClient(opts ClientOptions) *http.Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	var rt http.RoundTripper = newTransport(timeout)
	if opts.Tracing {
		rt = otelhttp.NewTransport(rt)
	}
	return &http.Client{Transport: rt, Timeout: timeout}
}

func newTransport(timeout time.Duration) *http.Transport {
	dialer := &net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   timeout,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: timeout,
	}
}
