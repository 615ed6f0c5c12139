package customHttpClient

import (
	"net/http"
	"time"

	"github.com/akolanti/docqa/internal/config"
)

// one pool shared by every outbound provider client
var customTransport = &http.Transport{
	Proxy:               http.ProxyFromEnvironment,
	MaxIdleConns:        config.MaxIdleConns,
	MaxIdleConnsPerHost: config.MaxIdleConnsPerHost,
	IdleConnTimeout:     config.IdleConnTimeout,
	ForceAttemptHTTP2:   true,
}

// New returns a client on the shared transport. A non-positive timeout
// falls back to the default request timeout.
func New(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = config.DefaultRequestTimeout
	}
	return &http.Client{Transport: customTransport, Timeout: timeout}
}
