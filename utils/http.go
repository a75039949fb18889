package utils

import (
	"net/http"
	"time"
)

// NewHTTPClient returns a client for outbound service calls.
// The timeout bounds the whole exchange, body included.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConnsPerHost: 16,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}
