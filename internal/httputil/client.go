// Package httputil provides a tuned, pooled HTTP client shared by outbound
// ASR and LLM gateway requests.
package httputil

import (
	"net/http"
	"time"
)

// NewPooledClient creates an http.Client with connection pooling and a tuned transport.
func NewPooledClient(poolSize int, timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:          poolSize,
			MaxIdleConnsPerHost:   poolSize,
			IdleConnTimeout:       90 * time.Second,
			ResponseHeaderTimeout: 30 * time.Second,
			ForceAttemptHTTP2:     true,
		},
	}
}
