// Package netprobe answers "is connectivity available" with one bounded
// reachability check per call. Unreachability is an expected outcome here,
// so every failure mode (DNS, refused, timeout) becomes false, never an
// error.
package netprobe

import (
	"context"
	"io"
	"net/http"
	"time"
)

const (
	// DefaultEndpoint is a well-known, highly available no-content URL used
	// purely as a reachability target.
	DefaultEndpoint = "http://connectivitycheck.gstatic.com/generate_204"

	// DefaultTimeout bounds the whole probe including DNS and connect.
	DefaultTimeout = 2 * time.Second
)

// Probe performs single-shot connectivity checks. Nothing is cached between
// calls; callers that need freshness simply call Online again.
type Probe struct {
	client   *http.Client
	endpoint string
}

// New creates a probe against endpoint with the given timeout. Zero values
// select the defaults.
func New(endpoint string, timeout time.Duration) *Probe {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Probe{
		client:   &http.Client{Timeout: timeout},
		endpoint: endpoint,
	}
}

// Online reports whether the probe endpoint responded at all. The response
// status does not matter; receiving any HTTP response proves connectivity.
func (p *Probe) Online(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint, nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	return true
}
