package githubapi

import (
	"crypto/tls"
	"net/http"
	"sync"
)

// MinTLSVersion is the floor enforced while a call is in flight.
const MinTLSVersion = tls.VersionTLS12

// tlsGuard raises the transport's minimum TLS version while calls are in
// flight and puts the previous value back when the last one finishes.
type tlsGuard struct {
	mu        sync.Mutex
	transport *http.Transport
	active    int
	prior     uint16
}

func newTLSGuard(transport *http.Transport) *tlsGuard {
	if transport != nil && transport.TLSClientConfig == nil {
		transport.TLSClientConfig = &tls.Config{}
	}
	return &tlsGuard{transport: transport}
}

// acquire returns the matching release func; calling it more than once is safe.
func (g *tlsGuard) acquire() func() {
	if g == nil || g.transport == nil {
		return func() {}
	}

	g.mu.Lock()
	if g.active == 0 {
		cfg := g.transport.TLSClientConfig
		g.prior = cfg.MinVersion
		if cfg.MinVersion < MinTLSVersion {
			cfg.MinVersion = MinTLSVersion
		}
	}
	g.active++
	g.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(g.release)
	}
}

func (g *tlsGuard) release() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.active--
	if g.active == 0 {
		g.transport.TLSClientConfig.MinVersion = g.prior
	}
}
