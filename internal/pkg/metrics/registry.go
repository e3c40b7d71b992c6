package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	regMu    sync.RWMutex
	reg      prometheus.Registerer = prometheus.DefaultRegisterer
	gatherer prometheus.Gatherer   = prometheus.DefaultGatherer
)

// Registerer is where relay collectors register. Each accessor resolves it
// once, on first use.
func Registerer() prometheus.Registerer {
	regMu.RLock()
	defer regMu.RUnlock()
	return reg
}

// Gatherer is what the /metrics endpoint serves.
func Gatherer() prometheus.Gatherer {
	regMu.RLock()
	defer regMu.RUnlock()
	return gatherer
}

// UseRegistry routes collectors created afterwards to r and serves r. A nil
// registry is ignored.
func UseRegistry(r *prometheus.Registry) {
	if r == nil {
		return
	}
	regMu.Lock()
	defer regMu.Unlock()
	reg = r
	gatherer = r
}
