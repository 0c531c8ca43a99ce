// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Statistics registry for system-level monitoring. Runtime instances are
// single-threaded and lock-free internally; this registry is the one place
// their snapshots cross threads, so it carries a lock.

package control

import (
	"sync"
	"time"

	"github.com/momentics/hioload-fiber/api"
)

// StatsRegistry holds the latest stats snapshot per runtime instance.
type StatsRegistry struct {
	mu        sync.RWMutex
	instances map[string]api.Stats
	updated   time.Time
}

// NewStatsRegistry creates an empty registry.
func NewStatsRegistry() *StatsRegistry {
	return &StatsRegistry{instances: make(map[string]api.Stats)}
}

// Publish stores or replaces the snapshot for one instance.
func (r *StatsRegistry) Publish(instance string, s api.Stats) {
	r.mu.Lock()
	r.instances[instance] = s
	r.updated = time.Now()
	r.mu.Unlock()
}

// Snapshot returns a copy of every instance's latest stats.
func (r *StatsRegistry) Snapshot() map[string]api.Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]api.Stats, len(r.instances))
	for k, v := range r.instances {
		out[k] = v
	}
	return out
}

// Updated returns when the registry last changed.
func (r *StatsRegistry) Updated() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.updated
}
