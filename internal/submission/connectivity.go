package submission

import (
	"sync"

	"storefront-service/internal/util"

	"go.uber.org/zap"
)

// Monitor tracks whether the remote endpoint is known to be reachable
type Monitor struct {
	mu        sync.RWMutex
	online    bool
	listeners []func()
}

// NewMonitor creates a monitor with an initial state
func NewMonitor(online bool) *Monitor {
	return &Monitor{online: online}
}

// Online reports the last known connectivity
func (m *Monitor) Online() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// Set records the current state. Listeners registered with OnRegained run
// on every offline to online transition. Returns true if the state changed.
func (m *Monitor) Set(online bool) bool {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return false
	}
	m.online = online
	listeners := append([]func(){}, m.listeners...)
	m.mu.Unlock()

	util.GetLogger().Info("Connectivity changed", zap.Bool("online", online))

	if online {
		for _, fn := range listeners {
			fn()
		}
	}
	return true
}

// OnRegained registers fn for offline to online transitions. fn must not block.
func (m *Monitor) OnRegained(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}
