package logging

import "sync"

// Metrics is a coarse counter store shared by the netcode subsystems. It
// satisfies the telemetry.Metrics interface.
type Metrics struct {
	mu     sync.Mutex
	values map[string]uint64
}

func NewMetrics() *Metrics {
	return &Metrics{values: make(map[string]uint64)}
}

// Add increments a counter.
func (m *Metrics) Add(key string, delta uint64) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.values[key] += delta
	m.mu.Unlock()
}

// Store overwrites a gauge.
func (m *Metrics) Store(key string, value uint64) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.values[key] = value
	m.mu.Unlock()
}

// Snapshot copies the current values for reporting.
func (m *Metrics) Snapshot() map[string]uint64 {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]uint64, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out
}
