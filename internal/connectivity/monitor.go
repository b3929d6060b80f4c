// Package connectivity provides the injected online/offline signal.
package connectivity

import "sync"

// Signal is the read side consumed by the tracker and the reconciler.
type Signal interface {
	Online() bool
	// Subscribe delivers every state change until cancel is called. The channel keeps
	// only the newest value when the subscriber falls behind.
	Subscribe() (<-chan bool, func())
}

// Monitor is a settable Signal.
type Monitor struct {
	mu     sync.Mutex
	online bool
	subs   map[int]chan bool
	next   int
}

var _ Signal = (*Monitor)(nil)

// NewMonitor returns a monitor in the given initial state.
func NewMonitor(online bool) *Monitor {
	return &Monitor{online: online, subs: make(map[int]chan bool)}
}

// Online reports the current state.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Set updates the state and notifies subscribers when it changed.
// It reports whether a change happened.
func (m *Monitor) Set(online bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.online == online {
		return false
	}
	m.online = online
	for _, ch := range m.subs {
		select {
		case <-ch:
		default:
		}
		ch <- online
	}
	return true
}

func (m *Monitor) Subscribe() (<-chan bool, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.next
	m.next++
	ch := make(chan bool, 1)
	m.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			delete(m.subs, id)
		})
	}
}
