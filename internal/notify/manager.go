package notify

import (
	"context"
	"sync"

	"github.com/zawix/messages/internal/store"
)

// Manager runs one background watcher per logged-in user. Login starts a
// watcher, logout or account deletion stops it. Starting an already
// watched user restarts their watcher, which rebaselines deduplication.
type Manager struct {
	st        store.Store
	sink      Sink
	trackByID bool

	mu       sync.Mutex
	watchers map[string]*Watcher
}

func NewManager(st store.Store, sink Sink, trackByID bool) *Manager {
	return &Manager{
		st:        st,
		sink:      sink,
		trackByID: trackByID,
		watchers:  make(map[string]*Watcher),
	}
}

func (m *Manager) Start(ctx context.Context, username string) {
	m.mu.Lock()
	prev := m.watchers[username]
	w := NewWatcher(m.st, m.sink, username, m.trackByID)
	m.watchers[username] = w
	m.mu.Unlock()

	if prev != nil {
		prev.Stop()
	}
	w.Start(ctx)
}

func (m *Manager) Stop(username string) {
	m.mu.Lock()
	w := m.watchers[username]
	delete(m.watchers, username)
	m.mu.Unlock()

	if w != nil {
		w.Stop()
	}
}

func (m *Manager) StopAll() {
	m.mu.Lock()
	watchers := m.watchers
	m.watchers = make(map[string]*Watcher)
	m.mu.Unlock()

	for _, w := range watchers {
		w.Stop()
	}
}
