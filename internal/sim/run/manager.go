package run

import "sync"

// Manager tracks live runners so transports can route calls and the
// server can interrupt everything on shutdown.
type Manager struct {
	mu   sync.Mutex
	runs map[string]*Runner
}

func NewManager() *Manager {
	return &Manager{runs: map[string]*Runner{}}
}

func (m *Manager) Add(r *Runner) {
	m.mu.Lock()
	m.runs[r.ID()] = r
	m.mu.Unlock()
}

func (m *Manager) Get(id string) (*Runner, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	return r, ok
}

func (m *Manager) Remove(id string) {
	m.mu.Lock()
	delete(m.runs, id)
	m.mu.Unlock()
}

// InterruptAll stops every live run and waits for their results.
func (m *Manager) InterruptAll() {
	m.mu.Lock()
	live := make([]*Runner, 0, len(m.runs))
	for _, r := range m.runs {
		live = append(live, r)
	}
	m.mu.Unlock()

	for _, r := range live {
		r.Interrupt()
	}
	for _, r := range live {
		<-r.Done()
	}
}
