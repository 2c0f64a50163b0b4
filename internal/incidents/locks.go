package incidents

import "sync"

// projectLocks serializes correlate-then-mutate per project so concurrent
// events in the same window cannot race into duplicate incidents for one
// correlation group.
type projectLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newProjectLocks() *projectLocks {
	return &projectLocks{locks: make(map[string]*sync.Mutex)}
}

// lock acquires the mutex for a project and returns its unlock func.
func (p *projectLocks) lock(projectID string) func() {
	p.mu.Lock()
	m, ok := p.locks[projectID]
	if !ok {
		m = &sync.Mutex{}
		p.locks[projectID] = m
	}
	p.mu.Unlock()

	m.Lock()
	return m.Unlock
}
