package lifecycle

import "sync"

// ItemLockManager serialises work on a single work item while letting
// different items proceed independently.
type ItemLockManager interface {
	Lock(itemID string) func()
	Remove(itemID string)
}

// PerItemLockManager manages one mutex per work item.
type PerItemLockManager struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewPerItemLockManager creates a new PerItemLockManager.
func NewPerItemLockManager() *PerItemLockManager {
	return &PerItemLockManager{locks: make(map[string]*sync.Mutex)}
}

func (m *PerItemLockManager) getLock(itemID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locks == nil {
		m.locks = make(map[string]*sync.Mutex)
	}
	if m.locks[itemID] == nil {
		m.locks[itemID] = &sync.Mutex{}
	}
	return m.locks[itemID]
}

// Lock acquires the lock for itemID and returns the unlock function.
func (m *PerItemLockManager) Lock(itemID string) func() {
	lock := m.getLock(itemID)
	lock.Lock()
	return lock.Unlock
}

// Remove forgets the lock for itemID. The lock must not be held.
func (m *PerItemLockManager) Remove(itemID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, itemID)
}
