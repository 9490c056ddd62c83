package workflow

import "subtide/internal/queue"

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastErr = err
}

// LastError returns the most recent processing error, if any.
func (m *Manager) LastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}

func (m *Manager) setLastItem(item *queue.Item) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if item == nil {
		m.lastItem = nil
		return
	}
	cp := *item
	m.lastItem = &cp
}

// LastItem returns a copy of the most recently updated job.
func (m *Manager) LastItem() *queue.Item {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.lastItem == nil {
		return nil
	}
	cp := *m.lastItem
	return &cp
}
