package screen

// Manager keeps the stack of open modal screens. Only the top one receives
// input and is drawn.
type Manager struct {
	stack []Screen
}

// NewManager creates a new screen manager.
func NewManager() *Manager {
	return &Manager{}
}

// Push opens s on top of the current screen.
func (m *Manager) Push(s Screen) {
	if s == nil {
		return
	}
	m.stack = append(m.stack, s)
}

// Pop closes the top screen and returns it, or nil when nothing is open.
func (m *Manager) Pop() Screen {
	if len(m.stack) == 0 {
		return nil
	}
	top := m.stack[len(m.stack)-1]
	m.stack = m.stack[:len(m.stack)-1]
	return top
}

// Current returns the top screen, or nil if none.
func (m *Manager) Current() Screen {
	if len(m.stack) == 0 {
		return nil
	}
	return m.stack[len(m.stack)-1]
}

// IsActive returns true if a screen is displayed.
func (m *Manager) IsActive() bool {
	return len(m.stack) > 0
}

// Type returns the type of the top screen, or TypeNone.
func (m *Manager) Type() Type {
	if s := m.Current(); s != nil {
		return s.Type()
	}
	return TypeNone
}

// Replace swaps the top screen for s. A nil s closes it.
func (m *Manager) Replace(s Screen) {
	m.Pop()
	m.Push(s)
}

// Remove closes every screen for which match returns true, wherever it sits
// in the stack, and reports whether any was removed.
func (m *Manager) Remove(match func(Screen) bool) bool {
	kept := m.stack[:0]
	removed := false
	for _, s := range m.stack {
		if match(s) {
			removed = true
			continue
		}
		kept = append(kept, s)
	}
	m.stack = kept
	return removed
}

// Clear closes every screen.
func (m *Manager) Clear() {
	m.stack = m.stack[:0]
}

// Depth returns the number of open screens.
func (m *Manager) Depth() int {
	return len(m.stack)
}
