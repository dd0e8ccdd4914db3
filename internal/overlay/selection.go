package overlay

// Selection holds at most one selected key. Selecting the current key again
// clears it, and selecting another key replaces it.
type Selection[K comparable] struct {
	current K
	set     bool
}

// Toggle applies a click on k and returns the resulting selection.
func (s *Selection[K]) Toggle(k K) (K, bool) {
	if s.set && s.current == k {
		s.Clear()
		return s.current, false
	}
	s.current, s.set = k, true
	return k, true
}

// Current returns the selected key, if any.
func (s *Selection[K]) Current() (K, bool) {
	return s.current, s.set
}

// Is reports whether k is selected.
func (s *Selection[K]) Is(k K) bool {
	return s.set && s.current == k
}

// Clear drops the selection.
func (s *Selection[K]) Clear() {
	var zero K
	s.current, s.set = zero, false
}
