package core

// ScopedDictionary is a chain of lookup frames. Lookups walk outward from
// the innermost frame. A frame may only be added to until another frame
// links to it.
type ScopedDictionary[K comparable, V any] struct {
	previous *ScopedDictionary[K, V]
	entries  map[K]V
	sealed   bool
}

// NewScopedDictionary creates a frame linked to previous (which may be nil).
// Linking seals previous.
func NewScopedDictionary[K comparable, V any](previous *ScopedDictionary[K, V]) *ScopedDictionary[K, V] {
	if previous != nil {
		previous.sealed = true
	}
	return &ScopedDictionary[K, V]{previous: previous, entries: make(map[K]V)}
}

// Add binds key in the current frame. It returns false when the frame has
// already been linked by an inner frame.
func (d *ScopedDictionary[K, V]) Add(key K, value V) bool {
	if d.sealed {
		return false
	}
	d.entries[key] = value
	return true
}

// Get looks key up from the innermost frame outward.
func (d *ScopedDictionary[K, V]) Get(key K) (V, bool) {
	for f := d; f != nil; f = f.previous {
		if v, ok := f.entries[key]; ok {
			return v, true
		}
	}
	var zero V
	return zero, false
}

// Contains reports whether key is bound in any frame.
func (d *ScopedDictionary[K, V]) Contains(key K) bool {
	_, ok := d.Get(key)
	return ok
}
