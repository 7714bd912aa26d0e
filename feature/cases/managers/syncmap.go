package managers

import "sync"

// syncMap is a small mutex-guarded map. Managers are shared across the
// worker pool during candidate construction, so every memo access must be
// serialized.
type syncMap[K comparable, V any] struct {
	mu *sync.RWMutex
	m  map[K]V
}

func newSyncMap[K comparable, V any]() syncMap[K, V] {
	return syncMap[K, V]{mu: &sync.RWMutex{}, m: make(map[K]V)}
}

func (s syncMap[K, V]) get(key K) (V, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[key]
	return v, ok
}

func (s syncMap[K, V]) put(key K, value V) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = value
}

// putIfAbsent stores value only when the key is unseen and returns the
// winning value, making add-then-fetch atomic per key.
func (s syncMap[K, V]) putIfAbsent(key K, value V) V {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.m[key]; ok {
		return existing
	}
	s.m[key] = value
	return value
}

func (s syncMap[K, V]) snapshot() map[K]V {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[K]V, len(s.m))
	for k, v := range s.m {
		out[k] = v
	}
	return out
}
