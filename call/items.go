package call

import (
	"sort"
	"sync"
)

// Items holds values handlers share while one invocation is in flight
type Items struct {
	values map[string]any
	mu     sync.RWMutex
}

func newItems() *Items {
	return &Items{values: make(map[string]any)}
}

// Set stores a value
func (it *Items) Set(key string, value any) {
	it.mu.Lock()
	defer it.mu.Unlock()
	it.values[key] = value
}

// Get retrieves a value
func (it *Items) Get(key string) (any, bool) {
	it.mu.RLock()
	defer it.mu.RUnlock()
	value, exists := it.values[key]
	return value, exists
}

// GetString retrieves a string value
func (it *Items) GetString(key string) (string, bool) {
	value, exists := it.Get(key)
	if !exists {
		return "", false
	}
	str, ok := value.(string)
	return str, ok
}

// Delete removes a value
func (it *Items) Delete(key string) {
	it.mu.Lock()
	defer it.mu.Unlock()
	delete(it.values, key)
}

// Keys returns the stored keys in sorted order
func (it *Items) Keys() []string {
	it.mu.RLock()
	defer it.mu.RUnlock()

	keys := make([]string, 0, len(it.values))
	for k := range it.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
