package builder

import (
	"sync"
)

type entryKey struct {
	key  Key
	kind string
}

// Policies is the in-memory PolicyStore
type Policies struct {
	entries map[entryKey]any
	mu      sync.RWMutex
}

// NewPolicies creates an empty store
func NewPolicies() *Policies {
	return &Policies{entries: make(map[entryKey]any)}
}

// Get implements PolicyStore
func (p *Policies) Get(key Key, kind string) (any, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	v, ok := p.entries[entryKey{key: key, kind: kind}]
	return v, ok
}

// Set implements PolicyStore
func (p *Policies) Set(key Key, kind string, policy any) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.entries[entryKey{key: key, kind: kind}] = policy
}

// Delete removes the policy of kind for key
func (p *Policies) Delete(key Key, kind string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.entries, entryKey{key: key, kind: kind})
}

// Keys returns the keys holding a policy of kind
func (p *Policies) Keys(kind string) []Key {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var keys []Key
	for k := range p.entries {
		if k.kind == kind {
			keys = append(keys, k.key)
		}
	}
	return keys
}
