package tokenstore

import (
	"github.com/patrickmn/go-cache"
)

// MemoryStore keeps credentials for the lifetime of the process only.
//
// It is used for --store memory, for the portal's ephemeral mode and in
// tests. Entries never expire on their own; token validity is always
// decided from the token's claims, not from cache age.
type MemoryStore struct {
	items *cache.Cache
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items: cache.New(cache.NoExpiration, 0),
	}
}

// Name identifies the backend.
func (m *MemoryStore) Name() string {
	return "memory"
}

// Get returns a stored value.
func (m *MemoryStore) Get(key string) (string, bool) {
	v, ok := m.items.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// Set stores a value.
func (m *MemoryStore) Set(key, value string) {
	m.items.Set(key, value, cache.NoExpiration)
}

// Remove deletes a value.
func (m *MemoryStore) Remove(key string) {
	m.items.Delete(key)
}

// ClearAll removes every auth key.
func (m *MemoryStore) ClearAll() {
	for key := range m.items.Items() {
		if IsAuthKey(key) {
			m.items.Delete(key)
		}
	}
}

// Len returns the number of stored keys.
func (m *MemoryStore) Len() int {
	return m.items.ItemCount()
}

var _ Store = (*MemoryStore)(nil)
