package offline

import (
	"strings"
	"sync"

	"github.com/gregjones/httpcache"
)

// Compile-time interface satisfaction check.
var _ CacheStore = (*MemoryStore)(nil)

// MemoryStore is an in-memory CacheStore built on httpcache's memory cache,
// with the key tracking needed for namespace enumeration. Used in tests and
// when the gateway runs without a cache database.
type MemoryStore struct {
	mu    sync.Mutex
	cache *httpcache.MemoryCache
	keys  map[string]bool
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		cache: httpcache.NewMemoryCache(),
		keys:  map[string]bool{},
	}
}

// Get returns the cached response bytes for key, if present.
func (m *MemoryStore) Get(key string) ([]byte, bool) {
	return m.cache.Get(key)
}

// Set stores response bytes under key.
func (m *MemoryStore) Set(key string, responseBytes []byte) {
	m.mu.Lock()
	m.keys[key] = true
	m.mu.Unlock()
	m.cache.Set(key, responseBytes)
}

// Delete removes the entry for key.
func (m *MemoryStore) Delete(key string) {
	m.mu.Lock()
	delete(m.keys, key)
	m.mu.Unlock()
	m.cache.Delete(key)
}

// Names returns the distinct cache namespaces present.
func (m *MemoryStore) Names() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := map[string]bool{}
	var names []string
	for key := range m.keys {
		name, _, ok := strings.Cut(key, "|")
		if !ok || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names, nil
}

// DropName removes every entry under the given namespace.
func (m *MemoryStore) DropName(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key := range m.keys {
		if strings.HasPrefix(key, name+"|") {
			delete(m.keys, key)
			m.cache.Delete(key)
		}
	}
	return nil
}
