package consent

import (
	"context"
	"sync"
	"time"
)

// MemoryBackend is an in-process Backend. Entries with ttl expire lazily on Get.
type MemoryBackend struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	value   string
	expires time.Time
}

// NewMemoryBackend makes an empty in-memory backend
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{entries: map[string]memoryEntry{}, now: time.Now}
}

// Get returns the value stored under the key
func (m *MemoryBackend) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key]
	if !ok || (!e.expires.IsZero() && !m.now().Before(e.expires)) {
		return "", false, nil
	}
	return e.value, true, nil
}

// Set stores the value, replacing the previous one
func (m *MemoryBackend) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := memoryEntry{value: value}
	if ttl > 0 {
		e.expires = m.now().Add(ttl)
	}
	m.entries[key] = e
	return nil
}

// Delete removes the key, missing key is not an error
func (m *MemoryBackend) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// Profiles keeps a separate MemoryBackend per profile
type Profiles struct {
	mu       sync.Mutex
	backends map[string]*MemoryBackend
}

// NewProfiles makes an empty set of per-profile memory backends
func NewProfiles() *Profiles {
	return &Profiles{backends: map[string]*MemoryBackend{}}
}

// ForProfile returns the backend of the profile, creating it on first use
func (p *Profiles) ForProfile(profileID string) Backend {
	p.mu.Lock()
	defer p.mu.Unlock()
	b, ok := p.backends[profileID]
	if !ok {
		b = NewMemoryBackend()
		p.backends[profileID] = b
	}
	return b
}
