package engine

import (
	"sync"
	"time"
)

type memoryEntry struct {
	engineName string
	expiresAt  time.Time
}

// EngineMemory remembers which engine last succeeded for each domain so the
// dispatcher can skip the race on repeat visits. Entries expire after the
// configured TTL.
type EngineMemory struct {
	store sync.Map // domain (string) -> *memoryEntry
	ttl   time.Duration
	done  chan struct{}
}

// NewEngineMemory creates an EngineMemory and starts a background goroutine
// that prunes expired entries.
func NewEngineMemory(ttl time.Duration) *EngineMemory {
	m := &EngineMemory{
		ttl:  ttl,
		done: make(chan struct{}),
	}
	go m.cleanupLoop()
	return m
}

// Get returns the remembered engine name for a domain, or "" if absent or expired.
func (m *EngineMemory) Get(domain string) string {
	val, ok := m.store.Load(domain)
	if !ok {
		return ""
	}
	entry := val.(*memoryEntry)
	if time.Now().After(entry.expiresAt) {
		m.store.Delete(domain)
		return ""
	}
	return entry.engineName
}

// Set records which engine succeeded for a domain.
func (m *EngineMemory) Set(domain, engineName string) {
	m.store.Store(domain, &memoryEntry{
		engineName: engineName,
		expiresAt:  time.Now().Add(m.ttl),
	})
}

// Forget removes the memory for a domain, typically after the remembered
// engine stops working.
func (m *EngineMemory) Forget(domain string) {
	m.store.Delete(domain)
}

// Stop terminates the background cleanup goroutine.
func (m *EngineMemory) Stop() {
	close(m.done)
}

func (m *EngineMemory) cleanupLoop() {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			now := time.Now()
			m.store.Range(func(key, value any) bool {
				if now.After(value.(*memoryEntry).expiresAt) {
					m.store.Delete(key)
				}
				return true
			})
		}
	}
}
