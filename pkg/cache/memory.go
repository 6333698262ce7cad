package cache

import (
	"container/list"
	"sync"
	"time"
)

// MemoryCache implementa un cache in-memory con TTL e LRU eviction.
// I valori sono opachi: il chiamante è responsabile del tipo.
type MemoryCache struct {
	mu         sync.Mutex
	entries    map[string]*list.Element
	lru        *list.List
	maxEntries int
	defaultTTL time.Duration
	stats      Stats

	done chan struct{}
}

// memoryEntry rappresenta un'entry nel cache con LRU metadata
type memoryEntry struct {
	key       string
	value     any
	fetchedAt time.Time
	expiresAt time.Time
}

// NewMemoryCache crea un nuovo cache in-memory
func NewMemoryCache(maxEntries int, defaultTTL time.Duration) *MemoryCache {
	mc := &MemoryCache{
		entries:    make(map[string]*list.Element),
		lru:        list.New(),
		maxEntries: maxEntries,
		defaultTTL: defaultTTL,
		done:       make(chan struct{}),
	}

	// Avvia il cleanup periodico
	go mc.cleanupExpired()

	return mc
}

// Get recupera un valore dal cache.
// Una chiave è fresca finché now - fetchedAt < ttl.
func (m *MemoryCache) Get(key string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	elem, exists := m.entries[key]
	if !exists {
		m.stats.Misses++
		return nil, false
	}

	entry := elem.Value.(*memoryEntry)

	// Controlla se è scaduto
	if time.Now().After(entry.expiresAt) {
		m.removeElement(elem)
		m.stats.Misses++
		return nil, false
	}

	// Aggiorna LRU (muovi in testa)
	m.lru.MoveToFront(elem)
	m.stats.Hits++

	return entry.value, true
}

// Set salva un valore nel cache
func (m *MemoryCache) Set(key string, value any, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ttl == 0 {
		ttl = m.defaultTTL
	}
	now := time.Now()

	// Se la chiave esiste già, aggiorna
	if elem, exists := m.entries[key]; exists {
		entry := elem.Value.(*memoryEntry)
		entry.value = value
		entry.fetchedAt = now
		entry.expiresAt = now.Add(ttl)
		m.lru.MoveToFront(elem)
		m.stats.Sets++
		return
	}

	// Evict se necessario
	if m.maxEntries > 0 && m.lru.Len() >= m.maxEntries {
		m.evictOldest()
	}

	entry := &memoryEntry{
		key:       key,
		value:     value,
		fetchedAt: now,
		expiresAt: now.Add(ttl),
	}

	elem := m.lru.PushFront(entry)
	m.entries[key] = elem
	m.stats.Sets++
}

// Delete rimuove un valore dal cache
func (m *MemoryCache) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if elem, exists := m.entries[key]; exists {
		m.removeElement(elem)
		m.stats.Deletes++
	}
}

// Clear svuota il cache
func (m *MemoryCache) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = make(map[string]*list.Element)
	m.lru.Init()
}

// Stats restituisce le statistiche
func (m *MemoryCache) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// Size restituisce il numero di entry nel cache
func (m *MemoryCache) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lru.Len()
}

// Close ferma il cleanup periodico
func (m *MemoryCache) Close() {
	close(m.done)
}

// evictOldest rimuove l'entry meno recentemente usata (LRU)
func (m *MemoryCache) evictOldest() {
	elem := m.lru.Back()
	if elem != nil {
		m.removeElement(elem)
		m.stats.Evicted++
	}
}

// removeElement rimuove un elemento dal cache
func (m *MemoryCache) removeElement(elem *list.Element) {
	entry := elem.Value.(*memoryEntry)
	delete(m.entries, entry.key)
	m.lru.Remove(elem)
}

// cleanupExpired rimuove periodicamente le entry scadute
func (m *MemoryCache) cleanupExpired() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
		}

		m.mu.Lock()
		now := time.Now()
		var toRemove []*list.Element

		for elem := m.lru.Back(); elem != nil; elem = elem.Prev() {
			entry := elem.Value.(*memoryEntry)
			if now.After(entry.expiresAt) {
				toRemove = append(toRemove, elem)
			}
		}

		for _, elem := range toRemove {
			m.removeElement(elem)
		}

		m.mu.Unlock()
	}
}
