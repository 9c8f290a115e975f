// Package store holds candidate context items for prompt assembly.
//
// An Item is a named piece of material (a file, a summary, a diagnostic)
// that may be included in a model request. The budget allocator selects
// from a Store's items under a token ceiling.
package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Item is one candidate piece of model context.
type Item struct {
	// Name identifies the item; a Put with an existing name replaces it.
	Name string
	// Content is the text that would enter the prompt.
	Content string
	// Relevance ranks the item against its peers, higher first.
	Relevance float64
	// UpdatedAt is the time of the last Put.
	UpdatedAt time.Time
}

// Store is a collection of candidate context items.
// Implementations must be safe for concurrent use.
type Store interface {
	// Put inserts or replaces an item by name.
	Put(ctx context.Context, item Item) error

	// Get retrieves an item by name. Returns a zero Item and false when
	// not found.
	Get(ctx context.Context, name string) (Item, bool, error)

	// Delete removes an item. No error if the name is absent.
	Delete(ctx context.Context, name string) error

	// Items returns all items ordered by relevance descending, name
	// ascending for equal relevance.
	Items(ctx context.Context) ([]Item, error)

	// Len returns the number of stored items.
	Len(ctx context.Context) (int, error)

	// Clear removes all items.
	Clear(ctx context.Context) error
}

// MemoryStore is a thread-safe in-memory Store.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]Item
	now   func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items: make(map[string]Item),
		now:   time.Now,
	}
}

// Put inserts or replaces an item by name.
func (m *MemoryStore) Put(_ context.Context, item Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	item.UpdatedAt = m.now()
	m.items[item.Name] = item
	return nil
}

// Get retrieves an item by name.
func (m *MemoryStore) Get(_ context.Context, name string) (Item, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	item, ok := m.items[name]
	return item, ok, nil
}

// Delete removes an item.
func (m *MemoryStore) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, name)
	return nil
}

// Items returns all items, most relevant first.
func (m *MemoryStore) Items(_ context.Context) ([]Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	items := make([]Item, 0, len(m.items))
	for _, item := range m.items {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Relevance != items[j].Relevance {
			return items[i].Relevance > items[j].Relevance
		}
		return items[i].Name < items[j].Name
	})
	return items, nil
}

// Len returns the number of stored items.
func (m *MemoryStore) Len(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items), nil
}

// Clear removes all items.
func (m *MemoryStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = make(map[string]Item)
	return nil
}
