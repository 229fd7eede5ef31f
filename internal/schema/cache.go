package schema

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stacklok/loresync/internal/catalog"
)

// ErrNotCached is returned when no usable entry exists for a key.
var ErrNotCached = errors.New("schema not cached")

// Key identifies a cached schema. The target id is part of the key so a
// database that was re-pointed never gets the old schema.
type Key struct {
	UserID   uuid.UUID
	Database catalog.LogicalDatabase
	TargetID string
}

// Entry is a cached schema. Entries are replaced, never mutated.
type Entry struct {
	Key      Key
	Schema   *Schema
	Source   Source
	CachedAt time.Time
}

// Cache stores schemas per user and logical database.
type Cache interface {
	// Get returns the entry for key, or ErrNotCached when there is none or
	// it was cached for a different target id.
	Get(ctx context.Context, key Key) (*Entry, error)

	// Put replaces the entry for the key's user and logical database.
	Put(ctx context.Context, entry *Entry) error

	// List returns every entry for a user ordered by logical database.
	List(ctx context.Context, userID uuid.UUID) ([]*Entry, error)
}

type slot struct {
	user uuid.UUID
	db   catalog.LogicalDatabase
}

type memoryCache struct {
	mu      sync.RWMutex
	entries map[slot]*Entry
}

// NewMemoryCache returns a process-local cache.
func NewMemoryCache() Cache {
	return &memoryCache{entries: make(map[slot]*Entry)}
}

func (m *memoryCache) Get(_ context.Context, key Key) (*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[slot{key.UserID, key.Database}]
	if !ok || e.Key.TargetID != key.TargetID {
		return nil, ErrNotCached
	}
	return e, nil
}

func (m *memoryCache) Put(_ context.Context, entry *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[slot{entry.Key.UserID, entry.Key.Database}] = entry
	return nil
}

func (m *memoryCache) List(_ context.Context, userID uuid.UUID) ([]*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Entry
	for s, e := range m.entries {
		if s.user == userID {
			out = append(out, e)
		}
	}
	sortEntries(out)
	return out, nil
}

func sortEntries(entries []*Entry) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Key.Database < entries[j].Key.Database
	})
}
