// Package session keeps guided-search conversations between requests.
package session

import (
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/TobiSchelling/GuideNaturel/internal/search"
)

// Mode is the conversation phase.
type Mode string

const (
	ModeQuestioning      Mode = "questioning"
	ModeResultsDisplayed Mode = "results_displayed"
)

// Conversation is one guided-search session.
type Conversation struct {
	ID        string
	Stage     string
	Filters   search.Filters
	Mode      Mode
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewConversation returns a conversation positioned at stage with a fresh id.
func NewConversation(stage string) *Conversation {
	now := time.Now()
	return &Conversation{
		ID:        uuid.NewString(),
		Stage:     stage,
		Mode:      ModeQuestioning,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Store holds conversations by id. Implementations must be safe for
// concurrent use; concurrent updates of one conversation are last-write-wins.
type Store interface {
	Get(id string) (*Conversation, bool)
	Set(c *Conversation)
	Delete(id string)
	Len() int
}

// MemoryStore is an in-process Store whose entries expire after a TTL of
// inactivity.
type MemoryStore struct {
	cache *cache.Cache
	ttl   time.Duration
}

// NewMemoryStore creates a store evicting conversations idle for ttl,
// sweeping expired entries every cleanupInterval.
func NewMemoryStore(ttl, cleanupInterval time.Duration) *MemoryStore {
	return &MemoryStore{cache: cache.New(ttl, cleanupInterval), ttl: ttl}
}

// Get returns a copy of the conversation so callers can mutate it freely
// before writing it back with Set.
func (s *MemoryStore) Get(id string) (*Conversation, bool) {
	v, ok := s.cache.Get(id)
	if !ok {
		return nil, false
	}
	c := v.(Conversation)
	return &c, true
}

// Set stores c and restarts its expiry.
func (s *MemoryStore) Set(c *Conversation) {
	c.UpdatedAt = time.Now()
	s.cache.Set(c.ID, *c, s.ttl)
}

func (s *MemoryStore) Delete(id string) {
	s.cache.Delete(id)
}

// Len counts stored conversations, including expired ones not yet swept.
func (s *MemoryStore) Len() int {
	return s.cache.ItemCount()
}

// OnEvicted registers fn to run when a conversation expires or is deleted.
func (s *MemoryStore) OnEvicted(fn func(id string)) {
	s.cache.OnEvicted(func(k string, _ any) { fn(k) })
}
