package store

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"

	"github.com/potooio/herald/internal/types"
)

// MemoryStore keeps preferences and users in process. It is safe for concurrent use.
type MemoryStore struct {
	mu    sync.RWMutex
	prefs map[string]types.NotificationPreferences
	users map[string]types.User
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		prefs: make(map[string]types.NotificationPreferences),
		users: make(map[string]types.User),
	}
}

// Get implements types.PreferenceStore.
func (s *MemoryStore) Get(_ context.Context, userID string) (*types.NotificationPreferences, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.prefs[userID]
	if !ok {
		return nil, nil
	}
	p.EventTypes = maps.Clone(p.EventTypes)
	return &p, nil
}

// Update implements types.PreferenceStore.
func (s *MemoryStore) Update(_ context.Context, userID string, prefs types.NotificationPreferences) error {
	if userID == "" {
		return fmt.Errorf("user id is required")
	}
	if err := prefs.Validate(); err != nil {
		return err
	}
	prefs.EventTypes = maps.Clone(prefs.EventTypes)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs[userID] = prefs
	return nil
}

// GetUser implements types.UserDirectory.
func (s *MemoryStore) GetUser(_ context.Context, userID string) (*types.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

// PutUser implements UserWriter.
func (s *MemoryStore) PutUser(_ context.Context, u types.User) error {
	if u.ID == "" {
		return fmt.Errorf("user id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
	return nil
}

// MemoryDigestQueue keeps pending digest entries in process.
type MemoryDigestQueue struct {
	mu      sync.Mutex
	pending map[string][]types.DigestEntry
}

// NewMemoryDigestQueue creates an empty queue.
func NewMemoryDigestQueue() *MemoryDigestQueue {
	return &MemoryDigestQueue{pending: make(map[string][]types.DigestEntry)}
}

// Append implements types.DigestQueue.
func (q *MemoryDigestQueue) Append(_ context.Context, userID string, entry types.DigestEntry) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending[userID] = append(q.pending[userID], entry)
	return nil
}

// Pending implements types.DigestQueue.
func (q *MemoryDigestQueue) Pending(_ context.Context, userID string) ([]types.DigestEntry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	entries := q.pending[userID]
	if len(entries) == 0 {
		return nil, nil
	}
	out := make([]types.DigestEntry, len(entries))
	copy(out, entries)
	return out, nil
}

// Ack implements types.DigestQueue.
func (q *MemoryDigestQueue) Ack(_ context.Context, userID string, n int) error {
	if n <= 0 {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	entries := q.pending[userID]
	if n >= len(entries) {
		delete(q.pending, userID)
		return nil
	}
	rest := make([]types.DigestEntry, len(entries)-n)
	copy(rest, entries[n:])
	q.pending[userID] = rest
	return nil
}

// Users implements types.DigestQueue.
func (q *MemoryDigestQueue) Users(_ context.Context) ([]string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, 0, len(q.pending))
	for id := range q.pending {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}
