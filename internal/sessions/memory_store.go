package sessions

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

// MemoryStore keeps sessions in process memory. Sessions are lost on restart
// and are not shared between instances.
type MemoryStore struct {
	cache *cache.Cache
}

// NewMemoryStore creates an in-memory store that sweeps expired sessions every cleanup interval.
func NewMemoryStore(cleanup time.Duration) *MemoryStore {
	return &MemoryStore{cache: cache.New(cache.NoExpiration, cleanup)}
}

// Load returns a copy of the stored session.
func (m *MemoryStore) Load(_ context.Context, id string) (*Session, error) {
	v, ok := m.cache.Get(id)
	if !ok {
		return nil, ErrNoSession
	}
	s := v.(Session)
	if !s.Expiry.After(time.Now()) {
		return nil, ErrNoSession
	}
	s.Values = copyValues(s.Values)
	return &s, nil
}

// Save stores a copy of the session until its expiry.
func (m *MemoryStore) Save(_ context.Context, s *Session) error {
	ttl := time.Until(s.Expiry)
	if ttl <= 0 {
		m.cache.Delete(s.ID)
		return nil
	}
	stored := Session{ID: s.ID, Values: copyValues(s.Values), Expiry: s.Expiry}
	m.cache.Set(s.ID, stored, ttl)
	return nil
}

// Delete removes a session.
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.cache.Delete(id)
	return nil
}

// Len returns the number of stored sessions, including expired ones not yet swept.
func (m *MemoryStore) Len() int {
	return m.cache.ItemCount()
}

func copyValues(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
