package commit

import (
	"context"
	"errors"
	"time"

	"github.com/patrickmn/go-cache"
)

// ErrSessionNotFound is returned for unknown or foreign import IDs.
var ErrSessionNotFound = errors.New("import session not found")

// Registry keeps sessions in memory for a retention period. When a committed
// session is evicted its compensating action is dropped and the session
// moves to the expired state.
type Registry struct {
	cache *cache.Cache
}

// NewRegistry creates a registry retaining sessions for retention.
func NewRegistry(retention time.Duration) *Registry {
	c := cache.New(retention, retention/2+time.Second)
	c.OnEvicted(func(_ string, v interface{}) {
		if s, ok := v.(*Session); ok {
			s.Expire()
		}
	})
	return &Registry{cache: c}
}

// Put stores a session under its ID.
func (r *Registry) Put(s *Session) {
	r.cache.SetDefault(s.ID, s)
}

// Get returns the owner's session.
func (r *Registry) Get(ownerID, id string) (*Session, error) {
	v, ok := r.cache.Get(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	s := v.(*Session)
	if s.OwnerID != ownerID {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Undo runs the compensating action of the owner's import.
func (r *Registry) Undo(ctx context.Context, ownerID, id string) (*Session, error) {
	s, err := r.Get(ownerID, id)
	if err != nil {
		return nil, err
	}
	if err := s.Undo(ctx); err != nil {
		return s, err
	}
	return s, nil
}

// Expire evicts a session immediately.
func (r *Registry) Expire(id string) {
	r.cache.Delete(id)
}
