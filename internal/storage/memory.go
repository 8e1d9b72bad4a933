package storage

import (
	"context"
	"sync"

	gocache "github.com/patrickmn/go-cache"
)

// Ensure MemoryStorage implements the Storage interface
var _ Storage = (*MemoryStorage)(nil)

// MemoryStorage keeps grants and OAuth state in process memory. Suitable for
// development and tests; everything is lost on restart.
type MemoryStorage struct {
	mu     sync.RWMutex
	grants map[string]*SocialGrant

	stateMu    sync.Mutex     // serializes store/consume so one-time use holds
	states     *gocache.Cache // nonce -> *AuthState, TTL'd
	stateIndex *gocache.Cache // userID:platform -> nonce, enforces one in-flight state
}

// NewMemoryStorage creates a new in-memory storage instance
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		grants:     make(map[string]*SocialGrant),
		states:     gocache.New(StateTTL, StateTTL),
		stateIndex: gocache.New(StateTTL, StateTTL),
	}
}

func grantKey(userID, platform string) string {
	return userID + ":" + platform
}

// UpsertGrant stores or replaces the grant for a (user, platform) pair
func (s *MemoryStorage) UpsertGrant(_ context.Context, grant *SocialGrant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *grant
	s.grants[grantKey(grant.UserID, grant.Platform)] = &copied
	return nil
}

// GetGrant retrieves the grant for a (user, platform) pair
func (s *MemoryStorage) GetGrant(_ context.Context, userID, platform string) (*SocialGrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	grant, ok := s.grants[grantKey(userID, platform)]
	if !ok {
		return nil, ErrGrantNotFound
	}
	copied := *grant
	return &copied, nil
}

// DeleteGrant removes the grant for a (user, platform) pair. Deleting an
// absent grant is not an error, so disconnect stays idempotent.
func (s *MemoryStorage) DeleteGrant(_ context.Context, userID, platform string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.grants, grantKey(userID, platform))
	return nil
}

// ListGrants returns all grants belonging to a user
func (s *MemoryStorage) ListGrants(_ context.Context, userID string) ([]*SocialGrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var grants []*SocialGrant
	for _, grant := range s.grants {
		if grant.UserID == userID {
			copied := *grant
			grants = append(grants, &copied)
		}
	}
	return grants, nil
}

// StoreState stores a one-time OAuth state, replacing any unconsumed state
// for the same (user, platform)
func (s *MemoryStorage) StoreState(_ context.Context, nonce string, state *AuthState) error {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	idxKey := grantKey(state.UserID, state.Platform)
	if prev, ok := s.stateIndex.Get(idxKey); ok {
		s.states.Delete(prev.(string))
	}
	s.states.Set(nonce, state, StateTTL)
	s.stateIndex.Set(idxKey, nonce, StateTTL)
	return nil
}

// ConsumeState retrieves and deletes a state in one step
func (s *MemoryStorage) ConsumeState(_ context.Context, nonce string) (*AuthState, error) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	value, ok := s.states.Get(nonce)
	if !ok {
		return nil, ErrStateNotFound
	}
	s.states.Delete(nonce)

	state := value.(*AuthState)
	s.stateIndex.Delete(grantKey(state.UserID, state.Platform))
	return state, nil
}

// Close is a no-op for memory storage
func (s *MemoryStorage) Close() error {
	return nil
}
