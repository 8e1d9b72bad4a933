package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/postboard/social-front/internal/crypto"
)

// RedisStorage persists grants and OAuth state in Redis. Unlike the memory
// and Firestore backends, state lives server-side with an EX ttl and is
// consumed with GETDEL, so multiple instances can share one connect flow.
type RedisStorage struct {
	client    *redis.Client
	encryptor crypto.Encryptor
}

// Ensure RedisStorage implements the Storage interface
var _ Storage = (*RedisStorage)(nil)

// NewRedisStorage creates a Redis-backed storage instance and verifies
// connectivity with a ping
func NewRedisStorage(ctx context.Context, addr, password string, db int, encryptor crypto.Encryptor) (*RedisStorage, error) {
	if encryptor == nil {
		return nil, fmt.Errorf("encryptor is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	return &RedisStorage{client: client, encryptor: encryptor}, nil
}

func redisGrantKey(userID, platform string) string {
	return "social-front:grant:" + userID + ":" + platform
}

func redisStateKey(nonce string) string {
	return "social-front:state:" + nonce
}

func redisStateIndexKey(userID, platform string) string {
	return "social-front:stateidx:" + userID + ":" + platform
}

// UpsertGrant stores or replaces the grant for a (user, platform) pair
func (s *RedisStorage) UpsertGrant(ctx context.Context, grant *SocialGrant) error {
	copied := *grant

	encryptedAccess, err := s.encryptor.Encrypt(copied.AccessToken)
	if err != nil {
		return fmt.Errorf("encrypting access token: %w", err)
	}
	copied.AccessToken = encryptedAccess

	if copied.RefreshToken != "" {
		encryptedRefresh, err := s.encryptor.Encrypt(copied.RefreshToken)
		if err != nil {
			return fmt.Errorf("encrypting refresh token: %w", err)
		}
		copied.RefreshToken = encryptedRefresh
	}

	data, err := json.Marshal(&copied)
	if err != nil {
		return fmt.Errorf("marshaling grant: %w", err)
	}
	if err := s.client.Set(ctx, redisGrantKey(grant.UserID, grant.Platform), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to store grant in redis: %w", err)
	}
	return nil
}

// GetGrant retrieves the grant for a (user, platform) pair
func (s *RedisStorage) GetGrant(ctx context.Context, userID, platform string) (*SocialGrant, error) {
	data, err := s.client.Get(ctx, redisGrantKey(userID, platform)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrGrantNotFound
		}
		return nil, fmt.Errorf("failed to get grant from redis: %w", err)
	}
	return s.decodeGrant(data)
}

func (s *RedisStorage) decodeGrant(data []byte) (*SocialGrant, error) {
	var grant SocialGrant
	if err := json.Unmarshal(data, &grant); err != nil {
		return nil, fmt.Errorf("unmarshaling grant: %w", err)
	}

	accessToken, err := s.encryptor.Decrypt(grant.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("decrypting access token: %w", err)
	}
	grant.AccessToken = accessToken

	if grant.RefreshToken != "" {
		refreshToken, err := s.encryptor.Decrypt(grant.RefreshToken)
		if err != nil {
			return nil, fmt.Errorf("decrypting refresh token: %w", err)
		}
		grant.RefreshToken = refreshToken
	}
	return &grant, nil
}

// DeleteGrant removes the grant for a (user, platform) pair
func (s *RedisStorage) DeleteGrant(ctx context.Context, userID, platform string) error {
	if err := s.client.Del(ctx, redisGrantKey(userID, platform)).Err(); err != nil {
		return fmt.Errorf("failed to delete grant from redis: %w", err)
	}
	return nil
}

// ListGrants returns all grants belonging to a user
func (s *RedisStorage) ListGrants(ctx context.Context, userID string) ([]*SocialGrant, error) {
	var grants []*SocialGrant

	iter := s.client.Scan(ctx, 0, redisGrantKey(userID, "*"), 100).Iterator()
	for iter.Next(ctx) {
		data, err := s.client.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue // deleted between scan and get
			}
			return nil, fmt.Errorf("failed to get grant from redis: %w", err)
		}
		grant, err := s.decodeGrant(data)
		if err != nil {
			return nil, err
		}
		grants = append(grants, grant)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan grants: %w", err)
	}
	return grants, nil
}

// StoreState stores a one-time OAuth state with TTL, replacing any unconsumed
// state for the same (user, platform)
func (s *RedisStorage) StoreState(ctx context.Context, nonce string, state *AuthState) error {
	idxKey := redisStateIndexKey(state.UserID, state.Platform)
	if prev, err := s.client.GetDel(ctx, idxKey).Result(); err == nil && prev != "" {
		s.client.Del(ctx, redisStateKey(prev))
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshaling state: %w", err)
	}
	if err := s.client.Set(ctx, redisStateKey(nonce), data, StateTTL).Err(); err != nil {
		return fmt.Errorf("failed to store state in redis: %w", err)
	}
	if err := s.client.Set(ctx, idxKey, nonce, StateTTL).Err(); err != nil {
		return fmt.Errorf("failed to store state index in redis: %w", err)
	}
	return nil
}

// ConsumeState retrieves and deletes a state atomically via GETDEL
func (s *RedisStorage) ConsumeState(ctx context.Context, nonce string) (*AuthState, error) {
	data, err := s.client.GetDel(ctx, redisStateKey(nonce)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrStateNotFound
		}
		return nil, fmt.Errorf("failed to consume state from redis: %w", err)
	}

	var state AuthState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("unmarshaling state: %w", err)
	}
	s.client.Del(ctx, redisStateIndexKey(state.UserID, state.Platform))
	return &state, nil
}

// Close closes the Redis client
func (s *RedisStorage) Close() error {
	return s.client.Close()
}
