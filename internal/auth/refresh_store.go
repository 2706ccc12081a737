package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const refreshKeyPrefix = "refresh:v1:"

// RefreshToken is the single active refresh credential of an account.
type RefreshToken struct {
	AccountID string    `json:"accountId"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// RefreshStore keeps refresh tokens keyed by account id. FindByAccount
// reports a missing or expired record as ok == false, not as an error.
type RefreshStore interface {
	Save(ctx context.Context, token RefreshToken) error
	FindByAccount(ctx context.Context, accountID string) (RefreshToken, bool, error)
	Delete(ctx context.Context, accountID string) error
}

// RedisRefreshStore stores one JSON record per account and lets Redis expire
// it together with the token.
type RedisRefreshStore struct {
	client *redis.Client
}

func NewRedisRefreshStore(client *redis.Client) *RedisRefreshStore {
	return &RedisRefreshStore{client: client}
}

func (s *RedisRefreshStore) Save(ctx context.Context, token RefreshToken) error {
	ttl := time.Until(token.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("refresh token for %s already expired", token.AccountID)
	}
	payload, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("encode refresh token: %w", err)
	}
	if err := s.client.Set(ctx, refreshKeyPrefix+token.AccountID, payload, ttl).Err(); err != nil {
		return fmt.Errorf("store refresh token: %w", err)
	}
	return nil
}

func (s *RedisRefreshStore) FindByAccount(ctx context.Context, accountID string) (RefreshToken, bool, error) {
	raw, err := s.client.Get(ctx, refreshKeyPrefix+accountID).Bytes()
	if errors.Is(err, redis.Nil) {
		return RefreshToken{}, false, nil
	}
	if err != nil {
		return RefreshToken{}, false, fmt.Errorf("load refresh token: %w", err)
	}

	var token RefreshToken
	if err := json.Unmarshal(raw, &token); err != nil {
		return RefreshToken{}, false, fmt.Errorf("decode refresh token: %w", err)
	}
	return token, true, nil
}

func (s *RedisRefreshStore) Delete(ctx context.Context, accountID string) error {
	if err := s.client.Del(ctx, refreshKeyPrefix+accountID).Err(); err != nil {
		return fmt.Errorf("delete refresh token: %w", err)
	}
	return nil
}

type memoryRefreshStore struct {
	mu     sync.RWMutex
	tokens map[string]RefreshToken
	now    func() time.Time
}

// NewMemoryRefreshStore builds an in-memory refresh token store for dev mode
// and tests.
func NewMemoryRefreshStore() RefreshStore {
	return &memoryRefreshStore{tokens: make(map[string]RefreshToken), now: time.Now}
}

func (s *memoryRefreshStore) Save(_ context.Context, token RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token.AccountID] = token
	return nil
}

func (s *memoryRefreshStore) FindByAccount(_ context.Context, accountID string) (RefreshToken, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	token, ok := s.tokens[accountID]
	if !ok || !token.ExpiresAt.After(s.now()) {
		return RefreshToken{}, false, nil
	}
	return token, true, nil
}

func (s *memoryRefreshStore) Delete(_ context.Context, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, accountID)
	return nil
}
