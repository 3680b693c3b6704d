package session

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// rotateScript swaps the live token only if it matches the presented one.
var rotateScript = redis.NewScript(`
local live = redis.call('GET', KEYS[1])
if not live or live ~= ARGV[1] then
  return 0
end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

// RedisTokenStore shares anti-forgery tokens between service replicas.
type RedisTokenStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisTokenStore creates a token store backed by redis with the given ttl.
func NewRedisTokenStore(client *redis.Client, ttl time.Duration) *RedisTokenStore {
	return &RedisTokenStore{client: client, ttl: ttl}
}

// DialRedis connects to addr and verifies the connection with a ping.
func DialRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return client, nil
}

func tokenKey(sessionID string) string {
	return "csrf:" + sessionID
}

// Mint issues a fresh token for the session, replacing any previous one.
func (s *RedisTokenStore) Mint(ctx context.Context, sessionID string) (string, error) {
	token := newToken()
	if err := s.client.Set(ctx, tokenKey(sessionID), token, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("store anti-forgery token: %w", err)
	}
	return token, nil
}

// Rotate checks the presented token and replaces it with a new one.
func (s *RedisTokenStore) Rotate(ctx context.Context, sessionID, presented string) (string, error) {
	if presented == "" {
		return "", ErrTokenMismatch
	}

	next := newToken()
	swapped, err := rotateScript.Run(ctx, s.client,
		[]string{tokenKey(sessionID)},
		presented, next, s.ttl.Milliseconds(),
	).Int()
	if err != nil {
		return "", fmt.Errorf("rotate anti-forgery token: %w", err)
	}
	if swapped != 1 {
		return "", ErrTokenMismatch
	}
	return next, nil
}
