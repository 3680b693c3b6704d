package session

import (
	"context"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runTokenStoreContract checks single-use rotation semantics.
func runTokenStoreContract(t *testing.T, store TokenStore) {
	ctx := context.Background()
	session := "session-" + strconv.FormatInt(time.Now().UnixNano(), 10)

	t.Run("RotateBeforeMint", func(t *testing.T) {
		_, err := store.Rotate(ctx, session, "anything")
		assert.ErrorIs(t, err, ErrTokenMismatch)
	})

	first, err := store.Mint(ctx, session)
	require.NoError(t, err)
	require.NotEmpty(t, first)

	t.Run("EmptyToken", func(t *testing.T) {
		_, err := store.Rotate(ctx, session, "")
		assert.ErrorIs(t, err, ErrTokenMismatch)
	})

	t.Run("WrongTokenKeepsLiveOne", func(t *testing.T) {
		_, err := store.Rotate(ctx, session, "forged")
		assert.ErrorIs(t, err, ErrTokenMismatch)
	})

	second, err := store.Rotate(ctx, session, first)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	t.Run("UsedTokenIsRejected", func(t *testing.T) {
		_, err := store.Rotate(ctx, session, first)
		assert.ErrorIs(t, err, ErrTokenMismatch)
	})

	t.Run("MintInvalidatesPrevious", func(t *testing.T) {
		fresh, err := store.Mint(ctx, session)
		require.NoError(t, err)

		_, err = store.Rotate(ctx, session, second)
		assert.ErrorIs(t, err, ErrTokenMismatch)

		_, err = store.Rotate(ctx, session, fresh)
		assert.NoError(t, err)
	})

	t.Run("SessionsAreIndependent", func(t *testing.T) {
		other, err := store.Mint(ctx, session+"-other")
		require.NoError(t, err)

		_, err = store.Rotate(ctx, session, other)
		assert.ErrorIs(t, err, ErrTokenMismatch)
	})

	t.Run("ConcurrentRotateHasOneWinner", func(t *testing.T) {
		token, err := store.Mint(ctx, session)
		require.NoError(t, err)

		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			wins int
		)
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := store.Rotate(ctx, session, token); err == nil {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, wins)
	})
}

func TestMemoryTokenStore(t *testing.T) {
	runTokenStoreContract(t, NewMemoryTokenStore(time.Hour))
}

func TestMemoryTokenStoreExpiry(t *testing.T) {
	store := NewMemoryTokenStore(time.Minute)
	now := time.Now()
	store.now = func() time.Time { return now }

	token, err := store.Mint(context.Background(), "s")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = store.Rotate(context.Background(), "s", token)
	assert.ErrorIs(t, err, ErrTokenMismatch)
}

// Integration-style test: runs only if REDIS_ADDR env is set.
func TestRedisTokenStore(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set; skipping integration test")
	}

	client, err := DialRedis(context.Background(), addr, os.Getenv("REDIS_PASSWORD"), 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	runTokenStoreContract(t, NewRedisTokenStore(client, time.Minute))
}
