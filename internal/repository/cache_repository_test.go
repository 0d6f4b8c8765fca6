package repository

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/uthutho/admin-api/pkg/errors"
)

func TestCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil, "uthutho:admin:")
	ctx := context.Background()

	var got map[string]int
	require.ErrorIs(t, repo.Get(ctx, "pending_requests:all", &got), appErrors.ErrCacheMiss)
	assert.NoError(t, repo.Set(ctx, "pending_requests:all", map[string]int{"hubs": 1}, time.Minute))
	assert.NoError(t, repo.DeleteByPattern(ctx, "pending_requests:*"))
	assert.NoError(t, repo.Close())
}

func TestCacheRepositoryNamespacesKeys(t *testing.T) {
	repo := NewCacheRepository(nil, "uthutho:admin:")
	assert.Equal(t, "uthutho:admin:pending_requests:all", repo.key("pending_requests:all"))
	assert.Equal(t, "uthutho:admin:pending_requests:*", repo.key("pending_requests:*"))

	bare := NewCacheRepository(nil, "")
	assert.Equal(t, "pending_requests:all", bare.key("pending_requests:all"))
}

func TestCacheRepositoryRefusesNonExpiringSnapshots(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()
	repo := NewCacheRepository(client, "uthutho:admin:")

	err := repo.Set(context.Background(), "pending_requests:all", map[string]int{"hubs": 1}, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ttl must be positive")
}
