package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/facegate/internal/identity"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "descriptors:abc", key("abc"))
}

func TestNew_Unreachable(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping network test in short mode")
	}

	_, err := New("127.0.0.1:1", "", 0, time.Minute)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to redis")
}

// newTestCache connects to the Redis at FACEGATE_TEST_REDIS, skipping otherwise.
func newTestCache(t *testing.T) *DescriptorCache {
	t.Helper()

	addr := os.Getenv("FACEGATE_TEST_REDIS")
	if addr == "" {
		t.Skip("FACEGATE_TEST_REDIS not set")
	}

	c, err := New(addr, "", 0, 0)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	assert.Equal(t, DefaultTTL, c.TTL())
	return c
}

func TestDescriptorCache_RoundTrip(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	id := uuid.NewString()

	got, err := c.Get(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, got, "miss should return nil")

	set := []identity.Descriptor{{0.1, 0.2}, {0.3, 0.4}}
	require.NoError(t, c.Set(ctx, id, set))

	got, err = c.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, set, got)

	require.NoError(t, c.Invalidate(ctx, id))
	got, err = c.Get(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, got)
}
