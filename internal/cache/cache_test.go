package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/registryx/registryx/internal/config"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping cache integration test in short mode")
	}

	cfg := config.Load()
	c, err := New(cfg)
	if err != nil {
		t.Skipf("redis unreachable: %v", err)
	}
	return c
}

func TestTagDigestRoundTripsAndInvalidates(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	_, ok := c.TagDigest(ctx, "demo", "missing-tag")
	require.False(t, ok)

	c.SetTagDigest(ctx, "demo", "latest", "sha256:abc")
	digest, ok := c.TagDigest(ctx, "demo", "latest")
	require.True(t, ok)
	require.Equal(t, "sha256:abc", digest)

	c.InvalidateTag(ctx, "demo", "latest")
	_, ok = c.TagDigest(ctx, "demo", "latest")
	require.False(t, ok)
}

func TestBlobLengthRoundTripsAndInvalidates(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	_, ok := c.BlobLength(ctx, "sha256:missing")
	require.False(t, ok)

	c.SetBlobLength(ctx, "sha256:abc", 1024)
	length, ok := c.BlobLength(ctx, "sha256:abc")
	require.True(t, ok)
	require.EqualValues(t, 1024, length)

	c.InvalidateBlob(ctx, "sha256:abc")
	_, ok = c.BlobLength(ctx, "sha256:abc")
	require.False(t, ok)
}
