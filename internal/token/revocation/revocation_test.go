package revocation_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"securevms/internal/token/revocation"
)

func TestInMemory_RevokeAndCheck(t *testing.T) {
	ctx := context.Background()
	list := revocation.NewInMemory()

	revoked, err := list.IsRevoked(ctx, "unknown-jti")
	require.NoError(t, err)
	assert.False(t, revoked, "unknown jti is not revoked")

	require.NoError(t, list.Revoke(ctx, "jti-1", time.Hour))
	revoked, err = list.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestInMemory_EntriesLapseAfterTTL(t *testing.T) {
	ctx := context.Background()
	list := revocation.NewInMemory()

	require.NoError(t, list.Revoke(ctx, "jti-1", time.Millisecond))
	time.Sleep(10 * time.Millisecond)

	revoked, err := list.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked, "a revocation outliving the token's expiry serves no purpose")
}

func TestInMemory_EmptyJTIIsIgnored(t *testing.T) {
	ctx := context.Background()
	list := revocation.NewInMemory()

	require.NoError(t, list.Revoke(ctx, "", time.Hour))
	revoked, err := list.IsRevoked(ctx, "")
	require.NoError(t, err)
	assert.False(t, revoked)
}
