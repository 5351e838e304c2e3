//go:build integration

package revocation_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"securevms/internal/token/revocation"
	"securevms/pkg/testutil/containers"
)

func TestRedis_RevokeAndCheck(t *testing.T) {
	ctx := context.Background()
	rc := containers.NewRedisContainer(t)
	list := revocation.NewRedis(rc.Client)

	revoked, err := list.IsRevoked(ctx, "unknown-jti")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, list.Revoke(ctx, "jti-1", time.Hour))
	revoked, err = list.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestRedis_EntriesLapseWithKeyTTL(t *testing.T) {
	ctx := context.Background()
	rc := containers.NewRedisContainer(t)
	list := revocation.NewRedis(rc.Client)

	require.NoError(t, list.Revoke(ctx, "jti-1", time.Second))

	revoked, err := list.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	require.True(t, revoked)

	assert.Eventually(t, func() bool {
		revoked, err := list.IsRevoked(ctx, "jti-1")
		return err == nil && !revoked
	}, 5*time.Second, 100*time.Millisecond)
}

func TestRedis_EmptyJTIIsIgnored(t *testing.T) {
	ctx := context.Background()
	rc := containers.NewRedisContainer(t)
	list := revocation.NewRedis(rc.Client)

	require.NoError(t, list.Revoke(ctx, "", time.Hour))
	revoked, err := list.IsRevoked(ctx, "")
	require.NoError(t, err)
	assert.False(t, revoked)
}
