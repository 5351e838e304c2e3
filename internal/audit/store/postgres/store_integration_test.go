//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"securevms/internal/audit"
	"securevms/internal/audit/store/postgres"
	"securevms/pkg/domain"
	"securevms/pkg/testutil/containers"
)

func seedEntry(action audit.Action, actor, target, details string, sev audit.Severity) audit.Entry {
	return audit.Entry{
		ID:         uuid.NewString(),
		Timestamp:  time.Now().UTC().Truncate(time.Microsecond),
		Action:     action,
		ActorID:    "admin",
		ActorName:  actor,
		ActorRole:  domain.RoleAdmin,
		TargetName: target,
		Details:    details,
		Severity:   sev,
		Category:   audit.CategoryOf(action),
	}
}

func TestStore_AppendAndQuery(t *testing.T) {
	ctx := context.Background()
	pg := containers.NewPostgresContainer(t)

	store := postgres.New(pg.DB)
	require.NoError(t, store.EnsureSchema(ctx))

	entries := []audit.Entry{
		seedEntry(audit.ActionVisitorCheckIn, "Front Desk", "Sam Carter", "Visitor Sam Carter checked in", audit.SeverityLow),
		seedEntry(audit.ActionVisitorDenied, "Dana Ops", "Sam Carter", "Visitor Sam Carter denied - Reason: no appointment", audit.SeverityMedium),
		seedEntry(audit.ActionSystemRulesUpdated, "Admin", "", "Updated rules: max_visitors_per_host_per_day", audit.SeverityMedium),
	}
	for _, e := range entries {
		require.NoError(t, store.Append(ctx, e))
	}

	t.Run("list preserves insertion order", func(t *testing.T) {
		got, err := store.List(ctx)
		require.NoError(t, err)
		require.Len(t, got, 3)
		for i, e := range entries {
			assert.Equal(t, e.ID, got[i].ID)
			assert.Equal(t, e.Action, got[i].Action)
			assert.Equal(t, e.Details, got[i].Details)
		}
	})

	t.Run("exact filters combine as AND", func(t *testing.T) {
		got, err := store.Query(ctx, audit.Filter{
			Action:   audit.ActionVisitorDenied,
			Severity: audit.SeverityMedium,
		})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, entries[1].ID, got[0].ID)
	})

	t.Run("text filter matches case-insensitively", func(t *testing.T) {
		got, err := store.Query(ctx, audit.Filter{Text: "sam carter"})
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("no match returns empty", func(t *testing.T) {
		got, err := store.Query(ctx, audit.Filter{Text: "nobody"})
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestOpen_EnsuresSchema(t *testing.T) {
	ctx := context.Background()
	pg := containers.NewPostgresContainer(t)

	store, err := postgres.Open(ctx, pg.DSN)
	require.NoError(t, err)
	defer store.Close()

	entry := seedEntry(audit.ActionHostApproved, "Admin", "Dana Ops", "Host registration approved", audit.SeverityMedium)
	require.NoError(t, store.Append(ctx, entry))

	got, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.WithinDuration(t, entry.Timestamp, got[0].Timestamp, time.Millisecond)
}
