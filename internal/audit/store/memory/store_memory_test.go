package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"securevms/internal/audit"
)

func seed(t *testing.T) *InMemoryStore {
	t.Helper()
	s := NewInMemoryStore()
	entries := []audit.Entry{
		{ID: "1", Action: audit.ActionVisitorCreated, ActorName: "Kiosk", TargetName: "Sam Field",
			Details: "Visitor Sam Field checked in", Severity: audit.SeverityLow, Category: audit.CategoryVisitorManagement},
		{ID: "2", Action: audit.ActionVisitorDenied, ActorName: "Dana Ops", TargetName: "Sam Field",
			Details: "Visitor denied - Reason: unexpected", Severity: audit.SeverityMedium, Category: audit.CategoryVisitorManagement},
		{ID: "3", Action: audit.ActionVisitorBlacklisted, ActorName: "Admin", TargetName: "Robin Crew",
			Details: "Visitor blacklisted: tailgating", Severity: audit.SeverityHigh, Category: audit.CategorySecurity},
	}
	for _, e := range entries {
		require.NoError(t, s.Append(context.Background(), e))
	}
	return s
}

func TestQuery_TextMatchesActorTargetDetails(t *testing.T) {
	s := seed(t)

	byActor, err := s.Query(context.Background(), audit.Filter{Text: "dana"})
	require.NoError(t, err)
	require.Len(t, byActor, 1)
	assert.Equal(t, "2", byActor[0].ID)

	byTarget, err := s.Query(context.Background(), audit.Filter{Text: "sam field"})
	require.NoError(t, err)
	assert.Len(t, byTarget, 2)

	byDetails, err := s.Query(context.Background(), audit.Filter{Text: "TAILGATING"})
	require.NoError(t, err)
	require.Len(t, byDetails, 1)
	assert.Equal(t, "3", byDetails[0].ID)
}

func TestQuery_ExactFilersCombineAsAnd(t *testing.T) {
	s := seed(t)

	got, err := s.Query(context.Background(), audit.Filter{
		Text:     "sam",
		Severity: audit.SeverityMedium,
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, audit.ActionVisitorDenied, got[0].Action)

	none, err := s.Query(context.Background(), audit.Filter{
		Action:   audit.ActionVisitorCreated,
		Severity: audit.SeverityHigh,
	})
	require.NoError(t, err)
	assert.Empty(t, none)

	byCategory, err := s.Query(context.Background(), audit.Filter{Category: audit.CategorySecurity})
	require.NoError(t, err)
	assert.Len(t, byCategory, 1)
}

func TestAppend_PreservesInsertionOrder(t *testing.T) {
	s := seed(t)
	all, err := s.List(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "1", all[0].ID)
	assert.Equal(t, "3", all[2].ID)
	assert.Equal(t, 3, s.Len())
}
