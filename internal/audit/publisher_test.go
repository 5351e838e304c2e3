package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"securevms/pkg/domain"
	"securevms/pkg/requestcontext"
)

type memStore struct {
	entries []Entry
}

func (s *memStore) Append(_ context.Context, entry Entry) error {
	s.entries = append(s.entries, entry)
	return nil
}

func (s *memStore) List(context.Context) ([]Entry, error) {
	return append([]Entry{}, s.entries...), nil
}

func (s *memStore) Query(_ context.Context, filter Filter) ([]Entry, error) {
	var out []Entry
	for _, e := range s.entries {
		if filter.Action == "" || e.Action == filter.Action {
			out = append(out, e)
		}
	}
	return out, nil
}

func TestEmit_FillsIdentityAndClassification(t *testing.T) {
	store := &memStore{}
	pub := NewPublisher(store)

	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), now)
	ctx = requestcontext.WithClientIP(ctx, "10.1.2.3")
	ctx = requestcontext.WithRequestID(ctx, "req-42")

	err := pub.Emit(ctx, Entry{
		Action:    ActionVisitorDenied,
		ActorID:   "host-1",
		ActorName: "Dana Ops",
		ActorRole: domain.RoleHost,
		Details:   "Visitor denied",
		Severity:  SeverityMedium,
	})
	require.NoError(t, err)

	require.Len(t, store.entries, 1)
	got := store.entries[0]
	assert.NotEmpty(t, got.ID)
	assert.Equal(t, now, got.Timestamp)
	assert.Equal(t, CategoryVisitorManagement, got.Category)
	assert.Equal(t, SeverityMedium, got.Severity)
	assert.Equal(t, "10.1.2.3", got.IPAddress)
	assert.Equal(t, "req-42", got.RequestID)
}

func TestEmit_DefaultsSeverityLow(t *testing.T) {
	store := &memStore{}
	pub := NewPublisher(store)

	require.NoError(t, pub.Emit(context.Background(), Entry{Action: ActionVisitorCreated}))
	assert.Equal(t, SeverityLow, store.entries[0].Severity)
}

func TestList_MostRecentFirst(t *testing.T) {
	store := &memStore{}
	pub := NewPublisher(store)
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	for i, action := range []Action{ActionVisitorCreated, ActionVisitorApproved, ActionVisitorCheckedOut} {
		ctx := requestcontext.WithTime(context.Background(), base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, pub.Emit(ctx, Entry{Action: action}))
	}

	entries, err := pub.List(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, ActionVisitorCheckedOut, entries[0].Action)
	assert.Equal(t, ActionVisitorCreated, entries[2].Action)

	// Storage keeps insertion order; presentation reverses it.
	assert.Equal(t, ActionVisitorCreated, store.entries[0].Action)
}

func TestCategoryOf_UnknownFallsBackToSystem(t *testing.T) {
	assert.Equal(t, CategorySecurity, CategoryOf(ActionVisitorBlacklisted))
	assert.Equal(t, CategorySystem, CategoryOf(Action("never_heard_of_it")))
}
