package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"securevms/internal/audit"
	auditmemory "securevms/internal/audit/store/memory"
	hoststore "securevms/internal/host/store"
	"securevms/internal/token"
	dErrors "securevms/pkg/domain-errors"
	"securevms/pkg/requestcontext"
)

var baseTime = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

type fixture struct {
	store      *hoststore.InMemory
	auditStore *auditmemory.InMemoryStore
	auditor    *audit.Publisher
	svc        *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:      hoststore.NewInMemory(),
		auditStore: auditmemory.NewInMemoryStore(),
	}
	f.auditor = audit.NewPublisher(f.auditStore)
	f.svc = New(f.store,
		WithAuditPublisher(f.auditor),
		WithTokenIssuer(token.NewJWTService("test-signing-key", "securevms-test", time.Hour)),
	)
	return f
}

func ctxAt(t time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), t)
}

func registerInput() RegisterInput {
	return RegisterInput{
		Name:              "Dana Ops",
		Email:             "dana@corp.example",
		Department:        "Operations",
		MaxVisitorsPerDay: 8,
	}
}

func TestRegister_StartsUnapproved(t *testing.T) {
	f := newFixture(t)
	h, err := f.svc.Register(ctxAt(baseTime), registerInput())
	require.NoError(t, err)

	assert.False(t, h.Approved)
	assert.True(t, h.Active)
	assert.False(t, h.Visitable())
	assert.Equal(t, 8, h.MaxVisitorsPerDay)

	entries, err := f.auditor.List(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, audit.ActionHostRegistration, entries[0].Action)
	assert.Equal(t, audit.CategoryUserManagement, entries[0].Category)
}

func TestRegister_DuplicateEmailConflicts(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Register(ctxAt(baseTime), registerInput())
	require.NoError(t, err)

	in := registerInput()
	in.Email = "DANA@corp.example"
	_, err = f.svc.Register(ctxAt(baseTime), in)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
}

func TestApprove_RequiresCredentialAndIsIdempotent(t *testing.T) {
	f := newFixture(t)
	h, err := f.svc.Register(ctxAt(baseTime), registerInput())
	require.NoError(t, err)

	_, err = f.svc.Approve(ctxAt(baseTime), h.ID, "Admin", "")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

	approved, err := f.svc.Approve(ctxAt(baseTime), h.ID, "Admin", "s3cret-pass")
	require.NoError(t, err)
	assert.True(t, approved.Approved)
	assert.Equal(t, "Admin", approved.ApprovedBy)
	require.NotNil(t, approved.ApprovedAt)
	entriesAfterFirst := f.auditStore.Len()

	// Second approval is a no-op: same record, no extra audit entry.
	again, err := f.svc.Approve(ctxAt(baseTime.Add(time.Hour)), h.ID, "Admin", "other")
	require.NoError(t, err)
	assert.Equal(t, *approved.ApprovedAt, *again.ApprovedAt)
	assert.Equal(t, entriesAfterFirst, f.auditStore.Len())
}

func TestDeny_DeletesPendingRegistration(t *testing.T) {
	f := newFixture(t)
	h, err := f.svc.Register(ctxAt(baseTime), registerInput())
	require.NoError(t, err)

	require.NoError(t, f.svc.Deny(ctxAt(baseTime), h.ID))

	_, err = f.svc.Get(ctxAt(baseTime), h.ID)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))

	entries, err := f.auditor.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, audit.ActionHostDenied, entries[0].Action)
}

func TestDeny_ApprovedHostIsRejected(t *testing.T) {
	f := newFixture(t)
	h, err := f.svc.Register(ctxAt(baseTime), registerInput())
	require.NoError(t, err)
	_, err = f.svc.Approve(ctxAt(baseTime), h.ID, "Admin", "s3cret-pass")
	require.NoError(t, err)

	err = f.svc.Deny(ctxAt(baseTime), h.ID)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
}

func TestAuthenticate_ApprovedHostGetsToken(t *testing.T) {
	f := newFixture(t)
	h, err := f.svc.Register(ctxAt(baseTime), registerInput())
	require.NoError(t, err)
	_, err = f.svc.Approve(ctxAt(baseTime), h.ID, "Admin", "s3cret-pass")
	require.NoError(t, err)

	got, tok, err := f.svc.Authenticate(ctxAt(baseTime), "dana@corp.example", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, h.ID, got.ID)
	assert.NotEmpty(t, tok)

	claims, err := token.NewJWTService("test-signing-key", "securevms-test", time.Hour).Validate(tok)
	require.NoError(t, err)
	assert.Equal(t, h.ID.String(), claims.HostID)
	assert.Equal(t, "host", claims.Role)
}

func TestAuthenticate_Failures(t *testing.T) {
	f := newFixture(t)
	h, err := f.svc.Register(ctxAt(baseTime), registerInput())
	require.NoError(t, err)

	// Not yet approved.
	_, _, err = f.svc.Authenticate(ctxAt(baseTime), "dana@corp.example", "s3cret-pass")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))

	_, err = f.svc.Approve(ctxAt(baseTime), h.ID, "Admin", "s3cret-pass")
	require.NoError(t, err)

	// Wrong credential.
	_, _, err = f.svc.Authenticate(ctxAt(baseTime), "dana@corp.example", "wrong")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))

	// Unknown email.
	_, _, err = f.svc.Authenticate(ctxAt(baseTime), "nobody@corp.example", "s3cret-pass")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))

	// Deactivated host.
	_, err = f.svc.Deactivate(ctxAt(baseTime), h.ID)
	require.NoError(t, err)
	_, _, err = f.svc.Authenticate(ctxAt(baseTime), "dana@corp.example", "s3cret-pass")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestDeactivateReactivate(t *testing.T) {
	f := newFixture(t)
	h, err := f.svc.Register(ctxAt(baseTime), registerInput())
	require.NoError(t, err)
	_, err = f.svc.Approve(ctxAt(baseTime), h.ID, "Admin", "s3cret-pass")
	require.NoError(t, err)

	off, err := f.svc.Deactivate(ctxAt(baseTime), h.ID)
	require.NoError(t, err)
	assert.False(t, off.Active)
	assert.False(t, off.Visitable())

	_, err = f.svc.Deactivate(ctxAt(baseTime), h.ID)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))

	on, err := f.svc.Reactivate(ctxAt(baseTime), h.ID)
	require.NoError(t, err)
	assert.True(t, on.Visitable())
}

func TestListPending(t *testing.T) {
	f := newFixture(t)
	a, err := f.svc.Register(ctxAt(baseTime), registerInput())
	require.NoError(t, err)
	in := registerInput()
	in.Email = "lee@corp.example"
	in.Name = "Lee Desk"
	b, err := f.svc.Register(ctxAt(baseTime), in)
	require.NoError(t, err)

	_, err = f.svc.Approve(ctxAt(baseTime), a.ID, "Admin", "s3cret-pass")
	require.NoError(t, err)

	pending, err := f.svc.ListPending(ctxAt(baseTime))
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, b.ID, pending[0].ID)
}
