package token_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"securevms/internal/host/models"
	"securevms/internal/token"
	"securevms/pkg/domain"
	dErrors "securevms/pkg/domain-errors"
)

func testHost(t *testing.T) *models.Host {
	t.Helper()
	h, err := models.NewHost(domain.NewHostID(), "Dana Ops", "dana@corp.example", "Operations", 5, time.Now())
	require.NoError(t, err)
	return h
}

func TestIssueValidate_RoundTrip(t *testing.T) {
	svc := token.NewJWTService("test-signing-key", "securevms", time.Hour)
	host := testHost(t)

	signed, err := svc.Issue(host)
	require.NoError(t, err)

	claims, err := svc.Validate(signed)
	require.NoError(t, err)
	assert.Equal(t, host.ID.String(), claims.HostID)
	assert.Equal(t, host.Name, claims.HostName)
	assert.Equal(t, host.Email, claims.Email)
	assert.Equal(t, "host", claims.Role)
	assert.Equal(t, "securevms", claims.Issuer)
	assert.NotEmpty(t, claims.ID, "every token carries a jti for revocation")
}

func TestValidate_ExpiredToken(t *testing.T) {
	svc := token.NewJWTService("test-signing-key", "securevms", time.Nanosecond)

	signed, err := svc.Issue(testHost(t))
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)

	_, err = svc.Validate(signed)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	assert.Contains(t, err.Error(), "expired")
}

func TestValidate_WrongKeyAndGarbage(t *testing.T) {
	issuer := token.NewJWTService("key-one", "securevms", time.Hour)
	verifier := token.NewJWTService("key-two", "securevms", time.Hour)

	signed, err := issuer.Issue(testHost(t))
	require.NoError(t, err)

	_, err = verifier.Validate(signed)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))

	_, err = verifier.Validate("not.a.token")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestJTIsAreUnique(t *testing.T) {
	svc := token.NewJWTService("test-signing-key", "securevms", time.Hour)
	host := testHost(t)

	first, err := svc.Issue(host)
	require.NoError(t, err)
	second, err := svc.Issue(host)
	require.NoError(t, err)

	a, err := svc.Validate(first)
	require.NoError(t, err)
	b, err := svc.Validate(second)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
}
