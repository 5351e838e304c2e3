package handler_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"securevms/internal/platform/middleware"
	"securevms/internal/rules"
	"securevms/internal/rules/handler"
)

const adminToken = "test-admin-token"

func newServer(t *testing.T) (*httptest.Server, *rules.Service) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	policy := rules.NewService(rules.Defaults(), rules.WithLogger(logger))

	r := chi.NewRouter()
	handler.New(policy, logger, middleware.RequireAdminToken(adminToken, logger)).Register(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, policy
}

func TestGetRules_IsPublic(t *testing.T) {
	srv, _ := newServer(t)

	resp, err := http.Get(srv.URL + "/rules")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got rules.Rules
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, rules.Defaults(), got)
}

func TestPatchRules_RequiresAdminToken(t *testing.T) {
	srv, policy := newServer(t)

	req, err := http.NewRequest(http.MethodPatch, srv.URL+"/rules",
		strings.NewReader(`{"max_visitors_per_host_per_day": 3}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, rules.Defaults(), policy.Current(), "rejected request must not change policy")
}

func TestPatchRules_AppliesUpdate(t *testing.T) {
	srv, policy := newServer(t)

	req, err := http.NewRequest(http.MethodPatch, srv.URL+"/rules",
		strings.NewReader(`{"max_visitors_per_host_per_day": 3, "allow_walk_in_visitors": false}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Admin-Token", adminToken)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got rules.Rules
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, 3, got.MaxVisitorsPerHostPerDay)
	assert.False(t, got.AllowWalkInVisitors)
	assert.Equal(t, got, policy.Current())
}

func TestPatchRules_RejectsUnknownFields(t *testing.T) {
	srv, _ := newServer(t)

	req, err := http.NewRequest(http.MethodPatch, srv.URL+"/rules",
		strings.NewReader(`{"no_such_rule": true}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Admin-Token", adminToken)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "invalid_input", body["error"])
}
