package api

import (
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cratesim/cratesim/pkg/store"
)

func TestListTokens(t *testing.T) {
	s, st := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/me/tokens", nil)
	assertStatus(t, rec, http.StatusForbidden)

	user := createUser(t, st)
	login(t, st, user)

	first := &store.ApiToken{UserID: user.ID}
	require.NoError(t, st.CreateApiToken(first))
	second := &store.ApiToken{UserID: user.ID}
	require.NoError(t, st.CreateApiToken(second))
	revoked := &store.ApiToken{UserID: user.ID, Revoked: true}
	require.NoError(t, st.CreateApiToken(revoked))
	past := "2017-01-24T12:34:56Z"
	expired := &store.ApiToken{UserID: user.ID, ExpiredAt: &past}
	require.NoError(t, st.CreateApiToken(expired))

	other := createUser(t, st)
	require.NoError(t, st.CreateApiToken(&store.ApiToken{UserID: other.ID}))

	rec = doRequest(t, s, http.MethodGet, "/api/v1/me/tokens", nil)
	assertStatus(t, rec, http.StatusOK)

	tokens := decodeBody(t, rec)["api_tokens"].([]any)
	require.Len(t, tokens, 2)
	// Newest first; revoked, expired and foreign tokens excluded.
	assert.Equal(t, float64(second.ID), tokens[0].(map[string]any)["id"])
	assert.Equal(t, float64(first.ID), tokens[1].(map[string]any)["id"])
	assert.Equal(t, "API Token 1", tokens[1].(map[string]any)["name"])
	// Unrestricted tokens carry null scopes and no expiry.
	assert.Nil(t, tokens[1].(map[string]any)["crate_scopes"])
	assert.Nil(t, tokens[1].(map[string]any)["endpoint_scopes"])
	assert.Nil(t, tokens[1].(map[string]any)["expired_at"])
	// The secret is only ever shown on creation.
	_, exposed := tokens[0].(map[string]any)["token"]
	assert.False(t, exposed)
}

func TestCreateToken(t *testing.T) {
	s, st := newTestServer(t)

	payload := map[string]any{"api_token": map[string]any{
		"name":            "foooo",
		"crate_scopes":    []string{"serde"},
		"endpoint_scopes": []string{"publish-update"},
	}}

	rec := doRequest(t, s, http.MethodPost, "/api/v1/me/tokens", payload)
	assertStatus(t, rec, http.StatusForbidden)

	user := createUser(t, st)
	login(t, st, user)

	rec = doRequest(t, s, http.MethodPost, "/api/v1/me/tokens", map[string]any{})
	assertStatus(t, rec, http.StatusBadRequest)

	rec = doRequest(t, s, http.MethodPost, "/api/v1/me/tokens", payload)
	assertStatus(t, rec, http.StatusOK)

	created := decodeBody(t, rec)["api_token"].(map[string]any)
	assert.Equal(t, "foooo", created["name"])
	assert.Equal(t, false, created["revoked"])
	assert.Equal(t, []any{"serde"}, created["crate_scopes"])
	assert.Equal(t, []any{"publish-update"}, created["endpoint_scopes"])
	assert.Nil(t, created["expired_at"])

	secret := created["token"].(string)
	assert.True(t, strings.HasPrefix(secret, "cio"))
	assert.Len(t, secret, 32)
}

func TestRevokeToken(t *testing.T) {
	s, st := newTestServer(t)
	user := createUser(t, st)
	token := &store.ApiToken{UserID: user.ID}
	require.NoError(t, st.CreateApiToken(token))

	path := fmt.Sprintf("/api/v1/me/tokens/%d", token.ID)

	rec := doRequest(t, s, http.MethodDelete, path, nil)
	assertStatus(t, rec, http.StatusForbidden)

	other := createUser(t, st)
	login(t, st, other)
	rec = doRequest(t, s, http.MethodDelete, path, nil)
	assertStatus(t, rec, http.StatusNotFound)

	require.NoError(t, st.DeleteSession())
	login(t, st, user)

	rec = doRequest(t, s, http.MethodDelete, "/api/v1/me/tokens/999", nil)
	assertStatus(t, rec, http.StatusNotFound)

	rec = doRequest(t, s, http.MethodDelete, path, nil)
	assertStatus(t, rec, http.StatusNoContent)

	rec = doRequest(t, s, http.MethodGet, "/api/v1/me/tokens", nil)
	assert.Empty(t, decodeBody(t, rec)["api_tokens"])
}
