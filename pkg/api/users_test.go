package api

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cratesim/cratesim/pkg/store"
)

func TestGetMe(t *testing.T) {
	s, st := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/me", nil)
	assertStatus(t, rec, http.StatusForbidden)

	user := createUser(t, st)
	login(t, st, user)

	crate1 := createCrate(t, st, "")
	createCrate(t, st, "")
	crate3 := createCrate(t, st, "")
	ownCrate(t, st, crate1, user)
	ownCrate(t, st, crate3, user)

	rec = doRequest(t, s, http.MethodGet, "/api/v1/me", nil)
	assertStatus(t, rec, http.StatusOK)

	body := decodeBody(t, rec)
	userOut := body["user"].(map[string]any)
	assert.Equal(t, "user-1", userOut["login"])
	assert.Equal(t, "user-1@crates.io", userOut["email"])
	assert.Equal(t, true, userOut["email_verified"])
	assert.Equal(t, true, userOut["email_verification_sent"])

	owned := body["owned_crates"].([]any)
	require.Len(t, owned, 2)
	assert.Equal(t, "crate-1", owned[0].(map[string]any)["id"])
	assert.Equal(t, "crate-3", owned[1].(map[string]any)["name"])
	assert.Equal(t, true, owned[0].(map[string]any)["email_notifications"])
}

func TestGetUpdates(t *testing.T) {
	s, st := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/me/updates", nil)
	assertStatus(t, rec, http.StatusForbidden)

	user := createUser(t, st)
	login(t, st, user)

	followed := &store.Crate{Name: "foo"}
	require.NoError(t, st.CreateCrate(followed))
	for i := 0; i < 25; i++ {
		createVersion(t, st, followed, fmt.Sprintf("1.%d.0", i))
	}
	other := createCrate(t, st, "bar")
	_ = other
	require.NoError(t, st.FollowCrate(user.ID, followed.ID))

	rec = doRequest(t, s, http.MethodGet, "/api/v1/me/updates?page=2", nil)
	assertStatus(t, rec, http.StatusOK)

	body := decodeBody(t, rec)
	versions := body["versions"].([]any)
	require.Len(t, versions, 10)
	assert.Equal(t, float64(15), versions[0].(map[string]any)["id"])
	assert.Equal(t, "foo", versions[0].(map[string]any)["crate"])
	assert.Equal(t, true, body["meta"].(map[string]any)["more"])

	rec = doRequest(t, s, http.MethodGet, "/api/v1/me/updates?page=3", nil)
	body = decodeBody(t, rec)
	assert.Len(t, body["versions"].([]any), 5)
	assert.Equal(t, false, body["meta"].(map[string]any)["more"])
}

func TestGetUserByLogin(t *testing.T) {
	s, st := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/users/foo", nil)
	assertStatus(t, rec, http.StatusNotFound)

	user := &store.User{Name: "John Doe"}
	require.NoError(t, st.CreateUser(user))

	rec = doRequest(t, s, http.MethodGet, "/api/v1/users/john-doe", nil)
	assertStatus(t, rec, http.StatusOK)
	out := decodeBody(t, rec)["user"].(map[string]any)
	assert.Equal(t, "john-doe", out["login"])
	assert.Equal(t, "John Doe", out["name"])
	// The public shape never exposes email fields.
	_, hasEmail := out["email"]
	assert.False(t, hasEmail)
}

func TestUpdateUserEmail(t *testing.T) {
	s, st := newTestServer(t)
	user := createUser(t, st)

	body := map[string]any{"user": map[string]any{"email": "new@email.com"}}
	rec := doRequest(t, s, http.MethodPut, fmt.Sprintf("/api/v1/users/%d", user.ID), body)
	assertStatus(t, rec, http.StatusForbidden)

	login(t, st, user)

	rec = doRequest(t, s, http.MethodPut, "/api/v1/users/999", body)
	assertStatus(t, rec, http.StatusBadRequest)
	assert.Equal(t, "current user does not match requested user", errorDetail(t, rec))

	rec = doRequest(t, s, http.MethodPut, fmt.Sprintf("/api/v1/users/%d", user.ID), map[string]any{})
	assertStatus(t, rec, http.StatusBadRequest)
	assert.Equal(t, "invalid json request", errorDetail(t, rec))

	rec = doRequest(t, s, http.MethodPut, fmt.Sprintf("/api/v1/users/%d", user.ID),
		map[string]any{"user": map[string]any{"email": ""}})
	assertStatus(t, rec, http.StatusBadRequest)
	assert.Equal(t, "empty email rejected", errorDetail(t, rec))

	rec = doRequest(t, s, http.MethodPut, fmt.Sprintf("/api/v1/users/%d", user.ID), body)
	assertStatus(t, rec, http.StatusOK)
	assert.Equal(t, true, decodeBody(t, rec)["ok"])

	emails, err := st.EmailsOfUser(user.ID)
	require.NoError(t, err)
	require.Len(t, emails, 1)
	assert.Equal(t, "new@email.com", emails[0].Address)
	assert.False(t, emails[0].Verified)
	require.NotNil(t, emails[0].Token)
}

func TestConfirmEmail(t *testing.T) {
	s, st := newTestServer(t)

	rec := doRequest(t, s, http.MethodPut, "/api/v1/confirm/badtoken", nil)
	assertStatus(t, rec, http.StatusBadRequest)
	assert.Equal(t, "Email belonging to token not found.", errorDetail(t, rec))

	user := createUser(t, st)
	email := &store.Email{UserID: user.ID, Address: "john@doe.com"}
	require.NoError(t, st.CreateEmail(email))
	require.NotNil(t, email.Token)

	rec = doRequest(t, s, http.MethodPut, "/api/v1/confirm/"+*email.Token, nil)
	assertStatus(t, rec, http.StatusOK)
	assert.Equal(t, true, decodeBody(t, rec)["ok"])

	stored, err := st.EmailByID(email.ID)
	require.NoError(t, err)
	assert.True(t, stored.Verified)
	assert.Nil(t, stored.Token)
}

func TestResendVerification(t *testing.T) {
	s, st := newTestServer(t)
	user := createUser(t, st)

	rec := doRequest(t, s, http.MethodPut, fmt.Sprintf("/api/v1/users/%d/resend", user.ID), nil)
	assertStatus(t, rec, http.StatusForbidden)

	login(t, st, user)

	rec = doRequest(t, s, http.MethodPut, "/api/v1/users/999/resend", nil)
	assertStatus(t, rec, http.StatusBadRequest)
	assert.Equal(t, "current user does not match requested user", errorDetail(t, rec))

	rec = doRequest(t, s, http.MethodPut, fmt.Sprintf("/api/v1/users/%d/resend", user.ID), nil)
	assertStatus(t, rec, http.StatusOK)
	assert.Equal(t, true, decodeBody(t, rec)["ok"])
}

func TestEmailLifecycle(t *testing.T) {
	s, st := newTestServer(t)
	user := createUser(t, st)
	login(t, st, user)

	emails, err := st.EmailsOfUser(user.ID)
	require.NoError(t, err)
	require.Len(t, emails, 1)
	primary := emails[0]

	// The only address cannot be deleted.
	rec := doRequest(t, s, http.MethodDelete,
		fmt.Sprintf("/api/v1/users/%d/emails/%d", user.ID, primary.ID), nil)
	assertStatus(t, rec, http.StatusBadRequest)

	rec = doRequest(t, s, http.MethodPost, fmt.Sprintf("/api/v1/users/%d/emails", user.ID),
		map[string]any{"email": map[string]any{"address": "second@doe.com"}})
	assertStatus(t, rec, http.StatusOK)
	added := decodeBody(t, rec)["email"].(map[string]any)
	assert.Equal(t, "second@doe.com", added["address"])
	assert.Equal(t, false, added["verified"])
	assert.Equal(t, false, added["primary"])

	// The first address carries notifications and stays undeletable.
	rec = doRequest(t, s, http.MethodDelete,
		fmt.Sprintf("/api/v1/users/%d/emails/%d", user.ID, primary.ID), nil)
	assertStatus(t, rec, http.StatusBadRequest)

	addedID := int64(added["id"].(float64))
	rec = doRequest(t, s, http.MethodPut,
		fmt.Sprintf("/api/v1/users/%d/emails/%d/set_notification", user.ID, addedID), nil)
	assertStatus(t, rec, http.StatusOK)

	rec = doRequest(t, s, http.MethodPut,
		fmt.Sprintf("/api/v1/users/%d/emails/%d/set_primary", user.ID, addedID), nil)
	assertStatus(t, rec, http.StatusOK)

	// The roles moved, so the original address can go.
	rec = doRequest(t, s, http.MethodDelete,
		fmt.Sprintf("/api/v1/users/%d/emails/%d", user.ID, primary.ID), nil)
	assertStatus(t, rec, http.StatusNoContent)

	emails, err = st.EmailsOfUser(user.ID)
	require.NoError(t, err)
	require.Len(t, emails, 1)
	assert.Equal(t, "second@doe.com", emails[0].Address)
	assert.True(t, emails[0].Primary)
	assert.True(t, emails[0].SendNotifications)
}

func TestDeleteSession(t *testing.T) {
	s, st := newTestServer(t)
	user := createUser(t, st)
	login(t, st, user)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/me", nil)
	assertStatus(t, rec, http.StatusOK)

	rec = doRequest(t, s, http.MethodDelete, "/api/private/session", nil)
	assertStatus(t, rec, http.StatusOK)
	assert.Equal(t, true, decodeBody(t, rec)["ok"])

	rec = doRequest(t, s, http.MethodGet, "/api/v1/me", nil)
	assertStatus(t, rec, http.StatusForbidden)
}
