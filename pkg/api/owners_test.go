package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cratesim/cratesim/pkg/store"
)

func TestAddOwnersRequiresSessionAndCrate(t *testing.T) {
	s, st := newTestServer(t)

	body := map[string]any{"owners": []string{"john-doe"}}
	rec := doRequest(t, s, http.MethodPut, "/api/v1/crates/foo/owners", body)
	assertStatus(t, rec, http.StatusForbidden)

	user := createUser(t, st)
	login(t, st, user)

	rec = doRequest(t, s, http.MethodPut, "/api/v1/crates/foo/owners", body)
	assertStatus(t, rec, http.StatusNotFound)
}

func TestAddOwnersInvitesUser(t *testing.T) {
	s, st := newTestServer(t)
	owner := createUser(t, st)
	login(t, st, owner)

	crate := createCrate(t, st, "foo")
	ownCrate(t, st, crate, owner)
	invitee := createUser(t, st)

	rec := doRequest(t, s, http.MethodPut, "/api/v1/crates/foo/owners",
		map[string]any{"owners": []string{invitee.Login}})
	assertStatus(t, rec, http.StatusOK)

	respBody := decodeBody(t, rec)
	assert.Equal(t, true, respBody["ok"])
	assert.Equal(t, "user user-2 has been invited to be an owner of crate foo", respBody["msg"])

	// Inviting does not grant ownership yet.
	ownerships, err := st.OwnershipsOfCrate(crate.ID)
	require.NoError(t, err)
	require.Len(t, ownerships, 1)

	invitation, err := st.InvitationFor(crate.ID, invitee.ID)
	require.NoError(t, err)
	assert.Equal(t, owner.ID, invitation.InviterID)
}

func TestAddOwnersAddsTeamDirectly(t *testing.T) {
	s, st := newTestServer(t)
	owner := createUser(t, st)
	login(t, st, owner)

	crate := createCrate(t, st, "foo")
	ownCrate(t, st, crate, owner)
	team := &store.Team{}
	require.NoError(t, st.CreateTeam(team))

	rec := doRequest(t, s, http.MethodPut, "/api/v1/crates/foo/owners",
		map[string]any{"owners": []string{team.Login}})
	assertStatus(t, rec, http.StatusOK)
	assert.Equal(t, "team github:rust-lang:team-1 has been added as an owner of crate foo",
		decodeBody(t, rec)["msg"])

	ownerships, err := st.OwnershipsOfCrate(crate.ID)
	require.NoError(t, err)
	require.Len(t, ownerships, 2)
	assert.NotNil(t, ownerships[1].Team)
}

func TestAddMultipleOwnersJoinsMessages(t *testing.T) {
	s, st := newTestServer(t)
	owner := createUser(t, st)
	login(t, st, owner)

	crate := createCrate(t, st, "foo")
	ownCrate(t, st, crate, owner)
	invitee := createUser(t, st)
	team := &store.Team{}
	require.NoError(t, st.CreateTeam(team))

	rec := doRequest(t, s, http.MethodPut, "/api/v1/crates/foo/owners",
		map[string]any{"owners": []string{invitee.Login, team.Login}})
	assertStatus(t, rec, http.StatusOK)
	assert.Equal(t,
		"user user-2 has been invited to be an owner of crate foo,"+
			"team github:rust-lang:team-1 has been added as an owner of crate foo",
		decodeBody(t, rec)["msg"])
}

func TestAddOwnersUnknownLogin(t *testing.T) {
	s, st := newTestServer(t)
	owner := createUser(t, st)
	login(t, st, owner)
	createCrate(t, st, "foo")

	rec := doRequest(t, s, http.MethodPut, "/api/v1/crates/foo/owners",
		map[string]any{"owners": []string{"nobody"}})
	assertStatus(t, rec, http.StatusBadRequest)
	assert.Equal(t, "could not find user with login `nobody`", errorDetail(t, rec))
}

func TestRemoveOwners(t *testing.T) {
	s, st := newTestServer(t)
	owner := createUser(t, st)
	login(t, st, owner)

	crate := createCrate(t, st, "foo")
	ownCrate(t, st, crate, owner)
	second := createUser(t, st)
	ownCrate(t, st, crate, second)
	invite(t, st, crate, second, owner)

	rec := doRequest(t, s, http.MethodDelete, "/api/v1/crates/foo/owners",
		map[string]any{"owners": []string{second.Login}})
	assertStatus(t, rec, http.StatusOK)
	respBody := decodeBody(t, rec)
	assert.Equal(t, true, respBody["ok"])
	assert.Equal(t, "owners successfully removed", respBody["msg"])

	ownerships, err := st.OwnershipsOfCrate(crate.ID)
	require.NoError(t, err)
	require.Len(t, ownerships, 1)
	assert.Equal(t, owner.ID, *ownerships[0].UserID)

	// Revoking the ownership also revokes the user's pending invitations.
	invites, err := st.InvitationsForCrate(crate.ID)
	require.NoError(t, err)
	assert.Empty(t, invites)
}

func TestRemoveOwnersUnknownOwner(t *testing.T) {
	s, st := newTestServer(t)
	owner := createUser(t, st)
	login(t, st, owner)
	createCrate(t, st, "foo")

	rec := doRequest(t, s, http.MethodDelete, "/api/v1/crates/foo/owners",
		map[string]any{"owners": []string{"nobody"}})
	assertStatus(t, rec, http.StatusNotFound)
}
