package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cratesim/cratesim/pkg/store"
)

func newTestServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()
	st, err := store.Open(1)
	require.NoError(t, err)
	return NewServer(st, slog.New(slog.NewTextHandler(io.Discard, nil))), st
}

func doRequest(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func errorDetail(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	body := decodeBody(t, rec)
	errs, ok := body["errors"].([]any)
	require.True(t, ok, "expected an errors body, got %s", rec.Body.String())
	require.Len(t, errs, 1)
	return errs[0].(map[string]any)["detail"].(string)
}

func login(t *testing.T, st *store.Store, user *store.User) {
	t.Helper()
	require.NoError(t, st.CreateSession(&store.Session{UserID: user.ID}))
}

// createCrate makes a crate with a single version, the minimum a crate
// needs to be serializable.
func createCrate(t *testing.T, st *store.Store, name string) *store.Crate {
	t.Helper()
	crate := &store.Crate{Name: name}
	require.NoError(t, st.CreateCrate(crate))
	require.NoError(t, st.CreateVersion(&store.Version{CrateID: crate.ID}))
	return crate
}

func createVersion(t *testing.T, st *store.Store, crate *store.Crate, num string) *store.Version {
	t.Helper()
	v := &store.Version{CrateID: crate.ID, Num: num}
	require.NoError(t, st.CreateVersion(v))
	return v
}

func createUser(t *testing.T, st *store.Store) *store.User {
	t.Helper()
	user := &store.User{}
	require.NoError(t, st.CreateUser(user))
	return user
}

func ownCrate(t *testing.T, st *store.Store, crate *store.Crate, user *store.User) {
	t.Helper()
	userID := user.ID
	require.NoError(t, st.CreateOwnership(&store.CrateOwnership{CrateID: crate.ID, UserID: &userID}))
}

func assertStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	require.Equal(t, want, rec.Code, "unexpected status, body: %s", rec.Body.String())
}
