package api

import (
	"net/http"

	"github.com/cratesim/cratesim/pkg/store"
)

// currentUser returns the logged-in user, or nil when there is no session.
func (s *Server) currentUser() (*store.User, error) {
	sess, err := s.store.CurrentSession()
	if err != nil {
		if store.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return sess.User, nil
}

// requireUser resolves the session and writes the standard 403 response
// when nobody is logged in. Handlers return immediately on nil.
func (s *Server) requireUser(w http.ResponseWriter) *store.User {
	user, err := s.currentUser()
	if err != nil {
		s.internalError(w, err)
		return nil
	}
	if user == nil {
		writeForbidden(w)
		return nil
	}
	return user
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteSession(); err != nil {
		s.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
