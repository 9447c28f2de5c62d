package api

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/cratesim/cratesim/pkg/query"
	"github.com/cratesim/cratesim/pkg/store"
)

func (s *Server) getMe(w http.ResponseWriter, r *http.Request) {
	user := s.requireUser(w)
	if user == nil {
		return
	}

	crates, err := s.store.ListCrates(store.CrateFilter{UserID: user.ID})
	if err != nil {
		s.internalError(w, err)
		return
	}
	owned := make([]ownedCrateJSON, 0, len(crates))
	for i := range crates {
		ownership, err := s.store.OwnershipOf(crates[i].ID, user.ID)
		if err != nil {
			s.internalError(w, err)
			return
		}
		owned = append(owned, ownedCrateJSON{
			ID:                 crates[i].Name,
			Name:               crates[i].Name,
			EmailNotifications: ownership.EmailNotifications,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user":         wirePrivateUserJSON(user),
		"owned_crates": owned,
	})
}

func (s *Server) getUpdates(w http.ResponseWriter, r *http.Request) {
	user := s.requireUser(w)
	if user == nil {
		return
	}

	crates, err := s.store.ListCrates(store.CrateFilter{FollowedBy: user.ID})
	if err != nil {
		s.internalError(w, err)
		return
	}

	type update struct {
		version store.Version
		crate   string
	}
	var updates []update
	for i := range crates {
		versions, err := s.store.VersionsOfCrate(crates[i].ID)
		if err != nil {
			s.internalError(w, err)
			return
		}
		for _, v := range versions {
			updates = append(updates, update{version: v, crate: crates[i].Name})
		}
	}
	sort.Slice(updates, func(i, j int) bool {
		return updates[i].version.ID > updates[j].version.ID
	})

	p := query.ParsePagination(r.URL.Query())
	page := query.OffsetPage(updates, p)
	more := p.Page*p.PerPage < len(updates)

	out := make([]versionJSON, 0, len(page))
	for i := range page {
		out = append(out, wireVersionJSON(&page[i].version, page[i].crate, false))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"versions": out,
		"meta":     map[string]any{"more": more},
	})
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	login := chi.URLParam(r, "login")
	user, err := s.store.UserByLogin(login)
	if err != nil {
		if store.IsNotFound(err) {
			writeNotFound(w)
		} else {
			s.internalError(w, err)
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": publicUserJSON(user)})
}

// sessionUserForID checks that the {id} route parameter names the logged-in
// user. Any mismatch, including an unparseable id, is rejected.
func (s *Server) sessionUserForID(w http.ResponseWriter, r *http.Request) *store.User {
	user := s.requireUser(w)
	if user == nil {
		return nil
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id != user.ID {
		writeError(w, http.StatusBadRequest, detailUserMismatch)
		return nil
	}
	return user
}

func (s *Server) updateUser(w http.ResponseWriter, r *http.Request) {
	user := s.sessionUserForID(w, r)
	if user == nil {
		return
	}

	var body struct {
		User *struct {
			Email                *string `json:"email"`
			PublishNotifications *bool   `json:"publish_notifications"`
		} `json:"user"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.User == nil {
		writeError(w, http.StatusBadRequest, detailInvalidJSON)
		return
	}

	if body.User.Email != nil {
		if *body.User.Email == "" {
			writeError(w, http.StatusBadRequest, detailEmptyEmail)
			return
		}
		// A changed address starts over: unverified, with a fresh token.
		email := primaryEmail(user)
		if email == nil {
			email = &store.Email{UserID: user.ID, Address: *body.User.Email}
			if err := s.store.CreateEmail(email); err != nil {
				s.internalError(w, err)
				return
			}
		}
		email.Address = *body.User.Email
		email.Verified = false
		s.store.ResetEmailToken(email)
		if err := s.store.Save(email); err != nil {
			s.internalError(w, err)
			return
		}
	}
	if body.User.PublishNotifications != nil {
		user.PublishNotifications = *body.User.PublishNotifications
		if err := s.store.Save(user); err != nil {
			s.internalError(w, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) resendVerification(w http.ResponseWriter, r *http.Request) {
	if user := s.sessionUserForID(w, r); user == nil {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) confirmEmail(w http.ResponseWriter, r *http.Request) {
	email, err := s.store.EmailByToken(chi.URLParam(r, "token"))
	if err != nil {
		if store.IsNotFound(err) {
			writeError(w, http.StatusBadRequest, detailTokenNoEmail)
		} else {
			s.internalError(w, err)
		}
		return
	}
	email.Verified = true
	email.Token = nil
	if err := s.store.Save(email); err != nil {
		s.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) addEmail(w http.ResponseWriter, r *http.Request) {
	user := s.sessionUserForID(w, r)
	if user == nil {
		return
	}

	var body struct {
		Email *struct {
			Address string `json:"address"`
		} `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Email == nil {
		writeError(w, http.StatusBadRequest, detailInvalidJSON)
		return
	}
	if body.Email.Address == "" {
		writeError(w, http.StatusBadRequest, detailEmptyEmail)
		return
	}

	email := &store.Email{UserID: user.ID, Address: body.Email.Address}
	if err := s.store.CreateEmail(email); err != nil {
		s.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"email": wireEmailJSON(email)})
}

// emailForUser resolves the {emailID} route parameter within the session
// user's addresses.
func (s *Server) emailForUser(w http.ResponseWriter, r *http.Request, user *store.User) *store.Email {
	id, err := strconv.ParseInt(chi.URLParam(r, "emailID"), 10, 64)
	if err != nil {
		writeNotFound(w)
		return nil
	}
	email, err := s.store.EmailByID(id)
	if err != nil || email.UserID != user.ID {
		if err != nil && !store.IsNotFound(err) {
			s.internalError(w, err)
		} else {
			writeNotFound(w)
		}
		return nil
	}
	return email
}

func (s *Server) deleteEmail(w http.ResponseWriter, r *http.Request) {
	user := s.sessionUserForID(w, r)
	if user == nil {
		return
	}
	email := s.emailForUser(w, r, user)
	if email == nil {
		return
	}

	emails, err := s.store.EmailsOfUser(user.ID)
	if err != nil {
		s.internalError(w, err)
		return
	}
	if len(emails) == 1 {
		writeError(w, http.StatusBadRequest, "cannot delete the last email address")
		return
	}
	if email.SendNotifications {
		writeError(w, http.StatusBadRequest, "cannot delete the notification email address")
		return
	}

	if err := s.store.Delete(email); err != nil {
		s.internalError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) setPrimaryEmail(w http.ResponseWriter, r *http.Request) {
	user := s.sessionUserForID(w, r)
	if user == nil {
		return
	}
	email := s.emailForUser(w, r, user)
	if email == nil {
		return
	}

	emails, err := s.store.EmailsOfUser(user.ID)
	if err != nil {
		s.internalError(w, err)
		return
	}
	for i := range emails {
		if emails[i].Primary && emails[i].ID != email.ID {
			emails[i].Primary = false
			if err := s.store.Save(&emails[i]); err != nil {
				s.internalError(w, err)
				return
			}
		}
	}
	email.Primary = true
	if err := s.store.Save(email); err != nil {
		s.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) setNotificationEmail(w http.ResponseWriter, r *http.Request) {
	user := s.sessionUserForID(w, r)
	if user == nil {
		return
	}
	email := s.emailForUser(w, r, user)
	if email == nil {
		return
	}

	emails, err := s.store.EmailsOfUser(user.ID)
	if err != nil {
		s.internalError(w, err)
		return
	}
	for i := range emails {
		if emails[i].SendNotifications && emails[i].ID != email.ID {
			emails[i].SendNotifications = false
			if err := s.store.Save(&emails[i]); err != nil {
				s.internalError(w, err)
				return
			}
		}
	}
	email.SendNotifications = true
	if err := s.store.Save(email); err != nil {
		s.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
