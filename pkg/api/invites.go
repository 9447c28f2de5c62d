package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/cratesim/cratesim/pkg/query"
	"github.com/cratesim/cratesim/pkg/store"
)

func (s *Server) listInvitations(w http.ResponseWriter, r *http.Request) {
	user := s.requireUser(w)
	if user == nil {
		return
	}
	params := r.URL.Query()

	var invitations []store.CrateOwnerInvitation
	var filter string
	switch {
	case params.Get("invitee_id") != "":
		inviteeID, err := strconv.ParseInt(params.Get("invitee_id"), 10, 64)
		if err != nil || inviteeID != user.ID {
			// Other users' invitations are never visible.
			writeForbidden(w)
			return
		}
		invitations, err = s.store.InvitationsForInvitee(inviteeID)
		if err != nil {
			s.internalError(w, err)
			return
		}
		filter = "invitee_id=" + params.Get("invitee_id")
	case params.Get("crate_name") != "":
		crate, err := s.store.CrateByName(params.Get("crate_name"))
		if err != nil {
			if store.IsNotFound(err) {
				writeNotFound(w)
			} else {
				s.internalError(w, err)
			}
			return
		}
		invitations, err = s.store.InvitationsForCrate(crate.ID)
		if err != nil {
			s.internalError(w, err)
			return
		}
		filter = "crate_name=" + params.Get("crate_name")
	default:
		writeError(w, http.StatusBadRequest, detailMissingFilter)
		return
	}

	page, next, err := query.SeekPage(invitations,
		func(i store.CrateOwnerInvitation) string { return strconv.FormatInt(i.ID, 10) },
		params, "id", filter)
	if err != nil {
		writeError(w, http.StatusBadRequest, detailInvalidSeek)
		return
	}

	invitationsOut := make([]invitationJSON, 0, len(page))
	usersOut := []userJSON{}
	seen := map[int64]bool{}
	addUser := func(u *store.User) {
		if u == nil || seen[u.ID] {
			return
		}
		seen[u.ID] = true
		usersOut = append(usersOut, publicUserJSON(u))
	}
	for i := range page {
		invitationsOut = append(invitationsOut, wireInvitationJSON(&page[i]))
		addUser(page[i].Invitee)
		addUser(page[i].Inviter)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"crate_owner_invitations": invitationsOut,
		"users":                   usersOut,
		"meta":                    map[string]any{"next_page": next},
	})
}

func (s *Server) redeemInvitation(w http.ResponseWriter, r *http.Request) {
	user := s.requireUser(w)
	if user == nil {
		return
	}

	crate, err := s.store.CrateByName(chi.URLParam(r, "crate"))
	if err != nil {
		if store.IsNotFound(err) {
			writeNotFound(w)
		} else {
			s.internalError(w, err)
		}
		return
	}

	var body struct {
		Invite *struct {
			Accepted bool `json:"accepted"`
		} `json:"crate_owner_invite"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Invite == nil {
		writeError(w, http.StatusBadRequest, detailInvalidBody)
		return
	}

	invitation, err := s.store.InvitationFor(crate.ID, user.ID)
	if err != nil {
		if store.IsNotFound(err) {
			writeNotFound(w)
		} else {
			s.internalError(w, err)
		}
		return
	}

	// The invitation is consumed whether it was accepted or declined.
	if err := s.store.Delete(invitation); err != nil {
		s.internalError(w, err)
		return
	}
	if body.Invite.Accepted {
		userID := user.ID
		ownership := &store.CrateOwnership{CrateID: crate.ID, UserID: &userID}
		if err := s.store.CreateOwnership(ownership); err != nil {
			s.internalError(w, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"crate_owner_invitation": map[string]any{
			"accepted": body.Invite.Accepted,
			"crate_id": crate.ID,
		},
	})
}
