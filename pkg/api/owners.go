package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/cratesim/cratesim/pkg/store"
)

type ownersRequest struct {
	Owners []string `json:"owners"`
}

// addOwners invites users and adds teams. User logins produce pending
// invitations instead of immediate ownership; team logins take effect
// right away.
func (s *Server) addOwners(w http.ResponseWriter, r *http.Request) {
	user := s.requireUser(w)
	if user == nil {
		return
	}
	c := s.crateOr404(w, r)
	if c == nil {
		return
	}

	var body ownersRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body.Owners) == 0 {
		writeError(w, http.StatusBadRequest, detailInvalidBody)
		return
	}

	msgs := make([]string, 0, len(body.Owners))
	for _, login := range body.Owners {
		if invitee, err := s.store.UserByLogin(login); err == nil {
			invite := &store.CrateOwnerInvitation{
				CrateID:   c.ID,
				InviterID: user.ID,
				InviteeID: invitee.ID,
			}
			if err := s.store.CreateInvitation(invite); err != nil {
				s.internalError(w, err)
				return
			}
			msgs = append(msgs, fmt.Sprintf("user %s has been invited to be an owner of crate %s", login, c.Name))
			continue
		}
		if team, err := s.store.TeamByLogin(login); err == nil {
			teamID := team.ID
			ownership := &store.CrateOwnership{CrateID: c.ID, TeamID: &teamID}
			if err := s.store.CreateOwnership(ownership); err != nil {
				s.internalError(w, err)
				return
			}
			msgs = append(msgs, fmt.Sprintf("team %s has been added as an owner of crate %s", login, c.Name))
			continue
		}
		writeError(w, http.StatusBadRequest, fmt.Sprintf("could not find user with login `%s`", login))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "msg": strings.Join(msgs, ",")})
}

func (s *Server) removeOwners(w http.ResponseWriter, r *http.Request) {
	user := s.requireUser(w)
	if user == nil {
		return
	}
	c := s.crateOr404(w, r)
	if c == nil {
		return
	}

	var body ownersRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body.Owners) == 0 {
		writeError(w, http.StatusBadRequest, detailInvalidBody)
		return
	}

	ownerships, err := s.store.OwnershipsOfCrate(c.ID)
	if err != nil {
		s.internalError(w, err)
		return
	}

	for _, login := range body.Owners {
		removed := false
		for i := range ownerships {
			o := &ownerships[i]
			if (o.User != nil && o.User.Login == login) || (o.Team != nil && o.Team.Login == login) {
				if err := s.store.Delete(o); err != nil {
					s.internalError(w, err)
					return
				}
				if o.UserID != nil {
					if err := s.store.DeleteInvitationsFor(c.ID, *o.UserID); err != nil {
						s.internalError(w, err)
						return
					}
				}
				removed = true
				break
			}
		}
		if !removed {
			writeNotFound(w)
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "msg": detailOwnersRemoved})
}
