package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/cratesim/cratesim/pkg/store"
)

func (s *Server) listTokens(w http.ResponseWriter, r *http.Request) {
	user := s.requireUser(w)
	if user == nil {
		return
	}
	tokens, err := s.store.TokensForUser(user.ID)
	if err != nil {
		s.internalError(w, err)
		return
	}
	out := make([]apiTokenJSON, 0, len(tokens))
	for i := range tokens {
		out = append(out, wireTokenJSON(&tokens[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"api_tokens": out})
}

func (s *Server) createToken(w http.ResponseWriter, r *http.Request) {
	user := s.requireUser(w)
	if user == nil {
		return
	}

	var body struct {
		ApiToken *struct {
			Name           string   `json:"name"`
			CrateScopes    []string `json:"crate_scopes"`
			EndpointScopes []string `json:"endpoint_scopes"`
			ExpiredAt      *string  `json:"expired_at"`
		} `json:"api_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ApiToken == nil {
		writeError(w, http.StatusBadRequest, detailInvalidBody)
		return
	}

	token := &store.ApiToken{
		UserID:         user.ID,
		Name:           body.ApiToken.Name,
		CrateScopes:    store.StringList(body.ApiToken.CrateScopes),
		EndpointScopes: store.StringList(body.ApiToken.EndpointScopes),
		ExpiredAt:      body.ApiToken.ExpiredAt,
	}
	if err := s.store.CreateApiToken(token); err != nil {
		s.internalError(w, err)
		return
	}

	out := newTokenJSON{apiTokenJSON: wireTokenJSON(token), Token: token.Token}
	writeJSON(w, http.StatusOK, map[string]any{"api_token": out})
}

func (s *Server) revokeToken(w http.ResponseWriter, r *http.Request) {
	user := s.requireUser(w)
	if user == nil {
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeNotFound(w)
		return
	}
	token, err := s.store.TokenByID(id)
	if err != nil || token.UserID != user.ID {
		if err != nil && !store.IsNotFound(err) {
			s.internalError(w, err)
		} else {
			writeNotFound(w)
		}
		return
	}
	token.Revoked = true
	if err := s.store.Save(token); err != nil {
		s.internalError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
