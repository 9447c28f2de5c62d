package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/cratesim/cratesim/pkg/store"
)

// trustpubCrate runs the shared precondition chain of the listing
// endpoints: the crate must exist and the session user must own it.
func (s *Server) trustpubCrate(w http.ResponseWriter, name string, user *store.User) *store.Crate {
	if name == "" {
		writeError(w, http.StatusBadRequest, detailMissingFilter)
		return nil
	}
	crate, err := s.store.CrateByName(name)
	if err != nil {
		if store.IsNotFound(err) {
			writeNotFound(w)
		} else {
			s.internalError(w, err)
		}
		return nil
	}
	if !s.ownsCrate(w, crate, user) {
		return nil
	}
	return crate
}

func (s *Server) ownsCrate(w http.ResponseWriter, crate *store.Crate, user *store.User) bool {
	_, err := s.store.OwnershipOf(crate.ID, user.ID)
	if err != nil {
		if store.IsNotFound(err) {
			writeError(w, http.StatusBadRequest, detailNotOwner)
		} else {
			s.internalError(w, err)
		}
		return false
	}
	return true
}

func (s *Server) listGithubConfigs(w http.ResponseWriter, r *http.Request) {
	user := s.requireUser(w)
	if user == nil {
		return
	}
	crate := s.trustpubCrate(w, r.URL.Query().Get("crate"), user)
	if crate == nil {
		return
	}
	configs, err := s.store.TrustpubGithubConfigsForCrate(crate.ID)
	if err != nil {
		s.internalError(w, err)
		return
	}
	out := make([]githubConfigJSON, 0, len(configs))
	for i := range configs {
		out = append(out, wireGithubConfigJSON(&configs[i], crate.Name))
	}
	writeJSON(w, http.StatusOK, map[string]any{"github_configs": out})
}

func (s *Server) createGithubConfig(w http.ResponseWriter, r *http.Request) {
	user := s.requireUser(w)
	if user == nil {
		return
	}

	var body struct {
		Config *struct {
			Crate            string  `json:"crate"`
			RepositoryOwner  string  `json:"repository_owner"`
			RepositoryName   string  `json:"repository_name"`
			WorkflowFilename string  `json:"workflow_filename"`
			Environment      *string `json:"environment"`
		} `json:"github_config"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Config == nil {
		writeError(w, http.StatusBadRequest, detailInvalidBody)
		return
	}
	cfg := body.Config
	if cfg.Crate == "" || cfg.RepositoryOwner == "" || cfg.RepositoryName == "" || cfg.WorkflowFilename == "" {
		writeError(w, http.StatusBadRequest, detailMissingFields)
		return
	}

	crate, err := s.store.CrateByName(cfg.Crate)
	if err != nil {
		if store.IsNotFound(err) {
			writeNotFound(w)
		} else {
			s.internalError(w, err)
		}
		return
	}
	if !s.ownsCrate(w, crate, user) {
		return
	}
	if email := primaryEmail(user); email == nil || !email.Verified {
		writeError(w, http.StatusForbidden, detailVerifyEmail)
		return
	}

	config := &store.TrustpubGithubConfig{
		CrateID:          crate.ID,
		RepositoryOwner:  cfg.RepositoryOwner,
		RepositoryName:   cfg.RepositoryName,
		WorkflowFilename: cfg.WorkflowFilename,
		Environment:      cfg.Environment,
	}
	if err := s.store.CreateTrustpubGithubConfig(config); err != nil {
		s.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"github_config": wireGithubConfigJSON(config, crate.Name)})
}

func (s *Server) deleteGithubConfig(w http.ResponseWriter, r *http.Request) {
	user := s.requireUser(w)
	if user == nil {
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeNotFound(w)
		return
	}
	config, err := s.store.TrustpubGithubConfigByID(id)
	if err != nil {
		if store.IsNotFound(err) {
			writeNotFound(w)
		} else {
			s.internalError(w, err)
		}
		return
	}
	crate, err := s.store.CrateByID(config.CrateID)
	if err != nil {
		s.internalError(w, err)
		return
	}
	if !s.ownsCrate(w, crate, user) {
		return
	}
	if err := s.store.Delete(config); err != nil {
		s.internalError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listGitlabConfigs(w http.ResponseWriter, r *http.Request) {
	user := s.requireUser(w)
	if user == nil {
		return
	}
	crate := s.trustpubCrate(w, r.URL.Query().Get("crate"), user)
	if crate == nil {
		return
	}
	configs, err := s.store.TrustpubGitlabConfigsForCrate(crate.ID)
	if err != nil {
		s.internalError(w, err)
		return
	}
	out := make([]gitlabConfigJSON, 0, len(configs))
	for i := range configs {
		out = append(out, wireGitlabConfigJSON(&configs[i], crate.Name))
	}
	writeJSON(w, http.StatusOK, map[string]any{"gitlab_configs": out})
}

func (s *Server) createGitlabConfig(w http.ResponseWriter, r *http.Request) {
	user := s.requireUser(w)
	if user == nil {
		return
	}

	var body struct {
		Config *struct {
			Crate            string  `json:"crate"`
			Namespace        string  `json:"namespace"`
			Project          string  `json:"project"`
			WorkflowFilepath string  `json:"workflow_filepath"`
			Environment      *string `json:"environment"`
		} `json:"gitlab_config"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Config == nil {
		writeError(w, http.StatusBadRequest, detailInvalidBody)
		return
	}
	cfg := body.Config
	if cfg.Crate == "" || cfg.Namespace == "" || cfg.Project == "" || cfg.WorkflowFilepath == "" {
		writeError(w, http.StatusBadRequest, detailMissingFields)
		return
	}

	crate, err := s.store.CrateByName(cfg.Crate)
	if err != nil {
		if store.IsNotFound(err) {
			writeNotFound(w)
		} else {
			s.internalError(w, err)
		}
		return
	}
	if !s.ownsCrate(w, crate, user) {
		return
	}
	if email := primaryEmail(user); email == nil || !email.Verified {
		writeError(w, http.StatusForbidden, detailVerifyEmail)
		return
	}

	config := &store.TrustpubGitlabConfig{
		CrateID:          crate.ID,
		Namespace:        cfg.Namespace,
		Project:          cfg.Project,
		WorkflowFilepath: cfg.WorkflowFilepath,
		Environment:      cfg.Environment,
	}
	if err := s.store.CreateTrustpubGitlabConfig(config); err != nil {
		s.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"gitlab_config": wireGitlabConfigJSON(config, crate.Name)})
}

func (s *Server) deleteGitlabConfig(w http.ResponseWriter, r *http.Request) {
	user := s.requireUser(w)
	if user == nil {
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeNotFound(w)
		return
	}
	config, err := s.store.TrustpubGitlabConfigByID(id)
	if err != nil {
		if store.IsNotFound(err) {
			writeNotFound(w)
		} else {
			s.internalError(w, err)
		}
		return
	}
	crate, err := s.store.CrateByID(config.CrateID)
	if err != nil {
		s.internalError(w, err)
		return
	}
	if !s.ownsCrate(w, crate, user) {
		return
	}
	if err := s.store.Delete(config); err != nil {
		s.internalError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
