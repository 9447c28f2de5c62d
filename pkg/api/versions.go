package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cratesim/cratesim/pkg/store"
)

// versionOr404 resolves the {version} route parameter against a crate.
// When descriptive is set, the 404 body names the crate and version.
func (s *Server) versionOr404(w http.ResponseWriter, r *http.Request, c *store.Crate, descriptive bool) *store.Version {
	num := chi.URLParam(r, "version")
	v, err := s.store.VersionByNum(c.ID, num)
	if err != nil {
		if store.IsNotFound(err) {
			if descriptive {
				writeError(w, http.StatusNotFound, fmt.Sprintf(detailVersionMissing, c.Name, num))
			} else {
				writeNotFound(w)
			}
		} else {
			s.internalError(w, err)
		}
		return nil
	}
	return v
}

func (s *Server) getVersion(w http.ResponseWriter, r *http.Request) {
	c := s.crateOr404(w, r)
	if c == nil {
		return
	}
	v := s.versionOr404(w, r, c, true)
	if v == nil {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"version": wireVersionJSON(v, c.Name, true)})
}

func (s *Server) patchVersion(w http.ResponseWriter, r *http.Request) {
	user := s.requireUser(w)
	if user == nil {
		return
	}
	c := s.crateOr404(w, r)
	if c == nil {
		return
	}
	v := s.versionOr404(w, r, c, false)
	if v == nil {
		return
	}

	var body struct {
		Version *struct {
			Yanked      *bool   `json:"yanked"`
			YankMessage *string `json:"yank_message"`
		} `json:"version"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Version == nil {
		writeError(w, http.StatusBadRequest, detailInvalidBody)
		return
	}

	if body.Version.Yanked != nil {
		v.Yanked = *body.Version.Yanked
	}
	if v.Yanked {
		v.YankMessage = body.Version.YankMessage
	} else {
		// Unyanking always clears the message.
		v.YankMessage = nil
	}
	if err := s.store.Save(v); err != nil {
		s.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"version": wireVersionJSON(v, c.Name, true)})
}

func (s *Server) getVersionAuthors(w http.ResponseWriter, r *http.Request) {
	c := s.crateOr404(w, r)
	if c == nil {
		return
	}
	v := s.versionOr404(w, r, c, true)
	if v == nil {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"meta":  map[string]any{"names": []string{}},
		"users": []userJSON{},
	})
}

func (s *Server) listVersionDependencies(w http.ResponseWriter, r *http.Request) {
	c := s.crateOr404(w, r)
	if c == nil {
		return
	}
	v := s.versionOr404(w, r, c, true)
	if v == nil {
		return
	}
	deps, err := s.store.DependenciesOfVersion(v.ID)
	if err != nil {
		s.internalError(w, err)
		return
	}
	out := make([]dependencyJSON, 0, len(deps))
	for i := range deps {
		name := ""
		if deps[i].Crate != nil {
			name = deps[i].Crate.Name
		}
		out = append(out, wireDependencyJSON(&deps[i], name))
	}
	writeJSON(w, http.StatusOK, map[string]any{"dependencies": out})
}

func (s *Server) getVersionDownloads(w http.ResponseWriter, r *http.Request) {
	c := s.crateOr404(w, r)
	if c == nil {
		return
	}
	v := s.versionOr404(w, r, c, true)
	if v == nil {
		return
	}
	downloads, err := s.store.DownloadsForVersions([]int64{v.ID})
	if err != nil {
		s.internalError(w, err)
		return
	}
	out := make([]versionDownloadJSON, 0, len(downloads))
	for i := range downloads {
		out = append(out, wireVersionDownloadJSON(&downloads[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"version_downloads": out})
}
