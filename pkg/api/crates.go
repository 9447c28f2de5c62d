package api

import (
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/cratesim/cratesim/pkg/query"
	"github.com/cratesim/cratesim/pkg/store"
)

func canonName(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), "_", "-")
}

// crateOr404 resolves the {name} route parameter, writing the 404 response
// on a miss.
func (s *Server) crateOr404(w http.ResponseWriter, r *http.Request) *store.Crate {
	name := chi.URLParam(r, "name")
	c, err := s.store.CrateByName(name)
	if err != nil {
		if store.IsNotFound(err) {
			writeNotFound(w)
		} else {
			s.internalError(w, err)
		}
		return nil
	}
	return c
}

func (s *Server) listCrates(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	f := store.CrateFilter{
		Letter:   params.Get("letter"),
		Query:    params.Get("q"),
		Names:    params["ids[]"],
		Category: params.Get("category"),
		Keyword:  params.Get("keyword"),
	}
	if v := params.Get("user_id"); v != "" {
		f.UserID, _ = strconv.ParseInt(v, 10, 64)
	}
	if v := params.Get("team_id"); v != "" {
		f.TeamID, _ = strconv.ParseInt(v, 10, 64)
	}
	if params.Get("following") == "1" {
		user := s.requireUser(w)
		if user == nil {
			return
		}
		f.FollowedBy = user.ID
	}

	crates, err := s.store.ListCrates(f)
	if err != nil {
		s.internalError(w, err)
		return
	}
	if params.Get("sort") == "alpha" {
		query.SortAlpha(crates, func(c store.Crate) string { return c.Name })
	}

	total := len(crates)
	page := query.OffsetPage(crates, query.ParsePagination(params))

	out := make([]crateJSON, 0, len(page))
	for i := range page {
		j, err := baseCrateJSON(&page[i])
		if err != nil {
			s.internalError(w, err)
			return
		}
		if q := params.Get("q"); q != "" {
			exact := canonName(page[i].Name) == canonName(q)
			j.ExactMatch = &exact
		}
		out = append(out, j)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"crates": out,
		"meta":   map[string]any{"total": total},
	})
}

func (s *Server) getCrate(w http.ResponseWriter, r *http.Request) {
	c := s.crateOr404(w, r)
	if c == nil {
		return
	}

	include := map[string]bool{}
	if raw, ok := r.URL.Query()["include"]; ok {
		for _, part := range strings.Split(strings.Join(raw, ","), ",") {
			include[part] = true
		}
	} else {
		for _, part := range []string{"versions", "keywords", "categories", "default_version"} {
			include[part] = true
		}
	}

	versions, err := s.store.VersionsOfCrate(c.ID)
	if err != nil {
		s.internalError(w, err)
		return
	}
	// The crate record keeps its version id list in id order; only the
	// side-loaded versions array is sorted by semver precedence.
	c.Versions = versions
	sorted := make([]store.Version, len(versions))
	copy(sorted, versions)
	query.SortSemver(sorted, func(v store.Version) string { return v.Num })

	out, err := detailCrateJSON(c)
	if err != nil {
		s.internalError(w, err)
		return
	}

	body := map[string]any{}

	sideload := sorted
	if !include["versions"] {
		out.Versions = nil
		sideload = nil
		if include["default_version"] {
			if def := defaultVersion(versions); def != nil {
				sideload = []store.Version{*def}
			}
		}
	}
	versionsOut := make([]versionJSON, 0, len(sideload))
	for i := range sideload {
		versionsOut = append(versionsOut, wireVersionJSON(&sideload[i], c.Name, true))
	}
	body["versions"] = versionsOut

	categoriesOut := make([]categoryJSON, 0, len(c.Categories))
	if include["categories"] {
		for i := range c.Categories {
			j, err := s.categoryWireJSON(&c.Categories[i])
			if err != nil {
				s.internalError(w, err)
				return
			}
			categoriesOut = append(categoriesOut, j)
		}
	} else {
		out.Categories = nil
	}
	body["categories"] = categoriesOut

	keywordsOut := make([]keywordJSON, 0, len(c.Keywords))
	if include["keywords"] {
		for i := range c.Keywords {
			j, err := s.keywordWireJSON(&c.Keywords[i])
			if err != nil {
				s.internalError(w, err)
				return
			}
			keywordsOut = append(keywordsOut, j)
		}
	} else {
		out.Keywords = nil
	}
	body["keywords"] = keywordsOut

	body["crate"] = out
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) listVersions(w http.ResponseWriter, r *http.Request) {
	c := s.crateOr404(w, r)
	if c == nil {
		return
	}
	params := r.URL.Query()

	versions, err := s.store.VersionsOfCrate(c.ID)
	if err != nil {
		s.internalError(w, err)
		return
	}
	if nums := params["nums[]"]; len(nums) > 0 {
		wanted := map[string]bool{}
		for _, num := range nums {
			wanted[num] = true
		}
		kept := versions[:0]
		for _, v := range versions {
			if wanted[v.Num] {
				kept = append(kept, v)
			}
		}
		versions = kept
	}

	sortName := params.Get("sort")
	if sortName != "date" {
		sortName = "semver"
	}
	if sortName == "date" {
		query.SortByDate(versions,
			func(v store.Version) string { return v.CreatedAt },
			func(v store.Version) int64 { return v.ID })
	} else {
		query.SortSemver(versions, func(v store.Version) string { return v.Num })
	}

	total := len(versions)
	page, next, err := query.SeekPage(versions,
		func(v store.Version) string { return v.Num },
		params, sortName, c.Name)
	if err != nil {
		writeError(w, http.StatusBadRequest, detailInvalidSeek)
		return
	}

	out := make([]versionJSON, 0, len(page))
	for i := range page {
		out = append(out, wireVersionJSON(&page[i], c.Name, false))
	}

	meta := map[string]any{"total": total, "next_page": next}
	if strings.Contains(params.Get("include"), "release_tracks") {
		meta["release_tracks"] = releaseTracks(versions)
	}
	writeJSON(w, http.StatusOK, map[string]any{"versions": out, "meta": meta})
}

func (s *Server) getCrateDownloads(w http.ResponseWriter, r *http.Request) {
	c := s.crateOr404(w, r)
	if c == nil {
		return
	}

	versions, err := s.store.VersionsOfCrate(c.ID)
	if err != nil {
		s.internalError(w, err)
		return
	}
	ids := make([]int64, 0, len(versions))
	for _, v := range versions {
		ids = append(ids, v.ID)
	}
	downloads, err := s.store.DownloadsForVersions(ids)
	if err != nil {
		s.internalError(w, err)
		return
	}

	out := make([]versionDownloadJSON, 0, len(downloads))
	for i := range downloads {
		out = append(out, wireVersionDownloadJSON(&downloads[i]))
	}
	extra := c.ExtraDownloads
	if extra == nil {
		extra = store.ExtraDownloadList{}
	}
	body := map[string]any{
		"version_downloads": out,
		"meta":              map[string]any{"extra_downloads": extra},
	}

	if strings.Contains(r.URL.Query().Get("include"), "versions") {
		with := map[int64]bool{}
		for _, d := range downloads {
			with[d.VersionID] = true
		}
		versionsOut := []versionJSON{}
		for i := range versions {
			if with[versions[i].ID] {
				versionsOut = append(versionsOut, wireVersionJSON(&versions[i], c.Name, true))
			}
		}
		body["versions"] = versionsOut
	}

	writeJSON(w, http.StatusOK, body)
}

func (s *Server) listReverseDependencies(w http.ResponseWriter, r *http.Request) {
	c := s.crateOr404(w, r)
	if c == nil {
		return
	}

	deps, err := s.store.ReverseDependencies(c.ID)
	if err != nil {
		s.internalError(w, err)
		return
	}
	// Most-used consumers first, insertion order breaking ties.
	sortReverseDependencies(deps)

	total := len(deps)
	page := query.OffsetPage(deps, query.ParsePagination(r.URL.Query()))

	depsOut := make([]dependencyJSON, 0, len(page))
	versionsOut := make([]versionJSON, 0, len(page))
	for i := range page {
		depsOut = append(depsOut, wireDependencyJSON(&page[i], c.Name))
		v := page[i].Version
		consumer := ""
		if v.Crate != nil {
			consumer = v.Crate.Name
		}
		versionsOut = append(versionsOut, wireVersionJSON(v, consumer, false))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"dependencies": depsOut,
		"versions":     versionsOut,
		"meta":         map[string]any{"total": total},
	})
}

func sortReverseDependencies(deps []store.Dependency) {
	key := func(d *store.Dependency) (int, int64) {
		if d.Version == nil || d.Version.Crate == nil {
			return 0, 0
		}
		return d.Version.Crate.Downloads, d.Version.Crate.ID
	}
	sort.SliceStable(deps, func(i, j int) bool {
		di, ii := key(&deps[i])
		dj, ij := key(&deps[j])
		if di != dj {
			return di > dj
		}
		return ii < ij
	})
}

func (s *Server) followCrate(w http.ResponseWriter, r *http.Request) {
	user := s.requireUser(w)
	if user == nil {
		return
	}
	c := s.crateOr404(w, r)
	if c == nil {
		return
	}
	if err := s.store.FollowCrate(user.ID, c.ID); err != nil {
		s.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) unfollowCrate(w http.ResponseWriter, r *http.Request) {
	user := s.requireUser(w)
	if user == nil {
		return
	}
	c := s.crateOr404(w, r)
	if c == nil {
		return
	}
	if err := s.store.UnfollowCrate(user.ID, c.ID); err != nil {
		s.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) getFollowing(w http.ResponseWriter, r *http.Request) {
	user := s.requireUser(w)
	if user == nil {
		return
	}
	c := s.crateOr404(w, r)
	if c == nil {
		return
	}
	following, err := s.store.IsFollowing(user.ID, c.ID)
	if err != nil {
		s.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"following": following})
}

func (s *Server) listOwnerUsers(w http.ResponseWriter, r *http.Request) {
	c := s.crateOr404(w, r)
	if c == nil {
		return
	}
	ownerships, err := s.store.OwnershipsOfCrate(c.ID)
	if err != nil {
		s.internalError(w, err)
		return
	}
	users := []userJSON{}
	for i := range ownerships {
		if ownerships[i].User == nil {
			continue
		}
		j := publicUserJSON(ownerships[i].User)
		j.Kind = "user"
		users = append(users, j)
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (s *Server) listOwnerTeams(w http.ResponseWriter, r *http.Request) {
	c := s.crateOr404(w, r)
	if c == nil {
		return
	}
	ownerships, err := s.store.OwnershipsOfCrate(c.ID)
	if err != nil {
		s.internalError(w, err)
		return
	}
	teams := []teamJSON{}
	for i := range ownerships {
		if ownerships[i].Team == nil {
			continue
		}
		j := wireTeamJSON(ownerships[i].Team)
		j.Kind = "team"
		teams = append(teams, j)
	}
	writeJSON(w, http.StatusOK, map[string]any{"teams": teams})
}
