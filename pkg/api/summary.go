package api

import (
	"net/http"
	"sort"

	"github.com/cratesim/cratesim/pkg/store"
)

const frontPageSize = 10

// getSummary assembles the front-page lists. Every list is capped at ten
// entries and serialized in the listing shape.
func (s *Server) getSummary(w http.ResponseWriter, r *http.Request) {
	crates, err := s.store.ListCrates(store.CrateFilter{})
	if err != nil {
		s.internalError(w, err)
		return
	}

	serialize := func(in []store.Crate) ([]crateJSON, error) {
		if len(in) > frontPageSize {
			in = in[:frontPageSize]
		}
		out := make([]crateJSON, 0, len(in))
		for i := range in {
			j, err := baseCrateJSON(&in[i])
			if err != nil {
				return nil, err
			}
			out = append(out, j)
		}
		return out, nil
	}

	sorted := func(less func(a, b *store.Crate) bool) []store.Crate {
		cp := make([]store.Crate, len(crates))
		copy(cp, crates)
		sort.SliceStable(cp, func(i, j int) bool { return less(&cp[i], &cp[j]) })
		return cp
	}

	justUpdated := sorted(func(a, b *store.Crate) bool {
		if a.UpdatedAt != b.UpdatedAt {
			return a.UpdatedAt > b.UpdatedAt
		}
		return a.ID < b.ID
	})
	mostDownloaded := sorted(func(a, b *store.Crate) bool {
		return a.Downloads > b.Downloads
	})
	mostRecent := sorted(func(a, b *store.Crate) bool {
		return a.RecentDownloads > b.RecentDownloads
	})
	newCrates := sorted(func(a, b *store.Crate) bool {
		return a.ID > b.ID
	})

	numCrates, err := s.store.CrateCount()
	if err != nil {
		s.internalError(w, err)
		return
	}
	numDownloads, err := s.store.SumCrateDownloads()
	if err != nil {
		s.internalError(w, err)
		return
	}

	categories, err := s.store.Categories()
	if err != nil {
		s.internalError(w, err)
		return
	}
	popularCategories := make([]categoryJSON, 0, frontPageSize)
	for i := range categories {
		j, err := s.categoryWireJSON(&categories[i])
		if err != nil {
			s.internalError(w, err)
			return
		}
		popularCategories = append(popularCategories, j)
	}
	sort.SliceStable(popularCategories, func(i, j int) bool {
		return popularCategories[i].CratesCnt > popularCategories[j].CratesCnt
	})
	if len(popularCategories) > frontPageSize {
		popularCategories = popularCategories[:frontPageSize]
	}

	keywords, err := s.store.Keywords()
	if err != nil {
		s.internalError(w, err)
		return
	}
	popularKeywords := make([]keywordJSON, 0, frontPageSize)
	for i := range keywords {
		j, err := s.keywordWireJSON(&keywords[i])
		if err != nil {
			s.internalError(w, err)
			return
		}
		popularKeywords = append(popularKeywords, j)
	}
	sort.SliceStable(popularKeywords, func(i, j int) bool {
		return popularKeywords[i].CratesCnt > popularKeywords[j].CratesCnt
	})
	if len(popularKeywords) > frontPageSize {
		popularKeywords = popularKeywords[:frontPageSize]
	}

	body := map[string]any{"num_crates": numCrates, "num_downloads": numDownloads}
	for key, in := range map[string][]store.Crate{
		"just_updated":             justUpdated,
		"most_downloaded":          mostDownloaded,
		"most_recently_downloaded": mostRecent,
		"new_crates":               newCrates,
	} {
		out, err := serialize(in)
		if err != nil {
			s.internalError(w, err)
			return
		}
		body[key] = out
	}
	body["popular_categories"] = popularCategories
	body["popular_keywords"] = popularKeywords

	writeJSON(w, http.StatusOK, body)
}
