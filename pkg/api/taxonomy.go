package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cratesim/cratesim/pkg/query"
	"github.com/cratesim/cratesim/pkg/store"
)

func (s *Server) listCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.store.Categories()
	if err != nil {
		s.internalError(w, err)
		return
	}

	total := len(categories)
	page := query.OffsetPage(categories, query.ParsePagination(r.URL.Query()))

	out := make([]categoryJSON, 0, len(page))
	for i := range page {
		j, err := s.categoryWireJSON(&page[i])
		if err != nil {
			s.internalError(w, err)
			return
		}
		out = append(out, j)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"categories": out,
		"meta":       map[string]any{"total": total},
	})
}

func (s *Server) getCategory(w http.ResponseWriter, r *http.Request) {
	category, err := s.store.CategoryBySlug(chi.URLParam(r, "slug"))
	if err != nil {
		if store.IsNotFound(err) {
			writeNotFound(w)
		} else {
			s.internalError(w, err)
		}
		return
	}
	out, err := s.categoryWireJSON(category)
	if err != nil {
		s.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"category": out})
}

func (s *Server) listCategorySlugs(w http.ResponseWriter, r *http.Request) {
	categories, err := s.store.Categories()
	if err != nil {
		s.internalError(w, err)
		return
	}
	out := make([]categorySlugJSON, 0, len(categories))
	for _, c := range categories {
		out = append(out, categorySlugJSON{Description: c.Description, ID: c.Slug, Slug: c.Slug})
	}
	writeJSON(w, http.StatusOK, map[string]any{"category_slugs": out})
}

func (s *Server) listKeywords(w http.ResponseWriter, r *http.Request) {
	keywords, err := s.store.Keywords()
	if err != nil {
		s.internalError(w, err)
		return
	}

	total := len(keywords)
	page := query.OffsetPage(keywords, query.ParsePagination(r.URL.Query()))

	out := make([]keywordJSON, 0, len(page))
	for i := range page {
		j, err := s.keywordWireJSON(&page[i])
		if err != nil {
			s.internalError(w, err)
			return
		}
		out = append(out, j)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"keywords": out,
		"meta":     map[string]any{"total": total},
	})
}

func (s *Server) getKeyword(w http.ResponseWriter, r *http.Request) {
	keyword, err := s.store.KeywordByID(chi.URLParam(r, "keyword"))
	if err != nil {
		if store.IsNotFound(err) {
			writeNotFound(w)
		} else {
			s.internalError(w, err)
		}
		return
	}
	out, err := s.keywordWireJSON(keyword)
	if err != nil {
		s.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"keyword": out})
}
