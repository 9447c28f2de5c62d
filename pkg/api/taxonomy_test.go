package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cratesim/cratesim/pkg/store"
)

func seedTaxonomy(t *testing.T, st *store.Store) {
	t.Helper()
	crate := &store.Crate{
		Name:       "serde",
		Categories: []store.Category{{Name: "Network programming"}, {Name: "Parsing"}},
		Keywords:   []store.Keyword{{Keyword: "serialization"}, {Keyword: "json"}},
	}
	require.NoError(t, st.CreateCrate(crate))
	require.NoError(t, st.CreateVersion(&store.Version{CrateID: crate.ID}))

	other := &store.Crate{
		Name:       "tokio",
		Categories: []store.Category{{Slug: "network-programming"}},
		Keywords:   []store.Keyword{{Keyword: "json"}},
	}
	require.NoError(t, st.CreateCrate(other))
	require.NoError(t, st.CreateVersion(&store.Version{CrateID: other.ID}))
}

func TestListCategories(t *testing.T) {
	s, st := newTestServer(t)
	seedTaxonomy(t, st)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/categories", nil)
	assertStatus(t, rec, http.StatusOK)

	body := decodeBody(t, rec)
	categories := body["categories"].([]any)
	require.Len(t, categories, 2)
	assert.Equal(t, float64(2), body["meta"].(map[string]any)["total"])

	slugs := make([]string, 0, len(categories))
	counts := map[string]float64{}
	for _, raw := range categories {
		c := raw.(map[string]any)
		slugs = append(slugs, c["slug"].(string))
		counts[c["slug"].(string)] = c["crates_cnt"].(float64)
	}
	assert.ElementsMatch(t, []string{"network-programming", "parsing"}, slugs)
	assert.Equal(t, float64(2), counts["network-programming"])
	assert.Equal(t, float64(1), counts["parsing"])
}

func TestListCategoriesPagination(t *testing.T) {
	s, st := newTestServer(t)
	for i := 0; i < 12; i++ {
		require.NoError(t, st.CreateCategory(&store.Category{}))
	}

	rec := doRequest(t, s, http.MethodGet, "/api/v1/categories?page=2&per_page=5", nil)
	body := decodeBody(t, rec)
	assert.Len(t, body["categories"].([]any), 5)
	assert.Equal(t, float64(12), body["meta"].(map[string]any)["total"])
}

func TestGetCategory(t *testing.T) {
	s, st := newTestServer(t)
	seedTaxonomy(t, st)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/categories/nope", nil)
	assertStatus(t, rec, http.StatusNotFound)

	rec = doRequest(t, s, http.MethodGet, "/api/v1/categories/parsing", nil)
	assertStatus(t, rec, http.StatusOK)
	out := decodeBody(t, rec)["category"].(map[string]any)
	assert.Equal(t, "parsing", out["id"])
	assert.Equal(t, "Parsing", out["category"])
	assert.Equal(t, float64(1), out["crates_cnt"])
	assert.NotEmpty(t, out["description"])
}

func TestListCategorySlugs(t *testing.T) {
	s, st := newTestServer(t)
	seedTaxonomy(t, st)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/category_slugs", nil)
	assertStatus(t, rec, http.StatusOK)
	slugs := decodeBody(t, rec)["category_slugs"].([]any)
	require.Len(t, slugs, 2)
	first := slugs[0].(map[string]any)
	assert.Equal(t, first["id"], first["slug"])
	assert.NotEmpty(t, first["description"])
}

func TestListKeywords(t *testing.T) {
	s, st := newTestServer(t)
	seedTaxonomy(t, st)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/keywords", nil)
	assertStatus(t, rec, http.StatusOK)
	body := decodeBody(t, rec)
	keywords := body["keywords"].([]any)
	require.Len(t, keywords, 2)
	assert.Equal(t, float64(2), body["meta"].(map[string]any)["total"])
}

func TestGetKeyword(t *testing.T) {
	s, st := newTestServer(t)
	seedTaxonomy(t, st)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/keywords/nope", nil)
	assertStatus(t, rec, http.StatusNotFound)

	rec = doRequest(t, s, http.MethodGet, "/api/v1/keywords/json", nil)
	assertStatus(t, rec, http.StatusOK)
	out := decodeBody(t, rec)["keyword"].(map[string]any)
	assert.Equal(t, "json", out["id"])
	assert.Equal(t, "json", out["keyword"])
	assert.Equal(t, float64(2), out["crates_cnt"])
}

func TestListCratesByCategoryAndKeyword(t *testing.T) {
	s, st := newTestServer(t)
	seedTaxonomy(t, st)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/crates?category=parsing", nil)
	assertStatus(t, rec, http.StatusOK)
	assert.Equal(t, []string{"serde"}, crateNames(t, decodeBody(t, rec)))

	rec = doRequest(t, s, http.MethodGet, "/api/v1/crates?keyword=json", nil)
	assertStatus(t, rec, http.StatusOK)
	assert.Equal(t, []string{"serde", "tokio"}, crateNames(t, decodeBody(t, rec)))
}
