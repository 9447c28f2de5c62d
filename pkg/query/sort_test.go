package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSortAlphaFoldsCase(t *testing.T) {
	items := []string{"Tokio", "anyhow", "Serde"}
	SortAlpha(items, func(s string) string { return s })
	assert.Equal(t, []string{"anyhow", "Serde", "Tokio"}, items)
}

type stamped struct {
	id   int64
	date string
}

func TestSortByDateNewestFirst(t *testing.T) {
	items := []stamped{
		{id: 1, date: "2010-06-16T21:30:45Z"},
		{id: 2, date: "2017-02-24T12:34:56Z"},
		{id: 3, date: "2010-06-16T21:30:45Z"},
	}
	SortByDate(items, func(s stamped) string { return s.date }, func(s stamped) int64 { return s.id })
	assert.Equal(t, []int64{2, 3, 1}, []int64{items[0].id, items[1].id, items[2].id})
}

func TestSortSemver(t *testing.T) {
	nums := []string{"1.0.0", "2.0.0-alpha", "1.1.0"}
	SortSemver(nums, func(s string) string { return s })
	assert.Equal(t, []string{"2.0.0-alpha", "1.1.0", "1.0.0"}, nums)
}

func TestSortSemverUnparseableLast(t *testing.T) {
	nums := []string{"not-a-version", "0.4.0", "also bad", "0.4.1"}
	SortSemver(nums, func(s string) string { return s })
	assert.Equal(t, []string{"0.4.1", "0.4.0", "also bad", "not-a-version"}, nums)
}

func TestParseVersionLoose(t *testing.T) {
	v, err := ParseVersion("1.2")
	require.NoError(t, err)
	assert.Equal(t, "1.2.0", v.String())

	v, err = ParseVersion("2.0.0-beta.1")
	require.NoError(t, err)
	assert.Equal(t, "beta.1", v.Prerelease())

	_, err = ParseVersion("not-a-version")
	assert.Error(t, err)
}
