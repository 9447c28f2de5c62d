package query

import (
	"fmt"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePaginationDefaults(t *testing.T) {
	p := ParsePagination(url.Values{})
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 10, p.PerPage)

	p = ParsePagination(url.Values{"page": {"3"}, "per_page": {"25"}})
	assert.Equal(t, 3, p.Page)
	assert.Equal(t, 25, p.PerPage)

	p = ParsePagination(url.Values{"page": {"zero"}, "per_page": {"-1"}})
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 10, p.PerPage)
}

func TestOffsetPage(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	assert.Equal(t, []int{1, 2}, OffsetPage(items, Pagination{Page: 1, PerPage: 2}))
	assert.Equal(t, []int{3, 4}, OffsetPage(items, Pagination{Page: 2, PerPage: 2}))
	assert.Equal(t, []int{5}, OffsetPage(items, Pagination{Page: 3, PerPage: 2}))
	assert.Empty(t, OffsetPage(items, Pagination{Page: 4, PerPage: 2}))
}

func TestSeekRoundTrip(t *testing.T) {
	token := EncodeSeek("1.1.0", "semver", "crate=rand")

	key, err := DecodeSeek(token, "semver", "crate=rand")
	require.NoError(t, err)
	assert.Equal(t, "1.1.0", key)

	_, err = DecodeSeek(token, "date", "crate=rand")
	assert.ErrorIs(t, err, ErrBadSeek)

	_, err = DecodeSeek(token, "semver", "crate=serde")
	assert.ErrorIs(t, err, ErrBadSeek)

	_, err = DecodeSeek("not base64!", "semver", "crate=rand")
	assert.ErrorIs(t, err, ErrBadSeek)
}

// Following every next_page continuation must visit each item exactly
// once, in order, and end with a nil continuation.
func TestSeekPageWalksEveryItemOnce(t *testing.T) {
	var items []string
	for i := 0; i < 7; i++ {
		items = append(items, fmt.Sprintf("item-%d", i))
	}

	params := url.Values{"per_page": {"3"}}
	var visited []string
	for calls := 0; calls < 10; calls++ {
		page, next, err := SeekPage(items, func(s string) string { return s }, params, "alpha", "")
		require.NoError(t, err)
		visited = append(visited, page...)
		if next == nil {
			break
		}
		parsed, err := url.ParseQuery((*next)[1:])
		require.NoError(t, err)
		assert.Equal(t, "3", parsed.Get("per_page"))
		params = parsed
	}
	assert.Equal(t, items, visited)
}

// The concatenation of all seek pages equals the offset-paginated listing.
func TestSeekMatchesOffset(t *testing.T) {
	var items []string
	for i := 0; i < 23; i++ {
		items = append(items, fmt.Sprintf("%03d", i))
	}

	var offset []string
	for page := 1; ; page++ {
		p := OffsetPage(items, Pagination{Page: page, PerPage: 5})
		if len(p) == 0 {
			break
		}
		offset = append(offset, p...)
	}

	var seek []string
	params := url.Values{"per_page": {"5"}}
	for {
		page, next, err := SeekPage(items, func(s string) string { return s }, params, "alpha", "")
		require.NoError(t, err)
		seek = append(seek, page...)
		if next == nil {
			break
		}
		parsed, err := url.ParseQuery((*next)[1:])
		require.NoError(t, err)
		params = parsed
	}

	assert.Equal(t, offset, seek)
}

func TestSeekPageFullFinalPageEndsWithEmptyPage(t *testing.T) {
	items := []string{"a", "b"}
	params := url.Values{"per_page": {"2"}}

	page, next, err := SeekPage(items, func(s string) string { return s }, params, "alpha", "")
	require.NoError(t, err)
	assert.Equal(t, items, page)
	require.NotNil(t, next)

	parsed, err := url.ParseQuery((*next)[1:])
	require.NoError(t, err)
	page, next, err = SeekPage(items, func(s string) string { return s }, parsed, "alpha", "")
	require.NoError(t, err)
	assert.Empty(t, page)
	assert.Nil(t, next)
}

func TestSeekPageRejectsForeignCursor(t *testing.T) {
	items := []string{"a", "b", "c"}
	params := url.Values{"seek": {EncodeSeek("a", "date", "")}}

	_, _, err := SeekPage(items, func(s string) string { return s }, params, "alpha", "")
	assert.ErrorIs(t, err, ErrBadSeek)
}
