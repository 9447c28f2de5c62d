package query

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/url"
	"strconv"
)

const (
	// DefaultPage is used when page is not specified.
	DefaultPage = 1
	// DefaultPerPage is used when per_page is not specified.
	DefaultPerPage = 10
)

// ErrBadSeek is returned when a seek token cannot be decoded or was issued
// for a different sort order or filter set.
var ErrBadSeek = errors.New("invalid seek parameter")

// Pagination holds the parsed offset-pagination parameters of a request.
type Pagination struct {
	Page    int
	PerPage int
}

// ParsePagination extracts page and per_page from a query string, falling
// back to the defaults for missing or unusable values.
func ParsePagination(q url.Values) Pagination {
	p := Pagination{Page: DefaultPage, PerPage: DefaultPerPage}
	if v := q.Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			p.Page = n
		}
	}
	if v := q.Get("per_page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			p.PerPage = n
		}
	}
	return p
}

// OffsetPage slices one page out of a sorted result set.
func OffsetPage[T any](items []T, p Pagination) []T {
	start := (p.Page - 1) * p.PerPage
	if start >= len(items) {
		return nil
	}
	end := start + p.PerPage
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

// cursor is the decoded form of a seek token. The token carries the sort
// key of the last item seen plus the sort order and a fingerprint of the
// active filters, so a cursor issued for one listing cannot be replayed
// against another.
type cursor struct {
	Key    string `json:"k"`
	Sort   string `json:"s"`
	Filter string `json:"f,omitempty"`
}

// EncodeSeek builds the opaque seek token for a sort key.
func EncodeSeek(key, sortName, filter string) string {
	raw, _ := json.Marshal(cursor{Key: key, Sort: sortName, Filter: filter})
	return base64.RawURLEncoding.EncodeToString(raw)
}

// DecodeSeek recovers the sort key from a seek token, rejecting tokens
// issued under a different sort order or filter set.
func DecodeSeek(token, sortName, filter string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", ErrBadSeek
	}
	var c cursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return "", ErrBadSeek
	}
	if c.Sort != sortName || c.Filter != filter {
		return "", ErrBadSeek
	}
	return c.Key, nil
}

// SeekPage returns the page following the request's seek cursor, plus the
// next_page continuation (the request's query string with seek replaced),
// or nil once the set is exhausted. The key accessor must be unique within
// the sorted set; seeking keys the page on a value rather than an index, so
// forward traversal never repeats an item even when earlier items are
// inserted between calls.
func SeekPage[T any](items []T, key func(T) string, params url.Values, sortName, filter string) ([]T, *string, error) {
	perPage := DefaultPerPage
	if v := params.Get("per_page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			perPage = n
		}
	}

	start := 0
	if token := params.Get("seek"); token != "" {
		seen, err := DecodeSeek(token, sortName, filter)
		if err != nil {
			return nil, nil, err
		}
		for i, item := range items {
			if key(item) == seen {
				start = i + 1
				break
			}
		}
	}

	end := start + perPage
	if end > len(items) {
		end = len(items)
	}
	page := items[start:end]

	// A partially filled page means the set is exhausted. A full page
	// yields a continuation even when nothing follows yet; the next call
	// returns an empty page and ends the walk.
	if len(page) < perPage {
		return page, nil, nil
	}

	next := url.Values{}
	for k, vs := range params {
		if k == "seek" {
			continue
		}
		next[k] = vs
	}
	next.Set("seek", EncodeSeek(key(page[len(page)-1]), sortName, filter))
	nextPage := "?" + next.Encode()
	return page, &nextPage, nil
}
