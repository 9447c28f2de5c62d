package query

import (
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// SortAlpha orders items ascending by a case-folded string key.
func SortAlpha[T any](items []T, key func(T) string) {
	sort.SliceStable(items, func(i, j int) bool {
		return strings.ToLower(key(items[i])) < strings.ToLower(key(items[j]))
	})
}

// SortByDate orders items newest first. Date strings are RFC 3339, which
// compares correctly as text; ties fall back to descending id so the most
// recently created item wins.
func SortByDate[T any](items []T, date func(T) string, id func(T) int64) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := date(items[i]), date(items[j])
		if a != b {
			return a > b
		}
		return id(items[i]) > id(items[j])
	})
}

// ParseVersion parses a version number loosely. Partial numbers like "1.2"
// are completed with zeros.
func ParseVersion(num string) (*semver.Version, error) {
	return semver.NewVersion(num)
}

// SortSemver orders items by descending semantic-version precedence, so a
// prerelease of the next release sorts ahead of the current release.
// Unparseable numbers stay in the listing but sort last, among themselves
// lexically.
func SortSemver[T any](items []T, num func(T) string) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := num(items[i]), num(items[j])
		va, errA := semver.NewVersion(a)
		vb, errB := semver.NewVersion(b)
		switch {
		case errA == nil && errB == nil:
			if !va.Equal(vb) {
				return va.GreaterThan(vb)
			}
			return a < b
		case errA == nil:
			return true
		case errB == nil:
			return false
		default:
			return a < b
		}
	})
}
