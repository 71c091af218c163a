package sync

import (
	"strconv"
	"strings"
)

// CompareVersions orders two version tokens. It returns -1, 0 or 1 and
// whether the tokens were comparable at all.
//
// When both tokens parse as base-10 integers they compare numerically;
// otherwise they compare lexicographically, which for the backend's
// RFC3339 updated_at tokens is chronological order. A pair where either
// side is empty is not comparable — callers treat that conservatively as
// updatable, never silently up to date.
func CompareVersions(a, b string) (int, bool) {
	if a == "" || b == "" {
		return 0, false
	}
	ai, aerr := strconv.ParseInt(a, 10, 64)
	bi, berr := strconv.ParseInt(b, 10, 64)
	if aerr == nil && berr == nil {
		switch {
		case ai < bi:
			return -1, true
		case ai > bi:
			return 1, true
		default:
			return 0, true
		}
	}
	return strings.Compare(a, b), true
}
