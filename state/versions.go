package state

import (
	"sort"
	"strings"

	"golang.org/x/mod/semver"
)

// CanonicalVersion turns a game or mod version ("1.19.8", "v1.20.0-rc.2")
// into the "v"-prefixed form semver expects. It returns "" if the result is
// not a valid semantic version.
func CanonicalVersion(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return ""
	}
	return v
}

// CompareVersions orders a and b semantically. Invalid versions sort below
// valid ones and fall back to plain string order between themselves.
func CompareVersions(a, b string) int {
	ca, cb := CanonicalVersion(a), CanonicalVersion(b)
	switch {
	case ca != "" && cb != "":
		return semver.Compare(ca, cb)
	case ca != "":
		return 1
	case cb != "":
		return -1
	default:
		return strings.Compare(a, b)
	}
}

// SortedGameVersions returns the versions newest first. Insertion order is
// never used for display.
func SortedGameVersions(vs []GameVersion) []GameVersion {
	out := append([]GameVersion(nil), vs...)
	sort.SliceStable(out, func(i, j int) bool {
		return CompareVersions(out[i].Version, out[j].Version) > 0
	})
	return out
}
