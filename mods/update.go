package mods

import (
	"vslmanager/moddb"
	"vslmanager/state"
)

// LatestRelease picks the newest release compatible with gameVersion. An
// empty gameVersion accepts every release.
func LatestRelease(remote *moddb.Mod, gameVersion string) (moddb.Release, bool) {
	var best moddb.Release
	found := false
	if remote == nil {
		return best, false
	}
	for _, r := range remote.Releases {
		if !r.SupportsGameVersion(gameVersion) {
			continue
		}
		if !found || state.CompareVersions(r.ModVersion, best.ModVersion) > 0 {
			best = r
			found = true
		}
	}
	return best, found
}

// UpdateAvailable compares the installed version with the catalog releases.
// It is evaluated by callers on demand, Scan never sets it.
func UpdateAvailable(mod InstalledMod, gameVersion string) (moddb.Release, bool) {
	latest, ok := LatestRelease(mod.Remote, gameVersion)
	if !ok {
		return moddb.Release{}, false
	}
	if state.CanonicalVersion(latest.ModVersion) == "" || state.CanonicalVersion(mod.Version) == "" {
		return moddb.Release{}, false
	}
	if state.CompareVersions(latest.ModVersion, mod.Version) <= 0 {
		return moddb.Release{}, false
	}
	return latest, true
}
