package moddb

import (
	"strings"
)

type modResponse struct {
	Mod        *Mod   `json:"mod"`
	StatusCode string `json:"statuscode"`
}

// Mod is a catalog entry (simplified).
type Mod struct {
	ModID        int       `json:"modid"`
	AssetID      int       `json:"assetid"`
	Name         string    `json:"name"`
	Text         string    `json:"text"`
	Author       string    `json:"author"`
	URLAlias     string    `json:"urlalias"`
	LogoFile     string    `json:"logofile"`
	HomepageURL  string    `json:"homepageurl"`
	SourceURL    string    `json:"sourcecodeurl"`
	Downloads    int       `json:"downloads"`
	Side         string    `json:"side"`
	Type         string    `json:"type"`
	Created      string    `json:"created"`
	LastModified string    `json:"lastmodified"`
	Tags         []string  `json:"tags"`
	Releases     []Release `json:"releases"`
}

// Release is one downloadable version of a mod.
type Release struct {
	ReleaseID  int      `json:"releaseid"`
	MainFile   string   `json:"mainfile"`
	Filename   string   `json:"filename"`
	FileID     int      `json:"fileid"`
	Downloads  int      `json:"downloads"`
	Tags       []string `json:"tags"` // game versions, e.g. "v1.19.8"
	ModIDStr   string   `json:"modidstr"`
	ModVersion string   `json:"modversion"`
	Created    string   `json:"created"`
}

// SupportsGameVersion reports whether the release is tagged for version.
// An empty version matches every release.
func (r Release) SupportsGameVersion(version string) bool {
	if version == "" {
		return true
	}
	want := strings.TrimPrefix(version, "v")
	for _, tag := range r.Tags {
		if strings.TrimPrefix(tag, "v") == want {
			return true
		}
	}
	return false
}

// FindRelease returns the release with the given id.
func (m *Mod) FindRelease(releaseID int) (Release, bool) {
	if m == nil {
		return Release{}, false
	}
	for _, r := range m.Releases {
		if r.ReleaseID == releaseID {
			return r, true
		}
	}
	return Release{}, false
}
