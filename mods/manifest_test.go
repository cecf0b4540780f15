package mods

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vslmanager/moddb"
)

func TestParseManifest(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		modid   string
		wantErr bool
	}{
		{"plain", `{"modid":"carryon","name":"Carry On","version":"1.7.0"}`, "carryon", false},
		{"capitalised keys", `{"ModID":"carryon","Name":"Carry On","Version":"1.7.0"}`, "carryon", false},
		{"trailing commas", `{"modid":"a","version":"1.0.0","authors":["x","y",],}`, "a", false},
		{"comma inside string kept", `{"modid":"a","name":"x, }","version":"1.0.0"}`, "a", false},
		{"modid from name", `{"name":"Better Ruins!","version":"0.4.0"}`, "betterruins", false},
		{"missing version", `{"modid":"a"}`, "", true},
		{"missing everything", `{}`, "", true},
		{"garbage", `this is not json`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := ParseManifest([]byte(tt.input))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidManifest)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.modid, m.ModID)
			assert.NotEmpty(t, m.Name)
		})
	}
}

func TestParseManifestKeepsCommaInString(t *testing.T) {
	m, err := ParseManifest([]byte(`{"modid":"a","name":"x, }","version":"1.0.0",}`))
	require.NoError(t, err)
	assert.Equal(t, "x, }", m.Name)
}

func TestUpdateAvailable(t *testing.T) {
	remote := &moddb.Mod{Releases: []moddb.Release{
		{ReleaseID: 3, ModVersion: "2.0.0", Tags: []string{"v1.20.0"}},
		{ReleaseID: 2, ModVersion: "1.8.0", Tags: []string{"v1.19.8"}},
		{ReleaseID: 1, ModVersion: "1.7.0", Tags: []string{"v1.19.8"}},
	}}

	tests := []struct {
		name        string
		installed   string
		gameVersion string
		remote      *moddb.Mod
		wantRelease int
		wantOK      bool
	}{
		{"newer compatible release", "1.7.0", "1.19.8", remote, 2, true},
		{"already latest for game", "1.8.0", "1.19.8", remote, 0, false},
		{"any game version", "1.8.0", "", remote, 3, true},
		{"no catalog data", "1.0.0", "1.19.8", nil, 0, false},
		{"unparseable installed version", "beta", "1.19.8", remote, 0, false},
		{"no compatible release", "1.0.0", "1.21.0", remote, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, ok := UpdateAvailable(InstalledMod{Version: tt.installed, Remote: tt.remote}, tt.gameVersion)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantRelease, r.ReleaseID)
		})
	}
}
