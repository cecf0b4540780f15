package moddb

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vslmanager/config"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(config.Config{
		ModDBURL:       srv.URL,
		UserAgent:      "vslmanager-test",
		CatalogTimeout: 200 * time.Millisecond,
	}, nil)
	require.NoError(t, err)
	return c, srv
}

func TestNewClientRequiresUserAgent(t *testing.T) {
	_, err := NewClient(config.Config{ModDBURL: "http://example.invalid"}, nil)
	assert.Error(t, err)
}

func TestQueryByModID(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/mod/carryon", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "vslmanager-test", r.Header.Get("User-Agent"))
		w.Write([]byte(`{"statuscode":"200","mod":{"modid":12,"name":"Carry On","releases":[
			{"releaseid":2,"modversion":"1.8.0","filename":"carryon_1.8.0.zip","mainfile":"http://x/2","tags":["v1.19.8"]},
			{"releaseid":1,"modversion":"1.7.0","filename":"carryon_1.7.0.zip","mainfile":"http://x/1","tags":["v1.18.0"]}
		]}}`))
	})
	mux.HandleFunc("/api/mod/missing", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"statuscode":"404"}`))
	})
	mux.HandleFunc("/api/mod/broken", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	mux.HandleFunc("/api/mod/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	})
	c, _ := newTestClient(t, mux)
	ctx := context.Background()

	mod, err := c.QueryByModID(ctx, "carryon")
	require.NoError(t, err)
	assert.Equal(t, "Carry On", mod.Name)
	require.Len(t, mod.Releases, 2)
	assert.True(t, mod.Releases[0].SupportsGameVersion("1.19.8"))
	assert.False(t, mod.Releases[1].SupportsGameVersion("1.19.8"))

	r, ok := mod.FindRelease(1)
	require.True(t, ok)
	assert.Equal(t, "1.7.0", r.ModVersion)

	for _, id := range []string{"missing", "broken", "slow", ""} {
		_, err := c.QueryByModID(ctx, id)
		assert.ErrorIs(t, err, ErrCatalogUnavailable, id)
	}
}

func TestDownloadModFile(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/files/mod.zip", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("zip-bytes"))
	})
	mux.HandleFunc("/files/gone.zip", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	c, srv := newTestClient(t, mux)
	dir := filepath.Join(t.TempDir(), "Mods")
	ctx := context.Background()

	dest := filepath.Join(dir, "mod.zip")
	require.NoError(t, c.DownloadModFile(ctx, dest, srv.URL+"/files/mod.zip"))
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "zip-bytes", string(data))

	err = c.DownloadModFile(ctx, filepath.Join(dir, "gone.zip"), srv.URL+"/files/gone.zip")
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "failed download must not leave files behind")
	assert.Equal(t, "mod.zip", entries[0].Name())
}
