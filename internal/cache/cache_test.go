package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julianshen/repowiki/internal/wiki"
)

func sampleEntry() *Entry {
	return &Entry{
		Structure: &wiki.Structure{
			Title: "Demo Wiki",
			Pages: []wiki.PageSpec{{ID: "page-1", Title: "Overview", Importance: wiki.ImportanceHigh}},
		},
		Pages: map[string]*wiki.PageContent{
			"page-1": {PageID: "page-1", Markdown: "# Overview\n", Status: wiki.StatusDone},
		},
	}
}

func sampleKey() Key {
	return Key{Owner: "acme", Repo: "demo", Platform: wiki.PlatformGitHub, Language: "en", Comprehensive: true}
}

func TestRemoteGatewayHit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/wiki_cache", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "acme", q.Get("owner"))
		assert.Equal(t, "demo", q.Get("repo"))
		assert.Equal(t, "github", q.Get("repo_type"))
		assert.Equal(t, "en", q.Get("language"))
		assert.Equal(t, "true", q.Get("comprehensive"))
		json.NewEncoder(w).Encode(sampleEntry())
	}))
	defer srv.Close()

	g := NewRemoteGateway(srv.URL, srv.Client())
	entry, ok, err := g.Lookup(context.Background(), sampleKey())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Demo Wiki", entry.Structure.Title)
	assert.Equal(t, wiki.StatusDone, entry.Pages["page-1"].Status)
}

func TestRemoteGatewayEmptyBodyIsMiss(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	g := NewRemoteGateway(srv.URL, srv.Client())
	_, ok, err := g.Lookup(context.Background(), sampleKey())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRemoteGatewayServerErrorIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	g := NewRemoteGateway(srv.URL, srv.Client())
	_, ok, err := g.Lookup(context.Background(), sampleKey())
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestRemoteGatewaySave(t *testing.T) {
	var saved map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&saved))
	}))
	defer srv.Close()

	g := NewRemoteGateway(srv.URL, srv.Client())
	require.NoError(t, g.Save(context.Background(), sampleKey(), sampleEntry()))
	assert.Equal(t, "acme", saved["owner"])
	assert.Equal(t, "github", saved["repo_type"])
	assert.NotNil(t, saved["wiki_structure"])
}

func TestMemoryGatewayAvoidsSecondRemoteCall(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode(sampleEntry())
	}))
	defer srv.Close()

	g, err := NewMemoryGateway(NewRemoteGateway(srv.URL, srv.Client()), 1<<20)
	require.NoError(t, err)
	defer g.Close()

	for i := 0; i < 3; i++ {
		entry, ok, err := g.Lookup(context.Background(), sampleKey())
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "Demo Wiki", entry.Structure.Title)
	}
	assert.Equal(t, 1, calls)
}

func TestMemoryGatewayClampsTinyBudget(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(sampleEntry())
	}))
	defer srv.Close()

	// A budget below what ristretto accepts must still yield a working
	// layer rather than a construction error.
	for _, budget := range []int64{0, 10, 99} {
		g, err := NewMemoryGateway(NewRemoteGateway(srv.URL, srv.Client()), budget)
		require.NoError(t, err, "budget %d", budget)

		entry, ok, err := g.Lookup(context.Background(), sampleKey())
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "Demo Wiki", entry.Structure.Title)
		g.Close()
	}
}

func TestSQLiteGatewayRoundTrip(t *testing.T) {
	g, err := NewSQLiteGateway(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	defer g.Close()

	key := sampleKey()

	_, ok, err := g.Lookup(context.Background(), key)
	require.NoError(t, err)
	assert.False(t, ok, "cold cache must miss")

	require.NoError(t, g.Save(context.Background(), key, sampleEntry()))

	entry, ok, err := g.Lookup(context.Background(), key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Demo Wiki", entry.Structure.Title)

	// Different comprehensive flag is a different key.
	other := key
	other.Comprehensive = false
	_, ok, err = g.Lookup(context.Background(), other)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLiteGatewayOverwrite(t *testing.T) {
	g, err := NewSQLiteGateway(":memory:")
	require.NoError(t, err)
	defer g.Close()

	key := sampleKey()
	require.NoError(t, g.Save(context.Background(), key, sampleEntry()))

	updated := sampleEntry()
	updated.Structure.Title = "Updated Wiki"
	require.NoError(t, g.Save(context.Background(), key, updated))

	entry, ok, err := g.Lookup(context.Background(), key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Updated Wiki", entry.Structure.Title)
}

func TestEntryEmpty(t *testing.T) {
	assert.True(t, (*Entry)(nil).Empty())
	assert.True(t, (&Entry{}).Empty())
	assert.True(t, (&Entry{Structure: &wiki.Structure{}}).Empty())
	assert.False(t, sampleEntry().Empty())
}

func TestKeyString(t *testing.T) {
	assert.Equal(t, "github/acme/demo/en/true", sampleKey().String())
	assert.Equal(t, fmt.Sprintf("%s/a/b//false", wiki.PlatformLocal), Key{Owner: "a", Repo: "b", Platform: wiki.PlatformLocal}.String())
}
