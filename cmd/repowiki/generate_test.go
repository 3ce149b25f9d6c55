package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julianshen/repowiki/internal/cache"
	"github.com/julianshen/repowiki/internal/config"
	"github.com/julianshen/repowiki/internal/wiki"
)

func TestGenerateCmdExists(t *testing.T) {
	cmd := generateCmd()
	require.NotNil(t, cmd)
	assert.Equal(t, "generate <repository>", cmd.Use)
}

func TestGenerateCmdDefaultFlags(t *testing.T) {
	cmd := generateCmd()

	export, _ := cmd.Flags().GetString("export")
	assert.Empty(t, export)

	noProgress, _ := cmd.Flags().GetBool("no-progress")
	assert.False(t, noProgress)
}

func TestExportCmdDefaultFlags(t *testing.T) {
	cmd := exportCmd()

	format, _ := cmd.Flags().GetString("format")
	assert.Equal(t, "markdown", format)

	output, _ := cmd.Flags().GetString("output")
	assert.Empty(t, output)
}

func TestShowCmdExists(t *testing.T) {
	cmd := showCmd()
	require.NotNil(t, cmd)
	assert.Equal(t, "show <repository> [page-id]", cmd.Use)
}

func TestBuildCacheOff(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Cache.Mode = "off"

	gateway, closeFn, err := buildCache(cfg)
	require.NoError(t, err)
	assert.Nil(t, gateway)
	closeFn()
}

func TestBuildCacheLocalRoundTrip(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Cache.Mode = "local"
	cfg.Cache.Path = filepath.Join(t.TempDir(), "cache.db")

	gateway, closeFn, err := buildCache(cfg)
	require.NoError(t, err)
	defer closeFn()

	key := cache.Key{Owner: "acme", Repo: "demo", Platform: wiki.PlatformGitHub, Language: "en"}
	entry := &cache.Entry{
		Structure: &wiki.Structure{
			ID:    "acme/demo",
			Title: "Demo",
			Pages: []wiki.PageSpec{{ID: "page-1", Title: "Overview"}},
		},
		Pages: map[string]*wiki.PageContent{
			"page-1": {PageID: "page-1", Markdown: "# Overview", Status: wiki.StatusDone},
		},
	}
	require.NoError(t, gateway.Save(context.Background(), key, entry))

	got, ok, err := gateway.Lookup(context.Background(), key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Demo", got.Structure.Title)
}

func TestBuildCacheUnknownMode(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Cache.Mode = "redis"

	_, _, err := buildCache(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis")
}

func TestBuildStackWiresComponents(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Cache.Mode = "off"

	s, err := buildStack(cfg, wiki.RepoRef{Owner: "acme", Repo: "demo", Platform: wiki.PlatformGitHub})
	require.NoError(t, err)
	defer s.close()

	require.NotNil(t, s.controller)
	assert.NotNil(t, s.controller.Fetcher)
	assert.NotNil(t, s.controller.Planner)
	assert.NotNil(t, s.controller.Scheduler)
	assert.NotNil(t, s.controller.Exporter)
	assert.Nil(t, s.controller.Cache)
	assert.Same(t, s.scheduler, s.controller.Scheduler)
}

func TestBuildParamsCarriesGeneratorSettings(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Generator.Provider = "openai"
	cfg.Generator.Model = "gpt-4o"
	cfg.Generator.Language = "ja"
	cfg.Generator.Comprehensive = true

	params := buildParams(cfg, wiki.RepoRef{Platform: wiki.PlatformGitHub, Token: "tok"})
	assert.Equal(t, "openai", params.Provider)
	assert.Equal(t, "gpt-4o", params.Model)
	assert.Equal(t, "ja", params.Language)
	assert.True(t, params.Comprehensive)
	assert.Equal(t, "tok", params.Token)
	assert.Empty(t, params.ExcludedDirs)
}

func TestBuildParamsLoadsLocalFilters(t *testing.T) {
	dir := t.TempDir()
	filterFile := filepath.Join(dir, config.FilterFileName)
	require.NoError(t, os.WriteFile(filterFile, []byte("excluded_dirs:\n  - vendor\nexcluded_files:\n  - \"*.lock\"\n"), 0o644))

	params := buildParams(config.DefaultConfig(), wiki.RepoRef{Platform: wiki.PlatformLocal, LocalPath: dir})
	assert.Equal(t, []string{"vendor"}, params.ExcludedDirs)
	assert.Equal(t, []string{"*.lock"}, params.ExcludedFiles)
}
