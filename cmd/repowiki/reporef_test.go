package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julianshen/repowiki/internal/wiki"
)

func TestParseRepoArgGitHubURL(t *testing.T) {
	ref, err := parseRepoArg("https://github.com/acme/demo", "", "")
	require.NoError(t, err)
	assert.Equal(t, wiki.PlatformGitHub, ref.Platform)
	assert.Equal(t, "acme", ref.Owner)
	assert.Equal(t, "demo", ref.Repo)
	assert.Equal(t, "https://github.com/acme/demo", ref.URL)
}

func TestParseRepoArgStripsGitSuffix(t *testing.T) {
	ref, err := parseRepoArg("https://github.com/acme/demo.git", "", "")
	require.NoError(t, err)
	assert.Equal(t, "demo", ref.Repo)
}

func TestParseRepoArgGitLabSubgroups(t *testing.T) {
	ref, err := parseRepoArg("https://gitlab.com/group/subgroup/demo", "", "")
	require.NoError(t, err)
	assert.Equal(t, wiki.PlatformGitLab, ref.Platform)
	assert.Equal(t, "group/subgroup", ref.Owner)
	assert.Equal(t, "demo", ref.Repo)
}

func TestParseRepoArgSelfHostedGitLab(t *testing.T) {
	ref, err := parseRepoArg("https://gitlab.corp.example.com/team/demo", "", "")
	require.NoError(t, err)
	assert.Equal(t, wiki.PlatformGitLab, ref.Platform)
}

func TestParseRepoArgBitbucket(t *testing.T) {
	ref, err := parseRepoArg("https://bitbucket.org/acme/demo", "", "")
	require.NoError(t, err)
	assert.Equal(t, wiki.PlatformBitbucket, ref.Platform)
}

func TestParseRepoArgUnknownHostNeedsPlatform(t *testing.T) {
	_, err := parseRepoArg("https://git.example.com/acme/demo", "", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--platform")

	ref, err := parseRepoArg("https://git.example.com/acme/demo", "gitlab", "")
	require.NoError(t, err)
	assert.Equal(t, wiki.PlatformGitLab, ref.Platform)
}

func TestParseRepoArgShorthandDefaultsToGitHub(t *testing.T) {
	ref, err := parseRepoArg("acme/demo", "", "")
	require.NoError(t, err)
	assert.Equal(t, wiki.PlatformGitHub, ref.Platform)
	assert.Equal(t, "acme", ref.Owner)
	assert.Equal(t, "demo", ref.Repo)
	assert.Equal(t, "https://github.com/acme/demo", ref.URL)
}

func TestParseRepoArgShorthandWithPlatform(t *testing.T) {
	ref, err := parseRepoArg("acme/demo", "bitbucket", "")
	require.NoError(t, err)
	assert.Equal(t, wiki.PlatformBitbucket, ref.Platform)
	assert.Equal(t, "https://bitbucket.org/acme/demo", ref.URL)
}

func TestParseRepoArgLocalPath(t *testing.T) {
	dir := t.TempDir()
	ref, err := parseRepoArg(dir, "", "")
	require.NoError(t, err)
	assert.Equal(t, wiki.PlatformLocal, ref.Platform)
	assert.Equal(t, dir, ref.LocalPath)
	assert.Empty(t, ref.Owner)
}

func TestParseRepoArgRelativePath(t *testing.T) {
	ref, err := parseRepoArg(".", "", "")
	require.NoError(t, err)
	assert.Equal(t, wiki.PlatformLocal, ref.Platform)
	assert.NotEmpty(t, ref.LocalPath, "relative paths resolve to absolute")
}

func TestParseRepoArgTokenFlagWinsOverEnv(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "env-token")

	ref, err := parseRepoArg("acme/demo", "", "flag-token")
	require.NoError(t, err)
	assert.Equal(t, "flag-token", ref.Token)

	ref, err = parseRepoArg("acme/demo", "", "")
	require.NoError(t, err)
	assert.Equal(t, "env-token", ref.Token)
}

func TestParseRepoArgRejectsGarbage(t *testing.T) {
	_, err := parseRepoArg("not-a-repo", "", "")
	require.Error(t, err)

	_, err = parseRepoArg("a/b/c", "", "")
	require.Error(t, err)
}

func TestParseRepoArgRejectsUnknownPlatform(t *testing.T) {
	_, err := parseRepoArg("acme/demo", "sourceforge", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sourceforge")
}
