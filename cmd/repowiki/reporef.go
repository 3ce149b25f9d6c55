// cmd/repowiki/reporef.go
package main

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/julianshen/repowiki/internal/config"
	"github.com/julianshen/repowiki/internal/wiki"
)

// parseRepoArg resolves the repository argument into a RepoRef. Accepted
// forms: a full https URL (platform inferred from the host), an owner/repo
// shorthand (platform from --platform, default github), or a filesystem
// path (platform local). Tokens come from --token or the platform's
// environment variables.
func parseRepoArg(arg, platform, token string) (wiki.RepoRef, error) {
	if looksLikePath(arg) {
		abs, err := filepath.Abs(arg)
		if err != nil {
			return wiki.RepoRef{}, fmt.Errorf("resolving path %q: %w", arg, err)
		}
		return wiki.RepoRef{Platform: wiki.PlatformLocal, LocalPath: abs}, nil
	}

	if strings.Contains(arg, "://") {
		return parseRepoURL(arg, platform, token)
	}

	// owner/repo shorthand.
	parts := strings.Split(strings.TrimSuffix(arg, ".git"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return wiki.RepoRef{}, fmt.Errorf("cannot parse repository %q: expected a URL, owner/repo, or a local path", arg)
	}
	p := wiki.Platform(platform)
	if platform == "" {
		p = wiki.PlatformGitHub
	}
	if err := validatePlatform(p); err != nil {
		return wiki.RepoRef{}, err
	}
	ref := wiki.RepoRef{
		Owner:    parts[0],
		Repo:     parts[1],
		Platform: p,
		URL:      canonicalURL(p, parts[0], parts[1]),
	}
	ref.Token = resolveToken(ref.Platform, token)
	return ref, nil
}

func parseRepoURL(arg, platform, token string) (wiki.RepoRef, error) {
	u, err := url.Parse(arg)
	if err != nil {
		return wiki.RepoRef{}, fmt.Errorf("parsing repository URL %q: %w", arg, err)
	}

	p := wiki.Platform(platform)
	if platform == "" {
		p = inferPlatform(u.Host)
	}
	if p == "" {
		return wiki.RepoRef{}, fmt.Errorf("cannot infer platform from host %q: pass --platform", u.Host)
	}
	if err := validatePlatform(p); err != nil {
		return wiki.RepoRef{}, err
	}

	segments := splitPath(u.Path)
	if len(segments) < 2 {
		return wiki.RepoRef{}, fmt.Errorf("repository URL %q has no owner/repo path", arg)
	}
	// GitLab namespaces may nest subgroups; the last segment is the
	// project, everything before it the namespace.
	owner := strings.Join(segments[:len(segments)-1], "/")
	repo := strings.TrimSuffix(segments[len(segments)-1], ".git")

	ref := wiki.RepoRef{
		Owner:    owner,
		Repo:     repo,
		Platform: p,
		URL:      arg,
	}
	ref.Token = resolveToken(ref.Platform, token)
	return ref, nil
}

func inferPlatform(host string) wiki.Platform {
	host = strings.ToLower(host)
	switch {
	case host == "github.com" || strings.HasSuffix(host, ".github.com"):
		return wiki.PlatformGitHub
	case strings.Contains(host, "gitlab"):
		return wiki.PlatformGitLab
	case host == "bitbucket.org" || strings.Contains(host, "bitbucket"):
		return wiki.PlatformBitbucket
	default:
		return ""
	}
}

func validatePlatform(p wiki.Platform) error {
	switch p {
	case wiki.PlatformGitHub, wiki.PlatformGitLab, wiki.PlatformBitbucket, wiki.PlatformLocal:
		return nil
	default:
		return fmt.Errorf("unknown platform %q", p)
	}
}

func canonicalURL(p wiki.Platform, owner, repo string) string {
	switch p {
	case wiki.PlatformGitLab:
		return fmt.Sprintf("https://gitlab.com/%s/%s", owner, repo)
	case wiki.PlatformBitbucket:
		return fmt.Sprintf("https://bitbucket.org/%s/%s", owner, repo)
	default:
		return fmt.Sprintf("https://github.com/%s/%s", owner, repo)
	}
}

// looksLikePath reports whether the argument names a local directory.
// Explicit path prefixes win even when the directory does not exist yet,
// so error messages point at the filesystem rather than a URL parser.
func looksLikePath(arg string) bool {
	if strings.HasPrefix(arg, "/") || strings.HasPrefix(arg, "./") || strings.HasPrefix(arg, "../") || arg == "." || arg == ".." {
		return true
	}
	if strings.Contains(arg, "://") {
		return false
	}
	info, err := os.Stat(arg)
	return err == nil && info.IsDir()
}

func splitPath(p string) []string {
	var segments []string
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}

func resolveToken(p wiki.Platform, flag string) string {
	if flag != "" {
		return flag
	}
	return config.ResolveToken(p)
}
