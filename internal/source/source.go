// Package source fetches a uniform repository snapshot (file tree + README)
// from heterogeneous source-control platforms.
package source

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/julianshen/repowiki/internal/wiki"
)

// Adapter fetches a repository snapshot for one platform.
type Adapter interface {
	Fetch(ctx context.Context, ref wiki.RepoRef) (*wiki.Snapshot, error)
}

// Config externalizes the platform assumptions that were historically
// hardcoded: branch guesses, page sizes, and API hosts.
type Config struct {
	// BranchCandidates is the ordered list of branches the GitHub adapter
	// tries against the recursive tree API.
	BranchCandidates []string

	// PageSize bounds paginated tree listings (GitLab, Bitbucket).
	PageSize int

	GitHubBaseURL    string // empty means api.github.com
	GitLabBaseURL    string // empty means gitlab.com
	BitbucketBaseURL string // empty means https://api.bitbucket.org
	ServerBaseURL    string // generation backend, used by the local adapter

	// RequestsPerSecond throttles outbound API calls per adapter.
	RequestsPerSecond float64

	HTTPClient *http.Client
}

// DefaultConfig returns the adapter defaults.
func DefaultConfig() Config {
	return Config{
		BranchCandidates:  []string{"main", "master"},
		PageSize:          100,
		BitbucketBaseURL:  "https://api.bitbucket.org",
		RequestsPerSecond: 5,
	}
}

func (c Config) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c Config) limiter() *rate.Limiter {
	rps := c.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	return rate.NewLimiter(rate.Limit(rps), 1)
}

// New returns the adapter for the given platform.
func New(platform wiki.Platform, cfg Config) (Adapter, error) {
	switch platform {
	case wiki.PlatformGitHub:
		return newGitHubAdapter(cfg), nil
	case wiki.PlatformGitLab:
		return newGitLabAdapter(cfg), nil
	case wiki.PlatformBitbucket:
		return newBitbucketAdapter(cfg), nil
	case wiki.PlatformLocal:
		return newLocalAdapter(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported platform: %q", platform)
	}
}

// UpstreamError reports that a platform API left us without a usable file
// list after exhausting all fallback options. Fatal to the job.
type UpstreamError struct {
	Platform wiki.Platform
	Status   int
	Body     string
}

func (e *UpstreamError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: upstream returned HTTP %d: %s", e.Platform, e.Status, e.Body)
	}
	return fmt.Sprintf("%s: %s", e.Platform, e.Body)
}
