package source

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"

	"github.com/google/go-github/v68/github"
	"golang.org/x/time/rate"

	"github.com/julianshen/repowiki/internal/wiki"
)

// githubAdapter fetches snapshots via the GitHub recursive git tree API.
//
// Unlike the GitLab and Bitbucket adapters it does not ask the API for the
// real default branch: it walks an ordered candidate list until one tree
// request succeeds. Kept that way deliberately; the candidate list is
// configurable.
type githubAdapter struct {
	cfg     Config
	limiter *rate.Limiter
}

func newGitHubAdapter(cfg Config) *githubAdapter {
	return &githubAdapter{cfg: cfg, limiter: cfg.limiter()}
}

func (a *githubAdapter) Fetch(ctx context.Context, ref wiki.RepoRef) (*wiki.Snapshot, error) {
	client := a.client(ref.Token)

	candidates := a.cfg.BranchCandidates
	if len(candidates) == 0 {
		candidates = []string{"main", "master"}
	}

	var lastStatus int
	var lastBody string
	for _, branch := range candidates {
		if err := a.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		tree, resp, err := client.Git.GetTree(ctx, ref.Owner, ref.Repo, branch, true)
		if err != nil {
			if resp != nil {
				lastStatus = resp.StatusCode
			}
			lastBody = err.Error()
			continue
		}

		paths := blobPaths(tree)
		if len(paths) == 0 {
			lastBody = fmt.Sprintf("branch %q has an empty tree", branch)
			continue
		}

		snapshot := &wiki.Snapshot{FilePaths: paths, DefaultBranch: branch}
		snapshot.Readme = a.fetchReadme(ctx, client, ref, branch)
		return snapshot, nil
	}

	return nil, &UpstreamError{Platform: wiki.PlatformGitHub, Status: lastStatus, Body: lastBody}
}

func (a *githubAdapter) client(token string) *github.Client {
	client := github.NewClient(a.cfg.httpClient())
	if token != "" {
		client = client.WithAuthToken(token)
	}
	if a.cfg.GitHubBaseURL != "" {
		base, err := url.Parse(strings.TrimSuffix(a.cfg.GitHubBaseURL, "/") + "/")
		if err == nil {
			client.BaseURL = base
		}
	}
	return client
}

// fetchReadme retrieves the repository README. Failure is non-fatal: the
// planner works without one, just with less context.
func (a *githubAdapter) fetchReadme(ctx context.Context, client *github.Client, ref wiki.RepoRef, branch string) string {
	if err := a.limiter.Wait(ctx); err != nil {
		return ""
	}
	readme, _, err := client.Repositories.GetReadme(ctx, ref.Owner, ref.Repo, &github.RepositoryContentGetOptions{Ref: branch})
	if err != nil {
		log.Printf("WARNING: github readme fetch for %s/%s failed: %v", ref.Owner, ref.Repo, err)
		return ""
	}
	content, err := readme.GetContent()
	if err != nil {
		log.Printf("WARNING: github readme decode for %s/%s failed: %v", ref.Owner, ref.Repo, err)
		return ""
	}
	return content
}

// blobPaths flattens a git tree to file-only paths, keeping API order.
func blobPaths(tree *github.Tree) []string {
	if tree == nil {
		return nil
	}
	var paths []string
	for _, entry := range tree.Entries {
		if entry.GetType() != "blob" {
			continue
		}
		if p := entry.GetPath(); p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}
