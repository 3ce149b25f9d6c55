package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"golang.org/x/time/rate"

	"github.com/julianshen/repowiki/internal/wiki"
)

// bitbucketAdapter fetches snapshots via the Bitbucket Cloud REST API v2.0.
// It asks repository info for the main branch, then pages through the
// recursive src listing following each page's "next" URL.
type bitbucketAdapter struct {
	cfg     Config
	limiter *rate.Limiter
}

func newBitbucketAdapter(cfg Config) *bitbucketAdapter {
	return &bitbucketAdapter{cfg: cfg, limiter: cfg.limiter()}
}

// bitbucketRepo mirrors the repository info response.
type bitbucketRepo struct {
	MainBranch struct {
		Name string `json:"name"`
	} `json:"mainbranch"`
}

// bitbucketSrcPage mirrors one page of the src listing.
type bitbucketSrcPage struct {
	Values []struct {
		Type string `json:"type"`
		Path string `json:"path"`
	} `json:"values"`
	Next string `json:"next"`
}

func (a *bitbucketAdapter) Fetch(ctx context.Context, ref wiki.RepoRef) (*wiki.Snapshot, error) {
	repoURL := fmt.Sprintf("%s/2.0/repositories/%s/%s", a.baseURL(), ref.Owner, ref.Repo)

	body, status, err := a.get(ctx, repoURL, ref.Token)
	if err != nil {
		return nil, &UpstreamError{Platform: wiki.PlatformBitbucket, Status: status, Body: errBody(err, body)}
	}
	var repo bitbucketRepo
	if err := json.Unmarshal(body, &repo); err != nil {
		return nil, &UpstreamError{Platform: wiki.PlatformBitbucket, Status: status, Body: "unparseable repository info: " + err.Error()}
	}
	branch := repo.MainBranch.Name
	if branch == "" {
		branch = "main"
	}

	paths, err := a.listSrc(ctx, ref, branch)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, &UpstreamError{Platform: wiki.PlatformBitbucket, Body: fmt.Sprintf("branch %q has an empty source listing", branch)}
	}

	snapshot := &wiki.Snapshot{FilePaths: paths, DefaultBranch: branch}
	snapshot.Readme = a.fetchReadme(ctx, ref, branch)
	return snapshot, nil
}

// listSrc walks the recursive source listing for branch, one page at a time.
func (a *bitbucketAdapter) listSrc(ctx context.Context, ref wiki.RepoRef, branch string) ([]string, error) {
	pageSize := a.cfg.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}
	next := fmt.Sprintf("%s/2.0/repositories/%s/%s/src/%s/?max_depth=64&pagelen=%d",
		a.baseURL(), ref.Owner, ref.Repo, branch, pageSize)

	var paths []string
	for next != "" {
		body, status, err := a.get(ctx, next, ref.Token)
		if err != nil {
			return nil, &UpstreamError{Platform: wiki.PlatformBitbucket, Status: status, Body: errBody(err, body)}
		}

		var page bitbucketSrcPage
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, &UpstreamError{Platform: wiki.PlatformBitbucket, Body: "unparseable src listing: " + err.Error()}
		}
		for _, v := range page.Values {
			if v.Type == "commit_file" {
				paths = append(paths, v.Path)
			}
		}
		next = page.Next
	}
	return paths, nil
}

func (a *bitbucketAdapter) fetchReadme(ctx context.Context, ref wiki.RepoRef, branch string) string {
	url := fmt.Sprintf("%s/2.0/repositories/%s/%s/src/%s/README.md", a.baseURL(), ref.Owner, ref.Repo, branch)
	body, _, err := a.get(ctx, url, ref.Token)
	if err != nil {
		log.Printf("WARNING: bitbucket readme fetch for %s/%s failed: %v", ref.Owner, ref.Repo, err)
		return ""
	}
	return string(body)
}

// get performs one throttled GET. On an HTTP error status it returns the
// response body alongside the error so callers can surface diagnostics.
func (a *bitbucketAdapter) get(ctx context.Context, url, token string) ([]byte, int, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := a.cfg.httpClient().Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, resp.StatusCode, err
	}
	if resp.StatusCode >= 400 {
		return body, resp.StatusCode, fmt.Errorf("GET %s: HTTP %d", url, resp.StatusCode)
	}
	return body, resp.StatusCode, nil
}

func (a *bitbucketAdapter) baseURL() string {
	base := a.cfg.BitbucketBaseURL
	if base == "" {
		base = "https://api.bitbucket.org"
	}
	return strings.TrimSuffix(base, "/")
}

// errBody prefers the HTTP response body as the diagnostic, falling back to
// the transport error text.
func errBody(err error, body []byte) string {
	if trimmed := strings.TrimSpace(string(body)); trimmed != "" {
		return trimmed
	}
	return err.Error()
}
