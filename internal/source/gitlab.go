package source

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"

	"github.com/sourcegraph/conc"
	gitlab "github.com/xanzy/go-gitlab"
	"golang.org/x/time/rate"

	"github.com/julianshen/repowiki/internal/wiki"
)

// gitlabAdapter fetches snapshots via the GitLab REST API v4. It resolves
// the real default branch from project info and pages through the tree
// listing until the next-page header runs out.
type gitlabAdapter struct {
	cfg     Config
	limiter *rate.Limiter
}

func newGitLabAdapter(cfg Config) *gitlabAdapter {
	return &gitlabAdapter{cfg: cfg, limiter: cfg.limiter()}
}

func (a *gitlabAdapter) Fetch(ctx context.Context, ref wiki.RepoRef) (*wiki.Snapshot, error) {
	client, err := a.client(ref)
	if err != nil {
		return nil, fmt.Errorf("gitlab client: %w", err)
	}
	projectPath := gitlabProjectPath(ref)

	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	project, resp, err := client.Projects.GetProject(projectPath, nil, gitlab.WithContext(ctx))
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		return nil, &UpstreamError{Platform: wiki.PlatformGitLab, Status: status, Body: err.Error()}
	}
	branch := project.DefaultBranch
	if branch == "" {
		branch = "main"
	}

	// The README only needs the branch name, so fetch it alongside the
	// paginated tree walk.
	var readme string
	var wg conc.WaitGroup
	wg.Go(func() {
		readme = a.fetchReadme(ctx, client, projectPath, branch)
	})

	paths, err := a.listTree(ctx, client, projectPath, branch)
	wg.Wait()
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, &UpstreamError{Platform: wiki.PlatformGitLab, Body: fmt.Sprintf("branch %q has an empty tree", branch)}
	}

	return &wiki.Snapshot{FilePaths: paths, Readme: readme, DefaultBranch: branch}, nil
}

// listTree pages through the recursive tree listing. go-gitlab surfaces the
// x-next-page response header as Response.NextPage; zero means exhausted.
func (a *gitlabAdapter) listTree(ctx context.Context, client *gitlab.Client, projectPath, branch string) ([]string, error) {
	pageSize := a.cfg.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}

	var paths []string
	page := 1
	for {
		if err := a.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		nodes, resp, err := client.Repositories.ListTree(projectPath, &gitlab.ListTreeOptions{
			ListOptions: gitlab.ListOptions{Page: page, PerPage: pageSize},
			Ref:         gitlab.String(branch),
			Recursive:   gitlab.Bool(true),
		}, gitlab.WithContext(ctx))
		if err != nil {
			status := 0
			if resp != nil {
				status = resp.StatusCode
			}
			return nil, &UpstreamError{Platform: wiki.PlatformGitLab, Status: status, Body: err.Error()}
		}

		for _, node := range nodes {
			if node.Type == "blob" {
				paths = append(paths, node.Path)
			}
		}

		if resp.NextPage == 0 {
			return paths, nil
		}
		page = resp.NextPage
	}
}

func (a *gitlabAdapter) fetchReadme(ctx context.Context, client *gitlab.Client, projectPath, branch string) string {
	if err := a.limiter.Wait(ctx); err != nil {
		return ""
	}
	raw, _, err := client.RepositoryFiles.GetRawFile(projectPath, "README.md", &gitlab.GetRawFileOptions{
		Ref: gitlab.String(branch),
	}, gitlab.WithContext(ctx))
	if err != nil {
		log.Printf("WARNING: gitlab readme fetch for %s failed: %v", projectPath, err)
		return ""
	}
	return string(raw)
}

// client builds a go-gitlab client against the instance host resolved from
// the canonical URL, honoring a configured override for tests.
func (a *gitlabAdapter) client(ref wiki.RepoRef) (*gitlab.Client, error) {
	base := a.cfg.GitLabBaseURL
	if base == "" {
		if host := gitlabHost(ref.URL); host != "" {
			base = "https://" + host
		} else {
			base = "https://gitlab.com"
		}
	}
	return gitlab.NewClient(ref.Token, gitlab.WithBaseURL(base))
}

// gitlabHost extracts the instance host from the canonical repository URL.
func gitlabHost(canonical string) string {
	u, err := url.Parse(canonical)
	if err != nil {
		return ""
	}
	return u.Host
}

// gitlabProjectPath resolves the namespaced project path from the canonical
// URL, falling back to owner/repo. Subgroup paths survive intact.
func gitlabProjectPath(ref wiki.RepoRef) string {
	if u, err := url.Parse(ref.URL); err == nil {
		path := strings.Trim(u.Path, "/")
		path = strings.TrimSuffix(path, ".git")
		if strings.Count(path, "/") >= 1 {
			return path
		}
	}
	return ref.Owner + "/" + ref.Repo
}
