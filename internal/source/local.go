package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/julianshen/repowiki/internal/wiki"
)

// localAdapter asks the generation backend for a pre-flattened structure of
// a repository on its local filesystem. One call, no pagination.
type localAdapter struct {
	cfg Config
}

func newLocalAdapter(cfg Config) *localAdapter {
	return &localAdapter{cfg: cfg}
}

// localStructure mirrors the backend's local structure response. The file
// tree arrives as one newline-separated string.
type localStructure struct {
	FileTree string `json:"file_tree"`
	Readme   string `json:"readme"`
}

func (a *localAdapter) Fetch(ctx context.Context, ref wiki.RepoRef) (*wiki.Snapshot, error) {
	endpoint := fmt.Sprintf("%s/local_repo/structure?path=%s",
		strings.TrimSuffix(a.cfg.ServerBaseURL, "/"), url.QueryEscape(ref.LocalPath))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := a.cfg.httpClient().Do(req)
	if err != nil {
		return nil, &UpstreamError{Platform: wiki.PlatformLocal, Body: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, &UpstreamError{Platform: wiki.PlatformLocal, Status: resp.StatusCode, Body: err.Error()}
	}
	if resp.StatusCode >= 400 {
		return nil, &UpstreamError{Platform: wiki.PlatformLocal, Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var structure localStructure
	if err := json.Unmarshal(body, &structure); err != nil {
		return nil, &UpstreamError{Platform: wiki.PlatformLocal, Status: resp.StatusCode, Body: "unparseable structure response: " + err.Error()}
	}

	paths := splitFileTree(structure.FileTree)
	if len(paths) == 0 {
		return nil, &UpstreamError{Platform: wiki.PlatformLocal, Status: resp.StatusCode, Body: "empty file tree for " + ref.LocalPath}
	}

	return &wiki.Snapshot{FilePaths: paths, Readme: structure.Readme, DefaultBranch: "local"}, nil
}

// splitFileTree splits the newline-separated file tree, dropping blanks and
// duplicates while keeping first-seen order.
func splitFileTree(tree string) []string {
	seen := make(map[string]bool)
	var paths []string
	for _, line := range strings.Split(tree, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || seen[line] {
			continue
		}
		seen[line] = true
		paths = append(paths, line)
	}
	return paths
}
