package wiki

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// PlaceholderContent substitutes for pages that have no generated content at
// export time. Partial export is allowed; see DESIGN.md.
const PlaceholderContent = "Content generation in progress."

// ExportFormat selects the artifact format.
type ExportFormat string

const (
	FormatMarkdown ExportFormat = "markdown"
	FormatJSON     ExportFormat = "json"
)

// Exporter bundles generated pages into a downloadable artifact via the
// backend export endpoint.
type Exporter struct {
	baseURL   string
	client    *http.Client
	outputDir string
}

// NewExporter creates an Exporter writing artifacts into outputDir.
func NewExporter(baseURL string, client *http.Client, outputDir string) *Exporter {
	if client == nil {
		client = http.DefaultClient
	}
	if outputDir == "" {
		outputDir = "."
	}
	return &Exporter{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		client:    client,
		outputDir: outputDir,
	}
}

// exportPage is a PageSpec with its content substituted in, as the export
// endpoint expects it.
type exportPage struct {
	PageSpec
	Content string `json:"content"`
}

type exportRequest struct {
	RepoURL string       `json:"repo_url"`
	Type    string       `json:"type"`
	Pages   []exportPage `json:"pages"`
	Format  ExportFormat `json:"format"`
}

// Export substitutes each page's current content into the structure, posts
// one bundled request, and writes the artifact as {repo}_wiki.{md|json}.
// It returns the written file path. An empty contents map fails fast with no
// network call. Export never mutates pipeline state.
func (e *Exporter) Export(ctx context.Context, ref RepoRef, structure *Structure, contents map[string]*PageContent, format ExportFormat) (string, error) {
	if len(contents) == 0 {
		return "", &ExportError{Detail: "no generated pages to export"}
	}
	if format != FormatMarkdown && format != FormatJSON {
		return "", &ExportError{Detail: fmt.Sprintf("unsupported format %q", format)}
	}

	pages := make([]exportPage, 0, len(structure.Pages))
	for _, spec := range structure.Pages {
		content := PlaceholderContent
		if pc, ok := contents[spec.ID]; ok && pc.Status == StatusDone {
			content = pc.Markdown
		}
		pages = append(pages, exportPage{PageSpec: spec, Content: content})
	}

	body, err := json.Marshal(exportRequest{
		RepoURL: ref.URL,
		Type:    string(ref.Platform),
		Pages:   pages,
		Format:  format,
	})
	if err != nil {
		return "", &ExportError{Detail: "encode export request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/export/wiki", bytes.NewReader(body))
	if err != nil {
		return "", &ExportError{Detail: "create export request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", &ExportError{Detail: "export request failed", Err: err}
	}
	defer resp.Body.Close()

	artifact, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &ExportError{Status: resp.StatusCode, Detail: "read export response", Err: err}
	}
	if resp.StatusCode >= 400 {
		return "", &ExportError{Status: resp.StatusCode, Detail: strings.TrimSpace(string(artifact))}
	}

	path := filepath.Join(e.outputDir, artifactName(ref.Name(), format))
	if err := os.MkdirAll(e.outputDir, 0o755); err != nil {
		return "", &ExportError{Detail: "create output directory", Err: err}
	}
	if err := os.WriteFile(path, artifact, 0o644); err != nil {
		return "", &ExportError{Detail: "write artifact", Err: err}
	}
	return path, nil
}

func artifactName(repo string, format ExportFormat) string {
	ext := "md"
	if format == FormatJSON {
		ext = "json"
	}
	return fmt.Sprintf("%s_wiki.%s", repo, ext)
}
