// Package wiki implements the wiki generation pipeline: planning a page
// structure from a repository snapshot, generating per-page content under a
// bounded concurrency limit, and bundling the result for export.
package wiki

// Platform identifies the source-control platform a repository lives on.
type Platform string

const (
	PlatformGitHub    Platform = "github"
	PlatformGitLab    Platform = "gitlab"
	PlatformBitbucket Platform = "bitbucket"
	PlatformLocal     Platform = "local"
)

// RepoRef identifies the repository a wiki is generated for. Exactly one of
// Owner+Repo or LocalPath is meaningful depending on Platform.
type RepoRef struct {
	Owner     string
	Repo      string
	Platform  Platform
	Token     string
	LocalPath string
	URL       string // canonical URL as entered by the user
}

// Name returns the repository name used for artifact naming. For local
// repositories it falls back to the last path element.
func (r RepoRef) Name() string {
	if r.Repo != "" {
		return r.Repo
	}
	return baseName(r.LocalPath)
}

// Snapshot is an immutable file-tree + README capture of a repository,
// created once per generation run.
type Snapshot struct {
	FilePaths     []string
	Readme        string
	DefaultBranch string
}

// Importance ranks how central a page is to understanding the repository.
type Importance string

const (
	ImportanceHigh   Importance = "high"
	ImportanceMedium Importance = "medium"
	ImportanceLow    Importance = "low"
)

// PageSpec describes one planned wiki page before content generation.
type PageSpec struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Importance   Importance `json:"importance"`
	FilePaths    []string   `json:"file_paths"`
	RelatedPages []string   `json:"related_pages"`
}

// Section groups pages hierarchically in comprehensive mode.
type Section struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	PageIDs     []string `json:"pages"`
	Subsections []string `json:"subsections,omitempty"`
}

// Structure is the planned table of contents for a wiki. Related-page and
// section references may dangle; consumers must tolerate unresolved ids.
type Structure struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Pages        []PageSpec `json:"pages"`
	Sections     []Section  `json:"sections,omitempty"`
	RootSections []string   `json:"root_sections,omitempty"`
}

// Page returns the page with the given id, or nil if the structure has none.
func (s *Structure) Page(id string) *PageSpec {
	for i := range s.Pages {
		if s.Pages[i].ID == id {
			return &s.Pages[i]
		}
	}
	return nil
}

// PageStatus is the lifecycle state of one page's content generation.
type PageStatus string

const (
	StatusPending    PageStatus = "pending"
	StatusInProgress PageStatus = "inProgress"
	StatusDone       PageStatus = "done"
	StatusError      PageStatus = "error"
)

// Terminal reports whether the status is an end state.
func (s PageStatus) Terminal() bool {
	return s == StatusDone || s == StatusError
}

// PageContent holds the generated Markdown for one page. Each entry is
// written only by the worker that owns its PageID.
type PageContent struct {
	PageID   string     `json:"page_id"`
	Markdown string     `json:"markdown"`
	Status   PageStatus `json:"status"`
}

// Params carries generation parameters shared by planning and page content
// calls.
type Params struct {
	Provider      string
	Model         string
	Language      string
	Comprehensive bool
	Token         string

	// Repository file filters forwarded verbatim to the backend.
	ExcludedDirs  []string
	ExcludedFiles []string
	IncludedDirs  []string
	IncludedFiles []string
}

func baseName(path string) string {
	if path == "" {
		return ""
	}
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' || path[i] == '\\' {
			return path[i+1:]
		}
	}
	return path
}
