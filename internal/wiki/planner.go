package wiki

import (
	"context"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/julianshen/repowiki/internal/transport"
)

// plannerConnectTimeout is deliberately short: if the persistent channel is
// down we want the planning call to fall back quickly.
const plannerConnectTimeout = 5 * time.Second

// Planner produces a wiki structure from a repository snapshot with a single
// generation call.
type Planner struct {
	channel transport.Channel
}

// NewPlanner creates a Planner on the given transport channel.
func NewPlanner(channel transport.Channel) *Planner {
	return &Planner{channel: channel}
}

// Plan sends one planning request and parses the response into a Structure.
// Raw backend text is scanned for known misconfiguration signatures before
// any parsing happens.
func (p *Planner) Plan(ctx context.Context, ref RepoRef, snapshot *Snapshot, params Params) (*Structure, error) {
	prompt, err := structurePrompt(ref.Name(), snapshot, params.Comprehensive)
	if err != nil {
		return nil, err
	}

	req := buildRequest(ref, params, "wiki_structure", prompt)
	fragments, err := p.channel.Stream(ctx, req, transport.Options{ConnectTimeout: plannerConnectTimeout})
	if err != nil {
		return nil, err
	}
	raw, err := transport.Collect(ctx, fragments)
	if err != nil {
		return nil, err
	}

	if cfgErr := sniffConfigError(raw); cfgErr != nil {
		return nil, cfgErr
	}

	structure, err := ParseStructure(raw, params.Comprehensive)
	if err != nil {
		return nil, err
	}
	structure.ID = ref.Owner + "/" + ref.Name()
	return structure, nil
}

// buildRequest assembles the transport envelope shared by planning and page
// content calls.
func buildRequest(ref RepoRef, params Params, callType, prompt string) transport.Request {
	return transport.Request{
		RepoURL:       ref.URL,
		Type:          callType,
		Messages:      []transport.Message{{Role: "user", Content: prompt}},
		Provider:      params.Provider,
		Model:         params.Model,
		Language:      params.Language,
		Token:         params.Token,
		ExcludedDirs:  params.ExcludedDirs,
		ExcludedFiles: params.ExcludedFiles,
		IncludedDirs:  params.IncludedDirs,
		IncludedFiles: params.IncludedFiles,
	}
}

// ---------- misconfiguration sniffing ----------

// configSignature pairs a backend error needle with the actionable hint
// shown to the user.
type configSignature struct {
	needle string
	hint   string
}

var configSignatures = []configSignature{
	{
		needle: "OPENAI_API_KEY",
		hint:   "the backend requires the OPENAI_API_KEY environment variable for its embedder; set it and restart the backend",
	},
	{
		needle: "Error preparing retriever",
		hint:   "the backend could not prepare its retriever; check its embedding configuration",
	},
	{
		needle: "No local model",
		hint:   "the configured local model is not installed on the backend; pull it first",
	},
	{
		needle: "Ollama model not found",
		hint:   "the configured Ollama model is not installed on the backend; pull it first",
	},
}

// sniffConfigError scans raw backend output for known misconfiguration
// signatures. A match short-circuits parsing entirely.
func sniffConfigError(raw string) *ConfigError {
	for _, sig := range configSignatures {
		if strings.Contains(raw, sig.needle) {
			return &ConfigError{Hint: sig.hint, Raw: raw}
		}
	}
	return nil
}

// ---------- structure parsing ----------

// xmlStructure mirrors the <wiki_structure> markup the backend returns.
type xmlStructure struct {
	XMLName     xml.Name     `xml:"wiki_structure"`
	Title       string       `xml:"title"`
	Description string       `xml:"description"`
	Pages       []xmlPage    `xml:"pages>page"`
	Sections    []xmlSection `xml:"sections>section"`
}

type xmlPage struct {
	ID         string   `xml:"id,attr"`
	Title      string   `xml:"title"`
	Importance string   `xml:"importance"`
	FilePaths  []string `xml:"relevant_files>file_path"`
	Related    []string `xml:"related_pages>related"`
}

type xmlSection struct {
	ID          string   `xml:"id,attr"`
	Title       string   `xml:"title"`
	PageRefs    []string `xml:"pages>page_ref"`
	SectionRefs []string `xml:"subsections>section_ref"`
}

// ParseStructure extracts the first well-formed <wiki_structure> block from
// raw planner output and converts it to a Structure. Missing page ids
// default to page-N; missing or unrecognized importance defaults to low.
func ParseStructure(raw string, comprehensive bool) (*Structure, error) {
	block, ok := extractStructureBlock(raw)
	if !ok {
		return nil, &ParseError{Reason: "no <wiki_structure> block in response"}
	}

	var parsed xmlStructure
	if err := xml.Unmarshal([]byte(block), &parsed); err != nil {
		return nil, &ParseError{Reason: "malformed structure block", Err: err}
	}

	structure := &Structure{
		Title:       strings.TrimSpace(parsed.Title),
		Description: strings.TrimSpace(parsed.Description),
	}

	for i, p := range parsed.Pages {
		page := PageSpec{
			ID:           strings.TrimSpace(p.ID),
			Title:        strings.TrimSpace(p.Title),
			Importance:   parseImportance(p.Importance),
			FilePaths:    trimAll(p.FilePaths),
			RelatedPages: trimAll(p.Related),
		}
		if page.ID == "" {
			page.ID = fmt.Sprintf("page-%d", i+1)
		}
		structure.Pages = append(structure.Pages, page)
	}

	if comprehensive {
		for _, s := range parsed.Sections {
			structure.Sections = append(structure.Sections, Section{
				ID:          strings.TrimSpace(s.ID),
				Title:       strings.TrimSpace(s.Title),
				PageIDs:     trimAll(s.PageRefs),
				Subsections: trimAll(s.SectionRefs),
			})
		}
		structure.RootSections = rootSectionIDs(structure.Sections)
	}

	return structure, nil
}

// extractStructureBlock locates the first <wiki_structure>…</wiki_structure>
// span, tolerating leading prose and surrounding code fences, and strips
// non-printable control characters.
func extractStructureBlock(raw string) (string, bool) {
	cleaned := stripCodeFences(raw)

	start := strings.Index(cleaned, "<wiki_structure>")
	if start < 0 {
		return "", false
	}
	end := strings.Index(cleaned[start:], "</wiki_structure>")
	if end < 0 {
		return "", false
	}
	block := cleaned[start : start+end+len("</wiki_structure>")]
	return stripControlChars(block), true
}

// stripCodeFences removes surrounding ``` markers (with or without a
// language tag) without touching fences inside the body.
func stripCodeFences(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return s
	}
	if idx := strings.IndexByte(trimmed, '\n'); idx >= 0 {
		trimmed = trimmed[idx+1:]
	} else {
		return s
	}
	trimmed = strings.TrimSpace(trimmed)
	trimmed = strings.TrimSuffix(trimmed, "```")
	return trimmed
}

// stripControlChars removes control characters that break XML parsing while
// keeping tabs and newlines.
func stripControlChars(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\t' || r == '\n' || r == '\r' {
			return r
		}
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
}

func parseImportance(raw string) Importance {
	switch Importance(strings.ToLower(strings.TrimSpace(raw))) {
	case ImportanceHigh:
		return ImportanceHigh
	case ImportanceMedium:
		return ImportanceMedium
	default:
		return ImportanceLow
	}
}

// rootSectionIDs returns sections not referenced as a subsection of any
// other section.
func rootSectionIDs(sections []Section) []string {
	referenced := make(map[string]bool)
	for _, s := range sections {
		for _, sub := range s.Subsections {
			referenced[sub] = true
		}
	}
	var roots []string
	for _, s := range sections {
		if !referenced[s.ID] {
			roots = append(roots, s.ID)
		}
	}
	return roots
}

func trimAll(values []string) []string {
	var out []string
	for _, v := range values {
		if t := strings.TrimSpace(v); t != "" {
			out = append(out, t)
		}
	}
	return out
}
