package wiki

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// ---------- prompt templates ----------

var structurePromptTmpl = template.Must(template.New("structure").Parse(
	`Analyze this repository {{.RepoName}} and create a wiki structure for it.

1. The complete file tree of the project:
<file_tree>
{{.FileTree}}
</file_tree>

2. The README file of the project:
<readme>
{{.Readme}}</readme>

Create a structured wiki covering the project's architecture, core features,
and key components. When designing the wiki, determine the most logical
structure based on the project's organization.
{{if .Comprehensive}}
Group the pages into sections. Return your analysis in the following XML format:

<wiki_structure>
  <title>[Overall title for the wiki]</title>
  <description>[Brief description of the repository]</description>
  <sections>
    <section id="section-1">
      <title>[Section title]</title>
      <pages>
        <page_ref>page-1</page_ref>
      </pages>
      <subsections>
        <section_ref>section-2</section_ref>
      </subsections>
    </section>
  </sections>
  <pages>
    <page id="page-1">
      <title>[Title of the page]</title>
      <importance>high|medium|low</importance>
      <relevant_files>
        <file_path>[Path to a relevant file]</file_path>
      </relevant_files>
      <related_pages>
        <related>page-2</related>
      </related_pages>
    </page>
  </pages>
</wiki_structure>
{{else}}
Return your analysis in the following XML format:

<wiki_structure>
  <title>[Overall title for the wiki]</title>
  <description>[Brief description of the repository]</description>
  <pages>
    <page id="page-1">
      <title>[Title of the page]</title>
      <importance>high|medium|low</importance>
      <relevant_files>
        <file_path>[Path to a relevant file]</file_path>
      </relevant_files>
      <related_pages>
        <related>page-2</related>
      </related_pages>
    </page>
  </pages>
</wiki_structure>
{{end}}
Return only the XML, with no additional markdown formatting.`))

var pagePromptTmpl = template.Must(template.New("page").Parse(
	`You are generating one wiki page for the repository {{.RepoName}}.

Page title: {{.Title}}

The page should focus on these source files:
<relevant_files>
{{range .FilePaths}}{{.}}
{{end}}</relevant_files>

Write comprehensive Markdown documentation for this page grounded in the
actual source files. Include code snippets and cite file paths where useful.
Start directly with the page content, no preamble.`))

// structurePrompt renders the planning prompt for a snapshot.
func structurePrompt(repoName string, snapshot *Snapshot, comprehensive bool) (string, error) {
	var buf bytes.Buffer
	err := structurePromptTmpl.Execute(&buf, struct {
		RepoName      string
		FileTree      string
		Readme        string
		Comprehensive bool
	}{
		RepoName:      repoName,
		FileTree:      strings.Join(snapshot.FilePaths, "\n"),
		Readme:        snapshot.Readme,
		Comprehensive: comprehensive,
	})
	if err != nil {
		return "", fmt.Errorf("rendering structure prompt: %w", err)
	}
	return buf.String(), nil
}

// pagePrompt renders the content prompt for one page.
func pagePrompt(repoName string, page PageSpec) (string, error) {
	var buf bytes.Buffer
	err := pagePromptTmpl.Execute(&buf, struct {
		RepoName  string
		Title     string
		FilePaths []string
	}{
		RepoName:  repoName,
		Title:     page.Title,
		FilePaths: page.FilePaths,
	})
	if err != nil {
		return "", fmt.Errorf("rendering page prompt: %w", err)
	}
	return buf.String(), nil
}
