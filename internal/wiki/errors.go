package wiki

import "fmt"

// ConfigError reports a backend misconfiguration detected in raw generation
// output. It is fatal to the job.
type ConfigError struct {
	Hint string // actionable message rewritten from the backend signature
	Raw  string // raw backend text that matched
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("backend misconfigured: %s", e.Hint)
}

// ParseError reports that no well-formed structure block could be extracted
// from the planner response. It is fatal to the job.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parsing wiki structure: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("parsing wiki structure: %s", e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

// GenerationError reports a single page's content generation failure. It is
// recorded on the page and never aborts sibling pages.
type GenerationError struct {
	PageID string
	Err    error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generating page %s: %v", e.PageID, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// ExportError reports an export failure. It never affects the main job's
// readiness.
type ExportError struct {
	Status int // HTTP status when the backend rejected the request, 0 otherwise
	Detail string
	Err    error
}

func (e *ExportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("export failed: HTTP %d: %s", e.Status, e.Detail)
	}
	if e.Err != nil {
		return fmt.Sprintf("export failed: %s: %v", e.Detail, e.Err)
	}
	return fmt.Sprintf("export failed: %s", e.Detail)
}

func (e *ExportError) Unwrap() error { return e.Err }
