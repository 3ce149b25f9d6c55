package wiki

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/julianshen/repowiki/internal/transport"
)

// pageConnectTimeout is long: page content calls tolerate a slow channel
// handshake better than they tolerate spurious fallbacks.
const pageConnectTimeout = 30 * time.Second

// ErrorSentinel is the Markdown recorded on a page whose generation failed.
const ErrorSentinel = "Error generating page content."

// Scheduler generates page content under a bounded concurrency limit.
// Admission is FIFO; completion order is not defined, so consumers must key
// results by page id.
type Scheduler struct {
	channel        transport.Channel
	maxConcurrency int

	// OnUpdate, when set, observes every page status change. Called from
	// worker goroutines; implementations must be safe for concurrent use.
	OnUpdate func(PageContent)
}

// NewScheduler creates a Scheduler. maxConcurrency values below 1 are
// treated as 1.
func NewScheduler(channel transport.Channel, maxConcurrency int) *Scheduler {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	return &Scheduler{channel: channel, maxConcurrency: maxConcurrency}
}

// Run generates content for every page and returns once each has reached a
// terminal status. A page failure marks that page only; siblings are never
// aborted. The returned map holds exactly one entry per scheduled page.
// Only context cancellation makes Run itself return an error.
func (s *Scheduler) Run(ctx context.Context, ref RepoRef, pages []PageSpec, params Params) (map[string]*PageContent, error) {
	contents := make(map[string]*PageContent, len(pages))
	for _, page := range pages {
		contents[page.ID] = &PageContent{PageID: page.ID, Status: StatusPending}
	}

	// In-flight de-duplication is scoped to this run, never shared across
	// jobs. Duplicate ids in the plan collapse to a single request.
	inflight := newInflightSet()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrency)

	for _, page := range pages {
		if !inflight.add(page.ID) {
			log.Printf("WARNING: duplicate page id %q in structure, skipping duplicate", page.ID)
			continue
		}
		// g.Go blocks while the pool is full, which preserves FIFO
		// admission order.
		g.Go(func() error {
			defer inflight.remove(page.ID)
			s.generatePage(gctx, ref, page, params, contents[page.ID])
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return contents, err
	}
	if ctx.Err() != nil {
		return contents, ctx.Err()
	}
	return contents, nil
}

// generatePage runs one page's full lifecycle. content is owned by this
// worker for the duration of the call; nobody else writes it.
func (s *Scheduler) generatePage(ctx context.Context, ref RepoRef, page PageSpec, params Params, content *PageContent) {
	s.update(content, StatusInProgress, "")

	markdown, err := s.requestContent(ctx, ref, page, params)
	if err != nil {
		log.Printf("WARNING: page %q generation failed: %v", page.ID, err)
		s.update(content, StatusError, ErrorSentinel)
		return
	}
	s.update(content, StatusDone, markdown)
}

func (s *Scheduler) requestContent(ctx context.Context, ref RepoRef, page PageSpec, params Params) (string, error) {
	prompt, err := pagePrompt(ref.Name(), page)
	if err != nil {
		return "", &GenerationError{PageID: page.ID, Err: err}
	}

	req := buildRequest(ref, params, "wiki_page", prompt)
	fragments, err := s.channel.Stream(ctx, req, transport.Options{ConnectTimeout: pageConnectTimeout})
	if err != nil {
		return "", &GenerationError{PageID: page.ID, Err: err}
	}
	markdown, err := transport.Collect(ctx, fragments)
	if err != nil {
		return "", &GenerationError{PageID: page.ID, Err: err}
	}
	return markdown, nil
}

func (s *Scheduler) update(content *PageContent, status PageStatus, markdown string) {
	content.Status = status
	if markdown != "" {
		content.Markdown = markdown
	}
	if s.OnUpdate != nil {
		s.OnUpdate(*content)
	}
}

// inflightSet tracks page ids with an active generation request.
type inflightSet struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

func newInflightSet() *inflightSet {
	return &inflightSet{ids: make(map[string]struct{})}
}

// add records id and reports whether it was newly added.
func (s *inflightSet) add(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[id]; ok {
		return false
	}
	s.ids[id] = struct{}{}
	return true
}

func (s *inflightSet) remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.ids, id)
}
