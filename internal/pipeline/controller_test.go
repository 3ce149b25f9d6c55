package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julianshen/repowiki/internal/cache"
	"github.com/julianshen/repowiki/internal/wiki"
)

// ---------- fakes ----------

type fakeFetcher struct {
	snapshot *wiki.Snapshot
	err      error
	calls    int
}

func (f *fakeFetcher) Fetch(ctx context.Context, ref wiki.RepoRef) (*wiki.Snapshot, error) {
	f.calls++
	return f.snapshot, f.err
}

type fakePlanner struct {
	structure *wiki.Structure
	err       error
	calls     int
}

func (f *fakePlanner) Plan(ctx context.Context, ref wiki.RepoRef, snapshot *wiki.Snapshot, params wiki.Params) (*wiki.Structure, error) {
	f.calls++
	return f.structure, f.err
}

type fakeScheduler struct {
	mu    sync.Mutex
	fail  map[string]bool
	err   error
	calls int
	block chan struct{} // consumed by the first Run call only
}

func (f *fakeScheduler) Run(ctx context.Context, ref wiki.RepoRef, pages []wiki.PageSpec, params wiki.Params) (map[string]*wiki.PageContent, error) {
	f.mu.Lock()
	f.calls++
	block := f.block
	f.block = nil
	f.mu.Unlock()

	if block != nil {
		select {
		case <-ctx.Done():
			return map[string]*wiki.PageContent{}, ctx.Err()
		case <-block:
		}
	}
	contents := make(map[string]*wiki.PageContent, len(pages))
	for _, p := range pages {
		pc := &wiki.PageContent{PageID: p.ID, Status: wiki.StatusDone, Markdown: "generated " + p.ID}
		if f.fail[p.ID] {
			pc.Status = wiki.StatusError
			pc.Markdown = wiki.ErrorSentinel
		}
		contents[p.ID] = pc
	}
	return contents, f.err
}

type fakeExporter struct {
	path  string
	err   error
	calls int
}

func (f *fakeExporter) Export(ctx context.Context, ref wiki.RepoRef, structure *wiki.Structure, contents map[string]*wiki.PageContent, format wiki.ExportFormat) (string, error) {
	f.calls++
	return f.path, f.err
}

type fakeCache struct {
	mu      sync.Mutex
	entries map[string]*cache.Entry
	lookupE error
	lookups int
	saves   int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string]*cache.Entry{}}
}

func (f *fakeCache) Lookup(ctx context.Context, key cache.Key) (*cache.Entry, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	if f.lookupE != nil {
		return nil, false, f.lookupE
	}
	entry, ok := f.entries[key.String()]
	return entry, ok, nil
}

func (f *fakeCache) Save(ctx context.Context, key cache.Key, entry *cache.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	f.entries[key.String()] = entry
	return nil
}

// ---------- helpers ----------

func testRef() wiki.RepoRef {
	return wiki.RepoRef{Owner: "acme", Repo: "demo", Platform: wiki.PlatformGitHub, URL: "https://github.com/acme/demo"}
}

func testStructure() *wiki.Structure {
	return &wiki.Structure{
		Title: "Demo Wiki",
		Pages: []wiki.PageSpec{
			{ID: "page-1", Title: "Overview"},
			{ID: "page-2", Title: "Internals"},
		},
	}
}

func newController() (*Controller, *fakeFetcher, *fakePlanner, *fakeScheduler, *fakeCache) {
	fetcher := &fakeFetcher{snapshot: &wiki.Snapshot{FilePaths: []string{"main.go"}, DefaultBranch: "main"}}
	planner := &fakePlanner{structure: testStructure()}
	scheduler := &fakeScheduler{}
	store := newFakeCache()
	c := &Controller{
		Fetcher:   fetcher,
		Planner:   planner,
		Scheduler: scheduler,
		Exporter:  &fakeExporter{path: "demo_wiki.md"},
		Cache:     store,
	}
	return c, fetcher, planner, scheduler, store
}

// ---------- tests ----------

func TestRunColdCacheReachesReady(t *testing.T) {
	c, fetcher, planner, scheduler, store := newController()

	var states []State
	c.OnStateChange = func(s State) { states = append(states, s) }

	job, err := c.Run(context.Background(), testRef(), wiki.Params{Language: "en"})
	require.NoError(t, err)

	assert.Equal(t, StateReady, job.State)
	assert.Equal(t, 1, fetcher.calls)
	assert.Equal(t, 1, planner.calls)
	assert.Equal(t, 1, scheduler.calls)
	assert.Equal(t, 1, store.saves, "successful runs are cached best-effort")

	assert.Equal(t, []State{
		StateCheckingCache,
		StateFetchingStructure,
		StateDeterminingStructure,
		StateGeneratingPages,
		StateReady,
	}, states)

	require.Len(t, job.PageContents, len(job.Structure.Pages), "one entry per planned page")
	for _, pc := range job.PageContents {
		assert.True(t, pc.Status.Terminal())
	}
}

func TestRunWarmCacheSkipsEverything(t *testing.T) {
	c, fetcher, planner, scheduler, store := newController()

	// First run populates the cache.
	first, err := c.Run(context.Background(), testRef(), wiki.Params{Language: "en"})
	require.NoError(t, err)

	// Second identical run must issue zero adapter/planner/scheduler calls
	// and reproduce the same structure and content.
	second, err := c.Run(context.Background(), testRef(), wiki.Params{Language: "en"})
	require.NoError(t, err)

	assert.Equal(t, StateReady, second.State)
	assert.True(t, second.FromCache)
	assert.Equal(t, 1, fetcher.calls)
	assert.Equal(t, 1, planner.calls)
	assert.Equal(t, 1, scheduler.calls)
	assert.Equal(t, 1, store.saves, "warm run must not rewrite the cache")

	assert.Equal(t, first.Structure, second.Structure)
	assert.Equal(t, first.PageContents, second.PageContents)
}

func TestRunCacheKeyedByParams(t *testing.T) {
	c, fetcher, _, _, _ := newController()

	_, err := c.Run(context.Background(), testRef(), wiki.Params{Language: "en"})
	require.NoError(t, err)

	// Different language misses the cache.
	_, err = c.Run(context.Background(), testRef(), wiki.Params{Language: "ja"})
	require.NoError(t, err)
	assert.Equal(t, 2, fetcher.calls)

	// Different comprehensive flag misses too.
	_, err = c.Run(context.Background(), testRef(), wiki.Params{Language: "en", Comprehensive: true})
	require.NoError(t, err)
	assert.Equal(t, 3, fetcher.calls)
}

func TestRunCacheLookupFailureIsMiss(t *testing.T) {
	c, fetcher, _, _, store := newController()
	store.lookupE = errors.New("cache service down")

	job, err := c.Run(context.Background(), testRef(), wiki.Params{})
	require.NoError(t, err)
	assert.Equal(t, StateReady, job.State)
	assert.Equal(t, 1, fetcher.calls, "lookup failure falls through to the full pipeline")
}

func TestRunFetchFailureIsFatal(t *testing.T) {
	c, fetcher, planner, scheduler, _ := newController()
	fetcher.err = errors.New("upstream returned HTTP 404")

	job, err := c.Run(context.Background(), testRef(), wiki.Params{})
	require.Error(t, err)
	assert.Equal(t, StateError, job.State)
	assert.Contains(t, job.ErrMessage, "404")
	assert.Equal(t, 0, planner.calls)
	assert.Equal(t, 0, scheduler.calls)
}

func TestRunConfigurationErrorIsFatal(t *testing.T) {
	c, _, planner, scheduler, _ := newController()
	planner.structure = nil
	planner.err = &wiki.ConfigError{Hint: "the backend requires the OPENAI_API_KEY environment variable for its embedder; set it and restart the backend"}

	job, err := c.Run(context.Background(), testRef(), wiki.Params{})
	var cfgErr *wiki.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, StateError, job.State)
	assert.Contains(t, job.ErrMessage, "OPENAI_API_KEY")
	assert.Equal(t, 0, scheduler.calls, "parser and scheduler never run on a configuration error")
}

func TestRunPageFailuresStillReady(t *testing.T) {
	c, _, _, scheduler, _ := newController()
	scheduler.fail = map[string]bool{"page-2": true}

	job, err := c.Run(context.Background(), testRef(), wiki.Params{})
	require.NoError(t, err)
	assert.Equal(t, StateReady, job.State, "page-level failures never stop the job")
	assert.Equal(t, wiki.StatusError, job.PageContents["page-2"].Status)
	assert.Equal(t, wiki.ErrorSentinel, job.PageContents["page-2"].Markdown)
	assert.Equal(t, wiki.StatusDone, job.PageContents["page-1"].Status)
}

func TestRunReplacementCancelsPreviousJob(t *testing.T) {
	c, _, _, scheduler, _ := newController()
	scheduler.block = make(chan struct{})

	var mu sync.Mutex
	var generating bool
	c.OnStateChange = func(s State) {
		mu.Lock()
		if s == StateGeneratingPages {
			generating = true
		}
		mu.Unlock()
	}

	done := make(chan *Job, 1)
	go func() {
		job, _ := c.Run(context.Background(), testRef(), wiki.Params{})
		done <- job
	}()

	// Wait for the first run to reach the scheduler.
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return generating
	}, time.Second, 5*time.Millisecond)

	// Selecting a different repository replaces and cancels the old job.
	other := testRef()
	other.Repo = "other"
	job2, err := c.Run(context.Background(), other, wiki.Params{})
	require.NoError(t, err)
	assert.Equal(t, StateReady, job2.State)

	select {
	case job1 := <-done:
		assert.Equal(t, StateError, job1.State, "cancelled job ends in Error")
	case <-time.After(2 * time.Second):
		t.Fatal("replaced job never finished")
	}

	assert.Equal(t, "other", c.Job().Ref.Repo)
}

func TestExportRequiresReadyJob(t *testing.T) {
	c, _, _, _, _ := newController()

	_, err := c.Export(context.Background(), wiki.FormatMarkdown)
	var exportErr *wiki.ExportError
	require.ErrorAs(t, err, &exportErr)
}

func TestExportDoesNotTouchMainState(t *testing.T) {
	c, _, _, _, _ := newController()
	exporter := &fakeExporter{err: &wiki.ExportError{Detail: "backend rejected bundle"}}
	c.Exporter = exporter

	job, err := c.Run(context.Background(), testRef(), wiki.Params{})
	require.NoError(t, err)

	_, err = c.Export(context.Background(), wiki.FormatMarkdown)
	require.Error(t, err)
	assert.Equal(t, ExportFailed, job.ExportState)
	assert.Equal(t, StateReady, job.State, "export failure must not revert readiness")

	exporter.err = nil
	exporter.path = "demo_wiki.md"
	path, err := c.Export(context.Background(), wiki.FormatMarkdown)
	require.NoError(t, err)
	assert.Equal(t, "demo_wiki.md", path)
	assert.Equal(t, ExportDone, job.ExportState)
	assert.Equal(t, StateReady, job.State)
}
