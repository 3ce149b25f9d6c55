package pipeline

import (
	"context"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/julianshen/repowiki/internal/cache"
	"github.com/julianshen/repowiki/internal/wiki"
)

// SnapshotFetcher fetches the repository snapshot. source.Adapter satisfies
// this.
type SnapshotFetcher interface {
	Fetch(ctx context.Context, ref wiki.RepoRef) (*wiki.Snapshot, error)
}

// StructurePlanner plans the page structure. wiki.Planner satisfies this.
type StructurePlanner interface {
	Plan(ctx context.Context, ref wiki.RepoRef, snapshot *wiki.Snapshot, params wiki.Params) (*wiki.Structure, error)
}

// ContentScheduler generates page content. wiki.Scheduler satisfies this.
type ContentScheduler interface {
	Run(ctx context.Context, ref wiki.RepoRef, pages []wiki.PageSpec, params wiki.Params) (map[string]*wiki.PageContent, error)
}

// ArtifactExporter bundles pages into an artifact. wiki.Exporter satisfies
// this.
type ArtifactExporter interface {
	Export(ctx context.Context, ref wiki.RepoRef, structure *wiki.Structure, contents map[string]*wiki.PageContent, format wiki.ExportFormat) (string, error)
}

// Job is the top-level aggregate of one generation run. It is replaced
// wholesale when the user selects a different repository.
type Job struct {
	ID           string
	Ref          wiki.RepoRef
	Params       wiki.Params
	Snapshot     *wiki.Snapshot
	Structure    *wiki.Structure
	PageContents map[string]*wiki.PageContent
	State        State
	ExportState  ExportState
	ErrMessage   string
	FromCache    bool

	cancel context.CancelFunc
}

// Controller composes the pipeline stages into the job state machine.
type Controller struct {
	Fetcher   SnapshotFetcher
	Planner   StructurePlanner
	Scheduler ContentScheduler
	Exporter  ArtifactExporter
	Cache     cache.Gateway

	// OnStateChange, when set, observes every main-flow state change.
	OnStateChange func(State)

	mu  sync.Mutex
	job *Job
}

// Job returns the current job, or nil before the first Run.
func (c *Controller) Job() *Job {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.job
}

// Run executes the whole pipeline for one repository. Starting a new run
// cancels the previous job's in-flight work; the previous aggregate is
// discarded. Run blocks until the job reaches Ready or Error and returns
// the job either way; the error return is non-nil only for Error.
func (c *Controller) Run(ctx context.Context, ref wiki.RepoRef, params wiki.Params) (*Job, error) {
	ctx, job := c.replaceJob(ctx, ref, params)

	c.step(job, EventStart)

	key := cache.Key{
		Owner:         ref.Owner,
		Repo:          ref.Name(),
		Platform:      ref.Platform,
		Language:      params.Language,
		Comprehensive: params.Comprehensive,
	}

	if entry := c.lookupCache(ctx, key); entry != nil {
		job.Structure = entry.Structure
		job.PageContents = entry.Pages
		job.FromCache = true
		c.step(job, EventCacheHit)
		return job, nil
	}
	c.step(job, EventCacheMiss)

	snapshot, err := c.Fetcher.Fetch(ctx, ref)
	if err != nil {
		return job, c.fail(job, err)
	}
	job.Snapshot = snapshot
	c.step(job, EventSnapshotFetched)

	structure, err := c.Planner.Plan(ctx, ref, snapshot, params)
	if err != nil {
		return job, c.fail(job, err)
	}
	job.Structure = structure
	c.step(job, EventStructurePlanned)

	// Individual page failures are recorded in place; only cancellation
	// aborts the run here.
	contents, err := c.Scheduler.Run(ctx, ref, structure.Pages, params)
	job.PageContents = contents
	if err != nil {
		return job, c.fail(job, err)
	}
	c.step(job, EventPagesResolved)

	c.saveCache(ctx, key, job)
	return job, nil
}

// Export bundles the current job's pages. It requires a Ready job and moves
// only the orthogonal export sub-state; the main flow stays Ready.
func (c *Controller) Export(ctx context.Context, format wiki.ExportFormat) (string, error) {
	c.mu.Lock()
	job := c.job
	c.mu.Unlock()

	if job == nil || job.State != StateReady {
		return "", &wiki.ExportError{Detail: "no wiki is ready to export"}
	}

	job.ExportState = Exporting
	path, err := c.Exporter.Export(ctx, job.Ref, job.Structure, job.PageContents, format)
	if err != nil {
		job.ExportState = ExportFailed
		return "", err
	}
	job.ExportState = ExportDone
	return path, nil
}

// replaceJob cancels any previous job and installs a fresh aggregate.
func (c *Controller) replaceJob(ctx context.Context, ref wiki.RepoRef, params wiki.Params) (context.Context, *Job) {
	ctx, cancel := context.WithCancel(ctx)
	job := &Job{
		ID:     uuid.NewString(),
		Ref:    ref,
		Params: params,
		State:  StateIdle,
		cancel: cancel,
	}

	c.mu.Lock()
	prev := c.job
	c.job = job
	c.mu.Unlock()

	if prev != nil && prev.cancel != nil {
		prev.cancel()
	}
	return ctx, job
}

// lookupCache consults the gateway once at job start. Failures are logged
// and treated as a miss.
func (c *Controller) lookupCache(ctx context.Context, key cache.Key) *cache.Entry {
	if c.Cache == nil {
		return nil
	}
	entry, ok, err := c.Cache.Lookup(ctx, key)
	if err != nil {
		log.Printf("WARNING: cache lookup for %s failed, treating as miss: %v", key, err)
		return nil
	}
	if !ok || entry.Empty() {
		return nil
	}
	return entry
}

// saveCache stores the finished wiki best-effort.
func (c *Controller) saveCache(ctx context.Context, key cache.Key, job *Job) {
	if c.Cache == nil || job.FromCache {
		return
	}
	entry := &cache.Entry{Structure: job.Structure, Pages: job.PageContents}
	if err := c.Cache.Save(ctx, key, entry); err != nil {
		log.Printf("WARNING: cache save for %s failed: %v", key, err)
	}
}

// step applies one event, panicking on transitions the machine does not
// define: those are programming errors, not runtime conditions.
func (c *Controller) step(job *Job, event Event) {
	next, err := Transition(job.State, event)
	if err != nil {
		panic(err)
	}
	job.State = next
	if c.OnStateChange != nil {
		c.OnStateChange(next)
	}
}

// fail moves the job to Error with a human-readable message and returns the
// original error for the caller.
func (c *Controller) fail(job *Job, err error) error {
	job.ErrMessage = err.Error()
	c.step(job, EventFatalError)
	return err
}
