package extraction

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/divyekant/memoryd/internal/llm"
)

// TrimFunc is called by every worker after finishing a job, win or lose,
// so the background governor's memory trimmer runs on the same cadence
// as extraction activity.
type TrimFunc func(reason string)

// ProviderFunc resolves the current LLM provider at dispatch time
// (rather than once at pool construction) so a future embedder-style
// provider hot-swap is observed by jobs that haven't started yet. Nil
// means extraction is disabled.
type ProviderFunc func() llm.Provider

// UsageFunc records the prompt/completion tokens spent by one finished
// extraction job, for the usage store's /usage summary. Nil disables
// usage accounting.
type UsageFunc func(promptTokens, completionTokens int)

// Pool owns the bounded job queue, the job table, and W long-lived
// workers draining it.
type Pool struct {
	queue       *Queue
	provider    ProviderFunc
	engine      EngineClient
	workers     int
	trim        TrimFunc
	recordUsage UsageFunc
	logger      *slog.Logger

	mu   sync.Mutex
	jobs map[string]*Job

	pendingMu sync.Mutex
	pending   map[string]Request

	wg sync.WaitGroup
}

// NewPool builds a pool with capacity and worker count defaulted when
// non-positive.
func NewPool(capacity, workers int, engine EngineClient, resolveProvider ProviderFunc, trim TrimFunc, logger *slog.Logger) *Pool {
	if workers <= 0 {
		workers = DefaultWorkerCount
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		queue:    NewQueue(capacity),
		provider: resolveProvider,
		engine:   engine,
		workers:  workers,
		trim:     trim,
		logger:   logger,
		jobs:     make(map[string]*Job),
		pending:  make(map[string]Request),
	}
}

// SetUsageFunc wires in the usage recorder. Kept separate from NewPool
// so callers that don't track usage (tests, extraction disabled) don't
// need to pass a nil func explicitly.
func (p *Pool) SetUsageFunc(f UsageFunc) { p.recordUsage = f }

// Provider resolves the current LLM provider the same way a dispatched
// job would, for callers outside the pool (e.g. the consolidation
// endpoint) that need one-off completions rather than a queued job. Nil
// if extraction is disabled.
func (p *Pool) Provider() llm.Provider {
	if p.provider == nil {
		return nil
	}
	return p.provider()
}

// SetTrimFunc rewires the per-job trim hook. The governor constructs its
// own Trimmer after the pool already exists (the pool is one of the
// governor's constructor arguments), so the pool is built with a nil
// trim func and this setter closes the loop once the governor is up.
func (p *Pool) SetTrimFunc(f TrimFunc) { p.trim = f }

// Start launches the worker goroutines; they run until ctx is canceled.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.runWorker(ctx)
	}
}

// Wait blocks until all workers have exited (call after canceling ctx).
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Submit enqueues a new extraction job, returning the job id on success
// or ErrQueueFull (with a suggested retry-after) on overflow.
func (p *Pool) Submit(req Request) (jobID string, retryAfterSec int, err error) {
	id := ulid.Make().String()

	job := &Job{
		ID:            id,
		Status:        StatusQueued,
		Source:        req.Source,
		Context:       req.Context,
		MessageLength: len(req.Messages),
		CreatedAt:     time.Now(),
	}

	p.mu.Lock()
	p.jobs[id] = job
	p.mu.Unlock()

	p.pendingMu.Lock()
	p.pending[id] = req
	p.pendingMu.Unlock()

	if err := p.queue.Enqueue(id); err != nil {
		p.mu.Lock()
		delete(p.jobs, id)
		p.mu.Unlock()
		p.pendingMu.Lock()
		delete(p.pending, id)
		p.pendingMu.Unlock()

		depth := p.queue.Depth()
		return "", RetryAfterSeconds(depth, p.workers), ErrQueueFull
	}

	return id, 0, nil
}

// Get looks up a job's current state by id.
func (p *Pool) Get(jobID string) (*Job, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	j, ok := p.jobs[jobID]
	return j, ok
}

// QueueDepth reports the number of jobs waiting to be picked up.
func (p *Pool) QueueDepth() int {
	return p.queue.Depth()
}

// ReapFinished drops completed/failed jobs older than retention, then
// evicts the oldest finished jobs down to maxJobs if still over cap.
// Called by the background governor's periodic job reaper.
func (p *Pool) ReapFinished(retention time.Duration, maxJobs int) {
	now := time.Now()
	p.mu.Lock()
	defer p.mu.Unlock()

	for id, job := range p.jobs {
		if !isFinished(job.Status) || job.CompletedAt == nil {
			continue
		}
		if now.Sub(*job.CompletedAt) > retention {
			delete(p.jobs, id)
		}
	}

	if maxJobs <= 0 || len(p.jobs) <= maxJobs {
		return
	}

	type finishedJob struct {
		id          string
		completedAt time.Time
	}
	var finished []finishedJob
	for id, job := range p.jobs {
		if isFinished(job.Status) && job.CompletedAt != nil {
			finished = append(finished, finishedJob{id, *job.CompletedAt})
		}
	}
	for len(p.jobs) > maxJobs && len(finished) > 0 {
		oldestIdx := 0
		for i := range finished {
			if finished[i].completedAt.Before(finished[oldestIdx].completedAt) {
				oldestIdx = i
			}
		}
		delete(p.jobs, finished[oldestIdx].id)
		finished = append(finished[:oldestIdx], finished[oldestIdx+1:]...)
	}
}

func isFinished(s Status) bool {
	return s == StatusCompleted || s == StatusFailed
}

func (p *Pool) runWorker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case jobID, ok := <-p.queue.Chan():
			if !ok {
				return
			}
			p.runJob(ctx, jobID)
		}
	}
}

func (p *Pool) runJob(ctx context.Context, jobID string) {
	p.pendingMu.Lock()
	req, ok := p.pending[jobID]
	delete(p.pending, jobID)
	p.pendingMu.Unlock()
	if !ok {
		return
	}

	now := time.Now()
	p.mu.Lock()
	job := p.jobs[jobID]
	job.Status = StatusRunning
	job.StartedAt = &now
	p.mu.Unlock()

	provider := p.provider()
	result := RunExtraction(ctx, provider, p.engine, req)

	completed := time.Now()
	p.mu.Lock()
	job.CompletedAt = &completed
	if result.Error != "" {
		job.Status = StatusFailed
		job.Error = result.Error
	} else {
		job.Status = StatusCompleted
	}
	job.Result = &result
	p.mu.Unlock()

	if p.recordUsage != nil {
		tokens := result.ExtractTokens
		tokens.Input += result.AUDNTokens.Input
		tokens.Output += result.AUDNTokens.Output
		p.recordUsage(tokens.Input, tokens.Output)
	}

	if p.trim != nil {
		p.trim("extract:" + req.Context)
	}
}
