package governor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/divyekant/memoryd/internal/extraction"
)

// Governor owns the four cooperative background loops described in the
// background-governance section of the design: a periodic extraction-job
// reaper, a periodic memory trimmer, an RSS-driven embedder auto-reloader,
// and the extraction worker pool's own lifecycle. Each loop is an
// independent cron entry cancelled through a shared context rather than a
// hand-rolled time.Ticker, since the reaper/trim/reload cadences are
// naturally expressed as schedules and a future operator-configurable
// cadence (e.g. "reap nightly") is then just a different cron expression.
type Governor struct {
	cfg Config

	pool     *extraction.Pool
	trimmer  *Trimmer
	reloader *reloader
	decider  *reloadDecider

	activeRequests ActiveRequestsFunc
	queueDepth     QueueDepthFunc

	logger *slog.Logger
	cron   *cron.Cron

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
}

// New builds a Governor. embedderReloader may be nil if auto-reload should
// be disabled (the loop becomes a no-op RSS sampler in that case).
func New(cfg Config, pool *extraction.Pool, embedderReloader EmbedderReloader, activeRequests ActiveRequestsFunc, queueDepth QueueDepthFunc, logger *slog.Logger) *Governor {
	cfg = cfg.WithDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	if activeRequests == nil {
		activeRequests = func() int { return 0 }
	}
	if queueDepth == nil {
		queueDepth = func() int { return 0 }
	}

	trimmer := NewTrimmer(cfg.TrimCooldown)

	g := &Governor{
		cfg:            cfg,
		pool:           pool,
		trimmer:        trimmer,
		decider:        newReloadDecider(cfg),
		activeRequests: activeRequests,
		queueDepth:     queueDepth,
		logger:         logger,
		cron:           cron.New(),
	}
	if embedderReloader != nil {
		g.reloader = newReloaderWrapper(embedderReloader, trimmer)
	}
	return g
}

// Trimmer exposes the memory trimmer so other components (the extraction
// pool's per-job hook) can call it with their own reason string.
func (g *Governor) Trimmer() *Trimmer {
	return g.trimmer
}

// Start schedules all loops and begins the extraction worker pool. The
// governor's own context controls its cron loops; ctx cancellation stops
// the cron scheduler and the worker pool together.
func (g *Governor) Start(ctx context.Context) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.started {
		return
	}
	ctx, g.cancel = context.WithCancel(ctx)
	g.started = true

	g.cron.Schedule(cron.Every(g.cfg.JobReapInterval), cron.FuncJob(func() {
		g.runReaper(ctx)
	}))
	g.cron.Schedule(cron.Every(g.cfg.TrimInterval), cron.FuncJob(func() {
		g.trimmer.Run("periodic")
	}))
	g.cron.Schedule(cron.Every(g.cfg.CheckInterval), cron.FuncJob(func() {
		g.runReloadCheck(ctx)
	}))
	g.cron.Start()

	if g.pool != nil {
		g.pool.Start(ctx)
	}

	g.logger.Info("background governor started",
		slog.Duration("job_reap_interval", g.cfg.JobReapInterval),
		slog.Duration("trim_interval", g.cfg.TrimInterval),
		slog.Duration("check_interval", g.cfg.CheckInterval))
}

// Stop cancels all loops and waits for the extraction pool's workers to
// drain in-flight jobs.
func (g *Governor) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.started {
		return
	}
	g.started = false

	stopCtx := g.cron.Stop()
	<-stopCtx.Done()

	if g.cancel != nil {
		g.cancel()
	}
	if g.pool != nil {
		g.pool.Wait()
	}

	g.logger.Info("background governor stopped")
}

func (g *Governor) runReaper(ctx context.Context) {
	if g.pool == nil {
		return
	}
	select {
	case <-ctx.Done():
		return
	default:
	}
	g.pool.ReapFinished(g.cfg.JobRetention, g.cfg.MaxJobs)
}

func (g *Governor) runReloadCheck(ctx context.Context) {
	if g.reloader == nil {
		return
	}
	select {
	case <-ctx.Done():
		return
	default:
	}

	rss := sampleRSS()
	active := g.activeRequests()
	depth := g.queueDepth()

	if !g.decider.observe(rss, active, depth) {
		return
	}

	g.logger.Info("embedder auto-reload triggered",
		slog.Uint64("rss_bytes", rss),
		slog.Int("active_requests", active),
		slog.Int("queue_depth", depth))

	if err := g.reloader.run(ctx, "rss_pressure"); err != nil {
		g.logger.Warn("embedder auto-reload failed", slog.String("error", err.Error()))
		return
	}
	g.decider.recordReload(time.Now())
	g.logger.Info("embedder auto-reload succeeded")
}

// Metrics returns a point-in-time snapshot of trim and reload counters for
// the /metrics endpoint.
func (g *Governor) Metrics() (TrimCounters, ReloadCounters) {
	trim := g.trimmer.Counters()
	var reload ReloadCounters
	if g.reloader != nil {
		reload = g.reloader.snapshot()
	} else {
		reload = ReloadCounters{ReasonCounts: map[string]int64{}}
	}
	return trim, reload
}
