// Package httpapi exposes the memory engine, extraction pipeline, and
// snapshot/sync layer over a plain HTTP surface, per the external
// interfaces the rest of memoryd is built to serve.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/divyekant/memoryd/internal/config"
	"github.com/divyekant/memoryd/internal/engine"
	"github.com/divyekant/memoryd/internal/extraction"
	"github.com/divyekant/memoryd/internal/snapshot"
	"github.com/divyekant/memoryd/internal/usage"
)

// Version is stamped at build time; defaulted for unstamped builds.
var Version = "dev"

// Server owns the HTTP listener and every handler's dependencies.
type Server struct {
	engine *engine.Engine
	pool   *extraction.Pool
	usage  *usage.Store

	snapMgr *snapshot.Manager
	local   *snapshot.Local
	cloud   *snapshot.Cloud

	cfg    config.ServerConfig
	logger *slog.Logger

	httpServer *http.Server
	startedAt  time.Time

	activeRequests int64
}

// Deps bundles the collaborators a Server is built from.
type Deps struct {
	Engine  *engine.Engine
	Pool    *extraction.Pool
	Usage   *usage.Store
	SnapMgr *snapshot.Manager
	Local   *snapshot.Local
	Cloud   *snapshot.Cloud // nil disables /sync/*
	Config  config.ServerConfig
	Logger  *slog.Logger
}

// New builds a Server and its routed http.Handler. It does not start
// listening; call Start for that.
func New(d Deps) *Server {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return &Server{
		engine:    d.Engine,
		pool:      d.Pool,
		usage:     d.Usage,
		snapMgr:   d.SnapMgr,
		local:     d.Local,
		cloud:     d.Cloud,
		cfg:       d.Config,
		logger:    d.Logger,
		startedAt: time.Now(),
	}
}

// Handler builds the routed, middleware-wrapped http.Handler. Exposed
// separately from Start so tests can exercise it with httptest without
// binding a socket.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /health/ready", s.handleHealthReady)
	mux.HandleFunc("GET /stats", s.handleStats)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.HandleFunc("GET /usage", s.handleUsage)

	mux.HandleFunc("POST /search", s.handleSearch)
	mux.HandleFunc("POST /search/batch", s.handleSearchBatch)

	mux.HandleFunc("POST /memory/add", s.handleMemoryAdd)
	mux.HandleFunc("POST /memory/add-batch", s.handleMemoryAddBatch)
	mux.HandleFunc("POST /memory/upsert", s.handleMemoryUpsert)
	mux.HandleFunc("POST /memory/upsert-batch", s.handleMemoryUpsertBatch)
	mux.HandleFunc("POST /memory/is-novel", s.handleMemoryIsNovel)
	mux.HandleFunc("GET /memory/{id}", s.handleMemoryGet)
	mux.HandleFunc("POST /memory/get-batch", s.handleMemoryGetBatch)
	mux.HandleFunc("PATCH /memory/{id}", s.handleMemoryUpdate)
	mux.HandleFunc("DELETE /memory/{id}", s.handleMemoryDelete)
	mux.HandleFunc("POST /memory/delete-batch", s.handleMemoryDeleteBatch)
	mux.HandleFunc("POST /memory/delete-by-source", s.handleMemoryDeleteBySource)
	mux.HandleFunc("POST /memory/delete-by-prefix", s.handleMemoryDeleteByPrefix)

	mux.HandleFunc("GET /memories", s.handleMemoriesList)
	mux.HandleFunc("GET /folders", s.handleFoldersList)
	mux.HandleFunc("POST /folders/rename", s.handleFoldersRename)

	mux.HandleFunc("POST /index/build", s.handleIndexBuild)
	mux.HandleFunc("POST /memory/deduplicate", s.handleDeduplicate)
	mux.HandleFunc("POST /memory/supersede", s.handleSupersede)
	mux.HandleFunc("POST /memory/consolidate", s.handleConsolidate)

	mux.HandleFunc("GET /backups", s.handleBackupsList)
	mux.HandleFunc("POST /backup", s.handleBackupCreate)
	mux.HandleFunc("POST /restore", s.handleRestore)

	mux.HandleFunc("GET /sync/status", s.handleSyncStatus)
	mux.HandleFunc("POST /sync/upload", s.handleSyncUpload)
	mux.HandleFunc("POST /sync/download", s.handleSyncDownload)
	mux.HandleFunc("GET /sync/snapshots", s.handleSyncSnapshots)
	mux.HandleFunc("POST /sync/restore/{name}", s.handleSyncRestore)

	mux.HandleFunc("POST /memory/extract", s.handleExtractSubmit)
	mux.HandleFunc("GET /memory/extract/{jobId}", s.handleExtractStatus)
	mux.HandleFunc("GET /extract/status", s.handleExtractQueueStatus)

	mux.HandleFunc("POST /maintenance/embedder/reload", s.handleEmbedderReload)

	return s.withMiddleware(mux)
}

// Start binds the listener and serves until ctx is cancelled, then shuts
// down gracefully within cfg.ShutdownTimeout.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.cfg.ListenAddr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", slog.String("addr", s.cfg.ListenAddr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout())
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) shutdownTimeout() time.Duration {
	if s.cfg.ShutdownTimeout > 0 {
		return s.cfg.ShutdownTimeout
	}
	return 10 * time.Second
}

func (s *Server) authorized(r *http.Request) bool {
	if s.cfg.APIKey == "" {
		return true
	}
	got := r.Header.Get("X-API-Key")
	if got == "" {
		if auth := r.Header.Get("Authorization"); len(auth) > 7 && auth[:7] == "Bearer " {
			got = auth[7:]
		}
	}
	return got == s.cfg.APIKey
}

func (s *Server) incActive(delta int64) int64 {
	return atomic.AddInt64(&s.activeRequests, delta)
}

// ActiveRequests reports the current in-flight request count, wired into
// the background governor as its ActiveRequestsFunc.
func (s *Server) ActiveRequests() int {
	return int(atomic.LoadInt64(&s.activeRequests))
}
