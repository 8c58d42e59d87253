package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/divyekant/memoryd/internal/config"
	"github.com/divyekant/memoryd/internal/embedder"
	"github.com/divyekant/memoryd/internal/engine"
	"github.com/divyekant/memoryd/internal/llm"
	"github.com/divyekant/memoryd/internal/metadatastore"
	"github.com/divyekant/memoryd/internal/snapshot"
	"github.com/divyekant/memoryd/internal/vectorstore"
)

// vectorIndexFile is the on-disk HNSW index within a data directory.
const vectorIndexFile = "vectors.hnsw"

// stack bundles the storage and engine collaborators a CLI subcommand
// needs when it operates on the corpus directly, independent of
// whether an HTTP server happens to be running against the same
// directory.
type stack struct {
	cfg    *config.Config
	engine *engine.Engine
	store  *metadatastore.Store
	vector *vectorstore.Store
	snap   *snapshot.Manager
	local  *snapshot.Local
	cloud  *snapshot.Cloud
}

// openStack loads config and the full storage/engine stack: metadata
// store, vector store (restored from disk when present), embedder,
// and the snapshot manager. It does not start the extraction pool, the
// background governor, or the HTTP server - those are serve's job.
func openStack(ctx context.Context, logger *slog.Logger) (*stack, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	store, err := metadatastore.Open(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open metadata store: %w", err)
	}

	vector, err := vectorstore.New(vectorstore.Config{
		Metric:   cfg.Vector.Metric,
		M:        cfg.Vector.M,
		EfSearch: cfg.Vector.EfSearch,
	})
	if err != nil {
		return nil, fmt.Errorf("open vector store: %w", err)
	}

	vectorPath := filepath.Join(cfg.DataDir, vectorIndexFile)
	if _, err := os.Stat(vectorPath); err == nil {
		if err := vector.Load(vectorPath); err != nil {
			logger.Warn("vector index load failed, starting empty", slog.String("error", err.Error()))
		}
	}

	embed, err := embedder.New(ctx, embedder.Settings{
		Provider:  embedder.ParseProvider(cfg.Embeddings.Provider),
		Model:     cfg.Embeddings.Model,
		CacheSize: cfg.Embeddings.CacheSize,
		Ollama:    embedder.OllamaConfig{Host: cfg.Embeddings.OllamaHost},
		OpenAI:    embedder.OpenAIConfig{APIKey: cfg.Embeddings.OpenAIKey},
	})
	if err != nil {
		return nil, fmt.Errorf("build embedder: %w", err)
	}

	local, err := snapshot.NewLocal(filepath.Join(cfg.DataDir, "backups"), cfg.DataDir, cfg.Snapshot.RetentionCount)
	if err != nil {
		return nil, fmt.Errorf("open local snapshots: %w", err)
	}

	cloud, err := snapshot.NewCloud(ctx, snapshot.CloudConfig{
		Enabled:   cfg.Cloud.Enabled,
		Bucket:    cfg.Cloud.Bucket,
		Prefix:    cfg.Cloud.Prefix,
		Region:    cfg.Cloud.Region,
		Endpoint:  cfg.Cloud.Endpoint,
		AccessKey: cfg.Cloud.AccessKey,
		SecretKey: cfg.Cloud.SecretKey,
	})
	if err != nil {
		return nil, fmt.Errorf("build cloud mirror: %w", err)
	}

	snapMgr := snapshot.NewManager(local, cloud, logger)

	eng := engine.New(engineConfig(cfg), store, vector, embed, snapMgr, logger)

	if vector.Count() < store.Len() {
		n, err := eng.RehydrateVectors(ctx)
		if err != nil {
			return nil, fmt.Errorf("rehydrate vector store: %w", err)
		}
		if n > 0 {
			logger.Info("rehydrated vector store from metadata", slog.Int("count", n))
		}
	}

	return &stack{cfg: cfg, engine: eng, store: store, vector: vector, snap: snapMgr, local: local, cloud: cloud}, nil
}

// Close flushes the vector index to disk. Metadata and the sparse index
// are persisted by the engine itself on every mutating call.
func (s *stack) Close() error {
	return s.vector.Save(filepath.Join(s.cfg.DataDir, vectorIndexFile))
}

func engineConfig(cfg *config.Config) engine.Config {
	return engine.Config{
		DataDir:          cfg.DataDir,
		VectorMetric:     cfg.Vector.Metric,
		VectorM:          cfg.Vector.M,
		VectorEfSearch:   cfg.Vector.EfSearch,
		DedupThreshold:   cfg.Fusion.DedupThreshold,
		NoveltyThreshold: cfg.Fusion.NoveltyThreshold,
		VectorWeight:     cfg.Fusion.VectorWeight,
		RRFConstant:      cfg.Fusion.RRFConstant,
		AddBatchSize:     cfg.BM25.AddBatchSize,
		EncodeChunkSize:  cfg.BM25.EncodeChunkSize,
		AddSnapshotAbove: cfg.BM25.AddSnapshotAbove,
		ChunkMaxSize:     cfg.BM25.ChunkMaxSize,
		ChunkOverlap:     cfg.BM25.ChunkOverlap,
		EmbedProvider:    cfg.Embeddings.Provider,
		EmbedModel:       cfg.Embeddings.Model,
		StorageBackend:   "hnsw",
	}
}

func llmSettings(cfg *config.Config) llm.Settings {
	return llm.Settings{
		Kind:  llm.ParseKind(cfg.LLM.Provider),
		Model: cfg.LLM.Model,
		Breaker: llm.BreakerConfig{
			MaxFailures: cfg.LLM.BreakerMaxFailures,
			Timeout:     cfg.LLM.BreakerTimeout,
		},
		Anthropic: llm.AnthropicConfig{APIKey: cfg.LLM.APIKey, Model: cfg.LLM.Model},
		OpenAI:    llm.OpenAIConfig{APIKey: cfg.LLM.APIKey, Model: cfg.LLM.Model},
		Ollama:    llm.OllamaConfig{Host: cfg.LLM.OllamaURL, Model: cfg.LLM.Model},
	}
}

func pidPath(cfg *config.Config) string {
	return filepath.Join(cfg.DataDir, "memoryd.pid")
}
