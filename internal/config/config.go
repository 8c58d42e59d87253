// Package config loads memoryd's configuration through a precedence
// chain: compiled-in defaults, an optional YAML file, then MEMORYD_*
// environment variable overrides, validated before use.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete memoryd configuration.
type Config struct {
	Version int `yaml:"version" json:"version"`

	DataDir string       `yaml:"data_dir" json:"data_dir"`
	Server  ServerConfig `yaml:"server" json:"server"`

	Vector     VectorConfig     `yaml:"vector" json:"vector"`
	BM25       BM25Config       `yaml:"bm25" json:"bm25"`
	Fusion     FusionConfig     `yaml:"fusion" json:"fusion"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	LLM        LLMConfig        `yaml:"llm" json:"llm"`

	Extraction ExtractionConfig `yaml:"extraction" json:"extraction"`
	Governor   GovernorConfig   `yaml:"governor" json:"governor"`
	Snapshot   SnapshotConfig   `yaml:"snapshot" json:"snapshot"`
	Cloud      CloudConfig      `yaml:"cloud" json:"cloud"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	ListenAddr      string        `yaml:"listen_addr" json:"listen_addr"`
	LogLevel        string        `yaml:"log_level" json:"log_level"`
	APIKey          string        `yaml:"api_key" json:"-"`
	RateLimitRPS    float64       `yaml:"rate_limit_rps" json:"rate_limit_rps"`
	RateLimitBurst  int           `yaml:"rate_limit_burst" json:"rate_limit_burst"`
	TrustedProxies  []string      `yaml:"trusted_proxies" json:"trusted_proxies"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// VectorConfig tunes the HNSW vector store adapter.
type VectorConfig struct {
	Metric   string `yaml:"metric" json:"metric"` // "cos" or "l2"
	M        int    `yaml:"m" json:"m"`
	EfSearch int    `yaml:"ef_search" json:"ef_search"`
}

// BM25Config tunes the sparse index and the AddSnapshotAbove threshold
// shared with the dense side of a write.
type BM25Config struct {
	AddBatchSize     int `yaml:"add_batch_size" json:"add_batch_size"`
	EncodeChunkSize  int `yaml:"encode_chunk_size" json:"encode_chunk_size"`
	AddSnapshotAbove int `yaml:"add_snapshot_above" json:"add_snapshot_above"`
	ChunkMaxSize     int `yaml:"chunk_max_size" json:"chunk_max_size"`
	ChunkOverlap     int `yaml:"chunk_overlap" json:"chunk_overlap"`
}

// FusionConfig controls Reciprocal Rank Fusion and the dedup/novelty
// thresholds that ride alongside it.
type FusionConfig struct {
	RRFConstant      int     `yaml:"rrf_constant" json:"rrf_constant"`
	VectorWeight     float64 `yaml:"vector_weight" json:"vector_weight"`
	DedupThreshold   float64 `yaml:"dedup_threshold" json:"dedup_threshold"`
	NoveltyThreshold float64 `yaml:"novelty_threshold" json:"novelty_threshold"`
}

// EmbeddingsConfig selects and tunes the embedder backend.
type EmbeddingsConfig struct {
	Provider  string `yaml:"provider" json:"provider"` // "static", "ollama", "openai"
	Model     string `yaml:"model" json:"model"`
	CacheSize int    `yaml:"cache_size" json:"cache_size"`

	OllamaHost string `yaml:"ollama_host" json:"ollama_host"`
	OpenAIKey  string `yaml:"openai_api_key" json:"-"`
}

// LLMConfig selects and tunes the extraction pipeline's completion
// provider, including the circuit breaker wrapped around it.
type LLMConfig struct {
	Provider  string `yaml:"provider" json:"provider"` // "anthropic", "openai", "ollama"
	Model     string `yaml:"model" json:"model"`
	APIKey    string `yaml:"api_key" json:"-"`
	OllamaURL string `yaml:"ollama_url" json:"ollama_url"`

	BreakerMaxFailures uint32        `yaml:"breaker_max_failures" json:"breaker_max_failures"`
	BreakerTimeout     time.Duration `yaml:"breaker_timeout" json:"breaker_timeout"`
}

// ExtractionConfig tunes the async fact-extraction queue.
type ExtractionConfig struct {
	QueueCapacity int `yaml:"queue_capacity" json:"queue_capacity"`
	WorkerCount   int `yaml:"worker_count" json:"worker_count"`
}

// GovernorConfig tunes the background memory/reload supervisor.
type GovernorConfig struct {
	CheckInterval       time.Duration `yaml:"check_interval" json:"check_interval"`
	RSSThresholdMB      uint64        `yaml:"rss_threshold_mb" json:"rss_threshold_mb"`
	RequiredHighStreak  int           `yaml:"required_high_streak" json:"required_high_streak"`
	MinReloadInterval   time.Duration `yaml:"min_reload_interval" json:"min_reload_interval"`
	ReloadWindow        time.Duration `yaml:"reload_window" json:"reload_window"`
	MaxReloadsPerWindow int           `yaml:"max_reloads_per_window" json:"max_reloads_per_window"`
	MaxActiveRequests   int           `yaml:"max_active_requests" json:"max_active_requests"`
	MaxQueueDepth       int           `yaml:"max_queue_depth" json:"max_queue_depth"`
	JobReapInterval     time.Duration `yaml:"job_reap_interval" json:"job_reap_interval"`
	JobRetention        time.Duration `yaml:"job_retention" json:"job_retention"`
	MaxJobs             int           `yaml:"max_jobs" json:"max_jobs"`
	TrimInterval        time.Duration `yaml:"trim_interval" json:"trim_interval"`
	TrimCooldown        time.Duration `yaml:"trim_cooldown" json:"trim_cooldown"`
}

// SnapshotConfig controls local backup retention.
type SnapshotConfig struct {
	RetentionCount int `yaml:"retention_count" json:"retention_count"`
}

// CloudConfig mirrors snapshot.CloudConfig's fields for YAML/env loading.
type CloudConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	Bucket    string `yaml:"bucket" json:"bucket"`
	Prefix    string `yaml:"prefix" json:"prefix"`
	Region    string `yaml:"region" json:"region"`
	Endpoint  string `yaml:"endpoint" json:"endpoint"`
	AccessKey string `yaml:"access_key" json:"-"`
	SecretKey string `yaml:"secret_key" json:"-"`
}

// NewConfig returns a Config with sensible defaults, matching the
// engine's own package-level defaults where the two overlap.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		DataDir: "./data",
		Server: ServerConfig{
			ListenAddr:      ":8420",
			LogLevel:        "info",
			RateLimitRPS:    10,
			RateLimitBurst:  20,
			ShutdownTimeout: 10 * time.Second,
		},
		Vector: VectorConfig{
			Metric:   "cos",
			M:        16,
			EfSearch: 64,
		},
		BM25: BM25Config{
			AddBatchSize:     256,
			EncodeChunkSize:  100,
			AddSnapshotAbove: 10,
			ChunkMaxSize:     1500,
			ChunkOverlap:     200,
		},
		Fusion: FusionConfig{
			RRFConstant:      60,
			VectorWeight:     0.7,
			DedupThreshold:   0.90,
			NoveltyThreshold: 0.88,
		},
		Embeddings: EmbeddingsConfig{
			Provider:   "static",
			CacheSize:  2048,
			OllamaHost: "http://localhost:11434",
		},
		LLM: LLMConfig{
			Provider:           "anthropic",
			OllamaURL:          "http://localhost:11434",
			BreakerMaxFailures: 5,
			BreakerTimeout:     30 * time.Second,
		},
		Extraction: ExtractionConfig{
			QueueCapacity: 100,
			WorkerCount:   4,
		},
		Governor: GovernorConfig{
			CheckInterval:       30 * time.Second,
			RSSThresholdMB:      1536,
			RequiredHighStreak:  3,
			MinReloadInterval:   5 * time.Minute,
			ReloadWindow:        time.Hour,
			MaxReloadsPerWindow: 3,
			MaxActiveRequests:   0,
			MaxQueueDepth:       0,
			JobReapInterval:     time.Minute,
			JobRetention:        time.Hour,
			MaxJobs:             1000,
			TrimInterval:        5 * time.Minute,
			TrimCooldown:        time.Hour,
		},
		Snapshot: SnapshotConfig{RetentionCount: 10},
	}
}

// Load builds a Config from defaults, then an optional YAML file at
// path (if it exists), then MEMORYD_* environment overrides, then
// validates the result.
func Load(path string) (*Config, error) {
	cfg := NewConfig()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := cfg.loadYAML(path); err != nil {
				return nil, err
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: stat %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	c.mergeWith(&parsed)
	return nil
}

// mergeWith overlays every non-zero field of other onto c. Struct
// fields are merged recursively so a YAML file only needs to name the
// settings it changes.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}
	if other.DataDir != "" {
		c.DataDir = other.DataDir
	}

	mergeServer(&c.Server, other.Server)
	mergeVector(&c.Vector, other.Vector)
	mergeBM25(&c.BM25, other.BM25)
	mergeFusion(&c.Fusion, other.Fusion)
	mergeEmbeddings(&c.Embeddings, other.Embeddings)
	mergeLLM(&c.LLM, other.LLM)
	mergeExtraction(&c.Extraction, other.Extraction)
	mergeGovernor(&c.Governor, other.Governor)

	if other.Snapshot.RetentionCount != 0 {
		c.Snapshot.RetentionCount = other.Snapshot.RetentionCount
	}
	mergeCloud(&c.Cloud, other.Cloud)
}

func mergeServer(c *ServerConfig, o ServerConfig) {
	if o.ListenAddr != "" {
		c.ListenAddr = o.ListenAddr
	}
	if o.LogLevel != "" {
		c.LogLevel = o.LogLevel
	}
	if o.APIKey != "" {
		c.APIKey = o.APIKey
	}
	if o.RateLimitRPS != 0 {
		c.RateLimitRPS = o.RateLimitRPS
	}
	if o.RateLimitBurst != 0 {
		c.RateLimitBurst = o.RateLimitBurst
	}
	if len(o.TrustedProxies) > 0 {
		c.TrustedProxies = o.TrustedProxies
	}
	if o.ShutdownTimeout != 0 {
		c.ShutdownTimeout = o.ShutdownTimeout
	}
}

func mergeVector(c *VectorConfig, o VectorConfig) {
	if o.Metric != "" {
		c.Metric = o.Metric
	}
	if o.M != 0 {
		c.M = o.M
	}
	if o.EfSearch != 0 {
		c.EfSearch = o.EfSearch
	}
}

func mergeBM25(c *BM25Config, o BM25Config) {
	if o.AddBatchSize != 0 {
		c.AddBatchSize = o.AddBatchSize
	}
	if o.EncodeChunkSize != 0 {
		c.EncodeChunkSize = o.EncodeChunkSize
	}
	if o.AddSnapshotAbove != 0 {
		c.AddSnapshotAbove = o.AddSnapshotAbove
	}
	if o.ChunkMaxSize != 0 {
		c.ChunkMaxSize = o.ChunkMaxSize
	}
	if o.ChunkOverlap != 0 {
		c.ChunkOverlap = o.ChunkOverlap
	}
}

func mergeFusion(c *FusionConfig, o FusionConfig) {
	if o.RRFConstant != 0 {
		c.RRFConstant = o.RRFConstant
	}
	if o.VectorWeight != 0 {
		c.VectorWeight = o.VectorWeight
	}
	if o.DedupThreshold != 0 {
		c.DedupThreshold = o.DedupThreshold
	}
	if o.NoveltyThreshold != 0 {
		c.NoveltyThreshold = o.NoveltyThreshold
	}
}

func mergeEmbeddings(c *EmbeddingsConfig, o EmbeddingsConfig) {
	if o.Provider != "" {
		c.Provider = o.Provider
	}
	if o.Model != "" {
		c.Model = o.Model
	}
	if o.CacheSize != 0 {
		c.CacheSize = o.CacheSize
	}
	if o.OllamaHost != "" {
		c.OllamaHost = o.OllamaHost
	}
	if o.OpenAIKey != "" {
		c.OpenAIKey = o.OpenAIKey
	}
}

func mergeLLM(c *LLMConfig, o LLMConfig) {
	if o.Provider != "" {
		c.Provider = o.Provider
	}
	if o.Model != "" {
		c.Model = o.Model
	}
	if o.APIKey != "" {
		c.APIKey = o.APIKey
	}
	if o.OllamaURL != "" {
		c.OllamaURL = o.OllamaURL
	}
	if o.BreakerMaxFailures != 0 {
		c.BreakerMaxFailures = o.BreakerMaxFailures
	}
	if o.BreakerTimeout != 0 {
		c.BreakerTimeout = o.BreakerTimeout
	}
}

func mergeExtraction(c *ExtractionConfig, o ExtractionConfig) {
	if o.QueueCapacity != 0 {
		c.QueueCapacity = o.QueueCapacity
	}
	if o.WorkerCount != 0 {
		c.WorkerCount = o.WorkerCount
	}
}

func mergeGovernor(c *GovernorConfig, o GovernorConfig) {
	if o.CheckInterval != 0 {
		c.CheckInterval = o.CheckInterval
	}
	if o.RSSThresholdMB != 0 {
		c.RSSThresholdMB = o.RSSThresholdMB
	}
	if o.RequiredHighStreak != 0 {
		c.RequiredHighStreak = o.RequiredHighStreak
	}
	if o.MinReloadInterval != 0 {
		c.MinReloadInterval = o.MinReloadInterval
	}
	if o.ReloadWindow != 0 {
		c.ReloadWindow = o.ReloadWindow
	}
	if o.MaxReloadsPerWindow != 0 {
		c.MaxReloadsPerWindow = o.MaxReloadsPerWindow
	}
	if o.MaxActiveRequests != 0 {
		c.MaxActiveRequests = o.MaxActiveRequests
	}
	if o.MaxQueueDepth != 0 {
		c.MaxQueueDepth = o.MaxQueueDepth
	}
	if o.JobReapInterval != 0 {
		c.JobReapInterval = o.JobReapInterval
	}
	if o.JobRetention != 0 {
		c.JobRetention = o.JobRetention
	}
	if o.MaxJobs != 0 {
		c.MaxJobs = o.MaxJobs
	}
	if o.TrimInterval != 0 {
		c.TrimInterval = o.TrimInterval
	}
	if o.TrimCooldown != 0 {
		c.TrimCooldown = o.TrimCooldown
	}
}

func mergeCloud(c *CloudConfig, o CloudConfig) {
	if o.Enabled {
		c.Enabled = true
	}
	if o.Bucket != "" {
		c.Bucket = o.Bucket
	}
	if o.Prefix != "" {
		c.Prefix = o.Prefix
	}
	if o.Region != "" {
		c.Region = o.Region
	}
	if o.Endpoint != "" {
		c.Endpoint = o.Endpoint
	}
	if o.AccessKey != "" {
		c.AccessKey = o.AccessKey
	}
	if o.SecretKey != "" {
		c.SecretKey = o.SecretKey
	}
}

// applyEnvOverrides applies MEMORYD_* environment variable overrides,
// the highest-precedence layer.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("MEMORYD_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("MEMORYD_LISTEN_ADDR"); v != "" {
		c.Server.ListenAddr = v
	}
	if v := os.Getenv("MEMORYD_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv("MEMORYD_API_KEY"); v != "" {
		c.Server.APIKey = v
	}
	if v := os.Getenv("MEMORYD_EMBEDDINGS_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("MEMORYD_EMBEDDINGS_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("MEMORYD_OLLAMA_HOST"); v != "" {
		c.Embeddings.OllamaHost = v
	}
	if v := os.Getenv("MEMORYD_LLM_PROVIDER"); v != "" {
		c.LLM.Provider = v
	}
	if v := os.Getenv("MEMORYD_LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("MEMORYD_ANTHROPIC_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("MEMORYD_OPENAI_API_KEY"); v != "" {
		c.Embeddings.OpenAIKey = v
		if c.LLM.Provider == "openai" && c.LLM.APIKey == "" {
			c.LLM.APIKey = v
		}
	}
	if v := os.Getenv("MEMORYD_VECTOR_WEIGHT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Fusion.VectorWeight = f
		}
	}
	if v := os.Getenv("MEMORYD_RRF_CONSTANT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Fusion.RRFConstant = n
		}
	}
	if v := os.Getenv("MEMORYD_DEDUP_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Fusion.DedupThreshold = f
		}
	}
	if v := os.Getenv("MEMORYD_CLOUD_BUCKET"); v != "" {
		c.Cloud.Enabled = true
		c.Cloud.Bucket = v
	}
	if v := os.Getenv("MEMORYD_CLOUD_REGION"); v != "" {
		c.Cloud.Region = v
	}
	if v := os.Getenv("MEMORYD_CLOUD_ENDPOINT"); v != "" {
		c.Cloud.Endpoint = v
	}
	if v := os.Getenv("MEMORYD_CLOUD_ACCESS_KEY"); v != "" {
		c.Cloud.AccessKey = v
	}
	if v := os.Getenv("MEMORYD_CLOUD_SECRET_KEY"); v != "" {
		c.Cloud.SecretKey = v
	}
}

// Validate rejects configurations the engine or HTTP layer could not
// safely start with.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	if c.Fusion.VectorWeight < 0 || c.Fusion.VectorWeight > 1 {
		return fmt.Errorf("fusion.vector_weight must be between 0 and 1, got %f", c.Fusion.VectorWeight)
	}
	if c.Fusion.DedupThreshold < 0 || c.Fusion.DedupThreshold > 1 {
		return fmt.Errorf("fusion.dedup_threshold must be between 0 and 1, got %f", c.Fusion.DedupThreshold)
	}
	if c.Fusion.NoveltyThreshold < 0 || c.Fusion.NoveltyThreshold > 1 {
		return fmt.Errorf("fusion.novelty_threshold must be between 0 and 1, got %f", c.Fusion.NoveltyThreshold)
	}

	validEmbedProviders := map[string]bool{"static": true, "ollama": true, "openai": true}
	if !validEmbedProviders[strings.ToLower(c.Embeddings.Provider)] {
		return fmt.Errorf("embeddings.provider must be 'static', 'ollama', or 'openai', got %q", c.Embeddings.Provider)
	}

	validLLMProviders := map[string]bool{"anthropic": true, "openai": true, "ollama": true}
	if !validLLMProviders[strings.ToLower(c.LLM.Provider)] {
		return fmt.Errorf("llm.provider must be 'anthropic', 'openai', or 'ollama', got %q", c.LLM.Provider)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %q", c.Server.LogLevel)
	}

	if c.Extraction.QueueCapacity <= 0 {
		return fmt.Errorf("extraction.queue_capacity must be positive, got %d", c.Extraction.QueueCapacity)
	}
	if c.Extraction.WorkerCount <= 0 {
		return fmt.Errorf("extraction.worker_count must be positive, got %d", c.Extraction.WorkerCount)
	}

	if c.Cloud.Enabled && c.Cloud.Bucket == "" {
		return fmt.Errorf("cloud.bucket is required when cloud.enabled is true")
	}

	return nil
}

// WriteYAML writes the configuration to path as YAML.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: create dir for %s: %w", path, err)
	}
	return os.WriteFile(path, data, 0o644)
}
