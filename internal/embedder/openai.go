package embedder

import (
	"context"
	"fmt"
	"sync"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIConfig configures an OpenAI-compatible embedding backend. A
// BaseURL override lets this backend target any API that speaks the
// OpenAI embeddings wire format.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Dimensions  int // 0 autodetects from a probe embedding
	BatchSize   int
	RetryConfig RetryConfig
}

func (c OpenAIConfig) withDefaults() OpenAIConfig {
	if c.Model == "" {
		c.Model = string(openai.SmallEmbedding3)
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.RetryConfig.MaxRetries == 0 && c.RetryConfig.BaseDelay == 0 {
		c.RetryConfig = DefaultRetryConfig()
	}
	return c
}

// OpenAI embeds text through the OpenAI (or OpenAI-compatible)
// embeddings endpoint.
type OpenAI struct {
	client *openai.Client
	config OpenAIConfig
	dims   int

	mu     sync.RWMutex
	closed bool
}

var _ Embedder = (*OpenAI)(nil)

// NewOpenAI constructs the backend. It does not probe the API eagerly;
// dimension is fixed from config or learned from the first Encode call.
func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	cfg = cfg.withDefaults()

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &OpenAI{
		client: openai.NewClientWithConfig(clientCfg),
		config: cfg,
		dims:   cfg.Dimensions,
	}
}

func (e *OpenAI) Dimensions() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dims
}

func (e *OpenAI) ModelName() string { return e.config.Model }

func (e *OpenAI) Available(ctx context.Context) bool {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return false
	}
	_, err := e.embedBatch(ctx, []string{"probe"})
	return err == nil
}

func (e *OpenAI) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

func (e *OpenAI) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, fmt.Errorf("embedder: openai backend closed")
	}
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	out := make([][]float32, len(texts))
	for start := 0; start < len(texts); start += e.config.BatchSize {
		end := start + e.config.BatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]

		var vecs [][]float32
		err := WithRetry(ctx, e.config.RetryConfig, func(int) error {
			v, err := e.embedBatch(ctx, batch)
			if err != nil {
				return err
			}
			vecs = v
			return nil
		})
		if err != nil {
			return nil, err
		}
		copy(out[start:end], vecs)
	}

	if e.Dimensions() == 0 && len(out) > 0 && len(out[0]) > 0 {
		e.mu.Lock()
		e.dims = len(out[0])
		e.mu.Unlock()
	}

	return out, nil
}

func (e *OpenAI) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(e.config.Model),
	})
	if err != nil {
		return nil, fmt.Errorf("embedder: openai embeddings request failed: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedder: openai returned %d embeddings for %d inputs", len(resp.Data), len(texts))
	}

	out := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		out[i] = normalizeVector(d.Embedding)
	}
	return out, nil
}
