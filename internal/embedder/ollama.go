package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	DefaultOllamaHost    = "http://localhost:11434"
	DefaultOllamaModel   = "nomic-embed-text"
	ollamaConnectTimeout = 5 * time.Second
	ollamaRequestTimeout = 30 * time.Second
	ollamaPoolSize       = 4
)

// OllamaConfig configures the Ollama-backed embedder.
type OllamaConfig struct {
	Host            string
	Model           string
	Dimensions      int // 0 autodetects from a probe embedding
	BatchSize       int
	RequestTimeout  time.Duration
	RetryConfig     RetryConfig
	SkipHealthCheck bool // for tests
}

func (c OllamaConfig) withDefaults() OllamaConfig {
	if c.Host == "" {
		c.Host = DefaultOllamaHost
	}
	if c.Model == "" {
		c.Model = DefaultOllamaModel
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = ollamaRequestTimeout
	}
	if c.RetryConfig.MaxRetries == 0 && c.RetryConfig.BaseDelay == 0 {
		c.RetryConfig = DefaultRetryConfig()
	}
	return c
}

type ollamaEmbedRequest struct {
	Model string `json:"model"`
	Input any    `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}

// Ollama embeds text via a local or remote Ollama server's /api/embed
// endpoint.
type Ollama struct {
	client    *http.Client
	transport *http.Transport
	config    OllamaConfig
	dims      int

	mu     sync.RWMutex
	closed bool
}

var _ Embedder = (*Ollama)(nil)

// NewOllama connects to an Ollama server and, unless SkipHealthCheck is
// set, probes it once to confirm the model is reachable and to
// autodetect its output dimension.
func NewOllama(ctx context.Context, cfg OllamaConfig) (*Ollama, error) {
	cfg = cfg.withDefaults()

	transport := &http.Transport{
		MaxIdleConns:        ollamaPoolSize,
		MaxIdleConnsPerHost: ollamaPoolSize,
		MaxConnsPerHost:     ollamaPoolSize * 2,
		IdleConnTimeout:     10 * time.Second,
	}
	e := &Ollama{
		client:    &http.Client{Transport: transport},
		transport: transport,
		config:    cfg,
		dims:      cfg.Dimensions,
	}

	if !cfg.SkipHealthCheck {
		checkCtx, cancel := context.WithTimeout(ctx, ollamaConnectTimeout)
		defer cancel()

		vecs, err := e.doEmbed(checkCtx, []string{"probe"})
		if err != nil {
			transport.CloseIdleConnections()
			return nil, fmt.Errorf("embedder: ollama unreachable: %w", err)
		}
		if e.dims == 0 && len(vecs) > 0 {
			e.dims = len(vecs[0])
		}
	}

	return e, nil
}

func (e *Ollama) Dimensions() int { return e.dims }

func (e *Ollama) ModelName() string { return e.config.Model }

func (e *Ollama) Available(ctx context.Context) bool {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return false
	}
	checkCtx, cancel := context.WithTimeout(ctx, ollamaConnectTimeout)
	defer cancel()
	_, err := e.doEmbed(checkCtx, []string{"probe"})
	return err == nil
}

func (e *Ollama) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	e.transport.CloseIdleConnections()
	return nil
}

// Encode embeds texts in config-sized batches, retrying each batch with
// exponential backoff.
func (e *Ollama) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, fmt.Errorf("embedder: ollama backend closed")
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
			reqCtx, cancel := context.WithTimeout(ctx, e.config.RequestTimeout)
			defer cancel()
			v, err := e.doEmbed(reqCtx, batch)
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

	return out, nil
}

func (e *Ollama) doEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	var input any = texts
	if len(texts) == 1 {
		input = texts[0]
	}

	body, err := json.Marshal(ollamaEmbedRequest{Model: e.config.Model, Input: input})
	if err != nil {
		return nil, fmt.Errorf("embedder: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.config.Host+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedder: ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embedder: ollama status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var result ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("embedder: decode response: %w", err)
	}

	out := make([][]float32, len(result.Embeddings))
	for i, emb := range result.Embeddings {
		v := make([]float32, len(emb))
		for j, f := range emb {
			v[j] = float32(f)
		}
		out[i] = normalizeVector(v)
	}
	return out, nil
}
