package embedder

import (
	"context"
	"fmt"
	"strings"
)

// Provider names an embedding backend.
type Provider string

const (
	ProviderStatic Provider = "static"
	ProviderOllama Provider = "ollama"
	ProviderOpenAI Provider = "openai"
)

// ParseProvider maps a config string to a Provider, defaulting to
// ProviderStatic for empty or unrecognized input so the service always
// starts without external dependencies.
func ParseProvider(s string) Provider {
	switch Provider(strings.ToLower(s)) {
	case ProviderOllama:
		return ProviderOllama
	case ProviderOpenAI:
		return ProviderOpenAI
	default:
		return ProviderStatic
	}
}

// Settings bundles the config needed to build any backend; fields
// irrelevant to the chosen provider are ignored.
type Settings struct {
	Provider  Provider
	Model     string
	CacheSize int // 0 uses DefaultCacheSize; negative disables caching

	Ollama OllamaConfig
	OpenAI OpenAIConfig
}

// New builds the configured backend, wrapping it with an LRU cache
// unless CacheSize is negative.
func New(ctx context.Context, s Settings) (Embedder, error) {
	var (
		e   Embedder
		err error
	)

	switch s.Provider {
	case ProviderOllama:
		cfg := s.Ollama
		if s.Model != "" {
			cfg.Model = s.Model
		}
		e, err = NewOllama(ctx, cfg)
	case ProviderOpenAI:
		cfg := s.OpenAI
		if s.Model != "" {
			cfg.Model = s.Model
		}
		e = NewOpenAI(cfg)
	case ProviderStatic, "":
		e = NewStatic()
	default:
		return nil, fmt.Errorf("embedder: unknown provider %q", s.Provider)
	}
	if err != nil {
		return nil, err
	}

	if s.CacheSize < 0 {
		return e, nil
	}
	return NewCached(e, s.CacheSize), nil
}
