package llm

import (
	"context"
	"fmt"
	"strings"
)

// Kind names a completion backend.
type Kind string

const (
	KindAnthropic Kind = "anthropic"
	KindOpenAI    Kind = "openai"
	KindOllama    Kind = "ollama"
)

// ParseKind maps a config string to a Kind, defaulting to KindAnthropic.
func ParseKind(s string) Kind {
	switch Kind(strings.ToLower(s)) {
	case KindOpenAI:
		return KindOpenAI
	case KindOllama:
		return KindOllama
	default:
		return KindAnthropic
	}
}

// Settings bundles the config needed to build any backend, plus the
// circuit breaker wrapped around it.
type Settings struct {
	Kind    Kind
	Model   string
	Breaker BreakerConfig

	Anthropic AnthropicConfig
	OpenAI    OpenAIConfig
	Ollama    OllamaConfig
}

// New builds the configured provider, wrapped in a circuit breaker.
func New(_ context.Context, s Settings) (Provider, error) {
	var p Provider

	switch s.Kind {
	case KindOpenAI:
		cfg := s.OpenAI
		if s.Model != "" {
			cfg.Model = s.Model
		}
		p = NewOpenAI(cfg)
	case KindOllama:
		cfg := s.Ollama
		if s.Model != "" {
			cfg.Model = s.Model
		}
		p = NewOllama(cfg)
	case KindAnthropic, "":
		cfg := s.Anthropic
		if s.Model != "" {
			cfg.Model = s.Model
		}
		p = NewAnthropic(cfg)
	default:
		return nil, fmt.Errorf("llm: unknown provider kind %q", s.Kind)
	}

	return NewBreakerProvider(p, s.Breaker), nil
}
