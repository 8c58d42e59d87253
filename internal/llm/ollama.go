package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const (
	DefaultOllamaLLMHost  = "http://localhost:11434"
	DefaultOllamaLLMModel = "llama3.1"
)

// OllamaConfig configures the local Ollama-backed provider.
type OllamaConfig struct {
	Host           string
	Model          string
	RequestTimeout time.Duration
}

// Ollama calls a local model's /api/chat endpoint. It does not support
// AUDN: small local models are unreliable at returning well-formed
// decision JSON, so the extraction pipeline falls back to isNovel for
// this provider.
type Ollama struct {
	host   string
	model  string
	client *http.Client
}

func NewOllama(cfg OllamaConfig) *Ollama {
	host := cfg.Host
	if host == "" {
		host = DefaultOllamaLLMHost
	}
	model := cfg.Model
	if model == "" {
		model = DefaultOllamaLLMModel
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Ollama{
		host:   host,
		model:  model,
		client: &http.Client{Timeout: timeout},
	}
}

func (o *Ollama) ProviderName() string { return "ollama" }
func (o *Ollama) Model() string        { return o.model }
func (o *Ollama) SupportsAUDN() bool   { return false }

type ollamaChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
}

type ollamaChatResponse struct {
	Message         ollamaChatMessage `json:"message"`
	PromptEvalCount int               `json:"prompt_eval_count"`
	EvalCount       int               `json:"eval_count"`
}

func (o *Ollama) Complete(ctx context.Context, system, user string) (Completion, error) {
	messages := make([]ollamaChatMessage, 0, 2)
	if system != "" {
		messages = append(messages, ollamaChatMessage{Role: "system", Content: system})
	}
	messages = append(messages, ollamaChatMessage{Role: "user", Content: user})

	body, err := json.Marshal(ollamaChatRequest{Model: o.model, Messages: messages})
	if err != nil {
		return Completion{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.host+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return Completion{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return Completion{}, fmt.Errorf("ollama: chat request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Completion{}, fmt.Errorf("ollama: chat request returned status %d", resp.StatusCode)
	}

	var out ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Completion{}, fmt.Errorf("ollama: decoding chat response: %w", err)
	}

	return Completion{
		Text:         out.Message.Content,
		InputTokens:  out.PromptEvalCount,
		OutputTokens: out.EvalCount,
	}, nil
}

func (o *Ollama) HealthCheck(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.host+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
