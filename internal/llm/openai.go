package llm

import (
	"context"

	openai "github.com/sashabaranov/go-openai"
)

const DefaultOpenAIModel = "gpt-4o-mini"

// OpenAIConfig configures the OpenAI-backed provider. BaseURL overrides
// the default endpoint for OpenAI-compatible APIs (same pattern as
// internal/embedder's OpenAI backend).
type OpenAIConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
}

// OpenAI calls the chat completions API. It supports AUDN via the
// response_format=json_object hint, which every OpenAI chat model since
// gpt-3.5-turbo-1106 honors.
type OpenAI struct {
	client    *openai.Client
	model     string
	maxTokens int
}

func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	model := cfg.Model
	if model == "" {
		model = DefaultOpenAIModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &OpenAI{
		client:    openai.NewClientWithConfig(clientCfg),
		model:     model,
		maxTokens: maxTokens,
	}
}

func (o *OpenAI) ProviderName() string { return "openai" }
func (o *OpenAI) Model() string        { return o.model }
func (o *OpenAI) SupportsAUDN() bool   { return true }

func (o *OpenAI) Complete(ctx context.Context, system, user string) (Completion, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: user})

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     o.model,
		Messages:  messages,
		MaxTokens: o.maxTokens,
	})
	if err != nil {
		return Completion{}, err
	}

	var text string
	if len(resp.Choices) > 0 {
		text = resp.Choices[0].Message.Content
	}

	return Completion{
		Text:         text,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}, nil
}

func (o *OpenAI) HealthCheck(ctx context.Context) bool {
	_, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     o.model,
		Messages:  []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: "ping"}},
		MaxTokens: 1,
	})
	return err == nil
}
