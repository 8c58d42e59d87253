package llm

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const DefaultAnthropicModel = "claude-3-5-haiku-latest"

// AnthropicConfig configures the Anthropic-backed provider.
type AnthropicConfig struct {
	APIKey    string
	Model     string
	MaxTokens int
}

// Anthropic calls the Messages API. It supports AUDN: Claude models
// reliably return well-formed JSON decisions when asked.
type Anthropic struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

func NewAnthropic(cfg AnthropicConfig) *Anthropic {
	model := cfg.Model
	if model == "" {
		model = DefaultAnthropicModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &Anthropic{
		client:    anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:     model,
		maxTokens: int64(maxTokens),
	}
}

func (a *Anthropic) ProviderName() string { return "anthropic" }
func (a *Anthropic) Model() string        { return a.model }
func (a *Anthropic) SupportsAUDN() bool   { return true }

func (a *Anthropic) Complete(ctx context.Context, system, user string) (Completion, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: a.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return Completion{}, err
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			text.WriteString(tb.Text)
		}
	}

	return Completion{
		Text:         text.String(),
		InputTokens:  int(msg.Usage.InputTokens),
		OutputTokens: int(msg.Usage.OutputTokens),
	}, nil
}

func (a *Anthropic) HealthCheck(ctx context.Context) bool {
	_, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: 1,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock("ping")),
		},
	})
	return err == nil
}
