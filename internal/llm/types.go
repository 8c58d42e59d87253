// Package llm defines the pluggable completion-provider contract the
// extraction pipeline talks to, plus the concrete backends and the
// resilience wrapper placed in front of all of them.
package llm

import "context"

// Completion is the result of one provider call.
type Completion struct {
	Text         string
	InputTokens  int
	OutputTokens int
}

// Provider is the engine's view of an LLM backend. The engine and the
// extraction pipeline treat it as an opaque collaborator; they never
// branch on which concrete provider is wired in, except via
// SupportsAUDN to pick the decide-and-apply strategy.
type Provider interface {
	ProviderName() string
	Model() string
	SupportsAUDN() bool
	Complete(ctx context.Context, system, user string) (Completion, error)
	HealthCheck(ctx context.Context) bool
}
