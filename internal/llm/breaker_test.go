package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	name    string
	failing bool
}

func (f *fakeProvider) ProviderName() string { return f.name }
func (f *fakeProvider) Model() string        { return "fake-model" }
func (f *fakeProvider) SupportsAUDN() bool   { return true }

func (f *fakeProvider) Complete(ctx context.Context, system, user string) (Completion, error) {
	if f.failing {
		return Completion{}, errors.New("boom")
	}
	return Completion{Text: "ok", InputTokens: 1, OutputTokens: 1}, nil
}

func (f *fakeProvider) HealthCheck(ctx context.Context) bool { return !f.failing }

func TestBreakerProvider_PassesThroughSuccessfulCalls(t *testing.T) {
	p := NewBreakerProvider(&fakeProvider{name: "fake"}, BreakerConfig{})

	out, err := p.Complete(context.Background(), "sys", "hi")
	require.NoError(t, err)
	assert.Equal(t, "ok", out.Text)
}

func TestBreakerProvider_OpensAfterConsecutiveFailures(t *testing.T) {
	inner := &fakeProvider{name: "fake", failing: true}
	p := NewBreakerProvider(inner, BreakerConfig{MaxFailures: 2, Timeout: time.Minute})

	_, err1 := p.Complete(context.Background(), "", "a")
	_, err2 := p.Complete(context.Background(), "", "b")
	require.Error(t, err1)
	require.Error(t, err2)

	_, err3 := p.Complete(context.Background(), "", "c")
	require.Error(t, err3)
	assert.Contains(t, err3.Error(), "circuit open")
}

func TestBreakerProvider_PassesThroughMetadata(t *testing.T) {
	inner := &fakeProvider{name: "fake"}
	p := NewBreakerProvider(inner, BreakerConfig{})

	assert.Equal(t, "fake", p.ProviderName())
	assert.Equal(t, "fake-model", p.Model())
	assert.True(t, p.SupportsAUDN())
	assert.True(t, p.HealthCheck(context.Background()))
}
