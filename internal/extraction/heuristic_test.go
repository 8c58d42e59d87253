package extraction

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFallbackCandidates_MatchesDecisionLanguage(t *testing.T) {
	messages := "User: hey how's it going?\n" +
		"Assistant: We decided to use Postgres instead of MySQL for the new service.\n" +
		"User: ok thanks"

	candidates := fallbackCandidates(messages)
	require.Len(t, candidates, 1)
	assert.Contains(t, candidates[0], "Postgres")
	assert.NotContains(t, candidates[0], "Assistant:")
}

func TestFallbackCandidates_SkipsQuestionsAndShortLines(t *testing.T) {
	messages := "Should we use Postgres?\nok\nWe should use Postgres for this."
	candidates := fallbackCandidates(messages)
	require.Len(t, candidates, 1)
	assert.Equal(t, "We should use Postgres for this.", candidates[0])
}

func TestFallbackCandidates_CapsAtFallbackMaxFacts(t *testing.T) {
	messages := "We decided to use Postgres for storage today.\n" +
		"We decided to use Redis for caching as well today."
	candidates := fallbackCandidates(messages)
	assert.LessOrEqual(t, len(candidates), FallbackMaxFacts)
}

type fakeEngineClient struct {
	novel    bool
	addCalls int
}

func (f *fakeEngineClient) HybridSearch(ctx context.Context, query string, k int) ([]SimilarMemory, error) {
	return nil, nil
}
func (f *fakeEngineClient) IsNovel(ctx context.Context, text string, threshold float64) (bool, error) {
	return f.novel, nil
}
func (f *fakeEngineClient) AddMemory(ctx context.Context, text, source string, metadata map[string]any, deduplicate bool) (int64, error) {
	f.addCalls++
	return int64(f.addCalls), nil
}
func (f *fakeEngineClient) DeleteMemory(ctx context.Context, id int64) error { return nil }

func TestRunFallbackExtraction_NovelFactIsAdded(t *testing.T) {
	engine := &fakeEngineClient{novel: true}
	req := Request{Messages: "We decided to use Postgres for storage today.", Source: "chat"}

	result := RunFallbackExtraction(context.Background(), engine, req)
	assert.True(t, result.FallbackTriggered)
	assert.Equal(t, 1, result.StoredCount)
	assert.Equal(t, 1, engine.addCalls)
}

func TestRunFallbackExtraction_DuplicateFactIsNoop(t *testing.T) {
	engine := &fakeEngineClient{novel: false}
	req := Request{Messages: "We decided to use Postgres for storage today.", Source: "chat"}

	result := RunFallbackExtraction(context.Background(), engine, req)
	assert.Equal(t, 0, result.StoredCount)
	assert.Equal(t, 0, engine.addCalls)
	require.Len(t, result.Actions, 1)
	assert.Equal(t, "noop", result.Actions[0].Action)
}
