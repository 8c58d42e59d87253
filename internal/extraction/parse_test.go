package extraction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSONArray_DirectJSON(t *testing.T) {
	arr := parseJSONArray(`[{"text":"a"},{"text":"b"}]`)
	require.Len(t, arr, 2)
}

func TestParseJSONArray_FencedCodeBlock(t *testing.T) {
	arr := parseJSONArray("Here you go:\n```json\n[{\"text\":\"a\"}]\n```\nThanks!")
	require.Len(t, arr, 1)
}

func TestParseJSONArray_FirstBracketSubstring(t *testing.T) {
	arr := parseJSONArray(`Sure, the facts are [{"text":"a"}] as requested.`)
	require.Len(t, arr, 1)
}

func TestParseJSONArray_UnparseableReturnsNil(t *testing.T) {
	assert.Nil(t, parseJSONArray("not json at all"))
}

func TestParseFacts_ObjectItemsWithUnknownCategoryFallBackToDetail(t *testing.T) {
	raw := []any{
		map[string]any{"category": "decision", "text": "Uses Postgres"},
		map[string]any{"category": "bogus", "text": "some detail"},
	}
	facts := parseFacts(raw, DefaultMaxFactChars, DefaultMaxFacts)
	require.Len(t, facts, 2)
	assert.Equal(t, CategoryDecision, facts[0].Category)
	assert.Equal(t, CategoryDetail, facts[1].Category)
}

func TestParseFacts_PlainStringBecomesDetail(t *testing.T) {
	raw := []any{"a bare string fact"}
	facts := parseFacts(raw, DefaultMaxFactChars, DefaultMaxFacts)
	require.Len(t, facts, 1)
	assert.Equal(t, CategoryDetail, facts[0].Category)
	assert.Equal(t, "a bare string fact", facts[0].Text)
}

func TestParseFacts_EmptyItemsDropped(t *testing.T) {
	raw := []any{"", "   ", map[string]any{"text": ""}}
	facts := parseFacts(raw, DefaultMaxFactChars, DefaultMaxFacts)
	assert.Empty(t, facts)
}

func TestParseFacts_CapsToMaxFacts(t *testing.T) {
	raw := make([]any, 5)
	for i := range raw {
		raw[i] = "a sufficiently long fact line number here"
	}
	facts := parseFacts(raw, DefaultMaxFactChars, 3)
	assert.Len(t, facts, 3)
}

func TestClipText_TruncatesWithEllipsisAndCollapsesWhitespace(t *testing.T) {
	text := clipText("word1   word2\nword3", 9)
	assert.True(t, len(text) <= 9)
	assert.Contains(t, text, "...")
}

func TestParseDecisions_UppercasesActionAndParsesIDs(t *testing.T) {
	raw := []any{
		map[string]any{"action": "update", "fact_index": float64(0), "old_id": float64(30), "new_text": "new text"},
	}
	decisions := parseDecisions(raw)
	require.Len(t, decisions, 1)
	assert.Equal(t, ActionUpdate, decisions[0].Action)
	require.NotNil(t, decisions[0].OldID)
	assert.Equal(t, int64(30), *decisions[0].OldID)
}

func TestParseDecisions_ItemWithoutActionDropped(t *testing.T) {
	raw := []any{map[string]any{"fact_index": float64(0)}}
	assert.Empty(t, parseDecisions(raw))
}
