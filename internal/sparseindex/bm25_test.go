package sparseindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_EmptyCorpusIsNil(t *testing.T) {
	assert.Nil(t, New(nil))
}

func TestTokenize_LowercasesAndSplitsOnWhitespace(t *testing.T) {
	assert.Equal(t, []string{"the", "quick", "fox"}, Tokenize("The   Quick\tFox"))
}

func TestIndex_ScoresFavorsDocumentWithMoreQueryTermOccurrences(t *testing.T) {
	idx := New([]Document{
		{ID: 10, Text: "deploy the service to staging"},
		{ID: 20, Text: "deploy deploy deploy everything"},
		{ID: 30, Text: "unrelated text about lunch"},
	})
	require.NotNil(t, idx)

	scores := idx.Scores(Tokenize("deploy"))
	require.Len(t, scores, 3)
	assert.Greater(t, scores[1], scores[0])
	assert.Equal(t, 0.0, scores[2])
}

func TestIndex_PositionToIDMapsPositionsInInsertionOrder(t *testing.T) {
	idx := New([]Document{{ID: 7, Text: "a"}, {ID: 9, Text: "b"}})
	require.NotNil(t, idx)

	id, ok := idx.PositionToID(0)
	require.True(t, ok)
	assert.Equal(t, int64(7), id)

	id, ok = idx.PositionToID(1)
	require.True(t, ok)
	assert.Equal(t, int64(9), id)

	_, ok = idx.PositionToID(2)
	assert.False(t, ok)
}

func TestIndex_ScoresEmptyQueryReturnsAllZero(t *testing.T) {
	idx := New([]Document{{ID: 1, Text: "hello world"}})
	scores := idx.Scores(nil)
	assert.Equal(t, []float64{0}, scores)
}

func TestIndex_NilIndexScoresReturnsNil(t *testing.T) {
	var idx *Index
	assert.Nil(t, idx.Scores([]string{"x"}))
	assert.Equal(t, 0, idx.Len())
}
