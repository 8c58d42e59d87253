package usage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_RecordRequestAndSummarizeAll(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.RecordRequest(ctx, "/search"))
	require.NoError(t, store.RecordRequest(ctx, "/memory"))

	summary, err := store.Summary(ctx, PeriodAll)
	require.NoError(t, err)
	assert.Equal(t, int64(2), summary.RequestCount)
}

func TestStore_RecordExtractionAccumulatesTokens(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.RecordExtraction(ctx, 100, 40))
	require.NoError(t, store.RecordExtraction(ctx, 50, 10))

	summary, err := store.Summary(ctx, PeriodAll)
	require.NoError(t, err)
	assert.Equal(t, int64(2), summary.ExtractionCount)
	assert.Equal(t, int64(150), summary.PromptTokens)
	assert.Equal(t, int64(50), summary.CompletionTokens)
}

func TestStore_PeriodTodayExcludesOlderRows(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	old := time.Now().UTC().AddDate(0, 0, -10)
	_, err = store.db.ExecContext(ctx, `INSERT INTO requests(route, occurred_at) VALUES (?, ?)`, "/old", old)
	require.NoError(t, err)
	require.NoError(t, store.RecordRequest(ctx, "/new"))

	summary, err := store.Summary(ctx, PeriodToday)
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary.RequestCount)

	all, err := store.Summary(ctx, PeriodAll)
	require.NoError(t, err)
	assert.Equal(t, int64(2), all.RequestCount)
}

func TestStore_CloseIsIdempotent(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())
}

func TestStore_OperationsFailAfterClose(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Close())

	assert.Error(t, store.RecordRequest(context.Background(), "/x"))
}
