package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListMemories_PaginatesByOffsetAndLimit(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	_, err := e.Add(ctx, []string{"a", "b", "c", "d"}, []string{"s", "s", "s", "s"}, nil, false, 0)
	require.NoError(t, err)

	page := e.ListMemories(1, 2, "")
	require.Len(t, page, 2)
	assert.Equal(t, int64(1), page[0].ID)
	assert.Equal(t, int64(2), page[1].ID)
}

func TestListMemories_OffsetPastEndReturnsEmpty(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.Add(context.Background(), []string{"a"}, []string{"s"}, nil, false, 0)
	require.NoError(t, err)

	page := e.ListMemories(50, 10, "")
	assert.Empty(t, page)
}

func TestListMemories_SourcePrefixFilter(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.Add(context.Background(), []string{"a", "b"}, []string{"folder/a.md", "other/b.md"}, nil, false, 0)
	require.NoError(t, err)

	page := e.ListMemories(0, 10, "folder/")
	require.Len(t, page, 1)
	assert.Equal(t, "folder/a.md", page[0].Source)
}

func TestCountMemories_WithAndWithoutPrefix(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.Add(context.Background(), []string{"a", "b"}, []string{"folder/a.md", "other/b.md"}, nil, false, 0)
	require.NoError(t, err)

	assert.Equal(t, 2, e.CountMemories(""))
	assert.Equal(t, 1, e.CountMemories("folder/"))
}
