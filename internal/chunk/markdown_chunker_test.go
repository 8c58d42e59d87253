package chunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit_HeaderIsPrependedToChunkText(t *testing.T) {
	content := "# Deployment notes\n\nThe staging cluster runs on spot instances and can disappear.\n"

	chunks := Split(content, "runbook.md", 0, 0)
	require.Len(t, chunks, 1)
	assert.True(t, strings.HasPrefix(chunks[0].Text, "# Deployment notes"))
	assert.Equal(t, "# Deployment notes", chunks[0].HeaderPath)
	assert.Equal(t, "runbook.md:chunk_0", chunks[0].Source)
}

func TestSplit_SkipsShortParagraphs(t *testing.T) {
	content := "# Title\n\nok\n\nThis paragraph is definitely long enough to survive the cut.\n"

	chunks := Split(content, "doc.md", 0, 0)
	require.Len(t, chunks, 1)
	assert.NotContains(t, chunks[0].Text, "ok")
}

func TestSplit_SkipsTooShortFlushedBuffer(t *testing.T) {
	content := "nope\n"

	chunks := Split(content, "doc.md", 0, 0)
	assert.Empty(t, chunks)
}

func TestSplit_HeaderTracksMostRecentSection(t *testing.T) {
	content := "# First\n\n" + strings.Repeat("alpha bravo charlie delta echo foxtrot. ", 3) +
		"\n\n# Second\n\n" + strings.Repeat("golf hotel india juliet kilo lima. ", 3) + "\n"

	chunks := Split(content, "doc.md", 0, 0)
	require.Len(t, chunks, 2)
	assert.Equal(t, "# First", chunks[0].HeaderPath)
	assert.Equal(t, "# Second", chunks[1].HeaderPath)
}

func TestSplit_FlushesOnMaxChunkSizeAndCarriesOverlap(t *testing.T) {
	para := strings.Repeat("word ", 30) // > 20 chars, comfortably over a tiny max size
	content := para + "\n\n" + para + "\n\n" + para + "\n"

	chunks := Split(content, "doc.md", 100, 20)
	require.Greater(t, len(chunks), 1)

	// flush trims each chunk, so the carried tail loses its leading space.
	tail := strings.TrimSpace(lastNChars(strings.TrimSpace(chunks[0].Text), 20))
	assert.True(t, strings.HasPrefix(chunks[1].Text, tail))
}

func TestSplit_ChunkSourceIncludesIndexSuffix(t *testing.T) {
	para := strings.Repeat("word ", 30)
	content := para + "\n\n" + para + "\n\n" + para + "\n"

	chunks := Split(content, "notes.md", 100, 20)
	require.Greater(t, len(chunks), 1)
	assert.Equal(t, "notes.md:chunk_0", chunks[0].Source)
	assert.Equal(t, "notes.md:chunk_1", chunks[1].Source)
}

func TestSplit_EmptyContentYieldsNoChunks(t *testing.T) {
	assert.Empty(t, Split("", "empty.md", 0, 0))
	assert.Empty(t, Split("   \n\n\t\n", "empty.md", 0, 0))
}

func TestSplit_HeaderOnlyDocumentYieldsNoChunks(t *testing.T) {
	assert.Empty(t, Split("# Just a title\n", "title.md", 0, 0))
}

func TestSplit_NoHeaderDocumentStillChunks(t *testing.T) {
	content := "This is a plain paragraph with no markdown headers at all, just prose.\n"

	chunks := Split(content, "plain.md", 0, 0)
	require.Len(t, chunks, 1)
	assert.Empty(t, chunks[0].HeaderPath)
}

func TestSplit_OnlyFiveHashesIsNotTreatedAsHeader(t *testing.T) {
	content := "##### deep header text here to pass length\n\nSome content that is long enough to keep.\n"

	chunks := Split(content, "doc.md", 0, 0)
	require.Len(t, chunks, 1)
	assert.Empty(t, chunks[0].HeaderPath, "h5 is not an ATX level 1-4 header")
	assert.Contains(t, chunks[0].Text, "#####")
}
