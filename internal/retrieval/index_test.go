package retrieval

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
)

// stubEmbedder returns canned vectors per text and can be forced to fail.
type stubEmbedder struct {
	vectors map[string][]float32
	failAll bool
	failFor map[string]bool
	calls   int
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	s.calls++
	if s.failAll || s.failFor[text] {
		return nil, errors.New("embedding unavailable")
	}
	if v, ok := s.vectors[text]; ok {
		return v, nil
	}
	return []float32{1, 0, 0}, nil
}

func TestRetrieveEmptyCorpus(t *testing.T) {
	ix := NewIndex(nil, 0, nil)
	results, err := ix.Retrieve(context.Background(), "anything", 3)
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestSplitSectionsAtHeadings(t *testing.T) {
	content := "# Title\nintro\n## Webhooks\nRenew certs.\n## Checkout\nBlank page fix."
	sections := splitSections(content)
	require.Len(t, sections, 2)
	require.Equal(t, "Webhooks", sections[0].title)
	require.Equal(t, "Checkout", sections[1].title)
}

func TestSplitSectionsNoHeadings(t *testing.T) {
	sections := splitSections("plain text with no headings at all")
	require.Len(t, sections, 1)
}

func TestRetrieveTopKOrdering(t *testing.T) {
	ix := NewIndex(nil, 0, nil)
	content := "## alpha\ncheckout blank error\n## beta\nwebhook timeout\n## gamma\ncheckout error page\n## delta\nunrelated topic\n## epsilon\nanother unrelated"
	ix.IngestSource(context.Background(), "docs.md", content)
	require.Equal(t, 5, ix.Len())

	results, err := ix.Retrieve(context.Background(), "checkout error", 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
	for i := 1; i < len(results); i++ {
		require.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
	// Both checkout chunks outrank the rest.
	require.Contains(t, results[0].Chunk.Content, "checkout")
	require.Contains(t, results[1].Chunk.Content, "checkout")
}

func TestRetrieveStableTieOrder(t *testing.T) {
	ix := NewIndex(nil, 0, nil)
	ix.IngestSource(context.Background(), "a.md", "## one\nsame words here\n## two\nsame words here")
	results, err := ix.Retrieve(context.Background(), "same words", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, results[0].Score, results[1].Score)
	require.Equal(t, "a.md_one", results[0].Chunk.ID)
	require.Equal(t, "a.md_two", results[1].Chunk.ID)
}

func TestIngestEmbeddingFailureDegradesChunk(t *testing.T) {
	emb := &stubEmbedder{failAll: true}
	ix := NewIndex(emb, 0, nil)
	count := ix.IngestSource(context.Background(), "x.md", "## sec\nsome body")
	require.Equal(t, 1, count)
	require.Nil(t, ix.Chunks()[0].Embedding)

	// Retrieval still works through keyword fallback.
	results, err := ix.Retrieve(context.Background(), "some body", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Greater(t, results[0].Score, 0.0)
}

func TestRetrieveMixedEmbeddingModes(t *testing.T) {
	emb := &stubEmbedder{
		vectors: map[string][]float32{},
		failFor: map[string]bool{"plain\nkeyword only body": true},
	}
	ix := NewIndex(emb, 0, nil)
	ix.IngestSource(context.Background(), "m.md", "## vec\nembedded body\n## plain\nkeyword only body")

	chunks := ix.Chunks()
	require.NotNil(t, chunks[0].Embedding)
	require.Nil(t, chunks[1].Embedding)

	results, err := ix.Retrieve(context.Background(), "keyword only body", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
}

func TestReingestReplacesSource(t *testing.T) {
	ix := NewIndex(nil, 0, nil)
	ix.IngestSource(context.Background(), "doc.md", "## a\nfirst\n## b\nsecond")
	ix.IngestSource(context.Background(), "doc.md", "## a\nfirst\n## b\nsecond")
	require.Equal(t, 2, ix.Len())

	results, err := ix.Retrieve(context.Background(), "first", 3)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "doc.md_a", results[0].Chunk.ID)
}

func TestKeywordScore(t *testing.T) {
	require.Equal(t, 0.0, keywordScore("", "some content"))
	require.Equal(t, 1.0, keywordScore("checkout error", "the checkout page error was fixed"))
	require.Equal(t, 0.5, keywordScore("checkout missing", "the checkout works"))
}

func TestChunkContentBounded(t *testing.T) {
	long := make([]byte, 3000)
	for i := range long {
		long[i] = 'x'
	}
	ix := NewIndex(nil, 1000, nil)
	ix.IngestSource(context.Background(), "big.md", "## big\n"+string(long))
	require.LessOrEqual(t, len(ix.Chunks()[0].Content), 1000)
}

func TestChunkTruncationKeepsValidUTF8(t *testing.T) {
	// "é" is two bytes; an odd byte budget would land mid-rune.
	body := "## big\n" + strings.Repeat("é", 600)
	ix := NewIndex(nil, 101, nil)
	ix.IngestSource(context.Background(), "utf8.md", body)

	content := ix.Chunks()[0].Content
	require.LessOrEqual(t, len(content), 101)
	require.True(t, utf8.ValidString(content))
}

func TestTruncateBytesRuneBoundary(t *testing.T) {
	require.Equal(t, "abc", truncateBytes("abc", 10))
	require.Equal(t, "ab", truncateBytes("abcd", 2))
	require.Equal(t, "é", truncateBytes("éé", 3))
	require.True(t, utf8.ValidString(truncateBytes("日本語テキスト", 7)))
}
