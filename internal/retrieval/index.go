// Package retrieval maintains the in-memory documentation corpus and
// serves similarity-scored lookups over it.
package retrieval

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spec-kit/triage-service/internal/domain"
	"github.com/spec-kit/triage-service/internal/llm"
)

const defaultMaxChunkBytes = 1000

// Index holds ingested documentation chunks and scores them against
// queries. Reads are concurrent; ingestion takes the write lock.
type Index struct {
	mu            sync.RWMutex
	chunks        []domain.DocumentChunk
	embedder      llm.Embedder
	logger        *zap.Logger
	maxChunkBytes int
}

// NewIndex builds an empty index. embedder may be nil, in which case all
// scoring is keyword based.
func NewIndex(embedder llm.Embedder, maxChunkBytes int, logger *zap.Logger) *Index {
	if maxChunkBytes <= 0 {
		maxChunkBytes = defaultMaxChunkBytes
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Index{
		embedder:      embedder,
		logger:        logger,
		maxChunkBytes: maxChunkBytes,
	}
}

// Len returns the number of chunks currently held.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.chunks)
}

// Chunks returns a snapshot of the corpus, for persistence warm-dumps.
func (ix *Index) Chunks() []domain.DocumentChunk {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make([]domain.DocumentChunk, len(ix.chunks))
	copy(out, ix.chunks)
	return out
}

// IngestSource splits content into chunks at second-level heading
// boundaries, embeds each chunk, and replaces any chunks previously
// ingested for the same source. A chunk whose embedding fails is kept
// without an embedding; it degrades to keyword scoring at query time.
func (ix *Index) IngestSource(ctx context.Context, source, content string) int {
	sections := splitSections(content)

	fresh := make([]domain.DocumentChunk, 0, len(sections))
	for _, sec := range sections {
		body := truncateBytes(sec.text, ix.maxChunkBytes)
		chunk := domain.DocumentChunk{
			ID:      chunkID(source, sec.title),
			Content: body,
			Source:  source,
		}
		if ix.embedder != nil {
			embedding, err := ix.embedder.Embed(ctx, body)
			if err != nil {
				ix.logger.Warn("chunk embedding failed, keeping without embedding",
					zap.String("chunk_id", chunk.ID), zap.Error(err))
			} else {
				chunk.Embedding = embedding
			}
		}
		fresh = append(fresh, chunk)
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	kept := ix.chunks[:0]
	for _, c := range ix.chunks {
		if c.Source != source {
			kept = append(kept, c)
		}
	}
	ix.chunks = append(kept, fresh...)
	return len(fresh)
}

// Restore loads previously persisted chunks without re-embedding.
func (ix *Index) Restore(chunks []domain.DocumentChunk) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.chunks = append([]domain.DocumentChunk{}, chunks...)
}

// Retrieve returns the top-k chunks for query, highest score first, ties
// broken by ingestion order. Chunks with embeddings are scored by cosine
// similarity against the query embedding; chunks without fall back to
// keyword overlap. If the query itself cannot be embedded the whole
// lookup degrades to keyword scoring. An empty corpus yields an empty
// result, never an error.
func (ix *Index) Retrieve(ctx context.Context, query string, k int) ([]domain.ScoredChunk, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if len(ix.chunks) == 0 || k <= 0 {
		return []domain.ScoredChunk{}, nil
	}

	var queryEmbedding []float32
	if ix.embedder != nil {
		embedding, err := ix.embedder.Embed(ctx, query)
		if err != nil {
			ix.logger.Warn("query embedding failed, using keyword scoring", zap.Error(err))
		} else {
			queryEmbedding = embedding
		}
	}

	scored := make([]domain.ScoredChunk, 0, len(ix.chunks))
	for _, chunk := range ix.chunks {
		var score float64
		if queryEmbedding != nil && chunk.Embedding != nil {
			score = cosineSimilarity(queryEmbedding, chunk.Embedding)
		} else {
			score = keywordScore(query, chunk.Content)
		}
		scored = append(scored, domain.ScoredChunk{Chunk: chunk, Score: score})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if k > len(scored) {
		k = len(scored)
	}
	return scored[:k], nil
}

type section struct {
	title string
	text  string
}

// splitSections chunks markdown content at "## " boundaries. Content with
// no such headings becomes a single chunk.
func splitSections(content string) []section {
	parts := strings.Split(content, "## ")
	if len(parts) == 1 {
		trimmed := strings.TrimSpace(content)
		if trimmed == "" {
			return nil
		}
		return []section{{title: firstLine(trimmed), text: trimmed}}
	}

	sections := make([]section, 0, len(parts)-1)
	for _, part := range parts[1:] {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lines := strings.SplitN(part, "\n", 2)
		title := strings.TrimSpace(lines[0])
		body := ""
		if len(lines) > 1 {
			body = strings.TrimSpace(lines[1])
		}
		text := title
		if body != "" {
			text = title + "\n" + body
		}
		sections = append(sections, section{title: title, text: text})
	}
	return sections
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return strings.TrimSpace(s[:idx])
	}
	return s
}

func chunkID(source, title string) string {
	return source + "_" + truncateBytes(title, 20)
}

// truncateBytes caps s at max bytes, backing up so the cut never lands
// inside a multi-byte rune.
func truncateBytes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

// keywordScore is the overlap of query terms with content terms divided
// by the query term count.
func keywordScore(query, content string) float64 {
	queryTerms := termSet(query)
	if len(queryTerms) == 0 {
		return 0
	}
	contentTerms := termSet(content)
	matches := 0
	for term := range queryTerms {
		if contentTerms[term] {
			matches++
		}
	}
	return float64(matches) / float64(len(queryTerms))
}

func termSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, term := range strings.Fields(strings.ToLower(text)) {
		set[term] = true
	}
	return set
}
