package domain

// DocumentChunk is an immutable unit of ingested documentation. Chunks are
// created at ingestion time and read-only thereafter; re-ingesting a source
// replaces its chunks wholesale. A nil Embedding means the embedding
// collaborator failed for this chunk and keyword scoring applies instead.
type DocumentChunk struct {
	ID        string
	Content   string
	Embedding []float32
	Source    string
}

// ScoredChunk pairs a chunk with its relevance score for one query.
type ScoredChunk struct {
	Chunk DocumentChunk
	Score float64
}
