package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/triage-service/internal/domain"
)

// DocumentRepository persists documentation chunks so the in-memory
// retrieval index can be restored without re-embedding every document
// on restart.
type DocumentRepository interface {
	ReplaceSource(ctx context.Context, source string, chunks []domain.DocumentChunk) error
	ListAll(ctx context.Context) ([]domain.DocumentChunk, error)
}

type documentRepository struct {
	pool *pgxpool.Pool
}

// NewDocumentRepository instantiates repository.
func NewDocumentRepository(pool *pgxpool.Pool) DocumentRepository {
	return &documentRepository{pool: pool}
}

func (r *documentRepository) ReplaceSource(ctx context.Context, source string, chunks []domain.DocumentChunk) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM documentation_chunks WHERE source=$1`, source); err != nil {
		return err
	}

	const insert = `
        INSERT INTO documentation_chunks (id, content, embedding, source)
        VALUES ($1,$2,$3,$4)`
	for _, chunk := range chunks {
		if _, err := tx.Exec(ctx, insert, chunk.ID, chunk.Content, chunk.Embedding, chunk.Source); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *documentRepository) ListAll(ctx context.Context) ([]domain.DocumentChunk, error) {
	const query = `
        SELECT id, content, embedding, source
        FROM documentation_chunks ORDER BY source, id`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.DocumentChunk
	for rows.Next() {
		var chunk domain.DocumentChunk
		if err := rows.Scan(&chunk.ID, &chunk.Content, &chunk.Embedding, &chunk.Source); err != nil {
			return nil, err
		}
		result = append(result, chunk)
	}
	return result, rows.Err()
}
