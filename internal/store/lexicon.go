package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lorecheck/lorecheck/internal/domain"
	pgvector "github.com/pgvector/pgvector-go"
)

// LexiconStore persists embeddings of canonical attribute values and serves
// the embedding extractor's nearest-value lookup.
type LexiconStore struct {
	db *pgxpool.Pool
}

func NewLexiconStore(db *pgxpool.Pool) *LexiconStore {
	return &LexiconStore{db: db}
}

func (s *LexiconStore) UpsertValue(ctx context.Context, attrType domain.AttributeType, value string, embedding []float32) error {
	vec := pgvector.NewVector(embedding)
	_, err := s.db.Exec(ctx,
		`INSERT INTO attribute_lexicon (attr_type, value, embedding)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (attr_type, value) DO UPDATE SET embedding = EXCLUDED.embedding`,
		attrType, value, vec,
	)
	return err
}

func (s *LexiconStore) Nearest(ctx context.Context, attrType domain.AttributeType, embedding []float32, limit int) ([]domain.LexiconMatch, error) {
	vec := pgvector.NewVector(embedding)
	rows, err := s.db.Query(ctx,
		`SELECT attr_type, value, 1 - (embedding <=> $1) AS score
		 FROM attribute_lexicon
		 WHERE attr_type = $2
		 ORDER BY score DESC
		 LIMIT $3`,
		vec, attrType, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.LexiconMatch
	for rows.Next() {
		var m domain.LexiconMatch
		if err := rows.Scan(&m.Type, &m.Value, &m.Similarity); err != nil {
			return nil, err
		}
		results = append(results, m)
	}
	return results, rows.Err()
}
