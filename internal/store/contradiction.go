package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lorecheck/lorecheck/internal/domain"
)

type ContradictionStore struct {
	db *pgxpool.Pool
}

func NewContradictionStore(db *pgxpool.Pool) *ContradictionStore {
	return &ContradictionStore{db: db}
}

func (s *ContradictionStore) Create(ctx context.Context, c *domain.Contradiction) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO contradictions (
			id, manuscript_id, entity_id, attr_type, stream_key,
			value_a, position_a, confidence_a,
			value_b, position_b, confidence_b,
			severity, level, dismissed, detected_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		 ON CONFLICT (id) DO NOTHING`,
		c.ID, c.ManuscriptID, c.EntityID, c.Type, c.Key,
		c.EvidenceA.Value, c.EvidenceA.Position, c.EvidenceA.Confidence,
		c.EvidenceB.Value, c.EvidenceB.Position, c.EvidenceB.Confidence,
		c.Severity, c.Level, c.Dismissed, c.DetectedAt,
	)
	return err
}

func (s *ContradictionStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Contradiction, error) {
	c := &domain.Contradiction{}
	err := s.db.QueryRow(ctx,
		`SELECT id, manuscript_id, entity_id, attr_type, stream_key,
		        value_a, position_a, confidence_a,
		        value_b, position_b, confidence_b,
		        severity, level, dismissed, detected_at
		 FROM contradictions WHERE id = $1`,
		id,
	).Scan(
		&c.ID, &c.ManuscriptID, &c.EntityID, &c.Type, &c.Key,
		&c.EvidenceA.Value, &c.EvidenceA.Position, &c.EvidenceA.Confidence,
		&c.EvidenceB.Value, &c.EvidenceB.Position, &c.EvidenceB.Confidence,
		&c.Severity, &c.Level, &c.Dismissed, &c.DetectedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

func (s *ContradictionStore) ListByManuscript(ctx context.Context, manuscriptID uuid.UUID, includeDismissed bool) ([]domain.Contradiction, error) {
	query := `SELECT id, manuscript_id, entity_id, attr_type, stream_key,
	                 value_a, position_a, confidence_a,
	                 value_b, position_b, confidence_b,
	                 severity, level, dismissed, detected_at
	          FROM contradictions WHERE manuscript_id = $1`
	if !includeDismissed {
		query += ` AND dismissed = FALSE`
	}
	query += ` ORDER BY severity DESC, position_b`

	rows, err := s.db.Query(ctx, query, manuscriptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.Contradiction
	for rows.Next() {
		var c domain.Contradiction
		if err := rows.Scan(
			&c.ID, &c.ManuscriptID, &c.EntityID, &c.Type, &c.Key,
			&c.EvidenceA.Value, &c.EvidenceA.Position, &c.EvidenceA.Confidence,
			&c.EvidenceB.Value, &c.EvidenceB.Position, &c.EvidenceB.Confidence,
			&c.Severity, &c.Level, &c.Dismissed, &c.DetectedAt,
		); err != nil {
			return nil, err
		}
		results = append(results, c)
	}
	return results, rows.Err()
}

func (s *ContradictionStore) Dismiss(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE contradictions SET dismissed = TRUE WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *ContradictionStore) DeleteByManuscript(ctx context.Context, manuscriptID uuid.UUID) (int64, error) {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM contradictions WHERE manuscript_id = $1`, manuscriptID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *ContradictionStore) DeleteByStream(ctx context.Context, entityID uuid.UUID, attrType domain.AttributeType, key string) (int64, error) {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM contradictions
		 WHERE entity_id = $1 AND attr_type = $2 AND stream_key = $3`,
		entityID, attrType, key)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
