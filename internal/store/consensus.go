package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lorecheck/lorecheck/internal/domain"
)

type ConsensusStore struct {
	db *pgxpool.Pool
}

func NewConsensusStore(db *pgxpool.Pool) *ConsensusStore {
	return &ConsensusStore{db: db}
}

func (s *ConsensusStore) Upsert(ctx context.Context, c *domain.ConsensusAttribute) error {
	supportingJSON, err := json.Marshal(c.Supporting)
	if err != nil {
		return fmt.Errorf("marshal supporting: %w", err)
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO consensus_attributes (
			manuscript_id, entity_id, attr_type, stream_key, value,
			negated, temporal_change, device, confidence, supporting,
			position, chapter_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (entity_id, attr_type, stream_key, position, negated) DO UPDATE
		 SET value = EXCLUDED.value,
		     temporal_change = EXCLUDED.temporal_change,
		     device = EXCLUDED.device,
		     confidence = EXCLUDED.confidence,
		     supporting = EXCLUDED.supporting,
		     chapter_id = EXCLUDED.chapter_id`,
		c.ManuscriptID, c.EntityID, c.Type, c.Key, c.Value,
		c.Negated, c.TemporalChange, c.Device, c.Confidence, supportingJSON,
		c.Position, c.ChapterID,
	)
	return err
}

func (s *ConsensusStore) ListByEntity(ctx context.Context, entityID uuid.UUID) ([]domain.ConsensusAttribute, error) {
	rows, err := s.db.Query(ctx,
		`SELECT manuscript_id, entity_id, attr_type, stream_key, value,
		        negated, temporal_change, device, confidence, supporting,
		        position, chapter_id
		 FROM consensus_attributes
		 WHERE entity_id = $1
		 ORDER BY attr_type, stream_key, position`,
		entityID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.ConsensusAttribute
	for rows.Next() {
		var c domain.ConsensusAttribute
		var supportingJSON []byte
		if err := rows.Scan(
			&c.ManuscriptID, &c.EntityID, &c.Type, &c.Key, &c.Value,
			&c.Negated, &c.TemporalChange, &c.Device, &c.Confidence, &supportingJSON,
			&c.Position, &c.ChapterID,
		); err != nil {
			return nil, err
		}
		if len(supportingJSON) > 0 {
			if err := json.Unmarshal(supportingJSON, &c.Supporting); err != nil {
				return nil, fmt.Errorf("unmarshal supporting: %w", err)
			}
		}
		results = append(results, c)
	}
	return results, rows.Err()
}

func (s *ConsensusStore) DeleteByManuscript(ctx context.Context, manuscriptID uuid.UUID) (int64, error) {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM consensus_attributes WHERE manuscript_id = $1`, manuscriptID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *ConsensusStore) DeleteByStream(ctx context.Context, entityID uuid.UUID, attrType domain.AttributeType, key string) (int64, error) {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM consensus_attributes
		 WHERE entity_id = $1 AND attr_type = $2 AND stream_key = $3`,
		entityID, attrType, key)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
