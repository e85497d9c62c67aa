package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Patelhetu-177/SkillSphere/internal/memory"
	"github.com/Patelhetu-177/SkillSphere/internal/types"
)

// vectorModel maps to the semantic_vectors table.
type vectorModel struct {
	ID        string `gorm:"primaryKey"`
	Namespace string
	Content   string
	// Metadata is stored as JSONB so query filters can match on it.
	Metadata  json.RawMessage `gorm:"type:jsonb"`
	Embedding pgvector.Vector `gorm:"type:vector(768)"`
}

func (vectorModel) TableName() string {
	return "semantic_vectors"
}

type vectorIndex struct {
	db *gorm.DB
}

// NewVectorIndex returns a pgvector-backed VectorIndex.
func NewVectorIndex(db *gorm.DB) memory.VectorIndex {
	return &vectorIndex{db: db}
}

func (v *vectorIndex) Upsert(ctx context.Context, namespace string, records []memory.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	rows := make([]vectorModel, 0, len(records))
	for _, rec := range records {
		meta, err := marshalJSON(rec.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode vector metadata: %w", err)
		}
		id := rec.ID
		if id == "" {
			id = uuid.NewString()
		}
		rows = append(rows, vectorModel{
			ID:        id,
			Namespace: namespace,
			Content:   rec.Content,
			Metadata:  meta,
			Embedding: pgvector.NewVector(rec.Vector),
		})
	}
	if err := v.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"namespace", "content", "metadata", "embedding"}),
		}).
		CreateInBatches(&rows, 100).Error; err != nil {
		return fmt.Errorf("failed to upsert vectors: %w", err)
	}
	return nil
}

func (v *vectorIndex) DeleteNamespace(ctx context.Context, namespace string) error {
	if err := v.db.WithContext(ctx).Where("namespace = ?", namespace).Delete(&vectorModel{}).Error; err != nil {
		return fmt.Errorf("failed to delete vectors: %w", err)
	}
	return nil
}

func (v *vectorIndex) Query(ctx context.Context, namespace string, vector []float32, topK int, filter map[string]any) ([]types.SimilarityMatch, error) {
	if len(vector) == 0 {
		return nil, nil
	}
	if topK <= 0 {
		topK = 3
	}

	vec := pgvector.NewVector(vector)
	conditions := "namespace = ?"
	args := []any{vec, namespace}
	if len(filter) > 0 {
		raw, err := json.Marshal(filter)
		if err != nil {
			return nil, fmt.Errorf("failed to encode vector filter: %w", err)
		}
		conditions += " AND metadata @> ?::jsonb"
		args = append(args, string(raw))
	}
	args = append(args, vec, topK)

	query := `
		SELECT id, content, metadata, 1 - (embedding <=> ?) AS similarity
		FROM semantic_vectors
		WHERE ` + conditions + `
		ORDER BY embedding <=> ?
		LIMIT ?`

	var rows []struct {
		ID         string
		Content    string
		Metadata   json.RawMessage
		Similarity float64
	}
	if err := v.db.WithContext(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to search similar vectors: %w", err)
	}

	matches := make([]types.SimilarityMatch, 0, len(rows))
	for _, row := range rows {
		var meta map[string]any
		_ = unmarshalJSON(row.Metadata, &meta)
		matches = append(matches, types.SimilarityMatch{
			ID:       row.ID,
			Content:  row.Content,
			Score:    row.Similarity,
			Metadata: meta,
		})
	}
	return matches, nil
}

// marshalJSON encodes a value into JSONB; empty values become an empty object.
func marshalJSON(value map[string]any) (json.RawMessage, error) {
	if len(value) == 0 {
		return json.RawMessage("{}"), nil
	}
	return json.Marshal(value)
}

func unmarshalJSON(raw json.RawMessage, target any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, target)
}
