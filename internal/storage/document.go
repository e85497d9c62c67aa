package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Patelhetu-177/SkillSphere/internal/documents"
	"github.com/Patelhetu-177/SkillSphere/internal/types"
)

type documentModel struct {
	ID          string `gorm:"primaryKey;size:36"`
	UserID      string `gorm:"size:128;index"`
	Title       string `gorm:"size:255;not null"`
	Description string `gorm:"type:text"`
	FileURL     string `gorm:"type:text"`
	Chunks      int    `gorm:"default:0"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (documentModel) TableName() string {
	return "documents"
}

type documentRepo struct {
	db *gorm.DB
}

// NewDocumentRepo returns a DocumentRepo.
func NewDocumentRepo(db *gorm.DB) documents.DocumentRepo {
	return &documentRepo{db: db}
}

func (r *documentRepo) Create(ctx context.Context, doc *types.Document) error {
	if doc == nil {
		return fmt.Errorf("document cannot be nil")
	}
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	record := documentModel{
		ID:          doc.ID,
		UserID:      doc.UserID,
		Title:       doc.Title,
		Description: doc.Description,
		FileURL:     doc.FileURL,
		Chunks:      doc.Chunks,
	}
	if err := r.db.WithContext(ctx).Create(&record).Error; err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}
	doc.CreatedAt = record.CreatedAt
	doc.UpdatedAt = record.UpdatedAt
	return nil
}

func (r *documentRepo) Get(ctx context.Context, id, userID string) (*types.Document, error) {
	var record documentModel
	if err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&record).Error; err != nil {
		return nil, fmt.Errorf("failed to get document: %w", notFound(err))
	}
	doc := documentFromModel(record)
	return &doc, nil
}

func (r *documentRepo) ListByUser(ctx context.Context, userID string) ([]types.Document, error) {
	var records []documentModel
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	results := make([]types.Document, 0, len(records))
	for _, record := range records {
		results = append(results, documentFromModel(record))
	}
	return results, nil
}

func (r *documentRepo) SetChunks(ctx context.Context, id string, chunks int) error {
	if err := r.db.WithContext(ctx).
		Model(&documentModel{}).
		Where("id = ?", id).
		Update("chunks", chunks).Error; err != nil {
		return fmt.Errorf("failed to update document chunks: %w", err)
	}
	return nil
}

func (r *documentRepo) Update(ctx context.Context, doc *types.Document) error {
	if doc == nil {
		return fmt.Errorf("document cannot be nil")
	}
	result := r.db.WithContext(ctx).
		Model(&documentModel{}).
		Where("id = ? AND user_id = ?", doc.ID, doc.UserID).
		Updates(map[string]any{"title": doc.Title, "description": doc.Description, "updated_at": time.Now()})
	if result.Error != nil {
		return fmt.Errorf("failed to update document: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("failed to update document: %w", types.ErrNotFound)
	}
	return nil
}

func (r *documentRepo) Delete(ctx context.Context, id, userID string) error {
	result := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&documentModel{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete document: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("failed to delete document: %w", types.ErrNotFound)
	}
	return nil
}

func documentFromModel(model documentModel) types.Document {
	return types.Document{
		ID:          model.ID,
		UserID:      model.UserID,
		Title:       model.Title,
		Description: model.Description,
		FileURL:     model.FileURL,
		Chunks:      model.Chunks,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
}
