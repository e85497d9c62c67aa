package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Patelhetu-177/SkillSphere/internal/chat"
	"github.com/Patelhetu-177/SkillSphere/internal/types"
)

type personaModel struct {
	ID          string `gorm:"primaryKey;size:36"`
	UserID      string `gorm:"size:128;index"`
	UserName    string `gorm:"size:255"`
	Src         string `gorm:"type:text"`
	Name        string `gorm:"size:255;not null;index"`
	Description string `gorm:"type:text"`
	Instruction string `gorm:"type:text"`
	Seed        string `gorm:"type:text"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (personaModel) TableName() string {
	return "personas"
}

type personaRepo struct {
	db *gorm.DB
}

// NewPersonaRepo returns a PersonaRepo.
func NewPersonaRepo(db *gorm.DB) chat.PersonaRepo {
	return &personaRepo{db: db}
}

func (r *personaRepo) Create(ctx context.Context, p *types.Persona) error {
	if p == nil {
		return fmt.Errorf("persona cannot be nil")
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	record := personaToModel(p)
	if err := r.db.WithContext(ctx).Create(&record).Error; err != nil {
		return fmt.Errorf("failed to insert persona: %w", err)
	}
	p.CreatedAt = record.CreatedAt
	p.UpdatedAt = record.UpdatedAt
	return nil
}

func (r *personaRepo) Get(ctx context.Context, id string) (*types.Persona, error) {
	var record personaModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&record).Error; err != nil {
		return nil, fmt.Errorf("failed to get persona by id: %w", notFound(err))
	}
	return personaFromModel(record), nil
}

func (r *personaRepo) List(ctx context.Context, name string, limit int) ([]types.Persona, error) {
	query := r.db.WithContext(ctx).Order("created_at DESC")
	if name = strings.TrimSpace(name); name != "" {
		query = query.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(name)+"%")
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var records []personaModel
	if err := query.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list personas: %w", err)
	}
	results := make([]types.Persona, 0, len(records))
	for _, record := range records {
		results = append(results, *personaFromModel(record))
	}
	return results, nil
}

func (r *personaRepo) Update(ctx context.Context, p *types.Persona) error {
	res := r.db.WithContext(ctx).
		Model(&personaModel{}).
		Where("id = ? AND user_id = ?", p.ID, p.UserID).
		Updates(map[string]any{
			"src":         p.Src,
			"name":        p.Name,
			"description": p.Description,
			"instruction": p.Instruction,
			"seed":        p.Seed,
			"user_name":   p.UserName,
			"updated_at":  time.Now(),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update persona: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("failed to update persona: %w", types.ErrNotFound)
	}
	return nil
}

func (r *personaRepo) Delete(ctx context.Context, id, userID string) error {
	res := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&personaModel{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete persona: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("failed to delete persona: %w", types.ErrNotFound)
	}
	return nil
}

func personaToModel(p *types.Persona) personaModel {
	return personaModel{
		ID:          p.ID,
		UserID:      p.UserID,
		UserName:    p.UserName,
		Src:         p.Src,
		Name:        p.Name,
		Description: p.Description,
		Instruction: p.Instruction,
		Seed:        p.Seed,
	}
}

func personaFromModel(model personaModel) *types.Persona {
	return &types.Persona{
		ID:          model.ID,
		UserID:      model.UserID,
		UserName:    model.UserName,
		Src:         model.Src,
		Name:        model.Name,
		Description: model.Description,
		Instruction: model.Instruction,
		Seed:        model.Seed,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
}
