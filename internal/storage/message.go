package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Patelhetu-177/SkillSphere/internal/chat"
	"github.com/Patelhetu-177/SkillSphere/internal/types"
)

// messageModel maps to the messages table.
type messageModel struct {
	ID        string `gorm:"primaryKey;size:26"`
	PersonaID string `gorm:"size:36;index"`
	UserID    string `gorm:"size:128;index"`
	Role      string `gorm:"size:16;not null"`
	Content   string `gorm:"type:text;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (messageModel) TableName() string {
	return "messages"
}

type messageRepo struct {
	db *gorm.DB
}

// NewMessageRepo returns a MessageRepo.
func NewMessageRepo(db *gorm.DB) chat.MessageRepo {
	return &messageRepo{db: db}
}

// Create inserts msg. Inserting an id that already exists is a no-op, so retried
// deliveries of the same turn write one row.
func (r *messageRepo) Create(ctx context.Context, msg *types.ChatMessage) error {
	if msg == nil {
		return fmt.Errorf("message cannot be nil")
	}
	if msg.ID == "" {
		msg.ID = ulid.Make().String()
	}
	record := messageModel{
		ID:        msg.ID,
		PersonaID: msg.PersonaID,
		UserID:    msg.UserID,
		Role:      msg.Role,
		Content:   msg.Content,
	}
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(&record).Error; err != nil {
		return fmt.Errorf("failed to insert chat message: %w", err)
	}
	msg.CreatedAt = record.CreatedAt
	msg.UpdatedAt = record.UpdatedAt
	return nil
}

func (r *messageRepo) Get(ctx context.Context, id string) (*types.ChatMessage, error) {
	var record messageModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&record).Error; err != nil {
		return nil, fmt.Errorf("failed to get chat message: %w", notFound(err))
	}
	msg := messageFromModel(record)
	return &msg, nil
}

func (r *messageRepo) Delete(ctx context.Context, id, userID string) error {
	res := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&messageModel{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete chat message: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("failed to delete chat message: %w", types.ErrNotFound)
	}
	return nil
}

func (r *messageRepo) ListRecent(ctx context.Context, personaID, userID string, limit int) ([]types.ChatMessage, error) {
	var records []messageModel
	if err := r.db.WithContext(ctx).
		Where("persona_id = ? AND user_id = ?", personaID, userID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to query chat messages: %w", err)
	}

	results := make([]types.ChatMessage, 0, len(records))
	for _, record := range records {
		results = append(results, messageFromModel(record))
	}

	// Oldest -> newest
	for i, j := 0, len(results)-1; i < j; i, j = i+1, j-1 {
		results[i], results[j] = results[j], results[i]
	}
	return results, nil
}

func messageFromModel(model messageModel) types.ChatMessage {
	return types.ChatMessage{
		ID:        model.ID,
		PersonaID: model.PersonaID,
		UserID:    model.UserID,
		Role:      model.Role,
		Content:   model.Content,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}
}
