package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Patelhetu-177/SkillSphere/internal/quiz"
	"github.com/Patelhetu-177/SkillSphere/internal/types"
)

type quizModel struct {
	ID        string `gorm:"primaryKey;size:36"`
	UserID    string `gorm:"size:128;index"`
	UserName  string `gorm:"size:255"`
	Subject   string `gorm:"size:255;not null"`
	Grade     int
	Level     string `gorm:"size:32"`
	CreatedAt time.Time
}

func (quizModel) TableName() string {
	return "quizzes"
}

type quizQuestionModel struct {
	ID            string   `gorm:"primaryKey;size:36"`
	QuizID        string   `gorm:"size:36;index"`
	Position      int      `gorm:"not null"`
	Text          string   `gorm:"type:text;not null"`
	Options       []string `gorm:"type:text;serializer:json"`
	CorrectAnswer string   `gorm:"size:8;not null"`
	Difficulty    string   `gorm:"size:16"`
}

func (quizQuestionModel) TableName() string {
	return "quiz_questions"
}

type quizSubmissionModel struct {
	ID          string               `gorm:"primaryKey;size:36"`
	QuizID      string               `gorm:"size:36;index"`
	UserID      string               `gorm:"size:128;index"`
	Answers     []string             `gorm:"type:text;serializer:json"`
	Score       int                  `gorm:"not null"`
	Results     []types.AnswerResult `gorm:"type:text;serializer:json"`
	Suggestions []string             `gorm:"type:text;serializer:json"`
	CreatedAt   time.Time
}

func (quizSubmissionModel) TableName() string {
	return "quiz_submissions"
}

type quizRepo struct {
	db *gorm.DB
}

// NewQuizRepo returns a quiz.Repo.
func NewQuizRepo(db *gorm.DB) quiz.Repo {
	return &quizRepo{db: db}
}

// Create inserts the quiz and its questions in one transaction. Ids are always assigned
// here, so a question set reused from the cache gets fresh rows.
func (r *quizRepo) Create(ctx context.Context, q *types.Quiz) error {
	if q == nil {
		return fmt.Errorf("quiz cannot be nil")
	}
	q.ID = uuid.NewString()
	record := quizModel{
		ID:       q.ID,
		UserID:   q.UserID,
		UserName: q.UserName,
		Subject:  q.Subject,
		Grade:    q.Grade,
		Level:    q.Level,
	}
	questions := make([]quizQuestionModel, 0, len(q.Questions))
	for i := range q.Questions {
		question := &q.Questions[i]
		question.ID = uuid.NewString()
		question.QuizID = q.ID
		question.Position = i + 1
		questions = append(questions, quizQuestionModel{
			ID:            question.ID,
			QuizID:        q.ID,
			Position:      question.Position,
			Text:          question.Text,
			Options:       question.Options,
			CorrectAnswer: question.CorrectAnswer,
			Difficulty:    question.Difficulty,
		})
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&record).Error; err != nil {
			return err
		}
		if len(questions) == 0 {
			return nil
		}
		return tx.Create(&questions).Error
	})
	if err != nil {
		return fmt.Errorf("failed to insert quiz: %w", err)
	}
	q.CreatedAt = record.CreatedAt
	return nil
}

func (r *quizRepo) Get(ctx context.Context, id string) (*types.Quiz, error) {
	var record quizModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&record).Error; err != nil {
		return nil, fmt.Errorf("failed to get quiz: %w", notFound(err))
	}
	var questions []quizQuestionModel
	if err := r.db.WithContext(ctx).Where("quiz_id = ?", id).Order("position ASC").Find(&questions).Error; err != nil {
		return nil, fmt.Errorf("failed to get quiz questions: %w", err)
	}

	q := &types.Quiz{
		ID:        record.ID,
		UserID:    record.UserID,
		UserName:  record.UserName,
		Subject:   record.Subject,
		Grade:     record.Grade,
		Level:     record.Level,
		CreatedAt: record.CreatedAt,
		Questions: make([]types.QuizQuestion, 0, len(questions)),
	}
	for _, m := range questions {
		q.Questions = append(q.Questions, types.QuizQuestion{
			ID:            m.ID,
			QuizID:        m.QuizID,
			Position:      m.Position,
			Text:          m.Text,
			Options:       m.Options,
			CorrectAnswer: m.CorrectAnswer,
			Difficulty:    m.Difficulty,
		})
	}
	return q, nil
}

func (r *quizRepo) CreateSubmission(ctx context.Context, sub *types.QuizSubmission) error {
	if sub == nil {
		return fmt.Errorf("submission cannot be nil")
	}
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	record := quizSubmissionModel{
		ID:          sub.ID,
		QuizID:      sub.QuizID,
		UserID:      sub.UserID,
		Answers:     sub.Answers,
		Score:       sub.Score,
		Results:     sub.Results,
		Suggestions: sub.Suggestions,
	}
	if err := r.db.WithContext(ctx).Create(&record).Error; err != nil {
		return fmt.Errorf("failed to insert quiz submission: %w", err)
	}
	sub.CreatedAt = record.CreatedAt
	return nil
}

// Recent returns quizzes userID created or submitted, newest first.
func (r *quizRepo) Recent(ctx context.Context, userID string, limit int) ([]types.QuizSummary, error) {
	attempted := r.db.Model(&quizSubmissionModel{}).Select("quiz_id").Where("user_id = ?", userID)
	var records []quizModel
	if err := r.db.WithContext(ctx).
		Where("user_id = ? OR id IN (?)", userID, attempted).
		Order("created_at DESC").
		Limit(limit).
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list recent quizzes: %w", err)
	}
	return r.summarize(ctx, records)
}

// Popular returns the quizzes with the most submissions.
func (r *quizRepo) Popular(ctx context.Context, limit int) ([]types.QuizSummary, error) {
	var ranked []struct {
		QuizID string
		Total  int
	}
	if err := r.db.WithContext(ctx).
		Model(&quizSubmissionModel{}).
		Select("quiz_id, COUNT(*) AS total").
		Group("quiz_id").
		Order("total DESC").
		Limit(limit).
		Scan(&ranked).Error; err != nil {
		return nil, fmt.Errorf("failed to rank quizzes: %w", err)
	}
	if len(ranked) == 0 {
		return []types.QuizSummary{}, nil
	}

	ids := make([]string, 0, len(ranked))
	for _, row := range ranked {
		ids = append(ids, row.QuizID)
	}
	var records []quizModel
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to load popular quizzes: %w", err)
	}
	byID := make(map[string]quizModel, len(records))
	for _, rec := range records {
		byID[rec.ID] = rec
	}
	ordered := make([]quizModel, 0, len(records))
	for _, id := range ids {
		if rec, ok := byID[id]; ok {
			ordered = append(ordered, rec)
		}
	}
	return r.summarize(ctx, ordered)
}

// summarize attaches question counts, submission counts and the latest score.
func (r *quizRepo) summarize(ctx context.Context, records []quizModel) ([]types.QuizSummary, error) {
	out := make([]types.QuizSummary, 0, len(records))
	if len(records) == 0 {
		return out, nil
	}
	ids := make([]string, 0, len(records))
	for _, rec := range records {
		ids = append(ids, rec.ID)
	}

	var questionCounts []struct {
		QuizID string
		Total  int
	}
	if err := r.db.WithContext(ctx).
		Model(&quizQuestionModel{}).
		Select("quiz_id, COUNT(*) AS total").
		Where("quiz_id IN ?", ids).
		Group("quiz_id").
		Scan(&questionCounts).Error; err != nil {
		return nil, fmt.Errorf("failed to count quiz questions: %w", err)
	}
	questions := make(map[string]int, len(questionCounts))
	for _, row := range questionCounts {
		questions[row.QuizID] = row.Total
	}

	var submissions []quizSubmissionModel
	if err := r.db.WithContext(ctx).
		Select("quiz_id", "score", "created_at").
		Where("quiz_id IN ?", ids).
		Order("created_at DESC").
		Find(&submissions).Error; err != nil {
		return nil, fmt.Errorf("failed to load quiz submissions: %w", err)
	}
	attempts := make(map[string]int, len(records))
	latest := make(map[string]int, len(records))
	for _, sub := range submissions {
		if _, seen := latest[sub.QuizID]; !seen {
			latest[sub.QuizID] = sub.Score
		}
		attempts[sub.QuizID]++
	}

	for _, rec := range records {
		summary := types.QuizSummary{
			ID:            rec.ID,
			Subject:       rec.Subject,
			Grade:         rec.Grade,
			Level:         rec.Level,
			QuestionCount: questions[rec.ID],
			Submissions:   attempts[rec.ID],
			CreatedAt:     rec.CreatedAt,
		}
		if score, ok := latest[rec.ID]; ok {
			summary.LastScore = &score
		}
		out = append(out, summary)
	}
	return out, nil
}
