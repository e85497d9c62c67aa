// Package storage implements the relational repositories and the pgvector semantic index.
package storage

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/Patelhetu-177/SkillSphere/internal/chat"
	"github.com/Patelhetu-177/SkillSphere/internal/documents"
	"github.com/Patelhetu-177/SkillSphere/internal/memory"
	"github.com/Patelhetu-177/SkillSphere/internal/quiz"
	"github.com/Patelhetu-177/SkillSphere/internal/types"
)

// Store holds the DB handle and repositories.
type Store struct {
	db        *gorm.DB
	Personas  chat.PersonaRepo
	Messages  chat.MessageRepo
	Documents documents.DocumentRepo
	Quizzes   quiz.Repo
	Vectors   memory.VectorIndex
}

// NewStore opens PostgreSQL and wires the repositories.
func NewStore(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open gorm database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return NewStoreWithDB(db), nil
}

// NewStoreWithDB wires repositories over an open handle.
func NewStoreWithDB(db *gorm.DB) *Store {
	return &Store{
		db:        db,
		Personas:  NewPersonaRepo(db),
		Messages:  NewMessageRepo(db),
		Documents: NewDocumentRepo(db),
		Quizzes:   NewQuizRepo(db),
		Vectors:   NewVectorIndex(db),
	}
}

// DB returns the underlying handle.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// AutoMigrate creates the relational tables. The vector table needs the pgvector extension
// and is created by the SQL migrations instead.
func (s *Store) AutoMigrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(
		&personaModel{}, &messageModel{}, &documentModel{},
		&quizModel{}, &quizQuestionModel{}, &quizSubmissionModel{},
	); err != nil {
		return fmt.Errorf("failed to auto migrate: %w", err)
	}
	return nil
}

// Close closes the DB pool.
func (s *Store) Close() {
	if s.db == nil {
		return
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return
	}
	_ = sqlDB.Close()
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return types.ErrNotFound
	}
	return err
}
