// Package documents ingests user documents into the semantic index and answers questions
// over them.
package documents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"github.com/Patelhetu-177/SkillSphere/internal/memory"
	"github.com/Patelhetu-177/SkillSphere/internal/prompt"
	"github.com/Patelhetu-177/SkillSphere/internal/types"
)

const (
	// DefaultTopK is how many chunks back an answer.
	DefaultTopK = 5

	NoMatchAnswer = "I couldn't find any relevant information in the document to answer your question."
	FailedAnswer  = "I'm sorry, I encountered an error while generating a response."
)

var (
	ErrValidation = errors.New("invalid document request")
	ErrNotFound   = errors.New("document not found")
)

// DocumentRepo persists document records.
type DocumentRepo interface {
	Create(ctx context.Context, doc *types.Document) error
	Get(ctx context.Context, id, userID string) (*types.Document, error)
	ListByUser(ctx context.Context, userID string) ([]types.Document, error)
	SetChunks(ctx context.Context, id string, chunks int) error
	Update(ctx context.Context, doc *types.Document) error
	Delete(ctx context.Context, id, userID string) error
}

// Index is the semantic index documents are written to and searched in.
type Index interface {
	Index(ctx context.Context, namespace string, chunks []memory.Chunk) error
	Query(ctx context.Context, text, namespace string, k int) []types.SimilarityMatch
	Forget(ctx context.Context, namespace string) error
}

// Completer produces a single non-streamed answer.
type Completer interface {
	Complete(ctx context.Context, contents []*genai.Content, cfg *genai.GenerateContentConfig) (string, error)
}

// Service ingests and queries documents.
type Service struct {
	repo      DocumentRepo
	index     Index
	completer Completer
	chunking  ChunkOptions
	topK      int
	cfg       *genai.GenerateContentConfig
}

// NewService creates a Service.
func NewService(repo DocumentRepo, index Index, completer Completer, cfg *genai.GenerateContentConfig) *Service {
	return &Service{
		repo:      repo,
		index:     index,
		completer: completer,
		chunking:  DefaultChunkOptions(),
		topK:      DefaultTopK,
		cfg:       cfg,
	}
}

// IngestInput is a document upload. Content is the already extracted text.
type IngestInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	FileURL     string `json:"fileUrl"`
	Content     string `json:"content"`
}

// Ingest stores the document record, then chunks, embeds and indexes its content under the
// document id.
func (s *Service) Ingest(ctx context.Context, userID string, in IngestInput) (*types.Document, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrValidation)
	}
	pieces := Split(in.Content, s.chunking)
	if len(pieces) == 0 {
		return nil, fmt.Errorf("%w: content is required", ErrValidation)
	}

	doc := &types.Document{
		UserID:      userID,
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		FileURL:     in.FileURL,
	}
	if err := s.repo.Create(ctx, doc); err != nil {
		return nil, err
	}

	chunks := make([]memory.Chunk, 0, len(pieces))
	for i, piece := range pieces {
		chunks = append(chunks, memory.Chunk{
			ID:      uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("%s#%d", doc.ID, i))).String(),
			Content: piece,
			Metadata: map[string]any{
				"documentId": doc.ID,
				"chunk":      i + 1,
				"title":      title,
			},
		})
	}
	if err := s.index.Index(ctx, doc.ID, chunks); err != nil {
		s.rollback(ctx, doc)
		return nil, fmt.Errorf("failed to index document %s: %w", doc.ID, err)
	}
	if err := s.repo.SetChunks(ctx, doc.ID, len(chunks)); err != nil {
		s.rollback(ctx, doc)
		return nil, err
	}
	doc.Chunks = len(chunks)

	slog.Info("document ingested", "document_id", doc.ID, "user_id", userID, "chunks", len(chunks))
	return doc, nil
}

// rollback removes a half-ingested document so it does not linger without chunks.
func (s *Service) rollback(ctx context.Context, doc *types.Document) {
	ctx = context.WithoutCancel(ctx)
	if err := s.index.Forget(ctx, doc.ID); err != nil {
		slog.Warn("failed to drop partial document vectors", "document_id", doc.ID, "error", err.Error())
	}
	if err := s.repo.Delete(ctx, doc.ID, doc.UserID); err != nil {
		slog.Error("failed to roll back document record", "document_id", doc.ID, "error", err.Error())
	}
}

// List returns the caller's documents, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]types.Document, error) {
	return s.repo.ListByUser(ctx, userID)
}

// Get returns the caller's document.
func (s *Service) Get(ctx context.Context, userID, documentID string) (*types.Document, error) {
	if strings.TrimSpace(documentID) == "" {
		return nil, fmt.Errorf("%w: document id is required", ErrValidation)
	}
	doc, err := s.repo.Get(ctx, documentID, userID)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, documentID)
		}
		return nil, err
	}
	return doc, nil
}

// UpdateInput changes a document's title or description. Empty fields are left alone.
type UpdateInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Update edits the caller's document metadata.
func (s *Service) Update(ctx context.Context, userID, documentID string, in UpdateInput) (*types.Document, error) {
	title := strings.TrimSpace(in.Title)
	description := strings.TrimSpace(in.Description)
	if title == "" && description == "" {
		return nil, fmt.Errorf("%w: title or description is required", ErrValidation)
	}
	doc, err := s.Get(ctx, userID, documentID)
	if err != nil {
		return nil, err
	}
	if title != "" {
		doc.Title = title
	}
	if description != "" {
		doc.Description = description
	}
	if err := s.repo.Update(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Delete removes the caller's document and its indexed chunks.
func (s *Service) Delete(ctx context.Context, userID, documentID string) error {
	doc, err := s.Get(ctx, userID, documentID)
	if err != nil {
		return err
	}
	if err := s.index.Forget(ctx, doc.ID); err != nil {
		return fmt.Errorf("failed to drop document vectors: %w", err)
	}
	if err := s.repo.Delete(ctx, doc.ID, userID); err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, documentID)
		}
		return err
	}
	slog.Info("document deleted", "document_id", doc.ID, "user_id", userID)
	return nil
}

// Source is a chunk an answer was based on.
type Source struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
}

// Answer is the result of a document question.
type Answer struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
}

// Query answers question from the caller's document documentID. A generation failure
// still yields an answer.
func (s *Service) Query(ctx context.Context, userID, documentID, question string) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is required", ErrValidation)
	}

	doc, err := s.Get(ctx, userID, documentID)
	if err != nil {
		return nil, err
	}

	matches := s.index.Query(ctx, question, doc.ID, s.topK)
	if len(matches) == 0 {
		return &Answer{Answer: NoMatchAnswer, Sources: []Source{}}, nil
	}

	texts := make([]string, 0, len(matches))
	sources := make([]Source, 0, len(matches))
	for _, m := range matches {
		texts = append(texts, m.Content)
		sources = append(sources, Source{Content: m.Content, Metadata: m.Metadata})
	}

	text, err := prompt.DocumentQuestion(doc.Title, question, texts)
	if err != nil {
		return nil, err
	}
	answer, err := s.completer.Complete(ctx, []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}, s.cfg)
	if err != nil {
		slog.Error("document answer generation failed", "document_id", doc.ID, "error", err.Error())
		answer = FailedAnswer
	}
	return &Answer{Answer: answer, Sources: sources}, nil
}
