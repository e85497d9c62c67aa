package chat

import (
	"context"
	"io"

	"google.golang.org/genai"

	"github.com/Patelhetu-177/SkillSphere/internal/generation"
	"github.com/Patelhetu-177/SkillSphere/internal/memory"
	"github.com/Patelhetu-177/SkillSphere/internal/transcript"
	"github.com/Patelhetu-177/SkillSphere/internal/types"
)

// PersonaRepo persists interview mates.
type PersonaRepo interface {
	Create(ctx context.Context, p *types.Persona) error
	Get(ctx context.Context, id string) (*types.Persona, error)
	List(ctx context.Context, name string, limit int) ([]types.Persona, error)
	Update(ctx context.Context, p *types.Persona) error
	Delete(ctx context.Context, id, userID string) error
}

// MessageRepo persists structured chat message records.
type MessageRepo interface {
	Create(ctx context.Context, msg *types.ChatMessage) error
	Get(ctx context.Context, id string) (*types.ChatMessage, error)
	Delete(ctx context.Context, id, userID string) error
	ListRecent(ctx context.Context, personaID, userID string, limit int) ([]types.ChatMessage, error)
}

// Transcript is the ordered per-conversation turn log.
type Transcript interface {
	Append(ctx context.Context, key types.ConversationKey, entryID, text string) error
	ReadRecentEntries(ctx context.Context, key types.ConversationKey, limit int) ([]transcript.Entry, error)
	SeedOnce(ctx context.Context, key types.ConversationKey, content, delimiter string) error
	Remove(ctx context.Context, key types.ConversationKey, entryID string) error
}

// Retriever performs best-effort semantic enrichment.
type Retriever interface {
	Search(ctx context.Context, text, namespace string, k int, filter map[string]any) []types.SimilarityMatch
}

// Indexer embeds content into a namespace of the semantic index.
type Indexer interface {
	Index(ctx context.Context, namespace string, chunks []memory.Chunk) error
}

// Generator streams a generation into w.
type Generator interface {
	ModelName() string
	Run(ctx context.Context, contents []*genai.Content, cfg *genai.GenerateContentConfig, w io.Writer) generation.Result
}

// Dispatcher hands a completed turn to persistence.
type Dispatcher interface {
	Dispatch(ctx context.Context, rec TurnRecord) error
}
