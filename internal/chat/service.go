// Package chat orchestrates a chat turn: validation, rate limiting, transcript writes,
// context assembly, streamed generation and post-stream persistence.
package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"google.golang.org/genai"

	"github.com/Patelhetu-177/SkillSphere/internal/cache"
	"github.com/Patelhetu-177/SkillSphere/internal/generation"
	"github.com/Patelhetu-177/SkillSphere/internal/memory"
	"github.com/Patelhetu-177/SkillSphere/internal/metrics"
	"github.com/Patelhetu-177/SkillSphere/internal/prompt"
	"github.com/Patelhetu-177/SkillSphere/internal/ratelimit"
	"github.com/Patelhetu-177/SkillSphere/internal/types"
	"github.com/Patelhetu-177/SkillSphere/internal/utils"
)

// SeedDelimiter separates seed dialogue pieces.
const SeedDelimiter = "\n\n"

// Options tunes the chat pipeline.
type Options struct {
	HistoryLimit int
	TopK         int
	Generation   *genai.GenerateContentConfig
}

// Deps are the collaborators of a Service.
type Deps struct {
	Personas   PersonaRepo
	Messages   MessageRepo
	Transcript Transcript
	Cache      *cache.WindowCache
	Retriever  Retriever
	Sampler    *memory.Sampler
	Limiter    ratelimit.Limiter
	Generator  Generator
	Dispatcher Dispatcher
}

// Service runs chat turns.
type Service struct {
	deps    Deps
	opts    Options
	builder *prompt.Builder
	now     func() time.Time
}

// NewService creates a Service.
func NewService(deps Deps, opts Options) *Service {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 30
	}
	if opts.TopK <= 0 {
		opts.TopK = 3
	}
	return &Service{
		deps:    deps,
		opts:    opts,
		builder: prompt.NewBuilder(opts.HistoryLimit),
		now:     time.Now,
	}
}

// Request is one chat turn.
type Request struct {
	ConversationID string
	Prompt         string
	Language       string
	UserID         string
	UserName       string
	// Route scopes the rate limit.
	Route string
}

// Chat runs one turn, streaming the reply into w. Errors returned before anything was
// written leave no trace of the reply; after a failure mid-stream nothing is persisted
// either.
func (s *Service) Chat(ctx context.Context, req Request, w io.Writer) error {
	message := strings.TrimSpace(req.Prompt)
	if message == "" {
		return validation("prompt is required")
	}
	if strings.TrimSpace(req.ConversationID) == "" {
		return validation("conversation id is required")
	}
	if req.UserID == "" || strings.TrimSpace(req.UserName) == "" {
		return ErrUnauthorized
	}

	if err := s.checkRate(ctx, req); err != nil {
		return err
	}

	persona, err := s.deps.Personas.Get(ctx, req.ConversationID)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return fmt.Errorf("persona %s: %w", req.ConversationID, ErrNotFound)
		}
		return fmt.Errorf("failed to load persona: %w", err)
	}

	key := types.ConversationKey{
		ConversationID: persona.ID,
		UserID:         req.UserID,
		ModelName:      s.deps.Generator.ModelName(),
	}
	if err := s.deps.Transcript.SeedOnce(ctx, key, persona.Seed, SeedDelimiter); err != nil {
		return upstream("seed transcript", 503, err)
	}

	userMsg := &types.ChatMessage{
		ID:        ulid.Make().String(),
		PersonaID: persona.ID,
		UserID:    req.UserID,
		Role:      types.MessageRoleUser,
		Content:   message,
	}
	if err := s.deps.Messages.Create(ctx, userMsg); err != nil {
		return fmt.Errorf("failed to save user message: %w", err)
	}
	if err := s.deps.Transcript.Append(ctx, key, userMsg.ID, prompt.FormatTurn(types.RoleUser, message)); err != nil {
		return upstream("append user turn", 503, err)
	}

	history, err := s.recentTurns(ctx, key)
	if err != nil {
		return upstream("read transcript", 503, err)
	}

	var matches []types.SimilarityMatch
	historyText := renderTurns(history)
	if s.deps.Retriever != nil && s.deps.Sampler.ShouldQuery(len(historyText)) {
		matches = s.deps.Retriever.Search(ctx, historyText, persona.ID, s.opts.TopK, exchangeFilter(req.UserID))
	} else {
		metrics.RecordEnrichment("skipped")
	}

	built, err := s.builder.Build(prompt.Input{
		Persona:     persona,
		Language:    req.Language,
		History:     history,
		Matches:     matches,
		UserMessage: message,
	})
	if err != nil {
		return fmt.Errorf("failed to assemble context: %w", err)
	}

	slog.Info("chat turn started",
		"conversation_id", persona.ID,
		"user_id", req.UserID,
		"history", len(history),
		"matches", len(matches),
		"prompt", utils.Truncate(message, 80))

	res := s.deps.Generator.Run(ctx, built.Contents(), s.opts.Generation, w)
	if res.State != generation.StateCompleted {
		return generationError(res.Err)
	}

	rec := TurnRecord{
		MessageID: ulid.Make().String(),
		Key:       key,
		PersonaID: persona.ID,
		UserID:    req.UserID,
		Prompt:    message,
		Content:   res.Text,
		CreatedAt: s.now(),
	}
	if err := s.deps.Dispatcher.Dispatch(ctx, rec); err != nil {
		// The reply is already delivered; the dispatcher owns retries.
		slog.Error("failed to dispatch completed turn", "message_id", rec.MessageID, "error", err.Error())
	}
	return nil
}

func (s *Service) checkRate(ctx context.Context, req Request) error {
	if s.deps.Limiter == nil {
		return nil
	}
	route := req.Route
	if route == "" {
		route = "/chat/" + req.ConversationID
	}
	decision, err := s.deps.Limiter.Allow(ctx, ratelimit.Key{Route: route, UserID: req.UserID})
	if err != nil {
		return upstream("rate limit", 503, err)
	}
	if !decision.Allowed {
		metrics.RecordRateLimited("chat")
		return fmt.Errorf("%w: retry after %s", ErrRateLimited, decision.RetryAfter)
	}
	return nil
}

// recentTurns returns the recent window through the cache.
func (s *Service) recentTurns(ctx context.Context, key types.ConversationKey) ([]types.ChatTurn, error) {
	cacheKey := cache.Key{ConversationID: key.ConversationID, UserID: key.UserID}
	if s.deps.Cache != nil {
		if turns, ok := s.deps.Cache.Get(cacheKey); ok {
			metrics.RecordCacheLookup(true)
			return turns, nil
		}
		metrics.RecordCacheLookup(false)
	}

	entries, err := s.deps.Transcript.ReadRecentEntries(ctx, key, s.opts.HistoryLimit)
	if err != nil {
		return nil, err
	}
	turns := prompt.TurnsFromEntries(entries)
	if s.deps.Cache != nil {
		s.deps.Cache.Put(cacheKey, turns)
	}
	return turns, nil
}

// DeleteMessage removes a message the caller owns from both the transcript and the message
// table. Transcript removal runs first so a failure leaves the record in place and the
// delete can be retried.
func (s *Service) DeleteMessage(ctx context.Context, userID, messageID string) error {
	if strings.TrimSpace(messageID) == "" {
		return validation("message id is required")
	}
	if userID == "" {
		return ErrUnauthorized
	}

	msg, err := s.deps.Messages.Get(ctx, messageID)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return fmt.Errorf("message %s: %w", messageID, ErrNotFound)
		}
		return fmt.Errorf("failed to load message: %w", err)
	}
	if msg.UserID != userID {
		return fmt.Errorf("message %s: %w", messageID, ErrNotFound)
	}

	key := types.ConversationKey{
		ConversationID: msg.PersonaID,
		UserID:         userID,
		ModelName:      s.deps.Generator.ModelName(),
	}
	if err := s.deps.Transcript.Remove(ctx, key, msg.ID); err != nil {
		return upstream("remove transcript entry", 503, err)
	}
	if err := s.deps.Messages.Delete(ctx, msg.ID, userID); err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return fmt.Errorf("message %s: %w", messageID, ErrNotFound)
		}
		return fmt.Errorf("failed to delete message: %w", err)
	}
	if s.deps.Cache != nil {
		s.deps.Cache.Invalidate(cache.Key{ConversationID: msg.PersonaID, UserID: userID})
	}
	slog.Info("message deleted", "message_id", msg.ID, "user_id", userID)
	return nil
}

// Messages lists the caller's recent messages with a persona, oldest first.
func (s *Service) Messages(ctx context.Context, userID, conversationID string, limit int) ([]types.ChatMessage, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}
	if strings.TrimSpace(conversationID) == "" {
		return nil, validation("conversation id is required")
	}
	if limit <= 0 || limit > 200 {
		limit = 100
	}
	msgs, err := s.deps.Messages.ListRecent(ctx, conversationID, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return msgs, nil
}

func renderTurns(turns []types.ChatTurn) string {
	lines := make([]string, 0, len(turns))
	for _, t := range turns {
		lines = append(lines, prompt.FormatTurn(t.Role, t.Content))
	}
	return strings.Join(lines, "\n")
}
