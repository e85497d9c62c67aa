package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Patelhetu-177/SkillSphere/internal/cache"
	"github.com/Patelhetu-177/SkillSphere/internal/memory"
	"github.com/Patelhetu-177/SkillSphere/internal/metrics"
	"github.com/Patelhetu-177/SkillSphere/internal/prompt"
	"github.com/Patelhetu-177/SkillSphere/internal/types"
)

// TurnRecord is a completed assistant turn awaiting persistence. MessageID is fixed when
// the record is created so every delivery writes the same transcript member and row.
type TurnRecord struct {
	MessageID string                `json:"message_id"`
	Key       types.ConversationKey `json:"key"`
	PersonaID string                `json:"persona_id"`
	UserID    string                `json:"user_id"`
	Prompt    string                `json:"prompt,omitempty"`
	Content   string                `json:"content"`
	CreatedAt time.Time             `json:"created_at"`
}

// TurnWriter writes a completed turn to the transcript and the message table, then
// invalidates the cached window. Persist is safe to repeat for the same record.
type TurnWriter struct {
	transcript Transcript
	messages   MessageRepo
	cache      *cache.WindowCache
	indexer    Indexer
}

// NewTurnWriter creates a TurnWriter.
func NewTurnWriter(t Transcript, messages MessageRepo, c *cache.WindowCache) *TurnWriter {
	return &TurnWriter{transcript: t, messages: messages, cache: c}
}

// WithIndexer makes Persist also embed each exchange into the persona's namespace, where
// later turns of the same user find it during enrichment.
func (w *TurnWriter) WithIndexer(ix Indexer) *TurnWriter {
	w.indexer = ix
	return w
}

// Persist writes rec.
func (w *TurnWriter) Persist(ctx context.Context, rec TurnRecord) error {
	if err := w.transcript.Append(ctx, rec.Key, rec.MessageID, prompt.FormatTurn(types.RoleAssistant, rec.Content)); err != nil {
		return fmt.Errorf("failed to append assistant turn: %w", err)
	}
	if err := w.messages.Create(ctx, &types.ChatMessage{
		ID:        rec.MessageID,
		PersonaID: rec.PersonaID,
		UserID:    rec.UserID,
		Role:      types.MessageRoleSystem,
		Content:   rec.Content,
	}); err != nil {
		return fmt.Errorf("failed to create assistant message: %w", err)
	}
	if w.cache != nil {
		w.cache.Invalidate(cache.Key{ConversationID: rec.Key.ConversationID, UserID: rec.Key.UserID})
	}
	w.indexExchange(ctx, rec)
	return nil
}

// indexExchange is best effort: a failure only costs future enrichment.
func (w *TurnWriter) indexExchange(ctx context.Context, rec TurnRecord) {
	if w.indexer == nil {
		return
	}
	var b strings.Builder
	if rec.Prompt != "" {
		b.WriteString(prompt.FormatTurn(types.RoleUser, rec.Prompt))
		b.WriteString("\n")
	}
	b.WriteString(prompt.FormatTurn(types.RoleAssistant, rec.Content))

	meta := exchangeFilter(rec.UserID)
	meta["personaId"] = rec.PersonaID
	meta["messageId"] = rec.MessageID
	chunk := memory.Chunk{ID: rec.MessageID, Content: b.String(), Metadata: meta}
	if err := w.indexer.Index(ctx, rec.PersonaID, []memory.Chunk{chunk}); err != nil {
		slog.Warn("failed to index exchange", "message_id", rec.MessageID, "persona_id", rec.PersonaID, "error", err.Error())
	}
}

// exchangeFilter scopes indexed exchanges to the user who had them.
func exchangeFilter(userID string) map[string]any {
	return map[string]any{"kind": "exchange", "userId": userID}
}

// BackgroundDispatcher persists records on goroutines with bounded retries. Records that
// exhaust their attempts are logged as dead letters.
type BackgroundDispatcher struct {
	writer   *TurnWriter
	attempts int
	backoff  time.Duration
	timeout  time.Duration

	wg sync.WaitGroup
}

// NewBackgroundDispatcher creates a dispatcher making up to attempts tries per record.
func NewBackgroundDispatcher(writer *TurnWriter, attempts int, backoff time.Duration) *BackgroundDispatcher {
	if attempts <= 0 {
		attempts = 5
	}
	if backoff <= 0 {
		backoff = 200 * time.Millisecond
	}
	return &BackgroundDispatcher{writer: writer, attempts: attempts, backoff: backoff, timeout: 10 * time.Second}
}

// Dispatch schedules rec and returns immediately. The caller's cancellation does not stop
// persistence.
func (d *BackgroundDispatcher) Dispatch(ctx context.Context, rec TurnRecord) error {
	ctx = context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.run(ctx, rec)
	}()
	return nil
}

// Wait blocks until every scheduled record has finished.
func (d *BackgroundDispatcher) Wait() {
	d.wg.Wait()
}

func (d *BackgroundDispatcher) run(ctx context.Context, rec TurnRecord) {
	defer func() {
		if err := recover(); err != nil {
			slog.Error("turn persistence panic", "message_id", rec.MessageID, "error", err)
			metrics.RecordPersist("dead_letter")
		}
	}()

	delay := d.backoff
	var lastErr error
	for attempt := 1; attempt <= d.attempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, d.timeout)
		lastErr = d.writer.Persist(attemptCtx, rec)
		cancel()
		if lastErr == nil {
			metrics.RecordPersist("success")
			slog.Debug("turn persisted", "message_id", rec.MessageID, "attempt", attempt)
			return
		}
		metrics.RecordPersist("retry")
		slog.Warn("turn persistence failed", "message_id", rec.MessageID, "attempt", attempt, "error", lastErr.Error())
		if attempt < d.attempts {
			time.Sleep(delay)
			delay *= 2
		}
	}
	metrics.RecordPersist("dead_letter")
	slog.Error("turn persistence exhausted retries",
		"message_id", rec.MessageID,
		"conversation_id", rec.Key.ConversationID,
		"user_id", rec.UserID,
		"content", rec.Content,
		"error", lastErr.Error())
}
