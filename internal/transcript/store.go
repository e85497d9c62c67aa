// Package transcript keeps the append-only, time-ordered turn log of each conversation in a
// Redis sorted set.
package transcript

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"

	"github.com/Patelhetu-177/SkillSphere/internal/types"
)

// DefaultLimit is the size of the recency window read back for context.
const DefaultLimit = 30

// memberSep separates the entry id from its text inside a sorted-set member.
const memberSep = "|"

// Entry is one stored transcript line.
type Entry struct {
	ID    string
	Text  string
	Score float64
}

// Store is a Redis-backed transcript store.
type Store struct {
	client *redis.Client
	limit  int
	now    func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithLimit sets the default recency window.
func WithLimit(limit int) Option {
	return func(s *Store) {
		if limit > 0 {
			s.limit = limit
		}
	}
}

// WithClock overrides the clock used for append scores.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore creates a transcript store on top of client.
func NewStore(client *redis.Client, opts ...Option) *Store {
	s := &Store{
		client: client,
		limit:  DefaultLimit,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Append adds text under key with the current time as score. entryID addresses the entry
// later (see Remove); when empty a fresh id is generated. Appending an entry that already
// exists leaves it where it is.
func (s *Store) Append(ctx context.Context, key types.ConversationKey, entryID, text string) error {
	if !key.Valid() {
		slog.Warn("transcript append skipped: invalid conversation key", "conversation_id", key.ConversationID)
		return nil
	}
	if entryID == "" {
		entryID = ulid.Make().String()
	}
	member := encodeMember(entryID, strings.TrimRight(text, "\r\n"))
	score := float64(s.now().UnixMilli())
	// NX keeps the first score when a retried write repeats an entry.
	if err := s.client.ZAddNX(ctx, key.StorageKey(), redis.Z{Score: score, Member: member}).Err(); err != nil {
		return fmt.Errorf("failed to append transcript entry: %w", err)
	}
	return nil
}

// ReadRecent returns the last limit entries, oldest first, joined by newlines.
func (s *Store) ReadRecent(ctx context.Context, key types.ConversationKey, limit int) (string, error) {
	entries, err := s.ReadRecentEntries(ctx, key, limit)
	if err != nil {
		return "", err
	}
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, e.Text)
	}
	return strings.Join(lines, "\n"), nil
}

// ReadRecentEntries is ReadRecent without flattening.
func (s *Store) ReadRecentEntries(ctx context.Context, key types.ConversationKey, limit int) ([]Entry, error) {
	if !key.Valid() {
		return nil, nil
	}
	if limit <= 0 {
		limit = s.limit
	}
	// Negative indexes select the tail of the ascending range, so the result stays oldest first.
	zs, err := s.client.ZRangeWithScores(ctx, key.StorageKey(), int64(-limit), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read transcript: %w", err)
	}
	entries := make([]Entry, 0, len(zs))
	for _, z := range zs {
		member, ok := z.Member.(string)
		if !ok {
			continue
		}
		id, text := decodeMember(member)
		entries = append(entries, Entry{ID: id, Text: text, Score: z.Score})
	}
	return entries, nil
}

// SeedOnce imports content split by delimiter when the key holds no entries yet. Pieces get
// counter scores 0..n-1. The existence check and the writes run in one optimistic
// transaction; losing the race to a concurrent writer is treated as already seeded.
func (s *Store) SeedOnce(ctx context.Context, key types.ConversationKey, content, delimiter string) error {
	if !key.Valid() {
		return nil
	}
	pieces := splitSeed(content, delimiter)
	if len(pieces) == 0 {
		return nil
	}

	storageKey := key.StorageKey()
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, storageKey).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for i, piece := range pieces {
				pipe.ZAdd(ctx, storageKey, redis.Z{
					Score:  float64(i),
					Member: encodeMember(ulid.Make().String(), piece),
				})
			}
			return nil
		})
		return err
	}, storageKey)
	if errors.Is(err, redis.TxFailedErr) {
		slog.Debug("transcript seed lost race, skipping", "key", storageKey)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to seed transcript: %w", err)
	}
	return nil
}

// Remove deletes the entry written with entryID. Missing entries are not an error.
func (s *Store) Remove(ctx context.Context, key types.ConversationKey, entryID string) error {
	if !key.Valid() || entryID == "" {
		return nil
	}
	storageKey := key.StorageKey()
	prefix := entryID + memberSep

	var members []any
	iter := s.client.ZScan(ctx, storageKey, 0, escapeGlob(entryID)+memberSep+"*", 100).Iterator()
	for iter.Next(ctx) {
		// ZSCAN yields member and score alternately; scores never carry the prefix.
		if val := iter.Val(); strings.HasPrefix(val, prefix) {
			members = append(members, val)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan transcript: %w", err)
	}
	if len(members) == 0 {
		return nil
	}
	if err := s.client.ZRem(ctx, storageKey, members...).Err(); err != nil {
		return fmt.Errorf("failed to remove transcript entry: %w", err)
	}
	return nil
}

func encodeMember(id, text string) string {
	return id + memberSep + text
}

func decodeMember(member string) (string, string) {
	id, text, ok := strings.Cut(member, memberSep)
	if !ok {
		return "", member
	}
	return id, text
}

func splitSeed(content, delimiter string) []string {
	if strings.TrimSpace(content) == "" {
		return nil
	}
	var raw []string
	if delimiter == "" {
		raw = []string{content}
	} else {
		raw = strings.Split(content, delimiter)
	}
	pieces := make([]string, 0, len(raw))
	for _, piece := range raw {
		piece = strings.TrimRight(piece, "\r\n")
		if strings.TrimSpace(piece) == "" {
			continue
		}
		pieces = append(pieces, piece)
	}
	return pieces
}

func escapeGlob(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)
	return r.Replace(s)
}
