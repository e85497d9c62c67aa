package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Patelhetu-177/SkillSphere/internal/cache"
	"github.com/Patelhetu-177/SkillSphere/internal/types"
)

func turnRecord() TurnRecord {
	return TurnRecord{
		MessageID: "01JTURN",
		Key:       convKey(),
		PersonaID: "mate-1",
		UserID:    "u1",
		Content:   "Nice answer.",
		CreatedAt: time.Now(),
	}
}

func TestTurnWriterPersistIsRepeatable(t *testing.T) {
	tr := newFakeTranscript()
	msgs := &fakeMessages{}
	c := cache.New(4, time.Minute)
	key := cache.Key{ConversationID: "mate-1", UserID: "u1"}
	c.Put(key, []types.ChatTurn{{Role: types.RoleUser, Content: "stale"}})

	w := NewTurnWriter(tr, msgs, c)
	for i := 0; i < 2; i++ {
		if err := w.Persist(context.Background(), turnRecord()); err != nil {
			t.Fatalf("Persist() #%d error = %v", i, err)
		}
	}

	if got := tr.texts(convKey()); len(got) != 1 || got[0] != "AI: Nice answer." {
		t.Fatalf("transcript = %q", got)
	}
	if got := msgs.all(); len(got) != 1 || got[0].Role != types.MessageRoleSystem {
		t.Fatalf("messages = %+v", got)
	}
	if _, ok := c.Get(key); ok {
		t.Fatalf("cache not invalidated")
	}
}

func TestTurnWriterIndexesExchange(t *testing.T) {
	ix := &fakeRetriever{}
	w := NewTurnWriter(newFakeTranscript(), &fakeMessages{}, nil).WithIndexer(ix)
	rec := turnRecord()
	rec.Prompt = "Is this right?"
	for i := 0; i < 2; i++ {
		if err := w.Persist(context.Background(), rec); err != nil {
			t.Fatalf("Persist() #%d error = %v", i, err)
		}
	}

	got := ix.indexedIn("mate-1")
	if len(got) != 1 {
		t.Fatalf("expected one indexed exchange, got %d", len(got))
	}
	if got[0].ID != rec.MessageID || got[0].Content != "User: Is this right?\nAI: Nice answer." {
		t.Fatalf("indexed chunk = %+v", got[0])
	}
}

func TestTurnWriterIndexFailureDoesNotFailPersist(t *testing.T) {
	ix := &fakeRetriever{indexErr: errors.New("embedding quota")}
	msgs := &fakeMessages{}
	w := NewTurnWriter(newFakeTranscript(), msgs, nil).WithIndexer(ix)
	if err := w.Persist(context.Background(), turnRecord()); err != nil {
		t.Fatalf("Persist() error = %v", err)
	}
	if ix.indexCall != 1 || len(msgs.all()) != 1 {
		t.Fatalf("index calls = %d, messages = %d", ix.indexCall, len(msgs.all()))
	}
}

func TestBackgroundDispatcherRetries(t *testing.T) {
	tr := newFakeTranscript()
	msgs := &fakeMessages{failSystem: 2}
	d := NewBackgroundDispatcher(NewTurnWriter(tr, msgs, nil), 3, time.Millisecond)

	if err := d.Dispatch(context.Background(), turnRecord()); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	d.Wait()

	if got := msgs.all(); len(got) != 1 {
		t.Fatalf("messages = %d, want 1 after retries", len(got))
	}
	if got := tr.texts(convKey()); len(got) != 1 {
		t.Fatalf("transcript = %q, want a single entry across retries", got)
	}
}

func TestBackgroundDispatcherDeadLetters(t *testing.T) {
	tr := newFakeTranscript()
	msgs := &fakeMessages{failSystem: 10}
	d := NewBackgroundDispatcher(NewTurnWriter(tr, msgs, nil), 2, time.Millisecond)

	_ = d.Dispatch(context.Background(), turnRecord())
	d.Wait()

	if msgs.createCalls != 2 {
		t.Fatalf("create attempts = %d, want 2", msgs.createCalls)
	}
	if len(msgs.all()) != 0 {
		t.Fatalf("message written despite failures")
	}
}

func TestBackgroundDispatcherOutlivesCaller(t *testing.T) {
	tr := newFakeTranscript()
	msgs := &fakeMessages{}
	d := NewBackgroundDispatcher(NewTurnWriter(tr, msgs, nil), 1, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = d.Dispatch(ctx, turnRecord())
	d.Wait()

	if len(msgs.all()) != 1 {
		t.Fatalf("persistence stopped by caller cancellation")
	}
}
