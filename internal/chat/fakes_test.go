package chat

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"

	"google.golang.org/genai"

	"github.com/Patelhetu-177/SkillSphere/internal/generation"
	"github.com/Patelhetu-177/SkillSphere/internal/memory"
	"github.com/Patelhetu-177/SkillSphere/internal/transcript"
	"github.com/Patelhetu-177/SkillSphere/internal/types"
)

type fakePersonas struct {
	mu       sync.Mutex
	personas map[string]types.Persona
}

func newFakePersonas(ps ...types.Persona) *fakePersonas {
	f := &fakePersonas{personas: map[string]types.Persona{}}
	for _, p := range ps {
		f.personas[p.ID] = p
	}
	return f
}

func (f *fakePersonas) Create(_ context.Context, p *types.Persona) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p.ID == "" {
		p.ID = "persona-" + p.Name
	}
	f.personas[p.ID] = *p
	return nil
}

func (f *fakePersonas) Get(_ context.Context, id string) (*types.Persona, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.personas[id]
	if !ok {
		return nil, types.ErrNotFound
	}
	return &p, nil
}

func (f *fakePersonas) List(_ context.Context, name string, limit int) ([]types.Persona, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.Persona
	for _, p := range f.personas {
		if strings.Contains(p.Name, name) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakePersonas) Update(_ context.Context, p *types.Persona) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.personas[p.ID]
	if !ok || cur.UserID != p.UserID {
		return types.ErrNotFound
	}
	f.personas[p.ID] = *p
	return nil
}

func (f *fakePersonas) Delete(_ context.Context, id, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.personas[id]
	if !ok || cur.UserID != userID {
		return types.ErrNotFound
	}
	delete(f.personas, id)
	return nil
}

type fakeMessages struct {
	mu            sync.Mutex
	msgs          []types.ChatMessage
	createCalls   int
	failSystem    int
	failSystemErr error
}

func (f *fakeMessages) Create(_ context.Context, msg *types.ChatMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if msg.Role == types.MessageRoleSystem && f.failSystem > 0 {
		f.failSystem--
		if f.failSystemErr != nil {
			return f.failSystemErr
		}
		return errors.New("database unavailable")
	}
	for _, m := range f.msgs {
		if m.ID == msg.ID {
			return nil
		}
	}
	f.msgs = append(f.msgs, *msg)
	return nil
}

func (f *fakeMessages) Get(_ context.Context, id string) (*types.ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.msgs {
		if m.ID == id {
			return &m, nil
		}
	}
	return nil, types.ErrNotFound
}

func (f *fakeMessages) Delete(_ context.Context, id, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, m := range f.msgs {
		if m.ID == id && m.UserID == userID {
			f.msgs = append(f.msgs[:i], f.msgs[i+1:]...)
			return nil
		}
	}
	return types.ErrNotFound
}

func (f *fakeMessages) ListRecent(_ context.Context, personaID, userID string, limit int) ([]types.ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.ChatMessage
	for _, m := range f.msgs {
		if m.PersonaID == personaID && m.UserID == userID {
			out = append(out, m)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (f *fakeMessages) all() []types.ChatMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]types.ChatMessage(nil), f.msgs...)
}

type fakeTranscript struct {
	mu      sync.Mutex
	entries map[types.ConversationKey][]transcript.Entry
	reads   int
	err     error
}

func newFakeTranscript() *fakeTranscript {
	return &fakeTranscript{entries: map[types.ConversationKey][]transcript.Entry{}}
}

func (f *fakeTranscript) Append(_ context.Context, key types.ConversationKey, entryID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	for _, e := range f.entries[key] {
		if e.ID == entryID {
			return nil
		}
	}
	f.entries[key] = append(f.entries[key], transcript.Entry{ID: entryID, Text: text})
	return nil
}

func (f *fakeTranscript) ReadRecentEntries(_ context.Context, key types.ConversationKey, limit int) ([]transcript.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if f.err != nil {
		return nil, f.err
	}
	entries := f.entries[key]
	if len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return append([]transcript.Entry(nil), entries...), nil
}

func (f *fakeTranscript) SeedOnce(_ context.Context, key types.ConversationKey, content, delimiter string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if len(f.entries[key]) > 0 {
		return nil
	}
	for i, piece := range strings.Split(content, delimiter) {
		if strings.TrimSpace(piece) == "" {
			continue
		}
		f.entries[key] = append(f.entries[key], transcript.Entry{ID: "seed-" + string(rune('a'+i)), Text: piece})
	}
	return nil
}

func (f *fakeTranscript) Remove(_ context.Context, key types.ConversationKey, entryID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	entries := f.entries[key]
	for i, e := range entries {
		if e.ID == entryID {
			f.entries[key] = append(entries[:i], entries[i+1:]...)
			return nil
		}
	}
	return nil
}

func (f *fakeTranscript) texts(key types.ConversationKey) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, e := range f.entries[key] {
		out = append(out, e.Text)
	}
	return out
}

type fakeGenerator struct {
	mu       sync.Mutex
	reply    string
	partial  string
	err      error
	contents [][]*genai.Content
}

func (f *fakeGenerator) ModelName() string { return "test-model" }

func (f *fakeGenerator) Run(_ context.Context, contents []*genai.Content, _ *genai.GenerateContentConfig, w io.Writer) generation.Result {
	f.mu.Lock()
	f.contents = append(f.contents, contents)
	f.mu.Unlock()

	if f.err != nil {
		n := 0
		if f.partial != "" {
			n, _ = io.WriteString(w, f.partial)
		}
		return generation.Result{State: generation.StateFailed, Err: f.err, Written: n}
	}
	n, _ := io.WriteString(w, f.reply)
	return generation.Result{State: generation.StateCompleted, Text: f.reply, Written: n}
}

func (f *fakeGenerator) lastContents() []*genai.Content {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.contents) == 0 {
		return nil
	}
	return f.contents[len(f.contents)-1]
}

type fakeRetriever struct {
	mu        sync.Mutex
	matches   []types.SimilarityMatch
	calls     int
	text      string
	filter    map[string]any
	indexed   map[string][]memory.Chunk
	indexErr  error
	indexCall int
}

// Search serves indexed chunks of the namespace when any exist, otherwise the canned matches.
func (f *fakeRetriever) Search(_ context.Context, text, namespace string, _ int, filter map[string]any) []types.SimilarityMatch {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.text = text
	f.filter = filter
	chunks := f.indexed[namespace]
	if len(chunks) == 0 {
		return f.matches
	}
	var out []types.SimilarityMatch
	for _, c := range chunks {
		if metadataContains(c.Metadata, filter) {
			out = append(out, types.SimilarityMatch{ID: c.ID, Content: c.Content, Score: 0.9, Metadata: c.Metadata})
		}
	}
	return out
}

func (f *fakeRetriever) Index(_ context.Context, namespace string, chunks []memory.Chunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indexCall++
	if f.indexErr != nil {
		return f.indexErr
	}
	if f.indexed == nil {
		f.indexed = make(map[string][]memory.Chunk)
	}
	for _, c := range chunks {
		replaced := false
		for i, existing := range f.indexed[namespace] {
			if existing.ID == c.ID {
				f.indexed[namespace][i] = c
				replaced = true
			}
		}
		if !replaced {
			f.indexed[namespace] = append(f.indexed[namespace], c)
		}
	}
	return nil
}

func (f *fakeRetriever) indexedIn(namespace string) []memory.Chunk {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]memory.Chunk(nil), f.indexed[namespace]...)
}

func metadataContains(meta, filter map[string]any) bool {
	for k, v := range filter {
		if meta[k] != v {
			return false
		}
	}
	return true
}
