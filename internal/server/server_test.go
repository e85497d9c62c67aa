package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Patelhetu-177/SkillSphere/internal/auth"
	"github.com/Patelhetu-177/SkillSphere/internal/cache"
	"github.com/Patelhetu-177/SkillSphere/internal/chat"
	"github.com/Patelhetu-177/SkillSphere/internal/documents"
	"github.com/Patelhetu-177/SkillSphere/internal/generation"
	"github.com/Patelhetu-177/SkillSphere/internal/memory"
	"github.com/Patelhetu-177/SkillSphere/internal/metrics"
	"github.com/Patelhetu-177/SkillSphere/internal/quiz"
	"github.com/Patelhetu-177/SkillSphere/internal/ratelimit"
	"github.com/Patelhetu-177/SkillSphere/internal/storage"
	"github.com/Patelhetu-177/SkillSphere/internal/transcript"
	"github.com/Patelhetu-177/SkillSphere/internal/types"
)

type personaRepo struct {
	mu       sync.Mutex
	personas map[string]types.Persona
}

func (r *personaRepo) Create(_ context.Context, p *types.Persona) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p.ID = "p-" + p.Name
	r.personas[p.ID] = *p
	return nil
}

func (r *personaRepo) Get(_ context.Context, id string) (*types.Persona, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.personas[id]
	if !ok {
		return nil, types.ErrNotFound
	}
	return &p, nil
}

func (r *personaRepo) List(_ context.Context, _ string, _ int) ([]types.Persona, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]types.Persona, 0, len(r.personas))
	for _, p := range r.personas {
		out = append(out, p)
	}
	return out, nil
}

func (r *personaRepo) Update(_ context.Context, p *types.Persona) error { return types.ErrNotFound }

func (r *personaRepo) Delete(_ context.Context, _, _ string) error { return types.ErrNotFound }

type messageRepo struct {
	mu   sync.Mutex
	msgs map[string]types.ChatMessage
}

func (r *messageRepo) Create(_ context.Context, m *types.ChatMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs[m.ID] = *m
	return nil
}

func (r *messageRepo) Get(_ context.Context, id string) (*types.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.msgs[id]
	if !ok {
		return nil, types.ErrNotFound
	}
	return &m, nil
}

func (r *messageRepo) Delete(_ context.Context, id, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.msgs, id)
	return nil
}

func (r *messageRepo) ListRecent(_ context.Context, _, _ string, _ int) ([]types.ChatMessage, error) {
	return nil, nil
}

type scriptedGenerator struct {
	chunks []string
	err    error
}

func (g *scriptedGenerator) ModelName() string { return "test-model" }

func (g *scriptedGenerator) Run(_ context.Context, _ []*genai.Content, _ *genai.GenerateContentConfig, w io.Writer) generation.Result {
	written := 0
	for _, chunk := range g.chunks {
		n, err := io.WriteString(w, chunk)
		written += n
		if err != nil {
			return generation.Result{State: generation.StateFailed, Err: err, Written: written}
		}
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	}
	if g.err != nil {
		return generation.Result{State: generation.StateFailed, Err: g.err, Written: written}
	}
	return generation.Result{State: generation.StateCompleted, Text: strings.Join(g.chunks, ""), Written: written}
}

type env struct {
	handler    http.Handler
	verifier   *auth.Verifier
	gen        *scriptedGenerator
	messages   *messageRepo
	transcript *transcript.Store
	dispatcher *chat.BackgroundDispatcher
}

func newEnv(t *testing.T) *env {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	personas := &personaRepo{personas: map[string]types.Persona{
		"mate-1": {ID: "mate-1", UserID: "owner", Name: "Ada", Instruction: "Interview the candidate.", Seed: "AI: Hi, ready?"},
	}}
	messages := &messageRepo{msgs: map[string]types.ChatMessage{}}
	store := transcript.NewStore(client)
	windows := cache.New(16, time.Minute)
	gen := &scriptedGenerator{chunks: []string{"Tell me ", "about channels."}}
	dispatcher := chat.NewBackgroundDispatcher(chat.NewTurnWriter(store, messages, windows), 2, time.Millisecond)

	svc := chat.NewService(chat.Deps{
		Personas:   personas,
		Messages:   messages,
		Transcript: store,
		Cache:      windows,
		Limiter:    ratelimit.NewRedisLimiter(client, 10, 3*time.Second),
		Generator:  gen,
		Dispatcher: dispatcher,
	}, chat.Options{})
	personaSvc, err := chat.NewPersonaService(personas)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	require.NoError(t, metrics.Register(reg))

	verifier, err := auth.NewVerifier("test-secret", "")
	require.NoError(t, err)
	srv := New(Deps{Chat: svc, Personas: personaSvc, Verifier: verifier, Registry: reg}, Options{Addr: ":0"})
	return &env{handler: srv.Handler(), verifier: verifier, gen: gen, messages: messages, transcript: store, dispatcher: dispatcher}
}

func (e *env) token(t *testing.T, userID string) string {
	t.Helper()
	tok, err := e.verifier.Issue(auth.Identity{UserID: userID, UserName: "Sam"}, time.Hour)
	require.NoError(t, err)
	return tok
}

func (e *env) do(t *testing.T, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error
}

func TestHealth(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestChatRequiresToken(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodPost, "/chat/mate-1", `{"prompt":"hi"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Unauthorized", errorBody(t, rec))
}

func TestChatStreamsReply(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodPost, "/chat/mate-1", `{"prompt":"hi","lang":"en"}`, e.token(t, "u1"))
	e.dispatcher.Wait()

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "Tell me about channels.", rec.Body.String())

	key := types.ConversationKey{ConversationID: "mate-1", UserID: "u1", ModelName: "test-model"}
	got, err := e.transcript.ReadRecent(context.Background(), key, 10)
	require.NoError(t, err)
	assert.Equal(t, "AI: Hi, ready?\nUser: hi\nAI: Tell me about channels.", got)
}

func TestChatValidationError(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodPost, "/chat/mate-1", `{"prompt":"   "}`, e.token(t, "u1"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "There was a problem with your request.", errorBody(t, rec))

	rec = e.do(t, http.MethodPost, "/chat/mate-1", `{not json`, e.token(t, "u1"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatUnknownPersona(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodPost, "/chat/nobody", `{"prompt":"hi"}`, e.token(t, "u1"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChatFailureBeforeFirstToken(t *testing.T) {
	e := newEnv(t)
	e.gen.chunks = nil
	e.gen.err = context.DeadlineExceeded

	rec := e.do(t, http.MethodPost, "/chat/mate-1", `{"prompt":"hi"}`, e.token(t, "u1"))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "I'm overwhelmed right now. Try again in a minute.", errorBody(t, rec))
}

func TestChatRateLimited(t *testing.T) {
	e := newEnv(t)
	tok := e.token(t, "u1")
	for i := 0; i < 10; i++ {
		rec := e.do(t, http.MethodPost, "/chat/mate-1", `{"prompt":"hi"}`, tok)
		require.Equal(t, http.StatusOK, rec.Code, "request %d", i)
	}
	rec := e.do(t, http.MethodPost, "/chat/mate-1", `{"prompt":"hi"}`, tok)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "Too many requests. Slow down a bit.", errorBody(t, rec))
	e.dispatcher.Wait()
}

func TestChatFailureMidStreamTruncates(t *testing.T) {
	e := newEnv(t)
	e.gen.err = context.DeadlineExceeded

	ts := httptest.NewServer(e.handler)
	defer ts.Close()

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/chat/mate-1", strings.NewReader(`{"prompt":"hi"}`))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+e.token(t, "u1"))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return
	}
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	assert.Error(t, err, "stream should end abnormally")
	assert.True(t, strings.HasPrefix("Tell me about channels.", string(body)))
}

func TestDeleteMessageOwnership(t *testing.T) {
	e := newEnv(t)
	e.messages.msgs["m1"] = types.ChatMessage{ID: "m1", PersonaID: "mate-1", UserID: "u1", Role: types.MessageRoleUser, Content: "hi"}

	rec := e.do(t, http.MethodDelete, "/chat/message/m1", "", e.token(t, "intruder"))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(t, http.MethodDelete, "/chat/message/m1", "", e.token(t, "u1"))
	assert.Equal(t, http.StatusOK, rec.Code)
	_, err := e.messages.Get(context.Background(), "m1")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestCreatePersona(t *testing.T) {
	e := newEnv(t)
	body, _ := json.Marshal(chat.PersonaInput{
		Src:         "https://example.com/a.png",
		Name:        "Grace",
		Description: "Systems interviewer",
		Instruction: strings.Repeat("Dig into trade-offs. ", 12),
		Seed:        strings.Repeat("AI: Welcome to the loop. ", 10),
	})
	rec := e.do(t, http.MethodPost, "/personas", string(body), e.token(t, "u1"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var p types.Persona
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Equal(t, "u1", p.UserID)

	rec = e.do(t, http.MethodPost, "/personas", `{"name":"x"}`, e.token(t, "u1"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	e := newEnv(t)
	e.do(t, http.MethodPost, "/chat/mate-1", `{"prompt":"hi"}`, e.token(t, "u1"))
	e.dispatcher.Wait()

	rec := e.do(t, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "skillsphere_window_cache_lookups_total")
}

type nopIndex struct{}

func (nopIndex) Index(context.Context, string, []memory.Chunk) error { return nil }
func (nopIndex) Query(context.Context, string, string, int) []types.SimilarityMatch {
	return nil
}
func (nopIndex) Search(context.Context, string, string, int, map[string]any) []types.SimilarityMatch {
	return nil
}
func (nopIndex) Forget(context.Context, string) error { return nil }

// newStoreEnv serves the document and quiz routes over an in-memory sqlite store with no
// generation backend.
func newStoreEnv(t *testing.T) (*env, *storage.Store) {
	t.Helper()
	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	store := storage.NewStoreWithDB(db)
	require.NoError(t, store.AutoMigrate(context.Background()))
	t.Cleanup(store.Close)

	quizSvc, err := quiz.NewService(store.Quizzes, nil, nopIndex{}, nil, nil)
	require.NoError(t, err)
	verifier, err := auth.NewVerifier("test-secret", "")
	require.NoError(t, err)
	srv := New(Deps{
		Documents: documents.NewService(store.Documents, nopIndex{}, nil, nil),
		Quiz:      quizSvc,
		Verifier:  verifier,
	}, Options{Addr: ":0"})
	return &env{handler: srv.Handler(), verifier: verifier}, store
}

func TestDocumentRoutes(t *testing.T) {
	e, store := newStoreEnv(t)
	doc := &types.Document{UserID: "u1", Title: "Resume", Description: "Go and Postgres."}
	require.NoError(t, store.Documents.Create(context.Background(), doc))

	rec := e.do(t, http.MethodGet, "/documents/"+doc.ID, "", e.token(t, "u1"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = e.do(t, http.MethodGet, "/documents/"+doc.ID, "", e.token(t, "u2"))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(t, http.MethodPatch, "/documents/"+doc.ID, `{}`, e.token(t, "u1"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = e.do(t, http.MethodPatch, "/documents/"+doc.ID, `{"title":"CV"}`, e.token(t, "u1"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = e.do(t, http.MethodPost, "/documents/query", `{"question":"What stack?","documentId":""}`, e.token(t, "u1"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodDelete, "/documents/"+doc.ID, "", e.token(t, "u1"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = e.do(t, http.MethodGet, "/documents/"+doc.ID, "", e.token(t, "u1"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestQuizRoutes(t *testing.T) {
	e, store := newStoreEnv(t)
	q := &types.Quiz{UserID: "u1", Subject: "Go", Grade: 9, Questions: []types.QuizQuestion{
		{Text: "Zero value of a map?", Options: []string{"nil", "empty map"}, CorrectAnswer: "A", Difficulty: types.DifficultyEasy},
	}}
	require.NoError(t, store.Quizzes.Create(context.Background(), q))
	tok := e.token(t, "u2")

	rec := e.do(t, http.MethodGet, "/quiz/"+q.ID, "", tok)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = e.do(t, http.MethodGet, "/quiz/missing", "", tok)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(t, http.MethodPost, "/quiz/"+q.ID+"/submit", `{"answers":["nil"]}`, tok)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res quiz.SubmitResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, 100, res.Score)
	assert.Equal(t, quiz.DefaultSuggestions, res.Suggestions)

	rec = e.do(t, http.MethodGet, "/quiz/history", "", tok)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), q.ID)

	rec = e.do(t, http.MethodPost, "/quiz/generate", `{"grade":"kindergarten","subject":"Go"}`, tok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = e.do(t, http.MethodPost, "/quiz/generate", `{"grade":9,"subject":"Go"}`, tok)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = e.do(t, http.MethodPost, "/questions/similar", `{"text":"  "}`, tok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = e.do(t, http.MethodPost, "/questions/similar", `{"text":"maps"}`, tok)
	assert.Equal(t, http.StatusOK, rec.Code)
}
