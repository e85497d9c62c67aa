// Package quiz generates multiple-choice quizzes, grades submissions and searches the
// generated question bank.
package quiz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"google.golang.org/genai"

	"github.com/Patelhetu-177/SkillSphere/internal/memory"
	"github.com/Patelhetu-177/SkillSphere/internal/prompt"
	"github.com/Patelhetu-177/SkillSphere/internal/types"
	"github.com/Patelhetu-177/SkillSphere/internal/utils"
)

const (
	// QuestionNamespace holds the embedded text of every generated question.
	QuestionNamespace = "quiz-questions"

	DefaultQuestions = 5
	MaxQuestions     = 20
	DefaultSimilar   = 5
	MaxSimilar       = 20
	historyLimit     = 10
	popularLimit     = 6
	maxSuggestions   = 3
)

var (
	ErrValidation  = errors.New("invalid quiz request")
	ErrNotFound    = errors.New("quiz not found")
	ErrUnavailable = errors.New("quiz generation unavailable")
)

// DefaultSuggestions are returned when no personalised suggestions could be generated.
var DefaultSuggestions = []string{
	"Review the questions you got wrong",
	"Practice more with similar questions",
	"Ask for help on difficult topics",
}

// Repo persists quizzes and submissions.
type Repo interface {
	Create(ctx context.Context, q *types.Quiz) error
	Get(ctx context.Context, id string) (*types.Quiz, error)
	CreateSubmission(ctx context.Context, sub *types.QuizSubmission) error
	Recent(ctx context.Context, userID string, limit int) ([]types.QuizSummary, error)
	Popular(ctx context.Context, limit int) ([]types.QuizSummary, error)
}

// Completer produces a single non-streamed answer.
type Completer interface {
	Complete(ctx context.Context, contents []*genai.Content, cfg *genai.GenerateContentConfig) (string, error)
}

// Index is the semantic index the question bank lives in.
type Index interface {
	Index(ctx context.Context, namespace string, chunks []memory.Chunk) error
	Search(ctx context.Context, text, namespace string, k int, filter map[string]any) []types.SimilarityMatch
}

// Service implements quiz generation and grading.
type Service struct {
	repo      Repo
	completer Completer
	index     Index
	cache     QuestionCache
	cfg       *genai.GenerateContentConfig
	schema    *jsonschema.Resolved
}

// NewService creates a Service. index and cache may be nil.
func NewService(repo Repo, completer Completer, index Index, cache QuestionCache, cfg *genai.GenerateContentConfig) (*Service, error) {
	resolved, err := generatedSchema.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve quiz schema: %w", err)
	}
	return &Service{
		repo:      repo,
		completer: completer,
		index:     index,
		cache:     cache,
		cfg:       cfg,
		schema:    resolved,
	}, nil
}

// Generate creates a quiz for the caller. Identical requests within the cache TTL reuse the
// generated questions but still produce a new quiz.
func (s *Service) Generate(ctx context.Context, userID, userName string, in GenerateInput) (*types.Quiz, error) {
	subject := strings.TrimSpace(in.Subject)
	if subject == "" {
		return nil, fmt.Errorf("%w: subject is required", ErrValidation)
	}
	grade, level, err := in.Grade.resolve()
	if err != nil {
		return nil, err
	}
	n := in.NumQuestions
	if n == 0 {
		n = DefaultQuestions
	}
	if n < 1 || n > MaxQuestions {
		return nil, fmt.Errorf("%w: number of questions must be between 1 and %d", ErrValidation, MaxQuestions)
	}

	questions, err := s.questions(ctx, grade, level, subject, n, in.Topics)
	if err != nil {
		return nil, err
	}

	q := &types.Quiz{
		UserID:    userID,
		UserName:  userName,
		Subject:   subject,
		Grade:     grade,
		Level:     level,
		Questions: questions,
	}
	if err := s.repo.Create(ctx, q); err != nil {
		return nil, err
	}
	s.indexQuestions(ctx, q)

	slog.Info("quiz generated", "quiz_id", q.ID, "user_id", userID, "subject", subject, "questions", len(q.Questions))
	return q, nil
}

func (s *Service) questions(ctx context.Context, grade int, level, subject string, n int, topics []string) ([]types.QuizQuestion, error) {
	key := cacheKey(grade, level, subject, n, topics)
	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			slog.Warn("quiz cache read failed", "key", key, "error", err.Error())
		}
		if ok && len(cached) > 0 {
			return cached, nil
		}
	}
	if s.completer == nil {
		return nil, fmt.Errorf("%w: no generation backend configured", ErrUnavailable)
	}

	text, err := prompt.QuizRequest(audience(grade, level), subject, n, topics)
	if err != nil {
		return nil, err
	}
	reply, err := s.completer.Complete(ctx, []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}, s.cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	questions, err := parseGenerated(s.schema, reply, n)
	if err != nil {
		slog.Error("unusable quiz reply", "subject", subject, "error", err.Error(), "reply", utils.Truncate(reply, 200))
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	if s.cache != nil {
		if err := s.cache.Put(ctx, key, questions); err != nil {
			slog.Warn("quiz cache write failed", "key", key, "error", err.Error())
		}
	}
	return questions, nil
}

// indexQuestions adds the quiz's questions to the question bank. Failures only cost search.
func (s *Service) indexQuestions(ctx context.Context, q *types.Quiz) {
	if s.index == nil || len(q.Questions) == 0 {
		return
	}
	chunks := make([]memory.Chunk, 0, len(q.Questions))
	for _, question := range q.Questions {
		chunks = append(chunks, memory.Chunk{
			ID:      question.ID,
			Content: question.Text,
			Metadata: map[string]any{
				"quizId":     q.ID,
				"questionId": question.ID,
				"subject":    q.Subject,
				"difficulty": question.Difficulty,
			},
		})
	}
	if err := s.index.Index(ctx, QuestionNamespace, chunks); err != nil {
		slog.Warn("failed to index quiz questions", "quiz_id", q.ID, "error", err.Error())
	}
}

// Get returns a quiz with its questions.
func (s *Service) Get(ctx context.Context, id string) (*types.Quiz, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: quiz id is required", ErrValidation)
	}
	q, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, err
	}
	return q, nil
}

// SubmitResult is the graded outcome returned to the caller.
type SubmitResult struct {
	SubmissionID string               `json:"submissionId"`
	Correct      int                  `json:"correct"`
	Wrong        int                  `json:"wrong"`
	Total        int                  `json:"total"`
	Score        int                  `json:"score"`
	Results      []types.AnswerResult `json:"results"`
	Suggestions  []string             `json:"suggestions"`
}

// Submit grades answers, given in question order, and records the attempt.
func (s *Service) Submit(ctx context.Context, userID, quizID string, answers []string) (*SubmitResult, error) {
	q, err := s.Get(ctx, quizID)
	if err != nil {
		return nil, err
	}

	results, correct := gradeAnswers(q.Questions, answers)
	score := percent(correct, len(results))
	sub := &types.QuizSubmission{
		QuizID:      q.ID,
		UserID:      userID,
		Answers:     answers,
		Score:       score,
		Results:     results,
		Suggestions: s.suggestions(ctx, q, results, correct, score),
	}
	if err := s.repo.CreateSubmission(ctx, sub); err != nil {
		return nil, err
	}

	slog.Info("quiz submitted", "quiz_id", q.ID, "user_id", userID, "score", score)
	return &SubmitResult{
		SubmissionID: sub.ID,
		Correct:      correct,
		Wrong:        len(results) - correct,
		Total:        len(results),
		Score:        score,
		Results:      results,
		Suggestions:  sub.Suggestions,
	}, nil
}

func gradeAnswers(questions []types.QuizQuestion, answers []string) ([]types.AnswerResult, int) {
	results := make([]types.AnswerResult, 0, len(questions))
	correct := 0
	for i, question := range questions {
		var given string
		if i < len(answers) {
			given = strings.TrimSpace(answers[i])
		}
		ok := given != "" && answerLetter(given, question.Options) == question.CorrectAnswer
		if ok {
			correct++
		}
		results = append(results, types.AnswerResult{
			QuestionID:    question.ID,
			QuestionText:  question.Text,
			UserAnswer:    given,
			CorrectAnswer: question.CorrectAnswer,
			IsCorrect:     ok,
			Options:       question.Options,
		})
	}
	return results, correct
}

func percent(correct, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(correct) / float64(total) * 100))
}

func (s *Service) suggestions(ctx context.Context, q *types.Quiz, results []types.AnswerResult, correct, score int) []string {
	fallback := append([]string(nil), DefaultSuggestions...)
	if s.completer == nil {
		return fallback
	}
	var missed []string
	for _, r := range results {
		if !r.IsCorrect {
			missed = append(missed, r.QuestionText)
		}
	}
	text, err := prompt.QuizFeedback(q.Subject, len(results), correct, score, missed)
	if err != nil {
		return fallback
	}
	reply, err := s.completer.Complete(ctx, []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}, s.cfg)
	if err != nil {
		slog.Warn("quiz suggestion generation failed, using defaults", "quiz_id", q.ID, "error", err.Error())
		return fallback
	}
	out := parseSuggestions(reply)
	if len(out) == 0 {
		return fallback
	}
	if len(out) > maxSuggestions {
		out = out[:maxSuggestions]
	}
	return out
}

// History lists the quizzes the caller created or attempted, newest first.
func (s *Service) History(ctx context.Context, userID string) ([]types.QuizSummary, error) {
	return s.repo.Recent(ctx, userID, historyLimit)
}

// Popular lists the most attempted quizzes.
func (s *Service) Popular(ctx context.Context) ([]types.QuizSummary, error) {
	return s.repo.Popular(ctx, popularLimit)
}

// SimilarQuestion is a question bank hit.
type SimilarQuestion struct {
	ID         string  `json:"id"`
	Score      float64 `json:"score"`
	Text       string  `json:"text"`
	QuizID     string  `json:"quizId"`
	Subject    string  `json:"subject"`
	Difficulty string  `json:"difficulty"`
}

// Similar finds generated questions close to in.Text, optionally narrowed by subject and
// difficulty.
func (s *Service) Similar(ctx context.Context, in SimilarInput) ([]SimilarQuestion, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, fmt.Errorf("%w: text is required", ErrValidation)
	}
	limit := in.Limit
	if limit <= 0 {
		limit = DefaultSimilar
	}
	limit = min(limit, MaxSimilar)
	if s.index == nil {
		return []SimilarQuestion{}, nil
	}

	filter := map[string]any{}
	if subject := strings.TrimSpace(in.Subject); subject != "" {
		filter["subject"] = subject
	}
	if d := strings.TrimSpace(in.Difficulty); d != "" {
		filter["difficulty"] = strings.ToUpper(d)
	}

	matches := s.index.Search(ctx, text, QuestionNamespace, limit, filter)
	out := make([]SimilarQuestion, 0, len(matches))
	for _, m := range matches {
		out = append(out, SimilarQuestion{
			ID:         m.ID,
			Score:      m.Score,
			Text:       m.Content,
			QuizID:     metaString(m.Metadata, "quizId"),
			Subject:    metaString(m.Metadata, "subject"),
			Difficulty: metaString(m.Metadata, "difficulty"),
		})
	}
	return out, nil
}

func metaString(meta map[string]any, key string) string {
	v, _ := meta[key].(string)
	return v
}

