package types

import "time"

// Difficulty levels a quiz question may carry.
const (
	DifficultyEasy   = "EASY"
	DifficultyMedium = "MEDIUM"
	DifficultyHard   = "HARD"
)

// Quiz is a generated multiple-choice quiz.
type Quiz struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	UserName  string         `json:"user_name"`
	Subject   string         `json:"subject"`
	Grade     int            `json:"grade"`
	Level     string         `json:"level,omitempty"`
	Questions []QuizQuestion `json:"questions"`
	CreatedAt time.Time      `json:"created_at"`
}

// QuizQuestion is one question. CorrectAnswer is the option letter (A, B, ...).
type QuizQuestion struct {
	ID            string   `json:"id"`
	QuizID        string   `json:"quiz_id"`
	Position      int      `json:"position"`
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
	Difficulty    string   `json:"difficulty"`
}

// AnswerResult grades a single answer.
type AnswerResult struct {
	QuestionID    string   `json:"question_id"`
	QuestionText  string   `json:"question_text"`
	UserAnswer    string   `json:"user_answer"`
	CorrectAnswer string   `json:"correct_answer"`
	IsCorrect     bool     `json:"is_correct"`
	Options       []string `json:"options"`
}

// QuizSubmission is a graded attempt.
type QuizSubmission struct {
	ID          string         `json:"id"`
	QuizID      string         `json:"quiz_id"`
	UserID      string         `json:"user_id"`
	Answers     []string       `json:"answers"`
	Score       int            `json:"score"`
	Results     []AnswerResult `json:"results"`
	Suggestions []string       `json:"suggestions"`
	CreatedAt   time.Time      `json:"created_at"`
}

// QuizSummary is a quiz listed in history or popularity views.
type QuizSummary struct {
	ID            string    `json:"id"`
	Subject       string    `json:"subject"`
	Grade         int       `json:"grade"`
	Level         string    `json:"level,omitempty"`
	QuestionCount int       `json:"question_count"`
	Submissions   int       `json:"submissions"`
	LastScore     *int      `json:"last_score,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
