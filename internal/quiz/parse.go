package quiz

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/Patelhetu-177/SkillSphere/internal/types"
)

var (
	fencedJSON      = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)\\n?```")
	suggestionArray = regexp.MustCompile(`(?s)\[\s*".*?"\s*\]`)
	letterAnswer    = regexp.MustCompile(`(?i)^([A-Z])(?:[).:]\s*|\s+|$)`)
	optionLabel     = regexp.MustCompile(`^[A-H][).:]\s+`)
)

func intPtr(n int) *int { return &n }

var generatedSchema = &jsonschema.Schema{
	Type:     "object",
	Required: []string{"questions"},
	Properties: map[string]*jsonschema.Schema{
		"questions": {
			Type:     "array",
			MinItems: intPtr(1),
			Items: &jsonschema.Schema{
				Type:     "object",
				Required: []string{"text", "options", "correctAnswer"},
				Properties: map[string]*jsonschema.Schema{
					"text":          {Type: "string", MinLength: intPtr(1)},
					"options":       {Type: "array", MinItems: intPtr(2), Items: &jsonschema.Schema{Type: "string"}},
					"correctAnswer": {Type: "string", MinLength: intPtr(1)},
					"difficulty":    {Type: "string"},
				},
			},
		},
	},
}

type generatedQuestion struct {
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correctAnswer"`
	Difficulty    string   `json:"difficulty"`
}

type generatedQuiz struct {
	Questions []generatedQuestion `json:"questions"`
}

// parseGenerated extracts the quiz JSON from a model reply, which may wrap it in a code fence,
// validates it and returns at most limit normalised questions.
func parseGenerated(resolved *jsonschema.Resolved, reply string, limit int) ([]types.QuizQuestion, error) {
	payload := strings.TrimSpace(reply)
	if m := fencedJSON.FindStringSubmatch(payload); m != nil {
		payload = strings.TrimSpace(m[1])
	}

	var raw any
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, fmt.Errorf("quiz reply is not JSON: %w", err)
	}
	if err := resolved.Validate(raw); err != nil {
		return nil, fmt.Errorf("quiz reply has unexpected shape: %w", err)
	}
	var gen generatedQuiz
	if err := json.Unmarshal([]byte(payload), &gen); err != nil {
		return nil, fmt.Errorf("failed to decode quiz reply: %w", err)
	}

	questions := make([]types.QuizQuestion, 0, len(gen.Questions))
	for _, q := range gen.Questions {
		if limit > 0 && len(questions) == limit {
			break
		}
		options := make([]string, 0, len(q.Options))
		for _, o := range q.Options {
			options = append(options, stripOptionLabel(o))
		}
		correct := answerLetter(q.CorrectAnswer, options)
		if correct == "" {
			continue
		}
		questions = append(questions, types.QuizQuestion{
			Position:      len(questions) + 1,
			Text:          strings.TrimSpace(q.Text),
			Options:       options,
			CorrectAnswer: correct,
			Difficulty:    normalizeDifficulty(q.Difficulty),
		})
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("quiz reply has no gradable questions")
	}
	return questions, nil
}

func normalizeDifficulty(d string) string {
	switch upper := strings.ToUpper(strings.TrimSpace(d)); upper {
	case types.DifficultyEasy, types.DifficultyMedium, types.DifficultyHard:
		return upper
	default:
		return types.DifficultyMedium
	}
}

// stripOptionLabel turns "B) Paris" into "Paris".
func stripOptionLabel(option string) string {
	option = strings.TrimSpace(option)
	if loc := optionLabel.FindStringIndex(option); loc != nil && loc[1] < len(option) {
		return strings.TrimSpace(option[loc[1]:])
	}
	return option
}

// answerLetter resolves an answer given as a letter ("b", "B)", "B. Paris") or as the
// option text to the option letter. It returns "" when the answer matches no option.
func answerLetter(answer string, options []string) string {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return ""
	}
	for i, o := range options {
		if strings.EqualFold(answer, o) {
			return optionLetter(i)
		}
	}
	if m := letterAnswer.FindStringSubmatch(answer); m != nil {
		letter := strings.ToUpper(m[1])
		if idx := int(letter[0] - 'A'); idx < len(options) {
			return letter
		}
	}
	return ""
}

func optionLetter(i int) string {
	return string(rune('A' + i))
}

// parseSuggestions pulls the first JSON string array out of reply.
func parseSuggestions(reply string) []string {
	m := suggestionArray.FindString(reply)
	if m == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(m), &out); err != nil {
		return nil
	}
	cleaned := out[:0]
	for _, s := range out {
		if s = strings.TrimSpace(s); s != "" {
			cleaned = append(cleaned, s)
		}
	}
	return cleaned
}
